package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/pscheid92/screentime/internal/adapter/metrics"
	"github.com/pscheid92/screentime/internal/adapter/postgres"
	"github.com/pscheid92/screentime/internal/adapter/redis"
	"github.com/pscheid92/screentime/internal/domain"
	"github.com/pscheid92/screentime/internal/platform/config"
	"github.com/pscheid92/screentime/internal/platform/logging"
	"github.com/pscheid92/screentime/internal/platform/version"
)

var rootCmd = &cobra.Command{
	Use:   "screentimectl",
	Short: "Operate the screen-time service",
	Long: `Operator tool for the screen-time service.

  screentimectl retention --days 90        # purge old anonymized sessions
  screentimectl summary --days 7 -o yaml   # print the dashboard aggregation
  screentimectl simulate --server URL      # drive simulated browser tabs`,
	Version:       version.Get().String(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// store bundles the connections the database-backed commands share.
type store struct {
	pool  *pgxpool.Pool
	rdb   *goredis.Client
	repo  *postgres.ScreenSessionRepo
	cache domain.SummaryCache
}

// openStore connects to Postgres and, when REDIS_URL is set, to the summary
// cache so purges invalidate what the server has cached.
func openStore(ctx context.Context) (*store, error) {
	cfg, err := config.LoadTool(true)
	if err != nil {
		return nil, err
	}
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, postgres.WithMaxConns(2))
	if err != nil {
		return nil, err
	}
	s := &store{pool: pool, repo: postgres.NewScreenSessionRepo(pool)}

	if cfg.RedisURL != "" {
		rdb, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			pool.Close()
			return nil, err
		}
		s.rdb = rdb
		s.cache = redis.NewSummaryCache(rdb, metrics.NewCacheMetrics(metrics.NewRegistry()))
	}
	return s, nil
}

func (s *store) Close() {
	if s.rdb != nil {
		_ = s.rdb.Close()
	}
	s.pool.Close()
}
