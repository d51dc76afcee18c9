package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/screentime/internal/adapter/httpserver"
	"github.com/pscheid92/screentime/internal/adapter/metrics"
	"github.com/pscheid92/screentime/internal/adapter/postgres"
	"github.com/pscheid92/screentime/internal/adapter/redis"
	"github.com/pscheid92/screentime/internal/app"
	"github.com/pscheid92/screentime/internal/domain"
	"github.com/pscheid92/screentime/internal/platform/config"
	"github.com/pscheid92/screentime/internal/platform/logging"
	"github.com/pscheid92/screentime/internal/platform/retry"
	"github.com/pscheid92/screentime/internal/platform/version"
)

const (
	shutdownTimeout     = 10 * time.Second
	circuitBreakerDelay = 30 * time.Second
	retentionLeaseGrace = time.Minute
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// slog is not configured yet
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func logRetry(dependency string) func(attempt int, err error, backoff time.Duration) {
	return func(attempt int, err error, backoff time.Duration) {
		slog.Warn("Dependency not ready, retrying", "dependency", dependency, "attempt", attempt, "backoff", backoff, "error", err)
	}
}

func setupDB(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) *pgxpool.Pool {
	tracer := postgres.NewMetricsTracer(metrics.NewDBMetrics(reg))

	pool, err := retry.Do(ctx, retry.Startup(logRetry("postgres")), retry.Transient,
		func(ctx context.Context) (*pgxpool.Pool, error) {
			return postgres.Connect(ctx, cfg.DatabaseURL, postgres.WithTracer(tracer), postgres.WithMaxConns(cfg.DBMaxConns))
		})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if _, err := postgres.Migrate(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	return pool
}

// setupRedis returns nil when REDIS_URL is unset.
func setupRedis(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) *goredis.Client {
	if cfg.RedisURL == "" {
		slog.Info("Redis not configured, running without summary cache and retention lease")
		return nil
	}

	breaker := redis.NewCircuitBreakerHook(metrics.NewRedisMetrics(reg), circuitBreakerDelay)
	client, err := retry.Do(ctx, retry.Startup(logRetry("redis")), retry.Transient,
		func(ctx context.Context) (*goredis.Client, error) {
			return redis.NewClient(ctx, cfg.RedisURL, breaker)
		})
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func main() {
	clock := clockwork.NewRealClock()
	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()

	pool := setupDB(ctx, cfg, reg)
	defer pool.Close()

	redisClient := setupRedis(ctx, cfg, reg)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	sessions := postgres.NewScreenSessionRepo(pool)
	healthChecks := []httpserver.HealthCheck{{Name: "postgres", Check: sessions.Ping}}

	// Interfaces stay nil without Redis; the services treat nil as disabled.
	var (
		cache domain.SummaryCache
		lease app.Lease
	)
	if redisClient != nil {
		cache = redis.NewSummaryCache(redisClient, metrics.NewCacheMetrics(reg))
		lease = app.NewLeaderElector(redisClient, uuid.NewString(), app.RetentionLeaderKey, cfg.RetentionInterval+retentionLeaseGrace)
		healthChecks = append(healthChecks, httpserver.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}

	retentionMetrics := metrics.NewRetentionMetrics(reg)
	ingestSvc := app.NewIngestService(sessions, cache, metrics.NewIngestMetrics(reg))
	summarySvc := app.NewSummaryService(sessions, cache, cfg.SummaryCacheTTL, clock)
	retentionSvc := app.NewRetentionService(sessions, cache, clock, retentionMetrics)

	policy := domain.RetentionPolicy{Days: cfg.RetentionDays, AnonymizedOnly: cfg.RetentionAnonymizedOnly}
	scheduler := app.NewRetentionScheduler(retentionSvc, policy, cfg.RetentionInterval, lease, clock, retentionMetrics)

	var wg sync.WaitGroup
	wg.Go(func() { scheduler.Run(ctx) })

	srv := httpserver.NewServer(cfg, httpserver.Services{
		Ingest:    ingestSvc,
		Summaries: summarySvc,
		Retention: retentionSvc,
	},
		httpserver.WithMetrics(metrics.NewHTTPMetrics(reg), metrics.Handler(reg)),
		httpserver.WithHealthChecks(healthChecks...),
	)

	go func() {
		<-ctx.Done()
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		stop()
		wg.Wait()
		os.Exit(1)
	}

	wg.Wait()
	slog.Info("Shutdown complete")
}
