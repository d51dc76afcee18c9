package main

import (
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/pscheid92/screentime/internal/adapter/metrics"
	"github.com/pscheid92/screentime/internal/app"
	"github.com/pscheid92/screentime/internal/domain"
)

var (
	retentionDays int
	retentionAll  bool
)

var retentionCmd = &cobra.Command{
	Use:   "retention",
	Short: "Delete sessions older than the retention window",
	Long: `Runs one retention purge against Postgres and prints the number of deleted rows.
By default only anonymized sessions are removed; --all includes sessions with a user.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		policy := domain.RetentionPolicy{Days: retentionDays, AnonymizedOnly: !retentionAll}
		if err := policy.Validate(); err != nil {
			return err
		}

		ctx := cmd.Context()
		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		svc := app.NewRetentionService(s.repo, s.cache, clockwork.NewRealClock(), metrics.NewRetentionMetrics(metrics.NewRegistry()))
		deleted, err := svc.Purge(ctx, policy)
		if err != nil {
			return err
		}

		_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %d sessions older than %d days\n", deleted, policy.Days)
		return err
	},
}

func init() {
	retentionCmd.Flags().IntVar(&retentionDays, "days", domain.DefaultRetentionDays, "Retention window in days")
	retentionCmd.Flags().BoolVar(&retentionAll, "all", false, "Also delete sessions that belong to a user")
	rootCmd.AddCommand(retentionCmd)
}
