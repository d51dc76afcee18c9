package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pscheid92/screentime/internal/app"
	"github.com/pscheid92/screentime/internal/domain"
)

var (
	summaryDays   int
	summaryUser   string
	summaryOutput string
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the screen-time summary",
	Long:  `Aggregates stored sessions the same way the dashboard endpoint does.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		q := domain.SummaryQuery{Days: summaryDays}
		if summaryUser != "" {
			q.UserID = &summaryUser
		}
		if err := q.Validate(); err != nil {
			return err
		}
		if summaryOutput != "json" && summaryOutput != "yaml" {
			return fmt.Errorf("unsupported output format %q (use json or yaml)", summaryOutput)
		}

		ctx := cmd.Context()
		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		// Reads straight from Postgres; the CLI never serves stale cache entries.
		svc := app.NewSummaryService(s.repo, nil, 0, clockwork.NewRealClock())
		summary, err := svc.Summary(ctx, q)
		if err != nil {
			return err
		}
		return writeSummary(cmd.OutOrStdout(), summary, summaryOutput)
	},
}

func writeSummary(w io.Writer, summary *domain.Summary, format string) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		defer func() { _ = enc.Close() }()
		return enc.Encode(summary)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

func init() {
	summaryCmd.Flags().IntVar(&summaryDays, "days", domain.DefaultSummaryDays, "Window in days")
	summaryCmd.Flags().StringVar(&summaryUser, "user", "", "Restrict to one user ID")
	summaryCmd.Flags().StringVarP(&summaryOutput, "output", "o", "json", "Output format: json or yaml")
	rootCmd.AddCommand(summaryCmd)
}
