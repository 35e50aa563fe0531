package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nextier/copilot-engine/internal/gateway"
	"github.com/nextier/copilot-engine/internal/monitoring"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the background health checker",
	Long: `Collect health snapshots on an interval and deliver webhook alerts for
open circuit breakers, cost overruns, and dropped usage records. Runs
until interrupted.

Examples:
  watch --tenant acme
  NEXTIER_MONITORING_WEBHOOK_URL=https://hooks.example.com/ai watch --tenant acme`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		tenant, _ := cmd.Flags().GetString("tenant")

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		gw := gateway.New(cfg, nil, nil)
		checker := monitoring.NewChecker(
			monitoring.NewCollector(st, gw.Breakers(), nil),
			monitoring.NewAlerter(cfg.Monitoring),
			tenant,
			cfg.Monitoring,
		)
		checker.Run(ctx)
		return nil
	},
}

func init() {
	watchCmd.Flags().String("tenant", "", "tenant identifier")
	rootCmd.AddCommand(watchCmd)
}
