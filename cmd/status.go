package main

import (
	"github.com/spf13/cobra"

	"github.com/nextier/copilot-engine/internal/gateway"
	"github.com/nextier/copilot-engine/internal/monitoring"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show engine health for a tenant",
	Long: `Show a health snapshot: usage over the lookback window, per-provider
circuit breaker state, and usage records dropped to backpressure.

Examples:
  status --tenant acme
  status --tenant acme --lookback-days 30`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		tenant, _ := cmd.Flags().GetString("tenant")
		lookback, _ := cmd.Flags().GetInt("lookback-days")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		gw := gateway.New(cfg, nil, nil)
		collector := monitoring.NewCollector(st, gw.Breakers(), nil)
		snap, err := collector.Collect(ctx, tenant, lookback)
		if err != nil {
			return err
		}
		return printJSON(cmd, snap)
	},
}

func init() {
	f := statusCmd.Flags()
	f.String("tenant", "", "tenant identifier")
	f.Int("lookback-days", 7, "whole UTC days to include")

	rootCmd.AddCommand(statusCmd)
}
