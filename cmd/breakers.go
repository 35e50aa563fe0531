package main

import (
	"github.com/spf13/cobra"

	"github.com/nextier/copilot-engine/internal/gateway"
	"github.com/nextier/copilot-engine/internal/model"
)

var breakersCmd = &cobra.Command{
	Use:   "breakers",
	Short: "Show circuit breaker state for each provider",
	Long: `Show the per-provider circuit breaker statistics the gateway would run
with under the current configuration. Breaker state lives in-process,
so a fresh invocation always starts closed; this is a configuration
check, not live telemetry.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		gw := gateway.New(cfg, nil, nil)
		breakers := gw.Breakers()
		for _, p := range []model.Provider{model.ProviderOpenAI, model.ProviderPerplexity, model.ProviderAnthropic} {
			breakers.Get(string(p))
		}
		return printJSON(cmd, breakers.Stats())
	},
}

func init() {
	rootCmd.AddCommand(breakersCmd)
}
