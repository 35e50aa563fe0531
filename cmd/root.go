package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nextier/copilot-engine/internal/classify"
	"github.com/nextier/copilot-engine/internal/config"
	"github.com/nextier/copilot-engine/internal/copilot"
	"github.com/nextier/copilot-engine/internal/gateway"
	"github.com/nextier/copilot-engine/internal/router"
	"github.com/nextier/copilot-engine/internal/sanitize"
	"github.com/nextier/copilot-engine/internal/stages"
	"github.com/nextier/copilot-engine/internal/store"
	"github.com/nextier/copilot-engine/internal/usage"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "copilot-engine",
	Short: "AI orchestration engine for lead outreach",
	Long:  "Classifies inbound SMS replies, routes leads through the 30-day outreach loop, drafts responses, and meters provider usage per tenant.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initStore opens the configured usage store and runs migrations.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// initEngine wires the full stack: store, usage metering, gateway,
// classifier, and decision engine. The returned closer flushes the
// usage queue and closes the store.
func initEngine(ctx context.Context) (*copilot.Engine, func(), error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	tracker := usage.NewTracker(st, usage.MustPricing())
	recorder := usage.NewRecorder(tracker, cfg.Usage.QueueSize)

	gw := gateway.New(cfg, tracker, recorder)

	registry := stages.MustLoad()
	svc := classify.New(gw, sanitize.New(), registry, cfg.Copilot)
	eng := copilot.New(svc, registry, nil, router.Options{
		ObjectionThreshold: cfg.Copilot.ObjectionConfidenceThreshold,
		MaxAutoReplies:     cfg.Copilot.MaxAutoReplies,
	})

	closer := func() {
		recorder.Close()
		st.Close() //nolint:errcheck
	}
	return eng, closer, nil
}
