package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nextier/copilot-engine/internal/config"
)

// Checker runs periodic health checks for one tenant in the background.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	tenantID  string
	cfg       config.MonitoringConfig
}

// NewChecker creates a background health checker.
func NewChecker(collector *Collector, alerter *Alerter, tenantID string, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		tenantID:  tenantID,
		cfg:       cfg,
	}
}

// Run starts the periodic check loop. It blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	log := zap.L().With(
		zap.String("component", "monitoring.checker"),
		zap.String("tenant_id", c.tenantID),
	)
	log.Info("starting health checker",
		zap.Duration("interval", interval),
		zap.Int("lookback_days", c.cfg.LookbackDays),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("health checker stopped")
			return
		case <-ticker.C:
			c.Check(ctx, log)
		}
	}
}

// Check collects one snapshot, evaluates it, and delivers any alerts.
func (c *Checker) Check(ctx context.Context, log *zap.Logger) {
	snap, err := c.collector.Collect(ctx, c.tenantID, c.cfg.LookbackDays)
	if err != nil {
		log.Error("monitoring: failed to collect snapshot", zap.Error(err))
		return
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		log.Debug("monitoring: no alerts",
			zap.Int64("requests", snap.TotalRequests),
			zap.Float64("cost_usd", snap.TotalCostUSD),
		)
		return
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	log.Warn("monitoring: alerts raised",
		zap.Int("alerts", len(alerts)),
		zap.Int("sent", sent),
	)
}
