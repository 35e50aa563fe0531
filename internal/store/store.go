package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/nextier/copilot-engine/internal/config"
	"github.com/nextier/copilot-engine/internal/model"
)

// DailyUsageRow is one persisted aggregate: one tenant, one UTC day,
// one provider/model pair.
type DailyUsageRow struct {
	TenantID         string         `json:"tenant_id"`
	Day              time.Time      `json:"day"`
	Provider         model.Provider `json:"provider"`
	Model            string         `json:"model"`
	PromptTokens     int64          `json:"prompt_tokens"`
	CompletionTokens int64          `json:"completion_tokens"`
	Requests         int64          `json:"requests"`
	Successes        int64          `json:"successes"`
	Failures         int64          `json:"failures"`
	AvgLatencyMs     float64        `json:"avg_latency_ms"`
	CostUSD          float64        `json:"cost_usd"`
}

// Store persists usage aggregates and per-tenant quota limits.
type Store interface {
	// UpsertDailyUsage folds one provider call into the tenant's daily
	// aggregate for that provider/model, creating the row if needed.
	UpsertDailyUsage(ctx context.Context, rec model.UsageRecord, costUSD float64) error

	// ReadAggregates sums usage over [start, end).
	ReadAggregates(ctx context.Context, tenantID string, start, end time.Time) (model.UsageAggregate, error)

	// ReadBreakdown returns per-provider-per-model usage over [start, end),
	// ordered by cost descending.
	ReadBreakdown(ctx context.Context, tenantID string, start, end time.Time) ([]model.UsageBreakdownRow, error)

	// GetLimits returns the tenant's limits, or nil when none are set.
	GetLimits(ctx context.Context, tenantID string) (*model.UsageLimits, error)
	SetLimits(ctx context.Context, limits model.UsageLimits) error

	Migrate(ctx context.Context) error
	Close() error
}

// BulkImporter is implemented by stores that support bulk backfill of
// daily aggregates, used when migrating history from another system.
type BulkImporter interface {
	ImportDaily(ctx context.Context, rows []DailyUsageRow) (int64, error)
}

// Open creates a Store for the configured driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, nil)
	case "sqlite", "":
		return NewSQLite(cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

// UTCDay truncates t to the start of its UTC day.
func UTCDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
