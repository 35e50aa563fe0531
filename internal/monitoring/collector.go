// Package monitoring assembles point-in-time health snapshots: provider
// circuit state, metered usage over a lookback window, and usage-queue
// drop counts.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/nextier/copilot-engine/internal/model"
	"github.com/nextier/copilot-engine/internal/resilience"
	"github.com/nextier/copilot-engine/internal/store"
)

// Snapshot holds a point-in-time view of engine health for one tenant.
type Snapshot struct {
	// Usage within the lookback window.
	TotalTokens   int64                     `json:"total_tokens"`
	TotalRequests int64                     `json:"total_requests"`
	TotalCostUSD  float64                   `json:"total_cost_usd"`
	Breakdown     []model.UsageBreakdownRow `json:"breakdown"`

	// Provider health.
	Breakers     []resilience.CircuitStats `json:"breakers"`
	OpenBreakers int                       `json:"open_breakers"`

	// Usage records dropped because the queue was full.
	DroppedRecords int64 `json:"dropped_records"`

	// Metadata.
	TenantID     string    `json:"tenant_id"`
	LookbackDays int       `json:"lookback_days"`
	CollectedAt  time.Time `json:"collected_at"`
}

// DropCounter reports usage records lost to backpressure.
type DropCounter interface {
	Dropped() int64
}

// Collector gathers snapshots from the usage store and breaker registry.
type Collector struct {
	store    store.Store
	breakers *resilience.Breakers
	drops    DropCounter
}

// NewCollector creates a collector. The breaker registry and drop
// counter may be nil when only usage is of interest.
func NewCollector(st store.Store, breakers *resilience.Breakers, drops DropCounter) *Collector {
	return &Collector{store: st, breakers: breakers, drops: drops}
}

// Collect builds a snapshot of the last lookbackDays whole UTC days.
func (c *Collector) Collect(ctx context.Context, tenantID string, lookbackDays int) (*Snapshot, error) {
	if lookbackDays <= 0 {
		lookbackDays = 1
	}

	now := time.Now().UTC()
	end := store.UTCDay(now).AddDate(0, 0, 1)
	start := end.AddDate(0, 0, -lookbackDays)

	snap := &Snapshot{
		TenantID:     tenantID,
		LookbackDays: lookbackDays,
		CollectedAt:  now,
	}

	agg, err := c.store.ReadAggregates(ctx, tenantID, start, end)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: read aggregates")
	}
	snap.TotalTokens = agg.TotalTokens
	snap.TotalRequests = agg.TotalRequests
	snap.TotalCostUSD = agg.TotalCostUSD

	rows, err := c.store.ReadBreakdown(ctx, tenantID, start, end)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: read breakdown")
	}
	snap.Breakdown = rows

	if c.breakers != nil {
		snap.Breakers = c.breakers.Stats()
		for _, b := range snap.Breakers {
			if b.State != resilience.CircuitClosed {
				snap.OpenBreakers++
			}
		}
	}
	if c.drops != nil {
		snap.DroppedRecords = c.drops.Dropped()
	}
	return snap, nil
}
