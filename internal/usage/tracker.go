package usage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/nextier/copilot-engine/internal/model"
	"github.com/nextier/copilot-engine/internal/store"
)

// Limit breach reasons, checked in this order.
const (
	ReasonDailyTokens     = "Daily token limit exceeded"
	ReasonDailyRequests   = "Daily request limit exceeded"
	ReasonMonthlyTokens   = "Monthly token limit exceeded"
	ReasonMonthlyRequests = "Monthly request limit exceeded"
	ReasonMonthlyCost     = "Monthly cost limit exceeded"
)

// Tracker meters provider usage against the store and answers quota
// checks. Persistence failures never surface to callers: tracking is
// best-effort and limit checks fail open.
type Tracker struct {
	store  store.Store
	prices *PriceTable

	nowFunc func() time.Time
}

// NewTracker creates a Tracker over the given store and price table.
func NewTracker(st store.Store, prices *PriceTable) *Tracker {
	return &Tracker{
		store:   st,
		prices:  prices,
		nowFunc: time.Now,
	}
}

// Track prices one provider call and folds it into the tenant's daily
// aggregate. Store errors are logged and swallowed.
func (t *Tracker) Track(ctx context.Context, rec model.UsageRecord) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = t.nowFunc().UTC()
	}

	cost := t.prices.Cost(rec.Model, rec.PromptTokens, rec.CompletionTokens)

	if err := t.store.UpsertDailyUsage(ctx, rec, cost); err != nil {
		zap.L().Warn("usage: failed to persist record",
			zap.String("tenant_id", rec.TenantID),
			zap.String("provider", string(rec.Provider)),
			zap.String("model", rec.Model),
			zap.Error(err),
		)
	}
}

// CheckLimits reports whether the tenant may make another provider
// call. Checks run in a fixed order: daily tokens, daily requests,
// monthly tokens, monthly requests, monthly cost. A ceiling of zero is
// not enforced. Store errors fail open so an outage in the metering
// path never blocks outreach.
func (t *Tracker) CheckLimits(ctx context.Context, tenantID string) model.LimitCheck {
	allow := model.LimitCheck{Allowed: true}

	limits, err := t.store.GetLimits(ctx, tenantID)
	if err != nil {
		zap.L().Warn("usage: limit lookup failed, allowing request",
			zap.String("tenant_id", tenantID), zap.Error(err))
		return allow
	}
	if limits == nil || !limits.Enabled {
		return allow
	}

	now := t.nowFunc()
	dayStart, dayEnd := DayBounds(now)
	monthStart, monthEnd := MonthBounds(now)

	daily, err := t.store.ReadAggregates(ctx, tenantID, dayStart, dayEnd)
	if err != nil {
		zap.L().Warn("usage: daily aggregate read failed, allowing request",
			zap.String("tenant_id", tenantID), zap.Error(err))
		return allow
	}
	monthly, err := t.store.ReadAggregates(ctx, tenantID, monthStart, monthEnd)
	if err != nil {
		zap.L().Warn("usage: monthly aggregate read failed, allowing request",
			zap.String("tenant_id", tenantID), zap.Error(err))
		return allow
	}

	deny := func(reason string, usage model.UsageAggregate) model.LimitCheck {
		return model.LimitCheck{
			Allowed:     false,
			Reason:      reason,
			Usage:       usage,
			Limits:      *limits,
			PercentUsed: 100,
		}
	}

	switch {
	case limits.DailyTokenLimit > 0 && daily.TotalTokens >= limits.DailyTokenLimit:
		return deny(ReasonDailyTokens, daily)
	case limits.DailyRequestLimit > 0 && daily.TotalRequests >= limits.DailyRequestLimit:
		return deny(ReasonDailyRequests, daily)
	case limits.MonthlyTokenLimit > 0 && monthly.TotalTokens >= limits.MonthlyTokenLimit:
		return deny(ReasonMonthlyTokens, monthly)
	case limits.MonthlyRequestLimit > 0 && monthly.TotalRequests >= limits.MonthlyRequestLimit:
		return deny(ReasonMonthlyRequests, monthly)
	case limits.MonthlyCostLimitUSD > 0 && monthly.TotalCostUSD >= limits.MonthlyCostLimitUSD:
		return deny(ReasonMonthlyCost, monthly)
	}

	// Percent used reflects how close the tenant is to the monthly
	// token and cost ceilings; request counts do not contribute.
	var pct float64
	if limits.MonthlyTokenLimit > 0 {
		pct = float64(monthly.TotalTokens) / float64(limits.MonthlyTokenLimit) * 100
	}
	if limits.MonthlyCostLimitUSD > 0 {
		if costPct := monthly.TotalCostUSD / limits.MonthlyCostLimitUSD * 100; costPct > pct {
			pct = costPct
		}
	}

	return model.LimitCheck{
		Allowed:     true,
		Usage:       monthly,
		Limits:      *limits,
		PercentUsed: pct,
	}
}

// Summary reports the tenant's usage for the current UTC day or month,
// with a per-provider-per-model breakdown.
func (t *Tracker) Summary(ctx context.Context, tenantID, period string) (*model.UsageSummary, error) {
	now := t.nowFunc()

	var start, end time.Time
	switch period {
	case "day":
		start, end = DayBounds(now)
	case "month":
		start, end = MonthBounds(now)
	default:
		return nil, eris.Errorf("usage: unknown period %q (want day or month)", period)
	}

	agg, err := t.store.ReadAggregates(ctx, tenantID, start, end)
	if err != nil {
		return nil, eris.Wrap(err, "usage: summary aggregates")
	}
	breakdown, err := t.store.ReadBreakdown(ctx, tenantID, start, end)
	if err != nil {
		return nil, eris.Wrap(err, "usage: summary breakdown")
	}

	return &model.UsageSummary{
		TenantID:      tenantID,
		Period:        period,
		TotalTokens:   agg.TotalTokens,
		TotalRequests: agg.TotalRequests,
		TotalCostUSD:  agg.TotalCostUSD,
		Breakdown:     breakdown,
	}, nil
}

// SetLimits stores the tenant's quota ceilings.
func (t *Tracker) SetLimits(ctx context.Context, limits model.UsageLimits) error {
	if limits.TenantID == "" {
		return eris.New("usage: limits require a tenant id")
	}
	return t.store.SetLimits(ctx, limits)
}

// DayBounds returns [start, end) of t's UTC day.
func DayBounds(t time.Time) (time.Time, time.Time) {
	start := store.UTCDay(t)
	return start, start.AddDate(0, 0, 1)
}

// MonthBounds returns [start, end) of t's UTC month.
func MonthBounds(t time.Time) (time.Time, time.Time) {
	u := t.UTC()
	start := time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}
