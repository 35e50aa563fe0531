package model

import "time"

// Provider identifies an upstream AI provider.
type Provider string

const (
	ProviderOpenAI     Provider = "openai"
	ProviderPerplexity Provider = "perplexity"
	ProviderAnthropic  Provider = "anthropic"
)

// UsageRecord is an immutable fact about one provider call, used to
// derive daily and monthly aggregates.
type UsageRecord struct {
	ID               string    `json:"id"`
	TenantID         string    `json:"tenant_id"`
	Provider         Provider  `json:"provider"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	LatencyMs        int       `json:"latency_ms"`
	Success          bool      `json:"success"`
	RecordedAt       time.Time `json:"recorded_at"`
}

// TotalTokens returns prompt plus completion tokens.
func (r UsageRecord) TotalTokens() int {
	return r.PromptTokens + r.CompletionTokens
}

// UsageLimits holds per-tenant quota ceilings. A zero value for any
// ceiling means that ceiling is not enforced.
type UsageLimits struct {
	TenantID            string  `json:"tenant_id"`
	DailyTokenLimit     int64   `json:"daily_token_limit,omitempty"`
	DailyRequestLimit   int64   `json:"daily_request_limit,omitempty"`
	MonthlyTokenLimit   int64   `json:"monthly_token_limit,omitempty"`
	MonthlyRequestLimit int64   `json:"monthly_request_limit,omitempty"`
	MonthlyCostLimitUSD float64 `json:"monthly_cost_limit_usd,omitempty"`
	Enabled             bool    `json:"enabled"`
}

// UsageAggregate is a rolled-up view of usage over a period.
type UsageAggregate struct {
	TotalTokens   int64   `json:"total_tokens"`
	TotalRequests int64   `json:"total_requests"`
	TotalCostUSD  float64 `json:"total_cost_usd"`
}

// UsageBreakdownRow is a per-provider-per-model slice of an aggregate.
type UsageBreakdownRow struct {
	Provider Provider `json:"provider"`
	Model    string   `json:"model"`
	Tokens   int64    `json:"tokens"`
	Requests int64    `json:"requests"`
	CostUSD  float64  `json:"cost_usd"`
}

// UsageSummary reports a tenant's usage over a day or month.
type UsageSummary struct {
	TenantID      string              `json:"tenant_id"`
	Period        string              `json:"period"` // "day" or "month"
	TotalTokens   int64               `json:"total_tokens"`
	TotalRequests int64               `json:"total_requests"`
	TotalCostUSD  float64             `json:"total_cost_usd"`
	Breakdown     []UsageBreakdownRow `json:"breakdown"`
}

// LimitCheck is the outcome of a quota check before a provider call.
type LimitCheck struct {
	Allowed     bool           `json:"allowed"`
	Reason      string         `json:"reason,omitempty"`
	Usage       UsageAggregate `json:"usage"`
	Limits      UsageLimits    `json:"limits"`
	PercentUsed float64        `json:"percent_used"`
}
