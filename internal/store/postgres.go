package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/nextier/copilot-engine/internal/db"
	"github.com/nextier/copilot-engine/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot-path store operations.
var preparedStatements = map[string]string{
	"upsert_daily_usage": upsertDailyUsageSQL,
	"read_aggregates":    readAggregatesSQL,
	"read_breakdown":     readBreakdownSQL,
	"get_limits":         getLimitsSQL,
	"set_limits":         setLimitsSQL,
}

const upsertDailyUsageSQL = `INSERT INTO ai_usage_daily
	(tenant_id, day, provider, model, prompt_tokens, completion_tokens, requests, successes, failures, avg_latency_ms, cost_usd, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $8, $9, $10, now())
ON CONFLICT (tenant_id, day, provider, model) DO UPDATE SET
	prompt_tokens     = ai_usage_daily.prompt_tokens + EXCLUDED.prompt_tokens,
	completion_tokens = ai_usage_daily.completion_tokens + EXCLUDED.completion_tokens,
	requests          = ai_usage_daily.requests + 1,
	successes         = ai_usage_daily.successes + EXCLUDED.successes,
	failures          = ai_usage_daily.failures + EXCLUDED.failures,
	avg_latency_ms    = (ai_usage_daily.avg_latency_ms * ai_usage_daily.requests + EXCLUDED.avg_latency_ms) / (ai_usage_daily.requests + 1),
	cost_usd          = ai_usage_daily.cost_usd + EXCLUDED.cost_usd,
	updated_at        = now()`

const readAggregatesSQL = `SELECT
	COALESCE(SUM(prompt_tokens + completion_tokens), 0),
	COALESCE(SUM(requests), 0),
	COALESCE(SUM(cost_usd), 0)
FROM ai_usage_daily
WHERE tenant_id = $1 AND day >= $2 AND day < $3`

const readBreakdownSQL = `SELECT provider, model,
	SUM(prompt_tokens + completion_tokens),
	SUM(requests),
	SUM(cost_usd)
FROM ai_usage_daily
WHERE tenant_id = $1 AND day >= $2 AND day < $3
GROUP BY provider, model
ORDER BY SUM(cost_usd) DESC`

const getLimitsSQL = `SELECT daily_token_limit, daily_request_limit, monthly_token_limit, monthly_request_limit, monthly_cost_limit_usd, enabled
FROM ai_usage_limits
WHERE tenant_id = $1`

const setLimitsSQL = `INSERT INTO ai_usage_limits
	(tenant_id, daily_token_limit, daily_request_limit, monthly_token_limit, monthly_request_limit, monthly_cost_limit_usd, enabled, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now())
ON CONFLICT (tenant_id) DO UPDATE SET
	daily_token_limit      = EXCLUDED.daily_token_limit,
	daily_request_limit    = EXCLUDED.daily_request_limit,
	monthly_token_limit    = EXCLUDED.monthly_token_limit,
	monthly_request_limit  = EXCLUDED.monthly_request_limit,
	monthly_cost_limit_usd = EXCLUDED.monthly_cost_limit_usd,
	enabled                = EXCLUDED.enabled,
	updated_at             = now()`

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need
// direct query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS ai_usage_daily (
	tenant_id         TEXT NOT NULL,
	day               DATE NOT NULL,
	provider          TEXT NOT NULL,
	model             TEXT NOT NULL,
	prompt_tokens     BIGINT NOT NULL DEFAULT 0,
	completion_tokens BIGINT NOT NULL DEFAULT 0,
	requests          BIGINT NOT NULL DEFAULT 0,
	successes         BIGINT NOT NULL DEFAULT 0,
	failures          BIGINT NOT NULL DEFAULT 0,
	avg_latency_ms    DOUBLE PRECISION NOT NULL DEFAULT 0,
	cost_usd          DOUBLE PRECISION NOT NULL DEFAULT 0,
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (tenant_id, day, provider, model)
);

CREATE TABLE IF NOT EXISTS ai_usage_limits (
	tenant_id              TEXT PRIMARY KEY,
	daily_token_limit      BIGINT NOT NULL DEFAULT 0,
	daily_request_limit    BIGINT NOT NULL DEFAULT 0,
	monthly_token_limit    BIGINT NOT NULL DEFAULT 0,
	monthly_request_limit  BIGINT NOT NULL DEFAULT 0,
	monthly_cost_limit_usd DOUBLE PRECISION NOT NULL DEFAULT 0,
	enabled                BOOLEAN NOT NULL DEFAULT false,
	updated_at             TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_ai_usage_daily_tenant_day ON ai_usage_daily(tenant_id, day);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) UpsertDailyUsage(ctx context.Context, rec model.UsageRecord, costUSD float64) error {
	recordedAt := rec.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}
	day := UTCDay(recordedAt)

	successes, failures := int64(0), int64(1)
	if rec.Success {
		successes, failures = 1, 0
	}

	_, err := s.pool.Exec(ctx, upsertDailyUsageSQL,
		rec.TenantID, day, string(rec.Provider), rec.Model,
		int64(rec.PromptTokens), int64(rec.CompletionTokens),
		successes, failures, float64(rec.LatencyMs), costUSD,
	)
	return eris.Wrap(err, "postgres: upsert daily usage")
}

func (s *PostgresStore) ReadAggregates(ctx context.Context, tenantID string, start, end time.Time) (model.UsageAggregate, error) {
	var agg model.UsageAggregate
	err := s.pool.QueryRow(ctx, readAggregatesSQL, tenantID, start, end).
		Scan(&agg.TotalTokens, &agg.TotalRequests, &agg.TotalCostUSD)
	if err != nil {
		return model.UsageAggregate{}, eris.Wrap(err, "postgres: read aggregates")
	}
	return agg, nil
}

func (s *PostgresStore) ReadBreakdown(ctx context.Context, tenantID string, start, end time.Time) ([]model.UsageBreakdownRow, error) {
	rows, err := s.pool.Query(ctx, readBreakdownSQL, tenantID, start, end)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: read breakdown")
	}
	defer rows.Close()

	var out []model.UsageBreakdownRow
	for rows.Next() {
		var r model.UsageBreakdownRow
		var provider string
		if err := rows.Scan(&provider, &r.Model, &r.Tokens, &r.Requests, &r.CostUSD); err != nil {
			return nil, eris.Wrap(err, "postgres: scan breakdown row")
		}
		r.Provider = model.Provider(provider)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate breakdown")
	}
	return out, nil
}

func (s *PostgresStore) GetLimits(ctx context.Context, tenantID string) (*model.UsageLimits, error) {
	limits := model.UsageLimits{TenantID: tenantID}
	err := s.pool.QueryRow(ctx, getLimitsSQL, tenantID).Scan(
		&limits.DailyTokenLimit, &limits.DailyRequestLimit,
		&limits.MonthlyTokenLimit, &limits.MonthlyRequestLimit,
		&limits.MonthlyCostLimitUSD, &limits.Enabled,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get limits")
	}
	return &limits, nil
}

func (s *PostgresStore) SetLimits(ctx context.Context, limits model.UsageLimits) error {
	_, err := s.pool.Exec(ctx, setLimitsSQL,
		limits.TenantID,
		limits.DailyTokenLimit, limits.DailyRequestLimit,
		limits.MonthlyTokenLimit, limits.MonthlyRequestLimit,
		limits.MonthlyCostLimitUSD, limits.Enabled,
	)
	return eris.Wrap(err, "postgres: set limits")
}

// ImportDaily bulk-loads pre-aggregated daily rows, accumulating
// counters when a row already exists for the same key. Used for
// backfilling history exported from another system.
func (s *PostgresStore) ImportDaily(ctx context.Context, dailyRows []DailyUsageRow) (int64, error) {
	rows := make([][]any, 0, len(dailyRows))
	for _, r := range dailyRows {
		rows = append(rows, []any{
			r.TenantID, UTCDay(r.Day), string(r.Provider), r.Model,
			r.PromptTokens, r.CompletionTokens,
			r.Requests, r.Successes, r.Failures,
			r.AvgLatencyMs, r.CostUSD, time.Now().UTC(),
		})
	}

	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "ai_usage_daily",
		Columns:      []string{"tenant_id", "day", "provider", "model", "prompt_tokens", "completion_tokens", "requests", "successes", "failures", "avg_latency_ms", "cost_usd", "updated_at"},
		ConflictKeys: []string{"tenant_id", "day", "provider", "model"},
		IncrementCols: []string{
			"prompt_tokens", "completion_tokens",
			"requests", "successes", "failures", "cost_usd",
		},
	}, rows)
}
