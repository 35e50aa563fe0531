package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/nextier/copilot-engine/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Days are
// stored as TEXT in "2006-01-02" form so range scans stay lexicographic.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteDayFormat = "2006-01-02"

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS ai_usage_daily (
	tenant_id         TEXT NOT NULL,
	day               TEXT NOT NULL,
	provider          TEXT NOT NULL,
	model             TEXT NOT NULL,
	prompt_tokens     INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	requests          INTEGER NOT NULL DEFAULT 0,
	successes         INTEGER NOT NULL DEFAULT 0,
	failures          INTEGER NOT NULL DEFAULT 0,
	avg_latency_ms    REAL NOT NULL DEFAULT 0,
	cost_usd          REAL NOT NULL DEFAULT 0,
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (tenant_id, day, provider, model)
);

CREATE TABLE IF NOT EXISTS ai_usage_limits (
	tenant_id              TEXT PRIMARY KEY,
	daily_token_limit      INTEGER NOT NULL DEFAULT 0,
	daily_request_limit    INTEGER NOT NULL DEFAULT 0,
	monthly_token_limit    INTEGER NOT NULL DEFAULT 0,
	monthly_request_limit  INTEGER NOT NULL DEFAULT 0,
	monthly_cost_limit_usd REAL NOT NULL DEFAULT 0,
	enabled                INTEGER NOT NULL DEFAULT 0,
	updated_at             DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_ai_usage_daily_tenant_day ON ai_usage_daily(tenant_id, day);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteUpsertDailyUsage = `INSERT INTO ai_usage_daily
	(tenant_id, day, provider, model, prompt_tokens, completion_tokens, requests, successes, failures, avg_latency_ms, cost_usd, updated_at)
VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?, ?, ?, datetime('now'))
ON CONFLICT (tenant_id, day, provider, model) DO UPDATE SET
	prompt_tokens     = prompt_tokens + excluded.prompt_tokens,
	completion_tokens = completion_tokens + excluded.completion_tokens,
	requests          = requests + 1,
	successes         = successes + excluded.successes,
	failures          = failures + excluded.failures,
	avg_latency_ms    = (avg_latency_ms * requests + excluded.avg_latency_ms) / (requests + 1),
	cost_usd          = cost_usd + excluded.cost_usd,
	updated_at        = datetime('now')`

func (s *SQLiteStore) UpsertDailyUsage(ctx context.Context, rec model.UsageRecord, costUSD float64) error {
	recordedAt := rec.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}
	day := UTCDay(recordedAt).Format(sqliteDayFormat)

	successes, failures := int64(0), int64(1)
	if rec.Success {
		successes, failures = 1, 0
	}

	_, err := s.db.ExecContext(ctx, sqliteUpsertDailyUsage,
		rec.TenantID, day, string(rec.Provider), rec.Model,
		int64(rec.PromptTokens), int64(rec.CompletionTokens),
		successes, failures, float64(rec.LatencyMs), costUSD,
	)
	return eris.Wrap(err, "sqlite: upsert daily usage")
}

func (s *SQLiteStore) ReadAggregates(ctx context.Context, tenantID string, start, end time.Time) (model.UsageAggregate, error) {
	var agg model.UsageAggregate
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(prompt_tokens + completion_tokens), 0), COALESCE(SUM(requests), 0), COALESCE(SUM(cost_usd), 0)
		 FROM ai_usage_daily WHERE tenant_id = ? AND day >= ? AND day < ?`,
		tenantID, UTCDay(start).Format(sqliteDayFormat), UTCDay(end).Format(sqliteDayFormat),
	).Scan(&agg.TotalTokens, &agg.TotalRequests, &agg.TotalCostUSD)
	if err != nil {
		return model.UsageAggregate{}, eris.Wrap(err, "sqlite: read aggregates")
	}
	return agg, nil
}

func (s *SQLiteStore) ReadBreakdown(ctx context.Context, tenantID string, start, end time.Time) ([]model.UsageBreakdownRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT provider, model, SUM(prompt_tokens + completion_tokens), SUM(requests), SUM(cost_usd)
		 FROM ai_usage_daily WHERE tenant_id = ? AND day >= ? AND day < ?
		 GROUP BY provider, model ORDER BY SUM(cost_usd) DESC`,
		tenantID, UTCDay(start).Format(sqliteDayFormat), UTCDay(end).Format(sqliteDayFormat),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: read breakdown")
	}
	defer rows.Close()

	var out []model.UsageBreakdownRow
	for rows.Next() {
		var r model.UsageBreakdownRow
		var provider string
		if err := rows.Scan(&provider, &r.Model, &r.Tokens, &r.Requests, &r.CostUSD); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan breakdown row")
		}
		r.Provider = model.Provider(provider)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate breakdown")
	}
	return out, nil
}

func (s *SQLiteStore) GetLimits(ctx context.Context, tenantID string) (*model.UsageLimits, error) {
	limits := model.UsageLimits{TenantID: tenantID}
	err := s.db.QueryRowContext(ctx,
		`SELECT daily_token_limit, daily_request_limit, monthly_token_limit, monthly_request_limit, monthly_cost_limit_usd, enabled
		 FROM ai_usage_limits WHERE tenant_id = ?`,
		tenantID,
	).Scan(
		&limits.DailyTokenLimit, &limits.DailyRequestLimit,
		&limits.MonthlyTokenLimit, &limits.MonthlyRequestLimit,
		&limits.MonthlyCostLimitUSD, &limits.Enabled,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get limits")
	}
	return &limits, nil
}

func (s *SQLiteStore) SetLimits(ctx context.Context, limits model.UsageLimits) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ai_usage_limits
			(tenant_id, daily_token_limit, daily_request_limit, monthly_token_limit, monthly_request_limit, monthly_cost_limit_usd, enabled, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, datetime('now'))
		 ON CONFLICT (tenant_id) DO UPDATE SET
			daily_token_limit      = excluded.daily_token_limit,
			daily_request_limit    = excluded.daily_request_limit,
			monthly_token_limit    = excluded.monthly_token_limit,
			monthly_request_limit  = excluded.monthly_request_limit,
			monthly_cost_limit_usd = excluded.monthly_cost_limit_usd,
			enabled                = excluded.enabled,
			updated_at             = datetime('now')`,
		limits.TenantID,
		limits.DailyTokenLimit, limits.DailyRequestLimit,
		limits.MonthlyTokenLimit, limits.MonthlyRequestLimit,
		limits.MonthlyCostLimitUSD, limits.Enabled,
	)
	return eris.Wrap(err, "sqlite: set limits")
}

// ImportDaily bulk-loads pre-aggregated daily rows inside one
// transaction, accumulating counters on key collision.
func (s *SQLiteStore) ImportDaily(ctx context.Context, dailyRows []DailyUsageRow) (int64, error) {
	if len(dailyRows) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: import begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var n int64
	for _, r := range dailyRows {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO ai_usage_daily
				(tenant_id, day, provider, model, prompt_tokens, completion_tokens, requests, successes, failures, avg_latency_ms, cost_usd, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
			 ON CONFLICT (tenant_id, day, provider, model) DO UPDATE SET
				prompt_tokens     = prompt_tokens + excluded.prompt_tokens,
				completion_tokens = completion_tokens + excluded.completion_tokens,
				requests          = requests + excluded.requests,
				successes         = successes + excluded.successes,
				failures          = failures + excluded.failures,
				avg_latency_ms    = excluded.avg_latency_ms,
				cost_usd          = cost_usd + excluded.cost_usd,
				updated_at        = datetime('now')`,
			r.TenantID, UTCDay(r.Day).Format(sqliteDayFormat), string(r.Provider), r.Model,
			r.PromptTokens, r.CompletionTokens,
			r.Requests, r.Successes, r.Failures,
			r.AvgLatencyMs, r.CostUSD,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: import row for %s/%s", r.TenantID, r.Model)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: import commit")
	}
	return n, nil
}
