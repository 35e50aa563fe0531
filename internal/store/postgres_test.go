package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextier/copilot-engine/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_UpsertDailyUsage(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	at := time.Date(2026, 8, 15, 10, 30, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO ai_usage_daily`).
		WithArgs("t1", UTCDay(at), "openai", "gpt-4o-mini", int64(100), int64(50), int64(1), int64(0), float64(120), 0.01).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertDailyUsage(context.Background(), model.UsageRecord{
		TenantID:         "t1",
		Provider:         model.ProviderOpenAI,
		Model:            "gpt-4o-mini",
		PromptTokens:     100,
		CompletionTokens: 50,
		LatencyMs:        120,
		Success:          true,
		RecordedAt:       at,
	}, 0.01)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertDailyUsage_FailureCountsAsFailure(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	at := time.Date(2026, 8, 15, 10, 30, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO ai_usage_daily`).
		WithArgs("t1", UTCDay(at), "openai", "gpt-4o-mini", int64(0), int64(0), int64(0), int64(1), float64(50), 0.0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertDailyUsage(context.Background(), model.UsageRecord{
		TenantID:   "t1",
		Provider:   model.ProviderOpenAI,
		Model:      "gpt-4o-mini",
		LatencyMs:  50,
		Success:    false,
		RecordedAt: at,
	}, 0.0)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReadAggregates(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	mock.ExpectQuery(`SELECT .* FROM ai_usage_daily`).
		WithArgs("t1", start, end).
		WillReturnRows(pgxmock.NewRows([]string{"tokens", "requests", "cost"}).
			AddRow(int64(4500), int64(30), 1.5))

	agg, err := s.ReadAggregates(context.Background(), "t1", start, end)
	require.NoError(t, err)
	assert.Equal(t, int64(4500), agg.TotalTokens)
	assert.Equal(t, int64(30), agg.TotalRequests)
	assert.InDelta(t, 1.5, agg.TotalCostUSD, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReadBreakdown(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	mock.ExpectQuery(`SELECT provider, model`).
		WithArgs("t1", start, end).
		WillReturnRows(pgxmock.NewRows([]string{"provider", "model", "tokens", "requests", "cost"}).
			AddRow("anthropic", "claude-3-opus", int64(1000), int64(5), 2.5).
			AddRow("openai", "gpt-4o-mini", int64(3000), int64(20), 0.1))

	rows, err := s.ReadBreakdown(context.Background(), "t1", start, end)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, model.ProviderAnthropic, rows[0].Provider)
	assert.Equal(t, int64(20), rows[1].Requests)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetLimits_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT daily_token_limit`).
		WithArgs("t1").
		WillReturnError(pgx.ErrNoRows)

	limits, err := s.GetLimits(context.Background(), "t1")
	require.NoError(t, err)
	assert.Nil(t, limits)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetLimits_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT daily_token_limit`).
		WithArgs("t1").
		WillReturnRows(pgxmock.NewRows([]string{"dt", "dr", "mt", "mr", "mc", "enabled"}).
			AddRow(int64(50000), int64(0), int64(1000000), int64(0), 25.0, true))

	limits, err := s.GetLimits(context.Background(), "t1")
	require.NoError(t, err)
	require.NotNil(t, limits)
	assert.Equal(t, "t1", limits.TenantID)
	assert.Equal(t, int64(50000), limits.DailyTokenLimit)
	assert.True(t, limits.Enabled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetLimits(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO ai_usage_limits`).
		WithArgs("t1", int64(50000), int64(0), int64(1000000), int64(0), 25.0, true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SetLimits(context.Background(), model.UsageLimits{
		TenantID:            "t1",
		DailyTokenLimit:     50000,
		MonthlyTokenLimit:   1000000,
		MonthlyCostLimitUSD: 25.0,
		Enabled:             true,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ImplementsBulkImporter(t *testing.T) {
	var s Store = &PostgresStore{}
	_, ok := s.(BulkImporter)
	assert.True(t, ok)
}
