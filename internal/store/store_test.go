package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextier/copilot-engine/internal/config"
)

func TestUTCDay(t *testing.T) {
	loc := time.FixedZone("UTC-7", -7*3600)
	// 23:30 local on Aug 14 is already Aug 15 in UTC.
	in := time.Date(2026, 8, 14, 23, 30, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC), UTCDay(in))

	midnight := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, midnight, UTCDay(midnight))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: "oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}

func TestOpen_DefaultsToSQLite(t *testing.T) {
	st, err := Open(context.Background(), config.StoreConfig{DatabaseURL: t.TempDir() + "/open.db"})
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	require.NoError(t, st.Close())
}
