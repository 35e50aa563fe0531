package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextier/copilot-engine/internal/cadence"
	"github.com/nextier/copilot-engine/internal/model"
)

// execute runs the root command with args against a temp working
// directory and temp sqlite store, capturing stdout.
func execute(t *testing.T, args ...string) string {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("NEXTIER_STORE_DATABASE_URL", filepath.Join(t.TempDir(), "usage.db"))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestCadenceStatusCommand(t *testing.T) {
	out := execute(t, "cadence", "status", "--loop-start", "2020-01-01", "--touches", "9")

	var st cadence.State
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, 30, st.CurrentDay)
	assert.True(t, st.Completed)
	assert.Equal(t, 9, st.TouchesSent)
}

func TestCadencePlanCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "leads.json")
	leads := []model.Lead{
		{ID: "a", Stage: model.StageOutboundSMS, LoopDay: 2},
		{ID: "b", Stage: model.StageOutboundSMS, LoopDay: 2},
		{ID: "c", Stage: model.StageNurture, LoopDay: 2},
	}
	data, err := json.Marshal(leads)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	out := execute(t, "cadence", "plan", path)

	var plan []cadence.PlanEntry
	require.NoError(t, json.Unmarshal([]byte(out), &plan))
	require.Len(t, plan, 1)
	assert.Equal(t, 3, plan[0].Day)
	assert.ElementsMatch(t, []string{"a", "b"}, plan[0].LeadIDs)
}

func TestStagesShowCommand(t *testing.T) {
	out := execute(t, "stages", "show", "hot_call_queue")

	var c struct {
		Stage         model.Stage  `json:"stage"`
		PrimaryWorker model.Worker `json:"primary_worker"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &c))
	assert.Equal(t, model.StageHotCallQueue, c.Stage)
	assert.Equal(t, model.WorkerSabrina, c.PrimaryWorker)
}

func TestStagesListCommand(t *testing.T) {
	out := execute(t, "stages", "list")

	assert.Contains(t, out, "hot_call_queue")
	assert.Contains(t, out, "GIANNA")
	assert.Contains(t, out, "SABRINA - Closer")
}

func TestUsageLimitsRoundTrip(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("NEXTIER_STORE_DATABASE_URL", filepath.Join(t.TempDir(), "usage.db"))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)

	rootCmd.SetArgs([]string{"usage", "limits", "set", "--tenant", "acme", "--daily-tokens", "1000"})
	require.NoError(t, rootCmd.Execute())

	out.Reset()
	rootCmd.SetArgs([]string{"usage", "limits", "get", "--tenant", "acme"})
	require.NoError(t, rootCmd.Execute())

	var limits model.UsageLimits
	require.NoError(t, json.Unmarshal(out.Bytes(), &limits))
	assert.Equal(t, "acme", limits.TenantID)
	assert.Equal(t, int64(1000), limits.DailyTokenLimit)
	assert.True(t, limits.Enabled)
}

func TestBreakersCommand(t *testing.T) {
	out := execute(t, "breakers")

	assert.Contains(t, out, "openai")
	assert.Contains(t, out, "perplexity")
	assert.Contains(t, out, "anthropic")
}

func TestMigrateCommand(t *testing.T) {
	out := execute(t, "migrate")
	assert.Contains(t, out, "migrated sqlite store")
}
