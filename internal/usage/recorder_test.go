package usage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextier/copilot-engine/internal/model"
)

func TestRecorder_DrainsToStore(t *testing.T) {
	tr, _ := newTestTracker(t)
	rec := NewRecorder(tr, 16)

	for i := 0; i < 5; i++ {
		rec.Record(model.UsageRecord{
			TenantID:     "t1",
			Provider:     model.ProviderOpenAI,
			Model:        "gpt-4o-mini",
			PromptTokens: 100,
			Success:      true,
			RecordedAt:   testNow,
		})
	}
	rec.Close()

	sum, err := tr.Summary(context.Background(), "t1", "day")
	require.NoError(t, err)
	assert.Equal(t, int64(5), sum.TotalRequests)
	assert.Equal(t, int64(0), rec.Dropped())
}

func TestRecorder_RecordAfterCloseDrops(t *testing.T) {
	tr, _ := newTestTracker(t)
	rec := NewRecorder(tr, 16)
	rec.Close()

	rec.Record(model.UsageRecord{TenantID: "t1"})
	assert.Equal(t, int64(1), rec.Dropped())
}

// blockingTracker wedges the worker so the queue can be filled.
type blockingStore struct {
	stubStore
	started chan struct{}
	release chan struct{}
}

func (s *blockingStore) UpsertDailyUsage(context.Context, model.UsageRecord, float64) error {
	select {
	case s.started <- struct{}{}:
	default:
	}
	<-s.release
	return nil
}

func TestRecorder_FullQueueDropsWithoutBlocking(t *testing.T) {
	bs := &blockingStore{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	tr := NewTracker(bs, MustPricing())
	rec := NewRecorder(tr, 1)

	// First record reaches the worker and blocks inside the store.
	rec.Record(model.UsageRecord{TenantID: "t1", Model: "gpt-4o-mini"})
	<-bs.started

	// Second fills the queue, third must drop immediately.
	rec.Record(model.UsageRecord{TenantID: "t1", Model: "gpt-4o-mini"})
	rec.Record(model.UsageRecord{TenantID: "t1", Model: "gpt-4o-mini"})
	assert.Equal(t, int64(1), rec.Dropped())

	close(bs.release)
	rec.Close()
}
