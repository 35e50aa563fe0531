package router

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextier/copilot-engine/internal/model"
)

func queueItem(id string, p model.Priority, addedAt time.Time) model.HotCallQueueItem {
	return model.HotCallQueueItem{ID: id, LeadID: "lead-" + id, Priority: p, AddedAt: addedAt}
}

func TestNewQueueItem(t *testing.T) {
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	lead := model.Lead{ID: "l1", Stage: model.StageOutboundSMS}
	dec := Decide(result(model.ClassPositive, model.PriorityHot, 0.95, "wants a call"), lead, Options{})

	item := NewQueueItem(lead, dec, now)

	assert.NotEmpty(t, item.ID)
	assert.Equal(t, "l1", item.LeadID)
	assert.Equal(t, model.ClassPositive, item.Classification)
	assert.Equal(t, model.PriorityHot, item.Priority)
	assert.Equal(t, "HOT LEAD: wants a call", item.Reason)
	assert.Equal(t, now, item.AddedAt)
}

func TestSortQueue(t *testing.T) {
	base := time.Date(2026, 8, 15, 9, 0, 0, 0, time.UTC)
	items := []model.HotCallQueueItem{
		queueItem("cold", model.PriorityCold, base),
		queueItem("warm-late", model.PriorityWarm, base.Add(2*time.Hour)),
		queueItem("hot-late", model.PriorityHot, base.Add(3*time.Hour)),
		queueItem("hot-early", model.PriorityHot, base.Add(time.Hour)),
		queueItem("warm-early", model.PriorityWarm, base),
	}

	sorted := SortQueue(items)

	var ids []string
	for _, it := range sorted {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []string{"hot-early", "hot-late", "warm-early", "warm-late", "cold"}, ids)

	// Input order is preserved.
	assert.Equal(t, "cold", items[0].ID)
}

func TestLoadFor(t *testing.T) {
	leads := []model.Lead{
		{ID: "a", AssignedWorker: model.WorkerSabrina, Priority: model.PriorityHot},
		{ID: "b", AssignedWorker: model.WorkerSabrina, Priority: model.PriorityWarm},
		{ID: "c", AssignedWorker: model.WorkerSabrina, Priority: model.PriorityCold},
		{ID: "d", AssignedWorker: model.WorkerGianna, Priority: model.PriorityHot},
	}

	load := LoadFor(model.WorkerSabrina, leads)
	assert.Equal(t, WorkerLoad{Active: 3, Hot: 1, Warm: 1, Cold: 1}, load)

	assert.Equal(t, WorkerLoad{}, LoadFor(model.WorkerCathy, leads))
}

func TestAggregate(t *testing.T) {
	lead := model.Lead{Stage: model.StageInboundResponse}
	decisions := []*model.Decision{
		Decide(result(model.ClassPositive, model.PriorityHot, 0.9, "call"), lead, Options{}),
		Decide(result(model.ClassQuestion, model.PriorityWarm, 0.8, "pricing"), lead, Options{}),
		Decide(result(model.ClassQuestion, model.PriorityWarm, 0.7, "timing"), lead, Options{}),
		Decide(result(model.ClassUnclear, model.PriorityCold, 0.2, "noise"), lead, Options{}),
	}

	a := Aggregate(decisions)

	assert.Equal(t, 4, a.Total)
	assert.Equal(t, 1, a.ByAction[model.ActionRouteToCall])
	assert.Equal(t, 2, a.ByAction[model.ActionAutoRespond])
	assert.Equal(t, 1, a.ByAction[model.ActionManualReview])
	assert.Equal(t, 0, a.ByAction[model.ActionOptOut])
	assert.Equal(t, 2, a.ByClassification[model.ClassQuestion])
	assert.Equal(t, 0, a.ByClassification[model.ClassStop])
	assert.Equal(t, 1, a.ByWorker[model.WorkerSabrina])
	assert.Equal(t, 2, a.ByWorker[model.WorkerGianna])
	assert.InDelta(t, 50.0, a.AutoRespondRate, 1e-9)
	assert.InDelta(t, 25.0, a.RouteToCallRate, 1e-9)
	assert.InDelta(t, 0.65, a.AverageConfidence, 1e-9)

	// Every key is present even with no decisions.
	empty := Aggregate(nil)
	require.Len(t, empty.ByAction, len(model.Actions))
	require.Len(t, empty.ByClassification, len(model.Classifications))
	assert.Zero(t, empty.AutoRespondRate)
	assert.Zero(t, empty.AverageConfidence)
}
