package router

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/nextier/copilot-engine/internal/model"
)

// NewQueueItem builds a hot call queue entry from a routing decision.
func NewQueueItem(lead model.Lead, dec *model.Decision, now time.Time) model.HotCallQueueItem {
	item := model.HotCallQueueItem{
		ID:      uuid.NewString(),
		LeadID:  lead.ID,
		Reason:  dec.Reason,
		AddedAt: now.UTC(),
	}
	if dec.Classification != nil {
		item.Classification = dec.Classification.Classification
		item.Priority = dec.Classification.Priority
	}
	return item
}

// SortQueue orders queue items HOT before WARM before COLD and oldest
// first within a tier. It returns a new slice; the input stays as-is.
func SortQueue(items []model.HotCallQueueItem) []model.HotCallQueueItem {
	out := make([]model.HotCallQueueItem, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority.Rank() != out[j].Priority.Rank() {
			return out[i].Priority.Rank() < out[j].Priority.Rank()
		}
		return out[i].AddedAt.Before(out[j].AddedAt)
	})
	return out
}

// WorkerLoad counts a worker's queue entries per priority tier.
type WorkerLoad struct {
	Active int `json:"active"`
	Hot    int `json:"hot"`
	Warm   int `json:"warm"`
	Cold   int `json:"cold"`
}

// LoadFor tallies queue load for the leads assigned to one worker.
func LoadFor(worker model.Worker, leads []model.Lead) WorkerLoad {
	var load WorkerLoad
	for _, l := range leads {
		if l.AssignedWorker != worker {
			continue
		}
		load.Active++
		switch l.Priority {
		case model.PriorityHot:
			load.Hot++
		case model.PriorityWarm:
			load.Warm++
		case model.PriorityCold:
			load.Cold++
		}
	}
	return load
}
