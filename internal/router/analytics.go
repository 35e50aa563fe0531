package router

import "github.com/nextier/copilot-engine/internal/model"

// Analytics summarizes a batch of routing decisions for reporting.
type Analytics struct {
	Total             int                          `json:"total"`
	ByAction          map[model.Action]int         `json:"by_action"`
	ByClassification  map[model.Classification]int `json:"by_classification"`
	ByWorker          map[model.Worker]int         `json:"by_worker"`
	AutoRespondRate   float64                      `json:"auto_respond_rate"`
	RouteToCallRate   float64                      `json:"route_to_call_rate"`
	AverageConfidence float64                      `json:"average_confidence"`
}

// Aggregate computes decision analytics. Every action, classification,
// and worker key is present in the maps even at zero, so consumers can
// iterate without nil checks. Rates are percentages.
func Aggregate(decisions []*model.Decision) Analytics {
	a := Analytics{
		Total:            len(decisions),
		ByAction:         make(map[model.Action]int, len(model.Actions)),
		ByClassification: make(map[model.Classification]int, len(model.Classifications)),
		ByWorker:         make(map[model.Worker]int, 4),
	}
	for _, act := range model.Actions {
		a.ByAction[act] = 0
	}
	for _, c := range model.Classifications {
		a.ByClassification[c] = 0
	}
	for _, w := range []model.Worker{model.WorkerGianna, model.WorkerCathy, model.WorkerSabrina, model.WorkerCopilot} {
		a.ByWorker[w] = 0
	}

	var confidence float64
	for _, d := range decisions {
		a.ByAction[d.Action]++
		a.ByWorker[d.AssignedWorker]++
		if d.Classification != nil {
			a.ByClassification[d.Classification.Classification]++
			confidence += d.Classification.Confidence
		}
	}

	// Guard the zero-decision case so rates stay defined.
	total := float64(a.Total)
	if total == 0 {
		total = 1
	}
	a.AutoRespondRate = float64(a.ByAction[model.ActionAutoRespond]) / total * 100
	a.RouteToCallRate = float64(a.ByAction[model.ActionRouteToCall]) / total * 100
	a.AverageConfidence = confidence / total
	return a
}
