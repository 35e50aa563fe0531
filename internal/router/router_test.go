package router

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nextier/copilot-engine/internal/model"
	"github.com/nextier/copilot-engine/internal/stages"
)

func result(c model.Classification, p model.Priority, confidence float64, intent string) *model.ClassificationResult {
	return &model.ClassificationResult{
		Classification: c,
		Priority:       p,
		Confidence:     confidence,
		Intent:         intent,
	}
}

func TestDecide_PositiveRoutesToCall(t *testing.T) {
	lead := model.Lead{ID: "l1", Stage: model.StageOutboundSMS}
	dec := Decide(result(model.ClassPositive, model.PriorityHot, 0.95, "wants a call"), lead, Options{})

	assert.Equal(t, model.ActionRouteToCall, dec.Action)
	assert.Equal(t, model.StageHotCallQueue, dec.NextStage)
	assert.Equal(t, model.WorkerSabrina, dec.AssignedWorker)
	assert.True(t, dec.ShouldNotify)
	assert.Equal(t, "HOT LEAD: wants a call", dec.Reason)
}

func TestDecide_BookingMatchesPositive(t *testing.T) {
	lead := model.Lead{Stage: model.StageInboundResponse}
	dec := Decide(result(model.ClassBooking, model.PriorityHot, 0.9, "asked for a slot"), lead, Options{})

	assert.Equal(t, model.ActionRouteToCall, dec.Action)
	assert.Equal(t, model.StageHotCallQueue, dec.NextStage)
	assert.True(t, dec.ShouldNotify)
}

func TestDecide_RescheduleRoutesToCall(t *testing.T) {
	dec := Decide(result(model.ClassReschedule, model.PriorityHot, 0.9, "new time"), model.Lead{Stage: model.StageDiscovery}, Options{})

	assert.Equal(t, model.ActionRouteToCall, dec.Action)
	assert.Equal(t, model.WorkerSabrina, dec.AssignedWorker)
	assert.Equal(t, "Reschedule request: new time", dec.Reason)
}

func TestDecide_QuestionAutoResponds(t *testing.T) {
	dec := Decide(result(model.ClassQuestion, model.PriorityWarm, 0.8, "asked about pricing"), model.Lead{Stage: model.StageInboundResponse}, Options{})

	assert.Equal(t, model.ActionAutoRespond, dec.Action)
	assert.Equal(t, model.StageOutboundSMS, dec.NextStage)
	assert.Equal(t, model.WorkerGianna, dec.AssignedWorker)
	assert.False(t, dec.ShouldNotify)
	assert.Equal(t, "Question answered: asked about pricing", dec.Reason)
}

func TestDecide_ObjectionThreshold(t *testing.T) {
	lead := model.Lead{Stage: model.StageProposal}

	confident := Decide(result(model.ClassObjection, model.PriorityWarm, 0.9, "price concern"), lead, Options{})
	assert.Equal(t, model.ActionAutoRespond, confident.Action)
	assert.Equal(t, model.WorkerGianna, confident.AssignedWorker)
	assert.Equal(t, model.StageProposal, confident.NextStage)
	assert.False(t, confident.ShouldNotify)

	unsure := Decide(result(model.ClassObjection, model.PriorityWarm, 0.5, "price concern"), lead, Options{})
	assert.Equal(t, model.ActionManualReview, unsure.Action)
	assert.True(t, unsure.ShouldNotify)
	assert.Equal(t, "Complex objection needs review: price concern", unsure.Reason)

	// Exactly at the threshold escalates.
	edge := Decide(result(model.ClassObjection, model.PriorityWarm, 0.8, "price concern"), lead, Options{})
	assert.Equal(t, model.ActionManualReview, edge.Action)

	// A lower custom threshold lets the same confidence through.
	custom := Decide(result(model.ClassObjection, model.PriorityWarm, 0.8, "price concern"), lead, Options{ObjectionThreshold: 0.7})
	assert.Equal(t, model.ActionAutoRespond, custom.Action)
}

func TestDecide_AutoReplyLimit(t *testing.T) {
	capped := model.Lead{Stage: model.StageInboundResponse, AutoReplyCount: 5}
	dec := Decide(result(model.ClassQuestion, model.PriorityWarm, 0.8, "asked about pricing"), capped, Options{})

	assert.Equal(t, model.ActionManualReview, dec.Action)
	assert.Equal(t, model.StageInboundResponse, dec.NextStage)
	assert.True(t, dec.ShouldNotify)
	assert.Equal(t, "Auto-reply limit reached after 5 replies: asked about pricing", dec.Reason)

	// One under the cap still auto-responds.
	under := model.Lead{Stage: model.StageInboundResponse, AutoReplyCount: 4}
	dec = Decide(result(model.ClassQuestion, model.PriorityWarm, 0.8, "asked about pricing"), under, Options{})
	assert.Equal(t, model.ActionAutoRespond, dec.Action)

	// Confident objections hit the same ceiling.
	dec = Decide(result(model.ClassObjection, model.PriorityWarm, 0.9, "price concern"), capped, Options{})
	assert.Equal(t, model.ActionManualReview, dec.Action)

	// A custom cap moves the ceiling.
	dec = Decide(result(model.ClassQuestion, model.PriorityWarm, 0.8, "asked about pricing"), capped, Options{MaxAutoReplies: 10})
	assert.Equal(t, model.ActionAutoRespond, dec.Action)

	// Hot classifications are never throttled.
	dec = Decide(result(model.ClassPositive, model.PriorityHot, 0.95, "wants a call"), capped, Options{})
	assert.Equal(t, model.ActionRouteToCall, dec.Action)
}

func TestDecide_NegativeNurtures(t *testing.T) {
	dec := Decide(result(model.ClassNegative, model.PriorityCold, 0.85, "bad timing"), model.Lead{Stage: model.StageOutboundSMS}, Options{})

	assert.Equal(t, model.ActionNurture, dec.Action)
	assert.Equal(t, model.StageNurture, dec.NextStage)
	assert.Equal(t, model.WorkerCathy, dec.AssignedWorker)
	assert.Equal(t, "Not interested now, moved to nurture: bad timing", dec.Reason)
}

func TestDecide_StopOptsOut(t *testing.T) {
	lead := model.Lead{Stage: model.StageOutboundSMS, AssignedWorker: model.WorkerGianna}
	dec := Decide(result(model.ClassStop, model.PriorityHot, 1, "opt out"), lead, Options{})

	assert.Equal(t, model.ActionOptOut, dec.Action)
	assert.Equal(t, model.StageNurture, dec.NextStage)
	assert.Equal(t, model.WorkerGianna, dec.AssignedWorker)
	assert.True(t, dec.ShouldNotify)
	assert.Equal(t, "Opt-out request processed", dec.Reason)
}

func TestDecide_UnclearNeedsReview(t *testing.T) {
	dec := Decide(result(model.ClassUnclear, model.PriorityCold, 0.3, "gibberish"), model.Lead{Stage: model.StageInboundResponse}, Options{})

	assert.Equal(t, model.ActionManualReview, dec.Action)
	assert.Equal(t, model.StageInboundResponse, dec.NextStage)
	assert.False(t, dec.ShouldNotify)
	assert.Equal(t, "Needs review: gibberish", dec.Reason)

	hot := Decide(result(model.ClassSpam, model.PriorityHot, 0.4, "odd"), model.Lead{Stage: model.StageInboundResponse}, Options{})
	assert.True(t, hot.ShouldNotify)
}

func TestDecide_DefaultWorkerFallsBackToCopilot(t *testing.T) {
	dec := Decide(result(model.ClassUnclear, model.PriorityCold, 0, ""), model.Lead{Stage: model.StageDataPrep}, Options{})
	assert.Equal(t, model.WorkerCopilot, dec.AssignedWorker)
}

func TestAssignWorker(t *testing.T) {
	reg := stages.MustLoad()

	w := AssignWorker(reg, model.Lead{Stage: model.StageHotCallQueue}, model.ClassNegative)
	assert.Equal(t, model.WorkerSabrina, w)

	// Unknown stage falls through to the classification.
	w = AssignWorker(reg, model.Lead{Stage: model.Stage("mystery")}, model.ClassQuestion)
	assert.Equal(t, model.WorkerGianna, w)

	w = AssignWorker(nil, model.Lead{}, model.ClassPositive)
	assert.Equal(t, model.WorkerSabrina, w)

	w = AssignWorker(nil, model.Lead{}, model.ClassUnclear)
	assert.Equal(t, model.WorkerCopilot, w)
}
