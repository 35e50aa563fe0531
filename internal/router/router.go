// Package router turns a classification into an operational decision:
// which action fires, where the lead moves, who owns it, and whether a
// human gets pinged. Decisions are pure functions of their inputs so
// the same message always routes the same way.
package router

import (
	"fmt"

	"github.com/nextier/copilot-engine/internal/model"
	"github.com/nextier/copilot-engine/internal/stages"
)

// DefaultObjectionThreshold is the confidence above which objections are
// answered automatically instead of escalated.
const DefaultObjectionThreshold = 0.8

// DefaultMaxAutoReplies caps automated replies per lead thread before a
// human has to take over.
const DefaultMaxAutoReplies = 5

// Options tune routing behavior.
type Options struct {
	// ObjectionThreshold overrides DefaultObjectionThreshold when > 0.
	ObjectionThreshold float64
	// MaxAutoReplies overrides DefaultMaxAutoReplies when > 0.
	MaxAutoReplies int
}

func (o Options) objectionThreshold() float64 {
	if o.ObjectionThreshold > 0 {
		return o.ObjectionThreshold
	}
	return DefaultObjectionThreshold
}

func (o Options) maxAutoReplies() int {
	if o.MaxAutoReplies > 0 {
		return o.MaxAutoReplies
	}
	return DefaultMaxAutoReplies
}

// Decide maps a classification result onto a decision for the lead. The
// mapping is total: every classification value, including unknown ones,
// produces a decision.
func Decide(result *model.ClassificationResult, lead model.Lead, opts Options) *model.Decision {
	dec := &model.Decision{
		Classification: result,
		NextStage:      lead.Stage,
		AssignedWorker: defaultWorker(lead),
	}

	switch result.Classification {
	case model.ClassPositive, model.ClassBooking:
		dec.Action = model.ActionRouteToCall
		dec.NextStage = model.StageHotCallQueue
		dec.AssignedWorker = model.WorkerSabrina
		dec.ShouldNotify = true
		dec.Reason = fmt.Sprintf("HOT LEAD: %s", result.Intent)

	case model.ClassReschedule:
		dec.Action = model.ActionRouteToCall
		dec.NextStage = model.StageHotCallQueue
		dec.AssignedWorker = model.WorkerSabrina
		dec.ShouldNotify = true
		dec.Reason = fmt.Sprintf("Reschedule request: %s", result.Intent)

	case model.ClassQuestion:
		dec.Action = model.ActionAutoRespond
		dec.NextStage = model.StageOutboundSMS
		dec.AssignedWorker = model.WorkerGianna
		dec.Reason = fmt.Sprintf("Question answered: %s", result.Intent)

	case model.ClassObjection:
		if result.Confidence > opts.objectionThreshold() {
			dec.Action = model.ActionAutoRespond
			dec.AssignedWorker = model.WorkerGianna
			dec.Reason = fmt.Sprintf("Objection handled: %s", result.Intent)
		} else {
			dec.Action = model.ActionManualReview
			dec.ShouldNotify = true
			dec.Reason = fmt.Sprintf("Complex objection needs review: %s", result.Intent)
		}

	case model.ClassNegative:
		dec.Action = model.ActionNurture
		dec.NextStage = model.StageNurture
		dec.AssignedWorker = model.WorkerCathy
		dec.Reason = fmt.Sprintf("Not interested now, moved to nurture: %s", result.Intent)

	case model.ClassStop:
		dec.Action = model.ActionOptOut
		dec.NextStage = model.StageNurture
		dec.ShouldNotify = true
		dec.Reason = "Opt-out request processed"

	default: // SPAM, UNCLEAR, and anything unrecognized
		dec.Action = model.ActionManualReview
		dec.ShouldNotify = result.Priority == model.PriorityHot
		dec.Reason = fmt.Sprintf("Needs review: %s", result.Intent)
	}

	if dec.Action == model.ActionAutoRespond && lead.AutoReplyCount >= opts.maxAutoReplies() {
		dec.Action = model.ActionManualReview
		dec.NextStage = lead.Stage
		dec.ShouldNotify = true
		dec.Reason = fmt.Sprintf("Auto-reply limit reached after %d replies: %s", lead.AutoReplyCount, result.Intent)
	}

	return dec
}

func defaultWorker(lead model.Lead) model.Worker {
	if lead.AssignedWorker != "" {
		return lead.AssignedWorker
	}
	return model.WorkerCopilot
}

// AssignWorker picks the persona for a lead: the stage's primary worker
// when the registry knows the stage, otherwise a classification-based
// fallback.
func AssignWorker(reg *stages.Registry, lead model.Lead, classification model.Classification) model.Worker {
	if reg != nil {
		if c := reg.ForStage(lead.Stage); c.Stage == lead.Stage {
			return c.PrimaryWorker
		}
	}
	switch classification {
	case model.ClassPositive, model.ClassBooking:
		return model.WorkerSabrina
	case model.ClassQuestion, model.ClassObjection:
		return model.WorkerGianna
	case model.ClassNegative:
		return model.WorkerCathy
	default:
		return model.WorkerCopilot
	}
}
