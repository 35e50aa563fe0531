// Package copilot wires classification, routing, and response drafting
// into the engine's single entry point: one inbound message in, one
// decision out.
package copilot

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/nextier/copilot-engine/internal/cadence"
	"github.com/nextier/copilot-engine/internal/classify"
	"github.com/nextier/copilot-engine/internal/model"
	"github.com/nextier/copilot-engine/internal/router"
	"github.com/nextier/copilot-engine/internal/stages"
)

// Engine processes inbound messages for leads. It never sends anything
// itself; the resulting decision tells the dispatch layer what to do.
type Engine struct {
	classifier *classify.Service
	registry   *stages.Registry
	schedule   *cadence.Schedule
	opts       router.Options
}

// New assembles an engine. The registry and schedule fall back to the
// embedded defaults when nil.
func New(classifier *classify.Service, registry *stages.Registry, schedule *cadence.Schedule, opts router.Options) *Engine {
	if registry == nil {
		registry = stages.MustLoad()
	}
	if schedule == nil {
		schedule = cadence.MustLoad()
	}
	return &Engine{
		classifier: classifier,
		registry:   registry,
		schedule:   schedule,
		opts:       opts,
	}
}

// Classifier exposes the underlying classification service.
func (e *Engine) Classifier() *classify.Service { return e.classifier }

// Registry exposes the stage copilot registry the engine runs with.
func (e *Engine) Registry() *stages.Registry { return e.registry }

// Schedule exposes the cadence schedule the engine runs with.
func (e *Engine) Schedule() *cadence.Schedule { return e.schedule }

// Process classifies one inbound message and routes it to a decision.
// When the decision calls for an automatic reply the draft is attached;
// a failed draft degrades the decision to manual review rather than
// letting an unanswered auto-respond slip through.
func (e *Engine) Process(ctx context.Context, lead model.Lead, message string, c classify.Context) (*model.Decision, error) {
	if c.Stage == "" {
		c.Stage = lead.Stage
	}

	result, err := e.classifier.Classify(ctx, message, c)
	if err != nil {
		return nil, eris.Wrapf(err, "copilot: classify message for lead %s", lead.ID)
	}

	dec := router.Decide(result, lead, e.opts)

	if dec.Action == model.ActionAutoRespond {
		resp, err := e.classifier.GenerateResponse(ctx, message, result, c)
		if err != nil {
			zap.L().Warn("copilot: response generation failed, downgrading to manual review",
				zap.String("lead_id", lead.ID),
				zap.Error(err),
			)
			dec.Action = model.ActionManualReview
			dec.ShouldNotify = true
		} else {
			dec.Response = resp
		}
	}

	zap.L().Info("copilot: decision",
		zap.String("lead_id", lead.ID),
		zap.String("classification", string(result.Classification)),
		zap.String("action", string(dec.Action)),
		zap.String("next_stage", string(dec.NextStage)),
		zap.String("worker", string(dec.AssignedWorker)),
	)
	return dec, nil
}

// Apply folds a decision back into a lead: stage, worker, and the last
// classification outcome. The input lead is not mutated.
func (e *Engine) Apply(lead model.Lead, dec *model.Decision) model.Lead {
	lead.Stage = dec.NextStage
	lead.AssignedWorker = dec.AssignedWorker
	if dec.Classification != nil {
		lead.Classification = dec.Classification.Classification
		lead.Priority = dec.Classification.Priority
	}
	return lead
}
