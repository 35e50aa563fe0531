package stages

import "github.com/nextier/copilot-engine/internal/model"

// TransitionAction is an event that can move a lead between stages.
type TransitionAction string

const (
	TransitionRespond TransitionAction = "respond"
	TransitionQualify TransitionAction = "qualify"
	TransitionBook    TransitionAction = "book"
	TransitionPropose TransitionAction = "propose"
	TransitionClose   TransitionAction = "close"
	TransitionLose    TransitionAction = "lose"
	TransitionNurture TransitionAction = "nurture"
)

// transitions is the stage graph. Absent pairs mean the lead stays put.
var transitions = map[model.Stage]map[TransitionAction]model.Stage{
	model.StageDataPrep: {
		TransitionRespond: model.StageCampaignPrep,
	},
	model.StageCampaignPrep: {
		TransitionRespond: model.StageOutboundSMS,
	},
	model.StageOutboundSMS: {
		TransitionRespond: model.StageInboundResponse,
		TransitionNurture: model.StageNurture,
	},
	model.StageInboundResponse: {
		TransitionQualify: model.StageHotCallQueue,
		TransitionNurture: model.StageNurture,
	},
	model.StageHotCallQueue: {
		TransitionBook:    model.StageDiscovery,
		TransitionNurture: model.StageNurture,
	},
	model.StageDiscovery: {
		TransitionQualify: model.StageStrategy,
		TransitionNurture: model.StageNurture,
	},
	model.StageStrategy: {
		TransitionPropose: model.StageProposal,
	},
	model.StageProposal: {
		TransitionClose: model.StageDeal,
	},
	model.StageDeal: {
		TransitionClose: model.StageWon,
		TransitionLose:  model.StageLost,
	},
	model.StageWon: {
		TransitionNurture: model.StageNurture,
	},
	model.StageLost: {
		TransitionNurture: model.StageNurture,
	},
	model.StageNurture: {
		TransitionRespond: model.StageInboundResponse,
		TransitionQualify: model.StageHotCallQueue,
	},
}

// NextStage resolves where a lead moves when an action fires in a stage.
// Undefined transitions keep the lead in its current stage, so the
// result is always a valid stage.
func NextStage(current model.Stage, action TransitionAction) model.Stage {
	if next, ok := transitions[current][action]; ok {
		return next
	}
	return current
}
