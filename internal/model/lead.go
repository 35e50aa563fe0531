package model

import "time"

// Stage is a lead's position in the sales lifecycle. Stages drive which
// copilot behavior applies and which worker owns the lead.
type Stage string

const (
	StageDataPrep        Stage = "data_prep"
	StageCampaignPrep    Stage = "campaign_prep"
	StageOutboundSMS     Stage = "outbound_sms"
	StageInboundResponse Stage = "inbound_response"
	StageHotCallQueue    Stage = "hot_call_queue"
	StageDiscovery       Stage = "discovery"
	StageStrategy        Stage = "strategy"
	StageProposal        Stage = "proposal"
	StageDeal            Stage = "deal"
	StageWon             Stage = "won"
	StageLost            Stage = "lost"
	StageNurture         Stage = "nurture"
)

// Stages lists every lifecycle stage.
var Stages = []Stage{
	StageDataPrep,
	StageCampaignPrep,
	StageOutboundSMS,
	StageInboundResponse,
	StageHotCallQueue,
	StageDiscovery,
	StageStrategy,
	StageProposal,
	StageDeal,
	StageWon,
	StageLost,
	StageNurture,
}

// Worker is a named AI persona responsible for a lead at some point in
// the outreach loop: GIANNA opens, CATHY nurtures, SABRINA closes, and
// COPILOT covers everything else.
type Worker string

const (
	WorkerGianna  Worker = "GIANNA"
	WorkerCathy   Worker = "CATHY"
	WorkerSabrina Worker = "SABRINA"
	WorkerCopilot Worker = "COPILOT"
)

// Lead is a prospect moving through the outreach loop. Leads are owned
// by the calling application; the engine only reads them and derives new
// values, it never persists them itself.
type Lead struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone"`
	Email     string `json:"email,omitempty"`
	Company   string `json:"company,omitempty"`
	Stage     Stage  `json:"stage"`

	// Loop cadence position.
	LoopDay       int        `json:"loop_day"`
	TouchCount    int        `json:"touch_count"`
	LoopStartDate *time.Time `json:"loop_start_date,omitempty"`
	LastTouchAt   *time.Time `json:"last_touch_at,omitempty"`
	NextTouchAt   *time.Time `json:"next_touch_at,omitempty"`

	// Automated replies already sent on this lead's thread.
	AutoReplyCount int `json:"auto_reply_count,omitempty"`

	// Last classification outcome.
	Classification Classification `json:"classification,omitempty"`
	Priority       Priority       `json:"priority,omitempty"`
	AssignedWorker Worker         `json:"assigned_worker,omitempty"`
}

// Action is the next step the engine chose for a lead.
type Action string

const (
	ActionAutoRespond  Action = "auto_respond"
	ActionRouteToCall  Action = "route_to_call"
	ActionNurture      Action = "nurture"
	ActionOptOut       Action = "opt_out"
	ActionManualReview Action = "manual_review"
)

// Actions lists every decision action.
var Actions = []Action{
	ActionAutoRespond,
	ActionRouteToCall,
	ActionNurture,
	ActionOptOut,
	ActionManualReview,
}

// Decision is the engine's output for one inbound message: what to do,
// where the lead goes next, and who owns it. It is consumed by the
// dispatch layer; the engine never sends SMS itself.
type Decision struct {
	Action         Action                `json:"action"`
	Classification *ClassificationResult `json:"classification"`
	Response       *GeneratedResponse    `json:"response,omitempty"`
	NextStage      Stage                 `json:"next_stage"`
	AssignedWorker Worker                `json:"assigned_worker"`
	ShouldNotify   bool                  `json:"should_notify"`
	Reason         string                `json:"reason"`
}

// HotCallQueueItem is a lead queued for an immediate call.
type HotCallQueueItem struct {
	ID             string         `json:"id"`
	LeadID         string         `json:"lead_id"`
	Reason         string         `json:"reason"`
	Classification Classification `json:"classification"`
	Priority       Priority       `json:"priority"`
	AddedAt        time.Time      `json:"added_at"`
}
