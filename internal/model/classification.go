// Package model defines the core domain types shared across the copilot
// engine: leads, classifications, routing decisions, and usage records.
package model

import "strings"

// Classification is the intent category assigned to an inbound message.
type Classification string

const (
	ClassPositive   Classification = "POSITIVE"
	ClassNegative   Classification = "NEGATIVE"
	ClassQuestion   Classification = "QUESTION"
	ClassObjection  Classification = "OBJECTION"
	ClassBooking    Classification = "BOOKING"
	ClassReschedule Classification = "RESCHEDULE"
	ClassStop       Classification = "STOP"
	ClassSpam       Classification = "SPAM"
	ClassUnclear    Classification = "UNCLEAR"
)

// Classifications lists every valid classification value.
var Classifications = []Classification{
	ClassPositive,
	ClassNegative,
	ClassQuestion,
	ClassObjection,
	ClassBooking,
	ClassReschedule,
	ClassStop,
	ClassSpam,
	ClassUnclear,
}

// Valid reports whether c is one of the defined classification values.
func (c Classification) Valid() bool {
	for _, v := range Classifications {
		if c == v {
			return true
		}
	}
	return false
}

// ParseClassification normalizes a raw string to a Classification.
// Unknown values map to UNCLEAR rather than erroring.
func ParseClassification(s string) Classification {
	c := Classification(strings.ToUpper(strings.TrimSpace(s)))
	if c.Valid() {
		return c
	}
	return ClassUnclear
}

// Priority is the urgency tier derived from a classification.
type Priority string

const (
	PriorityHot  Priority = "HOT"
	PriorityWarm Priority = "WARM"
	PriorityCold Priority = "COLD"
)

// Priorities lists every valid priority value.
var Priorities = []Priority{PriorityHot, PriorityWarm, PriorityCold}

// Valid reports whether p is one of the defined priority tiers.
func (p Priority) Valid() bool {
	return p == PriorityHot || p == PriorityWarm || p == PriorityCold
}

// ParsePriority normalizes a raw string to a Priority. Unknown values
// map to COLD.
func ParsePriority(s string) Priority {
	p := Priority(strings.ToUpper(strings.TrimSpace(s)))
	if p.Valid() {
		return p
	}
	return PriorityCold
}

// Rank orders priorities for queue sorting: HOT before WARM before COLD.
func (p Priority) Rank() int {
	switch p {
	case PriorityHot:
		return 0
	case PriorityWarm:
		return 1
	default:
		return 2
	}
}

// ClassificationResult is the structured output of message classification.
type ClassificationResult struct {
	Classification    Classification `json:"classification"`
	Priority          Priority       `json:"priority"`
	Confidence        float64        `json:"confidence"`
	Intent            string         `json:"intent"`
	SuggestedAction   string         `json:"suggested_action"`
	ShouldAutoRespond bool           `json:"should_auto_respond"`
	ShouldRouteToCall bool           `json:"should_route_to_call"`
}

// FallbackClassification is the canonical safe result returned when the
// provider response cannot be parsed at all.
func FallbackClassification() *ClassificationResult {
	return &ClassificationResult{
		Classification:  ClassUnclear,
		Priority:        PriorityCold,
		Confidence:      0,
		Intent:          "Failed to classify",
		SuggestedAction: "manual_review",
	}
}

// GeneratedResponse is an AI-drafted reply constrained to a channel length.
type GeneratedResponse struct {
	Message    string `json:"message"`
	Truncated  bool   `json:"truncated"`
	TokensUsed int    `json:"tokens_used"`
}
