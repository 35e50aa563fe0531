package classify

import (
	"regexp"
	"strings"

	"github.com/nextier/copilot-engine/internal/model"
)

// Keyword groups for the fast path, matched on word boundaries against
// the lowercased message so "stop" never fires inside "nonstop" or
// "yes" inside "yesterday". Negative patterns are checked before
// positive ones so "not interested" never reads as interest.
var (
	stopPatterns = compileWords(
		"stop", "unsubscribe", "remove me", "opt out", "opt-out",
		"don't text", "do not text", "don't contact", "do not contact",
	)
	negativePatterns = compileWords(
		"not interested", "no thanks", "no thank you", "wrong number",
		"leave me alone",
	)
	positivePatterns = compileWords(
		"yes", "interested", "call me", "tell me more", "sounds good",
		"i'm in", "sign me up",
	)
	reschedulePatterns = compileWords(
		"reschedule", "another time", "different time", "move the call",
		"push the call",
	)
	bookingPatterns = compileWords(
		"book", "schedule", "appointment", "calendar", "set up a call",
		"set up a time",
	)
)

func compileWords(words ...string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(words))
	for _, w := range words {
		patterns = append(patterns, regexp.MustCompile(`\b`+regexp.QuoteMeta(w)+`\b`))
	}
	return patterns
}

// QuickClassify resolves unambiguous messages without a provider call.
// The second return reports whether the fast path matched; when it is
// false the caller must fall through to full classification.
func QuickClassify(message string) (*model.ClassificationResult, bool) {
	msg := strings.ToLower(strings.TrimSpace(message))
	if msg == "" {
		return nil, false
	}

	if r := matchKeywords(msg); r != nil {
		return r, true
	}

	if strings.HasSuffix(msg, "?") {
		return &model.ClassificationResult{
			Classification:    model.ClassQuestion,
			Priority:          model.PriorityWarm,
			Confidence:        0.7,
			Intent:            "Lead asked a question",
			SuggestedAction:   "auto_respond",
			ShouldAutoRespond: true,
		}, true
	}

	return nil, false
}

func matchKeywords(msg string) *model.ClassificationResult {
	if matchAny(msg, stopPatterns) {
		return &model.ClassificationResult{
			Classification:  model.ClassStop,
			Priority:        model.PriorityHot,
			Confidence:      1,
			Intent:          "Opt-out request",
			SuggestedAction: "opt_out",
		}
	}
	if matchAny(msg, negativePatterns) {
		return &model.ClassificationResult{
			Classification:  model.ClassNegative,
			Priority:        model.PriorityCold,
			Confidence:      0.9,
			Intent:          "Not interested",
			SuggestedAction: "nurture",
		}
	}
	if matchAny(msg, reschedulePatterns) {
		return &model.ClassificationResult{
			Classification:    model.ClassReschedule,
			Priority:          model.PriorityHot,
			Confidence:        0.9,
			Intent:            "Wants to reschedule",
			SuggestedAction:   "route_to_call",
			ShouldRouteToCall: true,
		}
	}
	if matchAny(msg, positivePatterns) {
		return &model.ClassificationResult{
			Classification:    model.ClassPositive,
			Priority:          model.PriorityHot,
			Confidence:        0.9,
			Intent:            "Expressed interest",
			SuggestedAction:   "route_to_call",
			ShouldRouteToCall: true,
		}
	}
	if matchAny(msg, bookingPatterns) {
		return &model.ClassificationResult{
			Classification:    model.ClassBooking,
			Priority:          model.PriorityHot,
			Confidence:        0.9,
			Intent:            "Wants to book a call",
			SuggestedAction:   "route_to_call",
			ShouldRouteToCall: true,
		}
	}
	return nil
}

func matchAny(msg string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(msg) {
			return true
		}
	}
	return false
}
