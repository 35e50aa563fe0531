package classify

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextier/copilot-engine/internal/model"
)

func TestParseClassification_Strict(t *testing.T) {
	res := parseClassification(`{"classification":"POSITIVE","priority":"HOT","confidence":0.92,"intent":"ready to talk","suggested_action":"route_to_call","should_route_to_call":true}`)

	assert.Equal(t, model.ClassPositive, res.Classification)
	assert.Equal(t, model.PriorityHot, res.Priority)
	assert.InDelta(t, 0.92, res.Confidence, 1e-9)
	assert.Equal(t, "ready to talk", res.Intent)
	assert.True(t, res.ShouldRouteToCall)
}

func TestParseClassification_CodeFence(t *testing.T) {
	res := parseClassification("Here is the result:\n```json\n{\"classification\":\"QUESTION\",\"priority\":\"WARM\",\"confidence\":0.8,\"intent\":\"pricing question\"}\n```")

	assert.Equal(t, model.ClassQuestion, res.Classification)
	assert.Equal(t, model.PriorityWarm, res.Priority)
}

func TestParseClassification_LenientSalvage(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want *model.ClassificationResult
	}{
		{
			name: "lowercase enums and out-of-range confidence",
			in:   `{"classification":"positive","priority":"hot","confidence":1.4,"intent":"keen"}`,
			want: &model.ClassificationResult{
				Classification: model.ClassPositive,
				Priority:       model.PriorityHot,
				Confidence:     1,
				Intent:         "keen",
			},
		},
		{
			name: "unknown enums",
			in:   `{"classification":"MAYBE","priority":"LUKEWARM","confidence":0.5,"intent":"unsure"}`,
			want: &model.ClassificationResult{
				Classification: model.ClassUnclear,
				Priority:       model.PriorityCold,
				Confidence:     0.5,
				Intent:         "unsure",
			},
		},
		{
			name: "missing intent",
			in:   `{"classification":"NEGATIVE","priority":"COLD","confidence":0.9}`,
			want: &model.ClassificationResult{
				Classification: model.ClassNegative,
				Priority:       model.PriorityCold,
				Confidence:     0.9,
				Intent:         "No intent summary provided",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := parseClassification(tt.in)
			assert.Equal(t, tt.want, res)
		})
	}
}

func TestParseClassification_NegativeConfidenceClampsToZero(t *testing.T) {
	res := parseClassification(`{"classification":"NEGATIVE","priority":"COLD","confidence":-0.2,"intent":"no"}`)
	assert.Zero(t, res.Confidence)
}

func TestParseClassification_OversizedIntentTruncated(t *testing.T) {
	res := parseClassification(`{"classification":"QUESTION","priority":"WARM","confidence":0.8,"intent":"` + strings.Repeat("x", 600) + `"}`)
	assert.Len(t, res.Intent, maxIntentLen)
	assert.Equal(t, model.ClassQuestion, res.Classification)
}

func TestParseClassification_MultibyteIntentTruncatesOnRuneBoundary(t *testing.T) {
	res := parseClassification(`{"classification":"QUESTION","priority":"WARM","confidence":0.8,"intent":"` + strings.Repeat("ü", 600) + `"}`)
	require.True(t, utf8.ValidString(res.Intent))
	assert.Len(t, []rune(res.Intent), maxIntentLen)
}

func TestParseClassification_GarbageFallsBack(t *testing.T) {
	for _, in := range []string{"", "no json here", "{broken", "[1,2,3]"} {
		res := parseClassification(in)
		require.NotNil(t, res, "input %q", in)
		assert.Equal(t, model.ClassUnclear, res.Classification, "input %q", in)
		assert.Equal(t, "Failed to classify", res.Intent, "input %q", in)
	}
}

func TestQuickClassify(t *testing.T) {
	tests := []struct {
		msg   string
		class model.Classification
		prio  model.Priority
	}{
		{"STOP", model.ClassStop, model.PriorityHot},
		{"please unsubscribe me", model.ClassStop, model.PriorityHot},
		{"Yes I'm interested, call me", model.ClassPositive, model.PriorityHot},
		{"tell me more", model.ClassPositive, model.PriorityHot},
		{"can we reschedule", model.ClassReschedule, model.PriorityHot},
		{"let's book an appointment", model.ClassBooking, model.PriorityHot},
		{"not interested, sorry", model.ClassNegative, model.PriorityCold},
		{"wrong number", model.ClassNegative, model.PriorityCold},
		{"how much does it cost?", model.ClassQuestion, model.PriorityWarm},
	}
	for _, tt := range tests {
		res, ok := QuickClassify(tt.msg)
		require.True(t, ok, "message %q", tt.msg)
		assert.Equal(t, tt.class, res.Classification, "message %q", tt.msg)
		assert.Equal(t, tt.prio, res.Priority, "message %q", tt.msg)
	}
}

func TestQuickClassify_NoMatch(t *testing.T) {
	for _, msg := range []string{"", "   ", "we are migrating systems this quarter", "thanks for reaching out"} {
		_, ok := QuickClassify(msg)
		assert.False(t, ok, "message %q", msg)
	}
}

func TestQuickClassify_KeywordsInsideWordsDoNotMatch(t *testing.T) {
	for _, msg := range []string{
		"The noise is nonstop around here",
		"I was busy yesterday, sorry I missed this",
		"we keep our schedules in a handbook",
		"she is uninterested and the calendars are all wrong",
	} {
		_, ok := QuickClassify(msg)
		assert.False(t, ok, "message %q", msg)
	}
}
