package classify

import (
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/nextier/copilot-engine/internal/model"
)

// maxIntentLen bounds the intent summary carried out of a provider
// response.
const maxIntentLen = 500

type wireClassification struct {
	Classification    string  `json:"classification"`
	Priority          string  `json:"priority"`
	Confidence        float64 `json:"confidence"`
	Intent            string  `json:"intent"`
	SuggestedAction   string  `json:"suggested_action"`
	ShouldAutoRespond bool    `json:"should_auto_respond"`
	ShouldRouteToCall bool    `json:"should_route_to_call"`
}

// parseClassification decodes a provider response into a result. It
// tries a strict decode of the exact contract first, then salvages
// whatever fields survive lenient normalization, and finally falls back
// to the canonical safe result. It never returns nil.
func parseClassification(text string) *model.ClassificationResult {
	payload := extractJSON(text)

	var w wireClassification
	if err := json.Unmarshal([]byte(payload), &w); err != nil {
		zap.L().Warn("classify: unparseable provider response",
			zap.Error(err),
			zap.Int("response_len", len(text)),
		)
		return model.FallbackClassification()
	}

	if r, ok := strictResult(w); ok {
		return r
	}

	zap.L().Warn("classify: provider response failed validation, salvaging",
		zap.String("classification", w.Classification),
		zap.String("priority", w.Priority),
		zap.Float64("confidence", w.Confidence),
	)
	return lenientResult(w)
}

// extractJSON pulls the outermost JSON object out of a response that
// may wrap it in prose or a code fence.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return text
	}
	return text[start : end+1]
}

func strictResult(w wireClassification) (*model.ClassificationResult, bool) {
	c := model.Classification(w.Classification)
	p := model.Priority(w.Priority)
	if !c.Valid() || !p.Valid() {
		return nil, false
	}
	if w.Confidence < 0 || w.Confidence > 1 {
		return nil, false
	}
	if w.Intent == "" || len(w.Intent) > maxIntentLen {
		return nil, false
	}
	return &model.ClassificationResult{
		Classification:    c,
		Priority:          p,
		Confidence:        w.Confidence,
		Intent:            w.Intent,
		SuggestedAction:   w.SuggestedAction,
		ShouldAutoRespond: w.ShouldAutoRespond,
		ShouldRouteToCall: w.ShouldRouteToCall,
	}, true
}

func lenientResult(w wireClassification) *model.ClassificationResult {
	confidence := w.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	intent := strings.TrimSpace(w.Intent)
	if intent == "" {
		intent = "No intent summary provided"
	}
	if r := []rune(intent); len(r) > maxIntentLen {
		intent = string(r[:maxIntentLen])
	}

	return &model.ClassificationResult{
		Classification:    model.ParseClassification(w.Classification),
		Priority:          model.ParsePriority(w.Priority),
		Confidence:        confidence,
		Intent:            intent,
		SuggestedAction:   w.SuggestedAction,
		ShouldAutoRespond: w.ShouldAutoRespond,
		ShouldRouteToCall: w.ShouldRouteToCall,
	}
}
