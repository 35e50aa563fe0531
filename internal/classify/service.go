// Package classify turns raw inbound SMS text into structured
// classification results. Obvious messages are handled by a keyword
// fast path with no provider call; everything else goes through the
// gateway with sanitized inputs and a strict JSON contract, degrading
// to a safe fallback when the provider returns garbage.
package classify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nextier/copilot-engine/internal/config"
	"github.com/nextier/copilot-engine/internal/gateway"
	"github.com/nextier/copilot-engine/internal/model"
	"github.com/nextier/copilot-engine/internal/sanitize"
	"github.com/nextier/copilot-engine/internal/stages"
)

// classifyMaxTokens bounds the provider response for classification
// calls; the JSON payload is small.
const classifyMaxTokens = 400

// Completer is the slice of the gateway the service needs.
type Completer interface {
	Complete(ctx context.Context, req gateway.ChatRequest) (*gateway.ChatResult, error)
}

// Context is the lead-side information embedded in prompts. All fields
// are user-controlled and sanitized before use.
type Context struct {
	TenantID         string
	LeadName         string
	Company          string
	Campaign         string
	Stage            model.Stage
	PreviousMessages []string
}

// Service classifies messages and drafts replies.
type Service struct {
	gw        Completer
	sanitizer sanitize.Sanitizer
	registry  *stages.Registry
	cfg       config.CopilotConfig
}

// New builds a classification service. The registry may be nil when no
// stage-specific prompt context is wanted.
func New(gw Completer, sanitizer sanitize.Sanitizer, registry *stages.Registry, cfg config.CopilotConfig) *Service {
	if sanitizer == nil {
		sanitizer = sanitize.New()
	}
	return &Service{gw: gw, sanitizer: sanitizer, registry: registry, cfg: cfg}
}

// Classify resolves a message to a classification result. The keyword
// fast path answers unambiguous messages locally; otherwise the
// configured provider is asked for a JSON verdict. A non-nil error
// means the provider was unreachable; parse trouble never errors, it
// degrades to a fallback result instead.
func (s *Service) Classify(ctx context.Context, message string, c Context) (*model.ClassificationResult, error) {
	if quick, ok := QuickClassify(message); ok {
		zap.L().Debug("classify: fast path hit",
			zap.String("classification", string(quick.Classification)),
		)
		return quick, nil
	}

	req := gateway.ChatRequest{
		TenantID:     c.TenantID,
		System:       s.classifySystemPrompt(c),
		Messages:     []gateway.Message{{Role: "user", Content: s.classifyUserPrompt(message, c)}},
		Temperature:  &s.cfg.Temperature,
		MaxTokens:    classifyMaxTokens,
		JSONResponse: true,
	}
	res, err := s.gw.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	return parseClassification(res.Text), nil
}

func (s *Service) classifySystemPrompt(c Context) string {
	var b strings.Builder
	b.WriteString(`You classify inbound SMS replies from sales leads.

Categories:
- POSITIVE: interest, agreement, wants to talk
- NEGATIVE: not interested, bad timing, rejection
- QUESTION: asking about the product, pricing, or process
- OBJECTION: pushback that could still be overcome
- BOOKING: wants to schedule a call or meeting
- RESCHEDULE: wants to move an existing call or meeting
- STOP: opt-out or do-not-contact request
- SPAM: automated or irrelevant content
- UNCLEAR: cannot be determined

Priority tiers: HOT (act now), WARM (engaged), COLD (low signal).

Respond with a single JSON object and nothing else:
{"classification": "...", "priority": "...", "confidence": 0.0, "intent": "one short sentence", "suggested_action": "...", "should_auto_respond": false, "should_route_to_call": false}`)

	if s.registry != nil && c.Stage != "" {
		if frag := s.registry.PromptFragment(c.Stage); frag != "" {
			b.WriteString("\n\nStage context: ")
			b.WriteString(frag)
		}
	}
	return b.String()
}

func (s *Service) classifyUserPrompt(message string, c Context) string {
	var b strings.Builder
	if name := s.sanitizer.Clean(c.LeadName, sanitize.MaxShortInputLen); name != "" {
		fmt.Fprintf(&b, "Lead: %s\n", name)
	}
	if company := s.sanitizer.Clean(c.Company, sanitize.MaxShortInputLen); company != "" {
		fmt.Fprintf(&b, "Company: %s\n", company)
	}
	if campaign := s.sanitizer.Clean(c.Campaign, sanitize.MaxShortInputLen); campaign != "" {
		fmt.Fprintf(&b, "Campaign: %s\n", campaign)
	}
	for _, prev := range lastN(c.PreviousMessages, 3) {
		fmt.Fprintf(&b, "Earlier message: %s\n", s.sanitizer.Clean(prev, sanitize.MaxShortInputLen))
	}
	fmt.Fprintf(&b, "Message: %s", s.sanitizer.Clean(message, sanitize.MaxClassificationLen))
	return b.String()
}

func lastN(msgs []string, n int) []string {
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}

// ClassifyBatch classifies messages concurrently in fixed-size groups;
// each group finishes before the next starts so a slow provider cannot
// pile up unbounded in-flight calls. Every input gets a result: failed
// items carry the fallback classification. The returned error is the
// first provider failure, for callers that care.
func (s *Service) ClassifyBatch(ctx context.Context, messages []string, c Context) ([]*model.ClassificationResult, error) {
	results := make([]*model.ClassificationResult, len(messages))

	group := s.cfg.BatchConcurrency
	if group <= 0 {
		group = 5
	}

	var firstErr error
	for start := 0; start < len(messages); start += group {
		end := start + group
		if end > len(messages) {
			end = len(messages)
		}

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				res, err := s.Classify(ctx, messages[i], c)
				if err != nil {
					results[i] = model.FallbackClassification()
					return err
				}
				results[i] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			zap.L().Warn("classify: batch item failed", zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return results, firstErr
}

// GenerateResponse drafts an SMS reply for a classified message. The
// reply is clamped to the configured SMS length after generation, so a
// rambling provider can never push an over-long message downstream.
func (s *Service) GenerateResponse(ctx context.Context, message string, result *model.ClassificationResult, c Context) (*model.GeneratedResponse, error) {
	req := gateway.ChatRequest{
		TenantID:    c.TenantID,
		System:      s.responseSystemPrompt(result, c),
		Messages:    []gateway.Message{{Role: "user", Content: s.classifyUserPrompt(message, c)}},
		Temperature: &s.cfg.Temperature,
		MaxTokens:   classifyMaxTokens,
	}
	res, err := s.gw.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(res.Text)
	out := &model.GeneratedResponse{
		Message:    text,
		TokensUsed: res.PromptTokens + res.CompletionTokens,
	}
	if max := s.cfg.SMSMaxLen; max > 0 {
		runes := []rune(text)
		if len(runes) > max {
			out.Message = strings.TrimSpace(string(runes[:max]))
			out.Truncated = true
		}
	}
	return out, nil
}

func (s *Service) responseSystemPrompt(result *model.ClassificationResult, c Context) string {
	var b strings.Builder
	fmt.Fprintf(&b,
		"You write SMS replies for a sales outreach team. The inbound message was classified as %s. Write one reply of at most %d characters. Plain text only, no emojis, no sign-off.",
		result.Classification, s.cfg.SMSMaxLen,
	)
	if s.cfg.BookingLink != "" {
		fmt.Fprintf(&b, " If a call makes sense, offer this booking link: %s", s.cfg.BookingLink)
	}
	if s.registry != nil && c.Stage != "" {
		if frag := s.registry.PromptFragment(c.Stage); frag != "" {
			b.WriteString("\n\n")
			b.WriteString(frag)
		}
	}
	return b.String()
}
