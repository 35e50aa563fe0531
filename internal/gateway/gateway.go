// Package gateway routes chat completions to AI providers behind the
// resilience stack: quota checks, circuit breaking, rate limiting,
// request timeouts, and retries with exponential backoff.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nextier/copilot-engine/internal/config"
	"github.com/nextier/copilot-engine/internal/model"
	"github.com/nextier/copilot-engine/internal/resilience"
	"github.com/nextier/copilot-engine/internal/usage"
	"github.com/nextier/copilot-engine/pkg/anthropic"
	"github.com/nextier/copilot-engine/pkg/openai"
	"github.com/nextier/copilot-engine/pkg/perplexity"
)

// ErrServiceUnavailable marks provider failures that survived the
// resilience stack. Callers can distinguish "the AI is down" from a
// low-confidence answer with errors.Is.
var ErrServiceUnavailable = errors.New("ai service unavailable")

// UsageLimitError is returned when a tenant's quota blocks the call
// before any network I/O happens.
type UsageLimitError struct {
	TenantID string
	Check    model.LimitCheck
}

func (e *UsageLimitError) Error() string {
	return fmt.Sprintf("gateway: usage limit for tenant %s: %s", e.TenantID, e.Check.Reason)
}

// IsUsageLimit reports whether err is a quota rejection.
func IsUsageLimit(err error) bool {
	var ule *UsageLimitError
	return errors.As(err, &ule)
}

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// ChatRequest is a provider-agnostic completion request.
type ChatRequest struct {
	TenantID     string
	Provider     model.Provider // empty selects the configured default
	Model        string         // empty selects the provider's default model
	System       string
	Messages     []Message
	Temperature  *float64
	MaxTokens    int
	JSONResponse bool
}

// ChatResult is the completion plus the usage needed for metering.
type ChatResult struct {
	Provider         model.Provider
	Model            string
	Text             string
	PromptTokens     int
	CompletionTokens int
	LatencyMs        int
}

// Gateway is the single entry point for provider calls. It owns the
// circuit breakers and rate limiters so every caller shares the same
// view of provider health.
type Gateway struct {
	openai     openai.Client
	perplexity perplexity.Client
	anthropic  anthropic.Client

	defaultProvider model.Provider
	models          map[model.Provider]string

	breakers *resilience.Breakers
	retry    resilience.RetryConfig
	limiters map[model.Provider]*rate.Limiter
	timeout  time.Duration

	tracker  *usage.Tracker
	recorder *usage.Recorder
}

// Option overrides part of a Gateway, mainly to inject fake clients in
// tests.
type Option func(*Gateway)

func WithOpenAIClient(c openai.Client) Option {
	return func(g *Gateway) { g.openai = c }
}

func WithPerplexityClient(c perplexity.Client) Option {
	return func(g *Gateway) { g.perplexity = c }
}

func WithAnthropicClient(c anthropic.Client) Option {
	return func(g *Gateway) { g.anthropic = c }
}

// New builds a Gateway from configuration. Providers without an API
// key stay unconfigured and reject requests with a ConfigError.
// tracker and recorder may be nil, which disables quota checks and
// metering respectively.
func New(cfg *config.Config, tracker *usage.Tracker, recorder *usage.Recorder, opts ...Option) *Gateway {
	g := &Gateway{
		defaultProvider: model.Provider(cfg.Copilot.DefaultProvider),
		models: map[model.Provider]string{
			model.ProviderOpenAI:     cfg.OpenAI.Model,
			model.ProviderPerplexity: cfg.Perplexity.Model,
			model.ProviderAnthropic:  cfg.Anthropic.Model,
		},
		breakers: resilience.NewBreakers(resilience.FromCircuitConfig(
			cfg.Resilience.FailureThreshold,
			cfg.Resilience.RecoveryTimeoutMs,
			cfg.Resilience.SuccessThreshold,
		)),
		retry: resilience.FromRetryConfig(
			cfg.Resilience.MaxRetries,
			cfg.Resilience.InitialBackoffMs,
			cfg.Resilience.MaxBackoffMs,
			cfg.Resilience.BackoffMultiplier,
			cfg.Resilience.JitterFraction,
		),
		timeout:  time.Duration(cfg.Resilience.RequestTimeoutSecs) * time.Second,
		tracker:  tracker,
		recorder: recorder,
	}

	perSec := rate.Limit(cfg.Resilience.ProviderRatePerSec)
	if perSec <= 0 {
		perSec = 10
	}
	burst := cfg.Resilience.ProviderRateBurst
	if burst <= 0 {
		burst = 10
	}
	g.limiters = map[model.Provider]*rate.Limiter{
		model.ProviderOpenAI:     rate.NewLimiter(perSec, burst),
		model.ProviderPerplexity: rate.NewLimiter(perSec, burst),
		model.ProviderAnthropic:  rate.NewLimiter(perSec, burst),
	}

	if cfg.OpenAI.Key != "" {
		g.openai = openai.NewClient(cfg.OpenAI.Key,
			openai.WithBaseURL(cfg.OpenAI.BaseURL),
			openai.WithModel(cfg.OpenAI.Model),
		)
	}
	if cfg.Perplexity.Key != "" {
		g.perplexity = perplexity.NewClient(cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(cfg.Perplexity.Model),
		)
	}
	if cfg.Anthropic.Key != "" {
		g.anthropic = anthropic.NewClient(cfg.Anthropic.Key)
	}

	for _, o := range opts {
		o(g)
	}
	return g
}

// Breakers exposes the per-provider circuit breakers for inspection
// and manual reset.
func (g *Gateway) Breakers() *resilience.Breakers {
	return g.breakers
}

// Complete runs one chat completion through the full resilience stack.
// Quota and breaker rejections happen before any network I/O; terminal
// provider failures come back wrapped in ErrServiceUnavailable. Usage
// is recorded fire-and-forget for both successes and failures.
func (g *Gateway) Complete(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	provider := req.Provider
	if provider == "" {
		provider = g.defaultProvider
	}
	modelName := req.Model
	if modelName == "" {
		modelName = g.models[provider]
	}

	if !g.configured(provider) {
		return nil, &resilience.ConfigError{Provider: string(provider), Reason: "missing API key"}
	}

	if g.tracker != nil && req.TenantID != "" {
		if check := g.tracker.CheckLimits(ctx, req.TenantID); !check.Allowed {
			return nil, &UsageLimitError{TenantID: req.TenantID, Check: check}
		}
	}

	breaker := g.breakers.Get(string(provider))
	if err := breaker.CanExecute(); err != nil {
		return nil, errors.Join(ErrServiceUnavailable, err)
	}

	retryCfg := g.retry
	retryCfg.OnRetry = resilience.RetryLogger(string(provider), "chat")

	start := time.Now()
	res, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*ChatResult, error) {
		if lim := g.limiters[provider]; lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return nil, err
			}
		}
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		return g.call(callCtx, provider, modelName, req)
	})
	latencyMs := int(time.Since(start).Milliseconds())

	// A caller-side cancellation says nothing about provider health, so
	// it must not count toward opening the circuit.
	switch {
	case err == nil:
		breaker.RecordSuccess()
	case ctx.Err() == nil:
		breaker.RecordFailure()
	}

	if g.recorder != nil && req.TenantID != "" {
		rec := model.UsageRecord{
			TenantID:  req.TenantID,
			Provider:  provider,
			Model:     modelName,
			LatencyMs: latencyMs,
			Success:   err == nil,
		}
		if res != nil {
			rec.PromptTokens = res.PromptTokens
			rec.CompletionTokens = res.CompletionTokens
		}
		g.recorder.Record(rec)
	}

	if err != nil {
		zap.L().Warn("gateway: provider call failed",
			zap.String("provider", string(provider)),
			zap.String("model", modelName),
			zap.Int("latency_ms", latencyMs),
			zap.Error(err),
		)
		return nil, errors.Join(ErrServiceUnavailable, err)
	}

	res.LatencyMs = latencyMs
	zap.L().Debug("gateway: provider call complete",
		zap.String("provider", string(provider)),
		zap.String("model", res.Model),
		zap.Int("prompt_tokens", res.PromptTokens),
		zap.Int("completion_tokens", res.CompletionTokens),
		zap.Int("latency_ms", latencyMs),
	)
	return res, nil
}

func (g *Gateway) configured(provider model.Provider) bool {
	switch provider {
	case model.ProviderOpenAI:
		return g.openai != nil
	case model.ProviderPerplexity:
		return g.perplexity != nil
	case model.ProviderAnthropic:
		return g.anthropic != nil
	default:
		return false
	}
}

func (g *Gateway) call(ctx context.Context, provider model.Provider, modelName string, req ChatRequest) (*ChatResult, error) {
	switch provider {
	case model.ProviderOpenAI:
		return g.callOpenAI(ctx, modelName, req)
	case model.ProviderPerplexity:
		return g.callPerplexity(ctx, modelName, req)
	case model.ProviderAnthropic:
		return g.callAnthropic(ctx, modelName, req)
	default:
		return nil, &resilience.ConfigError{Provider: string(provider), Reason: "unknown provider"}
	}
}

func (g *Gateway) callOpenAI(ctx context.Context, modelName string, req ChatRequest) (*ChatResult, error) {
	messages := make([]openai.Message, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.Message{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, openai.Message{Role: m.Role, Content: m.Content})
	}

	oreq := openai.ChatCompletionRequest{
		Model:       modelName,
		Messages:    messages,
		Temperature: req.Temperature,
	}
	if req.MaxTokens > 0 {
		oreq.MaxTokens = &req.MaxTokens
	}
	if req.JSONResponse {
		oreq.ResponseFormat = &openai.ResponseFormat{Type: "json_object"}
	}

	resp, err := g.openai.ChatCompletion(ctx, oreq)
	if err != nil {
		var se *openai.StatusError
		if errors.As(err, &se) && resilience.IsTransientHTTPStatus(se.StatusCode) {
			return nil, resilience.NewTransientError(err, se.StatusCode)
		}
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, eris.New("gateway: openai returned no choices")
	}

	return &ChatResult{
		Provider:         model.ProviderOpenAI,
		Model:            resp.Model,
		Text:             resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

func (g *Gateway) callPerplexity(ctx context.Context, modelName string, req ChatRequest) (*ChatResult, error) {
	messages := make([]perplexity.Message, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, perplexity.Message{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, perplexity.Message{Role: m.Role, Content: m.Content})
	}

	preq := perplexity.ChatCompletionRequest{
		Model:       modelName,
		Messages:    messages,
		Temperature: req.Temperature,
	}
	if req.MaxTokens > 0 {
		preq.MaxTokens = &req.MaxTokens
	}

	resp, err := g.perplexity.ChatCompletion(ctx, preq)
	if err != nil {
		var se *perplexity.StatusError
		if errors.As(err, &se) && resilience.IsTransientHTTPStatus(se.StatusCode) {
			return nil, resilience.NewTransientError(err, se.StatusCode)
		}
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, eris.New("gateway: perplexity returned no choices")
	}

	return &ChatResult{
		Provider:         model.ProviderPerplexity,
		Model:            resp.Model,
		Text:             resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

func (g *Gateway) callAnthropic(ctx context.Context, modelName string, req ChatRequest) (*ChatResult, error) {
	messages := make([]anthropic.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, anthropic.Message{Role: m.Role, Content: m.Content})
	}

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	resp, err := g.anthropic.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       modelName,
		MaxTokens:   maxTokens,
		System:      req.System,
		Messages:    messages,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, err
	}

	return &ChatResult{
		Provider:         model.ProviderAnthropic,
		Model:            resp.Model,
		Text:             resp.Text,
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
	}, nil
}
