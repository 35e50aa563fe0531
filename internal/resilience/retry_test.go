package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoVal_SucceedsFirstAttempt(t *testing.T) {
	var calls int
	val, err := DoVal(context.Background(), DefaultRetryConfig(), func(_ context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "ok" || calls != 1 {
		t.Errorf("expected ok after 1 call, got %q after %d", val, calls)
	}
}

func TestDoVal_RetriesTransientUntilExhausted(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
	}

	var calls int
	transient := NewTransientError(errors.New("upstream 503"), 503)
	_, err := DoVal(context.Background(), cfg, func(_ context.Context) (int, error) {
		calls++
		return 0, transient
	})
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	// The original error is re-raised after exhaustion.
	var te *TransientError
	if !errors.As(err, &te) || te.StatusCode != 503 {
		t.Errorf("expected original transient error surfaced, got %v", err)
	}
}

func TestDoVal_DoesNotRetryPermanentErrors(t *testing.T) {
	var calls int
	permanent := errors.New("invalid request body")
	_, err := DoVal(context.Background(), RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond}, func(_ context.Context) (int, error) {
		calls++
		return 0, permanent
	})
	if calls != 1 {
		t.Errorf("expected 1 attempt for permanent error, got %d", calls)
	}
	if !errors.Is(err, permanent) {
		t.Errorf("expected permanent error surfaced, got %v", err)
	}
}

func TestDoVal_DoesNotRetryCircuitOpen(t *testing.T) {
	var calls int
	_, err := DoVal(context.Background(), RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond}, func(_ context.Context) (int, error) {
		calls++
		return 0, &CircuitOpenError{Provider: "openai", State: CircuitOpen}
	})
	if calls != 1 {
		t.Errorf("expected no retry on circuit rejection, got %d attempts", calls)
	}
	if !IsCircuitOpen(err) {
		t.Errorf("expected circuit-open error surfaced, got %v", err)
	}
}

func TestDoVal_ContextCancellationStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var calls int
	_, err := DoVal(ctx, RetryConfig{MaxAttempts: 5, InitialBackoff: 50 * time.Millisecond}, func(_ context.Context) (int, error) {
		calls++
		cancel()
		return 0, NewTransientError(errors.New("timeout"), 0)
	})
	if calls != 1 {
		t.Errorf("expected 1 attempt before cancellation, got %d", calls)
	}
	if err == nil {
		t.Error("expected error after cancellation")
	}
}

func TestDoVal_OnRetryObservesEachSleep(t *testing.T) {
	var attempts []int
	cfg := RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		OnRetry:        func(attempt int, _ error) { attempts = append(attempts, attempt) },
	}

	_, _ = DoVal(context.Background(), cfg, func(_ context.Context) (int, error) {
		return 0, NewTransientError(errors.New("429"), 429)
	})

	// Two sleeps for three attempts: before attempt 2 and before attempt 3.
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("expected retry callbacks [1 2], got %v", attempts)
	}
}

func TestComputeBackoff_DefaultSequenceIsDoubling(t *testing.T) {
	cfg := applyDefaults(DefaultRetryConfig())

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	for attempt, expected := range want {
		if got := computeBackoff(attempt, cfg); got != expected {
			t.Errorf("attempt %d: expected %s, got %s", attempt, expected, got)
		}
	}
}

func TestComputeBackoff_CappedAtMax(t *testing.T) {
	cfg := applyDefaults(RetryConfig{InitialBackoff: time.Second, MaxBackoff: 3 * time.Second})
	if got := computeBackoff(5, cfg); got != 3*time.Second {
		t.Errorf("expected cap at 3s, got %s", got)
	}
}

func TestIsTransient_Classification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"wrapped transient", NewTransientError(errors.New("x"), 500), true},
		{"rate limit text", errors.New("openai: rate limit reached for gpt-4o"), true},
		{"timeout text", errors.New("request timed out"), true},
		{"circuit open", &CircuitOpenError{Provider: "openai", State: CircuitOpen}, false},
		{"config error", &ConfigError{Provider: "openai", Reason: "missing API key"}, false},
		{"permanent", errors.New("invalid model"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTransient(tc.err); got != tc.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("expected %d transient", code)
		}
	}
	for _, code := range []int{200, 400, 401, 403, 404, 422} {
		if IsTransientHTTPStatus(code) {
			t.Errorf("expected %d not transient", code)
		}
	}
}
