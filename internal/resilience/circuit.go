// Package resilience provides circuit breaker and retry patterns for
// calls to external AI providers.
package resilience

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed is the normal operating state — requests flow through.
	CircuitClosed CircuitState = iota
	// CircuitOpen means too many failures — requests are rejected immediately.
	CircuitOpen
	// CircuitHalfOpen allows probe requests to test recovery.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitOpenError is returned when a call is rejected before any network
// I/O because the provider's circuit is open. It is distinct from a
// genuine provider error so callers can surface degraded-service
// messaging instead of retrying.
type CircuitOpenError struct {
	Provider string
	State    CircuitState
}

func (e *CircuitOpenError) Error() string {
	return "circuit breaker " + e.State.String() + " for provider " + e.Provider
}

// IsCircuitOpen reports whether err is a circuit rejection.
func IsCircuitOpen(err error) bool {
	_, ok := AsCircuitOpen(err)
	return ok
}

// CircuitBreakerConfig controls circuit breaker behavior.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures in the
	// closed state before opening the circuit. Default: 5.
	FailureThreshold int

	// RecoveryTimeout is how long the circuit stays open before the next
	// allow-check transitions it to half-open. Default: 30s.
	RecoveryTimeout time.Duration

	// SuccessThreshold is the number of successful probes required in
	// half-open state before closing the circuit. Default: 2.
	SuccessThreshold int

	// OnStateChange is called when the circuit transitions between states.
	OnStateChange func(provider string, from, to CircuitState)
}

// DefaultCircuitBreakerConfig returns the default breaker thresholds.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		SuccessThreshold: 2,
	}
}

// CircuitStats is a point-in-time snapshot of a breaker for monitoring.
type CircuitStats struct {
	Provider         string       `json:"provider"`
	State            CircuitState `json:"-"`
	StateName        string       `json:"state"`
	Failures         int          `json:"failures"`
	Successes        int          `json:"successes"`
	LastFailureAt    time.Time    `json:"last_failure_at,omitzero"`
	LastSuccessAt    time.Time    `json:"last_success_at,omitzero"`
	OpenedAt         time.Time    `json:"opened_at,omitzero"`
	TotalRequests    int64        `json:"total_requests"`
	TotalFailures    int64        `json:"total_failures"`
	TotalSuccesses   int64        `json:"total_successes"`
	RecoveryTimeout  time.Duration `json:"-"`
	FailureThreshold int          `json:"failure_threshold"`
}

// CircuitBreaker guards calls to a single provider. State transitions:
// CLOSED → OPEN after FailureThreshold consecutive failures; OPEN →
// HALF_OPEN once RecoveryTimeout has elapsed (evaluated lazily on the
// next allow-check); HALF_OPEN → CLOSED after SuccessThreshold
// successes, or back to OPEN on any single failure.
type CircuitBreaker struct {
	provider string
	cfg      CircuitBreakerConfig

	mu        sync.Mutex
	state     CircuitState
	failures  int
	successes int

	lastFailureAt time.Time
	lastSuccessAt time.Time
	openedAt      time.Time

	totalRequests  int64
	totalFailures  int64
	totalSuccesses int64

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewCircuitBreaker creates a breaker for the named provider.
func NewCircuitBreaker(provider string, cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = 30 * time.Second
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	return &CircuitBreaker{
		provider: provider,
		cfg:      cfg,
		state:    CircuitClosed,
		nowFunc:  time.Now,
	}
}

// CanExecute reports whether a call may proceed. While open, it first
// re-evaluates the recovery timeout and transitions to half-open if it
// has elapsed. Returns a CircuitOpenError when the call must be rejected.
func (cb *CircuitBreaker) CanExecute() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalRequests++

	switch cb.state {
	case CircuitOpen:
		if cb.nowFunc().Sub(cb.openedAt) >= cb.cfg.RecoveryTimeout {
			cb.transition(CircuitHalfOpen)
			cb.failures = 0
			cb.successes = 0
			return nil
		}
		return &CircuitOpenError{Provider: cb.provider, State: CircuitOpen}
	default:
		return nil
	}
}

// RecordSuccess registers a successful call. In half-open state, enough
// consecutive successes close the circuit and reset all counters. In
// closed state it resets the failure counter (sliding tolerance).
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalSuccesses++
	cb.lastSuccessAt = cb.nowFunc()

	switch cb.state {
	case CircuitHalfOpen:
		cb.successes++
		if cb.successes >= cb.cfg.SuccessThreshold {
			cb.transition(CircuitClosed)
			cb.failures = 0
			cb.successes = 0
		}
	case CircuitClosed:
		cb.failures = 0
	}
}

// RecordFailure registers a failed call. In half-open state any single
// failure reopens the circuit with no grace. In closed state, reaching
// the failure threshold opens the circuit.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalFailures++
	now := cb.nowFunc()
	cb.lastFailureAt = now

	switch cb.state {
	case CircuitHalfOpen:
		cb.transition(CircuitOpen)
		cb.openedAt = now
		cb.successes = 0
	case CircuitClosed:
		cb.failures++
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.transition(CircuitOpen)
			cb.openedAt = now
		}
	}
}

// State returns the current state, accounting for a pending lazy
// open→half-open transition without performing it.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == CircuitOpen && cb.nowFunc().Sub(cb.openedAt) >= cb.cfg.RecoveryTimeout {
		return CircuitHalfOpen
	}
	return cb.state
}

// Stats returns a snapshot of the breaker for monitoring.
func (cb *CircuitBreaker) Stats() CircuitStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return CircuitStats{
		Provider:         cb.provider,
		State:            cb.state,
		StateName:        cb.state.String(),
		Failures:         cb.failures,
		Successes:        cb.successes,
		LastFailureAt:    cb.lastFailureAt,
		LastSuccessAt:    cb.lastSuccessAt,
		OpenedAt:         cb.openedAt,
		TotalRequests:    cb.totalRequests,
		TotalFailures:    cb.totalFailures,
		TotalSuccesses:   cb.totalSuccesses,
		RecoveryTimeout:  cb.cfg.RecoveryTimeout,
		FailureThreshold: cb.cfg.FailureThreshold,
	}
}

// Reset forces the circuit back to closed with all counters cleared.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != CircuitClosed {
		cb.transition(CircuitClosed)
	}
	cb.failures = 0
	cb.successes = 0
}

// Force moves the circuit into the given state. Intended for tests and
// operator overrides.
func (cb *CircuitBreaker) Force(state CircuitState) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != state {
		cb.transition(state)
	}
	if state == CircuitOpen {
		cb.openedAt = cb.nowFunc()
	}
	cb.failures = 0
	cb.successes = 0
}

func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	cb.state = to
	zap.L().Info("circuit state change",
		zap.String("provider", cb.provider),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.provider, from, to)
	}
}

// Breakers manages one circuit breaker per provider name.
type Breakers struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
	cfg      CircuitBreakerConfig
}

// NewBreakers creates a registry of per-provider circuit breakers.
func NewBreakers(cfg CircuitBreakerConfig) *Breakers {
	return &Breakers{
		breakers: make(map[string]*CircuitBreaker),
		cfg:      cfg,
	}
}

// Get returns the breaker for the named provider, creating one lazily.
func (b *Breakers) Get(provider string) *CircuitBreaker {
	b.mu.RLock()
	cb, ok := b.breakers[provider]
	b.mu.RUnlock()
	if ok {
		return cb
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	// Double-check after acquiring write lock.
	if cb, ok = b.breakers[provider]; ok {
		return cb
	}
	cb = NewCircuitBreaker(provider, b.cfg)
	b.breakers[provider] = cb
	return cb
}

// Stats returns a snapshot of every registered breaker.
func (b *Breakers) Stats() []CircuitStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	stats := make([]CircuitStats, 0, len(b.breakers))
	for _, cb := range b.breakers {
		stats = append(stats, cb.Stats())
	}
	return stats
}

// ResetAll forces every registered breaker back to closed.
func (b *Breakers) ResetAll() {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, cb := range b.breakers {
		cb.Reset()
	}
}
