package voice

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// CircuitState is the state of one provider's breaker
type CircuitState int32

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

// String returns the state name used in logs and metrics
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

// BreakerConfig contains configuration for CircuitBreaker
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit
	FailureThreshold int
	// Cooldown is how long an open circuit rejects calls before allowing one trial
	Cooldown time.Duration
}

// DefaultBreakerConfig returns default configuration
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		Cooldown:         30 * time.Second,
	}
}

// CircuitSnapshot is a point-in-time view of one circuit
type CircuitSnapshot struct {
	State               CircuitState
	ConsecutiveFailures int32
	OpenedAt            time.Time
}

// TransitionFunc observes breaker state changes
type TransitionFunc func(provider string, from, to CircuitState)

// circuit holds the state of one provider. All fields are mutated with atomics only.
type circuit struct {
	state    atomic.Int32
	failures atomic.Int32
	openedAt atomic.Int64
}

// Permit is returned by Allow and must be reported back with Success, Failure or Release
type Permit struct {
	provider string
	trial    bool
}

// Provider returns the provider the permit was issued for
func (p Permit) Provider() string { return p.provider }

// Trial reports whether the permit is the single half-open trial call
func (p Permit) Trial() bool { return p.trial }

// CircuitBreaker tracks per-provider failure state:
//
//	closed -(failures >= threshold)-> open -(cooldown elapsed)-> half-open -(success)-> closed
//	half-open -(failure)-> open
//
// It is safe for concurrent use. One instance is shared by all requests in a process.
type CircuitBreaker struct {
	config       BreakerConfig
	logger       *zap.Logger
	now          Clock
	onTransition TransitionFunc

	mu       sync.RWMutex
	circuits map[string]*circuit
}

// BreakerOption configures a CircuitBreaker
type BreakerOption func(*CircuitBreaker)

// WithBreakerClock overrides the breaker clock
func WithBreakerClock(clock Clock) BreakerOption {
	return func(b *CircuitBreaker) {
		b.now = clock
	}
}

// WithTransitionHook registers a callback invoked after every state change
func WithTransitionHook(fn TransitionFunc) BreakerOption {
	return func(b *CircuitBreaker) {
		b.onTransition = fn
	}
}

// NewCircuitBreaker creates a breaker with one closed circuit per named provider
func NewCircuitBreaker(config BreakerConfig, logger *zap.Logger, providers []string, opts ...BreakerOption) *CircuitBreaker {
	if config.FailureThreshold < 1 {
		config.FailureThreshold = 1
	}
	b := &CircuitBreaker{
		config:   config,
		logger:   logger,
		now:      time.Now,
		circuits: make(map[string]*circuit, len(providers)),
	}
	for _, opt := range opts {
		opt(b)
	}
	for _, name := range providers {
		b.circuits[name] = &circuit{}
	}
	return b
}

func (b *CircuitBreaker) circuit(provider string) *circuit {
	b.mu.RLock()
	c, ok := b.circuits[provider]
	b.mu.RUnlock()
	if ok {
		return c
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok = b.circuits[provider]; !ok {
		c = &circuit{}
		b.circuits[provider] = c
	}
	return c
}

// Allow reports whether a call to provider may proceed.
// An open circuit whose cooldown elapsed admits exactly one caller as a trial.
func (b *CircuitBreaker) Allow(provider string) (Permit, bool) {
	c := b.circuit(provider)
	switch CircuitState(c.state.Load()) {
	case CircuitClosed:
		return Permit{provider: provider}, true
	case CircuitOpen:
		openedAt := time.Unix(0, c.openedAt.Load())
		if b.now().Sub(openedAt) < b.config.Cooldown {
			return Permit{}, false
		}
		if c.state.CompareAndSwap(int32(CircuitOpen), int32(CircuitHalfOpen)) {
			b.transitioned(provider, CircuitOpen, CircuitHalfOpen)
			return Permit{provider: provider, trial: true}, true
		}
		return Permit{}, false
	default:
		// half-open: the trial is already in flight
		return Permit{}, false
	}
}

// Success records a successful call
func (b *CircuitBreaker) Success(p Permit) {
	c := b.circuit(p.provider)
	c.failures.Store(0)
	if p.trial && c.state.CompareAndSwap(int32(CircuitHalfOpen), int32(CircuitClosed)) {
		b.transitioned(p.provider, CircuitHalfOpen, CircuitClosed)
	}
}

// Failure records a failed call and opens the circuit at the threshold
func (b *CircuitBreaker) Failure(p Permit) {
	c := b.circuit(p.provider)
	failures := c.failures.Add(1)

	if p.trial {
		c.openedAt.Store(b.now().UnixNano())
		if c.state.CompareAndSwap(int32(CircuitHalfOpen), int32(CircuitOpen)) {
			b.transitioned(p.provider, CircuitHalfOpen, CircuitOpen)
		}
		return
	}

	if int(failures) >= b.config.FailureThreshold && CircuitState(c.state.Load()) == CircuitClosed {
		// openedAt is written before the state so readers of an open circuit never see a stale time
		c.openedAt.Store(b.now().UnixNano())
		if c.state.CompareAndSwap(int32(CircuitClosed), int32(CircuitOpen)) {
			b.transitioned(p.provider, CircuitClosed, CircuitOpen)
		}
	}
}

// Release returns a permit without recording an outcome, used when the caller
// gave up before the provider answered. A released trial reopens the circuit
// with its original open time so the next caller can try again.
func (b *CircuitBreaker) Release(p Permit) {
	if !p.trial {
		return
	}
	c := b.circuit(p.provider)
	if c.state.CompareAndSwap(int32(CircuitHalfOpen), int32(CircuitOpen)) {
		b.transitioned(p.provider, CircuitHalfOpen, CircuitOpen)
	}
}

// State returns the current state of provider's circuit
func (b *CircuitBreaker) State(provider string) CircuitState {
	return CircuitState(b.circuit(provider).state.Load())
}

// Snapshot returns the current state, failure count and open time of provider's circuit
func (b *CircuitBreaker) Snapshot(provider string) CircuitSnapshot {
	c := b.circuit(provider)
	snap := CircuitSnapshot{
		State:               CircuitState(c.state.Load()),
		ConsecutiveFailures: c.failures.Load(),
	}
	if snap.State != CircuitClosed {
		snap.OpenedAt = time.Unix(0, c.openedAt.Load())
	}
	return snap
}

func (b *CircuitBreaker) transitioned(provider string, from, to CircuitState) {
	b.logger.Info("Circuit breaker state changed",
		zap.String("provider", provider),
		zap.String("from", from.String()),
		zap.String("to", to.String()))
	if b.onTransition != nil {
		b.onTransition(provider, from, to)
	}
}
