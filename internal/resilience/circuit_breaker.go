package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int32

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

type CircuitBreakerConfig struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
}

// BreakerSnapshot is a point-in-time view used by health reporting.
type BreakerSnapshot struct {
	Name                string
	State               State
	ConsecutiveFailures int
	LastFailure         time.Time
}

// CircuitBreaker stops calling a dependency after FailureThreshold
// consecutive failures and lets a single probe through once
// RecoveryTimeout has passed since the last failure.
type CircuitBreaker struct {
	name      string
	cfg       CircuitBreakerConfig
	now       func() time.Time
	isFailure func(error) bool
	metrics   *Metrics

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	probing     bool
	generation  uint64
}

func NewCircuitBreaker(name string, cfg CircuitBreakerConfig, opts ...Option) *CircuitBreaker {
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = 1
	}
	o := buildOptions(opts)
	return &CircuitBreaker{
		name:      name,
		cfg:       cfg,
		now:       o.now,
		isFailure: o.isFailure,
		metrics:   o.metrics,
	}
}

// Allow reports whether a call may proceed. In open state the first call
// after the recovery timeout moves the breaker to half-open and becomes the
// probe; everyone else is refused until the probe reports back.
func (cb *CircuitBreaker) Allow() bool {
	_, ok := cb.admit()
	return ok
}

// admit is Allow plus the generation the admitted call belongs to. Every
// state transition starts a new generation.
func (cb *CircuitBreaker) admit() (uint64, bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return cb.generation, true
	case StateOpen:
		if cb.now().Sub(cb.lastFailure) > cb.cfg.RecoveryTimeout {
			cb.transition(StateHalfOpen)
			cb.probing = true
			return cb.generation, true
		}
	case StateHalfOpen:
		if !cb.probing {
			cb.probing = true
			return cb.generation, true
		}
	}
	cb.metrics.breakerRejection(cb.name)
	return 0, false
}

// RecordSuccess reports a successful call of the current generation. It
// never closes an open breaker; only the half-open trial call does that.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onSuccess(cb.generation)
}

// RecordFailure reports a failed call of the current generation.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onFailure(cb.generation)
}

func (cb *CircuitBreaker) onSuccess(gen uint64) {
	if gen != cb.generation {
		return
	}
	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		if cb.probing {
			cb.probing = false
			cb.transition(StateClosed)
		}
	}
}

func (cb *CircuitBreaker) onFailure(gen uint64) {
	if gen != cb.generation {
		return
	}
	switch cb.state {
	case StateClosed:
		cb.lastFailure = cb.now()
		cb.failures++
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.transition(StateOpen)
		}
	case StateHalfOpen:
		if cb.probing {
			cb.lastFailure = cb.now()
			cb.probing = false
			cb.transition(StateOpen)
		}
	}
}

// abandon frees the half-open trial slot without a verdict.
func (cb *CircuitBreaker) abandon(gen uint64) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if gen == cb.generation && cb.state == StateHalfOpen {
		cb.probing = false
	}
}

// Execute runs fn when Allow permits and records its outcome. Outcomes of
// calls admitted before the last state change are ignored. A caller
// cancellation is neither a success nor a failure.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	gen, ok := cb.admit()
	if !ok {
		return ErrCircuitOpen
	}
	err := fn(ctx)
	switch {
	case err != nil && errors.Is(err, context.Canceled):
		cb.abandon(gen)
	case cb.isFailure(err):
		cb.mu.Lock()
		cb.onFailure(gen)
		cb.mu.Unlock()
	default:
		cb.mu.Lock()
		cb.onSuccess(gen)
		cb.mu.Unlock()
	}
	return err
}

// State returns the current state without side effects.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// IsOpen reports whether calls are currently being refused. It does not
// consume the half-open probe.
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case StateOpen:
		return cb.now().Sub(cb.lastFailure) <= cb.cfg.RecoveryTimeout
	case StateHalfOpen:
		return cb.probing
	}
	return false
}

func (cb *CircuitBreaker) Snapshot() BreakerSnapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return BreakerSnapshot{
		Name:                cb.name,
		State:               cb.state,
		ConsecutiveFailures: cb.failures,
		LastFailure:         cb.lastFailure,
	}
}

func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// transition must be called with mu held.
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	cb.state = to
	cb.generation++
	if to == StateClosed {
		cb.failures = 0
	}
	cb.metrics.breakerTransition(cb.name, from, to)
}
