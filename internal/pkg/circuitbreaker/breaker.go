package circuitbreaker

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/endorses/paycat/internal/pkg/logger"
)

// ErrOpen is returned without calling the protected function while the breaker rejects calls
var ErrOpen = errors.New("circuit breaker is open")

// State represents the circuit breaker state
type State int32

const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Failing, reject calls immediately
	StateHalfOpen              // Probing whether the backend recovered
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config contains circuit breaker configuration
type Config struct {
	Name         string        // Backend name (for logging)
	MaxFailures  uint32        // Consecutive failures before opening (default: 5)
	ResetTimeout time.Duration // Time spent open before probing (default: 30s)
	ProbeCalls   uint32        // Concurrent calls allowed while half-open (default: 1)

	now func() time.Time
}

// Breaker guards a flaky backend. Calls fail fast with ErrOpen once
// MaxFailures consecutive calls have failed, until ResetTimeout has elapsed
// and a probe call succeeds.
type Breaker struct {
	name         string
	maxFailures  uint32
	resetTimeout time.Duration
	probeCalls   uint32
	now          func() time.Time

	state            atomic.Int32
	consecutiveFails atomic.Uint32
	openedAt         atomic.Int64
	inFlightProbes   atomic.Uint32

	attempts   atomic.Uint64
	successes  atomic.Uint64
	failures   atomic.Uint64
	rejections atomic.Uint64
}

// New creates a new circuit breaker
func New(config Config) *Breaker {
	if config.MaxFailures == 0 {
		config.MaxFailures = 5
	}
	if config.ResetTimeout == 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.ProbeCalls == 0 {
		config.ProbeCalls = 1
	}
	if config.now == nil {
		config.now = time.Now
	}

	b := &Breaker{
		name:         config.Name,
		maxFailures:  config.MaxFailures,
		resetTimeout: config.ResetTimeout,
		probeCalls:   config.ProbeCalls,
		now:          config.now,
	}
	b.state.Store(int32(StateClosed))
	return b
}

// Name returns the name the breaker logs under
func (b *Breaker) Name() string {
	return b.name
}

// Call runs fn unless the breaker is open. fn's error is returned unchanged.
func (b *Breaker) Call(fn func() error) error {
	b.attempts.Add(1)

	probing := false
	switch State(b.state.Load()) {
	case StateOpen:
		opened := time.Unix(0, b.openedAt.Load())
		if b.now().Sub(opened) < b.resetTimeout {
			b.rejections.Add(1)
			return fmt.Errorf("%w: %s", ErrOpen, b.name)
		}
		if b.state.CompareAndSwap(int32(StateOpen), int32(StateHalfOpen)) {
			logger.Info("Circuit breaker half-open, probing backend", "name", b.name)
		}
		fallthrough
	case StateHalfOpen:
		if b.inFlightProbes.Add(1) > b.probeCalls {
			b.inFlightProbes.Add(^uint32(0))
			b.rejections.Add(1)
			return fmt.Errorf("%w: %s (probe in progress)", ErrOpen, b.name)
		}
		probing = true
	}

	err := fn()
	if probing {
		b.inFlightProbes.Add(^uint32(0))
	}

	if err != nil {
		b.recordFailure()
		return err
	}
	b.recordSuccess()
	return nil
}

func (b *Breaker) recordSuccess() {
	b.successes.Add(1)
	b.consecutiveFails.Store(0)
	if old := State(b.state.Swap(int32(StateClosed))); old != StateClosed {
		logger.Info("Circuit breaker closed, backend recovered",
			"name", b.name,
			"previous_state", old.String())
	}
}

func (b *Breaker) recordFailure() {
	b.failures.Add(1)
	fails := b.consecutiveFails.Add(1)

	if State(b.state.Load()) == StateHalfOpen || fails >= b.maxFailures {
		b.openedAt.Store(b.now().UnixNano())
		if old := State(b.state.Swap(int32(StateOpen))); old != StateOpen {
			logger.Warn("Circuit breaker opened, backend failing",
				"name", b.name,
				"previous_state", old.String(),
				"consecutive_failures", fails,
				"reset_timeout", b.resetTimeout)
		}
	}
}

// State returns the current state
func (b *Breaker) State() State {
	return State(b.state.Load())
}

// Metrics contains circuit breaker statistics
type Metrics struct {
	State            State
	ConsecutiveFails uint32
	Attempts         uint64
	Successes        uint64
	Failures         uint64
	Rejections       uint64
}

// Metrics returns current counters
func (b *Breaker) Metrics() Metrics {
	return Metrics{
		State:            b.State(),
		ConsecutiveFails: b.consecutiveFails.Load(),
		Attempts:         b.attempts.Load(),
		Successes:        b.successes.Load(),
		Failures:         b.failures.Load(),
		Rejections:       b.rejections.Load(),
	}
}

// Reset forces the breaker closed
func (b *Breaker) Reset() {
	b.consecutiveFails.Store(0)
	b.inFlightProbes.Store(0)
	b.state.Store(int32(StateClosed))
	logger.Info("Circuit breaker manually reset", "name", b.name)
}
