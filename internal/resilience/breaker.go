// Package resilience guards calls to flaky upstream services. The
// breaker here fronts the Claude API client so that a dead upstream
// fails fast instead of burning retry and rate-limit budget.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the position of a breaker at a point in time.
type State int32

const (
	// StateClosed passes requests through and tallies failures.
	StateClosed State = iota
	// StateOpen rejects requests until the cool-off deadline passes.
	StateOpen
	// StateHalfOpen admits a limited number of probe requests.
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
	default:
		return "unknown"
	}
}

var (
	// ErrCircuitOpen is returned while the breaker is rejecting requests.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrTooManyRequests is returned when the half-open probe quota is spent.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// Counts are the tallies for the breaker's current epoch. An epoch ends
// on every state change and, in the closed state, when the interval
// expires.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// BreakerConfig tunes a Breaker. Zero fields get conservative defaults.
type BreakerConfig struct {
	// Name identifies the breaker in logs and state-change callbacks.
	Name string

	// MaxRequests caps in-flight probes while half-open.
	MaxRequests uint32

	// Interval resets the closed-state tallies, so failures from hours
	// ago cannot combine with fresh ones to trip the breaker. Zero
	// keeps tallies until the next state change.
	Interval time.Duration

	// Timeout is the open-state cool-off before probing resumes.
	Timeout time.Duration

	// ReadyToTrip is consulted after each failure in the closed state.
	// Returning true opens the circuit.
	ReadyToTrip func(Counts) bool

	// OnStateChange observes transitions.
	OnStateChange func(name string, from, to State)

	// IsSuccessful classifies the callback's error. Errors the upstream
	// is not responsible for, such as a rejected request body, should
	// count as success here.
	IsSuccessful func(err error) bool
}

// DefaultBreakerConfig suits a remote HTTP API: trip once the failure
// rate hits 60% with enough traffic to judge, probe again after 30s.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c Counts) bool {
			return c.Requests >= 5 && float64(c.TotalFailures)/float64(c.Requests) >= 0.6
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	}
}

// Breaker is a circuit breaker. The zero value is not usable; construct
// with NewBreaker.
type Breaker struct {
	name      string
	probes    uint32
	window    time.Duration
	coolOff   time.Duration
	tripWhen  func(Counts) bool
	onChange  func(name string, from, to State)
	succeeded func(err error) bool

	mu       sync.Mutex
	state    State
	epoch    uint64
	counts   Counts
	deadline time.Time
	inFlight uint32
}

// NewBreaker builds a Breaker, filling zero config fields with defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	b := &Breaker{
		name:      cfg.Name,
		probes:    cfg.MaxRequests,
		window:    cfg.Interval,
		coolOff:   cfg.Timeout,
		tripWhen:  cfg.ReadyToTrip,
		onChange:  cfg.OnStateChange,
		succeeded: cfg.IsSuccessful,
	}
	if b.probes == 0 {
		b.probes = 1
	}
	if b.coolOff == 0 {
		b.coolOff = 30 * time.Second
	}
	if b.tripWhen == nil {
		b.tripWhen = func(c Counts) bool {
			return c.ConsecutiveFailures > 5
		}
	}
	if b.succeeded == nil {
		b.succeeded = func(err error) bool {
			return err == nil
		}
	}
	b.reset(time.Now())
	return b
}

// Name returns the breaker's configured name.
func (b *Breaker) Name() string {
	return b.name
}

// State reports the breaker's position, advancing open to half-open
// when the cool-off deadline has passed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, _ := b.stateAt(time.Now())
	return s
}

// Counts returns a snapshot of the current epoch's tallies.
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// Execute runs fn if the breaker admits the request.
func (b *Breaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	return b.ExecuteWithContext(context.Background(), func(context.Context) (interface{}, error) {
		return fn()
	})
}

// ExecuteWithContext runs fn under the breaker. ErrCircuitOpen and
// ErrTooManyRequests are returned without invoking fn; any other error
// comes from fn itself.
func (b *Breaker) ExecuteWithContext(ctx context.Context, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	epoch, err := b.admit()
	if err != nil {
		return nil, err
	}

	// A panic counts as a failure; the probe slot must not leak.
	defer func() {
		if r := recover(); r != nil {
			b.settle(epoch, false)
			panic(r)
		}
	}()

	out, err := fn(ctx)
	b.settle(epoch, b.succeeded(err))
	return out, err
}

func (b *Breaker) admit() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	state, epoch := b.stateAt(now)

	switch state {
	case StateOpen:
		return epoch, ErrCircuitOpen
	case StateHalfOpen:
		if b.inFlight >= b.probes {
			return epoch, ErrTooManyRequests
		}
		b.inFlight++
	}

	b.counts.Requests++
	return epoch, nil
}

func (b *Breaker) settle(epoch uint64, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	state, current := b.stateAt(now)
	if current != epoch {
		// The breaker changed epochs while the request ran; its tallies
		// were reset and this result no longer belongs anywhere.
		return
	}

	if success {
		b.counts.TotalSuccesses++
		b.counts.ConsecutiveSuccesses++
		b.counts.ConsecutiveFailures = 0
		if state == StateHalfOpen && b.counts.ConsecutiveSuccesses >= b.probes {
			b.transition(StateClosed, now)
		}
		return
	}

	b.counts.TotalFailures++
	b.counts.ConsecutiveFailures++
	b.counts.ConsecutiveSuccesses = 0

	switch state {
	case StateClosed:
		if b.tripWhen(b.counts) {
			b.transition(StateOpen, now)
		}
	case StateHalfOpen:
		// One failed probe is enough evidence the upstream is still down.
		b.transition(StateOpen, now)
	}
}

// stateAt resolves deadline-driven transitions before reporting the
// state. Callers must hold b.mu.
func (b *Breaker) stateAt(now time.Time) (State, uint64) {
	switch b.state {
	case StateClosed:
		if !b.deadline.IsZero() && b.deadline.Before(now) {
			b.reset(now)
		}
	case StateOpen:
		if b.deadline.Before(now) {
			b.transition(StateHalfOpen, now)
		}
	}
	return b.state, b.epoch
}

func (b *Breaker) transition(to State, now time.Time) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.reset(now)
	if b.onChange != nil {
		b.onChange(b.name, from, to)
	}
}

// reset begins a new epoch: tallies cleared, deadline set for the state.
func (b *Breaker) reset(now time.Time) {
	b.epoch++
	b.counts = Counts{}
	b.inFlight = 0

	switch b.state {
	case StateClosed:
		if b.window > 0 {
			b.deadline = now.Add(b.window)
		} else {
			b.deadline = time.Time{}
		}
	case StateOpen:
		b.deadline = now.Add(b.coolOff)
	default:
		b.deadline = time.Time{}
	}
}
