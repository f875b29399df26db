package errors

import (
	"errors"
	"sync"
	"time"
)

const (
	ErrorThreshold      = 0.5
	MinRequests         = 10
	TimeoutDuration     = 30 * time.Second
	HalfOpenMaxRequests = 3
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

var (
	ErrCircuitOpen = errors.New("circuit breaker is open")
	errProbeLimit  = errors.New("circuit breaker is probing")
)

// CircuitBreaker stops calling a failing dependency for TimeoutDuration once
// the error rate over at least MinRequests calls reaches ErrorThreshold. After
// the timeout up to HalfOpenMaxRequests probes run at once; that many
// consecutive successes close it again and any failure reopens it.
//
// Outcomes of calls admitted before a state change are discarded.
type CircuitBreaker struct {
	mu         sync.Mutex
	state      State
	generation uint64
	requests   int
	failures   int
	successes  int
	probes     int
	openedAt   time.Time
	changes    []transition

	// IsFailure decides which errors count against the breaker. Defaults to every non-nil error.
	IsFailure func(error) bool
	// OnStateChange is called outside the lock after every transition.
	OnStateChange func(from, to State)

	now func() time.Time
}

type transition struct {
	from, to State
}

func NewCircuitBreaker() *CircuitBreaker {
	return &CircuitBreaker{now: time.Now}
}

// Call runs fn unless the breaker rejects it. A rejected call returns an
// unavailable AppError wrapping ErrCircuitOpen.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if fn == nil {
		return nil
	}

	generation, err := cb.admit()
	if err != nil {
		return err
	}

	callErr := fn()
	cb.record(generation, callErr)
	return callErr
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) admit() (uint64, error) {
	cb.mu.Lock()
	defer cb.unlock()

	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= TimeoutDuration {
		cb.setState(StateHalfOpen)
	}

	switch cb.state {
	case StateOpen:
		return 0, NewUnavailableError(ErrCircuitOpen)
	case StateHalfOpen:
		if cb.probes+cb.successes >= HalfOpenMaxRequests {
			return 0, NewUnavailableError(errors.Join(ErrCircuitOpen, errProbeLimit))
		}
		cb.probes++
	}
	return cb.generation, nil
}

func (cb *CircuitBreaker) record(generation uint64, err error) {
	cb.mu.Lock()
	defer cb.unlock()

	if generation != cb.generation {
		return
	}
	failed := err != nil && (cb.IsFailure == nil || cb.IsFailure(err))

	switch cb.state {
	case StateClosed:
		cb.requests++
		if failed {
			cb.failures++
		}
		if cb.requests >= MinRequests && float64(cb.failures)/float64(cb.requests) >= ErrorThreshold {
			cb.setState(StateOpen)
		}
	case StateHalfOpen:
		cb.probes--
		if failed {
			cb.setState(StateOpen)
			return
		}
		cb.successes++
		if cb.successes >= HalfOpenMaxRequests {
			cb.setState(StateClosed)
		}
	}
}

// setState must be called with mu held.
func (cb *CircuitBreaker) setState(to State) {
	if cb.state == to {
		return
	}
	cb.changes = append(cb.changes, transition{from: cb.state, to: to})

	cb.state = to
	cb.generation++
	cb.requests, cb.failures, cb.successes, cb.probes = 0, 0, 0, 0
	if to == StateOpen {
		cb.openedAt = cb.now()
	}
}

// unlock releases mu and then reports queued transitions.
func (cb *CircuitBreaker) unlock() {
	changes := cb.changes
	cb.changes = nil
	notify := cb.OnStateChange
	cb.mu.Unlock()

	if notify == nil {
		return
	}
	for _, c := range changes {
		notify(c.from, c.to)
	}
}
