package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while a breaker rejects calls.
var ErrCircuitOpen = errors.New("resilience: circuit open")

// State is the breaker state.
type State int

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

// CircuitBreakerConfig configures a CircuitBreaker.
type CircuitBreakerConfig struct {
	// Name labels state-change callbacks.
	Name string `yaml:"name" mapstructure:"name"`
	// MaxFailures is the number of consecutive failures that opens the circuit.
	MaxFailures int `yaml:"max_failures" mapstructure:"max_failures" validate:"gte=0"`
	// OpenTimeout is how long the circuit stays open before a trial call.
	OpenTimeout time.Duration `yaml:"open_timeout" mapstructure:"open_timeout" validate:"gte=0"`
	// HalfOpenMaxCalls is the number of trial calls let through while half-open.
	HalfOpenMaxCalls int `yaml:"half_open_max_calls" mapstructure:"half_open_max_calls" validate:"gte=0"`
	// FailureIf reports whether err counts against the circuit. Nil counts
	// every error except context cancellation.
	FailureIf func(error) bool `yaml:"-" mapstructure:"-"`
	// OnStateChange is called with the lock released after each transition.
	OnStateChange func(name string, from, to State) `yaml:"-" mapstructure:"-"`
}

// DefaultCircuitBreakerConfig returns a breaker that opens after 5 failures
// and lets a trial call through after 30 seconds.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		MaxFailures:      5,
		OpenTimeout:      30 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// CircuitBreaker fails calls fast once an upstream keeps failing. Callers
// either wrap a call with Execute or pair Allow with Record when the outcome
// is known before the call returns, as with an opened stream.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig
	now func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	trials   int
	passed   int
	openedAt time.Time
}

// NewCircuitBreaker returns a closed breaker. Zero config fields take the
// DefaultCircuitBreakerConfig values.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	d := DefaultCircuitBreakerConfig(cfg.Name)
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = d.MaxFailures
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = d.OpenTimeout
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = d.HalfOpenMaxCalls
	}
	if cfg.FailureIf == nil {
		cfg.FailureIf = DefaultRetryIf
	}
	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// Execute runs fn unless the circuit is open.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.Allow(); err != nil {
		return err
	}
	err := fn()
	cb.Record(err)
	return err
}

// Allow reserves a call. It returns ErrCircuitOpen when the call must not be
// made. Every nil return must be followed by exactly one Record.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	from := cb.state
	cb.advance()
	allowed := true
	switch cb.state {
	case StateOpen:
		allowed = false
	case StateHalfOpen:
		if cb.trials >= cb.cfg.HalfOpenMaxCalls {
			allowed = false
		} else {
			cb.trials++
		}
	}
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
	if !allowed {
		return ErrCircuitOpen
	}
	return nil
}

// Record reports the outcome of a call reserved with Allow.
func (cb *CircuitBreaker) Record(err error) {
	failed := err != nil && cb.cfg.FailureIf(err)

	cb.mu.Lock()
	from := cb.state
	switch {
	case failed && cb.state == StateHalfOpen:
		cb.open()
	case failed:
		cb.failures++
		if cb.failures >= cb.cfg.MaxFailures {
			cb.open()
		}
	case cb.state == StateHalfOpen:
		cb.passed++
		if cb.passed >= cb.cfg.HalfOpenMaxCalls {
			cb.reset()
		}
	default:
		cb.failures = 0
	}
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.advance()
	return cb.state
}

// Failures returns the consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Reset closes the circuit.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from := cb.state
	cb.reset()
	cb.mu.Unlock()
	cb.notify(from, StateClosed)
}

// advance moves an expired open circuit to half-open. Caller holds mu.
func (cb *CircuitBreaker) advance() {
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.cfg.OpenTimeout {
		cb.state = StateHalfOpen
		cb.trials, cb.passed = 0, 0
	}
}

func (cb *CircuitBreaker) open() {
	cb.state = StateOpen
	cb.openedAt = cb.now()
	cb.failures = 0
	cb.trials, cb.passed = 0, 0
}

func (cb *CircuitBreaker) reset() {
	cb.state = StateClosed
	cb.failures = 0
	cb.trials, cb.passed = 0, 0
}

func (cb *CircuitBreaker) notify(from, to State) {
	if from != to && cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.cfg.Name, from, to)
	}
}
