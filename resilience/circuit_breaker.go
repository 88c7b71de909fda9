package resilience

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// State is a circuit breaker state.
type State int

const (
	// StateClosed lets calls through and counts consecutive failures.
	StateClosed State = iota
	// StateOpen rejects calls until OpenTimeout has passed.
	StateOpen
	// StateHalfOpen admits a few trial calls.
	StateHalfOpen
)

var stateNames = [...]string{"closed", "open", "half-open"}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// ErrCircuitOpen matches every rejection by an open breaker.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// OpenError is returned while the breaker rejects calls.
type OpenError struct {
	Name string
	// RetryIn is how long until the breaker admits a trial call.
	RetryIn time.Duration
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("%s: circuit open, retry in %s", e.Name, e.RetryIn.Round(time.Millisecond))
}

// Is makes errors.Is(err, ErrCircuitOpen) hold.
func (e *OpenError) Is(target error) bool { return target == ErrCircuitOpen }

// CircuitBreakerConfig configures a circuit breaker.
type CircuitBreakerConfig struct {
	Name string `yaml:"name" mapstructure:"name"`
	// MaxFailures is the number of consecutive failures that opens the circuit.
	MaxFailures int `yaml:"max_failures" mapstructure:"max_failures"`
	// OpenTimeout is how long the circuit stays open before a trial call.
	OpenTimeout time.Duration `yaml:"open_timeout" mapstructure:"open_timeout"`
	// HalfOpenMaxCalls trial calls must all succeed to close the circuit.
	HalfOpenMaxCalls int `yaml:"half_open_max_calls" mapstructure:"half_open_max_calls"`
	// IsFailure decides whether an error counts against the circuit.
	// Nil counts every non-nil error.
	IsFailure func(error) bool `yaml:"-" mapstructure:"-"`
	// OnStateChange is called with the breaker's lock held; keep it short.
	OnStateChange func(name string, from, to State) `yaml:"-" mapstructure:"-"`
}

// DefaultCircuitBreakerConfig opens after 5 straight failures for 30s.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		MaxFailures:      5,
		OpenTimeout:      30 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// BreakerSnapshot is a point-in-time view of a breaker for health reports.
type BreakerSnapshot struct {
	Name     string
	State    State
	Failures int
	// RetryIn is set while the circuit is open.
	RetryIn time.Duration
}

// CircuitBreaker fails calls fast while a dependency keeps failing.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig
	now func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	// trials admitted and succeeded in the current half-open round.
	admitted, passed int
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	def := DefaultCircuitBreakerConfig(cfg.Name)
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = def.MaxFailures
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = def.HalfOpenMaxCalls
	}
	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// Allow admits one call. The caller must report the call's outcome through
// done exactly once. A rejected call gets an *OpenError.
func (cb *CircuitBreaker) Allow() (done func(error), err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.advance() {
	case StateOpen:
		return nil, cb.openError()
	case StateHalfOpen:
		if cb.admitted >= cb.cfg.HalfOpenMaxCalls {
			return nil, cb.openError()
		}
		cb.admitted++
	}

	var once sync.Once
	return func(err error) { once.Do(func() { cb.record(err) }) }, nil
}

// Execute runs fn when the breaker admits it and records the outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	done, err := cb.Allow()
	if err != nil {
		return err
	}
	err = fn()
	done(err)
	return err
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.advance()
}

// Snapshot returns the breaker's state for health reporting.
func (cb *CircuitBreaker) Snapshot() BreakerSnapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	s := BreakerSnapshot{Name: cb.cfg.Name, State: cb.advance(), Failures: cb.failures}
	if s.State == StateOpen {
		s.RetryIn = cb.retryIn()
	}
	return s
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	failed := err != nil && (cb.cfg.IsFailure == nil || cb.cfg.IsFailure(err))
	switch cb.advance() {
	case StateClosed:
		if !failed {
			cb.failures = 0
			return
		}
		cb.failures++
		if cb.failures >= cb.cfg.MaxFailures {
			cb.transition(StateOpen)
		}
	case StateHalfOpen:
		if failed {
			cb.failures++
			cb.transition(StateOpen)
			return
		}
		cb.passed++
		if cb.passed >= cb.cfg.HalfOpenMaxCalls {
			cb.transition(StateClosed)
		}
	}
}

// advance moves an expired open circuit to half-open. Callers hold mu.
func (cb *CircuitBreaker) advance() State {
	if cb.state == StateOpen && cb.retryIn() <= 0 {
		cb.transition(StateHalfOpen)
	}
	return cb.state
}

func (cb *CircuitBreaker) retryIn() time.Duration {
	return cb.cfg.OpenTimeout - cb.now().Sub(cb.openedAt)
}

func (cb *CircuitBreaker) openError() *OpenError {
	return &OpenError{Name: cb.cfg.Name, RetryIn: max(cb.retryIn(), 0)}
}

func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	cb.state = to
	cb.admitted, cb.passed = 0, 0
	switch to {
	case StateOpen:
		cb.openedAt = cb.now()
	case StateClosed:
		cb.failures = 0
	}
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.cfg.Name, from, to)
	}
}
