// Package retry implements the retry/backoff and circuit-breaker policy
// used when a task's retry configuration is exhausted or a host's
// failures should be tracked across tasks.
package retry

import (
	"sync"
	"time"
)

// CircuitState is one of the three circuit breaker states.
type CircuitState int

const (
	Closed CircuitState = iota
	Open
	HalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	}
	return "unknown"
}

// CircuitBreakerConfig names a circuit and its thresholds.
type CircuitBreakerConfig struct {
	Name             string
	FailureThreshold uint32
	ResetTimeout     time.Duration
	SuccessThreshold uint32
}

// CircuitBreaker tracks failures for one named resource (a host, a
// module, a remote API) and blocks further attempts once it trips open.
type CircuitBreaker struct {
	mu               sync.Mutex
	config           CircuitBreakerConfig
	state            CircuitState
	failureCount     uint32
	successCount     uint32
	lastFailureTime  time.Time
	hasLastFailure   bool
}

func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{config: config, state: Closed}
}

func (c *CircuitBreaker) State() CircuitState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ShouldAllow reports whether a request may proceed right now,
// transitioning Open -> HalfOpen when the reset timeout has elapsed.
func (c *CircuitBreaker) ShouldAllow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case Closed:
		return true
	case Open:
		if c.hasLastFailure && time.Since(c.lastFailureTime) >= c.config.ResetTimeout {
			c.state = HalfOpen
			c.successCount = 0
			return true
		}
		return false
	case HalfOpen:
		return true
	}
	return false
}

// RecordSuccess marks a successful attempt, closing the circuit once
// enough consecutive successes have accumulated in HalfOpen.
func (c *CircuitBreaker) RecordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case Closed:
		c.failureCount = 0
	case HalfOpen:
		c.successCount++
		if c.successCount >= c.config.SuccessThreshold {
			c.state = Closed
			c.failureCount = 0
			c.successCount = 0
		}
	case Open:
		// should not happen: Open blocks attempts via ShouldAllow
	}
}

// RecordFailure marks a failed attempt, tripping the circuit open once
// the failure threshold is reached (or immediately, from HalfOpen).
func (c *CircuitBreaker) RecordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastFailureTime = time.Now()
	c.hasLastFailure = true
	switch c.state {
	case Closed:
		c.failureCount++
		if c.failureCount >= c.config.FailureThreshold {
			c.state = Open
		}
	case HalfOpen:
		c.state = Open
		c.successCount = 0
	case Open:
		// already open
	}
}

// TimeUntilRetry returns the remaining time before ShouldAllow would
// transition the circuit out of Open, or false if not currently open
// and blocked.
func (c *CircuitBreaker) TimeUntilRetry() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Open || !c.hasLastFailure {
		return 0, false
	}
	elapsed := time.Since(c.lastFailureTime)
	if elapsed < c.config.ResetTimeout {
		return c.config.ResetTimeout - elapsed, true
	}
	return 0, false
}

// CircuitBreakerRegistry shares circuit breakers by name across tasks
// and hosts, so repeated failures against the same resource accumulate
// into one breaker regardless of which task or host observed them.
type CircuitBreakerRegistry struct {
	mu       sync.RWMutex
	circuits map[string]*CircuitBreaker
}

func NewCircuitBreakerRegistry() *CircuitBreakerRegistry {
	return &CircuitBreakerRegistry{circuits: map[string]*CircuitBreaker{}}
}

// GetOrCreate returns the named circuit breaker, creating it from config
// on first use. Later calls with a different config for the same name
// still return the original breaker.
func (r *CircuitBreakerRegistry) GetOrCreate(config CircuitBreakerConfig) *CircuitBreaker {
	r.mu.RLock()
	cb, ok := r.circuits[config.Name]
	r.mu.RUnlock()
	if ok {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.circuits[config.Name]; ok {
		return cb
	}
	cb = NewCircuitBreaker(config)
	r.circuits[config.Name] = cb
	return cb
}

// Status reports the current state of a named circuit, if it exists.
func (r *CircuitBreakerRegistry) Status(name string) (CircuitState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cb, ok := r.circuits[name]
	if !ok {
		return Closed, false
	}
	return cb.State(), true
}
