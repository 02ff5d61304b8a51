package retry

import (
	"testing"
	"time"
)

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: 3,
		ResetTimeout:     60 * time.Second,
		SuccessThreshold: 2,
	})

	if cb.State() != Closed {
		t.Fatalf("initial state = %v, want Closed", cb.State())
	}
	if !cb.ShouldAllow() {
		t.Fatal("closed circuit should allow requests")
	}

	cb.RecordFailure()
	if cb.State() != Closed {
		t.Errorf("state after 1 failure = %v, want Closed", cb.State())
	}
	cb.RecordFailure()
	if cb.State() != Closed {
		t.Errorf("state after 2 failures = %v, want Closed", cb.State())
	}
	cb.RecordFailure()
	if cb.State() != Open {
		t.Errorf("state after 3 failures = %v, want Open", cb.State())
	}
	if cb.ShouldAllow() {
		t.Error("open circuit should not allow requests")
	}
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "recover",
		FailureThreshold: 1,
		ResetTimeout:     1 * time.Millisecond,
		SuccessThreshold: 2,
	})
	cb.RecordFailure()
	if cb.State() != Open {
		t.Fatalf("state = %v, want Open", cb.State())
	}

	time.Sleep(5 * time.Millisecond)
	if !cb.ShouldAllow() {
		t.Fatal("circuit should allow a trial request after reset timeout")
	}
	if cb.State() != HalfOpen {
		t.Fatalf("state = %v, want HalfOpen", cb.State())
	}

	cb.RecordSuccess()
	if cb.State() != HalfOpen {
		t.Fatalf("state after 1 success = %v, want HalfOpen", cb.State())
	}
	cb.RecordSuccess()
	if cb.State() != Closed {
		t.Fatalf("state after success_threshold successes = %v, want Closed", cb.State())
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "flaky",
		FailureThreshold: 1,
		ResetTimeout:     1 * time.Millisecond,
		SuccessThreshold: 2,
	})
	cb.RecordFailure()
	time.Sleep(5 * time.Millisecond)
	cb.ShouldAllow() // transitions to HalfOpen
	cb.RecordFailure()
	if cb.State() != Open {
		t.Errorf("state after half-open failure = %v, want Open", cb.State())
	}
}

func TestExponentialBackoff(t *testing.T) {
	s := DelayStrategy{Kind: Exponential, Base: time.Second, Max: 60 * time.Second, Jitter: false}
	cases := map[uint32]time.Duration{
		0:  1 * time.Second,
		1:  2 * time.Second,
		2:  4 * time.Second,
		3:  8 * time.Second,
		10: 60 * time.Second, // capped at max
	}
	for attempt, want := range cases {
		got := CalculateDelay(s, attempt)
		if got != want {
			t.Errorf("CalculateDelay(attempt=%d) = %v, want %v", attempt, got, want)
		}
	}
}

func TestLinearBackoff(t *testing.T) {
	s := DelayStrategy{Kind: Linear, Base: 5 * time.Second, Increment: 10 * time.Second, Max: 60 * time.Second}
	cases := map[uint32]time.Duration{
		0:  5 * time.Second,
		1:  15 * time.Second,
		2:  25 * time.Second,
		10: 60 * time.Second, // capped at max
	}
	for attempt, want := range cases {
		got := CalculateDelay(s, attempt)
		if got != want {
			t.Errorf("CalculateDelay(attempt=%d) = %v, want %v", attempt, got, want)
		}
	}
}

func TestFixedBackoff(t *testing.T) {
	s := DelayStrategy{Kind: Fixed, Duration: 3 * time.Second}
	if got := CalculateDelay(s, 5); got != 3*time.Second {
		t.Errorf("fixed delay = %v, want 3s", got)
	}
}

func TestCircuitBreakerRegistry(t *testing.T) {
	reg := NewCircuitBreakerRegistry()
	config := CircuitBreakerConfig{Name: "db", FailureThreshold: 5, ResetTimeout: 30 * time.Second, SuccessThreshold: 2}

	cb1 := reg.GetOrCreate(config)
	cb2 := reg.GetOrCreate(config)
	if cb1 != cb2 {
		t.Error("GetOrCreate should return the same circuit breaker instance for the same name")
	}

	cb1.RecordFailure()
	cb1.RecordFailure()
	cb1.RecordFailure()
	cb1.RecordFailure()
	cb1.RecordFailure()
	state, ok := reg.Status("db")
	if !ok || state != Open {
		t.Errorf("registry status for db = %v, %v; want Open, true", state, ok)
	}
}

func TestDoSucceedsWithoutRetry(t *testing.T) {
	calls := 0
	result := Do[int](nil, DelayStrategy{Kind: Fixed, Duration: time.Millisecond}, 3, func(attempt uint32) (int, error) {
		calls++
		return 42, nil
	})
	if !result.Ok || result.Value != 42 {
		t.Fatalf("expected success with value 42, got %+v", result)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	result := Do[int](nil, DelayStrategy{Kind: Fixed, Duration: time.Millisecond}, 3, func(attempt uint32) (int, error) {
		calls++
		return 0, errAlwaysFails
	})
	if result.Ok || result.Failed == nil {
		t.Fatalf("expected a Failed result, got %+v", result)
	}
	if result.Failed.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", result.Failed.Attempts)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDoBlockedByOpenCircuit(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "blocked", FailureThreshold: 1, ResetTimeout: time.Hour, SuccessThreshold: 1})
	cb.RecordFailure()

	result := Do[int](cb, DelayStrategy{Kind: Fixed, Duration: time.Millisecond}, 3, func(attempt uint32) (int, error) {
		t.Fatal("fn should not be called while circuit is open")
		return 0, nil
	})
	if result.Blocked == nil {
		t.Fatalf("expected a Blocked result, got %+v", result)
	}
	if result.Blocked.CircuitName != "blocked" {
		t.Errorf("circuit name = %q, want blocked", result.Blocked.CircuitName)
	}
}

type staticError string

func (e staticError) Error() string { return string(e) }

const errAlwaysFails = staticError("always fails")
