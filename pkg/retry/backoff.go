package retry

import (
	"math/rand"
	"time"
)

// DelayStrategyKind selects which backoff formula CalculateDelay applies.
type DelayStrategyKind int

const (
	Fixed DelayStrategyKind = iota
	Exponential
	Linear
)

// DelayStrategy configures one of the three backoff formulas. Only the
// fields relevant to Kind are read.
type DelayStrategy struct {
	Kind DelayStrategyKind

	// Fixed
	Duration time.Duration

	// Exponential: delay = min(base * 2^attempt, max), + 0-25% jitter if set
	Base   time.Duration
	Max    time.Duration
	Jitter bool

	// Linear: delay = min(base + increment*attempt, max)
	Increment time.Duration
}

// CalculateDelay returns the delay to wait before retry attempt number
// attempt (0-indexed: the delay before the first retry).
func CalculateDelay(strategy DelayStrategy, attempt uint32) time.Duration {
	switch strategy.Kind {
	case Fixed:
		return strategy.Duration
	case Exponential:
		multiplier := uint64(1) << attempt
		if attempt >= 63 {
			multiplier = 1 << 62 // saturate rather than overflow
		}
		delayMs := uint64(strategy.Base.Milliseconds()) * multiplier
		maxMs := uint64(strategy.Max.Milliseconds())
		if delayMs > maxMs {
			delayMs = maxMs
		}
		delay := time.Duration(delayMs) * time.Millisecond
		if strategy.Jitter && delay > 0 {
			jitterMs := rand.Int63n(int64(delay.Milliseconds())/4 + 1)
			delay += time.Duration(jitterMs) * time.Millisecond
		}
		return delay
	case Linear:
		delayMs := strategy.Base.Milliseconds() + strategy.Increment.Milliseconds()*int64(attempt)
		maxMs := strategy.Max.Milliseconds()
		if delayMs > maxMs {
			delayMs = maxMs
		}
		return time.Duration(delayMs) * time.Millisecond
	}
	return 0
}

// Result is the outcome of a retried operation.
type Result[T any] struct {
	Value   T
	Ok      bool
	Failed  *FailedResult
	Blocked *BlockedResult
}

// FailedResult reports exhaustion of all retry attempts.
type FailedResult struct {
	LastError string
	Attempts  uint32
	TotalTime time.Duration
}

// BlockedResult reports that a circuit breaker refused the attempt.
type BlockedResult struct {
	CircuitName     string
	TimeUntilRetry  time.Duration
	HasTimeToRetry  bool
}

// Success wraps a successful Result.
func Success[T any](v T) Result[T] {
	return Result[T]{Value: v, Ok: true}
}

// Do runs fn up to config.MaxAttempts times, sleeping CalculateDelay(strategy,
// attempt) between attempts, optionally gated by a circuit breaker. fn
// returning a nil error ends the loop successfully.
func Do[T any](cb *CircuitBreaker, strategy DelayStrategy, maxAttempts uint32, fn func(attempt uint32) (T, error)) Result[T] {
	start := time.Now()
	var lastErr error
	var attempt uint32
	for attempt = 0; attempt < maxAttempts; attempt++ {
		if cb != nil && !cb.ShouldAllow() {
			d, _ := cb.TimeUntilRetry()
			return Result[T]{Blocked: &BlockedResult{
				CircuitName:    cb.config.Name,
				TimeUntilRetry: d,
				HasTimeToRetry: d > 0,
			}}
		}
		v, err := fn(attempt)
		if err == nil {
			if cb != nil {
				cb.RecordSuccess()
			}
			return Success(v)
		}
		lastErr = err
		if cb != nil {
			cb.RecordFailure()
		}
		if attempt+1 < maxAttempts {
			time.Sleep(CalculateDelay(strategy, attempt))
		}
	}
	return Result[T]{Failed: &FailedResult{
		LastError: lastErr.Error(),
		Attempts:  attempt,
		TotalTime: time.Since(start),
	}}
}
