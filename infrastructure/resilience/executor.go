// Package resilience provides resilient execution patterns using fortify.
package resilience

import (
	"context"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"

	"github.com/felixgeelhaar/toolgate/domain/config"
	"github.com/felixgeelhaar/toolgate/domain/tool"
)

// Executor runs calls with bulkhead, timeout, circuit breaker and retry.
// A zero MaxConcurrent, CircuitBreakerThreshold or RetryMaxAttempts below
// two disables the matching pattern.
type Executor[T any] struct {
	bulkhead bulkhead.Bulkhead[T]
	breaker  circuitbreaker.CircuitBreaker[T]
	retry    retry.Retry[T]
	timeout  time.Duration
}

// ExecutorConfig configures the resilient executor.
type ExecutorConfig struct {
	// MaxConcurrent limits concurrent calls.
	MaxConcurrent int

	// CircuitBreakerThreshold is the number of consecutive failures before opening.
	CircuitBreakerThreshold int

	// CircuitBreakerTimeout is how long the circuit stays open.
	CircuitBreakerTimeout time.Duration

	// RetryMaxAttempts is the maximum number of attempts.
	RetryMaxAttempts int

	// RetryInitialDelay is the initial delay between retries.
	RetryInitialDelay time.Duration

	// RetryBackoffMultiplier is the exponential backoff multiplier.
	RetryBackoffMultiplier float64

	// DefaultTimeout bounds each call. Zero means no timeout.
	DefaultTimeout time.Duration
}

// DefaultExecutorConfig returns a configuration with sensible defaults.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxConcurrent:           10,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   30 * time.Second,
		RetryMaxAttempts:        3,
		RetryInitialDelay:       100 * time.Millisecond,
		RetryBackoffMultiplier:  2.0,
		DefaultTimeout:          30 * time.Second,
	}
}

// FromConfig maps the resilience section of the configuration file.
func FromConfig(c config.ResilienceConfig) ExecutorConfig {
	ec := ExecutorConfig{
		DefaultTimeout: c.Timeout.Duration(),
	}
	if c.Bulkhead.Enabled {
		ec.MaxConcurrent = c.Bulkhead.MaxConcurrent
	}
	if c.CircuitBreaker.Enabled {
		ec.CircuitBreakerThreshold = c.CircuitBreaker.Threshold
		ec.CircuitBreakerTimeout = c.CircuitBreaker.Timeout.Duration()
	}
	if c.Retry.Enabled {
		ec.RetryMaxAttempts = c.Retry.MaxAttempts
		ec.RetryInitialDelay = c.Retry.InitialDelay.Duration()
		ec.RetryBackoffMultiplier = c.Retry.Multiplier
	}
	return ec
}

// NewExecutor creates a new resilient executor.
func NewExecutor[T any](cfg ExecutorConfig) *Executor[T] {
	e := &Executor[T]{timeout: cfg.DefaultTimeout}

	if cfg.MaxConcurrent > 0 {
		e.bulkhead = bulkhead.New[T](bulkhead.Config{
			MaxConcurrent: cfg.MaxConcurrent,
		})
	}

	if cfg.CircuitBreakerThreshold > 0 {
		threshold := uint32(cfg.CircuitBreakerThreshold) // #nosec G115 -- positive, checked above
		openFor := cfg.CircuitBreakerTimeout
		if openFor <= 0 {
			openFor = 30 * time.Second
		}
		e.breaker = circuitbreaker.New[T](circuitbreaker.Config{
			MaxRequests: 1,
			Interval:    openFor,
			Timeout:     openFor,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
		})
	}

	if cfg.RetryMaxAttempts > 1 {
		multiplier := cfg.RetryBackoffMultiplier
		if multiplier < 1 {
			multiplier = 2.0
		}
		e.retry = retry.New[T](retry.Config{
			MaxAttempts:   cfg.RetryMaxAttempts,
			InitialDelay:  cfg.RetryInitialDelay,
			BackoffPolicy: retry.BackoffExponential,
			Multiplier:    multiplier,
			// Cancellation is final.
			NonRetryableErrors: []error{tool.ErrCancelled, context.Canceled},
		})
	}

	return e
}

// NewDefaultExecutor creates an executor with default configuration.
func NewDefaultExecutor[T any]() *Executor[T] {
	return NewExecutor[T](DefaultExecutorConfig())
}

// Execute runs fn with every configured pattern, retrying failures.
// Use it for idempotent calls only.
// Composition order: Bulkhead → Timeout → Circuit Breaker → Retry
func (e *Executor[T]) Execute(ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	return e.run(ctx, fn, true)
}

// ExecuteOnce runs fn with every configured pattern except retry.
func (e *Executor[T]) ExecuteOnce(ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	return e.run(ctx, fn, false)
}

func (e *Executor[T]) run(ctx context.Context, fn func(context.Context) (T, error), retryable bool) (T, error) {
	call := fn
	if retryable && e.retry != nil {
		inner := call
		call = func(ctx context.Context) (T, error) {
			return e.retry.Do(ctx, inner)
		}
	}
	if e.breaker != nil {
		inner := call
		call = func(ctx context.Context) (T, error) {
			return e.breaker.Execute(ctx, inner)
		}
	}
	if e.timeout > 0 {
		inner := call
		call = func(ctx context.Context) (T, error) {
			ctx, cancel := context.WithTimeout(ctx, e.timeout)
			defer cancel()
			return inner(ctx)
		}
	}
	if e.bulkhead != nil {
		return e.bulkhead.Execute(ctx, call)
	}
	return call(ctx)
}

// CircuitBreakerState returns the breaker state, or "disabled".
func (e *Executor[T]) CircuitBreakerState() string {
	if e.breaker == nil {
		return "disabled"
	}
	return e.breaker.State().String()
}
