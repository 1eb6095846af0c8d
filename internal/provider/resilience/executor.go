package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned when the circuit breaker rejects a call.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ExecutorConfig holds configuration for a resilient executor.
type ExecutorConfig struct {
	// Name identifies the provider for circuit breaker naming and health.
	Name string

	// MaxRetries is the maximum number of retry attempts after the first call.
	// Default: 3
	MaxRetries uint64

	// InitialInterval is the initial retry backoff interval.
	// Default: 100ms
	InitialInterval time.Duration

	// MaxInterval is the maximum retry backoff interval.
	// Default: 2 seconds
	MaxInterval time.Duration

	// Retryable classifies errors as transient. Non-retryable errors are
	// returned immediately and do not count against the circuit breaker.
	// If nil, every error is retryable.
	Retryable func(err error) bool

	// CircuitBreaker is the circuit breaker configuration.
	// If nil, uses DefaultCircuitBreakerConfig.
	CircuitBreaker *CircuitBreakerConfig

	// Registry, if set, receives the executor and its call outcomes.
	Registry *Registry
}

// DefaultExecutorConfig returns sensible defaults for an executor.
func DefaultExecutorConfig(name string) ExecutorConfig {
	cbConfig := DefaultCircuitBreakerConfig(name)
	return ExecutorConfig{
		Name:            name,
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		CircuitBreaker:  &cbConfig,
	}
}

// Executor runs calls to one provider through a circuit breaker with retries.
type Executor[T any] struct {
	circuitBreaker *gobreaker.CircuitBreaker[T]
	config         ExecutorConfig
	retryable      func(err error) bool
}

// NewExecutor creates a new resilient executor.
func NewExecutor[T any](cfg ExecutorConfig) *Executor[T] {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 2 * time.Second
	}

	retryable := cfg.Retryable
	if retryable == nil {
		retryable = func(error) bool { return true }
	}

	cbConfig := DefaultCircuitBreakerConfig(cfg.Name)
	if cfg.CircuitBreaker != nil {
		cbConfig = *cfg.CircuitBreaker
	}
	if cbConfig.IsSuccessful == nil {
		cbConfig.IsSuccessful = func(err error) bool {
			return err == nil || !retryable(err)
		}
	}

	e := &Executor[T]{
		circuitBreaker: NewCircuitBreaker[T](cbConfig),
		config:         cfg,
		retryable:      retryable,
	}

	if cfg.Registry != nil {
		cfg.Registry.Register(cfg.Name, e)
	}

	return e
}

// Name returns the provider name.
func (e *Executor[T]) Name() string {
	return e.config.Name
}

// Execute calls fn, retrying transient failures with exponential backoff.
// Returns ErrCircuitOpen without calling fn if the circuit breaker is open.
func (e *Executor[T]) Execute(ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.config.InitialInterval
	bo.MaxInterval = e.config.MaxInterval
	bo.MaxElapsedTime = 0 // bounded by WithMaxRetries

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, e.config.MaxRetries), ctx)

	var result T
	operation := func() error {
		r, err := e.circuitBreaker.Execute(func() (T, error) {
			return fn(ctx)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrCircuitOpen)
			}
			if !e.retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = r
		return nil
	}

	err := backoff.Retry(operation, policy)
	e.record(err)
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

func (e *Executor[T]) record(err error) {
	if e.config.Registry == nil {
		return
	}
	if err == nil {
		e.config.Registry.RecordSuccess(e.config.Name)
		return
	}
	e.config.Registry.RecordFailure(e.config.Name, err)
}

// CircuitBreakerState returns the current state of the circuit breaker.
func (e *Executor[T]) CircuitBreakerState() gobreaker.State {
	return e.circuitBreaker.State()
}

// CircuitBreakerCounts returns the current counts of the circuit breaker.
func (e *Executor[T]) CircuitBreakerCounts() gobreaker.Counts {
	return e.circuitBreaker.Counts()
}
