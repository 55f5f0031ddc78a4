// Package resilience wraps external collaborator calls (cloud SDK, lab
// HTTPS API) with circuit-breaking and retry-with-backoff, backed by
// github.com/sony/gobreaker/v2 and github.com/cenkalti/backoff/v4 rather
// than a hand-rolled state machine: cloud and resource-metrics errors are
// non-critical, while upstream auth failures should fail fast rather than
// retry. This is a thin adapter that keeps one Execute(ctx, fn)/Retry(ctx,
// cfg, fn) surface across both breaker and backoff libraries so
// cloudprovider and labclient don't import gobreaker/backoff directly.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

// State is a circuit breaker's current mode.
type State int

const (
	StateClosed   State = State(gobreaker.StateClosed)
	StateHalfOpen State = State(gobreaker.StateHalfOpen)
	StateOpen     State = State(gobreaker.StateOpen)
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
	ErrCircuitOpen     = errors.New("resilience: circuit breaker is open")
	ErrTooManyRequests = errors.New("resilience: too many requests in half-open state")
)

// Config tunes a CircuitBreaker.
type Config struct {
	MaxFailures   int
	Timeout       time.Duration
	HalfOpenMax   int
	OnStateChange func(from, to State)
}

// DefaultConfig matches the cloud-SDK call defaults used by cloudprovider
// and labclient.
func DefaultConfig() Config {
	return Config{
		MaxFailures: 5,
		Timeout:     30 * time.Second,
		HalfOpenMax: 3,
	}
}

// CircuitBreaker protects a collaborator call: after MaxFailures
// consecutive failures it opens for Timeout, then allows HalfOpenMax probe
// calls before fully closing again. Backed by gobreaker.CircuitBreaker,
// which already implements exactly this consecutive-failure state machine.
type CircuitBreaker struct {
	gb *gobreaker.CircuitBreaker[any]
}

// New constructs a CircuitBreaker, applying defaults for zero fields.
func New(cfg Config) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}

	maxFailures := uint32(cfg.MaxFailures)
	settings := gobreaker.Settings{
		MaxRequests: uint32(cfg.HalfOpenMax),
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
	}
	if cfg.OnStateChange != nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			cfg.OnStateChange(State(from), State(to))
		}
	}

	return &CircuitBreaker{gb: gobreaker.NewCircuitBreaker[any](settings)}
}

// State reports the breaker's current mode.
func (cb *CircuitBreaker) State() State { return State(cb.gb.State()) }

// Execute runs fn under circuit-breaker protection. It returns ctx.Err()
// without calling fn when ctx is already done, and otherwise passes ctx to
// fn.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := cb.gb.Execute(func() (any, error) {
		return nil, fn(ctx)
	})
	if err != nil {
		return mapGobreakerError(err)
	}
	return nil
}

func mapGobreakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) {
		return ErrCircuitOpen
	}
	if errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrTooManyRequests
	}
	return err
}

// RetryConfig configures exponential backoff retry.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       float64 // 0-1, adds randomness to avoid thundering herd
}

// DefaultRetryConfig is used for transient collaborator failures that are
// safe to retry.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.1,
	}
}

// Retry executes fn with exponential backoff, stopping early on ctx
// cancellation or a successful call. Backed by backoff.ExponentialBackOff
// rather than a hand-rolled delay/jitter loop.
func Retry(ctx context.Context, cfg RetryConfig, fn func(context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	bo := backoff.NewExponentialBackOff()
	if cfg.InitialDelay > 0 {
		bo.InitialInterval = cfg.InitialDelay
	}
	if cfg.MaxDelay > 0 {
		bo.MaxInterval = cfg.MaxDelay
	}
	if cfg.Multiplier > 0 {
		bo.Multiplier = cfg.Multiplier
	}
	bo.RandomizationFactor = cfg.Jitter
	bo.MaxElapsedTime = 0 // bounded by MaxAttempts below, not wall-clock

	withMax := backoff.WithMaxRetries(bo, uint64(cfg.MaxAttempts-1))
	withCtx := backoff.WithContext(withMax, ctx)

	return backoff.Retry(func() error {
		return fn(ctx)
	}, withCtx)
}
