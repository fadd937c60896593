// Package retry wraps calls to external collaborators with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"exalted/internal/logger"
	"exalted/internal/pkg/circuit"

	"github.com/jpillora/backoff"
)

// ErrExhausted wraps the last transient error once every attempt has failed.
var ErrExhausted = errors.New("retries exhausted")

// Transient is implemented by errors that know whether a retry may succeed.
type Transient interface {
	Transient() bool
}

// Policy describes how often and how patiently a call is retried.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Factor      float64
	Jitter      bool
}

// DefaultPolicy: five attempts starting at one second, doubling.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 30 * time.Second, Factor: 2}
}

func (p Policy) normalized() Policy {
	def := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.Factor < 1 {
		p.Factor = def.Factor
	}
	return p
}

// Retrier applies a Policy and an optional circuit breaker to calls against
// one collaborator.
type Retrier struct {
	policy  Policy
	breaker *circuit.CircuitBreaker
	sleep   func(ctx context.Context, d time.Duration) error
}

func New(policy Policy, breaker *circuit.CircuitBreaker) *Retrier {
	return &Retrier{policy: policy.normalized(), breaker: breaker, sleep: sleepCtx}
}

// WithSleep replaces the wait function; tests use it to avoid real delays.
func (r *Retrier) WithSleep(fn func(ctx context.Context, d time.Duration) error) *Retrier {
	if fn != nil {
		r.sleep = fn
	}
	return r
}

func (r *Retrier) Policy() Policy { return r.policy }

// Do runs fn until it succeeds, fails with a non-transient error, or the
// attempts run out. Non-transient errors are returned unchanged.
func (r *Retrier) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if r == nil {
		return fn(ctx)
	}
	b := &backoff.Backoff{
		Min:    r.policy.BaseDelay,
		Max:    r.policy.MaxDelay,
		Factor: r.policy.Factor,
		Jitter: r.policy.Jitter,
	}
	var lastErr error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if err := r.breaker.Check(); err != nil {
			return err
		}
		err := fn(ctx)
		if err == nil {
			r.breaker.RecordSuccess()
			return nil
		}
		if !IsTransient(err) {
			r.breaker.RecordSuccess()
			return err
		}
		r.breaker.RecordFailure()
		lastErr = err
		if attempt == r.policy.MaxAttempts {
			break
		}
		wait := b.Duration()
		logger.Warnf("%s: attempt %d/%d failed, retrying in %s: %v", name, attempt, r.policy.MaxAttempts, wait, err)
		if serr := r.sleep(ctx, wait); serr != nil {
			return fmt.Errorf("%s: %w", name, serr)
		}
	}
	return fmt.Errorf("%s: %w after %d attempts: %w", name, ErrExhausted, r.policy.MaxAttempts, lastErr)
}

// Call is Do for functions that return a value.
func Call[T any](ctx context.Context, r *Retrier, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := r.Do(ctx, name, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// IsTransient classifies network failures, unexpected EOFs and errors that
// declare themselves transient (rate limits, 5xx) as retryable.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, circuit.ErrOpen) {
		return false
	}
	var t Transient
	if errors.As(err, &t) {
		return t.Transient()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Unavailable reports whether err means the collaborator could not be reached
// at all (retries exhausted, breaker open, or the caller gave up), as opposed
// to a definitive answer.
func Unavailable(err error) bool {
	return errors.Is(err, ErrExhausted) || errors.Is(err, circuit.ErrOpen) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
