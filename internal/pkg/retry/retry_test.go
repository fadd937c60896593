package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"exalted/internal/pkg/circuit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusErr struct{ code int }

func (e statusErr) Error() string   { return fmt.Sprintf("status %d", e.code) }
func (e statusErr) Transient() bool { return e.code == 429 || e.code >= 500 }

func recordSleeps(r *Retrier) *[]time.Duration {
	var waits []time.Duration
	r.WithSleep(func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	})
	return &waits
}

func TestDoRetriesTransientWithBackoff(t *testing.T) {
	r := New(Policy{MaxAttempts: 4, BaseDelay: time.Second, MaxDelay: time.Minute, Factor: 2}, nil)
	waits := recordSleeps(r)
	calls := 0
	err := r.Do(context.Background(), "latest trade", func(context.Context) error {
		calls++
		if calls < 3 {
			return statusErr{429}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *waits)
}

func TestDoExhausts(t *testing.T) {
	r := New(Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}, nil)
	recordSleeps(r)
	calls := 0
	err := r.Do(context.Background(), "account", func(context.Context) error {
		calls++
		return statusErr{503}
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, ErrExhausted)
	var se statusErr
	assert.True(t, errors.As(err, &se))
}

func TestDoReturnsPermanentErrorImmediately(t *testing.T) {
	r := New(DefaultPolicy(), nil)
	waits := recordSleeps(r)
	permanent := statusErr{422}
	calls := 0
	err := r.Do(context.Background(), "submit", func(context.Context) error {
		calls++
		return permanent
	})
	assert.Equal(t, permanent, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *waits)
}

func TestCallReturnsValue(t *testing.T) {
	r := New(DefaultPolicy(), nil)
	recordSleeps(r)
	n := 0
	v, err := Call(context.Background(), r, "price", func(context.Context) (float64, error) {
		n++
		if n == 1 {
			return 0, context.DeadlineExceeded
		}
		return 42.5, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42.5, v)
}

func TestBreakerShortCircuits(t *testing.T) {
	cb := circuit.NewCircuitBreaker("md", 2, time.Hour)
	r := New(Policy{MaxAttempts: 2, BaseDelay: time.Millisecond}, cb)
	recordSleeps(r)
	_ = r.Do(context.Background(), "bars", func(context.Context) error { return statusErr{500} })
	assert.Equal(t, circuit.StateOpen, cb.State())

	called := false
	err := r.Do(context.Background(), "bars", func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, circuit.ErrOpen)
	assert.False(t, called)
}

func TestDoStopsOnContextCancel(t *testing.T) {
	r := New(DefaultPolicy(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	r.WithSleep(func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	})
	err := r.Do(ctx, "positions", func(context.Context) error { return statusErr{502} })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(errors.New("bad request")))
	assert.False(t, IsTransient(context.Canceled))
	assert.True(t, IsTransient(fmt.Errorf("wrap: %w", statusErr{500})))
	assert.True(t, IsTransient(context.DeadlineExceeded))
}

func TestUnavailable(t *testing.T) {
	assert.True(t, Unavailable(fmt.Errorf("account: %w", ErrExhausted)))
	assert.True(t, Unavailable(circuit.ErrOpen))
	assert.True(t, Unavailable(context.Canceled))
	assert.False(t, Unavailable(statusErr{404}))
	assert.False(t, Unavailable(nil))
}
