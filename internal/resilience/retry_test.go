package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/LavishGent/propkit/internal/config"
	"github.com/LavishGent/propkit/internal/types"
)

func fastRetry(attempts int) *Retry {
	return NewRetry(config.RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2,
	})
}

func TestNewRetryDefaults(t *testing.T) {
	r := NewRetry(config.RetryConfig{})
	if r.maxAttempts != 3 {
		t.Errorf("maxAttempts = %d, want 3", r.maxAttempts)
	}
	if r.initialBackoff != 100*time.Millisecond {
		t.Errorf("initialBackoff = %v, want 100ms", r.initialBackoff)
	}
	if r.maxBackoff != 2*time.Second {
		t.Errorf("maxBackoff = %v, want 2s", r.maxBackoff)
	}
	if r.multiplier != 2 {
		t.Errorf("multiplier = %v, want 2", r.multiplier)
	}
}

func TestRetryExecute(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		r := fastRetry(3)
		calls := 0
		v, err := r.Execute(context.Background(), func(context.Context) (any, error) {
			calls++
			if calls < 3 {
				return nil, errors.New("instrument busy")
			}
			return 42, nil
		})
		if err != nil || v != 42 {
			t.Fatalf("Execute() = %v, %v, want 42, nil", v, err)
		}
		retries, success, failures := r.Stats()
		if retries != 2 || success != 1 || failures != 0 {
			t.Errorf("Stats() = %d/%d/%d, want 2/1/0", retries, success, failures)
		}
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		r := fastRetry(2)
		calls := 0
		boom := errors.New("boom")
		_, err := r.Execute(context.Background(), func(context.Context) (any, error) {
			calls++
			return nil, boom
		})
		if !errors.Is(err, boom) {
			t.Errorf("Execute() error = %v, want boom", err)
		}
		if calls != 2 {
			t.Errorf("calls = %d, want 2", calls)
		}
	})

	t.Run("library errors are final", func(t *testing.T) {
		r := fastRetry(5)
		calls := 0
		_, err := r.Execute(context.Background(), func(context.Context) (any, error) {
			calls++
			return nil, types.ErrCircuitOpen
		})
		if !errors.Is(err, types.ErrCircuitOpen) {
			t.Errorf("Execute() error = %v, want ErrCircuitOpen", err)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})

	t.Run("context cancelled", func(t *testing.T) {
		r := fastRetry(3)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := r.Execute(ctx, func(context.Context) (any, error) { return 1, nil })
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Execute() error = %v, want context.Canceled", err)
		}
	})
}

func TestRetryBackoff(t *testing.T) {
	r := NewRetry(config.RetryConfig{
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     50 * time.Millisecond,
		Multiplier:     2,
	})
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 10 * time.Millisecond},
		{2, 20 * time.Millisecond},
		{3, 40 * time.Millisecond},
		{4, 50 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := r.backoff(tt.attempt); got != tt.want {
			t.Errorf("backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}

	r.jitter = true
	for i := 0; i < 20; i++ {
		got := r.backoff(1)
		if got < 7500*time.Microsecond || got > 12500*time.Microsecond {
			t.Fatalf("backoff(1) with jitter = %v, want within 25%% of 10ms", got)
		}
	}
}
