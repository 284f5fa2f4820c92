package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/LavishGent/propkit/internal/config"
	"github.com/LavishGent/propkit/internal/types"
)

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.state.String(); got != tt.want {
				t.Errorf("String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewCircuitBreaker(t *testing.T) {
	t.Run("config values", func(t *testing.T) {
		cb := NewCircuitBreaker("voltage", config.CircuitBreakerConfig{
			FailureThreshold:    10,
			SuccessThreshold:    5,
			OpenDuration:        time.Minute,
			HalfOpenMaxRequests: 7,
		})
		if cb.Name() != "voltage" {
			t.Errorf("Name() = %v, want voltage", cb.Name())
		}
		if cb.failureThreshold != 10 || cb.successThreshold != 5 || cb.openDuration != time.Minute || cb.halfOpenMaxRequests != 7 {
			t.Errorf("thresholds = %d/%d/%v/%d", cb.failureThreshold, cb.successThreshold, cb.openDuration, cb.halfOpenMaxRequests)
		}
		if cb.State() != StateClosed {
			t.Errorf("State() = %v, want closed", cb.State())
		}
	})

	t.Run("defaults", func(t *testing.T) {
		cb := NewCircuitBreaker("x", config.CircuitBreakerConfig{})
		if cb.failureThreshold != 5 || cb.successThreshold != 2 || cb.openDuration != 30*time.Second || cb.halfOpenMaxRequests != 3 {
			t.Errorf("defaults = %d/%d/%v/%d", cb.failureThreshold, cb.successThreshold, cb.openDuration, cb.halfOpenMaxRequests)
		}
	})
}

func newTestBreaker() (*CircuitBreaker, *time.Time) {
	now := time.Unix(1000, 0)
	cb := NewCircuitBreaker("current", config.CircuitBreakerConfig{
		FailureThreshold:    2,
		SuccessThreshold:    2,
		OpenDuration:        time.Second,
		HalfOpenMaxRequests: 2,
	})
	cb.now = func() time.Time { return now }
	return cb, &now
}

func TestCircuitBreakerTransitions(t *testing.T) {
	cb, now := newTestBreaker()
	boom := errors.New("boom")
	fail := func() (any, error) { return nil, boom }
	ok := func() (any, error) { return 1, nil }

	_, _ = cb.Execute(fail)
	if cb.State() != StateClosed {
		t.Fatalf("State() after 1 failure = %v, want closed", cb.State())
	}
	_, _ = cb.Execute(fail)
	if cb.State() != StateOpen {
		t.Fatalf("State() after 2 failures = %v, want open", cb.State())
	}

	_, err := cb.Execute(ok)
	if !errors.Is(err, types.ErrCircuitOpen) {
		t.Errorf("Execute() on open circuit error = %v, want ErrCircuitOpen", err)
	}

	*now = now.Add(time.Second)
	if _, err := cb.Execute(ok); err != nil {
		t.Fatalf("Execute() after open duration error = %v", err)
	}
	if cb.State() != StateHalfOpen {
		t.Fatalf("State() = %v, want half-open", cb.State())
	}
	if _, err := cb.Execute(ok); err != nil {
		t.Fatalf("Execute() half-open error = %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("State() after successes = %v, want closed", cb.State())
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb, now := newTestBreaker()
	cb.RecordFailure()
	cb.RecordFailure()
	*now = now.Add(2 * time.Second)

	if !cb.Allow() {
		t.Fatal("Allow() = false after open duration")
	}
	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Errorf("State() = %v, want open", cb.State())
	}
}

func TestCircuitBreakerHalfOpenLimit(t *testing.T) {
	cb, now := newTestBreaker()
	cb.RecordFailure()
	cb.RecordFailure()
	*now = now.Add(2 * time.Second)

	if !cb.Allow() || !cb.Allow() {
		t.Fatal("Allow() rejected within half-open limit")
	}
	if cb.Allow() {
		t.Error("Allow() = true beyond half-open limit")
	}
}

func TestCircuitBreakerOnStateChange(t *testing.T) {
	cb, _ := newTestBreaker()
	var mu sync.Mutex
	var got []string
	cb.SetOnStateChange(func(name string, from, to State) {
		// reading state from the callback must not deadlock
		_ = cb.Stats()
		mu.Lock()
		got = append(got, name+":"+from.String()+"->"+to.String())
		mu.Unlock()
	})

	cb.RecordFailure()
	cb.RecordFailure()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "current:closed->open" {
		t.Errorf("transitions = %v, want [current:closed->open]", got)
	}
}

func TestCircuitBreakerReset(t *testing.T) {
	cb, _ := newTestBreaker()
	cb.RecordFailure()
	cb.RecordFailure()
	cb.Reset()
	if cb.State() != StateClosed {
		t.Errorf("State() after Reset = %v, want closed", cb.State())
	}
	if s := cb.Stats(); s.ConsecutiveFails != 0 {
		t.Errorf("ConsecutiveFails = %d, want 0", s.ConsecutiveFails)
	}
}

func TestCircuitBreakerConcurrency(t *testing.T) {
	cb := NewCircuitBreaker("x", config.CircuitBreakerConfig{FailureThreshold: 1000})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if (i+j)%2 == 0 {
					cb.RecordSuccess()
				} else {
					cb.RecordFailure()
				}
				cb.Allow()
				cb.State()
			}
		}(i)
	}
	wg.Wait()
}
