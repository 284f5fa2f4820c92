package propkit_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LavishGent/propkit/pkg/propkit"
)

// =============================================================================
// Test Owner
// =============================================================================

type Motor struct {
	propkit.Base

	mu    sync.Mutex
	speed int
	gets  atomic.Int64
	sets  atomic.Int64

	// block, when set, makes the getter wait until it is closed.
	entered chan struct{}
	block   chan struct{}
}

func newMotor(t *testing.T, opts ...propkit.Option) *Motor {
	t.Helper()
	m := &Motor{}
	opts = append([]propkit.Option{propkit.WithConfig(propkit.TestConfig())}, opts...)
	require.NoError(t, m.Init(opts...))
	t.Cleanup(func() { _ = m.Close() })
	return m
}

var errNot42 = errors.New("speed must be 42")

func getSpeed(m *Motor) (int, error) {
	m.gets.Add(1)
	if m.block != nil {
		m.entered <- struct{}{}
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speed, nil
}

func setSpeed(m *Motor, v int) error {
	m.sets.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.speed = v
	return nil
}

func setOnly42(m *Motor, v int) error {
	if v != 42 {
		m.sets.Add(1)
		return errNot42
	}
	return setSpeed(m, v)
}

func speedProperty(t *testing.T, ls ...propkit.Layer) *propkit.Property[*Motor, int] {
	t.Helper()
	p, err := propkit.Define[*Motor, int]("speed").
		Get(getSpeed).
		Set(setSpeed).
		With(ls...).
		Build()
	require.NoError(t, err)
	return p
}

// =============================================================================
// Owner Tests
// =============================================================================

func TestNotInitialized(t *testing.T) {
	p := speedProperty(t, propkit.Cache())
	m := &Motor{}

	_, err := p.Get(m)
	assert.ErrorIs(t, err, propkit.ErrNotInitialized)
	assert.True(t, propkit.IsConfiguration(err))

	assert.ErrorIs(t, p.Set(m, 1), propkit.ErrNotInitialized)
	assert.Equal(t, 0, propkit.PendingAsync(m))
}

func TestInitOptions(t *testing.T) {
	id := uuid.New()
	m := newMotor(t, propkit.WithID(id))
	assert.Equal(t, id, m.OwnerID())
	assert.NotNil(t, m.Logger())

	t.Run("invalid config", func(t *testing.T) {
		cfg := propkit.TestConfig()
		cfg.Logging.Level = "loud"
		err := (&Motor{}).Init(propkit.WithConfig(cfg))
		assert.True(t, propkit.IsConfiguration(err))
	})

	t.Run("reinit discards state", func(t *testing.T) {
		p := speedProperty(t, propkit.Cache())
		m := newMotor(t)
		_, err := p.Get(m)
		require.NoError(t, err)
		require.True(t, p.IsCached(m))

		require.NoError(t, m.Init(propkit.WithConfig(propkit.TestConfig())))
		assert.False(t, p.IsCached(m))
	})
}

func TestInstanceIsolation(t *testing.T) {
	p := speedProperty(t, propkit.Stats(), propkit.Cache())
	a, b := newMotor(t), newMotor(t)
	a.speed, b.speed = 1, 2

	got, err := p.Get(a)
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	_, ok := p.Recall(b)
	assert.False(t, ok, "b sees a's cached value")

	got, err = p.Get(b)
	require.NoError(t, err)
	assert.Equal(t, 2, got)

	require.NoError(t, p.Set(a, 10))
	got, err = p.Get(b)
	require.NoError(t, err)
	assert.Equal(t, 2, got)

	sa, err := p.Stats(a, propkit.StatSet)
	require.NoError(t, err)
	sb, err := p.Stats(b, propkit.StatSet)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sa.Count)
	assert.Equal(t, int64(0), sb.Count)
}

// =============================================================================
// Property Tests
// =============================================================================

func TestStatsOverCache(t *testing.T) {
	p, err := propkit.Define[*Motor, int]("speed").
		Get(getSpeed).
		Set(setOnly42).
		With(propkit.Cache(), propkit.Stats()).
		Build()
	require.NoError(t, err)
	assert.Equal(t, []propkit.Kind{propkit.KindStats, propkit.KindCache}, p.Kinds())

	m := newMotor(t)
	m.speed = 42

	for i := 0; i < 2; i++ {
		v, err := p.Get(m)
		require.NoError(t, err)
		assert.Equal(t, 42, v)
	}
	assert.Equal(t, int64(1), m.gets.Load())

	require.NoError(t, p.Set(m, 42))
	err = p.Set(m, 43)
	assert.ErrorIs(t, err, errNot42)
	assert.True(t, propkit.IsAccess(err))

	var attrErr *propkit.AttrError
	require.ErrorAs(t, err, &attrErr)
	assert.Equal(t, "speed", attrErr.Attr)
	assert.Equal(t, "set", attrErr.Op)

	for stat, want := range map[string]int64{
		propkit.StatGet:       2,
		propkit.StatSet:       1,
		propkit.StatFailedSet: 1,
		propkit.StatFailedGet: 0,
	} {
		s, err := p.Stats(m, stat)
		require.NoError(t, err)
		assert.Equal(t, want, s.Count, stat)
	}

	_, ok := p.Recall(m)
	assert.False(t, ok, "failed set drops the cached value")
}

func TestOrderConstraint(t *testing.T) {
	p, err := propkit.Define[*Motor, int]("speed").
		Get(getSpeed).
		With(propkit.Stats(), propkit.Cache()).
		Order(propkit.KindCache, propkit.KindStats).
		Build()
	require.NoError(t, err)
	assert.Equal(t, []propkit.Kind{propkit.KindCache, propkit.KindStats}, p.Kinds())

	m := newMotor(t)
	for i := 0; i < 3; i++ {
		_, err := p.Get(m)
		require.NoError(t, err)
	}
	s, err := p.Stats(m, propkit.StatGet)
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.Count, "cache hits are answered outside stats")

	t.Run("conflict", func(t *testing.T) {
		_, err := propkit.Define[*Motor, int]("speed").
			Get(getSpeed).
			With(propkit.Stats(), propkit.Cache()).
			Order(propkit.KindCache, propkit.KindStats).
			Order(propkit.KindStats, propkit.KindCache).
			Build()
		assert.True(t, propkit.IsConfiguration(err))
	})

	t.Run("deterministic", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			q := speedProperty(t, propkit.Lock(), propkit.Observe(), propkit.Logging(), propkit.Cache())
			assert.Equal(t, []propkit.Kind{
				propkit.KindLogging, propkit.KindLock, propkit.KindCache, propkit.KindObserve,
			}, q.Kinds())
		}
	})
}

func TestAccessDirection(t *testing.T) {
	readOnly, err := propkit.Define[*Motor, int]("speed").Get(getSpeed).Build()
	require.NoError(t, err)
	writeOnly, err := propkit.Define[*Motor, int]("speed").Set(setSpeed).Build()
	require.NoError(t, err)
	m := newMotor(t)

	assert.ErrorIs(t, readOnly.Set(m, 1), propkit.ErrReadOnly)
	_, err = writeOnly.Get(m)
	assert.ErrorIs(t, err, propkit.ErrWriteOnly)
	assert.ErrorIs(t, readOnly.Delete(m), propkit.ErrNotDeletable)
}

func TestDelete(t *testing.T) {
	p, err := propkit.Define[*Motor, int]("speed").
		Get(getSpeed).
		Delete(func(m *Motor) error { m.speed = 0; return nil }).
		With(propkit.Cache()).
		Build()
	require.NoError(t, err)
	m := newMotor(t)
	m.speed = 7

	_, err = p.Get(m)
	require.NoError(t, err)
	require.True(t, p.IsCached(m))

	require.NoError(t, p.Delete(m))
	assert.False(t, p.IsCached(m))
	v, err := p.Get(m)
	require.NoError(t, err)
	assert.Equal(t, 0, v)
}

func TestReadOnce(t *testing.T) {
	p := speedProperty(t, propkit.ReadOnce())
	m := newMotor(t)
	m.speed = 3

	for i := 0; i < 3; i++ {
		v, err := p.Get(m)
		require.NoError(t, err)
		assert.Equal(t, 3, v)
	}
	assert.Equal(t, int64(1), m.gets.Load())

	require.NoError(t, p.Set(m, 4))
	v, err := p.Get(m)
	require.NoError(t, err)
	assert.Equal(t, 4, v)
	assert.Equal(t, int64(1), m.gets.Load())

	require.NoError(t, p.ResetReadOnce(m))
	_, err = p.Get(m)
	require.NoError(t, err)
	assert.Equal(t, int64(2), m.gets.Load())

	t.Run("disabled per instance", func(t *testing.T) {
		n := newMotor(t)
		require.NoError(t, p.SetInstanceConfig(n, propkit.SettingReadOnce, false))
		v, ok := p.InstanceConfig(n, propkit.SettingReadOnce)
		require.True(t, ok)
		assert.Equal(t, false, v)

		for i := 0; i < 3; i++ {
			_, err := p.Get(n)
			require.NoError(t, err)
		}
		assert.Equal(t, int64(3), n.gets.Load())
	})
}

func TestPreventSet(t *testing.T) {
	p := speedProperty(t,
		propkit.Stats(propkit.WithSkippedSets(propkit.SkipCountSeparately)),
		propkit.PreventSet(),
	)
	m := newMotor(t)

	require.NoError(t, p.Set(m, 5))
	require.NoError(t, p.Set(m, 5))
	require.NoError(t, p.Set(m, 6))
	assert.Equal(t, int64(2), m.sets.Load())

	sets, err := p.Stats(m, propkit.StatSet)
	require.NoError(t, err)
	skipped, err := p.Stats(m, propkit.StatSkippedSet)
	require.NoError(t, err)
	assert.Equal(t, int64(2), sets.Count)
	assert.Equal(t, int64(1), skipped.Count)
}

func TestForceSet(t *testing.T) {
	p := speedProperty(t, propkit.Cache(), propkit.PreventSet())
	m := newMotor(t)

	require.NoError(t, p.Set(m, 5))
	require.NoError(t, p.Set(m, 5))
	assert.Equal(t, int64(1), m.sets.Load())

	require.NoError(t, p.ForceSet(m, 5))
	assert.Equal(t, int64(2), m.sets.Load())

	v, ok := p.Recall(m)
	require.True(t, ok)
	assert.Equal(t, 5, v)
}

func TestCoerce(t *testing.T) {
	type Celsius float64
	p, err := propkit.Define[*Motor, Celsius]("temperature").
		GetRaw(func(_ context.Context, m *Motor) (any, error) {
			m.mu.Lock()
			defer m.mu.Unlock()
			return m.speed, nil
		}).
		SetRaw(func(_ context.Context, m *Motor, v any) error {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.speed = v.(int)
			return nil
		}).
		With(propkit.Convert(
			func(c Celsius) (int, error) { return int(c * 10), nil },
			func(i int) (Celsius, error) { return Celsius(i) / 10, nil },
		)).
		Build()
	require.NoError(t, err)
	m := newMotor(t)

	require.NoError(t, p.Set(m, 21.5))
	assert.Equal(t, 215, m.speed)

	v, err := p.Get(m)
	require.NoError(t, err)
	assert.Equal(t, Celsius(21.5), v)

	t.Run("failure", func(t *testing.T) {
		q, err := propkit.Define[*Motor, int]("speed").
			Get(getSpeed).
			With(propkit.Coerce(nil, func(any) (any, error) { return nil, errors.New("out of range") })).
			Build()
		require.NoError(t, err)
		_, err = q.Get(m)
		assert.True(t, propkit.IsCoercion(err))
	})
}

func TestObserve(t *testing.T) {
	p := speedProperty(t, propkit.Observe())
	m := newMotor(t)

	var changes []propkit.Change
	cancel, err := p.Subscribe(m, func(c propkit.Change) { changes = append(changes, c) })
	require.NoError(t, err)

	require.NoError(t, p.Set(m, 1))
	require.NoError(t, p.Set(m, 1))
	v, err := p.Get(m)
	require.NoError(t, err)
	require.Equal(t, 1, v)
	require.NoError(t, p.Set(m, 2))

	assert.Equal(t, []propkit.Change{
		{Attr: "speed", New: 1},
		{Attr: "speed", Old: 1, New: 2, HadOld: true},
	}, changes)

	cancel()
	require.NoError(t, p.Set(m, 3))
	assert.Len(t, changes, 2)
}

// =============================================================================
// Lock Tests
// =============================================================================

// holdLock starts a get that blocks inside the lock and returns the function
// that lets it finish.
func holdLock(t *testing.T, p *propkit.Property[*Motor, int], m *Motor) func() {
	t.Helper()
	m.entered = make(chan struct{})
	m.block = make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = p.Get(m)
	}()
	<-m.entered
	return func() {
		close(m.block)
		<-done
	}
}

func TestLockTimeout(t *testing.T) {
	p := speedProperty(t, propkit.Stats(), propkit.Lock(propkit.WithLockTimeout(20*time.Millisecond)))
	m := newMotor(t)
	release := holdLock(t, p, m)

	start := time.Now()
	err := p.Set(m, 1)
	assert.True(t, propkit.IsLockTimeout(err))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	release()
	require.NoError(t, p.Set(m, 1))

	failed, err := p.Stats(m, propkit.StatFailedSet)
	require.NoError(t, err)
	assert.Equal(t, int64(1), failed.Count)
}

func TestLockContextCancel(t *testing.T) {
	p, err := propkit.Define[*Motor, int]("speed").
		GetContext(func(_ context.Context, m *Motor) (int, error) { return getSpeed(m) }).
		With(propkit.Lock()).
		Build()
	require.NoError(t, err)
	m := newMotor(t)
	release := holdLock(t, p, m)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.GetContext(ctx, m)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLockReleasedAfterFailure(t *testing.T) {
	calls := 0
	p, err := propkit.Define[*Motor, int]("speed").
		Get(func(*Motor) (int, error) {
			calls++
			if calls == 1 {
				return 0, errors.New("sensor offline")
			}
			return 9, nil
		}).
		With(propkit.Lock(propkit.WithLockTimeout(20 * time.Millisecond))).
		Build()
	require.NoError(t, err)
	m := newMotor(t)

	_, err = p.Get(m)
	require.True(t, propkit.IsAccess(err))
	v, err := p.Get(m)
	require.NoError(t, err)
	assert.Equal(t, 9, v)
}

func TestLockSurvivesReset(t *testing.T) {
	for _, scope := range []propkit.LockScope{propkit.ScopeKey, propkit.ScopeAttribute} {
		t.Run(scope.String(), func(t *testing.T) {
			p := speedProperty(t, propkit.Cache(), propkit.Lock(
				propkit.WithLockScope(scope),
				propkit.WithLockTimeout(20*time.Millisecond),
			))
			m := newMotor(t)
			release := holdLock(t, p, m)

			require.NoError(t, p.Reset(m))
			assert.True(t, propkit.IsLockTimeout(p.Set(m, 1)))

			release()
			require.NoError(t, p.Set(m, 1))
		})
	}
}

func TestLockReentry(t *testing.T) {
	shared := func() propkit.Layer {
		return propkit.Lock(propkit.WithLockScope(propkit.ScopeInstance), propkit.WithLockTimeout(20*time.Millisecond))
	}
	speed, err := propkit.Define[*Motor, int]("speed").
		GetContext(func(_ context.Context, m *Motor) (int, error) { return getSpeed(m) }).
		With(shared()).
		Build()
	require.NoError(t, err)

	t.Run("same context", func(t *testing.T) {
		load, err := propkit.Define[*Motor, int]("load").
			GetContext(func(ctx context.Context, m *Motor) (int, error) {
				v, err := speed.GetContext(ctx, m)
				return 2 * v, err
			}).
			With(shared()).
			Build()
		require.NoError(t, err)
		m := newMotor(t)
		m.speed = 4

		v, err := load.Get(m)
		require.NoError(t, err)
		assert.Equal(t, 8, v)
	})

	t.Run("blocking nested access", func(t *testing.T) {
		load, err := propkit.Define[*Motor, int]("load").
			Get(func(m *Motor) (int, error) { return speed.Get(m) }).
			With(shared()).
			Build()
		require.NoError(t, err)
		m := newMotor(t)

		_, err = load.Get(m)
		assert.True(t, propkit.IsLockTimeout(err))
	})
}

func TestLockSerializesStatefulLayers(t *testing.T) {
	p := speedProperty(t, propkit.Cache(), propkit.Observe(), propkit.Lock(propkit.WithLockTimeout(time.Second)))
	m := newMotor(t)

	var notified atomic.Int64
	entered := make(chan struct{})
	hold := make(chan struct{})
	_, err := p.Subscribe(m, func(propkit.Change) {
		if notified.Add(1) == 1 {
			close(entered)
			<-hold
		}
	})
	require.NoError(t, err)

	first := make(chan error, 1)
	go func() { first <- p.Set(m, 1) }()
	<-entered

	second := make(chan error, 1)
	go func() { second <- p.Set(m, 2) }()

	select {
	case err := <-second:
		t.Fatalf("second set finished while the first held the lock: %v", err)
	case <-time.After(30 * time.Millisecond):
	}
	assert.Equal(t, int64(1), m.sets.Load())

	close(hold)
	require.NoError(t, <-first)
	require.NoError(t, <-second)

	cached, ok := p.Recall(m)
	require.True(t, ok)
	assert.Equal(t, m.speed, cached)
	v, err := p.Get(m)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, int64(2), notified.Load())
}

// =============================================================================
// Async and Resilience Tests
// =============================================================================

func TestAsync(t *testing.T) {
	p := speedProperty(t, propkit.Cache())
	m := newMotor(t)

	set := p.SetAsync(context.Background(), m, 12)
	get := p.GetAsync(context.Background(), m)

	_, err := set.Wait(context.Background())
	require.NoError(t, err)
	v, err := get.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, v)

	require.Eventually(t, func() bool { return propkit.PendingAsync(m) == 0 },
		time.Second, 5*time.Millisecond)

	t.Run("not initialized", func(t *testing.T) {
		_, err := p.GetAsync(context.Background(), &Motor{}).Wait(context.Background())
		assert.ErrorIs(t, err, propkit.ErrNotInitialized)
	})
}

func TestResilientCircuit(t *testing.T) {
	cfg := propkit.TestConfig()
	cfg.CircuitBreaker.Enabled = true
	cfg.CircuitBreaker.OpenDuration = time.Minute

	var calls atomic.Int64
	p, err := propkit.Define[*Motor, int]("speed").
		Get(func(*Motor) (int, error) {
			calls.Add(1)
			return 0, errors.New("sensor offline")
		}).
		Resilient().
		Build()
	require.NoError(t, err)
	m := newMotor(t, propkit.WithConfig(cfg))
	assert.Equal(t, "closed", p.CircuitState(m))

	for i := 0; i < cfg.CircuitBreaker.FailureThreshold; i++ {
		_, err := p.Get(m)
		require.True(t, propkit.IsAccess(err))
	}
	assert.Equal(t, "open", p.CircuitState(m))

	_, err = p.Get(m)
	assert.True(t, propkit.IsCircuitOpen(err))
	assert.Equal(t, int64(cfg.CircuitBreaker.FailureThreshold), calls.Load())

	other := newMotor(t, propkit.WithConfig(cfg))
	assert.Equal(t, "closed", p.CircuitState(other))
}

func TestCoalesce(t *testing.T) {
	p, err := propkit.Define[*Motor, int]("speed").
		Get(getSpeed).
		Coalesce().
		Build()
	require.NoError(t, err)
	m := newMotor(t)
	m.speed = 4
	m.entered = make(chan struct{}, 1)
	m.block = make(chan struct{})

	var wg sync.WaitGroup
	results := make([]int, 2)
	first := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		close(first)
		results[0], _ = p.Get(m)
	}()
	<-first
	<-m.entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], _ = p.Get(m)
	}()
	time.Sleep(20 * time.Millisecond)
	close(m.block)
	wg.Wait()

	assert.Equal(t, []int{4, 4}, results)
	assert.Equal(t, int64(1), m.gets.Load())
}

// =============================================================================
// Logging Tests
// =============================================================================

type recordingLogger struct {
	mu      sync.Mutex
	entries []string
}

func (l *recordingLogger) add(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, level+" "+msg)
}

func (l *recordingLogger) Debug(msg string, _ ...any) { l.add("DEBUG", msg) }
func (l *recordingLogger) Info(msg string, _ ...any)  { l.add("INFO", msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.add("WARN", msg) }
func (l *recordingLogger) Error(msg string, _ ...any) { l.add("ERROR", msg) }

func TestLoggerAdapter(t *testing.T) {
	rec := &recordingLogger{}
	p := speedProperty(t, propkit.Logging())
	m := newMotor(t, propkit.WithLoggerAdapter(rec), propkit.WithLogAttrs("motor", "left"))

	_, err := p.Get(m)
	require.NoError(t, err)

	assert.Contains(t, rec.entries, "DEBUG getting attribute")
	assert.Contains(t, rec.entries, "DEBUG got attribute")
}
