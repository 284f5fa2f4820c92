package layers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/LavishGent/propkit/internal/chain"
	"github.com/LavishGent/propkit/internal/metrics"
	"github.com/LavishGent/propkit/internal/registry"
	"github.com/LavishGent/propkit/internal/stats"
)

func TestStatsCounts(t *testing.T) {
	b := &backing{value: 1}
	d := mustNew(t, chain.Spec{Layers: []chain.Layer{NewStats()}, Get: b.get, Set: b.set})
	o := newOwner()
	ctx := context.Background()

	const n = 5
	for i := 0; i < n; i++ {
		if _, err := d.Get(ctx, o); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
	}
	b.getErr = errors.New("unavailable")
	if _, err := d.Get(ctx, o); err == nil {
		t.Fatal("Get() error = nil, want error")
	}

	s, err := KeyStats(d, o, nil, stats.Get)
	if err != nil {
		t.Fatalf("KeyStats() error = %v", err)
	}
	if s.Count != n {
		t.Errorf("get count = %d, want %d", s.Count, n)
	}
	if s.Min > s.Mean || s.Mean > s.Max {
		t.Errorf("get summary min/mean/max = %v/%v/%v, want ordered", s.Min, s.Mean, s.Max)
	}
	if f, _ := KeyStats(d, o, nil, stats.FailedGet); f.Count != 1 {
		t.Errorf("failed_get count = %d, want 1", f.Count)
	}

	snap, err := StatsSnapshot(d, o)
	if err != nil {
		t.Fatalf("StatsSnapshot() error = %v", err)
	}
	if snap[stats.Get].Count != n {
		t.Errorf("snapshot get count = %d, want %d", snap[stats.Get].Count, n)
	}

	if err := ResetStats(d, o); err != nil {
		t.Fatalf("ResetStats() error = %v", err)
	}
	if s, _ := KeyStats(d, o, nil, stats.Get); s.Count != 0 {
		t.Errorf("get count after reset = %d, want 0", s.Count)
	}
}

func TestStatsFailureCountedWhenSuppressed(t *testing.T) {
	b := &backing{getErr: errors.New("down")}
	d := mustNew(t, chain.Spec{Layers: []chain.Layer{NewStats(), suppressor{}}, Get: b.get})
	o := newOwner()

	v, err := d.Get(context.Background(), o)
	if err != nil || v != "substitute" {
		t.Fatalf("Get() = %v, %v, want substitute, nil", v, err)
	}
	if f, _ := KeyStats(d, o, nil, stats.FailedGet); f.Count != 1 {
		t.Errorf("failed_get count = %d, want 1", f.Count)
	}
}

func TestStatsSkippedSets(t *testing.T) {
	tests := []struct {
		policy      SkipPolicy
		wantSet     int64
		wantSkipped int64
	}{
		{SkipIgnore, 1, 0},
		{SkipCountAsSet, 2, 0},
		{SkipCountSeparately, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.policy.String(), func(t *testing.T) {
			b := &backing{}
			d := mustNew(t, chain.Spec{
				Layers: []chain.Layer{NewStats(WithSkippedSets(tt.policy)), NewPreventSet()},
				Set:    b.set,
			})
			o := newOwner()
			ctx := context.Background()

			for i := 0; i < 2; i++ {
				if err := d.Set(ctx, o, "same"); err != nil {
					t.Fatalf("Set() error = %v", err)
				}
			}
			if got := b.sets.Load(); got != 1 {
				t.Errorf("setter calls = %d, want 1", got)
			}
			if s, _ := KeyStats(d, o, nil, stats.Set); s.Count != tt.wantSet {
				t.Errorf("set count = %d, want %d", s.Count, tt.wantSet)
			}
			if s, _ := KeyStats(d, o, nil, stats.SkippedSet); s.Count != tt.wantSkipped {
				t.Errorf("skipped_set count = %d, want %d", s.Count, tt.wantSkipped)
			}
		})
	}
}

func TestStatsKeyedAggregate(t *testing.T) {
	get := func(_ context.Context, _ registry.Owner, key any) (any, error) { return key, nil }
	d := mustNew(t, chain.Spec{Layers: []chain.Layer{NewStats()}, Get: get, Keyed: true})
	o := newOwner()
	ctx := context.Background()

	for _, k := range []string{"a", "b", "a"} {
		if _, err := d.Call(ctx, o, k); err != nil {
			t.Fatalf("Call(%q) error = %v", k, err)
		}
	}

	if s, _ := KeyStats(d, o, "a", stats.Call); s.Count != 2 {
		t.Errorf("call count for a = %d, want 2", s.Count)
	}
	if s, _ := AttrStats(d, o, stats.Call); s.Count != 3 {
		t.Errorf("aggregate call count = %d, want 3", s.Count)
	}
	snap, _ := StatsSnapshot(d, o)
	if snap[stats.Call].Count != 3 {
		t.Errorf("snapshot call count = %d, want 3", snap[stats.Call].Count)
	}
}

// countingPublisher records timing names.
type countingPublisher struct {
	metrics.NoOpPublisher
	timings []string
}

func (p *countingPublisher) Timing(name string, _ time.Duration, _ ...string) {
	p.timings = append(p.timings, name)
}

func TestStatsPublish(t *testing.T) {
	pub := &countingPublisher{}
	b := &backing{value: 1}
	o := newOwner(registry.WithPublisher(pub))
	ctx := context.Background()

	published := mustNew(t, chain.Spec{Name: "published", Layers: []chain.Layer{NewStats()}, Get: b.get})
	quiet := mustNew(t, chain.Spec{Name: "quiet", Layers: []chain.Layer{NewStats(WithPublish(false))}, Get: b.get})

	if _, err := published.Get(ctx, o); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if _, err := quiet.Get(ctx, o); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(pub.timings) != 1 || pub.timings[0] != "attribute.get" {
		t.Errorf("timings = %v, want [attribute.get]", pub.timings)
	}
}
