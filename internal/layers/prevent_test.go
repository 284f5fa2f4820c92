package layers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/LavishGent/propkit/internal/chain"
	"github.com/LavishGent/propkit/internal/types"
)

func TestPreventSet(t *testing.T) {
	b := &backing{}
	d := mustNew(t, chain.Spec{Layers: []chain.Layer{NewPreventSet()}, Get: b.get, Set: b.set})
	o := newOwner()
	ctx := context.Background()

	for _, v := range []any{1, 1, 2, 2, 1} {
		if err := d.Set(ctx, o, v); err != nil {
			t.Fatalf("Set(%v) error = %v", v, err)
		}
	}
	if got := b.sets.Load(); got != 3 {
		t.Errorf("setter calls = %d, want 3", got)
	}

	if err := ForgetLastKnown(d, o, nil); err != nil {
		t.Fatalf("ForgetLastKnown() error = %v", err)
	}
	if err := d.Set(ctx, o, 1); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if got := b.sets.Load(); got != 4 {
		t.Errorf("setter calls after forget = %d, want 4", got)
	}
}

func TestPreventSetLearnsFromGet(t *testing.T) {
	b := &backing{value: "on"}
	d := mustNew(t, chain.Spec{Layers: []chain.Layer{NewPreventSet()}, Get: b.get, Set: b.set})
	o := newOwner()
	ctx := context.Background()

	if _, err := d.Get(ctx, o); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if err := d.Set(ctx, o, "on"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if got := b.sets.Load(); got != 0 {
		t.Errorf("setter calls = %d, want 0", got)
	}
}

func TestPreventSetAfterFailure(t *testing.T) {
	fail := true
	b := &backing{setErr: func(any) error {
		if fail {
			return errors.New("busy")
		}
		return nil
	}}
	d := mustNew(t, chain.Spec{Layers: []chain.Layer{NewPreventSet()}, Get: b.get, Set: b.set})
	o := newOwner()
	ctx := context.Background()

	if err := d.Set(ctx, o, 1); err == nil {
		t.Fatal("Set() error = nil, want error")
	}
	fail = false
	if err := d.Set(ctx, o, 1); err != nil {
		t.Fatalf("Set() retry error = %v", err)
	}
	if got := b.sets.Load(); got != 2 {
		t.Errorf("setter calls = %d, want 2", got)
	}
}

func TestPreventSetEqual(t *testing.T) {
	b := &backing{}
	fold := func(a, b any) bool { return strings.EqualFold(a.(string), b.(string)) }
	d := mustNew(t, chain.Spec{Layers: []chain.Layer{NewPreventSet(WithEqual(fold))}, Set: b.set})
	o := newOwner()
	ctx := context.Background()

	for _, v := range []string{"Auto", "AUTO", "auto"} {
		if err := d.Set(ctx, o, v); err != nil {
			t.Fatalf("Set(%q) error = %v", v, err)
		}
	}
	if got := b.sets.Load(); got != 1 {
		t.Errorf("setter calls = %d, want 1", got)
	}
}

func TestPreventSetFromCache(t *testing.T) {
	t.Run("requires cache", func(t *testing.T) {
		_, err := chain.New(chain.Spec{
			Name:   "value",
			Layers: []chain.Layer{NewPreventSet(WithSource(SourceCache))},
			Set:    (&backing{}).set,
		})
		if !types.IsConfiguration(err) {
			t.Errorf("chain.New() error = %v, want configuration error", err)
		}
	})

	t.Run("compares with cached value", func(t *testing.T) {
		b := &backing{value: 10}
		d := mustNew(t, chain.Spec{
			Layers: []chain.Layer{NewCache(), NewPreventSet(WithSource(SourceCache))},
			Get:    b.get,
			Set:    b.set,
		})
		o := newOwner()
		ctx := context.Background()

		if err := d.Set(ctx, o, 10); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if got := b.sets.Load(); got != 1 {
			t.Errorf("setter calls before caching = %d, want 1", got)
		}
		if err := d.Set(ctx, o, 10); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if got := b.sets.Load(); got != 1 {
			t.Errorf("setter calls with cached equal value = %d, want 1", got)
		}

		if err := ClearCache(d, o); err != nil {
			t.Fatalf("ClearCache() error = %v", err)
		}
		if err := d.Set(ctx, o, 10); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if got := b.sets.Load(); got != 2 {
			t.Errorf("setter calls after clear = %d, want 2", got)
		}
	})
}
