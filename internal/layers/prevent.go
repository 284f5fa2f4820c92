package layers

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/LavishGent/propkit/internal/chain"
	"github.com/LavishGent/propkit/internal/registry"
	"github.com/LavishGent/propkit/internal/types"
)

// Source selects where PreventSet finds the last known value.
type Source int

const (
	// SourceShadow keeps a private record of the last value seen.
	SourceShadow Source = iota
	// SourceCache compares against the Cache layer's record.
	SourceCache
)

// PreventSet skips the setter when the value equals the last known one.
type PreventSet struct {
	chain.Nop
	equal  func(a, b any) bool
	source Source
}

// PreventOption configures a PreventSet layer.
type PreventOption func(*PreventSet)

// WithEqual replaces reflect.DeepEqual.
func WithEqual(eq func(a, b any) bool) PreventOption {
	return func(p *PreventSet) { p.equal = eq }
}

// WithSource selects where the last known value comes from.
func WithSource(s Source) PreventOption {
	return func(p *PreventSet) { p.source = s }
}

// NewPreventSet creates a prevent-set layer comparing against its shadow value.
func NewPreventSet(opts ...PreventOption) *PreventSet {
	p := &PreventSet{equal: reflect.DeepEqual}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (*PreventSet) Kind() chain.Kind { return chain.KindPreventSet }

// Validate rejects a cache source when the descriptor has no Cache layer.
func (p *PreventSet) Validate(d *chain.Descriptor) error {
	if p.source == SourceCache && !d.Has(chain.KindCache) {
		return fmt.Errorf("%w: prevent_set sources from a cache layer that is not present", types.ErrConfiguration)
	}
	return nil
}

type shadow struct {
	mu    sync.Mutex
	value any
	known bool
}

func newShadow() any { return &shadow{} }

func (s *shadow) load() (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.known
}

func (s *shadow) store(v any) {
	s.mu.Lock()
	s.value, s.known = v, true
	s.mu.Unlock()
}

func (s *shadow) forget() {
	s.mu.Lock()
	s.value, s.known = nil, false
	s.mu.Unlock()
}

func (p *PreventSet) lastKnown(a *chain.Access) (any, bool) {
	if p.source == SourceShadow {
		return a.State(newShadow).(*shadow).load()
	}
	st, ok := a.PeerAttrState(chain.KindCache).(*cacheState)
	if !ok || st.err != nil {
		return nil, false
	}
	key, _ := a.Key()
	v, found, err := st.store.Load(key)
	if err != nil {
		return nil, false
	}
	return v, found
}

func (p *PreventSet) BeforeSet(a *chain.Access, v any) (any, bool, error) {
	if last, ok := p.lastKnown(a); ok && p.equal(last, v) {
		return v, true, nil
	}
	return v, false, nil
}

func (p *PreventSet) AfterGet(a *chain.Access, v any) (any, error) {
	if p.source == SourceShadow {
		a.State(newShadow).(*shadow).store(v)
	}
	return v, nil
}

func (p *PreventSet) AfterSet(a *chain.Access, v any) error {
	if p.source == SourceShadow {
		a.State(newShadow).(*shadow).store(v)
	}
	return nil
}

func (p *PreventSet) OnSetError(a *chain.Access, err error) error {
	if p.source == SourceShadow {
		a.State(newShadow).(*shadow).forget()
	}
	return err
}

// ForgetLastKnown drops the shadow record of key so the next set goes through.
func ForgetLastKnown(d *chain.Descriptor, o registry.Owner, key any) error {
	if !d.Has(chain.KindPreventSet) {
		return nil
	}
	st, err := d.KeyState(o, chain.KindPreventSet, key, nil)
	if err != nil || st == nil {
		return err
	}
	st.(*shadow).forget()
	return nil
}
