package propkit

import (
	"context"
	"errors"
	"fmt"

	"github.com/LavishGent/propkit/internal/chain"
	"github.com/LavishGent/propkit/internal/layers"
	"github.com/LavishGent/propkit/internal/registry"
	"github.com/LavishGent/propkit/internal/store"
	"github.com/LavishGent/propkit/internal/types"
)

// DictBuilder defines a key-addressable attribute. Every layer keeps its
// state per key.
type DictBuilder[O Owner, K comparable, V any] struct {
	spec   attrSpec
	get    chain.GetFunc
	set    chain.SetFunc
	mode   types.Mode
	keys   []K
	valid  map[K]struct{}
	keyMap map[K]K
}

// DefineDict starts a dict of V values addressed by K keys.
func DefineDict[O Owner, K comparable, V any](name string) *DictBuilder[O, K, V] {
	return &DictBuilder[O, K, V]{spec: attrSpec{name: name}, mode: types.ModeBlocking}
}

// Get sets the getter.
func (b *DictBuilder[O, K, V]) Get(fn func(O, K) (V, error)) *DictBuilder[O, K, V] {
	b.get = func(_ context.Context, o registry.Owner, key any) (any, error) {
		k, err := arg[K](key)
		if err != nil {
			return nil, err
		}
		return fn(owner[O](o), k)
	}
	return b
}

// GetContext sets a context-aware getter.
func (b *DictBuilder[O, K, V]) GetContext(fn func(context.Context, O, K) (V, error)) *DictBuilder[O, K, V] {
	b.get = func(ctx context.Context, o registry.Owner, key any) (any, error) {
		k, err := arg[K](key)
		if err != nil {
			return nil, err
		}
		return fn(ctx, owner[O](o), k)
	}
	b.mode = types.ModeContext
	return b
}

// Set sets the setter.
func (b *DictBuilder[O, K, V]) Set(fn func(O, K, V) error) *DictBuilder[O, K, V] {
	b.set = func(_ context.Context, o registry.Owner, key any, v any) error {
		k, err := arg[K](key)
		if err != nil {
			return err
		}
		val, err := arg[V](v)
		if err != nil {
			return err
		}
		return fn(owner[O](o), k, val)
	}
	return b
}

// SetContext sets a context-aware setter.
func (b *DictBuilder[O, K, V]) SetContext(fn func(context.Context, O, K, V) error) *DictBuilder[O, K, V] {
	b.set = func(ctx context.Context, o registry.Owner, key any, v any) error {
		k, err := arg[K](key)
		if err != nil {
			return err
		}
		val, err := arg[V](v)
		if err != nil {
			return err
		}
		return fn(ctx, owner[O](o), k, val)
	}
	b.mode = types.ModeContext
	return b
}

// Keys restricts the dict to the given keys.
func (b *DictBuilder[O, K, V]) Keys(keys ...K) *DictBuilder[O, K, V] {
	if b.valid == nil {
		b.valid = make(map[K]struct{}, len(keys))
	}
	for _, k := range keys {
		if _, dup := b.valid[k]; dup {
			continue
		}
		b.valid[k] = struct{}{}
		b.keys = append(b.keys, k)
	}
	return b
}

// KeyMap translates public keys into the keys passed to the underlying
// functions. Keys missing from m are invalid.
func (b *DictBuilder[O, K, V]) KeyMap(m map[K]K) *DictBuilder[O, K, V] {
	b.keyMap = m
	return b
}

// With adds layers.
func (b *DictBuilder[O, K, V]) With(ls ...Layer) *DictBuilder[O, K, V] {
	b.spec.layers = append(b.spec.layers, ls...)
	return b
}

// Order requires outer to run outside inner.
func (b *DictBuilder[O, K, V]) Order(outer, inner Kind) *DictBuilder[O, K, V] {
	b.spec.constraints = append(b.spec.constraints, chain.Outer(outer, inner))
	return b
}

// Coalesce merges concurrent gets of the same key on one owner.
func (b *DictBuilder[O, K, V]) Coalesce() *DictBuilder[O, K, V] {
	b.spec.coalesce = true
	return b
}

// Resilient runs the underlying functions through the owner's resilience policy.
func (b *DictBuilder[O, K, V]) Resilient() *DictBuilder[O, K, V] {
	b.spec.resilient = true
	return b
}

// Codec sets the codec used by byte-oriented cache backends.
func (b *DictBuilder[O, K, V]) Codec(c Codec) *DictBuilder[O, K, V] {
	b.spec.codec = c
	return b
}

func (b *DictBuilder[O, K, V]) keyFunc() chain.KeyFunc {
	if b.valid == nil && b.keyMap == nil {
		return nil
	}
	valid, keyMap := b.valid, b.keyMap
	return func(key any) (any, error) {
		k, ok := key.(K)
		if !ok {
			return nil, fmt.Errorf("%w: %v", types.ErrInvalidKey, key)
		}
		if valid != nil {
			if _, ok := valid[k]; !ok {
				return nil, fmt.Errorf("%w: %v", types.ErrInvalidKey, key)
			}
		}
		if keyMap != nil {
			mapped, ok := keyMap[k]
			if !ok {
				return nil, fmt.Errorf("%w: %v", types.ErrInvalidKey, key)
			}
			return mapped, nil
		}
		return k, nil
	}
}

// Build validates the definition and creates the dict.
func (b *DictBuilder[O, K, V]) Build() (*Dict[O, K, V], error) {
	d, err := b.spec.build(chain.Spec{
		Get:   b.get,
		Set:   b.set,
		Mode:  b.mode,
		Keyed: true,
		Key:   b.keyFunc(),
		Codec: store.NewJSONCodec[V](),
	})
	if err != nil {
		return nil, err
	}

	keys := append([]K(nil), b.keys...)
	if keys == nil && b.keyMap != nil {
		for k := range b.keyMap {
			keys = append(keys, k)
		}
	}
	return &Dict[O, K, V]{d: d, keys: keys}, nil
}

// MustBuild is like Build but panics on error.
func (b *DictBuilder[O, K, V]) MustBuild() *Dict[O, K, V] {
	p, err := b.Build()
	if err != nil {
		panic(err)
	}
	return p
}

// Dict is a key-addressable attribute.
type Dict[O Owner, K comparable, V any] struct {
	d    *chain.Descriptor
	keys []K
}

func (p *Dict[O, K, V]) descriptor() *chain.Descriptor { return p.d }

// Name returns the attribute name.
func (p *Dict[O, K, V]) Name() string { return p.d.Name() }

// Kinds returns the layer kinds, outer to inner.
func (p *Dict[O, K, V]) Kinds() []Kind { return p.d.Kinds() }

// BindName names an unnamed dict.
func (p *Dict[O, K, V]) BindName(name string) error { return p.d.BindName("", name) }

// ValidKeys returns the configured keys, or nil when any key is accepted.
func (p *Dict[O, K, V]) ValidKeys() []K {
	return append([]K(nil), p.keys...)
}

// Get reads the value of key k on o.
func (p *Dict[O, K, V]) Get(o O, k K) (V, error) {
	return p.GetContext(context.Background(), o, k)
}

// GetContext is Get with a context.
func (p *Dict[O, K, V]) GetContext(ctx context.Context, o O, k K) (V, error) {
	v, err := p.d.GetKey(ctx, o, k)
	if err != nil {
		var zero V
		return zero, err
	}
	return as[V](p.d, types.OpGet, v)
}

// Set writes the value of key k on o.
func (p *Dict[O, K, V]) Set(o O, k K, v V) error {
	return p.SetContext(context.Background(), o, k, v)
}

// SetContext is Set with a context.
func (p *Dict[O, K, V]) SetContext(ctx context.Context, o O, k K, v V) error {
	return p.d.SetKey(ctx, o, k, v)
}

// SetMany sets every entry of values and joins the errors.
func (p *Dict[O, K, V]) SetMany(o O, values map[K]V) error {
	var errs []error
	for k, v := range values {
		if err := p.Set(o, k, v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ClearCache drops every cached key on o.
func (p *Dict[O, K, V]) ClearCache(o O) error {
	return layers.ClearCache(p.d, o)
}

// ClearCacheKey drops the cached value of k on o.
func (p *Dict[O, K, V]) ClearCacheKey(o O, k K) error {
	return layers.ClearCacheKey(p.d, o, k)
}

// IsCached reports whether k has a cached value on o.
func (p *Dict[O, K, V]) IsCached(o O, k K) bool {
	_, ok := p.RecallKey(o, k)
	return ok
}

// RecallKey returns the cached value of k without calling the getter.
func (p *Dict[O, K, V]) RecallKey(o O, k K) (V, bool) {
	var zero V
	if !p.d.Has(KindCache) {
		return zero, false
	}
	v, ok, err := layers.Recall(p.d, o, k)
	if err != nil || !ok {
		return zero, false
	}
	t, err := as[V](p.d, types.OpGet, v)
	return t, err == nil
}

// Recall returns every cached entry.
func (p *Dict[O, K, V]) Recall(o O) map[K]V {
	out := make(map[K]V)
	if !p.d.Has(KindCache) {
		return out
	}
	keys, err := layers.CachedKeys(p.d, o)
	if err != nil {
		return out
	}
	for _, key := range keys {
		k, ok := key.(K)
		if !ok {
			continue
		}
		if v, ok := p.RecallKey(o, k); ok {
			out[k] = v
		}
	}
	return out
}

// Stats returns the statistics of one key.
func (p *Dict[O, K, V]) Stats(o O, k K, op string) (Summary, error) {
	return layers.KeyStats(p.d, o, k, op)
}

// TotalStats returns the statistics aggregated over all keys.
func (p *Dict[O, K, V]) TotalStats(o O, op string) (Summary, error) {
	return layers.AttrStats(p.d, o, op)
}

// ResetStats clears the statistics of every key on o.
func (p *Dict[O, K, V]) ResetStats(o O) error {
	return layers.ResetStats(p.d, o)
}

// ResetReadOnce makes the next get of k read through again.
func (p *Dict[O, K, V]) ResetReadOnce(o O, k K) error {
	return layers.ResetReadOnce(p.d, o, k)
}

// Subscribe calls fn on every change of any key on o.
func (p *Dict[O, K, V]) Subscribe(o O, fn func(Change)) (cancel func(), err error) {
	return layers.Subscribe(p.d, o, fn)
}

// SetInstanceConfig stores a per-instance setting.
func (p *Dict[O, K, V]) SetInstanceConfig(o O, key string, v any) error {
	return p.d.SetSetting(o, key, v)
}

// InstanceConfig returns a per-instance setting.
func (p *Dict[O, K, V]) InstanceConfig(o O, key string) (any, bool) {
	return instanceConfig(p.d, o, key)
}

// Reset drops all layer state of the dict on o.
func (p *Dict[O, K, V]) Reset(o O) error { return p.d.Reset(o) }

// CircuitState returns the circuit breaker state, or "" when not resilient.
func (p *Dict[O, K, V]) CircuitState(o O) string {
	return circuitState(p.d, o)
}
