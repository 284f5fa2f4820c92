package propkit

import (
	"context"

	"github.com/LavishGent/propkit/internal/chain"
	"github.com/LavishGent/propkit/internal/layers"
	"github.com/LavishGent/propkit/internal/registry"
	"github.com/LavishGent/propkit/internal/store"
	"github.com/LavishGent/propkit/internal/types"
)

// PropertyBuilder defines a plain attribute. Define one per attribute at
// package level and share the built Property across all owners.
type PropertyBuilder[O Owner, T any] struct {
	spec attrSpec
	get  chain.GetFunc
	set  chain.SetFunc
	del  chain.DeleteFunc
	mode types.Mode
}

// Define starts a property of type T on owners of type O. The name may be
// empty and bound later by NewClass.
func Define[O Owner, T any](name string) *PropertyBuilder[O, T] {
	return &PropertyBuilder[O, T]{spec: attrSpec{name: name}, mode: types.ModeBlocking}
}

// Get sets the getter.
func (b *PropertyBuilder[O, T]) Get(fn func(O) (T, error)) *PropertyBuilder[O, T] {
	b.get = func(_ context.Context, o registry.Owner, _ any) (any, error) {
		return fn(owner[O](o))
	}
	return b
}

// GetContext sets a getter that receives the access context.
func (b *PropertyBuilder[O, T]) GetContext(fn func(context.Context, O) (T, error)) *PropertyBuilder[O, T] {
	b.get = func(ctx context.Context, o registry.Owner, _ any) (any, error) {
		return fn(ctx, owner[O](o))
	}
	b.mode = types.ModeContext
	return b
}

// GetRaw sets a getter returning the internal representation, for use with a
// Coerce layer whose external type is T.
func (b *PropertyBuilder[O, T]) GetRaw(fn func(context.Context, O) (any, error)) *PropertyBuilder[O, T] {
	b.get = func(ctx context.Context, o registry.Owner, _ any) (any, error) {
		return fn(ctx, owner[O](o))
	}
	b.mode = types.ModeContext
	return b
}

// Set sets the setter.
func (b *PropertyBuilder[O, T]) Set(fn func(O, T) error) *PropertyBuilder[O, T] {
	b.set = func(_ context.Context, o registry.Owner, _ any, v any) error {
		t, err := arg[T](v)
		if err != nil {
			return err
		}
		return fn(owner[O](o), t)
	}
	return b
}

// SetContext sets a setter that receives the access context.
func (b *PropertyBuilder[O, T]) SetContext(fn func(context.Context, O, T) error) *PropertyBuilder[O, T] {
	b.set = func(ctx context.Context, o registry.Owner, _ any, v any) error {
		t, err := arg[T](v)
		if err != nil {
			return err
		}
		return fn(ctx, owner[O](o), t)
	}
	b.mode = types.ModeContext
	return b
}

// SetRaw sets a setter receiving the internal representation.
func (b *PropertyBuilder[O, T]) SetRaw(fn func(context.Context, O, any) error) *PropertyBuilder[O, T] {
	b.set = func(ctx context.Context, o registry.Owner, _ any, v any) error {
		return fn(ctx, owner[O](o), v)
	}
	b.mode = types.ModeContext
	return b
}

// Delete sets the deleter.
func (b *PropertyBuilder[O, T]) Delete(fn func(O) error) *PropertyBuilder[O, T] {
	b.del = func(_ context.Context, o registry.Owner, _ any) error {
		return fn(owner[O](o))
	}
	return b
}

// With adds capability layers. Their order is resolved at Build.
func (b *PropertyBuilder[O, T]) With(ls ...Layer) *PropertyBuilder[O, T] {
	b.spec.layers = append(b.spec.layers, ls...)
	return b
}

// Order requires the outer layer kind to wrap the inner one.
func (b *PropertyBuilder[O, T]) Order(outer, inner Kind) *PropertyBuilder[O, T] {
	b.spec.constraints = append(b.spec.constraints, chain.Outer(outer, inner))
	return b
}

// Coalesce shares one in-flight getter call among concurrent gets on an owner.
func (b *PropertyBuilder[O, T]) Coalesce() *PropertyBuilder[O, T] {
	b.spec.coalesce = true
	return b
}

// Resilient runs the underlying functions through the owner's circuit
// breaker, retry and bulkhead config.
func (b *PropertyBuilder[O, T]) Resilient() *PropertyBuilder[O, T] {
	b.spec.resilient = true
	return b
}

// Codec replaces the JSON codec used by the bigcache backend.
func (b *PropertyBuilder[O, T]) Codec(c Codec) *PropertyBuilder[O, T] {
	b.spec.codec = c
	return b
}

// Build validates the definition and creates the property.
func (b *PropertyBuilder[O, T]) Build() (*Property[O, T], error) {
	d, err := b.spec.build(chain.Spec{
		Get:    b.get,
		Set:    b.set,
		Delete: b.del,
		Mode:   b.mode,
		Codec:  store.NewJSONCodec[T](),
	})
	if err != nil {
		return nil, err
	}
	return &Property[O, T]{d: d}, nil
}

// MustBuild is like Build but panics on a configuration error.
func (b *PropertyBuilder[O, T]) MustBuild() *Property[O, T] {
	p, err := b.Build()
	if err != nil {
		panic(err)
	}
	return p
}

// Property is a plain attribute of type T shared by all owners of type O.
type Property[O Owner, T any] struct {
	d *chain.Descriptor
}

func (p *Property[O, T]) descriptor() *chain.Descriptor { return p.d }

// Name returns the attribute name.
func (p *Property[O, T]) Name() string { return p.d.Name() }

// Kinds returns the resolved layer order, outer first.
func (p *Property[O, T]) Kinds() []Kind { return p.d.Kinds() }

// BindName names a property defined without one.
func (p *Property[O, T]) BindName(name string) error { return p.d.BindName("", name) }

// Get reads the property on o.
func (p *Property[O, T]) Get(o O) (T, error) {
	return p.GetContext(context.Background(), o)
}

// GetContext is Get with a context passed to the lock and the getter.
func (p *Property[O, T]) GetContext(ctx context.Context, o O) (T, error) {
	v, err := p.d.Get(ctx, o)
	if err != nil {
		var zero T
		return zero, err
	}
	return as[T](p.d, types.OpGet, v)
}

// Set writes the property on o.
func (p *Property[O, T]) Set(o O, v T) error {
	return p.SetContext(context.Background(), o, v)
}

// SetContext is Set with a context passed to the lock and the setter.
func (p *Property[O, T]) SetContext(ctx context.Context, o O, v T) error {
	return p.d.Set(ctx, o, v)
}

// ForceSet drops the cached and last-known value and then sets v, so the
// setter runs even when v is unchanged.
func (p *Property[O, T]) ForceSet(o O, v T) error {
	if p.d.Has(KindCache) {
		if err := layers.ClearCacheKey(p.d, o, nil); err != nil {
			return err
		}
	}
	if err := layers.ForgetLastKnown(p.d, o, nil); err != nil {
		return err
	}
	return p.d.Set(context.Background(), o, v)
}

// Delete calls the deleter and resets the property's state on o.
func (p *Property[O, T]) Delete(o O) error {
	return p.d.Delete(context.Background(), o, nil)
}

// Reset drops all layer state of the property on o.
func (p *Property[O, T]) Reset(o O) error { return p.d.Reset(o) }

// Recall returns the cached value without calling the getter.
func (p *Property[O, T]) Recall(o O) (T, bool) {
	var zero T
	if !p.d.Has(KindCache) {
		return zero, false
	}
	v, ok, err := layers.Recall(p.d, o, nil)
	if err != nil || !ok {
		return zero, false
	}
	t, err := as[T](p.d, types.OpGet, v)
	return t, err == nil
}

// IsCached reports whether o has a cached value.
func (p *Property[O, T]) IsCached(o O) bool {
	_, ok := p.Recall(o)
	return ok
}

// ClearCache drops the cached value on o.
func (p *Property[O, T]) ClearCache(o O) error {
	return layers.ClearCache(p.d, o)
}

// Stats returns the statistics of one operation, e.g. StatGet or StatFailedSet.
func (p *Property[O, T]) Stats(o O, op string) (Summary, error) {
	return layers.KeyStats(p.d, o, nil, op)
}

// ResetStats clears the statistics of the property on o.
func (p *Property[O, T]) ResetStats(o O) error {
	return layers.ResetStats(p.d, o)
}

// ResetReadOnce makes the next get call the getter again.
func (p *Property[O, T]) ResetReadOnce(o O) error {
	return layers.ResetReadOnce(p.d, o, nil)
}

// Subscribe registers fn for value changes on o. Requires an Observe layer.
func (p *Property[O, T]) Subscribe(o O, fn func(Change)) (cancel func(), err error) {
	return layers.Subscribe(p.d, o, fn)
}

// SetInstanceConfig overrides a layer setting for o only. A nil value
// restores the default.
func (p *Property[O, T]) SetInstanceConfig(o O, key string, v any) error {
	return p.d.SetSetting(o, key, v)
}

// InstanceConfig returns a per-instance setting.
func (p *Property[O, T]) InstanceConfig(o O, key string) (any, bool) {
	return instanceConfig(p.d, o, key)
}

// CircuitState reports the circuit breaker state of a resilient property on o.
func (p *Property[O, T]) CircuitState(o O) string {
	return circuitState(p.d, o)
}
