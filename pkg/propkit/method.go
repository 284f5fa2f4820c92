package propkit

import (
	"context"

	"github.com/LavishGent/propkit/internal/chain"
	"github.com/LavishGent/propkit/internal/layers"
	"github.com/LavishGent/propkit/internal/registry"
	"github.com/LavishGent/propkit/internal/store"
	"github.com/LavishGent/propkit/internal/types"
)

// MethodBuilder defines a callable attribute. A call runs the get path with
// the argument as key, so Stats records "call" and a Cache memoizes per
// argument.
type MethodBuilder[O Owner, A comparable, R any] struct {
	spec attrSpec
	fn   chain.GetFunc
	mode types.Mode
}

// DefineMethod starts the definition of a method attribute.
func DefineMethod[O Owner, A comparable, R any](name string) *MethodBuilder[O, A, R] {
	return &MethodBuilder[O, A, R]{spec: attrSpec{name: name}, mode: types.ModeBlocking}
}

// Func sets the method body.
func (b *MethodBuilder[O, A, R]) Func(fn func(O, A) (R, error)) *MethodBuilder[O, A, R] {
	b.fn = func(_ context.Context, o registry.Owner, key any) (any, error) {
		a, err := arg[A](key)
		if err != nil {
			return nil, err
		}
		return fn(owner[O](o), a)
	}
	return b
}

// FuncContext sets a context-aware method body.
func (b *MethodBuilder[O, A, R]) FuncContext(fn func(context.Context, O, A) (R, error)) *MethodBuilder[O, A, R] {
	b.fn = func(ctx context.Context, o registry.Owner, key any) (any, error) {
		a, err := arg[A](key)
		if err != nil {
			return nil, err
		}
		return fn(ctx, owner[O](o), a)
	}
	b.mode = types.ModeContext
	return b
}

// With adds layers.
func (b *MethodBuilder[O, A, R]) With(ls ...Layer) *MethodBuilder[O, A, R] {
	b.spec.layers = append(b.spec.layers, ls...)
	return b
}

// Order requires outer to run outside inner.
func (b *MethodBuilder[O, A, R]) Order(outer, inner Kind) *MethodBuilder[O, A, R] {
	b.spec.constraints = append(b.spec.constraints, chain.Outer(outer, inner))
	return b
}

// Coalesce merges concurrent calls with the same argument on one owner.
func (b *MethodBuilder[O, A, R]) Coalesce() *MethodBuilder[O, A, R] {
	b.spec.coalesce = true
	return b
}

// Resilient runs the body through the owner's resilience policy.
func (b *MethodBuilder[O, A, R]) Resilient() *MethodBuilder[O, A, R] {
	b.spec.resilient = true
	return b
}

// Codec sets the codec used by byte-oriented cache backends.
func (b *MethodBuilder[O, A, R]) Codec(c Codec) *MethodBuilder[O, A, R] {
	b.spec.codec = c
	return b
}

// Build validates the definition and creates the method.
func (b *MethodBuilder[O, A, R]) Build() (*Method[O, A, R], error) {
	d, err := b.spec.build(chain.Spec{
		Get:   b.fn,
		Mode:  b.mode,
		Keyed: true,
		Codec: store.NewJSONCodec[R](),
	})
	if err != nil {
		return nil, err
	}
	return &Method[O, A, R]{d: d}, nil
}

// MustBuild is like Build but panics on error.
func (b *MethodBuilder[O, A, R]) MustBuild() *Method[O, A, R] {
	m, err := b.Build()
	if err != nil {
		panic(err)
	}
	return m
}

// Method is a callable attribute taking an argument of type A.
type Method[O Owner, A comparable, R any] struct {
	d *chain.Descriptor
}

func (m *Method[O, A, R]) descriptor() *chain.Descriptor { return m.d }

// Name returns the attribute name.
func (m *Method[O, A, R]) Name() string { return m.d.Name() }

// Kinds returns the layer kinds, outer to inner.
func (m *Method[O, A, R]) Kinds() []Kind { return m.d.Kinds() }

// BindName names an unnamed method.
func (m *Method[O, A, R]) BindName(name string) error { return m.d.BindName("", name) }

// Call invokes the method on o with argument a.
func (m *Method[O, A, R]) Call(o O, a A) (R, error) {
	return m.CallContext(context.Background(), o, a)
}

// CallContext is Call with a context.
func (m *Method[O, A, R]) CallContext(ctx context.Context, o O, a A) (R, error) {
	v, err := m.d.Call(ctx, o, a)
	if err != nil {
		var zero R
		return zero, err
	}
	return as[R](m.d, types.OpCall, v)
}

// CallAsync runs a call on o's executor.
func (m *Method[O, A, R]) CallAsync(ctx context.Context, o O, a A) *Future[R] {
	return submit(o, func() (R, error) { return m.CallContext(ctx, o, a) })
}

// Recall returns the memoized result for a without calling the function.
func (m *Method[O, A, R]) Recall(o O, a A) (R, bool) {
	var zero R
	if !m.d.Has(KindCache) {
		return zero, false
	}
	v, ok, err := layers.Recall(m.d, o, a)
	if err != nil || !ok {
		return zero, false
	}
	r, err := as[R](m.d, types.OpCall, v)
	return r, err == nil
}

// ClearCache drops every cached result on o.
func (m *Method[O, A, R]) ClearCache(o O) error {
	return layers.ClearCache(m.d, o)
}

// Stats returns the statistics of op (StatCall or StatFailedCall) across
// all arguments.
func (m *Method[O, A, R]) Stats(o O, op string) (Summary, error) {
	return layers.AttrStats(m.d, o, op)
}

// ArgStats returns the statistics of calls with argument a.
func (m *Method[O, A, R]) ArgStats(o O, a A, op string) (Summary, error) {
	return layers.KeyStats(m.d, o, a, op)
}

// ResetStats clears the statistics of the method on o.
func (m *Method[O, A, R]) ResetStats(o O) error {
	return layers.ResetStats(m.d, o)
}

// SetInstanceConfig stores a per-instance setting.
func (m *Method[O, A, R]) SetInstanceConfig(o O, key string, v any) error {
	return m.d.SetSetting(o, key, v)
}

// InstanceConfig returns a per-instance setting.
func (m *Method[O, A, R]) InstanceConfig(o O, key string) (any, bool) {
	return instanceConfig(m.d, o, key)
}

// CircuitState returns the circuit breaker state, or "" when not resilient.
func (m *Method[O, A, R]) CircuitState(o O) string {
	return circuitState(m.d, o)
}
