package propkit

import (
	"fmt"

	"github.com/LavishGent/propkit/internal/chain"
	"github.com/LavishGent/propkit/internal/registry"
	"github.com/LavishGent/propkit/internal/resilience"
	"github.com/LavishGent/propkit/internal/types"
)

// Attribute is implemented by Property, Dict and Method.
type Attribute interface {
	Name() string
	descriptor() *chain.Descriptor
}

// attrSpec collects the builder settings shared by all attribute kinds.
type attrSpec struct {
	name        string
	layers      []chain.Layer
	constraints []chain.Constraint
	coalesce    bool
	resilient   bool
	codec       types.Codec
}

func (s *attrSpec) build(cs chain.Spec) (*chain.Descriptor, error) {
	cs.Name = s.name
	cs.Layers = s.layers
	cs.Constraints = s.constraints
	cs.Coalesce = s.coalesce
	cs.Resilient = s.resilient
	if s.codec != nil {
		cs.Codec = s.codec
	}
	return chain.New(cs)
}

// owner recovers the typed owner passed back by the engine.
func owner[O Owner](o registry.Owner) O {
	typed, _ := o.(O)
	return typed
}

// as converts a value coming out of the chain to the attribute's type.
func as[T any](d *chain.Descriptor, op types.Op, v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, types.NewAttrError(types.ErrCoercion, op.String(), d.Name(), "", "",
			fmt.Errorf("got %T, want %T", v, zero))
	}
	return t, nil
}

// arg converts a value handed to an underlying function.
func arg[T any](v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: got %T, want %T", types.ErrCoercion, v, zero)
	}
	return t, nil
}

func circuitState(d *chain.Descriptor, o Owner) string {
	p, err := d.Policy(o)
	if err != nil || p == nil {
		return resilience.StateClosed.String()
	}
	return p.CircuitState().String()
}

func instanceConfig(d *chain.Descriptor, o Owner, key string) (any, bool) {
	v, ok, err := d.Setting(o, key)
	if err != nil {
		return nil, false
	}
	return v, ok
}
