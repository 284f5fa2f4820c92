package chain

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/LavishGent/propkit/internal/registry"
	"github.com/LavishGent/propkit/internal/types"
)

// GetFunc reads the underlying value. key is nil for plain attributes.
type GetFunc func(ctx context.Context, o registry.Owner, key any) (any, error)

// SetFunc writes the underlying value.
type SetFunc func(ctx context.Context, o registry.Owner, key any, v any) error

// DeleteFunc removes the underlying value.
type DeleteFunc func(ctx context.Context, o registry.Owner, key any) error

// KeyFunc validates an access key and returns the key passed to the
// underlying functions.
type KeyFunc func(key any) (any, error)

// Spec is the input to New.
type Spec struct {
	Name        string
	Layers      []Layer
	Constraints []Constraint

	Get    GetFunc
	Set    SetFunc
	Delete DeleteFunc
	Mode   types.Mode

	// Keyed descriptors require a key on every access.
	Keyed bool
	Key   KeyFunc

	// Coalesce shares one in-flight underlying get among concurrent callers
	// on the same owner and key.
	Coalesce bool
	// Resilient runs underlying calls through a per-instance policy.
	Resilient bool

	Codec     types.Codec
	Validator *types.NameValidator
}

var nextID atomic.Uint64

// Descriptor is the composed, immutable definition of one attribute.
type Descriptor struct {
	id     uint64
	layers []Layer
	guards []Guard
	index  map[Kind]int

	get  GetFunc
	set  SetFunc
	del  DeleteFunc
	mode types.Mode

	keyed     bool
	keyFn     KeyFunc
	coalesce  bool
	resilient bool
	codec     types.Codec
	validator *types.NameValidator

	mu    sync.RWMutex
	name  string
	class string
	bound bool
}

// New resolves the layer order and builds a descriptor.
func New(spec Spec) (*Descriptor, error) {
	if spec.Get == nil && spec.Set == nil {
		return nil, fmt.Errorf("%w: attribute %q has neither getter nor setter", types.ErrConfiguration, spec.Name)
	}
	validator := spec.Validator
	if validator == nil {
		validator = types.DefaultNameValidator
	}
	if spec.Name != "" {
		if err := validator.Validate(spec.Name); err != nil {
			return nil, err
		}
	}

	layers, err := resolveOrder(spec.Layers, spec.Constraints)
	if err != nil {
		return nil, fmt.Errorf("attribute %q: %w", spec.Name, err)
	}

	mode := spec.Mode
	if mode == 0 {
		mode = types.ModeBlocking
	}

	d := &Descriptor{
		id:        nextID.Add(1),
		layers:    layers,
		guards:    make([]Guard, len(layers)),
		index:     make(map[Kind]int, len(layers)),
		get:       spec.Get,
		set:       spec.Set,
		del:       spec.Delete,
		mode:      mode,
		keyed:     spec.Keyed,
		keyFn:     spec.Key,
		coalesce:  spec.Coalesce,
		resilient: spec.Resilient,
		codec:     spec.Codec,
		validator: validator,
		name:      spec.Name,
		bound:     spec.Name != "",
	}
	for i, l := range layers {
		d.index[l.Kind()] = i
		if g, ok := l.(Guard); ok {
			d.guards[i] = g
		}
	}
	for _, l := range layers {
		if v, ok := l.(Validator); ok {
			if err := v.Validate(d); err != nil {
				return nil, fmt.Errorf("attribute %q: %w", spec.Name, err)
			}
		}
	}
	return d, nil
}

// ID identifies the descriptor within the process.
func (d *Descriptor) ID() uint64 { return d.id }

// Name returns the bound attribute name.
func (d *Descriptor) Name() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.name
}

// Class returns the name of the class the attribute was bound on.
func (d *Descriptor) Class() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.class
}

// BindName records the name an attribute is registered under. Binding the
// same descriptor twice under a different name or class fails.
func (d *Descriptor) BindName(class, name string) error {
	if err := d.validator.Validate(name); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.class != "" && class != "" && d.class != class {
		return fmt.Errorf("%w: attribute %q already bound on %q", types.ErrConfiguration, d.name, d.class)
	}
	if d.bound && d.name != name {
		return fmt.Errorf("%w: attribute %q already bound as %q", types.ErrConfiguration, name, d.name)
	}
	d.name, d.bound = name, true
	if class != "" {
		d.class = class
	}
	return nil
}

// Layers returns the resolved layers, outer first.
func (d *Descriptor) Layers() []Layer {
	out := make([]Layer, len(d.layers))
	copy(out, d.layers)
	return out
}

// Kinds returns the resolved layer kinds, outer first.
func (d *Descriptor) Kinds() []Kind {
	out := make([]Kind, len(d.layers))
	for i, l := range d.layers {
		out[i] = l.Kind()
	}
	return out
}

// Has reports whether a layer of kind k is present.
func (d *Descriptor) Has(k Kind) bool {
	_, ok := d.index[k]
	return ok
}

// Layer returns the layer of kind k.
func (d *Descriptor) Layer(k Kind) (Layer, bool) {
	i, ok := d.index[k]
	if !ok {
		return nil, false
	}
	return d.layers[i], true
}

// Outside reports whether layer a wraps layer b. False if either is absent.
func (d *Descriptor) Outside(a, b Kind) bool {
	i, ok1 := d.index[a]
	j, ok2 := d.index[b]
	return ok1 && ok2 && i < j
}

// Mode reports whether the underlying functions take a context.
func (d *Descriptor) Mode() types.Mode   { return d.mode }
func (d *Descriptor) Keyed() bool        { return d.keyed }
func (d *Descriptor) Codec() types.Codec { return d.codec }
func (d *Descriptor) CanGet() bool       { return d.get != nil }
func (d *Descriptor) CanSet() bool       { return d.set != nil }
func (d *Descriptor) CanDelete() bool    { return d.del != nil }

func (d *Descriptor) slot(o registry.Owner) (*registry.Root, *registry.AttrSlot, error) {
	root, err := registry.Lookup(o)
	if err != nil {
		return nil, nil, err
	}
	return root, root.Attr(d.id, len(d.layers)), nil
}

// AttrState returns the attribute-scoped state of layer k on o, creating it
// with init when init is non-nil.
func (d *Descriptor) AttrState(o registry.Owner, k Kind, init func() any) (any, error) {
	i, ok := d.index[k]
	if !ok {
		return nil, fmt.Errorf("%w: attribute %q has no %s layer", types.ErrConfiguration, d.Name(), k)
	}
	_, s, err := d.slot(o)
	if err != nil {
		return nil, err
	}
	return s.State(i, init), nil
}

// KeyState returns the key-scoped state of layer k on o, creating it with
// init when init is non-nil. Use a nil key for plain attributes.
func (d *Descriptor) KeyState(o registry.Owner, k Kind, key any, init func() any) (any, error) {
	i, ok := d.index[k]
	if !ok {
		return nil, fmt.Errorf("%w: attribute %q has no %s layer", types.ErrConfiguration, d.Name(), k)
	}
	_, s, err := d.slot(o)
	if err != nil {
		return nil, err
	}
	if init == nil {
		ks, ok := s.PeekKey(key)
		if !ok {
			return nil, nil
		}
		return ks.Peek(i), nil
	}
	return s.Key(key).State(i, init), nil
}

// EachKeyState calls fn with every created key-scoped state of layer k on o.
func (d *Descriptor) EachKeyState(o registry.Owner, k Kind, fn func(key any, st any)) error {
	i, ok := d.index[k]
	if !ok {
		return fmt.Errorf("%w: attribute %q has no %s layer", types.ErrConfiguration, d.Name(), k)
	}
	_, s, err := d.slot(o)
	if err != nil {
		return err
	}
	s.EachKey(func(key any, ks *registry.KeySlot) {
		if st := ks.Peek(i); st != nil {
			fn(key, st)
		}
	})
	return nil
}

func (d *Descriptor) isGuard(i int) bool { return i < len(d.guards) && d.guards[i] != nil }

// Reset drops all layer state of the attribute on o. Instance settings and
// lock state stay.
func (d *Descriptor) Reset(o registry.Owner) error {
	root, err := registry.Lookup(o)
	if err != nil {
		return err
	}
	root.Clear(d.id, d.isGuard)
	return nil
}

// Setting returns a per-instance setting of the attribute on o.
func (d *Descriptor) Setting(o registry.Owner, name string) (any, bool, error) {
	_, s, err := d.slot(o)
	if err != nil {
		return nil, false, err
	}
	v, ok := s.Setting(name)
	return v, ok, nil
}

// SetSetting stores a per-instance setting. A nil value removes it.
func (d *Descriptor) SetSetting(o registry.Owner, name string, v any) error {
	_, s, err := d.slot(o)
	if err != nil {
		return err
	}
	if v == nil {
		s.DeleteSetting(name)
		return nil
	}
	s.SetSetting(name, v)
	return nil
}

// Settings returns a copy of the per-instance settings on o.
func (d *Descriptor) Settings(o registry.Owner) (map[string]any, error) {
	_, s, err := d.slot(o)
	if err != nil {
		return nil, err
	}
	return s.Settings(), nil
}
