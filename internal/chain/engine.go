package chain

import (
	"context"
	"fmt"

	"github.com/LavishGent/propkit/internal/registry"
	"github.com/LavishGent/propkit/internal/resilience"
	"github.com/LavishGent/propkit/internal/types"
)

const policyExtra = "resilience"

// Get runs the get path of a plain attribute.
func (d *Descriptor) Get(ctx context.Context, o registry.Owner) (any, error) {
	a, err := d.begin(ctx, o, types.OpGet, nil, false)
	if err != nil {
		return nil, err
	}
	return d.walkGet(a, 0)
}

// GetKey runs the get path of a keyed attribute.
func (d *Descriptor) GetKey(ctx context.Context, o registry.Owner, key any) (any, error) {
	a, err := d.begin(ctx, o, types.OpGet, key, true)
	if err != nil {
		return nil, err
	}
	return d.walkGet(a, 0)
}

// Call runs the get path with op call; key carries the call arguments.
func (d *Descriptor) Call(ctx context.Context, o registry.Owner, key any) (any, error) {
	a, err := d.begin(ctx, o, types.OpCall, key, true)
	if err != nil {
		return nil, err
	}
	return d.walkGet(a, 0)
}

// Set runs the set path of a plain attribute.
func (d *Descriptor) Set(ctx context.Context, o registry.Owner, v any) error {
	a, err := d.begin(ctx, o, types.OpSet, nil, false)
	if err != nil {
		return err
	}
	return d.walkSet(a, 0, v)
}

// SetKey runs the set path of a keyed attribute.
func (d *Descriptor) SetKey(ctx context.Context, o registry.Owner, key any, v any) error {
	a, err := d.begin(ctx, o, types.OpSet, key, true)
	if err != nil {
		return err
	}
	return d.walkSet(a, 0, v)
}

// Delete calls the deleter outside the layer chain and drops the attribute's
// state on o.
func (d *Descriptor) Delete(ctx context.Context, o registry.Owner, key any) error {
	root, err := registry.Lookup(o)
	if err != nil {
		return err
	}
	if d.del == nil {
		return types.NewAttrError(types.ErrNotDeletable, "delete", d.Name(), "", "", nil)
	}
	if err := d.del(ctx, o, key); err != nil {
		return types.NewAttrError(types.ErrAccess, "delete", d.Name(), "", "", err)
	}
	root.Clear(d.id, d.isGuard)
	return nil
}

// Policy returns the resilience policy of the attribute on o, or nil when the
// descriptor is not resilient.
func (d *Descriptor) Policy(o registry.Owner) (*resilience.Policy, error) {
	if !d.resilient {
		return nil, nil
	}
	root, s, err := d.slot(o)
	if err != nil {
		return nil, err
	}
	return d.policy(root, s), nil
}

func (d *Descriptor) policy(root *registry.Root, s *registry.AttrSlot) *resilience.Policy {
	return s.Extra(policyExtra, func() any {
		p := resilience.NewPolicy(d.Name(), root.Config())
		logger := root.Logger()
		p.SetOnCircuitStateChange(func(name string, from, to resilience.State) {
			logger.Warn("circuit state changed", "attr", name, "from", from.String(), "to", to.String())
		})
		return p
	}).(*resilience.Policy)
}

func (d *Descriptor) begin(ctx context.Context, o registry.Owner, op types.Op, key any, hasKey bool) (*Access, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	root, slot, err := d.slot(o)
	if err != nil {
		return nil, err
	}

	name := d.Name()
	switch {
	case op == types.OpSet && d.set == nil:
		return nil, types.NewAttrError(types.ErrReadOnly, op.String(), name, keyString(key, hasKey), "", nil)
	case op != types.OpSet && d.get == nil:
		return nil, types.NewAttrError(types.ErrWriteOnly, op.String(), name, keyString(key, hasKey), "", nil)
	case d.keyed && !hasKey:
		return nil, fmt.Errorf("%w: attribute %q requires a key", types.ErrConfiguration, name)
	}

	callKey := key
	if hasKey && d.keyFn != nil {
		callKey, err = d.keyFn(key)
		if err != nil {
			return nil, types.NewAttrError(types.ErrAccess, op.String(), name, keyString(key, hasKey), "", err)
		}
	}

	return &Access{
		ctx:     ctx,
		owner:   o,
		root:    root,
		slot:    slot,
		kslot:   slot.Key(key),
		desc:    d,
		op:      op,
		key:     key,
		callKey: callKey,
		hasKey:  hasKey,
		stopped: -1,
		scratch: make([]any, len(d.layers)),
	}, nil
}

func keyString(key any, hasKey bool) string {
	if !hasKey {
		return ""
	}
	return fmt.Sprint(key)
}

func (d *Descriptor) walkGet(a *Access, i int) (any, error) {
	if i == len(d.layers) {
		return d.invokeGet(a)
	}
	l := d.layers[i]

	if g := d.guards[i]; g != nil {
		release, err := g.Acquire(a.ctx, a.at(i))
		if err != nil {
			return nil, err
		}
		defer release()
	}

	v, stop, err := l.BeforeGet(a.at(i))
	if err != nil {
		return nil, err
	}
	if stop {
		a.stopped = i
		return l.AfterGet(a.at(i), v)
	}

	v, err = d.walkGet(a, i+1)
	if err != nil {
		sub, herr := l.OnGetError(a.at(i), err)
		switch {
		case types.IsLockTimeout(err):
			return nil, err
		case herr != nil:
			return nil, herr
		}
		return sub, nil
	}
	return l.AfterGet(a.at(i), v)
}

func (d *Descriptor) walkSet(a *Access, i int, v any) error {
	if i == len(d.layers) {
		return d.invokeSet(a, v)
	}
	l := d.layers[i]

	if g := d.guards[i]; g != nil {
		release, err := g.Acquire(a.ctx, a.at(i))
		if err != nil {
			return err
		}
		defer release()
	}

	nv, stop, err := l.BeforeSet(a.at(i), v)
	if err != nil {
		return err
	}
	if stop {
		a.stopped = i
		return l.AfterSet(a.at(i), nv)
	}

	if err := d.walkSet(a, i+1, nv); err != nil {
		herr := l.OnSetError(a.at(i), err)
		if types.IsLockTimeout(err) {
			return err
		}
		return herr
	}
	return l.AfterSet(a.at(i), nv)
}

func (d *Descriptor) invokeGet(a *Access) (any, error) {
	call := func(ctx context.Context) (any, error) {
		return d.get(ctx, a.owner, a.callKey)
	}
	if d.resilient {
		p := d.policy(a.root, a.slot)
		inner := call
		call = func(ctx context.Context) (any, error) {
			return p.ExecuteWithResult(ctx, inner)
		}
	}

	var (
		v   any
		err error
	)
	if d.coalesce {
		key := fmt.Sprintf("%d/%d/%T/%v", d.id, a.op, a.callKey, a.callKey)
		v, err, _ = a.root.Flight().Do(key, func() (any, error) {
			return call(a.ctx)
		})
	} else {
		v, err = call(a.ctx)
	}
	if err != nil {
		return nil, a.Error(types.ErrAccess, "", err)
	}
	return v, nil
}

func (d *Descriptor) invokeSet(a *Access, v any) error {
	call := func(ctx context.Context) error {
		return d.set(ctx, a.owner, a.callKey, v)
	}
	var err error
	if d.resilient {
		err = d.policy(a.root, a.slot).Execute(a.ctx, call)
	} else {
		err = call(a.ctx)
	}
	if err != nil {
		return a.Error(types.ErrAccess, "", err)
	}
	return nil
}
