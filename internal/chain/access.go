package chain

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/LavishGent/propkit/internal/config"
	"github.com/LavishGent/propkit/internal/registry"
	"github.com/LavishGent/propkit/internal/types"
)

// Access is the frame of one attribute access. Hooks receive it with the
// calling layer's position set, so State and Scratch refer to that layer.
type Access struct {
	ctx     context.Context
	owner   registry.Owner
	root    *registry.Root
	slot    *registry.AttrSlot
	kslot   *registry.KeySlot
	desc    *Descriptor
	op      types.Op
	key     any
	callKey any
	hasKey  bool

	pos     int
	stopped int
	scratch []any
	logger  *slog.Logger
}

func (a *Access) at(i int) *Access {
	a.pos = i
	return a
}

// Context returns the context of the access. It carries whatever guards added
// on the way in.
func (a *Access) Context() context.Context { return a.ctx }

// WithValue adds a value to the context seen by inner guards and the
// underlying function.
func (a *Access) WithValue(key, val any) { a.ctx = context.WithValue(a.ctx, key, val) }

func (a *Access) Owner() registry.Owner      { return a.owner }
func (a *Access) Root() *registry.Root       { return a.root }
func (a *Access) Descriptor() *Descriptor    { return a.desc }
func (a *Access) Name() string               { return a.desc.Name() }
func (a *Access) Op() types.Op               { return a.op }
func (a *Access) Config() *config.Config     { return a.root.Config() }
func (a *Access) Publisher() types.Publisher { return a.root.Publisher() }

// Key returns the access key of key-addressable attributes and method calls.
func (a *Access) Key() (any, bool) { return a.key, a.hasKey }

// KeyString formats the access key for messages; empty for plain attributes.
func (a *Access) KeyString() string {
	if !a.hasKey {
		return ""
	}
	return fmt.Sprint(a.key)
}

// SetCallKey changes the key passed to the underlying function only; layer
// state stays addressed by the original key.
func (a *Access) SetCallKey(k any) { a.callKey = k }

// CallKey returns the key that will be passed to the underlying function.
func (a *Access) CallKey() any { return a.callKey }

// Logger returns the owner's logger annotated with the attribute.
func (a *Access) Logger() *slog.Logger {
	if a.logger == nil {
		l := a.root.Logger().With("attr", a.desc.Name())
		if a.hasKey {
			l = l.With("key", a.key)
		}
		a.logger = l
	}
	return a.logger
}

// State returns the current layer's state for this access key.
func (a *Access) State(init func() any) any {
	return a.kslot.State(a.pos, init)
}

// AttrState returns the current layer's state shared by all keys.
func (a *Access) AttrState(init func() any) any {
	return a.slot.State(a.pos, init)
}

// PeerState returns the key state of another layer on this descriptor, or nil
// when that layer is absent or has no state yet.
func (a *Access) PeerState(k Kind) any {
	i, ok := a.desc.index[k]
	if !ok {
		return nil
	}
	return a.kslot.Peek(i)
}

// PeerAttrState returns the attribute state of another layer, or nil.
func (a *Access) PeerAttrState(k Kind) any {
	i, ok := a.desc.index[k]
	if !ok {
		return nil
	}
	return a.slot.State(i, nil)
}

// Setting returns a per-instance override for this attribute.
func (a *Access) Setting(name string) (any, bool) {
	return a.slot.Setting(name)
}

// Scratch returns the current layer's per-access value.
func (a *Access) Scratch() any { return a.scratch[a.pos] }

// SetScratch stores a per-access value for the current layer.
func (a *Access) SetScratch(v any) { a.scratch[a.pos] = v }

// Stopped reports whether a layer stopped the walk.
func (a *Access) Stopped() bool { return a.stopped >= 0 }

// StoppedBy returns the kind of the layer that stopped the walk.
func (a *Access) StoppedBy() Kind {
	if a.stopped < 0 {
		return ""
	}
	return a.desc.layers[a.stopped].Kind()
}

// StoppedHere reports whether the current layer stopped the walk.
func (a *Access) StoppedHere() bool { return a.stopped == a.pos }

// Error builds an AttrError for this access.
func (a *Access) Error(kind error, layer Kind, err error) *types.AttrError {
	return types.NewAttrError(kind, a.op.String(), a.desc.Name(), a.KeyString(), string(layer), err)
}
