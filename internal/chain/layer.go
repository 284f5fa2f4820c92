// Package chain composes capability layers around an attribute's underlying
// getter and setter.
//
// A Descriptor is built once from a set of layers. Their order is resolved at
// construction from default ranks and declared constraints and never changes
// afterwards. Each access walks the layers outer to inner and back:
//
//	get: BeforeGet (outer->inner), getter, AfterGet (inner->outer)
//	set: BeforeSet (outer->inner), setter, AfterSet (inner->outer)
//
// A layer whose before hook stops the walk gets its own after hook next, and
// the walk unwinds outward from there. On failure every entered layer sees the
// error exactly once through OnGetError/OnSetError and may replace it with a
// value (get) or swallow it (set). Only Guard.Acquire and the underlying
// functions receive the access context.
package chain

import "context"

// Kind names a capability. A descriptor holds at most one layer per kind.
type Kind string

const (
	KindLogging    Kind = "logging"
	KindStats      Kind = "stats"
	KindReadOnce   Kind = "read_once"
	KindCache      Kind = "cache"
	KindObserve    Kind = "observe"
	KindPreventSet Kind = "prevent_set"
	KindCoerce     Kind = "coerce"
	KindLock       Kind = "lock"
)

// Default order, outer to inner. Kinds not listed rank customRank.
var defaultRanks = map[Kind]int{
	KindLogging:    10,
	KindStats:      20,
	KindReadOnce:   30,
	KindLock:       35,
	KindCache:      40,
	KindObserve:    50,
	KindPreventSet: 60,
	KindCoerce:     70,
}

const customRank = 100

// Layer is one capability. Hooks must not block; see Guard.
type Layer interface {
	Kind() Kind

	// BeforeGet may stop the walk with a final value.
	BeforeGet(a *Access) (v any, stop bool, err error)
	AfterGet(a *Access, v any) (any, error)
	// OnGetError returns a nil error to replace err with the returned value.
	OnGetError(a *Access, err error) (any, error)

	// BeforeSet may transform the value or stop the walk, skipping the setter.
	BeforeSet(a *Access, v any) (nv any, stop bool, err error)
	AfterSet(a *Access, v any) error
	// OnSetError returns nil to swallow err.
	OnSetError(a *Access, err error) error
}

// Guard is implemented by layers that hold a resource around the inner walk.
// Acquire is the only hook that may block, and release runs on every exit path.
type Guard interface {
	Acquire(ctx context.Context, a *Access) (release func(), err error)
}

// Constrained layers declare ordering constraints of their own.
type Constrained interface {
	Constraints() []Constraint
}

// Ranked layers override their default rank.
type Ranked interface {
	Rank() int
}

// Validator layers check the finished descriptor.
type Validator interface {
	Validate(d *Descriptor) error
}

// Constraint requires Outer to wrap Inner when both are present.
type Constraint struct {
	Outer Kind
	Inner Kind
}

// Outer declares that outer must wrap inner.
func Outer(outer, inner Kind) Constraint {
	return Constraint{Outer: outer, Inner: inner}
}

// Nop implements every hook as a pass-through. Layers embed it and override
// the hooks they need.
type Nop struct{}

func (Nop) BeforeGet(*Access) (any, bool, error)          { return nil, false, nil }
func (Nop) AfterGet(_ *Access, v any) (any, error)        { return v, nil }
func (Nop) OnGetError(_ *Access, err error) (any, error)  { return nil, err }
func (Nop) BeforeSet(_ *Access, v any) (any, bool, error) { return v, false, nil }
func (Nop) AfterSet(*Access, any) error                   { return nil }
func (Nop) OnSetError(_ *Access, err error) error         { return err }
