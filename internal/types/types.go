// Package types provides shared types for the propkit library.
// This package breaks import cycles between pkg/propkit and the internal packages.
package types

// Op identifies the kind of attribute access.
type Op int

const (
	OpGet Op = iota + 1
	OpSet
	OpCall
)

func (o Op) String() string {
	switch o {
	case OpGet:
		return "get"
	case OpSet:
		return "set"
	case OpCall:
		return "call"
	default:
		return "unknown"
	}
}

// StatKey returns the statistics key recorded for the operation.
func (o Op) StatKey(failed bool) string {
	if failed {
		return "failed_" + o.String()
	}
	return o.String()
}

// Mode declares how the underlying function of an attribute is invoked.
type Mode int

const (
	// ModeBlocking functions take no context and block the caller.
	ModeBlocking Mode = iota + 1
	// ModeContext functions receive the access context and may be cancelled.
	ModeContext
)

func (m Mode) String() string {
	switch m {
	case ModeBlocking:
		return "blocking"
	case ModeContext:
		return "context"
	default:
		return "unknown"
	}
}

// Change is delivered to observers when an attribute value changes.
type Change struct {
	Attr   string
	Key    any
	HasKey bool
	Old    any
	New    any
	HadOld bool
}
