package propkit

import (
	"fmt"

	"github.com/LavishGent/propkit/internal/layers"
)

type (
	LoggingOption = layers.LoggingOption
	StatsOption   = layers.StatsOption
	CacheOption   = layers.CacheOption
	LockOption    = layers.LockOption
	CoerceOption  = layers.CoerceOption
	PreventOption = layers.PreventOption
	SkipPolicy    = layers.SkipPolicy
	Backend       = layers.Backend
	LockKind      = layers.LockKind
	LockScope     = layers.Scope
	Source        = layers.Source
	// Func converts a value between its external and internal form.
	Func = layers.Func
)

const (
	SkipIgnore          = layers.SkipIgnore
	SkipCountAsSet      = layers.SkipCountAsSet
	SkipCountSeparately = layers.SkipCountSeparately

	BackendMap      = layers.BackendMap
	BackendBigCache = layers.BackendBigCache

	LockAuto    = layers.LockAuto
	LockSync    = layers.LockSync
	LockSuspend = layers.LockSuspend

	ScopeKey       = layers.ScopeKey
	ScopeAttribute = layers.ScopeAttribute
	ScopeInstance  = layers.ScopeInstance

	SourceShadow = layers.SourceShadow
	SourceCache  = layers.SourceCache
)

// Instance settings understood by the built-in layers.
const (
	SettingReadOnce   = layers.SettingReadOnce
	SettingToInternal = layers.SettingToInternal
	SettingToExternal = layers.SettingToExternal
)

var (
	WithLevel         = layers.WithLevel
	WithErrorLevel    = layers.WithErrorLevel
	WithLogValues     = layers.WithLogValues
	WithLayerLogger   = layers.WithLogger
	WithSkippedSets   = layers.WithSkippedSets
	WithPublish       = layers.WithPublish
	WithTTL           = layers.WithTTL
	InvalidateOnSet   = layers.InvalidateOnSet
	WithBackend       = layers.WithBackend
	WithLockKind      = layers.WithLockKind
	WithLockTimeout   = layers.WithLockTimeout
	WithLockScope     = layers.WithLockScope
	WithKeyToInternal = layers.WithKeyToInternal
	WithEqual         = layers.WithEqual
	WithSource        = layers.WithSource
)

// Logging emits a record before and after every access.
func Logging(opts ...LoggingOption) Layer { return layers.NewLogging(opts...) }

// Stats keeps running timing statistics per operation.
func Stats(opts ...StatsOption) Layer { return layers.NewStats(opts...) }

// Cache answers gets from a stored value until cleared, expired or set.
func Cache(opts ...CacheOption) Layer { return layers.NewCache(opts...) }

// Lock serializes accesses per owner.
func Lock(opts ...LockOption) Layer { return layers.NewLock(opts...) }

// Coerce converts values between external and internal form. Either
// function may be nil.
func Coerce(toInternal, toExternal Func, opts ...CoerceOption) Layer {
	return layers.NewCoerce(toInternal, toExternal, opts...)
}

// PreventSet skips the setter when the value equals the last known one.
func PreventSet(opts ...PreventOption) Layer { return layers.NewPreventSet(opts...) }

// ReadOnce calls the getter once per owner. It can be switched off per owner
// with the read_once instance setting.
func ReadOnce() Layer { return layers.NewReadOnce(true) }

// Observe notifies subscribers when the value seen on get or set changes.
func Observe() Layer { return layers.NewObserve() }

// Convert builds a Coerce layer from typed conversion functions.
func Convert[E, I any](toInternal func(E) (I, error), toExternal func(I) (E, error), opts ...CoerceOption) Layer {
	var in, out Func
	if toInternal != nil {
		in = func(v any) (any, error) {
			e, ok := v.(E)
			if !ok {
				return nil, fmt.Errorf("got %T, want %T", v, e)
			}
			return toInternal(e)
		}
	}
	if toExternal != nil {
		out = func(v any) (any, error) {
			i, ok := v.(I)
			if !ok {
				return nil, fmt.Errorf("got %T, want %T", v, i)
			}
			return toExternal(i)
		}
	}
	return layers.NewCoerce(in, out, opts...)
}
