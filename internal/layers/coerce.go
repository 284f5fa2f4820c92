package layers

import (
	"github.com/LavishGent/propkit/internal/chain"
	"github.com/LavishGent/propkit/internal/types"
)

// Func converts a value between its external and internal form.
type Func func(any) (any, error)

// Instance settings that replace a Coerce layer's functions.
const (
	SettingToInternal = "to_internal"
	SettingToExternal = "to_external"
)

// Coerce converts values on their way to the setter and from the getter.
// Method arguments are converted with the key function.
type Coerce struct {
	chain.Nop
	toInternal    Func
	toExternal    Func
	keyToInternal Func
}

// CoerceOption configures a Coerce layer.
type CoerceOption func(*Coerce)

// WithKeyToInternal converts access keys before they reach the underlying
// function. Layer state stays addressed by the original key.
func WithKeyToInternal(f Func) CoerceOption {
	return func(c *Coerce) { c.keyToInternal = f }
}

// NewCoerce creates a coercion layer. Either function may be nil.
func NewCoerce(toInternal, toExternal Func, opts ...CoerceOption) *Coerce {
	c := &Coerce{toInternal: toInternal, toExternal: toExternal}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (*Coerce) Kind() chain.Kind { return chain.KindCoerce }

func (c *Coerce) fn(a *chain.Access, setting string, def Func) Func {
	if v, ok := a.Setting(setting); ok {
		switch f := v.(type) {
		case Func:
			return f
		case func(any) (any, error):
			return f
		}
	}
	return def
}

func (c *Coerce) convertKey(a *chain.Access) error {
	if c.keyToInternal == nil {
		return nil
	}
	if _, ok := a.Key(); !ok {
		return nil
	}
	k, err := c.keyToInternal(a.CallKey())
	if err != nil {
		return a.Error(types.ErrCoercion, chain.KindCoerce, err)
	}
	a.SetCallKey(k)
	return nil
}

func (c *Coerce) BeforeGet(a *chain.Access) (any, bool, error) {
	return nil, false, c.convertKey(a)
}

func (c *Coerce) AfterGet(a *chain.Access, v any) (any, error) {
	f := c.fn(a, SettingToExternal, c.toExternal)
	if f == nil {
		return v, nil
	}
	out, err := f(v)
	if err != nil {
		return nil, a.Error(types.ErrCoercion, chain.KindCoerce, err)
	}
	return out, nil
}

func (c *Coerce) BeforeSet(a *chain.Access, v any) (any, bool, error) {
	if err := c.convertKey(a); err != nil {
		return nil, false, err
	}
	f := c.fn(a, SettingToInternal, c.toInternal)
	if f == nil {
		return v, false, nil
	}
	out, err := f(v)
	if err != nil {
		return nil, false, a.Error(types.ErrCoercion, chain.KindCoerce, err)
	}
	return out, false, nil
}
