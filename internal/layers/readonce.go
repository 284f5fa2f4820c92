package layers

import (
	"sync"

	"github.com/LavishGent/propkit/internal/chain"
	"github.com/LavishGent/propkit/internal/registry"
)

// SettingReadOnce is the instance setting that turns a ReadOnce layer on or off.
const SettingReadOnce = "read_once"

// ReadOnce calls the getter once and answers every later get with that value.
type ReadOnce struct {
	chain.Nop
	enabled bool
}

// NewReadOnce creates a read-once layer. enabled is the default for owners
// without a read_once setting.
func NewReadOnce(enabled bool) *ReadOnce {
	return &ReadOnce{enabled: enabled}
}

func (*ReadOnce) Kind() chain.Kind { return chain.KindReadOnce }

type readRecord struct {
	mu    sync.Mutex
	value any
	read  bool
}

func newReadRecord() any { return &readRecord{} }

func (r *ReadOnce) active(a *chain.Access) bool {
	if v, ok := a.Setting(SettingReadOnce); ok {
		if on, ok := v.(bool); ok {
			return on
		}
	}
	return r.enabled
}

func (r *ReadOnce) BeforeGet(a *chain.Access) (any, bool, error) {
	if !r.active(a) {
		return nil, false, nil
	}
	rec := a.State(newReadRecord).(*readRecord)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.read {
		return rec.value, true, nil
	}
	return nil, false, nil
}

func (r *ReadOnce) AfterGet(a *chain.Access, v any) (any, error) {
	if !a.StoppedHere() {
		r.remember(a, v)
	}
	return v, nil
}

func (r *ReadOnce) AfterSet(a *chain.Access, v any) error {
	r.remember(a, v)
	return nil
}

func (r *ReadOnce) remember(a *chain.Access, v any) {
	rec := a.State(newReadRecord).(*readRecord)
	rec.mu.Lock()
	rec.value, rec.read = v, true
	rec.mu.Unlock()
}

// ResetReadOnce makes the next get of key call the getter again.
func ResetReadOnce(d *chain.Descriptor, o registry.Owner, key any) error {
	st, err := d.KeyState(o, chain.KindReadOnce, key, nil)
	if err != nil || st == nil {
		return err
	}
	rec := st.(*readRecord)
	rec.mu.Lock()
	rec.value, rec.read = nil, false
	rec.mu.Unlock()
	return nil
}
