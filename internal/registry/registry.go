// Package registry holds the per-instance state of attribute layers.
//
// Every owner carries exactly one Root. Layer state for an attribute lives in
// an AttrSlot keyed by the descriptor's identity, and key-addressable state in
// KeySlots below it. Nothing here is global: dropping the owner drops its
// state.
package registry

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/LavishGent/propkit/internal/config"
	"github.com/LavishGent/propkit/internal/types"
)

// Owner is implemented by objects that expose a storage root.
type Owner interface {
	AttrRoot() *Root
}

// Root is the storage root of one owner instance.
type Root struct {
	id        uuid.UUID
	logger    *slog.Logger
	cfg       *config.Config
	publisher types.Publisher

	mu         sync.Mutex
	attrs      map[uint64]*AttrSlot
	namespaces map[string]any

	flight singleflight.Group
	exec   Executor
}

// Option configures a Root.
type Option func(*rootOptions)

type rootOptions struct {
	id        uuid.UUID
	logger    *slog.Logger
	logAttrs  []any
	cfg       *config.Config
	publisher types.Publisher
}

// WithID sets the owner identity. A random one is used otherwise.
func WithID(id uuid.UUID) Option {
	return func(o *rootOptions) { o.id = id }
}

// WithLogger sets the owner logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *rootOptions) { o.logger = l }
}

// WithLogAttrs adds attributes to every record logged for the owner.
func WithLogAttrs(args ...any) Option {
	return func(o *rootOptions) { o.logAttrs = append(o.logAttrs, args...) }
}

// WithConfig sets the owner configuration.
func WithConfig(cfg *config.Config) Option {
	return func(o *rootOptions) { o.cfg = cfg }
}

// WithPublisher sets the metrics publisher used by stats layers.
func WithPublisher(p types.Publisher) Option {
	return func(o *rootOptions) { o.publisher = p }
}

// NewRoot creates a storage root.
func NewRoot(opts ...Option) *Root {
	o := &rootOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.id == uuid.Nil {
		o.id = uuid.New()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.cfg == nil {
		o.cfg = config.DefaultConfig()
	}

	logger := o.logger.With("owner", o.id.String())
	if len(o.logAttrs) > 0 {
		logger = logger.With(o.logAttrs...)
	}

	return &Root{
		id:         o.id,
		logger:     logger,
		cfg:        o.cfg,
		publisher:  o.publisher,
		attrs:      make(map[uint64]*AttrSlot),
		namespaces: make(map[string]any),
	}
}

// Lookup returns the root of an owner.
func Lookup(o Owner) (*Root, error) {
	if o == nil {
		return nil, types.ErrNotInitialized
	}
	r := o.AttrRoot()
	if r == nil {
		return nil, types.ErrNotInitialized
	}
	return r, nil
}

// ID returns the owner identity.
func (r *Root) ID() uuid.UUID { return r.id }

// Logger returns the owner logger.
func (r *Root) Logger() *slog.Logger { return r.logger }

// Config returns the owner configuration.
func (r *Root) Config() *config.Config { return r.cfg }

// Publisher returns the metrics publisher, or nil when metrics are off.
func (r *Root) Publisher() types.Publisher { return r.publisher }

// Flight coalesces concurrent underlying calls made on this owner.
func (r *Root) Flight() *singleflight.Group { return &r.flight }

// Executor runs asynchronous accesses for this owner one at a time.
func (r *Root) Executor() *Executor { return &r.exec }

// Attr returns the slot for a descriptor, creating it on first use.
// layers sizes the per-layer state table.
func (r *Root) Attr(id uint64, layers int) *AttrSlot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.attrs[id]
	if !ok {
		s = newAttrSlot(layers)
		r.attrs[id] = s
	}
	return s
}

// Peek returns the slot for a descriptor without creating it.
func (r *Root) Peek(id uint64) (*AttrSlot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.attrs[id]
	return s, ok
}

// Clear drops the layer state of a descriptor in place. Instance settings
// and the states of layers for which keep reports true survive, so an access
// holding a lock keeps excluding the ones that follow. keep may be nil.
func (r *Root) Clear(id uint64, keep func(layer int) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.attrs[id]
	if !ok {
		return
	}
	s.reset(keep)
}

// Len returns the number of attribute slots.
func (r *Root) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.attrs)
}

// Namespace returns owner-wide shared state, creating it with init on first use.
func (r *Root) Namespace(name string, init func() any) any {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.namespaces[name]
	if !ok {
		v = init()
		r.namespaces[name] = v
	}
	return v
}

// AttrSlot is the state bag of one descriptor on one owner.
type AttrSlot struct {
	mu       sync.Mutex
	states   []any
	keys     map[any]*KeySlot
	settings map[string]any
	extras   map[string]any
}

func newAttrSlot(layers int) *AttrSlot {
	return &AttrSlot{
		states: make([]any, layers),
		keys:   make(map[any]*KeySlot),
	}
}

// State returns attribute-scoped state for layer i.
func (s *AttrSlot) State(i int, init func() any) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lazy(s.states, i, init)
}

func (s *AttrSlot) reset(keep func(int) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clearStates(s.states, keep)
	s.extras = nil
	for key, k := range s.keys {
		k.mu.Lock()
		if !clearStates(k.states, keep) {
			delete(s.keys, key)
		}
		k.mu.Unlock()
	}
}

// clearStates nils every state not kept and reports whether any survived.
func clearStates(states []any, keep func(int) bool) bool {
	kept := false
	for i := range states {
		if states[i] == nil {
			continue
		}
		if keep != nil && keep(i) {
			kept = true
			continue
		}
		states[i] = nil
	}
	return kept
}

// Key returns the slot for an access key, creating it on first use.
func (s *AttrSlot) Key(key any) *KeySlot {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.keys[key]
	if !ok {
		k = &KeySlot{states: make([]any, len(s.states))}
		s.keys[key] = k
	}
	return k
}

// PeekKey returns the slot for an access key without creating it.
func (s *AttrSlot) PeekKey(key any) (*KeySlot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[key]
	return k, ok
}

// EachKey calls fn for every key slot.
func (s *AttrSlot) EachKey(fn func(key any, k *KeySlot)) {
	s.mu.Lock()
	snapshot := make(map[any]*KeySlot, len(s.keys))
	for key, k := range s.keys {
		snapshot[key] = k
	}
	s.mu.Unlock()

	for key, k := range snapshot {
		fn(key, k)
	}
}

// Setting returns a per-instance setting.
func (s *AttrSlot) Setting(name string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.settings[name]
	return v, ok
}

// SetSetting stores a per-instance setting.
func (s *AttrSlot) SetSetting(name string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings == nil {
		s.settings = make(map[string]any)
	}
	s.settings[name] = v
}

// DeleteSetting removes a per-instance setting.
func (s *AttrSlot) DeleteSetting(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.settings, name)
}

// Settings returns a copy of the per-instance settings.
func (s *AttrSlot) Settings() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.settings))
	for k, v := range s.settings {
		out[k] = v
	}
	return out
}

// Extra returns named attribute-scoped state that does not belong to a layer.
func (s *AttrSlot) Extra(name string, init func() any) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.extras == nil {
		s.extras = make(map[string]any)
	}
	v, ok := s.extras[name]
	if !ok {
		v = init()
		s.extras[name] = v
	}
	return v
}

// KeySlot is the state bag of one access key.
type KeySlot struct {
	mu     sync.Mutex
	states []any
}

// State returns key-scoped state for layer i.
func (k *KeySlot) State(i int, init func() any) any {
	k.mu.Lock()
	defer k.mu.Unlock()
	return lazy(k.states, i, init)
}

// Peek returns key-scoped state for layer i if it was created.
func (k *KeySlot) Peek(i int) any {
	k.mu.Lock()
	defer k.mu.Unlock()
	if i < 0 || i >= len(k.states) {
		return nil
	}
	return k.states[i]
}

func lazy(states []any, i int, init func() any) any {
	if i < 0 || i >= len(states) {
		return nil
	}
	if states[i] == nil && init != nil {
		states[i] = init()
	}
	return states[i]
}
