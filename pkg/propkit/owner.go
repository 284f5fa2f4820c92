package propkit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/LavishGent/propkit/internal/config"
	"github.com/LavishGent/propkit/internal/metrics"
	"github.com/LavishGent/propkit/internal/metrics/datadog"
	"github.com/LavishGent/propkit/internal/registry"
	"github.com/LavishGent/propkit/internal/types"
)

// Base gives an owner struct its attribute storage. Embed it and call Init
// before the first access:
//
//	type Motor struct {
//	    propkit.Base
//	}
//
//	m := &Motor{}
//	if err := m.Init(propkit.WithConfig(cfg)); err != nil { ... }
type Base struct {
	mu        sync.RWMutex
	root      *registry.Root
	publisher types.Publisher
	ownsPub   bool
}

// Option configures an owner at Init.
type Option func(*ownerOptions)

type ownerOptions struct {
	id        uuid.UUID
	cfg       *config.Config
	logger    *slog.Logger
	logAttrs  []any
	publisher types.Publisher
}

// WithID sets the owner identity used in logs and metric tags.
func WithID(id uuid.UUID) Option {
	return func(o *ownerOptions) { o.id = id }
}

// WithConfig sets the owner configuration.
func WithConfig(cfg *Config) Option {
	return func(o *ownerOptions) { o.cfg = cfg }
}

// WithLogger sets the owner logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *ownerOptions) { o.logger = l }
}

// WithLoggerAdapter routes the owner's records to a Logger.
func WithLoggerAdapter(l Logger) Option {
	return func(o *ownerOptions) { o.logger = slog.New(&adapterHandler{logger: l}) }
}

// WithLogAttrs adds key/value pairs to every record logged for the owner.
func WithLogAttrs(args ...any) Option {
	return func(o *ownerOptions) { o.logAttrs = append(o.logAttrs, args...) }
}

// WithPublisher sets the metrics publisher. Without it the publisher follows
// the metrics config: DataDog when enabled, the log otherwise, none when
// metrics are off.
func WithPublisher(p Publisher) Option {
	return func(o *ownerOptions) { o.publisher = p }
}

// Init establishes the owner's storage. Calling it again discards all
// attribute state of the owner.
func (b *Base) Init(opts ...Option) error {
	o := &ownerOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.cfg == nil {
		o.cfg = config.DefaultConfig()
	}
	if err := o.cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", types.ErrConfiguration, err)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	pub, owned := o.publisher, false
	if pub == nil {
		var err error
		pub, err = NewPublisher(o.cfg, o.logger)
		if err != nil {
			return err
		}
		owned = pub != nil
	}

	ropts := []registry.Option{
		registry.WithConfig(o.cfg),
		registry.WithLogger(o.logger),
		registry.WithLogAttrs(o.logAttrs...),
	}
	if o.id != uuid.Nil {
		ropts = append(ropts, registry.WithID(o.id))
	}
	if pub != nil {
		ropts = append(ropts, registry.WithPublisher(pub))
	}
	root := registry.NewRoot(ropts...)

	b.mu.Lock()
	prev, prevOwned := b.publisher, b.ownsPub
	b.root, b.publisher, b.ownsPub = root, pub, owned
	b.mu.Unlock()

	if prevOwned && prev != nil {
		_ = prev.Close()
	}
	return nil
}

// AttrRoot returns the storage root, or nil before Init.
func (b *Base) AttrRoot() *registry.Root {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.root
}

// OwnerID returns the identity assigned at Init.
func (b *Base) OwnerID() uuid.UUID {
	if r := b.AttrRoot(); r != nil {
		return r.ID()
	}
	return uuid.Nil
}

// Logger returns the owner's logger.
func (b *Base) Logger() *slog.Logger {
	if r := b.AttrRoot(); r != nil {
		return r.Logger()
	}
	return slog.Default()
}

// Close releases a publisher created by Init.
func (b *Base) Close() error {
	b.mu.Lock()
	pub, owned := b.publisher, b.ownsPub
	b.publisher, b.ownsPub = nil, false
	b.mu.Unlock()

	if owned && pub != nil {
		return pub.Close()
	}
	return nil
}

// NewPublisher builds the publisher selected by cfg.Metrics. It returns nil
// when metrics are disabled.
func NewPublisher(cfg *Config, logger *slog.Logger) (Publisher, error) {
	if cfg == nil || !cfg.Metrics.Enabled {
		return nil, nil
	}
	if cfg.Metrics.DataDog.Enabled {
		return datadog.NewPublisher(&cfg.Metrics.DataDog, logger)
	}
	return metrics.NewLoggingPublisher(logger), nil
}

// PendingAsync returns the number of GetAsync accesses queued or running on o.
func PendingAsync(o Owner) int {
	root, err := registry.Lookup(o)
	if err != nil {
		return 0
	}
	return root.Executor().Pending()
}

// adapterHandler is a slog.Handler that forwards records to a Logger.
type adapterHandler struct {
	logger Logger
	attrs  []slog.Attr
	group  string
}

func (h *adapterHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *adapterHandler) Handle(_ context.Context, r slog.Record) error {
	args := make([]any, 0, 2*(len(h.attrs)+r.NumAttrs()))
	for _, a := range h.attrs {
		args = append(args, a.Key, a.Value.Any())
	}
	r.Attrs(func(a slog.Attr) bool {
		args = append(args, h.key(a.Key), a.Value.Any())
		return true
	})

	switch {
	case r.Level >= slog.LevelError:
		h.logger.Error(r.Message, args...)
	case r.Level >= slog.LevelWarn:
		h.logger.Warn(r.Message, args...)
	case r.Level >= slog.LevelInfo:
		h.logger.Info(r.Message, args...)
	default:
		h.logger.Debug(r.Message, args...)
	}
	return nil
}

func (h *adapterHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &adapterHandler{logger: h.logger, group: h.group}
	next.attrs = append(next.attrs, h.attrs...)
	for _, a := range attrs {
		next.attrs = append(next.attrs, slog.Attr{Key: h.key(a.Key), Value: a.Value})
	}
	return next
}

func (h *adapterHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &adapterHandler{logger: h.logger, attrs: h.attrs, group: h.key(name)}
}

func (h *adapterHandler) key(k string) string {
	if h.group == "" {
		return k
	}
	return strings.Join([]string{h.group, k}, ".")
}

var _ slog.Handler = (*adapterHandler)(nil)
