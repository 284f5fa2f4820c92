// Package layers provides the capability layers composed by chain
// descriptors.
package layers

import (
	"log/slog"

	"github.com/LavishGent/propkit/internal/chain"
	"github.com/LavishGent/propkit/internal/config"
)

// Logging emits a record before and after every access.
type Logging struct {
	chain.Nop
	level    *slog.Level
	errLevel *slog.Level
	values   *bool
	logger   *slog.Logger
}

// LoggingOption configures a Logging layer.
type LoggingOption func(*Logging)

// WithLevel sets the level of success records.
func WithLevel(l slog.Level) LoggingOption {
	return func(g *Logging) { g.level = &l }
}

// WithErrorLevel sets the level of failure records.
func WithErrorLevel(l slog.Level) LoggingOption {
	return func(g *Logging) { g.errLevel = &l }
}

// WithLogValues controls whether values are included in records.
func WithLogValues(on bool) LoggingOption {
	return func(g *Logging) { g.values = &on }
}

// WithLogger replaces the owner's logger for this attribute.
func WithLogger(l *slog.Logger) LoggingOption {
	return func(g *Logging) { g.logger = l }
}

// NewLogging creates a logging layer. Unset options come from the owner's
// logging config.
func NewLogging(opts ...LoggingOption) *Logging {
	g := &Logging{}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (*Logging) Kind() chain.Kind { return chain.KindLogging }

func (g *Logging) BeforeGet(a *chain.Access) (any, bool, error) {
	g.log(a, false, "getting attribute", "op", a.Op().String())
	return nil, false, nil
}

func (g *Logging) AfterGet(a *chain.Access, v any) (any, error) {
	args := []any{"op", a.Op().String()}
	if a.Stopped() {
		args = append(args, "stopped_by", string(a.StoppedBy()))
	}
	if g.logValues(a.Config()) {
		args = append(args, "value", v)
	}
	g.log(a, false, "got attribute", args...)
	return v, nil
}

func (g *Logging) OnGetError(a *chain.Access, err error) (any, error) {
	g.log(a, true, "failed getting attribute", "op", a.Op().String(), "error", err)
	return nil, err
}

func (g *Logging) BeforeSet(a *chain.Access, v any) (any, bool, error) {
	if g.logValues(a.Config()) {
		g.log(a, false, "setting attribute", "value", v)
	} else {
		g.log(a, false, "setting attribute")
	}
	return v, false, nil
}

func (g *Logging) AfterSet(a *chain.Access, v any) error {
	msg := "attribute set"
	if a.Stopped() {
		msg = "skipped unnecessary set"
	}
	if g.logValues(a.Config()) {
		g.log(a, false, msg, "value", v)
	} else {
		g.log(a, false, msg)
	}
	return nil
}

func (g *Logging) OnSetError(a *chain.Access, err error) error {
	g.log(a, true, "failed setting attribute", "error", err)
	return err
}

func (g *Logging) log(a *chain.Access, failed bool, msg string, args ...any) {
	logger := a.Logger()
	if g.logger != nil {
		logger = g.logger.With("attr", a.Name())
		if key, ok := a.Key(); ok {
			logger = logger.With("key", key)
		}
	}
	logger.Log(a.Context(), g.levelFor(a.Config(), failed), msg, args...)
}

func (g *Logging) levelFor(cfg *config.Config, failed bool) slog.Level {
	if failed {
		if g.errLevel != nil {
			return *g.errLevel
		}
		if l, err := config.ParseLevel(cfg.Logging.ErrorLevel); err == nil && cfg.Logging.ErrorLevel != "" {
			return l
		}
		return slog.LevelError
	}
	if g.level != nil {
		return *g.level
	}
	if l, err := config.ParseLevel(cfg.Logging.Level); err == nil {
		return l
	}
	return slog.LevelDebug
}

func (g *Logging) logValues(cfg *config.Config) bool {
	if g.values != nil {
		return *g.values
	}
	return cfg.Logging.LogValues
}
