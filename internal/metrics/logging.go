// Package metrics publishes attribute statistics to an external system.
package metrics

import (
	"log/slog"
	"time"

	"github.com/LavishGent/propkit/internal/types"
)

// LoggingPublisher writes metrics as debug records.
type LoggingPublisher struct {
	logger   *slog.Logger
	baseTags []string
}

// NewLoggingPublisher creates a new logging publisher.
func NewLoggingPublisher(logger *slog.Logger, baseTags ...string) *LoggingPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingPublisher{
		logger:   logger.With("component", "metrics"),
		baseTags: baseTags,
	}
}

// Gauge logs a gauge metric.
func (p *LoggingPublisher) Gauge(name string, value float64, tags ...string) {
	p.logger.Debug("gauge", "name", name, "value", value, "tags", MergeTags(p.baseTags, tags))
}

// Incr logs an increment metric.
func (p *LoggingPublisher) Incr(name string, tags ...string) {
	p.logger.Debug("incr", "name", name, "tags", MergeTags(p.baseTags, tags))
}

// Count logs a count metric.
func (p *LoggingPublisher) Count(name string, value int64, tags ...string) {
	p.logger.Debug("count", "name", name, "value", value, "tags", MergeTags(p.baseTags, tags))
}

// Histogram logs a histogram metric.
func (p *LoggingPublisher) Histogram(name string, value float64, tags ...string) {
	p.logger.Debug("histogram", "name", name, "value", value, "tags", MergeTags(p.baseTags, tags))
}

// Timing logs a timing metric.
func (p *LoggingPublisher) Timing(name string, duration time.Duration, tags ...string) {
	p.logger.Debug("timing",
		"name", name,
		"duration", duration,
		"tags", MergeTags(p.baseTags, tags),
	)
}

// Event logs an event.
func (p *LoggingPublisher) Event(title, text, alertType string, tags ...string) {
	p.logger.Info("event",
		"title", title,
		"text", text,
		"alert_type", alertType,
		"tags", MergeTags(p.baseTags, tags),
	)
}

// Close does nothing for logging publisher.
func (p *LoggingPublisher) Close() error { return nil }

var _ types.Publisher = (*LoggingPublisher)(nil)
