// Package datadog provides a DataDog StatsD metrics publisher.
package datadog

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"

	"github.com/LavishGent/propkit/internal/config"
	"github.com/LavishGent/propkit/internal/metrics"
	"github.com/LavishGent/propkit/internal/types"
)

// Publisher sends metrics to a DataDog agent.
type Publisher struct {
	client statsd.ClientInterface
	logger *slog.Logger
}

// NewPublisher creates a publisher from config. A disabled config yields a
// no-op publisher.
func NewPublisher(cfg *config.DataDogConfig, logger *slog.Logger) (types.Publisher, error) {
	if cfg == nil || !cfg.Enabled {
		return metrics.NewNoOpPublisher(), nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	addr := fmt.Sprintf("%s:%d", cfg.AgentHost, cfg.Port)
	opts := []statsd.Option{statsd.WithTags(cfg.Tags)}
	if cfg.Prefix != "" {
		opts = append(opts, statsd.WithNamespace(cfg.Prefix+"."))
	}

	client, err := statsd.New(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: statsd client: %v", types.ErrConfiguration, err)
	}

	logger.Info("DataDog publisher initialized", "address", addr, "prefix", cfg.Prefix)
	return newPublisher(client, logger), nil
}

func newPublisher(client statsd.ClientInterface, logger *slog.Logger) *Publisher {
	return &Publisher{client: client, logger: logger.With("component", "datadog")}
}

// Gauge sends a gauge metric.
func (p *Publisher) Gauge(name string, value float64, tags ...string) {
	if err := p.client.Gauge(name, value, tags, 1); err != nil {
		p.logger.Debug("failed to send gauge", "name", name, "error", err)
	}
}

// Incr sends an increment metric.
func (p *Publisher) Incr(name string, tags ...string) {
	if err := p.client.Incr(name, tags, 1); err != nil {
		p.logger.Debug("failed to send incr", "name", name, "error", err)
	}
}

// Count sends a count metric.
func (p *Publisher) Count(name string, value int64, tags ...string) {
	if err := p.client.Count(name, value, tags, 1); err != nil {
		p.logger.Debug("failed to send count", "name", name, "error", err)
	}
}

// Histogram sends a histogram metric.
func (p *Publisher) Histogram(name string, value float64, tags ...string) {
	if err := p.client.Histogram(name, value, tags, 1); err != nil {
		p.logger.Debug("failed to send histogram", "name", name, "error", err)
	}
}

// Timing sends a timing metric.
func (p *Publisher) Timing(name string, duration time.Duration, tags ...string) {
	if err := p.client.Timing(name, duration, tags, 1); err != nil {
		p.logger.Debug("failed to send timing", "name", name, "error", err)
	}
}

// Event sends a DataDog event.
func (p *Publisher) Event(title, text, alertType string, tags ...string) {
	event := &statsd.Event{
		Title:     title,
		Text:      text,
		AlertType: statsd.EventAlertType(alertType),
		Tags:      tags,
	}
	if err := p.client.Event(event); err != nil {
		p.logger.Debug("failed to send event", "title", title, "error", err)
	}
}

// Close flushes and closes the statsd client.
func (p *Publisher) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}

var _ types.Publisher = (*Publisher)(nil)
