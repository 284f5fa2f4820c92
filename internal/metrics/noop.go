package metrics

import (
	"time"

	"github.com/LavishGent/propkit/internal/types"
)

// NoOpPublisher discards everything. Used when metrics are disabled.
type NoOpPublisher struct{}

// NewNoOpPublisher creates a new no-op publisher.
func NewNoOpPublisher() *NoOpPublisher { return &NoOpPublisher{} }

// Gauge does nothing.
func (*NoOpPublisher) Gauge(string, float64, ...string) {}

// Incr does nothing.
func (*NoOpPublisher) Incr(string, ...string) {}

// Count does nothing.
func (*NoOpPublisher) Count(string, int64, ...string) {}

// Histogram does nothing.
func (*NoOpPublisher) Histogram(string, float64, ...string) {}

// Timing does nothing.
func (*NoOpPublisher) Timing(string, time.Duration, ...string) {}

// Event does nothing.
func (*NoOpPublisher) Event(string, string, string, ...string) {}

// Close does nothing.
func (*NoOpPublisher) Close() error { return nil }

var _ types.Publisher = (*NoOpPublisher)(nil)
