package metrics

import (
	"time"

	"github.com/LavishGent/propkit/internal/types"
)

// Timer measures one access. The metric name is chosen when it stops, once
// the outcome is known.
type Timer struct {
	publisher types.Publisher
	tags      []string
	start     time.Time
}

// NewTimer starts a timer. publisher may be nil.
func NewTimer(publisher types.Publisher, tags ...string) *Timer {
	return &Timer{
		publisher: publisher,
		tags:      tags,
		start:     time.Now(),
	}
}

// Stop returns the elapsed time and publishes it as name when a publisher is set.
func (t *Timer) Stop(name string, tags ...string) time.Duration {
	d := time.Since(t.start)
	if t.publisher != nil {
		t.publisher.Timing(name, d, MergeTags(t.tags, tags)...)
	}
	return d
}

// Elapsed returns the time since the timer started.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}
