// Package stats provides running timing statistics for attribute accesses.
package stats

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Keys recorded by the stats layer.
const (
	Get        = "get"
	Set        = "set"
	FailedGet  = "failed_get"
	FailedSet  = "failed_set"
	Call       = "call"
	FailedCall = "failed_call"
	SkippedSet = "skipped_set"
)

// Summary is a point-in-time view of one Running series.
type Summary struct {
	Count int64
	Last  time.Duration
	Mean  time.Duration
	Max   time.Duration
	Min   time.Duration
	Std   time.Duration
}

// Running accumulates durations with Welford's online algorithm, so the mean
// and the population standard deviation stay numerically stable without
// keeping samples. The zero value is ready to use and is not safe for
// concurrent use; Table provides locking.
type Running struct {
	count int64
	last  float64
	mean  float64
	m2    float64
	min   float64
	max   float64
}

// Add records one duration.
func (r *Running) Add(d time.Duration) {
	x := float64(d)
	r.count++
	r.last = x
	if r.count == 1 {
		r.min, r.max = x, x
	} else {
		r.min = math.Min(r.min, x)
		r.max = math.Max(r.max, x)
	}
	delta := x - r.mean
	r.mean += delta / float64(r.count)
	r.m2 = math.Max(0, r.m2+delta*(x-r.mean))
}

// Summary returns the current statistics. All fields are zero when nothing
// has been recorded.
func (r *Running) Summary() Summary {
	if r.count == 0 {
		return Summary{}
	}
	return Summary{
		Count: r.count,
		Last:  round(r.last),
		Mean:  round(r.mean),
		Max:   round(r.max),
		Min:   round(r.min),
		Std:   round(math.Sqrt(r.m2 / float64(r.count))),
	}
}

func round(ns float64) time.Duration {
	return time.Duration(math.Round(ns))
}

// Table is a concurrency-safe set of Running series keyed by operation.
type Table struct {
	mu     sync.Mutex
	series map[string]*Running
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{series: make(map[string]*Running)}
}

// Record adds a duration to the series for key.
func (t *Table) Record(key string, d time.Duration) {
	t.mu.Lock()
	r, ok := t.series[key]
	if !ok {
		r = &Running{}
		t.series[key] = r
	}
	r.Add(d)
	t.mu.Unlock()
}

// Get returns the summary for key.
func (t *Table) Get(key string) Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.series[key]; ok {
		return r.Summary()
	}
	return Summary{}
}

// Snapshot returns summaries for every recorded key.
func (t *Table) Snapshot() map[string]Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]Summary, len(t.series))
	for k, r := range t.series {
		out[k] = r.Summary()
	}
	return out
}

// Keys returns the recorded keys in sorted order.
func (t *Table) Keys() []string {
	t.mu.Lock()
	keys := make([]string, 0, len(t.series))
	for k := range t.series {
		keys = append(keys, k)
	}
	t.mu.Unlock()
	sort.Strings(keys)
	return keys
}

// Reset drops every series.
func (t *Table) Reset() {
	t.mu.Lock()
	t.series = make(map[string]*Running)
	t.mu.Unlock()
}
