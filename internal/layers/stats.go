package layers

import (
	"github.com/LavishGent/propkit/internal/chain"
	"github.com/LavishGent/propkit/internal/metrics"
	"github.com/LavishGent/propkit/internal/registry"
	"github.com/LavishGent/propkit/internal/stats"
	"github.com/LavishGent/propkit/internal/types"
)

// SkipPolicy decides how a set stopped by an inner layer is counted.
type SkipPolicy int

const (
	// SkipIgnore records nothing for a skipped set.
	SkipIgnore SkipPolicy = iota
	// SkipCountAsSet records a skipped set as a set.
	SkipCountAsSet
	// SkipCountSeparately records a skipped set under stats.SkippedSet.
	SkipCountSeparately
)

func (p SkipPolicy) String() string {
	switch p {
	case SkipIgnore:
		return "ignore"
	case SkipCountAsSet:
		return "count_as_set"
	case SkipCountSeparately:
		return "count_separately"
	default:
		return "unknown"
	}
}

// Stats times every access and keeps running statistics per outcome.
// Keyed accesses are also aggregated per attribute.
type Stats struct {
	chain.Nop
	skipped SkipPolicy
	publish bool
}

// StatsOption configures a Stats layer.
type StatsOption func(*Stats)

// WithSkippedSets sets the policy for sets stopped by an inner layer.
func WithSkippedSets(p SkipPolicy) StatsOption {
	return func(s *Stats) { s.skipped = p }
}

// WithPublish controls whether timings go to the owner's metrics publisher.
func WithPublish(on bool) StatsOption {
	return func(s *Stats) { s.publish = on }
}

// NewStats creates a stats layer.
func NewStats(opts ...StatsOption) *Stats {
	s := &Stats{publish: true}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (*Stats) Kind() chain.Kind { return chain.KindStats }

func newTable() any { return stats.NewTable() }

func (s *Stats) start(a *chain.Access) {
	var p types.Publisher
	if s.publish {
		p = a.Publisher()
	}
	a.SetScratch(metrics.NewTimer(p, metrics.AttrTag(a.Name())))
}

func (s *Stats) record(a *chain.Access, key string) {
	timer, ok := a.Scratch().(*metrics.Timer)
	if !ok {
		return
	}
	d := timer.Stop("attribute."+key, metrics.StatTag(key))

	a.State(newTable).(*stats.Table).Record(key, d)
	if _, keyed := a.Key(); keyed {
		a.AttrState(newTable).(*stats.Table).Record(key, d)
	}
}

func (s *Stats) BeforeGet(a *chain.Access) (any, bool, error) {
	s.start(a)
	return nil, false, nil
}

func (s *Stats) AfterGet(a *chain.Access, v any) (any, error) {
	s.record(a, a.Op().StatKey(false))
	return v, nil
}

func (s *Stats) OnGetError(a *chain.Access, err error) (any, error) {
	s.record(a, a.Op().StatKey(true))
	return nil, err
}

func (s *Stats) BeforeSet(a *chain.Access, v any) (any, bool, error) {
	s.start(a)
	return v, false, nil
}

func (s *Stats) AfterSet(a *chain.Access, v any) error {
	if !a.Stopped() {
		s.record(a, stats.Set)
		return nil
	}
	switch s.skipped {
	case SkipCountAsSet:
		s.record(a, stats.Set)
	case SkipCountSeparately:
		s.record(a, stats.SkippedSet)
	}
	return nil
}

func (s *Stats) OnSetError(a *chain.Access, err error) error {
	s.record(a, stats.FailedSet)
	return err
}

// KeyStats returns the statistics of one access key. Use a nil key for plain
// attributes.
func KeyStats(d *chain.Descriptor, o registry.Owner, key any, stat string) (stats.Summary, error) {
	st, err := d.KeyState(o, chain.KindStats, key, nil)
	if err != nil || st == nil {
		return stats.Summary{}, err
	}
	return st.(*stats.Table).Get(stat), nil
}

// AttrStats returns the statistics aggregated over all keys.
func AttrStats(d *chain.Descriptor, o registry.Owner, stat string) (stats.Summary, error) {
	st, err := d.AttrState(o, chain.KindStats, nil)
	if err != nil || st == nil {
		return stats.Summary{}, err
	}
	return st.(*stats.Table).Get(stat), nil
}

// StatsSnapshot returns the aggregate table for keyed attributes and the
// plain table otherwise.
func StatsSnapshot(d *chain.Descriptor, o registry.Owner) (map[string]stats.Summary, error) {
	var st any
	var err error
	if d.Keyed() {
		st, err = d.AttrState(o, chain.KindStats, nil)
	} else {
		st, err = d.KeyState(o, chain.KindStats, nil, nil)
	}
	if err != nil || st == nil {
		return map[string]stats.Summary{}, err
	}
	return st.(*stats.Table).Snapshot(), nil
}

// ResetStats clears all statistics of the attribute on o.
func ResetStats(d *chain.Descriptor, o registry.Owner) error {
	err := d.EachKeyState(o, chain.KindStats, func(_ any, st any) {
		st.(*stats.Table).Reset()
	})
	if err != nil {
		return err
	}
	if st, _ := d.AttrState(o, chain.KindStats, nil); st != nil {
		st.(*stats.Table).Reset()
	}
	return nil
}
