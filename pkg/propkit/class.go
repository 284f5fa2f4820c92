package propkit

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/LavishGent/propkit/internal/chain"
	"github.com/LavishGent/propkit/internal/layers"
	"github.com/LavishGent/propkit/internal/metrics"
	"github.com/LavishGent/propkit/internal/registry"
	"github.com/LavishGent/propkit/internal/types"
)

// Class binds attribute names once and offers owner-wide views over them.
type Class struct {
	name  string
	names []string
	attrs map[string]*chain.Descriptor
}

// NewClass binds every attribute under its map key. An attribute can belong
// to one class under one name only.
func NewClass(name string, attrs map[string]Attribute) (*Class, error) {
	if err := types.ValidateName(name); err != nil {
		return nil, fmt.Errorf("class: %w", err)
	}
	c := &Class{name: name, attrs: make(map[string]*chain.Descriptor, len(attrs))}
	for n, a := range attrs {
		if a == nil {
			return nil, fmt.Errorf("%w: class %s: attribute %q is nil", types.ErrConfiguration, name, n)
		}
		d := a.descriptor()
		if err := d.BindName(name, n); err != nil {
			return nil, fmt.Errorf("class %s: %w", name, err)
		}
		c.attrs[n] = d
		c.names = append(c.names, n)
	}
	sort.Strings(c.names)
	return c, nil
}

// MustClass is like NewClass but panics on error.
func MustClass(name string, attrs map[string]Attribute) *Class {
	c, err := NewClass(name, attrs)
	if err != nil {
		panic(err)
	}
	return c
}

// Name returns the class name.
func (c *Class) Name() string { return c.name }

// Names returns the attribute names in sorted order.
func (c *Class) Names() []string { return append([]string(nil), c.names...) }

func (c *Class) pick(names []string) []string {
	if len(names) == 0 {
		return c.names
	}
	return names
}

// Recall returns the cached values of the named attributes, or of all
// attributes when no names are given. Attributes without a cached value are
// left out; key-addressable attributes map to a map[any]any of their entries.
func (c *Class) Recall(o Owner, names ...string) map[string]any {
	out := make(map[string]any)
	for _, n := range c.pick(names) {
		d, ok := c.attrs[n]
		if !ok || !d.Has(KindCache) {
			continue
		}
		if !d.Keyed() {
			if v, ok, err := layers.Recall(d, o, nil); err == nil && ok {
				out[n] = v
			}
			continue
		}
		keys, err := layers.CachedKeys(d, o)
		if err != nil || len(keys) == 0 {
			continue
		}
		entries := make(map[any]any, len(keys))
		for _, k := range keys {
			if v, ok, err := layers.Recall(d, o, k); err == nil && ok {
				entries[k] = v
			}
		}
		out[n] = entries
	}
	return out
}

// Report returns the statistics of every attribute with a Stats layer,
// aggregated over keys for key-addressable attributes.
func (c *Class) Report(o Owner) map[string]map[string]Summary {
	out := make(map[string]map[string]Summary)
	for _, n := range c.names {
		d := c.attrs[n]
		if !d.Has(KindStats) {
			continue
		}
		snap, err := layers.StatsSnapshot(d, o)
		if err != nil || len(snap) == 0 {
			continue
		}
		out[n] = snap
	}
	return out
}

// ClearCaches drops the cached values of every attribute on o.
func (c *Class) ClearCaches(o Owner) error {
	for _, n := range c.names {
		d := c.attrs[n]
		if !d.Has(KindCache) {
			continue
		}
		if err := layers.ClearCache(d, o); err != nil {
			return err
		}
	}
	return nil
}

// NewReporter creates a reporter that publishes o's statistics as gauges
// every interval. It needs an owner initialized with a metrics publisher.
func (c *Class) NewReporter(o Owner, interval time.Duration) (*Reporter, error) {
	root, err := registry.Lookup(o)
	if err != nil {
		return nil, err
	}
	if root.Publisher() == nil {
		return nil, fmt.Errorf("%w: owner of class %s has no metrics publisher", types.ErrConfiguration, c.name)
	}
	ownerTag := metrics.OwnerTag(root.ID().String())
	classTag := metrics.ClassTag(c.name)

	collect := func() []metrics.Sample {
		var samples []metrics.Sample
		for attr, snap := range c.Report(o) {
			for stat, s := range snap {
				tags := []string{classTag, ownerTag, metrics.AttrTag(attr), metrics.StatTag(stat)}
				samples = append(samples,
					metrics.Sample{Name: "attribute.count", Value: float64(s.Count), Tags: tags},
					metrics.Sample{Name: "attribute.mean_ms", Value: ms(s.Mean), Tags: tags},
					metrics.Sample{Name: "attribute.max_ms", Value: ms(s.Max), Tags: tags},
					metrics.Sample{Name: "attribute.std_ms", Value: ms(s.Std), Tags: tags},
				)
			}
		}
		return samples
	}
	return metrics.NewReporter(root.Publisher(), interval, collect, root.Logger()), nil
}

// StartReporter creates a reporter and starts it until ctx is done.
func (c *Class) StartReporter(ctx context.Context, o Owner, interval time.Duration) (*Reporter, error) {
	r, err := c.NewReporter(o, interval)
	if err != nil {
		return nil, err
	}
	r.Start(ctx)
	return r, nil
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
