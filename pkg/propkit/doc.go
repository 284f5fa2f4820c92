// Package propkit composes reusable capabilities onto object attributes.
//
// An attribute is defined once per type and shared by every instance. Its
// behavior is built from layers (logging, statistics, caching, locking,
// coercion, set prevention, read-once, observation) stacked around the
// underlying getter and setter. All runtime state lives on the owning
// instance, so two instances never share a cached value, a lock or a
// statistic.
//
// # Features
//
//   - Properties, dicts and methods: plain, key-addressable and callable attributes
//   - Deterministic layer order: a default ranking plus per-attribute constraints
//   - Per-instance state: every owner carries its own storage root
//   - Caching: in-process map or bigcache backend, with optional TTL
//   - Locking: blocking or context-aware, scoped per key, attribute or instance
//   - Statistics: running count, mean, max, min and std per operation
//   - Metrics: statsd publishing through DataDog or the structured log
//   - Resilience: opt-in circuit breaker, retry and bulkhead around the underlying functions
//
// # Quick Start
//
// Embed Base in the owner and initialize it:
//
//	type Motor struct {
//	    propkit.Base
//	    speed int
//	}
//
//	m := &Motor{}
//	if err := m.Init(propkit.WithConfig(propkit.DefaultConfig())); err != nil {
//	    log.Fatal(err)
//	}
//	defer m.Close()
//
// Define attributes at package level:
//
//	var Speed = propkit.Define[*Motor, int]("speed").
//	    Get(func(m *Motor) (int, error) { return m.speed, nil }).
//	    Set(func(m *Motor, v int) error { m.speed = v; return nil }).
//	    With(propkit.Stats(), propkit.Cache(), propkit.Lock()).
//	    MustBuild()
//
//	err := Speed.Set(m, 42)
//	v, err := Speed.Get(m)
//
// # Layer Order
//
// Layers run outer first on the way in and inner first on the way out. The
// default order is:
//
//	logging, stats, read_once, lock, cache, observe, prevent_set, coerce
//
// Order adds a constraint between two kinds; conflicting constraints fail
// at Build with a configuration error:
//
//	propkit.Define[*Motor, int]("speed").
//	    With(propkit.Stats(), propkit.Cache()).
//	    Order(propkit.KindCache, propkit.KindStats)
//
// With that order a cache hit no longer counts as a get.
//
// # Dicts and Methods
//
// A dict addresses values by key and keeps every layer's state per key:
//
//	var Limits = propkit.DefineDict[*Motor, string, int]("limits").
//	    Keys("min", "max").
//	    Get(readLimit).
//	    With(propkit.Cache()).
//	    MustBuild()
//
// A method memoizes and measures calls per argument:
//
//	var Torque = propkit.DefineMethod[*Motor, int, float64]("torque").
//	    Func(computeTorque).
//	    With(propkit.Stats(), propkit.Cache()).
//	    MustBuild()
//
// # Classes
//
// NewClass binds attribute names and offers owner-wide views: Recall of the
// cached values, Report of the statistics and a Reporter that publishes them
// as gauges.
//
// # Errors
//
// Every failure raised by a layer is an *AttrError carrying the attribute,
// the operation and the layer. Use the Is* helpers to classify it:
//
//	if propkit.IsLockTimeout(err) {
//	    // retry later
//	}
//
// # Configuration
//
// Config controls logging levels, the bigcache backend, the lock timeout,
// resilience and metrics. LoadConfig reads it from JSON or YAML and applies
// PROPKIT_* environment overrides. TestConfig returns settings for unit tests.
package propkit
