package propkit

import (
	"github.com/LavishGent/propkit/internal/chain"
	"github.com/LavishGent/propkit/internal/config"
	"github.com/LavishGent/propkit/internal/metrics"
	"github.com/LavishGent/propkit/internal/registry"
	"github.com/LavishGent/propkit/internal/stats"
	"github.com/LavishGent/propkit/internal/types"
)

type (
	// Owner is implemented by structs embedding Base.
	Owner = registry.Owner
	// Config is the owner configuration.
	Config = config.Config
	// Layer is one capability composed onto an attribute.
	Layer = chain.Layer
	// Kind names a capability.
	Kind = chain.Kind
	// Summary holds the running statistics of one operation.
	Summary = stats.Summary
	// Change is delivered to Observe subscribers.
	Change = types.Change
	// Codec encodes values for the bigcache backend.
	Codec = types.Codec
	// Publisher sends metrics to an external system.
	Publisher = types.Publisher
	// Logger is the minimal logging interface accepted by WithLoggerAdapter.
	Logger = types.Logger
	// Reporter periodically publishes an owner's statistics.
	Reporter = metrics.Reporter
)

const (
	KindLogging    = chain.KindLogging
	KindStats      = chain.KindStats
	KindReadOnce   = chain.KindReadOnce
	KindCache      = chain.KindCache
	KindObserve    = chain.KindObserve
	KindPreventSet = chain.KindPreventSet
	KindCoerce     = chain.KindCoerce
	KindLock       = chain.KindLock
)

// Operation keys accepted by the Stats accessors.
const (
	StatGet        = stats.Get
	StatSet        = stats.Set
	StatFailedGet  = stats.FailedGet
	StatFailedSet  = stats.FailedSet
	StatCall       = stats.Call
	StatFailedCall = stats.FailedCall
	StatSkippedSet = stats.SkippedSet
)

// DefaultConfig returns a configuration that can be modified before Init.
func DefaultConfig() *Config {
	return config.DefaultConfig()
}

// TestConfig returns a configuration suitable for unit tests.
func TestConfig() *Config {
	return config.ForTesting()
}

// LoadConfig reads a JSON or YAML config file and applies PROPKIT_* and DD_*
// environment overrides.
func LoadConfig(path string) (*Config, error) {
	return config.LoadWithEnv(path)
}
