// Package config provides configuration management for propkit owners.
package config

import (
	"time"

	"github.com/LavishGent/propkit/internal/types"
)

// Config contains the defaults an owner applies to its attributes.
//
//nolint:govet // Configuration struct - logical grouping prioritized over alignment
type Config struct {
	Logging        LoggingConfig        `json:"logging" yaml:"logging"`
	Cache          CacheConfig          `json:"cache" yaml:"cache"`
	Lock           LockConfig           `json:"lock" yaml:"lock"`
	Metrics        MetricsConfig        `json:"metrics" yaml:"metrics"`
	CircuitBreaker CircuitBreakerConfig `json:"circuitBreaker" yaml:"circuitBreaker"`
	Retry          RetryConfig          `json:"retry" yaml:"retry"`
	Bulkhead       BulkheadConfig       `json:"bulkhead" yaml:"bulkhead"`
	Names          NameValidationConfig `json:"names" yaml:"names"`
}

// LoggingConfig controls the records emitted by logging layers.
type LoggingConfig struct {
	// Level is used for successful access records: debug, info, warn or error.
	Level string `json:"level" yaml:"level"`
	// ErrorLevel is used for failed access records.
	ErrorLevel string `json:"errorLevel" yaml:"errorLevel"`
	// LogValues includes attribute values in records.
	LogValues bool `json:"logValues" yaml:"logValues"`
}

// CacheConfig contains defaults for cache layers.
type CacheConfig struct {
	// DefaultTTL applies to cache layers without an explicit TTL. Zero means
	// entries never expire.
	DefaultTTL         time.Duration `json:"defaultTTL" yaml:"defaultTTL"`
	MaxSizeMB          int           `json:"maxSizeMB" yaml:"maxSizeMB"`
	Shards             int           `json:"shards" yaml:"shards"`
	MaxEntrySize       int           `json:"maxEntrySize" yaml:"maxEntrySize"`
	MaxEntriesInWindow int           `json:"maxEntriesInWindow" yaml:"maxEntriesInWindow"`
}

// LockConfig contains defaults for lock layers.
type LockConfig struct {
	// Timeout bounds lock acquisition for layers without their own timeout.
	// Zero waits indefinitely.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// NameValidationConfig contains configuration for attribute name validation.
type NameValidationConfig struct {
	ReservedPrefixes  []string `json:"reservedPrefixes" yaml:"reservedPrefixes"`
	MaxLength         int      `json:"maxLength" yaml:"maxLength"`
	AllowControlChars bool     `json:"allowControlChars" yaml:"allowControlChars"`
	AllowWhitespace   bool     `json:"allowWhitespace" yaml:"allowWhitespace"`
}

// ToTypesConfig converts this config to a types.NameValidationConfig.
func (c NameValidationConfig) ToTypesConfig() types.NameValidationConfig {
	return types.NameValidationConfig{
		MaxLength:         c.MaxLength,
		AllowControlChars: c.AllowControlChars,
		AllowWhitespace:   c.AllowWhitespace,
		ReservedPrefixes:  c.ReservedPrefixes,
	}
}

// CircuitBreakerConfig contains configuration for the circuit breaker pattern.
type CircuitBreakerConfig struct {
	Enabled             bool          `json:"enabled" yaml:"enabled"`
	FailureThreshold    int           `json:"failureThreshold" yaml:"failureThreshold"`
	SuccessThreshold    int           `json:"successThreshold" yaml:"successThreshold"`
	OpenDuration        time.Duration `json:"openDuration" yaml:"openDuration"`
	HalfOpenMaxRequests int           `json:"halfOpenMaxRequests" yaml:"halfOpenMaxRequests"`
}

// RetryConfig contains configuration for the retry pattern.
type RetryConfig struct {
	InitialBackoff time.Duration `json:"initialBackoff" yaml:"initialBackoff"`
	MaxBackoff     time.Duration `json:"maxBackoff" yaml:"maxBackoff"`
	Multiplier     float64       `json:"multiplier" yaml:"multiplier"`
	MaxAttempts    int           `json:"maxAttempts" yaml:"maxAttempts"`
	Enabled        bool          `json:"enabled" yaml:"enabled"`
	Jitter         bool          `json:"jitter" yaml:"jitter"`
}

// BulkheadConfig contains configuration for the bulkhead pattern.
type BulkheadConfig struct {
	Enabled        bool          `json:"enabled" yaml:"enabled"`
	MaxConcurrent  int           `json:"maxConcurrent" yaml:"maxConcurrent"`
	MaxQueue       int           `json:"maxQueue" yaml:"maxQueue"`
	AcquireTimeout time.Duration `json:"acquireTimeout" yaml:"acquireTimeout"`
}

// MetricsConfig contains configuration for metrics publishing.
//
//nolint:govet // Small config struct - minimal alignment benefit
type MetricsConfig struct {
	PublishInterval time.Duration `json:"publishInterval" yaml:"publishInterval"`
	DataDog         DataDogConfig `json:"datadog" yaml:"datadog"`
	Enabled         bool          `json:"enabled" yaml:"enabled"`
}

// DataDogConfig contains configuration for DataDog metrics publishing.
//
//nolint:govet // Small config struct - minimal alignment benefit
type DataDogConfig struct {
	Tags      []string `json:"tags" yaml:"tags"`
	AgentHost string   `json:"agentHost" yaml:"agentHost"`
	Prefix    string   `json:"prefix" yaml:"prefix"`
	Port      int      `json:"port" yaml:"port"`
	Enabled   bool     `json:"enabled" yaml:"enabled"`
}
