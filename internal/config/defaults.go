package config

import "time"

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:      "debug",
			ErrorLevel: "error",
			LogValues:  true,
		},
		Cache: CacheConfig{
			DefaultTTL:         0,
			MaxSizeMB:          64,
			Shards:             16,
			MaxEntrySize:       512,
			MaxEntriesInWindow: 1024,
		},
		Lock: LockConfig{
			Timeout: 0,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:             true,
			FailureThreshold:    5,
			SuccessThreshold:    2,
			OpenDuration:        30 * time.Second,
			HalfOpenMaxRequests: 3,
		},
		Retry: RetryConfig{
			Enabled:        false,
			MaxAttempts:    3,
			InitialBackoff: 100 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
			Multiplier:     2.0,
			Jitter:         true,
		},
		Bulkhead: BulkheadConfig{
			Enabled:        false,
			MaxConcurrent:  8,
			MaxQueue:       16,
			AcquireTimeout: 100 * time.Millisecond,
		},
		Metrics: MetricsConfig{
			Enabled:         false,
			PublishInterval: 10 * time.Second,
			DataDog: DataDogConfig{
				Enabled:   false,
				AgentHost: "127.0.0.1",
				Port:      8125,
				Prefix:    "propkit",
				Tags:      []string{},
			},
		},
		Names: NameValidationConfig{
			MaxLength:         256,
			AllowControlChars: false,
			AllowWhitespace:   false,
		},
	}
}

// ForTesting returns a minimal configuration suitable for unit tests.
func ForTesting() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:      "debug",
			ErrorLevel: "warn",
			LogValues:  true,
		},
		Cache: CacheConfig{
			DefaultTTL:         0,
			MaxSizeMB:          4,
			Shards:             4,
			MaxEntrySize:       256,
			MaxEntriesInWindow: 64,
		},
		Lock: LockConfig{
			Timeout: 0,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:             false,
			FailureThreshold:    3,
			SuccessThreshold:    1,
			OpenDuration:        1 * time.Second,
			HalfOpenMaxRequests: 1,
		},
		Retry: RetryConfig{
			Enabled:        false,
			MaxAttempts:    1,
			InitialBackoff: 10 * time.Millisecond,
			MaxBackoff:     100 * time.Millisecond,
			Multiplier:     2.0,
			Jitter:         false,
		},
		Bulkhead: BulkheadConfig{
			Enabled:        false,
			MaxConcurrent:  2,
			MaxQueue:       2,
			AcquireTimeout: 50 * time.Millisecond,
		},
		Metrics: MetricsConfig{
			Enabled:         false,
			PublishInterval: 1 * time.Second,
		},
		Names: NameValidationConfig{
			MaxLength: 256,
		},
	}
}
