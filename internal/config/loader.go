package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a JSON or YAML file. Files ending in .yaml or
// .yml are parsed as YAML. If the file doesn't exist, returns default configuration.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWithEnv loads configuration from a file and applies environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

//nolint:gocyclo // Environment variable parsing requires many conditional checks
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PROPKIT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PROPKIT_LOG_ERROR_LEVEL"); v != "" {
		cfg.Logging.ErrorLevel = v
	}
	if v := os.Getenv("PROPKIT_LOG_VALUES"); v != "" {
		cfg.Logging.LogValues = parseBool(v)
	}

	if v := os.Getenv("PROPKIT_CACHE_DEFAULT_TTL"); v != "" {
		cfg.Cache.DefaultTTL = parseDuration(v, cfg.Cache.DefaultTTL)
	}
	if v := os.Getenv("PROPKIT_CACHE_MAX_SIZE_MB"); v != "" {
		cfg.Cache.MaxSizeMB = parseInt(v, cfg.Cache.MaxSizeMB)
	}
	if v := os.Getenv("PROPKIT_CACHE_SHARDS"); v != "" {
		cfg.Cache.Shards = parseInt(v, cfg.Cache.Shards)
	}

	if v := os.Getenv("PROPKIT_LOCK_TIMEOUT"); v != "" {
		cfg.Lock.Timeout = parseDuration(v, cfg.Lock.Timeout)
	}

	if v := os.Getenv("PROPKIT_CIRCUIT_BREAKER_ENABLED"); v != "" {
		cfg.CircuitBreaker.Enabled = parseBool(v)
	}
	if v := os.Getenv("PROPKIT_CIRCUIT_BREAKER_FAILURE_THRESHOLD"); v != "" {
		cfg.CircuitBreaker.FailureThreshold = parseInt(v, cfg.CircuitBreaker.FailureThreshold)
	}
	if v := os.Getenv("PROPKIT_CIRCUIT_BREAKER_OPEN_DURATION"); v != "" {
		cfg.CircuitBreaker.OpenDuration = parseDuration(v, cfg.CircuitBreaker.OpenDuration)
	}

	if v := os.Getenv("PROPKIT_RETRY_ENABLED"); v != "" {
		cfg.Retry.Enabled = parseBool(v)
	}
	if v := os.Getenv("PROPKIT_RETRY_MAX_ATTEMPTS"); v != "" {
		cfg.Retry.MaxAttempts = parseInt(v, cfg.Retry.MaxAttempts)
	}

	if v := os.Getenv("PROPKIT_BULKHEAD_ENABLED"); v != "" {
		cfg.Bulkhead.Enabled = parseBool(v)
	}
	if v := os.Getenv("PROPKIT_BULKHEAD_MAX_CONCURRENT"); v != "" {
		cfg.Bulkhead.MaxConcurrent = parseInt(v, cfg.Bulkhead.MaxConcurrent)
	}

	if v := os.Getenv("PROPKIT_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}

	if v := os.Getenv("DD_AGENT_HOST"); v != "" {
		cfg.Metrics.DataDog.AgentHost = v
		cfg.Metrics.DataDog.Enabled = true
	}
	if v := os.Getenv("DD_DOGSTATSD_PORT"); v != "" {
		cfg.Metrics.DataDog.Port = parseInt(v, cfg.Metrics.DataDog.Port)
	}
	if v := os.Getenv("DD_SERVICE"); v != "" {
		cfg.Metrics.DataDog.Prefix = v
	}
	if v := os.Getenv("DD_ENV"); v != "" {
		cfg.Metrics.DataDog.Tags = append(cfg.Metrics.DataDog.Tags, "env:"+v)
	}
	if v := os.Getenv("DD_VERSION"); v != "" {
		cfg.Metrics.DataDog.Tags = append(cfg.Metrics.DataDog.Tags, "version:"+v)
	}

	if v := os.Getenv("PROPKIT_DATADOG_ENABLED"); v != "" {
		if os.Getenv("DD_AGENT_HOST") == "" {
			cfg.Metrics.DataDog.Enabled = parseBool(v)
		}
	}
	if v := os.Getenv("PROPKIT_DATADOG_PREFIX"); v != "" {
		if os.Getenv("DD_SERVICE") == "" {
			cfg.Metrics.DataDog.Prefix = v
		}
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if _, err := ParseLevel(c.Logging.ErrorLevel); err != nil {
		return fmt.Errorf("logging.errorLevel: %w", err)
	}

	if c.Cache.DefaultTTL < 0 {
		return fmt.Errorf("cache.defaultTTL must not be negative")
	}
	if c.Cache.MaxSizeMB <= 0 {
		return fmt.Errorf("cache.maxSizeMB must be positive")
	}
	if c.Cache.Shards <= 0 || (c.Cache.Shards&(c.Cache.Shards-1)) != 0 {
		return fmt.Errorf("cache.shards must be a positive power of 2")
	}
	if c.Cache.MaxEntrySize <= 0 {
		return fmt.Errorf("cache.maxEntrySize must be positive")
	}

	if c.Lock.Timeout < 0 {
		return fmt.Errorf("lock.timeout must not be negative")
	}

	if c.CircuitBreaker.Enabled {
		if c.CircuitBreaker.FailureThreshold <= 0 {
			return fmt.Errorf("circuitBreaker.failureThreshold must be positive")
		}
		if c.CircuitBreaker.OpenDuration <= 0 {
			return fmt.Errorf("circuitBreaker.openDuration must be positive")
		}
	}

	if c.Retry.Enabled {
		if c.Retry.MaxAttempts <= 0 {
			return fmt.Errorf("retry.maxAttempts must be positive")
		}
	}

	if c.Bulkhead.Enabled {
		if c.Bulkhead.MaxConcurrent <= 0 {
			return fmt.Errorf("bulkhead.maxConcurrent must be positive")
		}
	}

	if c.Metrics.DataDog.Enabled {
		if c.Metrics.DataDog.AgentHost == "" {
			return fmt.Errorf("metrics.datadog.agentHost is required when datadog is enabled")
		}
		if c.Metrics.DataDog.Port <= 0 {
			return fmt.Errorf("metrics.datadog.port must be positive")
		}
	}

	return nil
}

// ParseLevel converts a level name to an slog.Level. An empty name is debug.
func ParseLevel(s string) (slog.Level, error) {
	if strings.TrimSpace(s) == "" {
		return slog.LevelDebug, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelDebug, fmt.Errorf("unknown level %q", s)
	}
	return level, nil
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

func parseInt(s string, defaultVal int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return defaultVal
	}
	return v
}

func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)

	if d, err := time.ParseDuration(s); err == nil {
		return d
	}

	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(secs) * time.Second
	}

	return defaultVal
}
