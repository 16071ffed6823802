package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/goccy/go-yaml"
)

var structValidator = validator.New()

// Load reads, defaults, and validates the configuration file. YAML files are
// recognized by extension, everything else is parsed as JSON. An empty path
// builds the config from defaults and environment overrides alone.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		switch filepath.Ext(path) {
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		default:
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyEnv overrides the fields operators usually inject through the
// environment: endpoints and credentials. A .env file loaded by main feeds
// these as well.
func applyEnv(cfg *Config) {
	if v := os.Getenv("TFTGG_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("TFTGG_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := os.Getenv("TFTGG_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TFTGG_UPSTREAM_URL"); v != "" {
		cfg.Upstream.BaseURL = v
	}
	if v := os.Getenv("TFTGG_REDIS_ADDR"); v != "" {
		ensureRedis(cfg).Addr = v
	}
	if v := os.Getenv("TFTGG_REDIS_USERNAME"); v != "" {
		ensureRedis(cfg).Username = v
	}
	if v := os.Getenv("TFTGG_REDIS_PASSWORD"); v != "" {
		ensureRedis(cfg).Password = v
	}
}

func ensureRedis(cfg *Config) *RedisConfig {
	if cfg.Cache == nil {
		cfg.Cache = &CacheConfig{}
	}
	if cfg.Cache.Redis == nil {
		cfg.Cache.Redis = &RedisConfig{}
	}
	return cfg.Cache.Redis
}

// applyDefaults sets default values for unset fields
func applyDefaults(cfg *Config) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.StatsLogInterval == 0 {
		cfg.StatsLogInterval = DefaultStatsLogInterval
	}
	if cfg.LiveStatsInterval <= 0 {
		cfg.LiveStatsInterval = DefaultLiveStatsInterval
	}

	if cfg.Upstream.Timeout == 0 {
		cfg.Upstream.Timeout = DefaultUpstreamTimeout
	}
	if cfg.Upstream.RetryEnabled == nil {
		b := DefaultRetryEnabled
		cfg.Upstream.RetryEnabled = &b
	}
	if cfg.Upstream.RetryMaxAttempts == 0 {
		cfg.Upstream.RetryMaxAttempts = DefaultRetryMaxAttempts
	}
	if cfg.Upstream.RetryWait == 0 {
		cfg.Upstream.RetryWait = DefaultRetryWait
	}
	if cfg.Upstream.Breaker == nil {
		cfg.Upstream.Breaker = &BreakerConfig{}
	}
	if cfg.Upstream.Breaker.Enabled == nil {
		b := DefaultBreakerEnabled
		cfg.Upstream.Breaker.Enabled = &b
	}
	if cfg.Upstream.Breaker.FailureThreshold == 0 {
		cfg.Upstream.Breaker.FailureThreshold = DefaultBreakerFailureThreshold
	}
	if cfg.Upstream.Breaker.RecoveryTimeout == 0 {
		cfg.Upstream.Breaker.RecoveryTimeout = DefaultBreakerRecoveryTimeout
	}

	if cfg.Cache != nil {
		if cfg.Cache.Backend == "" {
			cfg.Cache.Backend = DefaultCacheBackend
		}
		if cfg.Cache.TTL == 0 {
			cfg.Cache.TTL = DefaultCacheTTL
		}
		if cfg.Cache.Size == 0 {
			cfg.Cache.Size = DefaultCacheSize
		}
		if cfg.Cache.Backend == CacheBackendRedis {
			if cfg.Cache.Redis == nil {
				cfg.Cache.Redis = &RedisConfig{}
			}
			if cfg.Cache.Redis.Addr == "" {
				cfg.Cache.Redis.Addr = DefaultRedisAddr
			}
		}
	}

	// Batch is always materialized so the batcher can read it directly.
	if cfg.Batch == nil {
		cfg.Batch = &BatchConfig{}
	}
	if cfg.Batch.Enabled == nil {
		b := DefaultBatchEnabled
		cfg.Batch.Enabled = &b
	}
	if cfg.Batch.Window == 0 {
		cfg.Batch.Window = DefaultBatchWindow
	}
	if cfg.Batch.MaxSize == 0 {
		cfg.Batch.MaxSize = DefaultBatchMaxSize
	}
	if cfg.Batch.MinSize == 0 {
		cfg.Batch.MinSize = DefaultBatchMinSize
	}
}

// validate checks the configuration for errors
func validate(cfg *Config) error {
	if err := structValidator.Struct(cfg); err != nil {
		return err
	}

	if cfg.Batch.Window < 1 {
		return errors.New("batch.window must be at least 1ms")
	}
	if cfg.Batch.MaxSize < 1 {
		return errors.New("batch.maxSize must be positive")
	}
	if cfg.Batch.MinSize < 0 {
		return errors.New("batch.minSize must be non-negative")
	}

	if cfg.IsCacheEnabled() {
		if cfg.Cache.TTL <= 0 {
			return errors.New("cache.ttl must be positive when cache is enabled")
		}
		if cfg.Cache.Backend == CacheBackendMemory && cfg.Cache.Size <= 0 {
			return errors.New("cache.size must be positive for the memory backend")
		}
		if cfg.Cache.Backend == CacheBackendRedis && cfg.Cache.Redis.Addr == "" {
			return errors.New("cache.redis.addr is required for the redis backend")
		}
	}

	if cfg.Upstream.Timeout < 0 {
		return errors.New("upstream.timeout must be non-negative")
	}

	return nil
}
