package config

import (
	"fmt"
	"time"
)

// CacheBackend selects the cache implementation.
type CacheBackend string

const (
	CacheBackendMemory CacheBackend = "memory"
	CacheBackendRedis  CacheBackend = "redis"
	CacheBackendNone   CacheBackend = "none"
)

// Config represents the main configuration structure
type Config struct {
	Host              string         `json:"host" yaml:"host"`
	Port              int            `json:"port" yaml:"port" validate:"min=0,max=65535"`
	LogLevel          string         `json:"logLevel" yaml:"logLevel" validate:"omitempty,oneof=trace debug info warn error"`
	StatsLogInterval  int            `json:"statsLogInterval" yaml:"statsLogInterval"`   // ms, negative disables the periodic stats log
	LiveStatsInterval int            `json:"liveStatsInterval" yaml:"liveStatsInterval"` // ms between websocket stats pushes
	Upstream          UpstreamConfig `json:"upstream" yaml:"upstream"`
	Cache             *CacheConfig   `json:"cache,omitempty" yaml:"cache,omitempty"`
	Batch             *BatchConfig   `json:"batch,omitempty" yaml:"batch,omitempty"`
	Plugins           *PluginConfig  `json:"plugins,omitempty" yaml:"plugins,omitempty"`
}

// UpstreamConfig describes the data service this gateway fronts.
type UpstreamConfig struct {
	BaseURL          string         `json:"baseUrl" yaml:"baseUrl" validate:"required,url"`
	Timeout          int            `json:"timeout" yaml:"timeout"` // ms
	RetryEnabled     *bool          `json:"retryEnabled" yaml:"retryEnabled"`
	RetryMaxAttempts int            `json:"retryMaxAttempts" yaml:"retryMaxAttempts" validate:"min=0"`
	RetryWait        int            `json:"retryWait" yaml:"retryWait"` // ms
	Breaker          *BreakerConfig `json:"breaker,omitempty" yaml:"breaker,omitempty"`
}

// BreakerConfig controls the circuit breaker in front of the upstream.
type BreakerConfig struct {
	Enabled          *bool `json:"enabled" yaml:"enabled"`
	FailureThreshold int   `json:"failureThreshold" yaml:"failureThreshold" validate:"min=0"`
	RecoveryTimeout  int   `json:"recoveryTimeout" yaml:"recoveryTimeout"` // ms
}

// CacheConfig represents cache configuration
type CacheConfig struct {
	Enabled bool         `json:"enabled" yaml:"enabled"`
	Backend CacheBackend `json:"backend" yaml:"backend" validate:"omitempty,oneof=memory redis none"`
	TTL     int          `json:"ttl" yaml:"ttl"`   // seconds
	Size    int          `json:"size" yaml:"size"` // number of entries (memory backend)
	Redis   *RedisConfig `json:"redis,omitempty" yaml:"redis,omitempty"`
}

// RedisConfig carries connection settings for the redis cache backend.
type RedisConfig struct {
	Addr      string `json:"addr" yaml:"addr"`
	Username  string `json:"username" yaml:"username"`
	Password  string `json:"password" yaml:"password"`
	DB        int    `json:"db" yaml:"db"`
	KeyPrefix string `json:"keyPrefix" yaml:"keyPrefix"`
}

// BatchConfig represents batching configuration
type BatchConfig struct {
	Enabled            *bool    `json:"enabled" yaml:"enabled"`
	Window             int      `json:"window" yaml:"window"`   // ms, measured from the first member's arrival
	MaxSize            int      `json:"maxSize" yaml:"maxSize"` // member count that forces an immediate drain
	MinSize            int      `json:"minSize" yaml:"minSize"` // retained for config compatibility; dispatch never consults it
	DisabledOperations []string `json:"disabledOperations" yaml:"disabledOperations"`
}

// PluginConfig represents plugin configuration
type PluginConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Directory string `json:"directory" yaml:"directory"` // path to plugins directory
	Timeout   int    `json:"timeout" yaml:"timeout"`     // execution timeout in milliseconds
}

// Default values
const (
	DefaultHost              = "localhost"
	DefaultPort              = 8090
	DefaultLogLevel          = "info"
	DefaultStatsLogInterval  = 60000 // ms - interval for logging gateway statistics
	DefaultLiveStatsInterval = 1000  // ms - interval between websocket stats pushes

	DefaultUpstreamTimeout  = 10000 // ms
	DefaultRetryEnabled     = true
	DefaultRetryMaxAttempts = 3
	DefaultRetryWait        = 250 // ms

	DefaultBreakerEnabled          = true
	DefaultBreakerFailureThreshold = 5
	DefaultBreakerRecoveryTimeout  = 30000 // ms

	DefaultCacheBackend = CacheBackendMemory
	DefaultCacheTTL     = 600 // seconds
	DefaultCacheSize    = 10000
	DefaultRedisAddr    = "localhost:6379"

	DefaultBatchEnabled = true
	DefaultBatchWindow  = 50 // ms
	DefaultBatchMaxSize = 10
	DefaultBatchMinSize = 2

	DefaultPluginDirectory = "./plugins"
	DefaultPluginTimeout   = 30000 // ms - default plugin execution timeout
)

// ListenAddr returns the host:port the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetStatsLogIntervalDuration returns stats log interval as time.Duration
func (c *Config) GetStatsLogIntervalDuration() time.Duration {
	return time.Duration(c.StatsLogInterval) * time.Millisecond
}

// GetLiveStatsIntervalDuration returns the websocket push interval as time.Duration
func (c *Config) GetLiveStatsIntervalDuration() time.Duration {
	return time.Duration(c.LiveStatsInterval) * time.Millisecond
}

// IsCacheEnabled returns true if cache is configured and enabled
func (c *Config) IsCacheEnabled() bool {
	return c.Cache != nil && c.Cache.Enabled && c.Cache.Backend != CacheBackendNone
}

// IsBatchingEnabled returns true unless batching was explicitly switched off
func (c *Config) IsBatchingEnabled() bool {
	return c.Batch == nil || c.Batch.Enabled == nil || *c.Batch.Enabled
}

// IsPluginsEnabled returns true if plugins are configured and enabled
func (c *Config) IsPluginsEnabled() bool {
	return c.Plugins != nil && c.Plugins.Enabled
}

// GetPluginDirectory returns the plugins directory path
func (c *Config) GetPluginDirectory() string {
	if c.Plugins == nil || c.Plugins.Directory == "" {
		return DefaultPluginDirectory
	}
	return c.Plugins.Directory
}

// GetPluginTimeoutDuration returns plugin timeout as time.Duration
func (c *Config) GetPluginTimeoutDuration() time.Duration {
	if c.Plugins == nil || c.Plugins.Timeout == 0 {
		return time.Duration(DefaultPluginTimeout) * time.Millisecond
	}
	return time.Duration(c.Plugins.Timeout) * time.Millisecond
}

// GetTimeoutDuration returns the upstream request timeout as time.Duration
func (c *UpstreamConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

// GetRetryWaitDuration returns the wait between retry attempts as time.Duration
func (c *UpstreamConfig) GetRetryWaitDuration() time.Duration {
	return time.Duration(c.RetryWait) * time.Millisecond
}

// IsRetryEnabled returns true unless retries were explicitly switched off
func (c *UpstreamConfig) IsRetryEnabled() bool {
	return c.RetryEnabled == nil || *c.RetryEnabled
}

// IsBreakerEnabled returns true unless the breaker was explicitly switched off
func (c *UpstreamConfig) IsBreakerEnabled() bool {
	return c.Breaker == nil || c.Breaker.Enabled == nil || *c.Breaker.Enabled
}

// GetRecoveryTimeoutDuration returns the open-state hold time as time.Duration
func (c *BreakerConfig) GetRecoveryTimeoutDuration() time.Duration {
	return time.Duration(c.RecoveryTimeout) * time.Millisecond
}

// GetTTLDuration returns cache TTL as time.Duration
func (c *CacheConfig) GetTTLDuration() time.Duration {
	return time.Duration(c.TTL) * time.Second
}

// GetWindowDuration returns the batch window as time.Duration
func (c *BatchConfig) GetWindowDuration() time.Duration {
	return time.Duration(c.Window) * time.Millisecond
}
