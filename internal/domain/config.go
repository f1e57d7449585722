package domain

import "time"

// EngineConfig is the complete configuration for one engine instance,
// mirroring the teacher's Config/ServerConfig split: a typed struct
// with `mapstructure` tags unmarshaled from viper (spec §9 "ambient
// stack", internal/config package).
type EngineConfig struct {
	Catalog     CatalogConfig     `mapstructure:"catalog"`
	Oracle      OracleConfig      `mapstructure:"oracle"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Conflict    ConflictConfig    `mapstructure:"conflict"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// CatalogConfig controls where the rule catalog is loaded from and the
// default breakpoint source preference (spec §4.1, §4.7).
type CatalogConfig struct {
	Path                string   `mapstructure:"path"`
	DefaultSource       string   `mapstructure:"default_source"`
	SourceFallbackOrder []string `mapstructure:"source_fallback_order"`
	MaxFileSizeBytes    int64    `mapstructure:"max_file_size_bytes"`
}

// OracleConfig controls the optional external terminology oracle
// (spec §4.2, §5, §6).
type OracleConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RateLimitPerSecond float64      `mapstructure:"rate_limit_per_second"`
	CircuitBreaker    CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// CircuitBreakerConfig mirrors the teacher's external-API circuit
// breaker configuration (pkg/external), applied here to the
// terminology oracle instead of gene APIs.
type CircuitBreakerConfig struct {
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
}

// CacheConfig bounds the in-process normalization cache (spec §5
// "Resource bounds").
type CacheConfig struct {
	NormalizationCacheSize int `mapstructure:"normalization_cache_size"`
}

// ConflictConfig holds method-precedence settings loaded with the
// engine configuration (spec §4.8, Open Question #4). The engine does
// not read it: conflict resolution uses the catalog snapshot's policy.
type ConflictConfig struct {
	MethodPrecedenceEnabled bool   `mapstructure:"method_precedence_enabled"`
	PreferredMethod         string `mapstructure:"preferred_method"`
}

// LoggingConfig mirrors the teacher's LoggingConfig.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
