// Package config loads the engine's configuration using Viper, the way
// the teacher's internal/config.Manager loads the MCP server's
// configuration: programmatic defaults, an optional YAML file, and
// environment variable overrides.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/clinlab/amrclassify/internal/domain"
)

// Manager owns a loaded EngineConfig and supports reloading it, mirroring
// the teacher's config.Manager contract.
type Manager struct {
	v      *viper.Viper
	config *domain.EngineConfig
}

// NewManager loads configuration from the default search paths plus
// environment variables prefixed AMR_CLASSIFY.
func NewManager() (*Manager, error) {
	m := &Manager{v: viper.New()}
	if err := m.load(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

func (m *Manager) load() error {
	m.v.SetConfigName("amrclassify")
	m.v.SetConfigType("yaml")
	m.v.AddConfigPath(".")
	m.v.AddConfigPath("./config")
	m.v.AddConfigPath("/etc/amrclassify/")

	m.v.SetEnvPrefix("AMR_CLASSIFY")
	m.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.v.AutomaticEnv()

	m.setDefaults()

	if err := m.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &domain.EngineConfig{}
	if err := m.v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}
	m.config = cfg
	return nil
}

func (m *Manager) setDefaults() {
	m.v.SetDefault("catalog.path", "./catalog")
	m.v.SetDefault("catalog.default_source", "EUCAST")
	m.v.SetDefault("catalog.source_fallback_order", []string{"EUCAST", "CLSI", "LOCAL"})
	m.v.SetDefault("catalog.max_file_size_bytes", 10*1024*1024)

	m.v.SetDefault("oracle.enabled", false)
	m.v.SetDefault("oracle.timeout", "2s")
	m.v.SetDefault("oracle.rate_limit_per_second", 20.0)
	m.v.SetDefault("oracle.circuit_breaker.max_requests", 3)
	m.v.SetDefault("oracle.circuit_breaker.interval", "10s")
	m.v.SetDefault("oracle.circuit_breaker.timeout", "5s")
	m.v.SetDefault("oracle.circuit_breaker.failure_threshold", 5)

	m.v.SetDefault("cache.normalization_cache_size", 4096)

	m.v.SetDefault("conflict.method_precedence_enabled", true)
	m.v.SetDefault("conflict.preferred_method", "MIC")

	m.v.SetDefault("logging.level", "info")
	m.v.SetDefault("logging.format", "json")
}

// Config returns the currently loaded configuration.
func (m *Manager) Config() *domain.EngineConfig {
	return m.config
}

// Reload re-reads configuration from disk and environment.
func (m *Manager) Reload() error {
	return m.load()
}

// Validate checks the configuration for internally inconsistent
// values, collecting every problem rather than stopping at the first
// (matching the catalog store's validation contract, spec §4.1).
func (m *Manager) Validate() error {
	cfg := m.config
	var problems []string

	if cfg.Catalog.Path == "" {
		problems = append(problems, "catalog.path is required")
	}
	if cfg.Catalog.MaxFileSizeBytes <= 0 {
		problems = append(problems, "catalog.max_file_size_bytes must be positive")
	}
	if cfg.Oracle.Enabled && cfg.Oracle.Timeout <= 0 {
		problems = append(problems, "oracle.timeout must be positive when oracle.enabled is true")
	}
	if cfg.Cache.NormalizationCacheSize <= 0 {
		problems = append(problems, "cache.normalization_cache_size must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
