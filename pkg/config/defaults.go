package config

import (
	"strings"
	"time"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and
// environment variables to fill in any missing values.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Driver-specific defaults are handled by driver factories
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyMetadataDefaults(&cfg.Metadata)
	applyCacheDefaults(&cfg.Cache)
	applyDriversDefaults(&cfg.Drivers)
	applyMetricsDefaults(&cfg.Metrics)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyMetadataDefaults sets metadata connection defaults.
func applyMetadataDefaults(cfg *MetadataConfig) {
	if cfg.Auth.Type == "" {
		cfg.Auth.Type = "simple"
	}
	// ServerURI and Tenant have no defaults: they are required and
	// validation rejects their absence.
}

// applyCacheDefaults sets driver cache defaults.
func applyCacheDefaults(cfg *CacheConfig) {
	if cfg.MaxCapacity == 0 {
		cfg.MaxCapacity = 20
	}
	if cfg.ExpireAfterAccess == 0 {
		cfg.ExpireAfterAccess = time.Hour
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = time.Minute
	}
}

// applyDriversDefaults sets driver defaults.
func applyDriversDefaults(cfg *DriversConfig) {
	if len(cfg.Enabled) == 0 {
		cfg.Enabled = []string{"file", "memory"}
	}

	// Initialize maps if nil
	if cfg.File == nil {
		cfg.File = make(map[string]any)
	}
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	// Enabled defaults to false

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":9090"
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Metadata: MetadataConfig{
			ServerURI: "http://localhost:8090",
			Tenant:    "metalake",
		},
		Drivers: DriversConfig{
			File:   make(map[string]any),
			Memory: make(map[string]any),
			S3:     make(map[string]any),
			Badger: make(map[string]any),
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
