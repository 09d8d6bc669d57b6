// Package config loads, defaults and validates the FilesetFS
// configuration and builds the runtime components it describes.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (FILESETFS_*)
//  2. Configuration file (YAML)
//  3. Default values
//
// Driver Configuration Pattern:
// Each driver defines its own configuration type. The Config struct
// carries one free-form section per driver and only the sections for
// enabled drivers are decoded, so adding a driver never touches the
// top-level schema.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete FilesetFS configuration.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Metadata configures the metadata service connection
	Metadata MetadataConfig `mapstructure:"metadata"`

	// Cache configures the physical filesystem driver cache
	Cache CacheConfig `mapstructure:"cache"`

	// Drivers selects and configures the physical storage drivers
	Drivers DriversConfig `mapstructure:"drivers"`

	// Metrics configures the optional Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// MetadataConfig configures the metadata service connection.
type MetadataConfig struct {
	// ServerURI is the metadata service base URI (e.g. "http://gravitino:8090")
	ServerURI string `mapstructure:"server_uri" validate:"required"`

	// Tenant is the metalake all resolved identifiers belong to
	Tenant string `mapstructure:"tenant" validate:"required"`

	// Auth selects and configures the credential strategy
	Auth AuthConfig `mapstructure:"auth"`

	// MaxRequestsPerSecond throttles requests to the metadata service
	// (0 = unlimited)
	MaxRequestsPerSecond uint `mapstructure:"max_requests_per_second"`

	// RequestBurst is the throttle burst capacity
	RequestBurst uint `mapstructure:"request_burst"`
}

// AuthConfig selects the metadata service credential strategy.
//
// Strategy-specific fields are required only for their strategy;
// whether they are present is checked when the client connects, not
// here, so a config file can carry unused sections.
type AuthConfig struct {
	// Type is the credential strategy
	// Valid values: simple, token, keytab
	Type string `mapstructure:"type" validate:"omitempty,oneof=simple token keytab"`

	// Token is the bearer token, used when Type = "token"
	Token string `mapstructure:"token"`

	// Principal is the client principal, used when Type = "keytab"
	Principal string `mapstructure:"principal"`

	// KeytabPath is the keytab file path, used when Type = "keytab"
	KeytabPath string `mapstructure:"keytab_path"`
}

// CacheConfig bounds the physical filesystem driver cache.
type CacheConfig struct {
	// MaxCapacity is the maximum number of cached driver handles
	MaxCapacity int `mapstructure:"max_capacity" validate:"gt=0"`

	// ExpireAfterAccess evicts drivers unused for this long
	ExpireAfterAccess time.Duration `mapstructure:"expire_after_access" validate:"gt=0"`

	// SweepInterval is the period of the background eviction sweep
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"gt=0"`
}

// DriversConfig selects and configures the physical storage drivers.
//
// Enabled lists the storage schemes to register; each named scheme is
// built from its corresponding section. Only enabled sections are
// decoded.
type DriversConfig struct {
	// Enabled lists the drivers to register
	// Valid values: file, memory, s3, badger
	Enabled []string `mapstructure:"enabled" validate:"required,min=1,dive,oneof=file memory s3 badger"`

	// File contains local filesystem driver configuration
	// Only used when "file" is enabled
	File map[string]any `mapstructure:"file"`

	// Memory contains in-memory driver configuration
	// Only used when "memory" is enabled
	Memory map[string]any `mapstructure:"memory"`

	// S3 contains S3 driver configuration
	// Only used when "s3" is enabled
	S3 map[string]any `mapstructure:"s3"`

	// Badger contains BadgerDB driver configuration
	// Only used when "badger" is enabled
	Badger map[string]any `mapstructure:"badger"`
}

// MetricsConfig configures the optional Prometheus endpoint.
type MetricsConfig struct {
	// Enabled turns metrics collection on
	Enabled bool `mapstructure:"enabled"`

	// ListenAddr is the metrics HTTP listen address (e.g. ":9090")
	ListenAddr string `mapstructure:"listen_addr"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the FILESETFS_ prefix and underscores
	// Example: FILESETFS_METADATA_SERVER_URI=http://localhost:8090
	v.SetEnvPrefix("FILESETFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/filesetfs/config.yaml
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		// A missing config file is acceptable - defaults apply
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to
// the current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "filesetfs")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "filesetfs")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
