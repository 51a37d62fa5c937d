// Package config loads and validates library configuration and builds the
// configured store backends.
//
// The package follows a factory pattern: the Config struct carries a Type
// selector plus one opaque options map per backend implementation, and only
// the map matching the selected type is decoded. Adding a new backend means
// adding a case to the factory, not reshaping the whole config.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete VaultFS configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (VAULTFS_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging"`

	// Content specifies the chunk backend type and type-specific options.
	Content ContentConfig `mapstructure:"content"`

	// Directory specifies the directory backend type and type-specific
	// options.
	Directory DirectoryConfig `mapstructure:"directory"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format.
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written.
	// Valid values: stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required"`
}

// ContentConfig specifies the chunk backend configuration.
//
// The Type field determines which backend implementation is used. Only the
// corresponding type-specific section is decoded.
type ContentConfig struct {
	// Type specifies which chunk backend to use.
	// Valid values: memory, filesystem, s3
	Type string `mapstructure:"type" validate:"required,oneof=memory filesystem s3"`

	// Filesystem contains filesystem-specific options.
	// Only used when Type = "filesystem".
	Filesystem map[string]any `mapstructure:"filesystem"`

	// Memory contains memory-specific options.
	// Only used when Type = "memory".
	Memory map[string]any `mapstructure:"memory"`

	// S3 contains S3-specific options.
	// Only used when Type = "s3".
	S3 map[string]any `mapstructure:"s3"`
}

// DirectoryConfig specifies the directory backend configuration.
//
// The Type field determines which backend implementation is used. Only the
// corresponding type-specific section is decoded.
type DirectoryConfig struct {
	// Type specifies which directory backend to use.
	// Valid values: memory, badger
	Type string `mapstructure:"type" validate:"required,oneof=memory badger"`

	// Memory contains memory-specific options.
	// Only used when Type = "memory".
	Memory map[string]any `mapstructure:"memory"`

	// Badger contains BadgerDB-specific options.
	// Only used when Type = "badger".
	Badger map[string]any `mapstructure:"badger"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses the default
//     location, and a missing file there is not an error)
//
// Returns the loaded and validated configuration.
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

// setupViper configures viper with environment variables and config file
// settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the VAULTFS_ prefix and underscores.
	// Example: VAULTFS_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("VAULTFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		// A missing config file falls back to defaults; anything else is a
		// real problem.
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, falling back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "vaultfs")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "vaultfs")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
