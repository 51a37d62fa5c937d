package config

import "strings"

// Default configuration values.
const (
	DefaultLogLevel  = "INFO"
	DefaultLogFormat = "text"
	DefaultLogOutput = "stdout"

	DefaultContentType   = "memory"
	DefaultDirectoryType = "memory"
)

// ApplyDefaults fills in default values for any unset configuration fields.
//
// Only zero values are replaced, so explicit settings (file or environment)
// always win. Log levels are also normalized to uppercase here so the rest
// of the system never sees mixed-case levels.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyContentDefaults(&cfg.Content)
	applyDirectoryDefaults(&cfg.Directory)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = DefaultLogLevel
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = DefaultLogFormat
	}
	if cfg.Output == "" {
		cfg.Output = DefaultLogOutput
	}
}

func applyContentDefaults(cfg *ContentConfig) {
	if cfg.Type == "" {
		cfg.Type = DefaultContentType
	}
}

func applyDirectoryDefaults(cfg *DirectoryConfig) {
	if cfg.Type == "" {
		cfg.Type = DefaultDirectoryType
	}
}
