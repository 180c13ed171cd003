// Package config provides configuration management for gridxlate commands.
package config

// Config holds the settings shared by all gridxlate commands.
type Config struct {
	Database  DatabaseConfig
	Logging   LoggingConfig
	Translate TranslateConfig
	Transfer  TransferConfig
}

// DatabaseConfig locates the time-series association store.
type DatabaseConfig struct {
	// URL is sqlite://path or postgres://user@host/db.
	URL string
}

// LoggingConfig selects logger level and encoding.
type LoggingConfig struct {
	Level  string
	Format string
}

// TranslateConfig holds defaults for the translate command.
type TranslateConfig struct {
	RulesFile     string
	Version       int
	IdentityField string
}

// TransferConfig holds defaults for the transfer command.
type TransferConfig struct {
	// Strategy is auto, attach or manual.
	Strategy string
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			URL: "sqlite://gridxlate.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Translate: TranslateConfig{
			IdentityField: "name",
		},
		Transfer: TransferConfig{
			Strategy: "auto",
		},
	}
}
