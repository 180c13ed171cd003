package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/spf13/viper"
)

var (
	validLevels     = []string{"debug", "info", "warn", "error"}
	validFormats    = []string{"json", "text"}
	validStrategies = []string{"auto", "attach", "manual"}
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence; flags are
// applied by the caller on the returned Config.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults matching DefaultConfig
	d := DefaultConfig()
	v.SetDefault("database.url", d.Database.URL)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("translate.rules_file", d.Translate.RulesFile)
	v.SetDefault("translate.version", d.Translate.Version)
	v.SetDefault("translate.identity_field", d.Translate.IdentityField)
	v.SetDefault("transfer.strategy", d.Transfer.Strategy)

	// Bind environment variables with GX_ prefix
	v.SetEnvPrefix("GX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load config file if provided
	if configPath != "" {
		if err := validateNoSecretsInConfig(configPath); err != nil {
			return nil, err
		}
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			URL: v.GetString("database.url"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
		Translate: TranslateConfig{
			RulesFile:     v.GetString("translate.rules_file"),
			Version:       v.GetInt("translate.version"),
			IdentityField: v.GetString("translate.identity_field"),
		},
		Transfer: TransferConfig{
			Strategy: v.GetString("transfer.strategy"),
		},
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks enumerated values and required settings. Commands call it
// again after applying flag overrides.
func Validate(cfg *Config) error {
	if cfg.Database.URL == "" {
		return fmt.Errorf("database.url must not be empty")
	}
	if !slices.Contains(validLevels, cfg.Logging.Level) {
		return fmt.Errorf("logging.level must be one of %v, got %q", validLevels, cfg.Logging.Level)
	}
	if !slices.Contains(validFormats, cfg.Logging.Format) {
		return fmt.Errorf("logging.format must be one of %v, got %q", validFormats, cfg.Logging.Format)
	}
	if cfg.Translate.Version < 0 {
		return fmt.Errorf("translate.version must not be negative, got %d", cfg.Translate.Version)
	}
	if cfg.Translate.IdentityField == "" {
		return fmt.Errorf("translate.identity_field must not be empty")
	}
	if !slices.Contains(validStrategies, cfg.Transfer.Strategy) {
		return fmt.Errorf("transfer.strategy must be one of %v, got %q", validStrategies, cfg.Transfer.Strategy)
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only database passwords
// (12-factor principle). Only the file's own value is checked.
func validateNoSecretsInConfig(configPath string) error {
	fv := viper.New()
	fv.SetConfigFile(configPath)
	if err := fv.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	raw := fv.GetString("database.url")
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid database.url in config file: %w", err)
	}
	if _, hasPassword := u.User.Password(); hasPassword {
		return fmt.Errorf("database passwords not allowed in config files (use GX_DATABASE_URL environment variable)")
	}
	return nil
}
