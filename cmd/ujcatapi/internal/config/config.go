// Package config provides configuration management for ujcatapi.
// Configuration is read from an optional YAML file with centralized defaults.
// Every key can be overridden by an environment variable named after it,
// e.g. UJCATAPI_SERVER_PORT for server.port.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"

	"github.com/ujcatapi/ujcatapi/cmd/ujcatapi/internal/constants"
)

const (
	// VersionString is the released version of the service.
	VersionString = "1.8.8"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "UJCATAPI"
)

// Version returns the service version.
func Version() string {
	return VersionString
}

// Defaults contains all default configuration values
// centralized in one place to avoid hardcoded literals
var Defaults = struct {
	Server struct {
		Port int
		Host string
	}
	Logging struct {
		Level           string
		Format          string
		Path            string
		RedactSensitive bool
	}
	Sentry struct {
		Enabled    bool
		SampleRate float64
	}
	CORS struct {
		AllowedOriginsRegexps []string
	}
	ConfigPath string
}{
	Server: struct {
		Port int
		Host string
	}{
		Port: 8000,
		Host: "0.0.0.0",
	},
	Logging: struct {
		Level           string
		Format          string
		Path            string
		RedactSensitive bool
	}{
		Level:           "info",
		Format:          "json",
		Path:            "", // stdout only
		RedactSensitive: true,
	},
	Sentry: struct {
		Enabled    bool
		SampleRate float64
	}{
		Enabled:    false,
		SampleRate: 1.0,
	},
	CORS: struct {
		AllowedOriginsRegexps []string
	}{
		AllowedOriginsRegexps: []string{`http://localhost[^\.]*$`},
	},
	ConfigPath: constants.DefaultConfigPath,
}

// legacyEnv lists environment variable names still honored for some keys,
// checked after the UJCATAPI_ form.
var legacyEnv = map[string][]string{
	"environment":         {"ENVIRONMENT"},
	"sentry.enabled":      {"ENABLE_SENTRY"},
	"sentry.dsn":          {"SENTRY_DSN"},
	"features.enable_foo": {"ENABLE_FOO"},
	"features.enable_bar": {"ENABLE_BAR"},
}

var (
	validLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validFormats = map[string]bool{"json": true, "console": true, "simple": true}
)

// AppConfig holds the application configuration.
// It is designed to be immutable after initialization.
type AppConfig struct {
	Server      ServerConfig   `mapstructure:"server"`
	Logging     LoggingConfig  `mapstructure:"logging"`
	Sentry      SentryConfig   `mapstructure:"sentry"`
	Environment string         `mapstructure:"environment"`
	Features    FeaturesConfig `mapstructure:"features"`
	CORS        CORSConfig     `mapstructure:"cors"`
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level                     string   `mapstructure:"level"`                       // debug, info, warn, error
	Format                    string   `mapstructure:"format"`                      // json, console, simple
	Path                      string   `mapstructure:"path"`                        // log directory path, empty for stdout only
	RedactSensitive           bool     `mapstructure:"redact_sensitive"`            // redact sensitive data in logs
	AdditionalSensitiveFields []string `mapstructure:"additional_sensitive_fields"` // additional fields to redact
}

// SentryConfig holds error-reporting configuration.
type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"` // defaults to the top-level environment
	Release     string  `mapstructure:"release"`     // defaults to the service version
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// FeaturesConfig holds feature flags.
type FeaturesConfig struct {
	EnableFoo bool `mapstructure:"enable_foo"`
	EnableBar bool `mapstructure:"enable_bar"`
}

// Flags returns the feature flags keyed by their public names.
func (f FeaturesConfig) Flags() map[string]bool {
	return map[string]bool{
		"ENABLE_FOO": f.EnableFoo,
		"ENABLE_BAR": f.EnableBar,
	}
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOriginsRegexps []string `mapstructure:"allowed_origins_regexps"`
}

var globalConfig *AppConfig

// Load initializes and loads the application configuration.
// A missing file at the default path is not an error; a missing file at an
// explicit path is.
func Load(configPath string) (*AppConfig, error) {
	v := viper.New()

	v.SetDefault("server.port", Defaults.Server.Port)
	v.SetDefault("server.host", Defaults.Server.Host)
	v.SetDefault("logging.level", Defaults.Logging.Level)
	v.SetDefault("logging.format", Defaults.Logging.Format)
	v.SetDefault("logging.path", Defaults.Logging.Path)
	v.SetDefault("logging.redact_sensitive", Defaults.Logging.RedactSensitive)
	v.SetDefault("logging.additional_sensitive_fields", []string{})
	v.SetDefault("sentry.enabled", Defaults.Sentry.Enabled)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "")
	v.SetDefault("sentry.release", "")
	v.SetDefault("sentry.sample_rate", Defaults.Sentry.SampleRate)
	v.SetDefault("environment", "")
	v.SetDefault("features.enable_foo", false)
	v.SetDefault("features.enable_bar", false)
	v.SetDefault("cors.allowed_origins_regexps", Defaults.CORS.AllowedOriginsRegexps)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range legacyEnv {
		envNames := append([]string{EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := v.BindEnv(append([]string{key}, envNames...)...); err != nil {
			return nil, fmt.Errorf("failed to bind environment for %s: %w", key, err)
		}
	}

	v.SetConfigType("yaml")

	path := configPath
	if path == "" {
		path = Defaults.ConfigPath
	}

	// The default file is optional; an explicit one is not.
	if configPath != "" || fileExists(path) {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file not found: %s", path)
			}
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	globalConfig = &cfg

	return &cfg, nil
}

// validate checks the configuration and fills derived values.
func validate(cfg *AppConfig) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = Defaults.Server.Host
	}

	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid logging level '%s', must be one of: debug, info, warn, error", cfg.Logging.Level)
	}
	cfg.Logging.Format = strings.ToLower(cfg.Logging.Format)
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("invalid logging format '%s', must be one of: json, console, simple", cfg.Logging.Format)
	}
	cfg.Logging.AdditionalSensitiveFields = trimNonEmpty(cfg.Logging.AdditionalSensitiveFields)

	if cfg.Sentry.Enabled && cfg.Sentry.DSN == "" {
		return fmt.Errorf("sentry.dsn is required when sentry is enabled")
	}
	if cfg.Sentry.SampleRate < 0 || cfg.Sentry.SampleRate > 1 {
		return fmt.Errorf("sentry.sample_rate must be between 0 and 1, got %v", cfg.Sentry.SampleRate)
	}
	if cfg.Sentry.Environment == "" {
		cfg.Sentry.Environment = cfg.Environment
	}
	if cfg.Sentry.Release == "" {
		cfg.Sentry.Release = Version()
	}

	cfg.CORS.AllowedOriginsRegexps = trimNonEmpty(cfg.CORS.AllowedOriginsRegexps)
	for i, expr := range cfg.CORS.AllowedOriginsRegexps {
		if _, err := regexp.Compile(expr); err != nil {
			return fmt.Errorf("cors.allowed_origins_regexps[%d]: %w", i, err)
		}
	}

	return nil
}

// trimNonEmpty trims each element and drops empty ones, so that a
// comma-separated environment value like "a, b," yields [a b].
func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Get returns the global configuration instance.
// This is thread-safe as the config is immutable after Load().
func Get() *AppConfig {
	if globalConfig == nil {
		panic("configuration not loaded - call config.Load() first")
	}
	return globalConfig
}

// fileExists reports whether path names an existing regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
