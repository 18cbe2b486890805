// Package config loads and saves the application's YAML configuration.
// Configuration is read once at startup and treated as immutable.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// AuthConfig holds the OAuth application settings.
type AuthConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURI  string `yaml:"redirect_uri"`

	// CallbackTimeoutSeconds bounds how long a login waits for the browser
	// redirect. Zero means the built-in default.
	CallbackTimeoutSeconds int `yaml:"callback_timeout_seconds,omitempty"`
}

// Config is the on-disk configuration.
type Config struct {
	Auth AuthConfig `yaml:"auth"`

	// OfflineMode makes list reads come from the local database instead of
	// the API.
	OfflineMode bool `yaml:"offline_mode"`

	// CacheMaxAgeSeconds is the TTL of the in-memory API caches.
	CacheMaxAgeSeconds int `yaml:"cache_max_age_seconds"`

	LogLevel string `yaml:"log_level"`

	// DatabasePath overrides where the SQLite database lives. Empty means
	// a file next to the config.
	DatabasePath string `yaml:"database_path,omitempty"`
}

// Default returns the configuration written on first run. The OAuth client
// values are placeholders the user must replace with their registered
// AniList application.
func Default() Config {
	return Config{
		Auth: AuthConfig{
			ClientID:     "your-client-id",
			ClientSecret: "your-client-secret",
			RedirectURI:  "http://localhost:8080/callback",
		},
		OfflineMode:        false,
		CacheMaxAgeSeconds: 900,
		LogLevel:           "info",
	}
}

// Dir returns the configuration directory, created on demand.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	dir := filepath.Join(base, "anitrack")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return dir, nil
}

// Path returns the configuration file path.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the configuration from path. When the file does not exist the
// default configuration is written there and returned.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := Default()
		if err := Save(path, cfg); err != nil {
			return Config{}, err
		}
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to path, creating parent directories.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	// Credentials end up in this file, keep it private.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// CacheMaxAge returns the configured in-memory cache TTL.
func (c Config) CacheMaxAge() time.Duration {
	if c.CacheMaxAgeSeconds <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.CacheMaxAgeSeconds) * time.Second
}

// CallbackTimeout returns the configured login callback timeout, or zero
// when the default should apply.
func (c Config) CallbackTimeout() time.Duration {
	if c.Auth.CallbackTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Auth.CallbackTimeoutSeconds) * time.Second
}

// DatabaseFile returns where the SQLite database lives, creating the parent
// directory when needed.
func (c Config) DatabaseFile() (string, error) {
	if c.DatabasePath != "" {
		if err := os.MkdirAll(filepath.Dir(c.DatabasePath), 0o755); err != nil {
			return "", fmt.Errorf("create database dir: %w", err)
		}
		return c.DatabasePath, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "anitrack.db"), nil
}
