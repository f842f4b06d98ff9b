// Package config handles mtgls configuration: a TOML file, overridden by
// MTGLS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/mtgcode/mtgls/internal/atomicfile"
	"github.com/mtgcode/mtgls/internal/logging"
)

// EnvPrefix prefixes every environment override, e.g. MTGLS_DATA_DIR.
const EnvPrefix = "MTGLS"

// Config represents the mtgls configuration.
type Config struct {
	// DataDir holds catalog snapshots and the card cache.
	DataDir string `toml:"data_dir" envconfig:"DATA_DIR"`

	// MaxCatalogAge is how long a catalog snapshot is used without refetching.
	MaxCatalogAge time.Duration `toml:"max_catalog_age" envconfig:"MAX_CATALOG_AGE"`

	APIBaseURL        string        `toml:"api_base_url" envconfig:"API_BASE_URL"`
	RequestTimeout    time.Duration `toml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
	RequestsPerSecond float64       `toml:"requests_per_second" envconfig:"REQUESTS_PER_SECOND"`
	MaxRetries        int           `toml:"max_retries" envconfig:"MAX_RETRIES"`
	UserAgent         string        `toml:"user_agent" envconfig:"USER_AGENT"`

	// CardCache keeps fetched card records in SQLite under DataDir.
	CardCache bool `toml:"card_cache" envconfig:"CARD_CACHE"`

	LogLevel string `toml:"log_level" envconfig:"LOG_LEVEL"`

	// UI controls optional CLI theming preferences.
	UI UIConfig `toml:"ui" envconfig:"UI"`
}

// UIConfig represents optional CLI theming preferences.
type UIConfig struct {
	// Accent is an optional accent color for CLI output and markdown rendering.
	// Supported values are ANSI color codes ("0" to "255") or hex colors ("#RRGGBB").
	Accent string `toml:"accent" envconfig:"ACCENT"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir:           DefaultDataDir(),
		MaxCatalogAge:     7 * 24 * time.Hour,
		APIBaseURL:        "https://api.scryfall.com",
		RequestTimeout:    30 * time.Second,
		RequestsPerSecond: 10,
		MaxRetries:        2,
		UserAgent:         "mtgls",
		LogLevel:          "info",
	}
}

// Load reads path (DefaultPath when empty) over the defaults and applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	cfg := Default()
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// LoadFrom loads the configuration from a specific path over the defaults,
// without environment overrides.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from MTGLS_* variables that are set.
func ApplyEnv(cfg *Config) error {
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("invalid environment override: %w", err)
	}
	return nil
}

// LoadDotEnv loads variables from a .env file when it exists. Variables
// already set in the environment win.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Validate rejects values the rest of the program cannot work with.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.DataDir) == "" {
		problems = append(problems, "data_dir is empty")
	}
	if c.MaxCatalogAge <= 0 {
		problems = append(problems, "max_catalog_age must be positive")
	}
	if c.RequestTimeout <= 0 {
		problems = append(problems, "request_timeout must be positive")
	}
	if c.RequestsPerSecond < 0 {
		problems = append(problems, "requests_per_second must not be negative")
	}
	if c.MaxRetries < 0 {
		problems = append(problems, "max_retries must not be negative")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// CardCachePath is the SQLite card cache location.
func (c *Config) CardCachePath() string {
	return filepath.Join(c.DataDir, "card-cache")
}

// CatalogDir is where catalog snapshots live.
func (c *Config) CatalogDir() string {
	return filepath.Join(c.DataDir, "catalogs")
}

// DefaultDataDir returns <user cache dir>/mtgls.
func DefaultDataDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "mtgls")
	}
	return filepath.Join(".", ".mtgls")
}

// DefaultPath returns the default config file path.
// Checks ~/.config/mtgls/config.toml first (XDG style),
// then falls back to OS-specific location.
func DefaultPath() string {
	if xdgPath, err := XDGPath(); err == nil {
		if _, err := os.Stat(xdgPath); err == nil {
			return xdgPath
		}
	}

	if configDir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(configDir, "mtgls", "config.toml")
	}

	return filepath.Join(".", "config.toml")
}

// XDGPath returns the XDG-style config path (~/.config/mtgls/config.toml).
func XDGPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "mtgls", "config.toml"), nil
}

const defaultConfig = `# mtgls configuration
# Every key can be overridden with an MTGLS_* environment variable,
# e.g. MTGLS_DATA_DIR or MTGLS_LOG_LEVEL.

# Where catalog snapshots and the card cache are stored.
# data_dir = "~/.cache/mtgls"

# How long catalog snapshots are used before refetching.
# max_catalog_age = "168h"

# Remote card API.
# api_base_url = "https://api.scryfall.com"
# request_timeout = "30s"
# requests_per_second = 10
# max_retries = 2

# Keep fetched cards in a local SQLite cache.
# card_cache = false

# log_level = "info"

# Optional UI accent color for headers in terminal output.
# Supports ANSI color codes (0-255) or hex (#RRGGBB).
# [ui]
# accent = "39"
`

// CreateDefault writes a commented default config at path if nothing is
// there yet and returns the path.
func CreateDefault(path string) (string, error) {
	if path == "" {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if err := atomicfile.WriteFile(path, []byte(defaultConfig), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return path, nil
}
