package config

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/mtgcode/mtgls/internal/atomicfile"
)

// persistedConfig writes only values that differ from the defaults.
type persistedConfig struct {
	DataDir           *string              `toml:"data_dir,omitempty"`
	MaxCatalogAge     *string              `toml:"max_catalog_age,omitempty"`
	APIBaseURL        *string              `toml:"api_base_url,omitempty"`
	RequestTimeout    *string              `toml:"request_timeout,omitempty"`
	RequestsPerSecond *float64             `toml:"requests_per_second,omitempty"`
	MaxRetries        *int                 `toml:"max_retries,omitempty"`
	UserAgent         *string              `toml:"user_agent,omitempty"`
	CardCache         *bool                `toml:"card_cache,omitempty"`
	LogLevel          *string              `toml:"log_level,omitempty"`
	UI                *persistedUISettings `toml:"ui,omitempty"`
}

type persistedUISettings struct {
	Accent *string `toml:"accent,omitempty"`
}

func changed[T comparable](value, def T) *T {
	if value == def {
		return nil
	}
	return &value
}

func changedString(value, def string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || trimmed == def {
		return nil
	}
	return &trimmed
}

func changedDuration(value, def time.Duration) *string {
	if value == def || value <= 0 {
		return nil
	}
	s := value.String()
	return &s
}

// SaveTo writes the config to path atomically.
func SaveTo(path string, cfg *Config) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("config path is required")
	}
	if cfg == nil {
		cfg = Default()
	}
	def := Default()

	out := persistedConfig{
		DataDir:           changedString(cfg.DataDir, def.DataDir),
		MaxCatalogAge:     changedDuration(cfg.MaxCatalogAge, def.MaxCatalogAge),
		APIBaseURL:        changedString(cfg.APIBaseURL, def.APIBaseURL),
		RequestTimeout:    changedDuration(cfg.RequestTimeout, def.RequestTimeout),
		RequestsPerSecond: changed(cfg.RequestsPerSecond, def.RequestsPerSecond),
		MaxRetries:        changed(cfg.MaxRetries, def.MaxRetries),
		UserAgent:         changedString(cfg.UserAgent, def.UserAgent),
		CardCache:         changed(cfg.CardCache, def.CardCache),
		LogLevel:          changedString(cfg.LogLevel, def.LogLevel),
	}
	if accent := changedString(cfg.UI.Accent, ""); accent != nil {
		out.UI = &persistedUISettings{Accent: accent}
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(out); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := atomicfile.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}
