package cli

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mtgcode/mtgls/internal/config"
)

// configKeys maps each settable key to a parser that applies a value.
var configKeys = map[string]func(c *config.Config, value string) error{
	"data_dir": func(c *config.Config, v string) error {
		c.DataDir = v
		return nil
	},
	"max_catalog_age": func(c *config.Config, v string) error {
		return setDuration(&c.MaxCatalogAge, v)
	},
	"api_base_url": func(c *config.Config, v string) error {
		c.APIBaseURL = v
		return nil
	},
	"request_timeout": func(c *config.Config, v string) error {
		return setDuration(&c.RequestTimeout, v)
	},
	"requests_per_second": func(c *config.Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("not a number: %q", v)
		}
		c.RequestsPerSecond = f
		return nil
	},
	"max_retries": func(c *config.Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("not an integer: %q", v)
		}
		c.MaxRetries = n
		return nil
	},
	"user_agent": func(c *config.Config, v string) error {
		c.UserAgent = v
		return nil
	},
	"card_cache": func(c *config.Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("not a boolean: %q", v)
		}
		c.CardCache = b
		return nil
	},
	"log_level": func(c *config.Config, v string) error {
		c.LogLevel = v
		return nil
	},
	"ui.accent": func(c *config.Config, v string) error {
		c.UI.Accent = v
		return nil
	},
}

func setDuration(dst *time.Duration, v string) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("not a duration: %q", v)
	}
	*dst = d
	return nil
}

func configKeyNames() []string {
	names := make([]string, 0, len(configKeys))
	for name := range configKeys {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func resolvedConfigPath() string {
	if p := strings.TrimSpace(configPath); p != "" {
		return p
	}
	return config.DefaultPath()
}

func configData(path string, exists bool, c *config.Config) map[string]any {
	return map[string]any{
		"config_path":         path,
		"exists":              exists,
		"data_dir":            c.DataDir,
		"max_catalog_age":     c.MaxCatalogAge.String(),
		"api_base_url":        c.APIBaseURL,
		"request_timeout":     c.RequestTimeout.String(),
		"requests_per_second": c.RequestsPerSecond,
		"max_retries":         c.MaxRetries,
		"user_agent":          c.UserAgent,
		"card_cache":          c.CardCache,
		"log_level":           c.LogLevel,
		"ui": map[string]any{
			"accent": c.UI.Accent,
		},
	}
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	path := resolvedConfigPath()
	_, statErr := os.Stat(path)
	exists := statErr == nil

	if err := config.LoadDotEnv(envFile); err != nil {
		return handleError(ErrConfigInvalid, err, "")
	}
	c, err := config.Load(path)
	if err != nil {
		return handleError(ErrConfigInvalid, err, "")
	}
	applyFlagOverrides(c)

	data := configData(path, exists, c)
	if isJSONOutput() {
		outputSuccess(data, nil)
		return nil
	}

	if exists {
		fmt.Fprintf(stdout, "config: %s\n", path)
	} else {
		fmt.Fprintf(stdout, "config: %s (not created; run 'mtgls config init')\n", path)
	}
	for _, key := range configKeyNames() {
		value := data[key]
		if key == "ui.accent" {
			value = c.UI.Accent
		}
		fmt.Fprintf(stdout, "%s = %v\n", key, value)
	}
	return nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the resolved configuration",
	Long: `Show the configuration after the config file, MTGLS_* environment
variables and command-line flags have been applied.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a commented default config.toml if missing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		target := resolvedConfigPath()
		_, statErr := os.Stat(target)
		existed := statErr == nil
		if statErr != nil && !errors.Is(statErr, os.ErrNotExist) {
			return handleError(ErrFileReadError, statErr, "")
		}

		created, err := config.CreateDefault(target)
		if err != nil {
			return handleError(ErrFileWriteError, err, "")
		}

		if isJSONOutput() {
			outputSuccess(map[string]any{
				"config_path": created,
				"created":     !existed,
			}, nil)
			return nil
		}

		if existed {
			fmt.Fprintf(stdout, "Config already exists: %s\n", created)
		} else {
			fmt.Fprintf(stdout, "Created config: %s\n", created)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config.toml value",
	Long: `Set one config.toml value. Only values that differ from the defaults
are written back. Environment overrides are not persisted.

Keys: ` + strings.Join(configKeyNames(), ", ") + `

Examples:
  mtgls config set card_cache true
  mtgls config set max_catalog_age 72h`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := strings.TrimSpace(args[0]), strings.TrimSpace(args[1])
		apply, ok := configKeys[key]
		if !ok {
			return handleErrorMsg(ErrInvalidInput, fmt.Sprintf("unknown config key %q", key),
				"Valid keys: "+strings.Join(configKeyNames(), ", "))
		}

		path := resolvedConfigPath()
		c := config.Default()
		if _, err := os.Stat(path); err == nil {
			if c, err = config.LoadFrom(path); err != nil {
				return handleError(ErrConfigInvalid, err, "")
			}
		}

		if err := apply(c, value); err != nil {
			return handleError(ErrInvalidInput, fmt.Errorf("%s: %w", key, err), "")
		}
		if err := c.Validate(); err != nil {
			return handleError(ErrInvalidInput, err, "")
		}
		if err := config.SaveTo(path, c); err != nil {
			return handleError(ErrFileWriteError, err, "")
		}

		if isJSONOutput() {
			data := configData(path, true, c)
			data["changed"] = key
			outputSuccess(data, nil)
			return nil
		}
		fmt.Fprintf(stdout, "Updated config: %s\n", path)
		fmt.Fprintf(stdout, "%s = %s\n", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}
