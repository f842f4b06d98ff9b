// Package cli implements the command-line interface.
package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mtgcode/mtgls/internal/config"
	"github.com/mtgcode/mtgls/internal/logging"
	"github.com/mtgcode/mtgls/internal/ui"
)

var (
	// Global flags
	configPath   string
	dataDirFlag  string
	apiBaseURL   string
	logLevelFlag string
	debugLogging bool
	envFile      string

	// Resolved values
	cfg    *config.Config
	logger = zerolog.Nop()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "mtgls",
	Short: "mtgls - Magic: The Gathering decklist tooling",
	Long: `mtgls understands Magic: The Gathering decklists.

It runs as a language server for editors (completion, hover, diagnostics
and quick fixes for card lines and "// search:" lines), and offers the same
card database on the command line: look up cards, run advanced searches,
check decklists for unknown cards and summarize a deck's mana curve.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config resolution for commands that don't need it
		switch cmd.Name() {
		case "completion", "help", "version", "config", "init", "set":
			return nil
		}
		return setup()
	},
}

// Execute runs the CLI.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil && !errors.Is(err, errReported) {
		fmt.Fprintln(os.Stderr, ui.Error(err.Error()))
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Load MTGLS_* variables from this file when it exists")
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Directory for catalog snapshots and the card cache (overrides data_dir)")
	rootCmd.PersistentFlags().StringVar(&apiBaseURL, "api-base-url", "", "Card API base URL (overrides api_base_url)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: trace, debug, info, warn, error (overrides log_level)")
	rootCmd.PersistentFlags().BoolVar(&debugLogging, "debug", false, "Enable debug logging to stderr")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format (for script use)")
}

// setup loads the configuration, applies flag overrides and builds the
// logger. Every command that touches card data runs it first.
func setup() error {
	if err := config.LoadDotEnv(envFile); err != nil {
		return handleError(ErrConfigInvalid, err, "")
	}
	loaded, err := config.Load(configPath)
	if err != nil {
		return handleError(ErrConfigInvalid, fmt.Errorf("failed to load config: %w", err), suggestionFor(ErrConfigInvalid))
	}
	applyFlagOverrides(loaded)
	if err := loaded.Validate(); err != nil {
		return handleError(ErrConfigInvalid, err, "")
	}
	cfg = loaded

	logger, err = logging.New(os.Stderr, cfg.LogLevel)
	if err != nil {
		return handleError(ErrConfigInvalid, err, "")
	}
	ui.ConfigureTheme(cfg.UI.Accent)
	return nil
}

func applyFlagOverrides(c *config.Config) {
	if v := strings.TrimSpace(dataDirFlag); v != "" {
		c.DataDir = v
	}
	if v := strings.TrimSpace(apiBaseURL); v != "" {
		c.APIBaseURL = v
	}
	if v := strings.TrimSpace(logLevelFlag); v != "" {
		c.LogLevel = v
	}
	if debugLogging {
		c.LogLevel = "debug"
	}
}

// getConfig returns the loaded config.
func getConfig() *config.Config {
	if cfg == nil {
		return config.Default()
	}
	return cfg
}
