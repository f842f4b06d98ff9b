package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mtgcode/mtgls/internal/lsp"
	"github.com/mtgcode/mtgls/internal/searchquery"
)

var lspMetricsAddr string

var lspCmd = &cobra.Command{
	Use:   "lsp",
	Short: "Start the Language Server Protocol server",
	Long: `Start a Language Server Protocol (LSP) server for decklists.

This enables editor features like:
- Completion for card names and advanced search parameters
- Hover with card text, images and prices
- Diagnostics and quick fixes for unknown card names
- Inline card decorations and a "Search Cards" code lens

The server communicates over stdin/stdout using JSON-RPC. Logs go to stderr.
Catalogs load in the background; requests that need them wait.

Examples:
  # Start LSP server (for editor integration)
  mtgls lsp

  # Start with debug logging to stderr
  mtgls lsp --debug

  # Expose cache and request metrics
  mtgls lsp --metrics-addr localhost:9464`,
	Args: cobra.NoArgs,
	RunE: runLSP,
}

func init() {
	rootCmd.AddCommand(lspCmd)
	lspCmd.Flags().StringVar(&lspMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
}

func runLSP(cmd *cobra.Command, args []string) error {
	registry, err := searchquery.DefaultRegistry()
	if err != nil {
		return handleError(ErrInternal, err, "")
	}
	s, err := openSession(getConfig())
	if err != nil {
		return handleError(ErrFileReadError, err, "")
	}
	defer s.Close()

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if lspMetricsAddr != "" {
		s.serveMetrics(ctx, lspMetricsAddr)
	}
	s.db.Start(ctx)

	server := lsp.NewServer(lsp.Options{
		DB:       s.db,
		Registry: registry,
		Logger:   logger,
		Version:  currentVersionInfo().Version,
		Input:    os.Stdin,
		Output:   os.Stdout,
	})
	return server.Run(ctx)
}
