package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mtgcode/mtgls/internal/ui"
	"github.com/mtgcode/mtgls/internal/watcher"
)

var (
	watchPattern     string
	watchDebounce    time.Duration
	watchMetricsAddr string
)

// WatchEvent is one line of `mtgls watch --json` output.
type WatchEvent struct {
	File    string  `json:"file"`
	Removed bool    `json:"removed,omitempty"`
	Cards   int     `json:"cards"`
	Issues  []Issue `json:"issues"`
}

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Watch a directory and re-check decklists as they change",
	Long: `Watch a directory for decklist changes and report unknown card names.

This runs in the foreground and checks files as they are saved.

The watcher:
- Monitors files matching --pattern (default ` + watcher.DefaultPattern + `)
- Debounces rapid changes (waits --debounce after the last change)
- Ignores .git/, .trash/ and node_modules/ directories
- Abandons a check when the file changes again before it finishes

With --json every check is printed as one JSON object per line.

Examples:
  # Watch the current directory
  mtgls watch .

  # Watch only .dek files
  mtgls watch decks --pattern "**/*.dek"`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchPattern, "pattern", watcher.DefaultPattern, "Doublestar pattern for decklists, relative to the watched directory")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 100*time.Millisecond, "Quiet period before a changed file is checked")
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openLoadedSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	if watchMetricsAddr != "" {
		s.serveMetrics(ctx, watchMetricsAddr)
	}

	var mu sync.Mutex
	report := func(ev WatchEvent) {
		mu.Lock()
		defer mu.Unlock()
		printWatchEvent(ev)
	}

	w, err := watcher.New(watcher.Config{
		Root:          args[0],
		Pattern:       watchPattern,
		DebounceDelay: watchDebounce,
		Logger:        logger,
		OnChange: func(ctx context.Context, path string) {
			cards, issues, err := checkFile(path, s.db)
			if err != nil {
				logger.Warn().Err(err).Str("path", path).Msg("check failed")
				return
			}
			// A newer change is already queued; its check reports instead.
			if ctx.Err() != nil {
				return
			}
			report(WatchEvent{File: path, Cards: cards, Issues: issues})
		},
		OnRemove: func(path string) {
			report(WatchEvent{File: path, Removed: true})
		},
	})
	if err != nil {
		return handleError(ErrInvalidInput, err, "")
	}

	if !isJSONOutput() {
		fmt.Fprintf(os.Stderr, "Watching %s for decklist changes (Ctrl+C to stop)\n", ui.FilePath(args[0]))
	}

	err = w.Start(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return handleError(ErrFileReadError, err, "")
	}
	return nil
}

func printWatchEvent(ev WatchEvent) {
	if isJSONOutput() {
		if ev.Issues == nil {
			ev.Issues = []Issue{}
		}
		outputJSONLine(Response{OK: true, Data: ev})
		return
	}

	stamp := ui.Hint(time.Now().Format("15:04:05"))
	switch {
	case ev.Removed:
		fmt.Fprintf(stdout, "%s %s removed\n", stamp, ui.FilePath(ev.File))
	case len(ev.Issues) == 0:
		fmt.Fprintf(stdout, "%s %s\n", stamp, ui.Successf("%s: %d card line(s), no unknown cards", ev.File, ev.Cards))
	default:
		fmt.Fprintf(stdout, "%s %s\n", stamp, ui.Warning(fmt.Sprintf("%s: %d unknown card(s)", ev.File, len(ev.Issues))))
		printIssues(ev.Issues)
	}
}
