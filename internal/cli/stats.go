package cli

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/mtgcode/mtgls/internal/deck"
	"github.com/mtgcode/mtgls/internal/ui"
)

// StatsResult is the JSON payload of `mtgls stats`.
type StatsResult struct {
	File string `json:"file"`
	deck.Stats
	UnresolvedNames []string `json:"unresolved_names,omitempty"`
}

var statsCmd = &cobra.Command{
	Use:   "stats <file>",
	Short: "Summarize a decklist's card count and mana curve",
	Long: `Resolve every card line of a decklist and print the card count,
the mana curve (lands excluded) and the mean mana value.

Cards that cannot be resolved still count toward the total and are listed.

Examples:
  mtgls stats burn.deck
  mtgls stats burn.deck --json`,
	Args: cobra.ExactArgs(1),
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()
	path := args[0]

	content, err := os.ReadFile(path)
	if err != nil {
		return handleError(ErrFileReadError, fmt.Errorf("failed to read %s: %w", path, err), "")
	}

	s, err := openLoadedSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	resolved, err := deck.Resolve(ctx, s.db.Card, deck.CardLines(string(content)), resolveConcurrency)
	if err != nil {
		return handleCardError(err)
	}

	result := StatsResult{File: path, Stats: deck.ComputeStats(resolved)}
	var warnings []Warning
	for _, r := range resolved {
		if r.Err == nil {
			continue
		}
		result.UnresolvedNames = append(result.UnresolvedNames, r.Name)
		warnings = append(warnings, Warning{
			Code:    WarnUnresolved,
			Message: fmt.Sprintf("%s: %v", r.Name, r.Err),
			File:    path,
			Line:    r.Line + 1,
		})
	}

	if isJSONOutput() {
		outputSuccessWithWarnings(result, warnings, &Meta{
			Count:       result.Cards,
			QueryTimeMs: time.Since(start).Milliseconds(),
		})
		return nil
	}

	fmt.Fprintln(stdout, ui.Header(path))
	fmt.Fprintf(stdout, "%s  %s\n", ui.Muted.Render("Cards:     "), ui.Accent.Render(strconv.Itoa(result.Cards)))
	if len(result.Curve) > 0 {
		fmt.Fprintf(stdout, "%s  %s\n", ui.Muted.Render("Curve:     "), result.CurveString())
		fmt.Fprintf(stdout, "%s  %.2f\n", ui.Muted.Render("Mean MV:   "), result.MeanManaValue)
	}
	if result.Unresolved > 0 {
		fmt.Fprintf(stdout, "%s  %d\n", ui.Muted.Render("Unresolved:"), result.Unresolved)
		for _, w := range warnings {
			fmt.Fprintln(stdout, "  "+ui.Warning(w.Message))
		}
	}
	return nil
}
