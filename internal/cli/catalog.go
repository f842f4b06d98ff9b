package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mtgcode/mtgls/internal/carddb"
	"github.com/mtgcode/mtgls/internal/cardstore"
	"github.com/mtgcode/mtgls/internal/ui"
)

// CatalogStatusResult is the JSON payload of `mtgls catalog status`.
type CatalogStatusResult struct {
	Dir       string                 `json:"dir"`
	MaxAge    string                 `json:"max_age"`
	Catalogs  []carddb.CatalogStatus `json:"catalogs"`
	CardCache *cardstore.Stats       `json:"card_cache,omitempty"`
}

// RefreshedCatalog is one entry of `mtgls catalog refresh` output.
type RefreshedCatalog struct {
	ID     string        `json:"id"`
	Values int           `json:"values"`
	Source carddb.Source `json:"source"`
	Path   string        `json:"path"`
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect and refresh the local catalog snapshots",
	Long: `Catalog snapshots (card names, types, sets, artists, ...) are stored under
the data directory and refetched once they are older than max_catalog_age.`,
}

var catalogStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the age of every catalog snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := getConfig()
		s, err := openSession(c)
		if err != nil {
			return handleError(ErrFileReadError, err, "")
		}
		defer s.Close()

		result := CatalogStatusResult{
			Dir:      c.CatalogDir(),
			MaxAge:   c.MaxCatalogAge.String(),
			Catalogs: s.db.Status(),
		}
		if s.cards != nil {
			stats, err := s.cards.Stats(cmd.Context())
			if err != nil {
				return handleError(ErrFileReadError, err, "")
			}
			result.CardCache = &stats
		}

		var warnings []Warning
		for _, st := range result.Catalogs {
			if st.Stale {
				warnings = append(warnings, Warning{
					Code:    WarnCatalogStale,
					Message: fmt.Sprintf("catalog %s is older than %s", st.ID, result.MaxAge),
					File:    st.Path,
				})
			}
		}

		if isJSONOutput() {
			outputSuccessWithWarnings(result, warnings, &Meta{Count: len(result.Catalogs)})
			return nil
		}

		fmt.Fprintln(stdout, ui.Header("Catalogs"), ui.Hint(result.Dir))
		table := ui.NewTable(3)
		for _, st := range result.Catalogs {
			state := ui.Muted.Render("missing")
			switch {
			case st.Exists && st.Stale:
				state = ui.Warning("stale")
			case st.Exists:
				state = ui.Success("fresh")
			}
			updated := "-"
			if st.Exists {
				updated = humanize.Time(st.UpdatedAt)
			}
			table.AddRow(st.ID, state, updated)
		}
		fmt.Fprint(stdout, table.String())

		if result.CardCache != nil {
			fmt.Fprintln(stdout)
			fmt.Fprintln(stdout, ui.Header("Card cache"))
			fmt.Fprintf(stdout, "%s  %s\n", ui.Muted.Render("Cards: "), ui.Accent.Render(fmt.Sprint(result.CardCache.Cards)))
			if !result.CardCache.Oldest.IsZero() {
				fmt.Fprintf(stdout, "%s  %s\n", ui.Muted.Render("Oldest:"), humanize.Time(result.CardCache.Oldest))
			}
		}
		return nil
	},
}

var catalogRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refetch every catalog regardless of age",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		s, err := openSession(getConfig())
		if err != nil {
			return handleError(ErrFileReadError, err, "")
		}
		defer s.Close()

		spinner := ui.NewSpinner(cmd.ErrOrStderr(), "Refreshing catalogs...")
		spinner.Start()
		snaps, err := s.db.Refresh(cmd.Context())
		spinner.Stop()
		if err != nil {
			return handleCardError(err)
		}

		result := make([]RefreshedCatalog, len(snaps))
		var warnings []Warning
		for i, snap := range snaps {
			result[i] = RefreshedCatalog{ID: snap.Catalog.ID, Values: len(snap.Values), Source: snap.Source, Path: snap.Path}
			if snap.Source == carddb.SourceStale {
				warnings = append(warnings, Warning{
					Code:    WarnCatalogStale,
					Message: fmt.Sprintf("catalog %s could not be fetched; kept the stale snapshot", snap.Catalog.ID),
					File:    snap.Path,
				})
			}
		}

		if isJSONOutput() {
			outputSuccessWithWarnings(map[string]any{"catalogs": result}, warnings, &Meta{
				Count:       len(result),
				QueryTimeMs: time.Since(start).Milliseconds(),
			})
			return nil
		}

		table := ui.NewTable(3)
		for _, r := range result {
			table.AddRow(r.ID, fmt.Sprint(r.Values), string(r.Source))
		}
		fmt.Fprint(stdout, table.String())
		for _, w := range warnings {
			fmt.Fprintln(stdout, ui.Warning(w.Message))
		}
		fmt.Fprintln(stdout, ui.Successf("Refreshed %d catalogs", len(result)))
		return nil
	},
}

var catalogPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete card cache entries older than max_catalog_age",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := getConfig()
		if !c.CardCache {
			return handleErrorMsg(ErrInvalidInput, "the card cache is disabled", "Set card_cache = true in the config to enable it")
		}
		s, err := openSession(c)
		if err != nil {
			return handleError(ErrFileReadError, err, "")
		}
		defer s.Close()

		removed, err := s.cards.Prune(cmd.Context(), c.MaxCatalogAge)
		if err != nil {
			return handleError(ErrFileWriteError, err, "")
		}

		if isJSONOutput() {
			outputSuccess(map[string]any{"removed": removed}, nil)
			return nil
		}
		fmt.Fprintln(stdout, ui.Successf("Removed %d cached card(s)", removed))
		return nil
	},
}

func init() {
	catalogCmd.AddCommand(catalogStatusCmd)
	catalogCmd.AddCommand(catalogRefreshCmd)
	catalogCmd.AddCommand(catalogPruneCmd)
	rootCmd.AddCommand(catalogCmd)
}
