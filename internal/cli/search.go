package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mtgcode/mtgls/internal/atomicfile"
	"github.com/mtgcode/mtgls/internal/deck"
	"github.com/mtgcode/mtgls/internal/model"
	"github.com/mtgcode/mtgls/internal/render"
	"github.com/mtgcode/mtgls/internal/ui"
)

// resolveConcurrency bounds card lookups issued by one command.
const resolveConcurrency = 8

var (
	searchHTMLPath string
	searchLimit    int
)

// SearchResult is the JSON payload of `mtgls search`.
type SearchResult struct {
	Query string       `json:"query"`
	Cards []SearchCard `json:"cards"`
	HTML  string       `json:"html,omitempty"`
}

// SearchCard is one row of a search result.
type SearchCard struct {
	Name     string `json:"name"`
	ManaCost string `json:"mana_cost,omitempty"`
	TypeLine string `json:"type_line,omitempty"`
	USD      string `json:"usd"`
	EUR      string `json:"eur"`
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run an advanced card search",
	Long: `Run an advanced search and list the matching cards.

The query uses the card API's search syntax, e.g. "t:goblin cmc<=2".
Results are cached for the rest of the session, so repeating a query
costs nothing.

Examples:
  mtgls search "t:goblin cmc<=2"
  mtgls search "o:\"draw a card\" c:u" --limit 10
  mtgls search "set:lea r:rare" --html alpha-rares.html`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVar(&searchHTMLPath, "html", "", "Also write an HTML report with card images to this file")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 50, "Maximum number of cards to show (0 for all)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return handleErrorMsg(ErrInvalidInput, "search query is empty", "")
	}
	if searchLimit < 0 {
		return handleErrorMsg(ErrInvalidInput, "--limit must not be negative", "")
	}

	s, err := openLoadedSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	names, err := s.db.SearchCardsAdvanced(ctx, query)
	if err != nil {
		return handleCardError(err)
	}
	if searchLimit > 0 && len(names) > searchLimit {
		names = names[:searchLimit]
	}

	cards, warnings, err := resolveCards(ctx, s.db.Card, names)
	if err != nil {
		return handleCardError(err)
	}

	result := SearchResult{Query: query, Cards: make([]SearchCard, 0, len(cards))}
	for _, card := range cards {
		usd, eur := render.Prices(card)
		result.Cards = append(result.Cards, SearchCard{
			Name:     card.Name,
			ManaCost: card.DisplayManaCost(),
			TypeLine: card.DisplayTypeLine(),
			USD:      usd,
			EUR:      eur,
		})
	}

	if searchHTMLPath != "" {
		page, err := render.SearchHTML(query, cards)
		if err != nil {
			return handleError(ErrInternal, err, "")
		}
		if err := atomicfile.WriteFile(searchHTMLPath, page, 0o644); err != nil {
			return handleError(ErrFileWriteError, err, "")
		}
		result.HTML = searchHTMLPath
	}

	if isJSONOutput() {
		outputSuccessWithWarnings(result, warnings, &Meta{
			Count:       len(result.Cards),
			QueryTimeMs: time.Since(start).Milliseconds(),
		})
		return nil
	}

	if len(result.Cards) == 0 {
		fmt.Fprintf(stdout, "No cards match %s\n", ui.Accent.Render(query))
		return nil
	}

	rows := make([]ui.CardRow, len(result.Cards))
	for i, c := range result.Cards {
		rows[i] = ui.CardRow{Name: c.Name, ManaCost: c.ManaCost, TypeLine: c.TypeLine, Price: c.USD + "$"}
	}
	fmt.Fprintln(stdout, ui.Header("Search: "+query), ui.Hint(ui.Count(len(rows), "card", "cards")))
	fmt.Fprintln(stdout, ui.CardTable(ui.NewDisplayContext(os.Stdout), rows))
	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, ui.Warning(w.Message))
	}
	if result.HTML != "" {
		fmt.Fprintln(stdout, ui.Successf("Wrote %s", ui.FilePath(result.HTML)))
	}
	return nil
}

// resolveCards fetches each named card. Names that fail to resolve become
// warnings; only cancellation fails the call.
func resolveCards(ctx context.Context, lookup deck.Lookup, names []string) ([]*model.Card, []Warning, error) {
	lines := make([]deck.CardLine, 0, len(names))
	for _, name := range names {
		if name != "" {
			lines = append(lines, deck.CardLine{Quantity: 1, Name: name})
		}
	}
	resolved, err := deck.Resolve(ctx, lookup, lines, resolveConcurrency)
	if err != nil {
		return nil, nil, err
	}

	cards := make([]*model.Card, 0, len(resolved))
	var warnings []Warning
	for _, r := range resolved {
		if r.Err != nil {
			warnings = append(warnings, Warning{
				Code:    WarnUnresolved,
				Message: fmt.Sprintf("%s: %v", r.Name, r.Err),
			})
			continue
		}
		cards = append(cards, r.Card)
	}
	return cards, warnings, nil
}
