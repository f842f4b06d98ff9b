package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mtgcode/mtgls/internal/carddb"
	"github.com/mtgcode/mtgls/internal/model"
	"github.com/mtgcode/mtgls/internal/render"
	"github.com/mtgcode/mtgls/internal/ui"
)

var cardShowRulings bool

// CardResult is the JSON payload of `mtgls card`.
type CardResult struct {
	Card    *model.Card    `json:"card"`
	Rulings []model.Ruling `json:"rulings,omitempty"`
}

var cardCmd = &cobra.Command{
	Use:   "card <name>",
	Short: "Show a card by its exact name",
	Long: `Look up a card by its exact name and print its text, set and price.

Names are matched exactly against the card-name catalog. When a name is not
found, the closest known name is suggested.

Examples:
  mtgls card Lightning Bolt
  mtgls card "Jace, the Mind Sculptor" --rulings
  mtgls card Counterspell --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCard,
}

func init() {
	rootCmd.AddCommand(cardCmd)
	cardCmd.Flags().BoolVar(&cardShowRulings, "rulings", false, "Include the card's rulings")
}

func runCard(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	name := strings.TrimSpace(strings.Join(args, " "))
	if name == "" {
		return handleErrorMsg(ErrInvalidInput, "card name is empty", "")
	}

	s, err := openLoadedSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	card, err := s.db.Card(ctx, name)
	if err != nil {
		if errors.Is(err, carddb.ErrNotFound) {
			if closest, ok := s.db.ClosestName(name); ok {
				return handleErrorWithDetails(ErrCardNotFound, err.Error(),
					fmt.Sprintf("Did you mean '%s'?", closest), map[string]string{"closest": closest})
			}
		}
		return handleCardError(err)
	}

	result := CardResult{Card: card}
	if cardShowRulings {
		result.Rulings, err = s.db.Rulings(ctx, card)
		if err != nil {
			return handleCardError(err)
		}
	}

	if isJSONOutput() {
		outputSuccess(result, nil)
		return nil
	}

	md := render.CardText(card)
	if cardShowRulings {
		md += "\n" + render.RulingsMarkdown(result.Rulings)
	}
	return printMarkdown(md)
}

// printMarkdown renders md for the terminal, falling back to the raw text
// when rendering fails.
func printMarkdown(md string) error {
	display := ui.NewDisplayContext(os.Stdout)
	rendered, err := ui.RenderMarkdown(md, display.AvailableWidth(ui.MarkdownRenderMargin))
	if err != nil {
		logger.Debug().Err(err).Msg("markdown rendering failed")
		rendered = md
	}
	fmt.Fprint(stdout, rendered)
	return nil
}
