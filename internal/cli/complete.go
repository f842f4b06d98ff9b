package cli

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/mtgcode/mtgls/internal/searchquery"
	"github.com/mtgcode/mtgls/internal/ui"
)

var completeOffline bool

// CompleteResult is the JSON payload of `mtgls complete`.
type CompleteResult struct {
	Query      string                  `json:"query"`
	Cursor     int                     `json:"cursor"`
	Candidates []searchquery.Candidate `json:"candidates"`
	Vocabulary bool                    `json:"vocabulary"`
}

var completeCmd = &cobra.Command{
	Use:   "complete <query> [cursor]",
	Short: "Complete an advanced search query at a cursor position",
	Long: `Print completion candidates for an advanced search query.

The cursor is a character offset into the query and defaults to its end.
Parameter names complete from the built-in registry; values complete from
the catalog vocabularies (types, sets, artists, ...).

Examples:
  mtgls complete "t:gob"
  mtgls complete "c:r pow>" 8
  mtgls complete "set:" --offline`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runComplete,
}

func init() {
	rootCmd.AddCommand(completeCmd)
	completeCmd.Flags().BoolVar(&completeOffline, "offline", false, "Skip catalog vocabularies and complete from the registry only")
}

func runComplete(cmd *cobra.Command, args []string) error {
	query := args[0]
	cursor := utf8.RuneCountInString(query)
	if len(args) == 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 0 || n > cursor {
			return handleErrorMsg(ErrInvalidInput,
				fmt.Sprintf("cursor must be a number between 0 and %d", cursor), "")
		}
		cursor = n
	}

	registry, err := searchquery.DefaultRegistry()
	if err != nil {
		return handleError(ErrInternal, err, "")
	}

	var vocab searchquery.Vocabularies
	if !completeOffline {
		s, err := openLoadedSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()
		vocab = s.db.Vocabularies()
	}

	result := CompleteResult{
		Query:      query,
		Cursor:     cursor,
		Candidates: searchquery.NewCompleter(registry, vocab).Complete(query, cursor),
		Vocabulary: vocab != nil,
	}
	if result.Candidates == nil {
		result.Candidates = []searchquery.Candidate{}
	}

	if isJSONOutput() {
		outputSuccess(result, &Meta{Count: len(result.Candidates)})
		return nil
	}

	for _, c := range result.Candidates {
		if c.Detail != "" {
			fmt.Fprintf(stdout, "%s  %s\n", c.InsertText, ui.Hint(c.Detail))
		} else {
			fmt.Fprintln(stdout, c.InsertText)
		}
	}
	return nil
}
