package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/mtgcode/mtgls/internal/deck"
	"github.com/mtgcode/mtgls/internal/ui"
	"github.com/mtgcode/mtgls/internal/watcher"
)

// Issue is a card line whose name is not in the card catalog.
type Issue struct {
	File       string `json:"file"`
	Line       int    `json:"line"`   // 1-based
	Column     int    `json:"column"` // 1-based, in characters
	Name       string `json:"name"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Message is the human-readable form of the issue.
func (i Issue) Message() string {
	msg := fmt.Sprintf("Unknown card '%s'.", i.Name)
	if i.Suggestion != "" {
		msg += fmt.Sprintf(" Did you mean '%s'?", i.Suggestion)
	}
	return msg
}

// CheckResult is the JSON payload of `mtgls check`.
type CheckResult struct {
	Files  int     `json:"files"`
	Cards  int     `json:"cards"` // card lines checked
	Issues []Issue `json:"issues"`
}

// nameChecker is the part of the card database a check needs. Neither
// method touches the network.
type nameChecker interface {
	Known(name string) bool
	ClosestName(name string) (string, bool)
}

var checkCmd = &cobra.Command{
	Use:   "check <file|dir|glob>...",
	Short: "Report card lines with unknown card names",
	Long: `Check decklists for card lines whose name is not a known card.

Arguments may be files, directories (searched for ` + watcher.DefaultPattern + `)
or doublestar globs such as "decks/**/*.txt". Every unknown name comes with
the closest known name when there is one. The exit status is non-zero when
any issue is found.

Examples:
  mtgls check burn.deck
  mtgls check decks/
  mtgls check "decks/**/*.dek" --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	start := time.Now()
	files, err := expandPatterns(args)
	if err != nil {
		return handleError(ErrInvalidInput, err, "")
	}
	if len(files) == 0 {
		return handleErrorMsg(ErrInvalidInput, "no decklists match the given arguments", "")
	}

	s, err := openLoadedSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	result := CheckResult{Files: len(files), Issues: []Issue{}}
	for _, file := range files {
		cards, issues, err := checkFile(file, s.db)
		if err != nil {
			return handleError(ErrFileReadError, err, "")
		}
		result.Cards += cards
		result.Issues = append(result.Issues, issues...)
	}

	if isJSONOutput() {
		warnings := make([]Warning, len(result.Issues))
		for i, issue := range result.Issues {
			warnings[i] = Warning{Code: WarnUnknownCard, Message: issue.Message(), File: issue.File, Line: issue.Line}
		}
		outputSuccessWithWarnings(result, warnings, &Meta{
			Count:       len(result.Issues),
			QueryTimeMs: time.Since(start).Milliseconds(),
		})
	} else {
		printIssues(result.Issues)
		fmt.Fprintln(stdout)
		if len(result.Issues) == 0 {
			fmt.Fprintln(stdout, ui.Successf("No unknown cards in %d file(s).", result.Files))
		} else {
			fmt.Fprintln(stdout, ui.Warning(fmt.Sprintf("Found %d unknown card(s) in %d file(s).", len(result.Issues), result.Files)))
		}
	}

	if len(result.Issues) > 0 {
		return errReported
	}
	return nil
}

func printIssues(issues []Issue) {
	for _, issue := range issues {
		fmt.Fprintf(stdout, "%s:%s:%d  %s\n", ui.FilePath(issue.File), ui.LineNum(issue.Line), issue.Column, issue.Message())
	}
}

// checkFile reads a decklist and checks its card lines.
func checkFile(path string, db nameChecker) (cards int, issues []Issue, err error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	cards, issues = checkText(path, string(content), db)
	return cards, issues, nil
}

func checkText(file, text string, db nameChecker) (cards int, issues []Issue) {
	cards = len(deck.CardLines(text))
	for _, cl := range deck.UnknownCards(text, db.Known) {
		issue := Issue{
			File:   file,
			Line:   cl.Line + 1,
			Column: cl.NameStart + 1,
			Name:   cl.Name,
		}
		if closest, ok := db.ClosestName(cl.Name); ok {
			issue.Suggestion = closest
		}
		issues = append(issues, issue)
	}
	return cards, issues
}

// expandPatterns turns check arguments into a sorted list of files.
// Directories are searched with the default decklist pattern; anything
// else is a doublestar glob, and a literal path that matches nothing is
// kept so reading it reports the real error.
func expandPatterns(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, pattern := range patterns {
		if info, err := os.Stat(pattern); err == nil && info.IsDir() {
			matches, err := doublestar.Glob(os.DirFS(pattern), watcher.DefaultPattern, doublestar.WithFilesOnly())
			if err != nil {
				return nil, fmt.Errorf("failed to search %s: %w", pattern, err)
			}
			for _, m := range matches {
				add(filepath.Join(pattern, filepath.FromSlash(m)))
			}
			continue
		}

		if !doublestar.ValidatePathPattern(pattern) {
			return nil, fmt.Errorf("invalid pattern %q", pattern)
		}
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("failed to expand %s: %w", pattern, err)
		}
		if len(matches) == 0 && !hasGlobMeta(pattern) {
			add(pattern)
		}
		for _, m := range matches {
			add(m)
		}
	}
	sort.Strings(files)
	return files, nil
}

func hasGlobMeta(pattern string) bool {
	for _, r := range pattern {
		switch r {
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}
