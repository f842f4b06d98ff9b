// Package deck recognizes the line syntax of plain-text decklists.
//
// A card line is "<quantity> <card name>". Every consumer (inline hints,
// diagnostics, hover, statistics) goes through Match so they agree on what a
// card line is.
package deck

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	// One separating space; anything after it belongs to the name verbatim.
	cardLineRe   = regexp.MustCompile(`^(\d+) (.+)$`)
	quantityRe   = regexp.MustCompile(`^\d+ `)
	searchLineRe = regexp.MustCompile(`(?i)^// *Search: *(.*?) *$`)
	lineSplitRe  = regexp.MustCompile(`\r?\n`)
)

// CardLine is a recognized "<quantity> <name>" line.
type CardLine struct {
	Line      int    `json:"line"` // 0-based line number within the document
	Quantity  int    `json:"quantity"`
	Name      string `json:"name"`
	NameStart int    `json:"name_start"` // rune offset of Name within the line
}

// NameEnd returns the rune offset just past the name.
func (c CardLine) NameEnd() int {
	return c.NameStart + utf8.RuneCountInString(c.Name)
}

// Match recognizes a card line. The quantity must fit in an int.
func Match(line string) (CardLine, bool) {
	m := cardLineRe.FindStringSubmatch(line)
	if m == nil {
		return CardLine{}, false
	}
	qty, err := strconv.Atoi(m[1])
	if err != nil {
		return CardLine{}, false
	}
	return CardLine{
		Quantity:  qty,
		Name:      m[2],
		NameStart: len(m[1]) + 1,
	}, true
}

// NameStart returns the rune offset where a card name begins on a line that
// starts with a quantity. Unlike Match it accepts an empty name, so it can
// place completions on a line still being typed.
func NameStart(line string) (int, bool) {
	loc := quantityRe.FindStringIndex(line)
	if loc == nil {
		return 0, false
	}
	return loc[1], true
}

// SplitLines splits document text on LF or CRLF.
func SplitLines(text string) []string {
	return lineSplitRe.Split(text, -1)
}

// CardLines returns every card line in the document, in order.
func CardLines(text string) []CardLine {
	var out []CardLine
	for i, line := range SplitLines(text) {
		if cl, ok := Match(line); ok {
			cl.Line = i
			out = append(out, cl)
		}
	}
	return out
}

// SearchLine is a "// Search: <query>" comment line.
type SearchLine struct {
	Line       int    `json:"line"`
	Query      string `json:"query"`
	QueryStart int    `json:"query_start"` // rune offset of Query within the line
}

// MatchSearch recognizes a search line. The prefix is case-insensitive and
// surrounding spaces are trimmed from the query.
func MatchSearch(line string) (SearchLine, bool) {
	loc := searchLineRe.FindStringSubmatchIndex(line)
	if loc == nil {
		return SearchLine{}, false
	}
	return SearchLine{
		Query:      line[loc[2]:loc[3]],
		QueryStart: utf8.RuneCountInString(line[:loc[2]]),
	}, true
}

// Terms returns the query up to the first ';', without surrounding spaces.
// Text after the ';' is a trailing comment.
func (s SearchLine) Terms() string {
	q, _, _ := strings.Cut(s.Query, ";")
	return strings.TrimSpace(q)
}

// SearchLines returns every search line in the document.
func SearchLines(text string) []SearchLine {
	var out []SearchLine
	for i, line := range SplitLines(text) {
		if sl, ok := MatchSearch(line); ok {
			sl.Line = i
			out = append(out, sl)
		}
	}
	return out
}

// IsComment reports whether the line is a "//" comment.
func IsComment(line string) bool {
	return strings.HasPrefix(line, "//")
}

// FoldingRange spans inclusive 0-based line numbers.
type FoldingRange struct {
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
}

// FoldingRanges folds each comment line down to the line before the next
// comment; the last comment folds to the end of the document.
func FoldingRanges(text string) []FoldingRange {
	lines := SplitLines(text)
	var comments []int
	for i, line := range lines {
		if IsComment(line) {
			comments = append(comments, i)
		}
	}
	if len(comments) == 0 {
		return nil
	}

	ranges := make([]FoldingRange, 0, len(comments))
	for i := 0; i < len(comments)-1; i++ {
		ranges = append(ranges, FoldingRange{StartLine: comments[i], EndLine: comments[i+1] - 1})
	}
	ranges = append(ranges, FoldingRange{StartLine: comments[len(comments)-1], EndLine: len(lines) - 1})
	return ranges
}
