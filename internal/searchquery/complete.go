package searchquery

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/mtgcode/mtgls/internal/fuzzy"
)

// Target says what the cursor is on.
type Target int

const (
	TargetNone  Target = iota // outside the query, or inside a two-rune operator
	TargetName                // a term's parameter name
	TargetValue               // a term's value
	TargetWord                // a word that is not part of a term
	TargetEmpty               // whitespace between terms
)

// Location is the result of Locate.
type Location struct {
	Target Target
	Token  Token  // set for TargetName and TargetValue
	Range  Span   // what a completion replaces
	Text   string // what candidates are ranked against
}

// Locate finds what the cursor is on. A cursor touching either end of a span
// counts as inside it.
func Locate(query string, cursor int) Location {
	src := []rune(query)
	if cursor < 0 || cursor > len(src) {
		return Location{}
	}

	for _, tok := range Tokenize(query) {
		if cursor < tok.Start || cursor > tok.End() {
			continue
		}
		if cursor <= tok.Name.End {
			return Location{Target: TargetName, Token: tok, Range: tok.Name, Text: tok.Param}
		}
		if cursor < tok.Op.End {
			return Location{Target: TargetNone, Token: tok}
		}
		return Location{Target: TargetValue, Token: tok, Range: tok.Value, Text: tok.Text}
	}

	start, end := cursor, cursor
	for start > 0 && isNameChar(src[start-1]) {
		start--
	}
	for end < len(src) && isNameChar(src[end]) {
		end++
	}
	if start == end {
		return Location{Target: TargetEmpty, Range: Span{Start: cursor, End: cursor}}
	}
	return Location{Target: TargetWord, Range: Span{Start: start, End: end}, Text: string(src[start:end])}
}

// Kind distinguishes parameter-name candidates from value candidates.
type Kind int

const (
	KindParameter Kind = iota
	KindValue
)

// Candidate is one completion.
type Candidate struct {
	Label      string `json:"label"`
	InsertText string `json:"insert_text"`
	Range      Span   `json:"range"`
	Kind       Kind   `json:"kind"`
	Detail     string `json:"detail,omitempty"`
}

// Completer offers completions from a registry plus runtime vocabularies.
type Completer struct {
	Registry *Registry
	Vocab    Vocabularies
}

// NewCompleter creates a Completer. vocab may be nil.
func NewCompleter(reg *Registry, vocab Vocabularies) *Completer {
	return &Completer{Registry: reg, Vocab: vocab}
}

// Complete returns candidates for the query text at cursor.
func (c *Completer) Complete(query string, cursor int) []Candidate {
	loc := Locate(query, cursor)
	switch loc.Target {
	case TargetName, TargetWord:
		return c.paramCandidates(fuzzy.Filter(loc.Text, c.Registry.Names()), loc.Range)
	case TargetEmpty:
		return c.paramCandidates(fuzzy.Filter("", c.Registry.Names()), loc.Range)
	case TargetValue:
		return c.valueCandidates(loc)
	default:
		return nil
	}
}

func (c *Completer) paramCandidates(matches []fuzzy.Match, rng Span) []Candidate {
	out := make([]Candidate, 0, len(matches))
	for _, m := range matches {
		p, _ := c.Registry.Param(m.Value)
		out = append(out, Candidate{
			Label:      m.Value,
			InsertText: m.Value,
			Range:      rng,
			Kind:       KindParameter,
			Detail:     p.Description,
		})
	}
	return out
}

func (c *Completer) valueCandidates(loc Location) []Candidate {
	p, ok := c.Registry.Param(loc.Token.Param)
	if !ok || p.Vocabulary == "" {
		return nil
	}
	values := c.Registry.Values(p.Vocabulary, c.Vocab)
	if len(values) == 0 {
		return nil
	}

	matches := fuzzy.Filter(loc.Text, values)
	out := make([]Candidate, 0, len(matches))
	for _, m := range matches {
		text := quoteValue(m.Value)
		out = append(out, Candidate{
			Label:      text,
			InsertText: text,
			Range:      loc.Range,
			Kind:       KindValue,
			Detail:     p.Description,
		})
	}
	return out
}

// quoteValue wraps multi-word values in double quotes.
func quoteValue(v string) string {
	if strings.ContainsAny(v, " \t") {
		return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
	}
	return v
}

var searchPrefixRe = regexp.MustCompile(`(?i)^// *Search:`)

// QuerySpan returns the rune span of the query text on a "// Search:" line:
// from just after the prefix up to the first ';' or end of line.
func QuerySpan(line string) (Span, bool) {
	loc := searchPrefixRe.FindStringIndex(line)
	if loc == nil {
		return Span{}, false
	}
	start := utf8.RuneCountInString(line[:loc[1]])
	end := start
	for _, r := range line[loc[1]:] {
		if r == ';' {
			break
		}
		end++
	}
	return Span{Start: start, End: end}, true
}

// CompleteLine completes on a whole editor line. cursor and the returned
// ranges are rune offsets into line. A cursor outside the query span, or a
// line that is not a search line, yields nothing.
func (c *Completer) CompleteLine(line string, cursor int) []Candidate {
	span, ok := QuerySpan(line)
	if !ok || !span.Contains(cursor) {
		return nil
	}
	src := []rune(line)
	cands := c.Complete(string(src[span.Start:span.End]), cursor-span.Start)
	for i := range cands {
		cands[i].Range = cands[i].Range.Shift(span.Start)
	}
	return cands
}
