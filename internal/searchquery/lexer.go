// Package searchquery scans card search queries and offers completions for
// the parameter name or value under the cursor.
//
// Offsets are rune indexes into the query text. Callers that speak another
// unit (UTF-16 in the language server) convert at their boundary.
package searchquery

import (
	"unicode"
)

// Style is the delimiter style of a value.
type Style int

const (
	StyleBare         Style = iota // red
	StyleDoubleQuoted              // "draw a card"
	StyleRegex                     // /^{T}:/
	StyleSingleQuoted              // 'draw a card'
)

func (s Style) String() string {
	switch s {
	case StyleDoubleQuoted:
		return "double-quoted"
	case StyleRegex:
		return "regex"
	case StyleSingleQuoted:
		return "single-quoted"
	default:
		return "bare"
	}
}

// Span is a half-open rune range.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of runes covered.
func (s Span) Len() int { return s.End - s.Start }

// Contains reports whether offset lies within the span, ends included.
func (s Span) Contains(offset int) bool { return offset >= s.Start && offset <= s.End }

// Shift moves the span by n runes.
func (s Span) Shift(n int) Span { return Span{Start: s.Start + n, End: s.End + n} }

// Token is one "[-]name<op>value" term.
type Token struct {
	Start      int // first rune, the '-' when Negated
	Negated    bool
	Name       Span   // parameter name, never includes '-'
	Param      string // text of Name
	Op         Span
	Operator   string // one of : = >= <= < >
	Value      Span   // whole value including delimiters
	Content    Span   // value without delimiters
	Text       string // text of Content
	Style      Style
	Terminated bool // false for a quoted or regex value missing its closing delimiter
}

// End returns the offset just past the token.
func (t Token) End() int { return t.Value.End }

// Lexer produces Tokens from a query. Free text between terms (bare words,
// exact-name "!" terms, boolean keywords) is skipped.
type Lexer struct {
	input []rune
	pos   int
}

// NewLexer creates a new lexer for the given query.
func NewLexer(input string) *Lexer {
	return &Lexer{input: []rune(input)}
}

// NextToken returns the next term, or false at end of input.
func (l *Lexer) NextToken() (Token, bool) {
	for l.pos < len(l.input) {
		if isSeparator(l.input[l.pos]) {
			l.pos++
			continue
		}
		if tok, ok := l.scanTerm(); ok {
			return tok, true
		}
		l.skipWord()
	}
	return Token{}, false
}

// Tokenize returns every term in the query.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok, ok := l.NextToken()
		if !ok {
			return tokens
		}
		tokens = append(tokens, tok)
	}
}

// scanTerm tries to read a term at l.pos. On failure l.pos is unchanged.
func (l *Lexer) scanTerm() (Token, bool) {
	in := l.input
	tok := Token{Start: l.pos}
	i := l.pos
	if in[i] == '-' {
		tok.Negated = true
		i++
	}

	nameStart := i
	for i < len(in) && isNameChar(in[i]) {
		i++
	}
	if i == nameStart || i >= len(in) || !isOperatorStart(in[i]) {
		return Token{}, false
	}
	tok.Name = Span{Start: nameStart, End: i}
	tok.Param = string(in[nameStart:i])

	opStart := i
	if (in[i] == '<' || in[i] == '>') && i+1 < len(in) && in[i+1] == '=' {
		i += 2
	} else {
		i++
	}
	tok.Op = Span{Start: opStart, End: i}
	tok.Operator = string(in[opStart:i])

	tok.Value.Start = i
	if i < len(in) && isDelimiter(in[i]) {
		l.scanDelimited(&tok, i)
	} else {
		j := i
		for j < len(in) && !isSeparator(in[j]) && !isDelimiter(in[j]) {
			j++
		}
		tok.Style = StyleBare
		tok.Terminated = true
		tok.Value.End = j
		tok.Content = tok.Value
	}
	tok.Text = string(in[tok.Content.Start:tok.Content.End])

	l.pos = tok.Value.End
	return tok, true
}

// scanDelimited reads a quoted or regex value opening at i. A missing closing
// delimiter runs the value to the end of input.
func (l *Lexer) scanDelimited(tok *Token, i int) {
	in := l.input
	delim := in[i]
	switch delim {
	case '"':
		tok.Style = StyleDoubleQuoted
	case '\'':
		tok.Style = StyleSingleQuoted
	default:
		tok.Style = StyleRegex
	}

	j := i + 1
	for j < len(in) {
		if in[j] == '\\' && j+1 < len(in) {
			j += 2
			continue
		}
		if in[j] == delim {
			break
		}
		j++
	}
	tok.Content = Span{Start: i + 1, End: j}
	if j < len(in) {
		tok.Terminated = true
		tok.Value.End = j + 1
	} else {
		tok.Value.End = len(in)
	}
}

// skipWord advances over a run of non-separator runes, treating a double
// quoted section as part of the word. Apostrophes do not open a section.
func (l *Lexer) skipWord() {
	in := l.input
	start := l.pos
	for l.pos < len(in) && !isSeparator(in[l.pos]) {
		if in[l.pos] == '"' {
			l.pos++
			for l.pos < len(in) && in[l.pos] != '"' {
				l.pos++
			}
		}
		if l.pos < len(in) {
			l.pos++
		}
	}
	if l.pos == start {
		l.pos++
	}
}

func isSeparator(r rune) bool {
	return unicode.IsSpace(r) || r == ';' || r == '(' || r == ')'
}

func isOperatorStart(r rune) bool {
	return r == ':' || r == '=' || r == '<' || r == '>'
}

func isDelimiter(r rune) bool {
	return r == '"' || r == '\'' || r == '/'
}

func isNameChar(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
