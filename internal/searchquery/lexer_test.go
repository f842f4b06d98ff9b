package searchquery

import (
	"testing"
)

func TestTokenizeTerms(t *testing.T) {
	tokens := Tokenize("c:red t:creature")
	if len(tokens) != 2 {
		t.Fatalf("expected 2 tokens, got %d: %#v", len(tokens), tokens)
	}

	c := tokens[0]
	if c.Param != "c" || c.Operator != ":" || c.Text != "red" {
		t.Errorf("first token = %#v", c)
	}
	if c.Name != (Span{0, 1}) || c.Op != (Span{1, 2}) || c.Value != (Span{2, 5}) {
		t.Errorf("first token spans = %v %v %v", c.Name, c.Op, c.Value)
	}

	ty := tokens[1]
	if ty.Start != 6 || ty.Name != (Span{6, 7}) || ty.Value != (Span{8, 16}) || ty.Content != ty.Value {
		t.Errorf("second token spans = start %d name %v value %v content %v", ty.Start, ty.Name, ty.Value, ty.Content)
	}
	if ty.Style != StyleBare || !ty.Terminated {
		t.Errorf("second token style = %v terminated = %v", ty.Style, ty.Terminated)
	}
}

func TestTokenizeNegation(t *testing.T) {
	tokens := Tokenize("-is:commander")
	if len(tokens) != 1 {
		t.Fatalf("expected 1 token, got %d", len(tokens))
	}
	tok := tokens[0]
	if !tok.Negated || tok.Start != 0 || tok.Name != (Span{1, 3}) || tok.Param != "is" {
		t.Fatalf("token = %#v", tok)
	}
}

func TestTokenizeOperators(t *testing.T) {
	tokens := Tokenize("pow>=3 tou<2 mv=1 loy<=4 cmc>2")
	want := []string{">=", "<", "=", "<=", ">"}
	if len(tokens) != len(want) {
		t.Fatalf("expected %d tokens, got %d", len(want), len(tokens))
	}
	for i, op := range want {
		if tokens[i].Operator != op {
			t.Errorf("token %d operator = %q, want %q", i, tokens[i].Operator, op)
		}
	}
	if tokens[0].Op != (Span{3, 5}) || tokens[0].Value != (Span{5, 6}) {
		t.Errorf("pow>=3 spans = %v %v", tokens[0].Op, tokens[0].Value)
	}
}

func TestTokenizeDelimitedValues(t *testing.T) {
	tests := []struct {
		query      string
		value      Span
		content    Span
		text       string
		style      Style
		terminated bool
	}{
		{query: `o:"draw a card"`, value: Span{2, 15}, content: Span{3, 14}, text: "draw a card", style: StyleDoubleQuoted, terminated: true},
		{query: `o:"draw a`, value: Span{2, 9}, content: Span{3, 9}, text: "draw a", style: StyleDoubleQuoted},
		{query: `o:/^{T}:/`, value: Span{2, 9}, content: Span{3, 8}, text: "^{T}:", style: StyleRegex, terminated: true},
		{query: `o:'one two'`, value: Span{2, 11}, content: Span{3, 10}, text: "one two", style: StyleSingleQuoted, terminated: true},
		{query: `o:"say \"hi\""`, value: Span{2, 14}, content: Span{3, 13}, text: `say \"hi\"`, style: StyleDoubleQuoted, terminated: true},
		{query: `t:`, value: Span{2, 2}, content: Span{2, 2}, text: "", style: StyleBare, terminated: true},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			tokens := Tokenize(tt.query)
			if len(tokens) != 1 {
				t.Fatalf("expected 1 token, got %d", len(tokens))
			}
			tok := tokens[0]
			if tok.Value != tt.value || tok.Content != tt.content || tok.Text != tt.text {
				t.Errorf("value %v content %v text %q; want %v %v %q", tok.Value, tok.Content, tok.Text, tt.value, tt.content, tt.text)
			}
			if tok.Style != tt.style || tok.Terminated != tt.terminated {
				t.Errorf("style %v terminated %v; want %v %v", tok.Style, tok.Terminated, tt.style, tt.terminated)
			}
		})
	}
}

func TestTokenizeSkipsFreeText(t *testing.T) {
	tokens := Tokenize(`goblin !"Lightning Bolt" t:goblin`)
	if len(tokens) != 1 || tokens[0].Start != 25 || tokens[0].Text != "goblin" {
		t.Fatalf("tokens = %#v", tokens)
	}
}

func TestTokenizeParentheses(t *testing.T) {
	tokens := Tokenize("(c:r or c:g) t:elf")
	if len(tokens) != 3 {
		t.Fatalf("expected 3 tokens, got %d", len(tokens))
	}
	if tokens[0].Value != (Span{3, 4}) || tokens[1].Value != (Span{10, 11}) || tokens[2].Start != 13 {
		t.Fatalf("tokens = %#v", tokens)
	}
}

func TestTokenizeBareValueStopsAtApostrophe(t *testing.T) {
	tokens := Tokenize("o:bolas's t:creature")
	if len(tokens) != 2 {
		t.Fatalf("expected 2 tokens, got %d", len(tokens))
	}
	if tokens[0].Text != "bolas" || tokens[1].Param != "t" {
		t.Fatalf("tokens = %#v", tokens)
	}
}

func TestTokenizeAdjacentTerms(t *testing.T) {
	tokens := Tokenize(`o:"flying"t:bird`)
	if len(tokens) != 2 {
		t.Fatalf("expected 2 tokens, got %d", len(tokens))
	}
	if tokens[0].End() != 10 || tokens[1].Start != 10 {
		t.Fatalf("tokens = %#v", tokens)
	}
}

func TestTokenizeRunesNotBytes(t *testing.T) {
	tokens := Tokenize("a:dûl t:x")
	if len(tokens) != 2 || tokens[0].Value != (Span{2, 5}) || tokens[1].Start != 6 {
		t.Fatalf("tokens = %#v", tokens)
	}
}

func TestTokenizeEmptyAndGarbage(t *testing.T) {
	for _, q := range []string{"", "   ", ";;", ":::", "- -", `"unterminated`} {
		if tokens := Tokenize(q); len(tokens) != 0 {
			t.Errorf("Tokenize(%q) = %#v, want none", q, tokens)
		}
	}
}
