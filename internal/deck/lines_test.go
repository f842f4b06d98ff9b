package deck

import (
	"reflect"
	"testing"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		line    string
		ok      bool
		qty     int
		name    string
		nameEnd int
	}{
		{line: "4 Lightning Bolt", ok: true, qty: 4, name: "Lightning Bolt", nameEnd: 16},
		{line: "Lightning Bolt", ok: false},
		{line: "4  Lightning Bolt", ok: true, qty: 4, name: " Lightning Bolt", nameEnd: 17},
		{line: "12 Forest", ok: true, qty: 12, name: "Forest", nameEnd: 9},
		{line: "1 Lim-Dûl's Vault", ok: true, qty: 1, name: "Lim-Dûl's Vault", nameEnd: 17},
		{line: "4 ", ok: false},
		{line: "4Lightning Bolt", ok: false},
		{line: " 4 Lightning Bolt", ok: false},
		{line: "99999999999999999999999 Forest", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := Match(tt.line)
			if ok != tt.ok {
				t.Fatalf("Match(%q) ok = %v, want %v", tt.line, ok, tt.ok)
			}
			if !ok {
				return
			}
			if got.Quantity != tt.qty || got.Name != tt.name {
				t.Fatalf("Match(%q) = (%d, %q), want (%d, %q)", tt.line, got.Quantity, got.Name, tt.qty, tt.name)
			}
			if got.NameEnd() != tt.nameEnd {
				t.Errorf("NameEnd = %d, want %d", got.NameEnd(), tt.nameEnd)
			}
		})
	}
}

func TestCardLinesHandlesCRLF(t *testing.T) {
	text := "// Creatures\r\n4 Goblin Guide\r\n\r\n20 Mountain"
	got := CardLines(text)
	want := []CardLine{
		{Line: 1, Quantity: 4, Name: "Goblin Guide", NameStart: 2},
		{Line: 3, Quantity: 20, Name: "Mountain", NameStart: 3},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("CardLines = %#v, want %#v", got, want)
	}
}

func TestMatchSearch(t *testing.T) {
	tests := []struct {
		line  string
		ok    bool
		query string
		start int
	}{
		{line: "// Search: c:red t:creature", ok: true, query: "c:red t:creature", start: 11},
		{line: "//Search:o:draw  ", ok: true, query: "o:draw", start: 9},
		{line: "// search: t:elf", ok: true, query: "t:elf", start: 11},
		{line: "// Creatures", ok: false},
		{line: "4 Search: nope", ok: false},
	}
	for _, tt := range tests {
		got, ok := MatchSearch(tt.line)
		if ok != tt.ok {
			t.Fatalf("MatchSearch(%q) ok = %v", tt.line, ok)
		}
		if ok && (got.Query != tt.query || got.QueryStart != tt.start) {
			t.Errorf("MatchSearch(%q) = (%q, %d), want (%q, %d)", tt.line, got.Query, got.QueryStart, tt.query, tt.start)
		}
	}
}

func TestFoldingRanges(t *testing.T) {
	text := "// Creatures\n4 Goblin Guide\n// Spells\n4 Lightning Bolt\n\n// Lands\n20 Mountain"
	got := FoldingRanges(text)
	want := []FoldingRange{
		{StartLine: 0, EndLine: 1},
		{StartLine: 2, EndLine: 4},
		{StartLine: 5, EndLine: 6},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("FoldingRanges = %v, want %v", got, want)
	}

	if got := FoldingRanges("4 Forest"); got != nil {
		t.Fatalf("expected no ranges without comments, got %v", got)
	}
}

func TestSearchLineTerms(t *testing.T) {
	sl, ok := MatchSearch("// Search: t:goblin cmc<=2 ; cheap ones")
	if !ok {
		t.Fatal("expected a search line")
	}
	if got := sl.Terms(); got != "t:goblin cmc<=2" {
		t.Errorf("Terms() = %q", got)
	}
}

func TestNameStart(t *testing.T) {
	tests := []struct {
		line  string
		start int
		ok    bool
	}{
		{"4 Lightning Bolt", 2, true},
		{"12 ", 3, true},
		{"4", 0, false},
		{"// 4 Bolt", 0, false},
	}
	for _, tt := range tests {
		start, ok := NameStart(tt.line)
		if start != tt.start || ok != tt.ok {
			t.Errorf("NameStart(%q) = (%d, %v), want (%d, %v)", tt.line, start, ok, tt.start, tt.ok)
		}
	}
}

func TestUnknownCards(t *testing.T) {
	known := map[string]bool{"Lightning Bolt": true, "Island": true}
	text := "// Burn\n4 Lightning Bolt\n2 Lightnig Bolt\n20 Island\n1 Shock"

	got := UnknownCards(text, func(name string) bool { return known[name] })
	if len(got) != 2 {
		t.Fatalf("UnknownCards() = %+v", got)
	}
	if got[0].Line != 2 || got[0].Name != "Lightnig Bolt" || got[1].Line != 4 || got[1].Name != "Shock" {
		t.Errorf("UnknownCards() = %+v", got)
	}
}
