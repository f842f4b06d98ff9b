package render

import (
	"strings"
	"testing"

	"github.com/mtgcode/mtgls/internal/model"
)

func decode(t *testing.T, doc string) *model.Card {
	t.Helper()
	card, err := model.DecodeCard([]byte(doc))
	if err != nil {
		t.Fatalf("DecodeCard: %v", err)
	}
	return card
}

func TestDecorationText(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "creature",
			doc:  `{"name":"Goblin Guide","mana_cost":"{R}","type_line":"Creature — Goblin Scout","power":"2","toughness":"2"}`,
			want: "{R} | Creature — Goblin Scout | 2/2",
		},
		{
			name: "instant",
			doc:  `{"name":"Lightning Bolt","mana_cost":"{R}","type_line":"Instant"}`,
			want: "{R} | Instant",
		},
		{
			name: "land has no cost",
			doc:  `{"name":"Island","mana_cost":"","type_line":"Basic Land — Island"}`,
			want: "Basic Land — Island",
		},
		{
			name: "faces",
			doc: `{"name":"Fire // Ice","type_line":"Instant // Instant","card_faces":[
				{"name":"Fire","mana_cost":"{1}{R}"},{"name":"Ice","mana_cost":"{1}{U}"}]}`,
			want: "{1}{R} // {1}{U} | Instant // Instant",
		},
		{
			name: "nothing",
			doc:  `{"name":"Mystery"}`,
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecorationText(decode(t, tt.doc)); got != tt.want {
				t.Errorf("DecorationText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPriceLine(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"regular", `{"prices":{"usd":"1.50","eur":"1.20"}}`, "**Price:** 1.50$ / 1.20€"},
		{"foil fallback", `{"prices":{"usd":null,"usd_foil":"4.00","eur_foil":"3.10"}}`, "**Price:** 4.00$ / 3.10€"},
		{"all null", `{"prices":{"usd":null,"usd_foil":null,"eur":null}}`, "**Price:** -$ / -€"},
		{"no prices", `{}`, "**Price:** -$ / -€"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PriceLine(decode(t, tt.doc)); got != tt.want {
				t.Errorf("PriceLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCardMarkdown(t *testing.T) {
	card := decode(t, `{"name":"Lightning Bolt","oracle_text":"Deal 3 \"damage\".",
		"image_uris":{"small":"https://img.test/bolt.jpg"},"prices":{"usd":"1.00"}}`)

	got := CardMarkdown(card)
	want := `![image of Lightning Bolt](https://img.test/bolt.jpg "Deal 3 'damage'.")` + "\n\n**Price:** 1.00$ / -€"
	if got != want {
		t.Errorf("CardMarkdown() =\n%s\nwant\n%s", got, want)
	}
}

func TestImagesMarkdownFaces(t *testing.T) {
	card := decode(t, `{"name":"Delver of Secrets // Insectile Aberration","card_faces":[
		{"name":"Delver of Secrets","oracle_text":"Look.","image_uris":{"small":"a.jpg"}},
		{"name":"Insectile Aberration","oracle_text":"Flying","image_uris":{"small":"b.jpg"}}]}`)

	got := ImagesMarkdown(card)
	want := `![image of Delver of Secrets](a.jpg "Look.")![image of Insectile Aberration](b.jpg "Flying")`
	if got != want {
		t.Errorf("ImagesMarkdown() = %q, want %q", got, want)
	}
}

func TestImagesMarkdownWithoutOracleText(t *testing.T) {
	card := decode(t, `{"name":"Vanilla","image_uris":{"small":"v.jpg"}}`)
	if got := ImagesMarkdown(card); !strings.Contains(got, `"no oracle text"`) {
		t.Errorf("ImagesMarkdown() = %q", got)
	}
}

func TestSearchMarkdown(t *testing.T) {
	cards := []*model.Card{
		decode(t, `{"name":"A","image_uris":{"small":"a.jpg"}}`),
		decode(t, `{"name":"B","image_uris":{"small":"b.jpg"}}`),
	}
	got := SearchMarkdown(cards)
	if !strings.HasPrefix(got, "### A\n\n") || !strings.Contains(got, "\n\n### B\n\n") {
		t.Errorf("SearchMarkdown() = %q", got)
	}
	if SearchMarkdown(nil) != "" {
		t.Error("expected empty markdown for no cards")
	}
}

func TestSearchHTML(t *testing.T) {
	cards := []*model.Card{
		decode(t, `{"name":"Lightning Bolt","oracle_text":"Deal 3.","image_uris":{"small":"https://img.test/bolt.jpg"},"prices":{"usd":"1.00"}}`),
	}
	out, err := SearchHTML("c:red <b>", cards)
	if err != nil {
		t.Fatalf("SearchHTML: %v", err)
	}
	html := string(out)
	for _, want := range []string{
		"<title>Search: c:red &lt;b&gt;</title>",
		"<h2>Lightning Bolt</h2>",
		`alt="image of Lightning Bolt"`,
		`src="https://img.test/bolt.jpg"`,
		"<strong>Price:</strong> 1.00$ / -€",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("SearchHTML missing %q in:\n%s", want, html)
		}
	}
	if strings.Contains(html, "<b>") {
		t.Errorf("query was not escaped:\n%s", html)
	}
}

func TestCardText(t *testing.T) {
	card := decode(t, `{"name":"Goblin Guide","mana_cost":"{R}","type_line":"Creature — Goblin Scout",
		"oracle_text":"Haste\nWhenever Goblin Guide attacks, reveal.","power":"2","toughness":"2",
		"set":"zen","set_name":"Zendikar","rarity":"rare"}`)
	got := CardText(card)
	for _, want := range []string{"# Goblin Guide  {R}", "*Creature — Goblin Scout*", "Haste\n\nWhenever", "**2/2**", "Zendikar (ZEN), rare"} {
		if !strings.Contains(got, want) {
			t.Errorf("CardText missing %q in:\n%s", want, got)
		}
	}
}

func TestRulingsMarkdown(t *testing.T) {
	got := RulingsMarkdown([]model.Ruling{{PublishedAt: "2020-01-01", Comment: "It works."}})
	if !strings.Contains(got, "- **2020-01-01**: It works.") {
		t.Errorf("RulingsMarkdown() = %q", got)
	}
	if RulingsMarkdown(nil) != "*No rulings.*\n" {
		t.Error("expected placeholder for no rulings")
	}
}
