// Package render turns card records into the text shown to users: hover
// markdown, end-of-line decorations, and standalone search reports.
package render

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/mtgcode/mtgls/internal/model"
)

const noOracleText = "no oracle text"

// DecorationText is the short summary shown after a card line:
// "mana cost | type line | power/toughness", skipping empty parts.
func DecorationText(card *model.Card) string {
	var parts []string
	if cost := card.DisplayManaCost(); cost != "" {
		parts = append(parts, cost)
	}
	if tl := card.DisplayTypeLine(); tl != "" {
		parts = append(parts, tl)
	}
	power, hasPower := card.Power.Get()
	toughness, hasToughness := card.Toughness.Get()
	if hasPower || hasToughness {
		parts = append(parts, power+"/"+toughness)
	}
	return strings.Join(parts, " | ")
}

// Prices returns the display USD and EUR prices. Each falls back to the
// foil price and then to "-".
func Prices(card *model.Card) (usd, eur string) {
	usd, eur = "-", "-"
	if card.Prices == nil {
		return usd, eur
	}
	pick := func(regular, foil model.Optional[string]) string {
		if v, ok := regular.Get(); ok && v != "" {
			return v
		}
		if v, ok := foil.Get(); ok && v != "" {
			return v
		}
		return "-"
	}
	return pick(card.Prices.USD, card.Prices.USDFoil), pick(card.Prices.EUR, card.Prices.EURFoil)
}

// PriceLine renders the prices as markdown.
func PriceLine(card *model.Card) string {
	usd, eur := Prices(card)
	return fmt.Sprintf("**Price:** %s$ / %s€", usd, eur)
}

// ImagesMarkdown renders the card image, or one image per face, with the
// oracle text as the image title.
func ImagesMarkdown(card *model.Card) string {
	if card.ImageURIs != nil {
		text, ok := card.DisplayOracleText()
		if !ok {
			text = noOracleText
		}
		return image(card.Name, card.ImageURIs.Small, text)
	}
	var sb strings.Builder
	for _, face := range card.Faces {
		small := ""
		if face.ImageURIs != nil {
			small = face.ImageURIs.Small
		}
		sb.WriteString(image(face.Name, small, face.OracleText.OrElse("")))
	}
	return sb.String()
}

func image(name, src, title string) string {
	return fmt.Sprintf(`![image of %s](%s "%s")`, name, src, strings.ReplaceAll(title, `"`, "'"))
}

// CardMarkdown is the hover body for a single card line.
func CardMarkdown(card *model.Card) string {
	return ImagesMarkdown(card) + "\n\n" + PriceLine(card)
}

// SearchMarkdown is the hover body for a search line: one section per card.
func SearchMarkdown(cards []*model.Card) string {
	sections := make([]string, 0, len(cards))
	for _, card := range cards {
		sections = append(sections, "### "+card.Name+"\n\n"+CardMarkdown(card))
	}
	return strings.Join(sections, "\n\n")
}

// CardText renders a card for reading in a terminal.
func CardText(card *model.Card) string {
	var sb strings.Builder
	sb.WriteString("# " + card.Name)
	if cost := card.DisplayManaCost(); cost != "" {
		sb.WriteString("  " + cost)
	}
	sb.WriteString("\n\n")
	if tl := card.DisplayTypeLine(); tl != "" {
		sb.WriteString("*" + tl + "*\n\n")
	}
	if text, ok := card.DisplayOracleText(); ok && text != "" {
		for _, para := range strings.Split(text, "\n") {
			sb.WriteString(para + "\n\n")
		}
	}
	power, hasPower := card.Power.Get()
	toughness, hasToughness := card.Toughness.Get()
	if hasPower || hasToughness {
		sb.WriteString("**" + power + "/" + toughness + "**\n\n")
	}
	if loyalty, ok := card.Loyalty.Get(); ok {
		sb.WriteString("**Loyalty:** " + loyalty + "\n\n")
	}
	if card.SetName != "" {
		fmt.Fprintf(&sb, "%s (%s), %s\n\n", card.SetName, strings.ToUpper(card.Set), card.Rarity)
	}
	sb.WriteString(PriceLine(card) + "\n")
	return sb.String()
}

// RulingsMarkdown renders rulings as a bullet list.
func RulingsMarkdown(rulings []model.Ruling) string {
	if len(rulings) == 0 {
		return "*No rulings.*\n"
	}
	var sb strings.Builder
	sb.WriteString("## Rulings\n\n")
	for _, r := range rulings {
		fmt.Fprintf(&sb, "- **%s**: %s\n", r.PublishedAt, r.Comment)
	}
	return sb.String()
}

// SearchHTML renders a standalone HTML report of a search.
func SearchHTML(query string, cards []*model.Card) ([]byte, error) {
	var md strings.Builder
	fmt.Fprintf(&md, "# Search: %s\n\n", escapeMarkdown(query))
	for _, card := range cards {
		fmt.Fprintf(&md, "## %s\n\n%s\n\n%s\n\n", escapeMarkdown(card.Name), ImagesMarkdown(card), PriceLine(card))
	}

	var body bytes.Buffer
	if err := goldmark.Convert([]byte(md.String()), &body); err != nil {
		return nil, fmt.Errorf("render search report: %w", err)
	}

	var out bytes.Buffer
	out.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&out, "<title>Search: %s</title>\n", html.EscapeString(query))
	out.WriteString("<style>h2 { padding-top: 12px; }</style>\n</head>\n<body>\n")
	out.Write(body.Bytes())
	out.WriteString("</body>\n</html>\n")
	return out.Bytes(), nil
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "[", `\[`, "]", `\]`, "<", `\<`, "#", `\#`,
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
