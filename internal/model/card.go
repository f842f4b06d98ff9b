// Package model defines the card records returned by the remote card database.
package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Card is a projection of a remote card document. Display fields may be
// absent on multi-faced cards; consult Faces in that case.
type Card struct {
	Object      string            `json:"object,omitempty"`
	ID          string            `json:"id,omitempty"`
	OracleID    string            `json:"oracle_id,omitempty"`
	Name        string            `json:"name,omitempty"`
	Lang        string            `json:"lang,omitempty"`
	ReleasedAt  string            `json:"released_at,omitempty"`
	URI         string            `json:"uri,omitempty"`
	ScryfallURI string            `json:"scryfall_uri,omitempty"`
	Layout      string            `json:"layout,omitempty"`
	ImageURIs   *ImageURIs        `json:"image_uris,omitempty"`
	ManaCost    Optional[string]  `json:"mana_cost,omitzero"`
	CMC         Optional[float64] `json:"cmc,omitzero"`
	TypeLine    Optional[string]  `json:"type_line,omitzero"`
	OracleText  Optional[string]  `json:"oracle_text,omitzero"`
	Power       Optional[string]  `json:"power,omitzero"`
	Toughness   Optional[string]  `json:"toughness,omitzero"`
	Loyalty     Optional[string]  `json:"loyalty,omitzero"`
	Colors      []string          `json:"colors,omitempty"`
	ColorIdent  []string          `json:"color_identity,omitempty"`
	Keywords    []string          `json:"keywords,omitempty"`
	Faces       []CardFace        `json:"card_faces,omitempty"`
	Legalities  map[string]string `json:"legalities,omitempty"`
	Games       []string          `json:"games,omitempty"`
	Set         string            `json:"set,omitempty"`
	SetName     string            `json:"set_name,omitempty"`
	Rarity      string            `json:"rarity,omitempty"`
	Artist      string            `json:"artist,omitempty"`
	Watermark   Optional[string]  `json:"watermark,omitzero"`
	BorderColor string            `json:"border_color,omitempty"`
	Frame       string            `json:"frame,omitempty"`
	RulingsURI  Optional[string]  `json:"rulings_uri,omitzero"`
	Prices      *Prices           `json:"prices,omitempty"`
	Related     map[string]string `json:"related_uris,omitempty"`
	Purchase    map[string]string `json:"purchase_uris,omitempty"`
	EDHRECRank  Optional[int]     `json:"edhrec_rank,omitzero"`
}

// CardFace is one face of a multi-faced card.
type CardFace struct {
	Object     string           `json:"object,omitempty"`
	Name       string           `json:"name,omitempty"`
	ManaCost   Optional[string] `json:"mana_cost,omitzero"`
	TypeLine   Optional[string] `json:"type_line,omitzero"`
	OracleText Optional[string] `json:"oracle_text,omitzero"`
	Power      Optional[string] `json:"power,omitzero"`
	Toughness  Optional[string] `json:"toughness,omitzero"`
	Loyalty    Optional[string] `json:"loyalty,omitzero"`
	Colors     []string         `json:"colors,omitempty"`
	Artist     string           `json:"artist,omitempty"`
	ImageURIs  *ImageURIs       `json:"image_uris,omitempty"`
}

// ImageURIs lists the rendered image sizes of a card or face.
type ImageURIs struct {
	Small      string `json:"small,omitempty"`
	Normal     string `json:"normal,omitempty"`
	Large      string `json:"large,omitempty"`
	PNG        string `json:"png,omitempty"`
	ArtCrop    string `json:"art_crop,omitempty"`
	BorderCrop string `json:"border_crop,omitempty"`
}

// Prices holds decimal strings per currency. The remote API sends null for
// prices it does not track, which is kept distinct from an absent key.
type Prices struct {
	USD       Optional[string] `json:"usd,omitzero"`
	USDFoil   Optional[string] `json:"usd_foil,omitzero"`
	USDEtched Optional[string] `json:"usd_etched,omitzero"`
	EUR       Optional[string] `json:"eur,omitzero"`
	EURFoil   Optional[string] `json:"eur_foil,omitzero"`
	Tix       Optional[string] `json:"tix,omitzero"`
}

// Amount parses a price field. ok is false when the field is absent or null;
// a present "0.00" yields (0, true, nil).
func Amount(p Optional[string]) (value float64, ok bool, err error) {
	raw, present := p.Get()
	if !present {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse price %q: %w", raw, err)
	}
	return v, true, nil
}

// DecodeCard parses a single card document.
func DecodeCard(data []byte) (*Card, error) {
	var card Card
	if err := json.Unmarshal(data, &card); err != nil {
		return nil, err
	}
	if card.Object != "" && card.Object != "card" {
		return nil, fmt.Errorf("unexpected object type %q", card.Object)
	}
	return &card, nil
}

// HasFaces reports whether the card carries per-face display fields.
func (c *Card) HasFaces() bool {
	return len(c.Faces) > 0
}

// DisplayManaCost returns the mana cost, joining face costs with " // "
// when the whole-card field is absent or empty.
func (c *Card) DisplayManaCost() string {
	if cost, ok := c.ManaCost.Get(); ok && cost != "" {
		return cost
	}
	var costs []string
	for _, face := range c.Faces {
		if cost, ok := face.ManaCost.Get(); ok && cost != "" {
			costs = append(costs, cost)
		}
	}
	return strings.Join(costs, " // ")
}

// DisplayTypeLine returns the type line, falling back to the faces.
func (c *Card) DisplayTypeLine() string {
	if tl, ok := c.TypeLine.Get(); ok {
		return tl
	}
	var lines []string
	for _, face := range c.Faces {
		if tl, ok := face.TypeLine.Get(); ok && tl != "" {
			lines = append(lines, tl)
		}
	}
	return strings.Join(lines, " // ")
}

// DisplayOracleText returns the oracle text, joining faces with "\n//\n".
func (c *Card) DisplayOracleText() (string, bool) {
	if text, ok := c.OracleText.Get(); ok {
		return text, true
	}
	if !c.HasFaces() {
		return "", false
	}
	texts := make([]string, 0, len(c.Faces))
	for _, face := range c.Faces {
		texts = append(texts, face.OracleText.OrElse(""))
	}
	return strings.Join(texts, "\n//\n"), true
}

// IsLand reports whether the card's type line names the Land type.
func (c *Card) IsLand() bool {
	return strings.Contains(c.DisplayTypeLine(), "Land")
}

// ManaValue returns the converted mana cost rounded down to an integer.
func (c *Card) ManaValue() (int, bool) {
	cmc, ok := c.CMC.Get()
	if !ok || cmc < 0 {
		return 0, false
	}
	return int(math.Floor(cmc)), true
}

// Ruling is an official clarification attached to a card.
type Ruling struct {
	Object      string `json:"object,omitempty"`
	OracleID    string `json:"oracle_id,omitempty"`
	Source      string `json:"source,omitempty"`
	PublishedAt string `json:"published_at"`
	Comment     string `json:"comment"`
}

// RulingsResponse is the list envelope returned by a card's rulings URI.
type RulingsResponse struct {
	Object  string   `json:"object,omitempty"`
	HasMore bool     `json:"has_more,omitempty"`
	Data    []Ruling `json:"data"`
}

// DecodeRulings parses a rulings list document.
func DecodeRulings(data []byte) (*RulingsResponse, error) {
	var resp RulingsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
