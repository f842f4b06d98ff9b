package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
)

// MarkdownRenderMargin is the left margin used for terminal markdown rendering.
const MarkdownRenderMargin = 2

// RenderMarkdown renders card text or rulings for the terminal, wrapped at width.
func RenderMarkdown(content string, width int) (string, error) {
	if width <= 0 {
		width = DefaultTermWidth
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStyles(cardMarkdownStyle()),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	rendered, err := r.Render(content)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(rendered, "\n") + "\n", nil
}

// cardMarkdownStyle styles the handful of elements card markdown uses:
// the name heading, the italic type line, bold labels and P/T, ruling
// bullets, and image links in search output.
func cardMarkdownStyle() ansi.StyleConfig {
	muted := ptr("8")
	var accent *string
	if color, ok := AccentColor(); ok {
		accent = ptr(color)
	}

	var s ansi.StyleConfig
	s.Document.BlockPrefix = "\n"
	s.Document.BlockSuffix = "\n"
	s.Document.Margin = ptr[uint](MarkdownRenderMargin)

	s.Heading.BlockSuffix = "\n"
	s.Heading.Bold = ptr(true)
	s.H1.Color = accent
	s.H2.Color = muted
	s.H2.Underline = ptr(true)
	s.H3.Color = accent

	s.Emph = ansi.StylePrimitive{Italic: ptr(true), Color: muted}
	s.Strong = ansi.StylePrimitive{Bold: ptr(true), Color: accent}

	s.List.LevelIndent = 2
	s.Item.BlockPrefix = "• "

	s.Link = ansi.StylePrimitive{Color: muted, Underline: ptr(true)}
	s.LinkText = ansi.StylePrimitive{Color: muted}
	s.ImageText = ansi.StylePrimitive{Color: muted, Format: "[{{.text}}]"}
	return s
}

func ptr[T any](v T) *T { return &v }
