package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Table renders rows with space alignment and no borders. Column widths
// are measured in terminal cells.
type Table struct {
	rows       [][]string
	colWidths  []int
	colPadding int
}

// NewTable creates a new table with the specified number of columns
func NewTable(cols int) *Table {
	return &Table{
		colWidths:  make([]int, cols),
		colPadding: 2,
	}
}

// AddRow adds a row to the table
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.colWidths))
	for i := 0; i < len(t.colWidths) && i < len(cells); i++ {
		row[i] = cells[i]
		if w := lipgloss.Width(cells[i]); w > t.colWidths[i] {
			t.colWidths[i] = w
		}
	}
	t.rows = append(t.rows, row)
}

// String renders the table as a string
func (t *Table) String() string {
	if len(t.rows) == 0 {
		return ""
	}

	var sb strings.Builder
	padding := strings.Repeat(" ", t.colPadding)

	for _, row := range t.rows {
		for i, cell := range row {
			if i > 0 {
				sb.WriteString(padding)
			}
			sb.WriteString(cell)
			if i < len(row)-1 {
				sb.WriteString(strings.Repeat(" ", t.colWidths[i]-lipgloss.Width(cell)))
			}
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// CardRow is one row of a card results table.
type CardRow struct {
	Name     string
	ManaCost string
	TypeLine string
	Price    string
}

// CardTable renders search results with muted row separators, sized to
// the display width.
func CardTable(display *DisplayContext, rows []CardRow) string {
	if len(rows) == 0 {
		return ""
	}

	numWidth := len(FormatRowNum(len(rows), len(rows)))
	nameWidth := max(20, display.AvailableWidth(2)*2/5)

	data := make([][]string, len(rows))
	for i, r := range rows {
		data[i] = []string{FormatRowNum(i+1, len(rows)), Truncate(r.Name, nameWidth), r.ManaCost, r.TypeLine, r.Price}
	}

	return table.New().
		Border(lipgloss.Border{Middle: "─", Top: "─", Bottom: "─"}).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderRow(true).
		BorderColumn(false).
		BorderStyle(Muted).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := lipgloss.NewStyle().PaddingRight(2)
			switch col {
			case 0:
				return style.Width(numWidth + 2).Align(lipgloss.Right).Inherit(Muted)
			case 3:
				return style.Inherit(Muted)
			case 4:
				return style.Align(lipgloss.Right).PaddingRight(0)
			}
			return style
		}).
		Rows(data...).
		Render()
}

// Truncate shortens s to maxLen cells, adding an ellipsis when cut.
func Truncate(s string, maxLen int) string {
	if lipgloss.Width(s) <= maxLen {
		return s
	}
	if maxLen <= 1 {
		return "…"
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > maxLen {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}

// FormatRowNum formats a row number with consistent width.
func FormatRowNum(num, maxNum int) string {
	width := len(fmt.Sprintf("%d", maxNum))
	if width < 2 {
		width = 2
	}
	return fmt.Sprintf("%*d", width, num)
}
