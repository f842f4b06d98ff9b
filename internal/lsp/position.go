package lsp

import (
	"unicode/utf16"

	"github.com/mtgcode/mtgls/internal/searchquery"
)

// Editors address columns in UTF-16 code units; the scanners work in runes.

// toUTF16 converts a rune offset within line to a UTF-16 column.
func toUTF16(line string, runeOffset int) int {
	col := 0
	i := 0
	for _, r := range line {
		if i >= runeOffset {
			break
		}
		col += utf16.RuneLen(r)
		i++
	}
	return col
}

// toRunes converts a UTF-16 column within line to a rune offset. A column
// past the end clamps to the line length; one inside a surrogate pair rounds
// down to the rune it belongs to.
func toRunes(line string, col int) int {
	units := 0
	i := 0
	for _, r := range line {
		n := utf16.RuneLen(r)
		if units+n > col {
			return i
		}
		units += n
		i++
	}
	return i
}

// lineRange spans runes [start, end) of line on the given line number.
func lineRange(lineNum int, line string, start, end int) Range {
	return Range{
		Start: Position{Line: lineNum, Character: toUTF16(line, start)},
		End:   Position{Line: lineNum, Character: toUTF16(line, end)},
	}
}

func spanRange(lineNum int, line string, span searchquery.Span) Range {
	return lineRange(lineNum, line, span.Start, span.End)
}

// lineEnd is the rune length of line.
func lineEnd(line string) int {
	return len([]rune(line))
}
