package render

import (
	"errors"
	"strings"
)

var ErrEmptyTable = errors.New("table has no cells")

// TableMarkdown writes rows as a pipe table. The first row is the header;
// short rows are padded with empty cells.
func TableMarkdown(rows [][]string) (string, error) {
	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}
	if width == 0 {
		return "", ErrEmptyTable
	}

	var b strings.Builder
	writeRow := func(row []string) {
		b.WriteByte('|')
		for i := range width {
			cell := ""
			if i < len(row) {
				cell = escapeCell(row[i])
			}
			b.WriteByte(' ')
			b.WriteString(cell)
			b.WriteString(" |")
		}
		b.WriteByte('\n')
	}

	writeRow(rows[0])
	b.WriteByte('|')
	for range width {
		b.WriteString(" --- |")
	}
	b.WriteByte('\n')
	for _, row := range rows[1:] {
		writeRow(row)
	}
	return b.String(), nil
}

func escapeCell(cell string) string {
	cell = strings.ReplaceAll(cell, "\n", " ")
	return strings.ReplaceAll(cell, "|", `\|`)
}
