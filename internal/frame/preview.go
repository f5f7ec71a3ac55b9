package frame

import (
	"strconv"
	"strings"
)

// Preview renders the first n data rows as an aligned, index-prefixed text
// table. This string is the only view of a catalog dataset the matching
// backend ever sees, so the format favors readability over compactness:
// one header line, one line per row, columns padded to a shared width.
func (f *Frame) Preview(n int) string {
	head := f.Head(n)

	idxWidth := len(strconv.Itoa(maxInt(head.NumRows()-1, 0)))

	widths := make([]int, len(head.Columns))
	for i, c := range head.Columns {
		widths[i] = len([]rune(c))
	}
	for _, row := range head.Rows {
		for i, v := range row {
			if i < len(widths) && len([]rune(v)) > widths[i] {
				widths[i] = len([]rune(v))
			}
		}
	}

	var b strings.Builder

	// Header line, indented past the index column.
	b.WriteString(strings.Repeat(" ", idxWidth))
	for i, c := range head.Columns {
		b.WriteString("  ")
		b.WriteString(padLeft(c, widths[i]))
	}
	b.WriteByte('\n')

	for ri, row := range head.Rows {
		b.WriteString(padLeft(strconv.Itoa(ri), idxWidth))
		for i, v := range row {
			if i >= len(widths) {
				break
			}
			b.WriteString("  ")
			b.WriteString(padLeft(v, widths[i]))
		}
		b.WriteByte('\n')
	}

	return strings.TrimRight(b.String(), "\n")
}

func padLeft(s string, w int) string {
	if n := w - len([]rune(s)); n > 0 {
		return strings.Repeat(" ", n) + s
	}
	return s
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
