package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Table renders rows as aligned terminal columns.
type Table struct {
	Headers  []string
	Rows     [][]string
	MaxWidth int // per column, 0 for no limit
}

// ColumnWidths returns the display width of every column.
func (t *Table) ColumnWidths() []int {
	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], lipgloss.Width(cell))
			}
		}
	}
	if t.MaxWidth > 0 {
		for i := range widths {
			widths[i] = min(widths[i], t.MaxWidth)
		}
	}
	return widths
}

// Render returns the table as text, one line per row.
func (t *Table) Render() string {
	if len(t.Headers) == 0 {
		return ""
	}
	widths := t.ColumnWidths()
	header := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)

	var sb strings.Builder
	cells := make([]string, len(t.Headers))
	for i, h := range t.Headers {
		cells[i] = header.Render(pad(h, widths[i]))
	}
	sb.WriteString(strings.Join(cells, "  ") + "\n")

	for i, w := range widths {
		cells[i] = StyleSubtle.Render(strings.Repeat("─", w))
	}
	sb.WriteString(strings.Join(cells, "  ") + "\n")

	for _, row := range t.Rows {
		for i := range t.Headers {
			v := ""
			if i < len(row) {
				v = row[i]
			}
			cells[i] = StyleText.Render(pad(clip(v, widths[i]), widths[i]))
		}
		sb.WriteString(strings.Join(cells, "  ") + "\n")
	}
	return sb.String()
}

func pad(s string, width int) string {
	if n := lipgloss.Width(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

// clip shortens s to width display cells, marking the cut with an ellipsis.
func clip(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	if width <= 1 {
		return "…"
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r))+1 > width {
		r = r[:len(r)-1]
	}
	return string(r) + "…"
}
