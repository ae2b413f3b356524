package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Table renders rows as fixed-width terminal columns.
type Table struct {
	Headers  []string
	Rows     [][]string
	MaxWidth int // per column, 0 = unbounded
}

// ColumnWidths returns the display width of each column.
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

// Render returns the table as a string; empty when there are no headers.
func (t *Table) Render() string {
	if len(t.Headers) == 0 {
		return ""
	}
	widths := t.ColumnWidths()
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)

	var sb strings.Builder
	cells := make([]string, len(t.Headers))
	for i, h := range t.Headers {
		cells[i] = headerStyle.Render(fit(h, widths[i]))
	}
	sb.WriteString(" " + strings.Join(cells, "  ") + "\n")

	seps := make([]string, len(widths))
	for i, w := range widths {
		seps[i] = StyleSubtle.Render(strings.Repeat("─", w))
	}
	sb.WriteString(" " + strings.Join(seps, "──") + "\n")

	for _, row := range t.Rows {
		for i := range t.Headers {
			val := ""
			if i < len(row) {
				val = row[i]
			}
			cells[i] = StyleText.Render(fit(val, widths[i]))
		}
		sb.WriteString(" " + strings.Join(cells, "  ") + "\n")
	}
	return sb.String()
}

// fit truncates s to width runes with an ellipsis, then pads it.
func fit(s string, width int) string {
	r := []rune(s)
	if len(r) > width {
		if width <= 1 {
			return string([]rune("…")[:width])
		}
		s = string(r[:width-1]) + "…"
	}
	if pad := width - lipgloss.Width(s); pad > 0 {
		s += strings.Repeat(" ", pad)
	}
	return s
}

// ShortID shortens an identifier for display, keeping any "kind-" prefix
// whole so the result can still be typed back.
func ShortID(id string) string {
	prefix, rest := "", id
	if i := strings.LastIndexByte(id, '-'); i >= 0 {
		prefix, rest = id[:i+1], id[i+1:]
	}
	if len(rest) > 8 {
		rest = rest[:8]
	}
	return prefix + rest
}
