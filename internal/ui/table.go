package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Table renders rows as fixed-width terminal columns. Widths are measured in
// terminal cells, so status glyphs line up.
type Table struct {
	Headers  []string
	Rows     [][]string
	MaxWidth int // Max width per column (0 = auto)
	// Plain drops all styling, for piped output.
	Plain bool
}

// ColumnWidths calculates column widths from headers and content.
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

// Render outputs the table to a string.
func (t *Table) Render() string {
	if len(t.Headers) == 0 {
		return ""
	}

	widths := t.ColumnWidths()
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	cellStyle := lipgloss.NewStyle().Foreground(ColorText)
	dimStyle := lipgloss.NewStyle().Foreground(ColorSecondary)
	if t.Plain {
		headerStyle, cellStyle, dimStyle = lipgloss.NewStyle(), lipgloss.NewStyle(), lipgloss.NewStyle()
	}

	var sb strings.Builder
	var headerCells []string
	for i, h := range t.Headers {
		headerCells = append(headerCells, headerStyle.Render(padRight(h, widths[i])))
	}
	sb.WriteString(strings.TrimRight(" "+strings.Join(headerCells, "  "), " ") + "\n")

	var sepParts []string
	for _, w := range widths {
		sepParts = append(sepParts, dimStyle.Render(strings.Repeat("─", w)))
	}
	sb.WriteString(" " + strings.Join(sepParts, "──") + "\n")

	for _, row := range t.Rows {
		var cells []string
		for i := range t.Headers {
			val := ""
			if i < len(row) {
				val = row[i]
			}
			val = truncateWidth(val, widths[i])
			cells = append(cells, cellStyle.Render(padRight(val, widths[i])))
		}
		sb.WriteString(strings.TrimRight(" "+strings.Join(cells, "  "), " ") + "\n")
	}
	return sb.String()
}

// padRight pads s with spaces to width terminal cells.
func padRight(s string, width int) string {
	w := lipgloss.Width(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

// truncateWidth cuts s to at most width cells, ending in an ellipsis.
func truncateWidth(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	var sb strings.Builder
	used := 0
	for _, r := range s {
		rw := lipgloss.Width(string(r))
		if used+rw > width-1 {
			break
		}
		sb.WriteRune(r)
		used += rw
	}
	return sb.String() + "…"
}
