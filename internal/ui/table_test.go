package ui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTable_ColumnWidths(t *testing.T) {
	table := &Table{
		Headers: []string{"ID", "Name", "Status"},
		Rows: [][]string{
			{"1.1", "Config loader", "✅ completed"},
			{"1.2", "Logger with a longer name", "⬜ pending"},
		},
	}

	widths := table.ColumnWidths()

	assert.Equal(t, 3, widths[0])
	assert.Equal(t, 25, widths[1])
	assert.Equal(t, 12, widths[2]) // glyph is two cells wide
}

func TestTable_ColumnWidths_MaxWidth(t *testing.T) {
	table := &Table{
		Headers:  []string{"ID", "Description"},
		Rows:     [][]string{{"a", "This is a very long description that should be truncated"}},
		MaxWidth: 20,
	}

	widths := table.ColumnWidths()

	assert.Equal(t, 2, widths[0])
	assert.Equal(t, 20, widths[1])
}

func TestTable_RenderPlain(t *testing.T) {
	table := &Table{
		Headers: []string{"ID", "Name"},
		Rows:    [][]string{{"1", "Alice"}, {"2", "Bob"}},
		Plain:   true,
	}

	lines := strings.Split(strings.TrimRight(table.Render(), "\n"), "\n")
	assert.Equal(t, []string{
		" ID  Name",
		" ─────────",
		" 1   Alice",
		" 2   Bob",
	}, lines)
}

func TestTable_Render_Empty(t *testing.T) {
	assert.Empty(t, (&Table{}).Render())
}

func TestTable_Render_Truncation(t *testing.T) {
	table := &Table{
		Headers:  []string{"Text"},
		Rows:     [][]string{{"This is way too long"}},
		MaxWidth: 10,
		Plain:    true,
	}

	assert.Contains(t, table.Render(), "This is w…")
}

func TestTruncateWidth(t *testing.T) {
	assert.Equal(t, "short", truncateWidth("short", 10))
	assert.Equal(t, "…", truncateWidth("abc", 1))
	assert.Equal(t, "✅ …", truncateWidth("✅ done", 4))
}

func TestPadRight(t *testing.T) {
	tests := []struct {
		input    string
		width    int
		expected string
	}{
		{"abc", 5, "abc  "},
		{"hello", 5, "hello"},
		{"longer", 3, "longer"},
		{"", 3, "   "},
		{"✅", 4, "✅  "},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.expected, padRight(tc.input, tc.width))
	}
}

func TestTable_Render_RowsHaveFewerColumns(t *testing.T) {
	table := &Table{
		Headers: []string{"ID", "Name", "Status"},
		Rows:    [][]string{{"1", "Alice"}},
	}

	output := table.Render()

	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "Alice")
	lines := strings.Split(strings.TrimSpace(output), "\n")
	assert.Equal(t, 3, len(lines))
}
