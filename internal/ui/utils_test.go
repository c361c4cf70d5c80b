package ui

import (
	"strings"
	"testing"
	"time"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{"empty", "", 10, ""},
		{"short string", "hello", 10, "hello"},
		{"exact length", "hello", 5, "hello"},
		{"needs truncation", "hello world", 8, "hello..."},
		{"very short max", "hello", 3, "hel"},
		{"zero max", "hello", 0, "hello"},
		{"multibyte", "héllo wörld", 8, "héllo..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Truncate(tt.input, tt.maxLen)
			if result != tt.expected {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, result, tt.expected)
			}
		})
	}
}

func TestWrapText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		width    int
		contains []string
	}{
		{"short text", "hello world", 20, []string{"hello world"}},
		{"needs wrap", "hello world foo bar", 10, []string{"hello", "world", "foo", "bar"}},
		{"zero width", "hello", 0, []string{"hello"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := WrapText(tt.input, tt.width)
			for _, substr := range tt.contains {
				if !strings.Contains(result, substr) {
					t.Errorf("WrapText(%q, %d) = %q, expected to contain %q", tt.input, tt.width, result, substr)
				}
			}
		})
	}
}

func TestPanel(t *testing.T) {
	t.Run("basic panel", func(t *testing.T) {
		result := NewPanel("Title", "Content").Render()
		if !strings.Contains(result, "Title") {
			t.Error("Panel should contain title")
		}
		if !strings.Contains(result, "Content") {
			t.Error("Panel should contain content")
		}
	})

	t.Run("panel without title", func(t *testing.T) {
		result := NewPanel("", "Content only").Render()
		if !strings.Contains(result, "Content only") {
			t.Error("Panel should contain content")
		}
	})

	t.Run("panel with custom color", func(t *testing.T) {
		result := NewPanel("Info", "Details").WithBorderColor(ColorCyan).Render()
		if !strings.Contains(result, "Info") {
			t.Error("Panel should contain title")
		}
	})
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0:00:00"},
		{-time.Second, "0:00:00"},
		{90*time.Second + 400*time.Millisecond, "0:01:30"},
		{3*time.Hour + 5*time.Minute + 7*time.Second, "3:05:07"},
	}
	for _, tt := range tests {
		if got := FormatElapsed(tt.in); got != tt.want {
			t.Errorf("FormatElapsed(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRenderMarkdownPassthroughWhenNotInteractive(t *testing.T) {
	if IsInteractive() {
		t.Skip("stdout is a terminal")
	}
	in := "# Report\n\n- item\n"
	if got := RenderMarkdown(in); got != in {
		t.Errorf("RenderMarkdown() = %q, want passthrough", got)
	}
}
