package ui

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// IsInteractive checks if stdout is a terminal.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Panel is a bordered box with an optional title.
type Panel struct {
	Title       string
	Content     string
	BorderColor lipgloss.Color
}

// NewPanel creates a new panel with default styling.
func NewPanel(title, content string) *Panel {
	return &Panel{
		Title:       title,
		Content:     content,
		BorderColor: ColorSecondary,
	}
}

// WithBorderColor sets the border color and returns the panel.
func (p *Panel) WithBorderColor(color lipgloss.Color) *Panel {
	p.BorderColor = color
	return p
}

// Render returns the styled panel as a string.
func (p *Panel) Render() string {
	style := StyleDetailBox.BorderForeground(p.BorderColor)
	content := p.Content
	if p.Title != "" {
		content = StyleSectionTitle.Render(p.Title) + "\n" + p.Content
	}
	return style.Render(content)
}

// Truncate truncates a string to maxLen characters, adding ellipsis if needed.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// WrapText wraps text to the specified width.
func WrapText(text string, width int) string {
	if width <= 0 {
		return text
	}

	var result strings.Builder
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			result.WriteString("\n")
		}
		if len(line) <= width {
			result.WriteString(line)
			continue
		}

		currentLine := ""
		for _, word := range strings.Fields(line) {
			switch {
			case currentLine == "":
				currentLine = word
			case len(currentLine)+1+len(word) <= width:
				currentLine += " " + word
			default:
				result.WriteString(currentLine + "\n")
				currentLine = word
			}
		}
		result.WriteString(currentLine)
	}
	return result.String()
}

// FormatElapsed renders d as h:mm:ss.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Truncate(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}
