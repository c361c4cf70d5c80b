package ui

import (
	"os"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// RenderMarkdown renders markdown for the terminal. It returns the input
// unchanged when stdout is not a terminal or rendering fails.
func RenderMarkdown(markdown string) string {
	if !IsInteractive() {
		return markdown
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(terminalWidth()),
	)
	if err != nil {
		return markdown
	}
	rendered, err := renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return rendered
}

// terminalWidth caps the wrap width at 100 and falls back to 80.
func terminalWidth() int {
	const (
		defaultWidth = 80
		maxWidth     = 100
	)
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return defaultWidth
	}
	return min(width, maxWidth)
}
