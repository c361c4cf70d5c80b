package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/josephgoksu/taskfleet/internal/reconcile"
	"github.com/josephgoksu/taskfleet/internal/task"
	"github.com/josephgoksu/taskfleet/internal/tracking"
)

var (
	// Colors
	ColorPrimary   = lipgloss.Color("205") // Pink
	ColorSecondary = lipgloss.Color("241") // Gray
	ColorSuccess   = lipgloss.Color("42")  // Green
	ColorError     = lipgloss.Color("160") // Red
	ColorWarning   = lipgloss.Color("214") // Orange/Yellow
	ColorText      = lipgloss.Color("252") // White/Gray
	ColorCyan      = lipgloss.Color("87")  // Cyan for running
	ColorBlue      = lipgloss.Color("75")  // Blue for blocked
	ColorHighlight = lipgloss.Color("236") // Selection background

	// Base Styles
	StyleTitle   = lipgloss.NewStyle().Foreground(ColorText).Bold(true)
	StyleSubtle  = lipgloss.NewStyle().Foreground(ColorSecondary)
	StylePrimary = lipgloss.NewStyle().Foreground(ColorPrimary)
	StyleSuccess = lipgloss.NewStyle().Foreground(ColorSuccess)
	StyleError   = lipgloss.NewStyle().Foreground(ColorError)
	StyleWarning = lipgloss.NewStyle().Foreground(ColorWarning)
	StyleText    = lipgloss.NewStyle().Foreground(ColorText)
	StyleRunning = lipgloss.NewStyle().Foreground(ColorCyan)
	StyleBlocked = lipgloss.NewStyle().Foreground(ColorBlue)

	// Components
	StyleHeader = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true).
			Padding(0, 1)

	StyleSectionTitle = lipgloss.NewStyle().
				Foreground(ColorPrimary).
				Bold(true).
				Underline(true)

	StyleSelected = lipgloss.NewStyle().Background(ColorHighlight).Bold(true)

	// Detail pane around the selected item
	StyleDetailBox = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorSecondary).
			Padding(0, 1)
)

// Icon returns a styled icon string
func Icon(icon string, style lipgloss.Style) string {
	return style.Render(icon)
}

// StateGlyph is the list marker for a presentation state. Task states reuse
// the tracking document glyphs.
func StateGlyph(s reconcile.State) string {
	switch s {
	case reconcile.StateStalled:
		return "⏳"
	case reconcile.StateLaunchFailed:
		return "⛔"
	case reconcile.StateError:
		return "⚠️"
	default:
		return tracking.Glyph(task.Status(s))
	}
}

// StateStyle colors a presentation state.
func StateStyle(s reconcile.State) lipgloss.Style {
	switch s {
	case reconcile.StateCompleted:
		return StyleSuccess
	case reconcile.StateFailed, reconcile.StateLaunchFailed, reconcile.StateError:
		return StyleError
	case reconcile.StateBlocked:
		return StyleBlocked
	case reconcile.StateRunning:
		return StyleRunning
	case reconcile.StateStalled:
		return StyleWarning
	default:
		return StyleSubtle
	}
}

// PriorityStyle colors a priority label.
func PriorityStyle(p task.Priority) lipgloss.Style {
	switch p {
	case task.PriorityCritical:
		return StyleError.Bold(true)
	case task.PriorityHigh:
		return StyleWarning
	case task.PriorityLow:
		return StyleSubtle
	default:
		return StyleText
	}
}
