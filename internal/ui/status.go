package ui

import (
	"fmt"
	"strings"

	"github.com/josephgoksu/taskfleet/internal/reconcile"
)

// RenderStatus renders a snapshot once as a table, for the non-interactive
// status command. plain disables styling.
func RenderStatus(title string, s *reconcile.Snapshot, plain bool) string {
	var sb strings.Builder
	if title != "" {
		if plain {
			sb.WriteString(title + "\n\n")
		} else {
			sb.WriteString(StyleHeader.Render(title) + "\n\n")
		}
	}

	table := &Table{
		Headers:  []string{"ID", "Status", "Priority", "Category", "Task", "Note"},
		MaxWidth: 48,
		Plain:    plain,
	}
	for _, st := range s.Items {
		table.Rows = append(table.Rows, []string{
			st.Item.ID,
			StateGlyph(st.State) + " " + string(st.State),
			st.Item.Priority.String(),
			orDash(st.Item.Category),
			st.Item.Title(),
			strings.Join(strings.Fields(st.Note), " "),
		})
	}
	sb.WriteString(table.Render())

	var sum strings.Builder
	c := s.Counts
	sum.WriteString(fmt.Sprintf("Progress: %d/%d (%d%%)  completed %d  failed %d  blocked %d  running %d  pending %d",
		c.Completed, c.Total, c.Percent(), c.Completed, c.Failed, c.Blocked, c.Running, c.Pending))
	if c.Other > 0 {
		sum.WriteString(fmt.Sprintf("  attention %d", c.Other))
	}
	if d := s.Elapsed(); d > 0 {
		sum.WriteString("  elapsed " + FormatElapsed(d))
	}

	var cats []string
	for _, r := range s.Rollups {
		cats = append(cats, fmt.Sprintf("%s %d/%d", r.Category, r.Completed, r.Total))
	}
	if len(cats) > 0 {
		sum.WriteString("\nCategories: " + strings.Join(cats, " · "))
	}

	if plain {
		sb.WriteString("\n" + sum.String() + "\n")
		return sb.String()
	}
	border := ColorSuccess
	switch {
	case c.Failed+c.Blocked+c.Other > 0:
		border = ColorError
	case c.Completed < c.Total:
		border = ColorCyan
	}
	sb.WriteString(NewPanel("Summary", sum.String()).WithBorderColor(border).Render() + "\n")
	return sb.String()
}
