package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/taskfleet/internal/task"
	"github.com/josephgoksu/taskfleet/internal/ui"
)

// validateCmd loads the task set and reports its structure without running anything.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the task set for duplicate ids, missing dependencies and cycles",
	Long: `Loads the tracking document or manifest, validates it and prints the item
counts per category, a dependency-respecting order and the items that are
ready to start. Exits 2 when the task set is invalid.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		title := ws.title
		if title == "" {
			title = ws.cfg.Tasks
		}
		fmt.Fprintf(out, "✅ %s: %s, no problems found\n\n", title, plural(ws.graph.Len(), "item"))

		table := &ui.Table{Headers: []string{"Category", "Items", "Critical", "High", "Medium", "Low"}, Plain: !ui.IsInteractive()}
		cats := task.Categories(ws.items)
		for _, it := range ws.items {
			if it.Category == "" {
				cats = append(cats, "")
				break
			}
		}
		for _, cat := range cats {
			var n, crit, high, med, low int
			for _, it := range ws.items {
				if it.Category != cat {
					continue
				}
				n++
				switch it.Priority {
				case task.PriorityCritical:
					crit++
				case task.PriorityHigh:
					high++
				case task.PriorityLow:
					low++
				default:
					med++
				}
			}
			if cat == "" {
				cat = "(none)"
			}
			table.Rows = append(table.Rows, []string{cat, fmt.Sprint(n), fmt.Sprint(crit), fmt.Sprint(high), fmt.Sprint(med), fmt.Sprint(low)})
		}
		fmt.Fprintln(out, table.Render())

		fmt.Fprintf(out, "Order: %s\n", strings.Join(ws.graph.TopologicalOrder(), " → "))
		ready := ws.graph.ReadySet(nil, nil)
		fmt.Fprintf(out, "Ready now (%d): %s\n", len(ready), strings.Join(ready, ", "))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
