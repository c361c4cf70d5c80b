package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/taskfleet/internal/history"
	"github.com/josephgoksu/taskfleet/internal/tracking"
	"github.com/josephgoksu/taskfleet/internal/ui"
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recent runs, launches and aggregations",
	Long: `Lists the most recent invocations recorded in the run ledger
(<workspace>/history.db). Pass a run id to see its per-item outcomes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appCfg
		out := cmd.OutOrStdout()
		if cfg.History.Disabled {
			fmt.Fprintln(out, "Run history is disabled (history.disabled).")
			return nil
		}
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return fatal(err)
		}
		defer store.Close()

		plain := !ui.IsInteractive()
		if len(args) == 1 {
			items, err := store.Items(cmd.Context(), args[0])
			if err != nil {
				return fatal(err)
			}
			if len(items) == 0 {
				fmt.Fprintf(out, "No item outcomes recorded for run %s.\n", args[0])
				return nil
			}
			table := &ui.Table{Headers: []string{"ID", "Status", "Engine", "Duration", "Notes"}, MaxWidth: 60, Plain: plain}
			for _, it := range items {
				table.Rows = append(table.Rows, []string{
					it.TaskID,
					tracking.Glyph(it.Status) + " " + string(it.Status),
					it.Engine,
					ui.FormatElapsed(it.Duration),
					it.Notes,
				})
			}
			fmt.Fprint(out, table.Render())
			return nil
		}

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := store.Recent(cmd.Context(), limit)
		if err != nil {
			return fatal(err)
		}
		if len(runs) == 0 {
			fmt.Fprintln(out, "No runs recorded yet.")
			return nil
		}
		table := &ui.Table{Headers: []string{"Run", "Kind", "Detail", "Started", "Took", "Done", "Failed", "Blocked", "Exit"}, MaxWidth: 40, Plain: plain}
		for _, r := range runs {
			table.Rows = append(table.Rows, []string{
				r.ID,
				r.Kind,
				r.Detail,
				r.StartedAt.Local().Format("2006-01-02 15:04"),
				ui.FormatElapsed(r.FinishedAt.Sub(r.StartedAt)),
				fmt.Sprintf("%d/%d", r.Counts.Completed, r.Counts.Total),
				fmt.Sprint(r.Counts.Failed),
				fmt.Sprint(r.Counts.Blocked),
				fmt.Sprint(r.ExitCode),
			})
		}
		fmt.Fprint(out, table.Render())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().Int("limit", 20, "number of runs to show")
}
