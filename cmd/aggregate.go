package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/taskfleet/internal/aggregate"
	"github.com/josephgoksu/taskfleet/internal/history"
	"github.com/josephgoksu/taskfleet/internal/ui"
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Fold result artifacts into the tracking document and write the report",
	Long: `Reads every result artifact, rewrites the status glyphs, category counters
and progress line of the tracking document (after a timestamped backup) and
writes a markdown execution report.

The document is only touched when a status actually changes, so running
aggregate repeatedly is safe. Manifests (YAML/TOML/JSON) are never rewritten;
only the report is produced for them.`,
	Args: cobra.NoArgs,
	RunE: runAggregate,
}

func init() {
	rootCmd.AddCommand(aggregateCmd)
	aggregateCmd.Flags().String("report", "", "report path (default <workspace>/REPORT.md)")
	aggregateCmd.Flags().Bool("no-update", false, "write the report but leave the tracking document alone")
	aggregateCmd.Flags().Bool("print", false, "also print the report")
	bindFlag(aggregateCmd, "report", "report.path")
}

func runAggregate(cmd *cobra.Command, _ []string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	noUpdate, _ := cmd.Flags().GetBool("no-update")
	printReport, _ := cmd.Flags().GetBool("print")
	out := cmd.OutOrStdout()
	started := time.Now()

	sum, err := aggregate.Run(cmd.Context(), ws.fs, ws.items, aggregate.Options{
		Layout:       ws.layout,
		TrackingPath: ws.trackingPath,
		ReportPath:   ws.cfg.Report.Path,
		Title:        ws.title,
		NoUpdate:     noUpdate,
		LockTimeout:  ws.cfg.Report.LockTimeout,
	})
	if sum == nil {
		return fatal(err)
	}

	for _, id := range sortedKeys(sum.Malformed) {
		fmt.Fprintf(out, "⚠️  unreadable result for %s: %v\n", id, sum.Malformed[id])
	}
	c := sum.Counts
	fmt.Fprintf(out, "Progress: %d/%d (%d%%): %d completed, %d failed, %d blocked, %d pending\n",
		c.Completed, c.Total, c.Percent(), c.Completed, c.Failed, c.Blocked, c.Pending)
	fmt.Fprintf(out, "Report: %s\n", sum.ReportPath)

	var writeErr *aggregate.WriteError
	switch {
	case errors.As(err, &writeErr):
		if sum.BackupPath != "" {
			fmt.Fprintf(out, "Backup of the current document: %s\n", sum.BackupPath)
		}
		return fatal(fmt.Errorf("tracking document not updated: %w", err))
	case err != nil:
		return fatal(err)
	case ws.trackingPath == "":
	case noUpdate:
		fmt.Fprintln(out, "Tracking document left unchanged (--no-update).")
	case sum.Updated:
		fmt.Fprintf(out, "Updated %s (backup: %s)\n", ws.trackingPath, sum.BackupPath)
	default:
		fmt.Fprintf(out, "%s already up to date.\n", ws.trackingPath)
	}

	if printReport {
		fmt.Fprintln(out)
		fmt.Fprint(out, ui.RenderMarkdown(string(sum.Report)))
	}

	code := ExitOK
	if c.Failed+c.Blocked > 0 {
		code = ExitFailed
	}
	recordRun(cmd.Context(), ws.cfg, history.Run{
		Kind:      history.KindAggregate,
		Detail:    sum.ReportPath,
		StartedAt: started,
		Counts:    c,
		ExitCode:  code,
	}, nil)
	if code != ExitOK {
		return itemsFailed
	}
	return nil
}
