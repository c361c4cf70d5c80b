package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/taskfleet/internal/history"
	"github.com/josephgoksu/taskfleet/internal/launcher"
	"github.com/josephgoksu/taskfleet/internal/reconcile"
	"github.com/josephgoksu/taskfleet/internal/task"
	"github.com/josephgoksu/taskfleet/internal/ui"
)

// launchCmd starts one detached terminal worker per eligible item.
var launchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Start detached terminal workers for every ready item",
	Long: `Writes a task spec and prompt for each eligible item and starts a worker
in its own terminal (tmux window, terminal tab or background process). Workers
keep running after taskfleet exits; follow them with 'taskfleet dashboard'.

An item is eligible when it passes the filters, has no terminal result yet, has
no worker from an earlier launch that is still pending, running or stalled, and
every dependency already has a completed result. --relaunch starts such items
again; use it only once the earlier worker is gone.`,
	Args: cobra.NoArgs,
	RunE: runLaunch,
}

func init() {
	rootCmd.AddCommand(launchCmd)
	launchCmd.Flags().Int("batch-size", 0, "workers per batch (default 5)")
	launchCmd.Flags().Duration("delay", 0, "pause between batches (default 30s)")
	launchCmd.Flags().Duration("launch-delay", 0, "pause between launches within a batch (default 2s)")
	launchCmd.Flags().String("terminal", "", "terminal flavor to use instead of detection (tmux, gnome-terminal, iterm, wt, default, ...)")
	launchCmd.Flags().String("backend", "", "command each worker runs with its prompt on stdin")
	launchCmd.Flags().Bool("dry-run", false, "print the launch plan without writing or starting anything")
	launchCmd.Flags().Bool("relaunch", false, "start items whose earlier worker is still pending, running or stalled")
	launchCmd.Flags().Duration("liveness", 0, "log activity window that counts as running (default 60s)")
	bindFlag(launchCmd, "liveness", "dashboard.liveness")
	addFilterFlags(launchCmd)

	bindFlag(launchCmd, "batch-size", "launcher.batchSize")
	bindFlag(launchCmd, "delay", "launcher.batchPause")
	bindFlag(launchCmd, "launch-delay", "launcher.launchDelay")
	bindFlag(launchCmd, "terminal", "launcher.terminal")
	bindFlag(launchCmd, "backend", "launcher.backend")
}

func runLaunch(cmd *cobra.Command, _ []string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	filter, err := filterFromFlags(cmd)
	if err != nil {
		return err
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	relaunch, _ := cmd.Flags().GetBool("relaunch")
	out := cmd.OutOrStdout()

	snap, err := newReconciler(ws).Poll()
	if snap == nil {
		return fatal(err)
	}
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
	}
	for _, st := range snap.Items {
		if st.State == reconcile.StateError {
			fmt.Fprintf(out, "⚠️  ignoring unreadable result for %s: %s\n", st.Item.ID, st.Note)
		}
	}
	eligible, skipped := launcher.Eligible(snap, filter, relaunch)
	if verbose {
		for _, id := range sortedKeys(skipped) {
			fmt.Fprintf(out, "  skip %s: %s\n", id, skipped[id])
		}
	}
	if len(eligible) == 0 {
		fmt.Fprintf(out, "Nothing to launch (%s skipped).\n", plural(len(skipped), "item"))
		return nil
	}

	lc := ws.cfg.Launcher
	started := time.Now()
	l := launcher.New(ws.fs, launcher.Options{
		Layout:      ws.layout,
		Backend:     lc.Backend,
		Terminal:    lc.Terminal,
		BatchSize:   lc.BatchSize,
		LaunchDelay: lc.LaunchDelay,
		BatchPause:  lc.BatchPause,
		DryRun:      dryRun,
		WorkDir:     workDir(),
	})
	if !dryRun {
		fmt.Fprintf(out, "Launching %s in batches of %d...\n", plural(len(eligible), "worker"), lc.BatchSize)
	}
	report, err := l.Launch(cmd.Context(), eligible)
	if err != nil {
		return fatal(err)
	}

	printLaunchReport(cmd, report)

	failed := len(report.Errors())
	code := ExitOK
	if failed > 0 {
		code = ExitFailed
	}
	if !dryRun {
		recordRun(cmd.Context(), ws.cfg, history.Run{
			ID:        report.RunID,
			Kind:      history.KindLaunch,
			Detail:    report.Terminal,
			StartedAt: started,
			Counts:    task.Counts{Total: len(report.Launches), Running: report.Started(), Failed: failed},
			ExitCode:  code,
		}, nil)
	}
	if code != ExitOK {
		return itemsFailed
	}
	return nil
}

func printLaunchReport(cmd *cobra.Command, report *launcher.Report) {
	out := cmd.OutOrStdout()
	if report.DryRun {
		fmt.Fprintf(out, "Dry run (%s terminal): %s would start\n\n", report.Terminal, plural(len(report.Launches), "worker"))
		for _, l := range report.Launches {
			fmt.Fprintf(out, "%s  %s\n    %s\n", l.Item.ID, l.Item.Title(), strings.Join(l.Command, " "))
		}
		return
	}

	table := &ui.Table{Headers: []string{"ID", "Task", "Log"}, Plain: !ui.IsInteractive()}
	for _, l := range report.Launches {
		logCol := l.LogPath
		if l.Err != nil {
			logCol = "❌ " + l.Err.Err.Error()
		}
		table.Rows = append(table.Rows, []string{l.Item.ID, l.Item.Title(), logCol})
	}
	fmt.Fprintln(out, table.Render())
	fmt.Fprintf(out, "Started %d/%d workers via %s (run %s).\n", report.Started(), len(report.Launches), report.Terminal, report.RunID)
	if n := len(report.Errors()); n > 0 {
		fmt.Fprintf(out, "%s could not be launched; see launch.json.\n", plural(n, "worker"))
	}
	fmt.Fprintln(out, "Follow progress with: taskfleet dashboard")
}
