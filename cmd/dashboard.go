package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/taskfleet/internal/reconcile"
	"github.com/josephgoksu/taskfleet/internal/ui"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Watch worker progress live",
	Long: `Opens a full-screen view of every item's state, derived from the result
artifacts, launch manifest and worker logs. It refreshes on a timer, whenever
a result or log changes, and on 'r'.

Keys: ↑/↓ select, ctrl+u/ctrl+d scroll the detail pane, l opens the log in
$TASKFLEET_PAGER / $PAGER / less, ? shows all keys, q quits. Quitting leaves
the workers running.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace()
		if err != nil {
			return err
		}
		rec := newReconciler(ws)
		if !ui.IsInteractive() {
			return printStatus(cmd, ws, rec)
		}

		opts := ui.DashboardOptions{Title: ws.title, Refresh: ws.cfg.Dashboard.Refresh}
		watcher, err := ui.NewWatcher(ws.layout.ResultsDir(), ws.layout.LogsDir())
		if err != nil {
			slog.Warn("file watching disabled", "error", err)
		} else {
			defer watcher.Close()
			opts.Changes = watcher.Changed()
		}
		if err := ui.RunDashboard(ui.NewDashboard(ws.fs, rec, opts)); err != nil {
			return fmt.Errorf("dashboard: %w", err)
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print every item's current state once",
	Long: `Prints the same view as the dashboard as a plain table and exits. Reading
is side-effect free and can run while workers are active.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace()
		if err != nil {
			return err
		}
		return printStatus(cmd, ws, newReconciler(ws))
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(statusCmd)
	dashboardCmd.Flags().Duration("refresh", 0, "refresh interval (default 5s)")
	for _, c := range []*cobra.Command{dashboardCmd, statusCmd} {
		c.Flags().Duration("liveness", 0, "log activity window that counts as running (default 60s)")
		bindFlag(c, "liveness", "dashboard.liveness")
	}
	bindFlag(dashboardCmd, "refresh", "dashboard.refresh")
}

func newReconciler(ws *workspace) *reconcile.Reconciler {
	return reconcile.New(ws.fs, ws.layout, ws.items, reconcile.WithLiveness(ws.cfg.Dashboard.Liveness))
}

func printStatus(cmd *cobra.Command, ws *workspace, rec *reconcile.Reconciler) error {
	snap, err := rec.Poll()
	if snap == nil {
		return fatal(err)
	}
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), ui.RenderStatus(ws.title, snap, !ui.IsInteractive()))
	return nil
}
