package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/taskfleet/internal/artifact"
	"github.com/josephgoksu/taskfleet/internal/history"
	"github.com/josephgoksu/taskfleet/internal/strategy"
	"github.com/josephgoksu/taskfleet/internal/task"
	"github.com/josephgoksu/taskfleet/internal/tracking"
	"github.com/josephgoksu/taskfleet/internal/ui"
)

// runCmd executes items in-process against one engine.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute items in-process with a parallel, batch or dag strategy",
	Long: `Runs the selected items against the configured engine and writes one
result artifact per item as it finishes.

Strategies:
  parallel  every item at once, at most --max-parallel in flight
  batch     fixed-size batches with --delay between them
  dag       dependency rounds; items whose dependencies cannot complete are blocked

Items that already have a completed result are skipped unless --rerun is set.
Exits 1 when any item fails or is blocked.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("strategy", "", "parallel, batch or dag (default dag)")
	runCmd.Flags().Int("max-parallel", 0, "items in flight at once for parallel and dag (default 4)")
	runCmd.Flags().Int("batch-size", 0, "items per batch for the batch strategy (default 5)")
	runCmd.Flags().Duration("delay", 0, "pause between batches (default 30s)")
	runCmd.Flags().String("engine", "", "engine adapter: claude-cli, chat or ollama (default claude-cli)")
	runCmd.Flags().Bool("rerun", false, "also run items that already completed")
	addFilterFlags(runCmd)

	bindFlag(runCmd, "strategy", "strategy.name")
	bindFlag(runCmd, "max-parallel", "strategy.maxParallel")
	bindFlag(runCmd, "batch-size", "strategy.batchSize")
	bindFlag(runCmd, "delay", "strategy.delay")
	bindFlag(runCmd, "engine", "engine.name")
}

func runRun(cmd *cobra.Command, _ []string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	filter, err := filterFromFlags(cmd)
	if err != nil {
		return err
	}
	rerun, _ := cmd.Flags().GetBool("rerun")
	out := cmd.OutOrStdout()
	ctx := cmd.Context()
	cfg := ws.cfg

	results, _ := artifact.ScanResults(ws.fs, ws.layout, ws.items)
	items, skipped, err := runScope(ws.items, results, filter, rerun)
	if err != nil {
		return fatal(err)
	}
	if skipped > 0 {
		fmt.Fprintf(out, "Skipping %s that already completed.\n", plural(skipped, "item"))
	}
	if len(items) == 0 {
		fmt.Fprintln(out, "Nothing to run.")
		return nil
	}

	opts, err := engineOptions(cfg, cfg.Engine.Name)
	if err != nil {
		return fatal(err)
	}
	eng, err := registry.New(cfg.Engine.Name, opts)
	if err != nil {
		return fatal(err)
	}
	if err := eng.Validate(ctx); err != nil {
		return fatal(fmt.Errorf("engine %s is not usable: %w", eng.Name(), err))
	}
	if err := ws.layout.Ensure(ws.fs); err != nil {
		return fatal(err)
	}

	progress := &runProgress{out: out, total: len(items)}
	strat, err := strategy.New(strategy.Config{
		Name:        cfg.Strategy.Name,
		MaxParallel: cfg.Strategy.MaxParallel,
		BatchSize:   cfg.Strategy.BatchSize,
		Delay:       cfg.Strategy.Delay,
		Hooks: strategy.Hooks{
			OnStart: progress.started,
			OnResult: func(res task.TaskResult) {
				if err := artifact.WriteResult(ws.fs, ws.layout, res); err != nil {
					slog.Error("write result", "task", res.TaskID, "error", err)
					progress.warn(fmt.Sprintf("could not write result for %s: %v", res.TaskID, err))
				}
				progress.finished(res)
			},
		},
	})
	if err != nil {
		return fatal(err)
	}

	fmt.Fprintf(out, "Running %s with %s strategy on %s...\n", plural(len(items), "item"), strat.Name(), eng.Name())
	started := time.Now()
	runResults := strat.Execute(ctx, items, eng)

	statuses := make(map[string]task.Status, len(runResults))
	for _, r := range runResults {
		statuses[r.TaskID] = r.Status
	}
	counts := task.CountStatuses(items, statuses)
	fmt.Fprintf(out, "\nDone in %s: %d completed, %d failed, %d blocked.\n",
		ui.FormatElapsed(time.Since(started)), counts.Completed, counts.Failed, counts.Blocked)
	fmt.Fprintln(out, "Update the tracking document and report with: taskfleet aggregate")

	code := ExitOK
	if counts.Failed+counts.Blocked > 0 {
		code = ExitFailed
	}
	recordRun(ctx, cfg, history.Run{
		Kind:      history.KindRun,
		Detail:    strat.Name() + "/" + eng.Name(),
		StartedAt: started,
		Counts:    counts,
		ExitCode:  code,
	}, runResults)
	if code != ExitOK {
		return itemsFailed
	}
	return nil
}

// runScope selects the items to execute. Dependencies outside the selection
// are dropped when they already completed; any other outside dependency is a
// validation error, since the strategy could never satisfy it.
func runScope(all []task.WorkItem, results map[string]artifact.Result, filter task.Filter, rerun bool) ([]task.WorkItem, int, error) {
	completed := map[string]bool{}
	for id, r := range results {
		if st, err := r.TaskStatus(); err == nil && st == task.StatusCompleted {
			completed[id] = true
		}
	}

	var selected []task.WorkItem
	skipped := 0
	for _, it := range filter.Apply(all) {
		if completed[it.ID] && !rerun {
			skipped++
			continue
		}
		selected = append(selected, it)
	}

	inScope := make(map[string]bool, len(selected))
	for _, it := range selected {
		inScope[it.ID] = true
	}
	for i, it := range selected {
		var deps []string
		for _, dep := range it.DependsOn {
			if inScope[dep] || !completed[dep] {
				deps = append(deps, dep)
			}
		}
		selected[i].DependsOn = deps
	}
	if _, err := task.Validate(selected); err != nil {
		return nil, skipped, fmt.Errorf("selected items cannot run on their own: %w", err)
	}
	return selected, skipped, nil
}

// runProgress prints one line per start and finish. Hooks fire from worker
// goroutines, so writes are serialized.
type runProgress struct {
	mu    sync.Mutex
	out   io.Writer
	total int
	done  int
}

func (p *runProgress) started(it task.WorkItem) {
	if crash != nil {
		crash.SetLastTask(it.ID)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%s %s %s\n", tracking.Glyph(task.StatusRunning), it.ID, it.Title())
}

func (p *runProgress) finished(res task.TaskResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
	line := fmt.Sprintf("%s %s [%d/%d]", tracking.Glyph(res.Status), res.TaskID, p.done, p.total)
	if note := ui.Truncate(res.Notes, 80); note != "" {
		line += " " + note
	}
	fmt.Fprintln(p.out, line)
}

func (p *runProgress) warn(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, "⚠️  "+msg)
}
