package strategy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/josephgoksu/taskfleet/internal/engine"
	"github.com/josephgoksu/taskfleet/internal/task"
)

// DAG runs items in rounds. Each round is the ready set of the previous
// rounds' completions, run through a MaxParallel gate (0 = unbounded), with a
// barrier before readiness is recomputed. When nothing is ready but work
// remains, every remaining item is Blocked and the run ends.
type DAG struct {
	MaxParallel int
	Hooks       Hooks
}

func (d *DAG) Name() string { return NameDAG }

func (d *DAG) Execute(ctx context.Context, items []task.WorkItem, eng engine.Engine) []task.TaskResult {
	g := task.NewGraph(items)
	state := NewRunState(items)

	for round := 1; ; round++ {
		completed, started := state.Partition()
		ready := g.ReadySet(completed, started)

		if len(ready) == 0 {
			d.blockRemaining(g, state, completed)
			break
		}

		slog.Info("dag round", "round", round, "ready", ready)
		batch := make([]task.WorkItem, 0, len(ready))
		for _, id := range ready {
			it, _ := g.Item(id)
			batch = append(batch, it)
		}
		runGated(ctx, state, d.Hooks, eng, batch, d.MaxParallel)
	}

	return state.Results(items)
}

func (d *DAG) blockRemaining(g *task.Graph, state *RunState, completed map[string]bool) {
	for _, it := range g.Items() {
		if state.Status(it.ID) != task.StatusPending {
			continue
		}
		reason := blockReason(g, state, it, completed)
		res := task.Blocked(it.ID, reason)
		res.FilesCreated = []string{}
		record(state, d.Hooks, res)
		slog.Info("task blocked", "task", it.ID, "reason", reason)
	}
}

// blockReason names the first dependency that kept it from becoming ready.
func blockReason(g *task.Graph, state *RunState, it task.WorkItem, completed map[string]bool) string {
	for _, dep := range it.DependsOn {
		if completed[dep] {
			continue
		}
		if _, ok := g.Item(dep); !ok {
			return fmt.Sprintf("dependency %s does not exist", dep)
		}
		switch st := state.Status(dep); st {
		case task.StatusFailed:
			return fmt.Sprintf("dependency %s failed", dep)
		case task.StatusBlocked:
			if root, ok := failedRoot(g, state, it.ID); ok {
				return fmt.Sprintf("dependency %s is blocked by failed %s", dep, root)
			}
			return fmt.Sprintf("dependency %s is blocked", dep)
		case task.StatusPending:
			return fmt.Sprintf("dependency %s never became ready", dep)
		default:
			return fmt.Sprintf("dependency %s did not complete (%s)", dep, st)
		}
	}
	return "no ready path"
}

// failedRoot returns the first failed item among id's transitive dependencies.
func failedRoot(g *task.Graph, state *RunState, id string) (string, bool) {
	for _, dep := range g.TransitiveDependencies(id) {
		if state.Status(dep) == task.StatusFailed {
			return dep, true
		}
	}
	return "", false
}
