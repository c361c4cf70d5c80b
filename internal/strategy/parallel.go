package strategy

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/josephgoksu/taskfleet/internal/engine"
	"github.com/josephgoksu/taskfleet/internal/task"
)

// Parallel admits items through a gate of MaxParallel slots. An item starts as
// soon as a slot frees; completion order is unspecified.
type Parallel struct {
	MaxParallel int
	Hooks       Hooks
}

func (p *Parallel) Name() string { return NameParallel }

func (p *Parallel) Execute(ctx context.Context, items []task.WorkItem, eng engine.Engine) []task.TaskResult {
	state := NewRunState(items)
	runGated(ctx, state, p.Hooks, eng, items, p.MaxParallel)
	return state.Results(items)
}

// runGated runs items with at most limit in flight (limit < 1 means no limit)
// and returns once every one of them has returned.
func runGated(ctx context.Context, state *RunState, hooks Hooks, eng engine.Engine, items []task.WorkItem, limit int) {
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, it := range items {
		g.Go(func() error {
			runOne(ctx, state, hooks, eng, it)
			return nil
		})
	}
	_ = g.Wait()
}
