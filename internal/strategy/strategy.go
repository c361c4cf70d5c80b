// Package strategy runs work items in-process against an engine with bounded
// concurrency: Parallel, Batch and DAG.
package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/josephgoksu/taskfleet/internal/engine"
	"github.com/josephgoksu/taskfleet/internal/task"
)

// Strategy names.
const (
	NameParallel = "parallel"
	NameBatch    = "batch"
	NameDAG      = "dag"
)

// Strategy executes items and returns exactly one result per item, in input
// order. ctx is only forwarded to the engine; strategies never cancel work.
type Strategy interface {
	Name() string
	Execute(ctx context.Context, items []task.WorkItem, eng engine.Engine) []task.TaskResult
}

// Hooks observe a run. They are called from worker goroutines and must be
// safe for concurrent use.
type Hooks struct {
	OnStart  func(item task.WorkItem)
	OnResult func(res task.TaskResult)
}

// Config selects and tunes a strategy.
type Config struct {
	Name        string
	MaxParallel int
	BatchSize   int
	Delay       time.Duration
	Hooks       Hooks
	// Sleep waits between batches. nil means a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration)
}

// New builds the named strategy.
func New(cfg Config) (Strategy, error) {
	if cfg.Sleep == nil {
		cfg.Sleep = sleep
	}
	switch cfg.Name {
	case NameParallel:
		if cfg.MaxParallel < 1 {
			return nil, fmt.Errorf("parallel: max parallel must be at least 1, got %d", cfg.MaxParallel)
		}
		return &Parallel{MaxParallel: cfg.MaxParallel, Hooks: cfg.Hooks}, nil
	case NameBatch:
		if cfg.BatchSize < 1 {
			return nil, fmt.Errorf("batch: batch size must be at least 1, got %d", cfg.BatchSize)
		}
		return &Batch{Size: cfg.BatchSize, Delay: cfg.Delay, Hooks: cfg.Hooks, Sleep: cfg.Sleep}, nil
	case NameDAG, "":
		return &DAG{MaxParallel: cfg.MaxParallel, Hooks: cfg.Hooks}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q (supported: parallel, batch, dag)", cfg.Name)
	}
}

// runOne drives a single item through running to its terminal result.
func runOne(ctx context.Context, state *RunState, hooks Hooks, eng engine.Engine, item task.WorkItem) {
	if err := state.Start(item.ID); err != nil {
		slog.Warn("skipping item", "task", item.ID, "error", err)
		return
	}
	if hooks.OnStart != nil {
		hooks.OnStart(item)
	}
	slog.Debug("task started", "task", item.ID, "engine", eng.Name())

	res := eng.Execute(ctx, item)
	res.TaskID = item.ID
	if res.Status != task.StatusCompleted && res.Status != task.StatusFailed {
		msg := fmt.Sprintf("engine %s returned non-terminal status %q", eng.Name(), res.Status)
		res.Status = task.StatusFailed
		if res.Error == "" {
			res.Error = msg
		}
		if res.Notes == "" {
			res.Notes = msg
		}
	}
	if res.Timestamp.IsZero() {
		res.Timestamp = time.Now().UTC()
	}

	record(state, hooks, res)
	slog.Info("task finished", "task", item.ID, "status", res.Status, "duration", res.Duration)
}

func record(state *RunState, hooks Hooks, res task.TaskResult) {
	if err := state.Finish(res); err != nil {
		slog.Warn("result refused", "task", res.TaskID, "error", err)
		return
	}
	if hooks.OnResult != nil {
		hooks.OnResult(res)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
