package strategy

import (
	"context"
	"log/slog"
	"time"

	"github.com/josephgoksu/taskfleet/internal/engine"
	"github.com/josephgoksu/taskfleet/internal/task"
)

// Batch runs items in ordered chunks of Size. Everything in a chunk runs at
// once; the next chunk starts after the whole chunk has returned and Delay
// has elapsed.
type Batch struct {
	Size  int
	Delay time.Duration
	Hooks Hooks
	Sleep func(ctx context.Context, d time.Duration)
}

func (b *Batch) Name() string { return NameBatch }

func (b *Batch) Execute(ctx context.Context, items []task.WorkItem, eng engine.Engine) []task.TaskResult {
	state := NewRunState(items)
	wait := b.Sleep
	if wait == nil {
		wait = sleep
	}

	chunks := Chunk(items, b.Size)
	for i, chunk := range chunks {
		slog.Info("batch started", "batch", i+1, "of", len(chunks), "size", len(chunk))
		runGated(ctx, state, b.Hooks, eng, chunk, 0)
		if i < len(chunks)-1 {
			wait(ctx, b.Delay)
		}
	}
	return state.Results(items)
}

// Chunk splits items into ceil(len/size) ordered slices.
func Chunk(items []task.WorkItem, size int) [][]task.WorkItem {
	if size < 1 {
		size = 1
	}
	var out [][]task.WorkItem
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}
