// Package engine provides the uniform adapter interface over execution
// backends and the built-in adapters.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/josephgoksu/taskfleet/internal/task"
)

// Engine executes one work item against a backend.
//
// Execute never returns an error: every failure, including a panic inside the
// adapter, comes back as a TaskResult with StatusFailed and a message.
type Engine interface {
	Name() string
	// Validate is a cheap reachability/config check. nil means usable.
	Validate(ctx context.Context) error
	Execute(ctx context.Context, item task.WorkItem) task.TaskResult
}

// guard runs fn and normalises its outcome into a terminal TaskResult.
func guard(ctx context.Context, engine string, item task.WorkItem, fn func(ctx context.Context) (task.TaskResult, error)) (res task.TaskResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("engine panic", "engine", engine, "task", item.ID, "panic", r, "stack", string(debug.Stack()))
			res = task.Failed(item.ID, fmt.Sprintf("%s: panic: %v", engine, r))
		}
		res.TaskID = item.ID
		res.Engine = engine
		res.Duration = time.Since(start)
		if res.Timestamp.IsZero() {
			res.Timestamp = time.Now().UTC()
		}
		if res.FilesCreated == nil {
			res.FilesCreated = []string{}
		}
	}()

	out, err := fn(ctx)
	if err != nil {
		msg := err.Error()
		if ctxErr := ctx.Err(); ctxErr != nil && !strings.Contains(msg, ctxErr.Error()) {
			msg = fmt.Sprintf("%s (%v)", msg, ctxErr)
		}
		failed := task.Failed(item.ID, msg)
		failed.Output = out.Output
		return failed
	}
	if !out.Status.IsTerminal() {
		out.Status = task.StatusCompleted
	}
	return out
}
