// Package launcher materializes work items as task and prompt artifacts and
// starts each one as a detached worker in its own terminal. Nothing is
// supervised after Start: workers report back only through result files.
package launcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/josephgoksu/taskfleet/internal/artifact"
	"github.com/josephgoksu/taskfleet/internal/engine"
	"github.com/josephgoksu/taskfleet/internal/task"
)

// LaunchError records that the OS refused to start a worker, or that its
// artifacts could not be written. It never aborts the rest of the launch.
type LaunchError struct {
	TaskID  string
	Command []string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.TaskID, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// StartFunc starts argv in dir without keeping a handle to it.
type StartFunc func(argv []string, dir string) error

// Options configures a Launcher. Zero seams fall back to the real OS.
type Options struct {
	Layout      artifact.Layout
	WorkDir     string
	Backend     string
	Terminal    string
	BatchSize   int
	LaunchDelay time.Duration
	BatchPause  time.Duration
	DryRun      bool

	Detector *Detector
	Start    StartFunc
	Sleep    func(ctx context.Context, d time.Duration)
	Now      func() time.Time
	NewRunID func() string
}

// Launcher starts detached workers with batch pacing.
type Launcher struct {
	fs       afero.Fs
	opts     Options
	detector Detector
}

// New returns a launcher writing artifacts through fs.
func New(fs afero.Fs, opts Options) *Launcher {
	det := Detector{GOOS: runtime.GOOS, Getenv: os.Getenv, LookPath: exec.LookPath}
	if opts.Detector != nil {
		det = *opts.Detector
	}
	if opts.Start == nil {
		opts.Start = startDetached
	}
	if opts.Sleep == nil {
		opts.Sleep = sleep
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewRunID == nil {
		opts.NewRunID = uuid.NewString
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}
	if opts.WorkDir == "" {
		opts.WorkDir = "."
	}
	return &Launcher{fs: fs, opts: opts, detector: det}
}

// Launch is one planned or performed worker start.
type Launch struct {
	Item       task.WorkItem
	Command    []string
	TaskPath   string
	PromptPath string
	LogPath    string
	ResultPath string
	LaunchedAt time.Time
	Err        *LaunchError
}

// Report summarizes a Launch call.
type Report struct {
	RunID    string
	Terminal string
	DryRun   bool
	Launches []Launch
}

// Errors returns the per-item launch failures.
func (r *Report) Errors() []*LaunchError {
	var out []*LaunchError
	for _, l := range r.Launches {
		if l.Err != nil {
			out = append(out, l.Err)
		}
	}
	return out
}

// Started counts the workers the OS accepted.
func (r *Report) Started() int {
	n := 0
	for _, l := range r.Launches {
		if l.Err == nil && !r.DryRun {
			n++
		}
	}
	return n
}

// Launch starts items in priority order. Items go out in batches of
// BatchSize with LaunchDelay between starts and BatchPause between batches.
// The returned error is reserved for failures that stop every launch; per
// item failures are in the report and in launch.json.
func (l *Launcher) Launch(ctx context.Context, items []task.WorkItem) (*Report, error) {
	flavor, err := l.detector.Detect(l.opts.Terminal)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(l.opts.Backend) == "" {
		return nil, fmt.Errorf("launcher backend command is empty")
	}

	report := &Report{RunID: l.opts.NewRunID(), Terminal: flavor, DryRun: l.opts.DryRun}
	ordered := task.SortByPriority(items)

	var manifest *artifact.LaunchManifest
	if !l.opts.DryRun {
		if err := l.opts.Layout.Ensure(l.fs); err != nil {
			return nil, err
		}
		manifest = l.loadManifest(report.RunID)
	}

	slog.Info("launch started", "run", report.RunID, "items", len(ordered), "terminal", flavor, "dry_run", l.opts.DryRun)
	for i, item := range ordered {
		if i > 0 && !l.opts.DryRun {
			if i%l.opts.BatchSize == 0 {
				slog.Info("batch pause", "after", i, "pause", l.opts.BatchPause)
				l.opts.Sleep(ctx, l.opts.BatchPause)
			} else {
				l.opts.Sleep(ctx, l.opts.LaunchDelay)
			}
		}

		launch := l.launchOne(flavor, item)
		report.Launches = append(report.Launches, launch)
		if manifest == nil {
			continue
		}

		entry := artifact.LaunchEntry{
			TaskID:     item.ID,
			RunID:      report.RunID,
			LaunchedAt: launch.LaunchedAt,
			Terminal:   flavor,
			Command:    launch.Command,
		}
		if launch.Err != nil {
			entry.Error = launch.Err.Err.Error()
		}
		manifest.Entries[item.ID] = entry
		manifest.UpdatedAt = launch.LaunchedAt
		if err := artifact.WriteLaunchManifest(l.fs, l.opts.Layout, manifest); err != nil {
			return report, fmt.Errorf("write launch manifest: %w", err)
		}
	}
	slog.Info("launch finished", "run", report.RunID, "started", report.Started(), "failed", len(report.Errors()))
	return report, nil
}

func (l *Launcher) launchOne(flavor string, item task.WorkItem) Launch {
	lay := l.opts.Layout
	launch := Launch{
		Item:       item,
		TaskPath:   lay.TaskPath(item.ID),
		PromptPath: lay.PromptPath(item.ID),
		LogPath:    lay.LogPath(item.ID),
		ResultPath: lay.ResultPath(item.ID),
	}
	fail := func(err error) Launch {
		launch.Err = &LaunchError{TaskID: item.ID, Command: launch.Command, Err: err}
		slog.Warn("launch failed", "task", item.ID, "error", err)
		return launch
	}

	goos := l.detector.GOOS
	inner := InnerCommand(goos, l.opts.WorkDir, l.opts.Backend, launch.PromptPath, launch.LogPath)
	argv, err := Command(goos, flavor, "taskfleet-"+task.Slug(item.ID), inner)
	if err != nil {
		return fail(err)
	}
	launch.Command = argv
	launch.LaunchedAt = l.opts.Now().UTC()

	spec, err := RenderTaskSpec(item, launch.ResultPath)
	if err != nil {
		return fail(err)
	}
	prompt, err := engine.BuildPrompt(item, launch.ResultPath)
	if err != nil {
		return fail(err)
	}
	if l.opts.DryRun {
		return launch
	}

	if err := artifact.AtomicWriteFile(l.fs, launch.TaskPath, spec, 0o644); err != nil {
		return fail(err)
	}
	if err := artifact.AtomicWriteFile(l.fs, launch.PromptPath, []byte(prompt), 0o644); err != nil {
		return fail(err)
	}
	if err := l.opts.Start(argv, l.opts.WorkDir); err != nil {
		return fail(err)
	}
	slog.Info("worker launched", "task", item.ID, "terminal", flavor)
	return launch
}

// loadManifest merges into an existing launch.json so earlier launches stay
// visible to the reconciler.
func (l *Launcher) loadManifest(runID string) *artifact.LaunchManifest {
	now := l.opts.Now().UTC()
	m, err := artifact.ReadLaunchManifest(l.fs, l.opts.Layout)
	if err != nil {
		slog.Warn("discarding unreadable launch manifest", "error", err)
	}
	if m == nil {
		m = &artifact.LaunchManifest{StartedAt: now, Entries: map[string]artifact.LaunchEntry{}}
	}
	m.RunID = runID
	m.UpdatedAt = now
	return m
}

func startDetached(argv []string, dir string) error {
	if len(argv) == 0 {
		return fmt.Errorf("empty command")
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir
	detach(cmd)
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
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
