package aggregate

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/taskfleet/internal/artifact"
	"github.com/josephgoksu/taskfleet/internal/task"
	"github.com/josephgoksu/taskfleet/internal/tracking"
)

const doc = `# Platform Rewrite

## Progress: 0/4 (0%)

## Core [0/3]

| ID | Task | Status | Priority | Depends On |
|----|------|--------|----------|------------|
| 1.1 | Config loader | ⬜ | Critical | |
| 1.2 | Logger | ⬜ | High | 1.1 |
| 1.3 | CLI wiring | ⬜ | Medium | 1.2 |

## Docs [0/1]

| ID | Task | Status | Priority |
|----|------|--------|----------|
| 2.1 | README | ⬜ | Low |

## Sessions Log
- 2026-10-16 18:00: launch: 4 items
`

type fixture struct {
	fs     afero.Fs
	dir    string
	layout artifact.Layout
	track  string
	items  []task.WorkItem
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	fs := afero.NewOsFs()
	f := &fixture{
		fs:     fs,
		dir:    dir,
		layout: artifact.NewLayout(filepath.Join(dir, ".taskfleet")),
		track:  filepath.Join(dir, "TASKS.md"),
	}
	require.NoError(t, afero.WriteFile(fs, f.track, []byte(doc), 0o644))
	d, err := tracking.Parse([]byte(doc))
	require.NoError(t, err)
	f.items = d.Items

	ts := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	for _, res := range []task.TaskResult{
		{TaskID: "1.1", Status: task.StatusCompleted, Notes: "loader done", TestResult: "pass", Timestamp: ts},
		{TaskID: "1.2", Status: task.StatusFailed, Error: "tests red\nsee log", Timestamp: ts.Add(time.Minute)},
		{TaskID: "1.3", Status: task.StatusBlocked, Notes: "dependency 1.2 failed", Timestamp: ts.Add(2 * time.Minute)},
	} {
		require.NoError(t, artifact.WriteResult(fs, f.layout, res))
	}
	return f
}

func (f *fixture) opts(now time.Time) Options {
	return Options{
		Layout:       f.layout,
		TrackingPath: f.track,
		Title:        "Platform Rewrite",
		LockTimeout:  time.Second,
		Now:          func() time.Time { return now },
	}
}

func TestRunUpdatesTrackingAndWritesReport(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2026, 10, 17, 10, 30, 0, 0, time.UTC)

	sum, err := Run(context.Background(), f.fs, f.items, f.opts(now))
	require.NoError(t, err)

	assert.Equal(t, 4, sum.Counts.Total)
	assert.Equal(t, 1, sum.Counts.Completed)
	assert.Equal(t, 1, sum.Counts.Failed)
	assert.Equal(t, 1, sum.Counts.Blocked)
	assert.True(t, sum.Updated)
	assert.Equal(t, tracking.BackupPath(f.track, now), sum.BackupPath)

	backup, err := afero.ReadFile(f.fs, sum.BackupPath)
	require.NoError(t, err)
	assert.Equal(t, doc, string(backup))

	updated, err := afero.ReadFile(f.fs, f.track)
	require.NoError(t, err)
	text := string(updated)
	assert.Contains(t, text, "## Progress: 1/4 (25%)")
	assert.Contains(t, text, "## Core [1/3]")
	assert.Contains(t, text, "## Docs [0/1]")
	assert.Contains(t, text, "| 1.1 | Config loader | ✅ |")
	assert.Contains(t, text, "| 1.2 | Logger | ❌ |")
	assert.Contains(t, text, "| 1.3 | CLI wiring | 🚫 |")
	assert.Contains(t, text, "- 2026-10-17 10:30: aggregate: 1 completed, 1 failed, 1 blocked")

	report := string(sum.Report)
	onDisk, err := afero.ReadFile(f.fs, f.layout.ReportPath())
	require.NoError(t, err)
	assert.Equal(t, report, string(onDisk))
	assert.Contains(t, report, "# Platform Rewrite: Execution Report")
	assert.Contains(t, report, "_As of 2026-10-17T09:02:00Z (newest result)._")
	assert.Contains(t, report, "1 of 4 items completed (25%). 1 failed, 1 blocked, 1 without a result.")
	assert.Contains(t, report, "| Core | 1 | 1 | 1 | 3 | 33.3% |")
	assert.Contains(t, report, "| Docs | 0 | 0 | 0 | 1 | 0.0% |")
	assert.Contains(t, report, "## Completed (1)\n\n- **1.1** Config loader: loader done (test: pass)")
	assert.Contains(t, report, "## Failed (1)\n\n- **1.2** Logger: tests red see log")
	assert.Contains(t, report, "## Blocked (1)\n\n- **1.3** CLI wiring: dependency 1.2 failed")
}

func TestRunIsIdempotent(t *testing.T) {
	f := newFixture(t)
	first, err := Run(context.Background(), f.fs, f.items, f.opts(time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	afterFirst, err := afero.ReadFile(f.fs, f.track)
	require.NoError(t, err)

	second, err := Run(context.Background(), f.fs, f.items, f.opts(time.Date(2026, 10, 17, 11, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	afterSecond, err := afero.ReadFile(f.fs, f.track)
	require.NoError(t, err)

	assert.Equal(t, first.Report, second.Report, "report must be byte-identical")
	assert.Equal(t, first.Counts, second.Counts)
	assert.False(t, second.Updated)
	assert.Empty(t, second.BackupPath)
	assert.Equal(t, afterFirst, afterSecond)
	assert.Equal(t, 1, strings.Count(string(afterSecond), ": aggregate:"))
}

func TestRunNoUpdateLeavesDocument(t *testing.T) {
	f := newFixture(t)
	opts := f.opts(time.Now())
	opts.NoUpdate = true
	opts.ReportPath = filepath.Join(f.dir, "out", "report.md")

	sum, err := Run(context.Background(), f.fs, f.items, opts)
	require.NoError(t, err)
	assert.False(t, sum.Updated)

	data, err := afero.ReadFile(f.fs, f.track)
	require.NoError(t, err)
	assert.Equal(t, doc, string(data))

	exists, err := afero.Exists(f.fs, opts.ReportPath)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMissingTrackingDocumentIsWriteError(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.fs.Remove(f.track))

	sum, err := Run(context.Background(), f.fs, f.items, f.opts(time.Now()))
	var we *WriteError
	require.True(t, errors.As(err, &we))
	assert.Equal(t, "read", we.Op)
	assert.Equal(t, f.track, we.Path)

	exists, statErr := afero.Exists(f.fs, f.layout.ReportPath())
	require.NoError(t, statErr)
	assert.True(t, exists, "the report is written before the tracking update")
	assert.NotNil(t, sum)
}

func TestLockTimeoutIsWriteError(t *testing.T) {
	f := newFixture(t)
	held := flock.New(f.track + ".lock")
	locked, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer func() { _ = held.Unlock() }()

	opts := f.opts(time.Now())
	opts.LockTimeout = 200 * time.Millisecond
	opts.NewLock = func(path string) Locker { return flock.New(path) }

	sum, err := Run(context.Background(), f.fs, f.items, opts)
	var we *WriteError
	require.True(t, errors.As(err, &we))
	assert.Equal(t, "lock", we.Op)

	data, readErr := afero.ReadFile(f.fs, f.track)
	require.NoError(t, readErr)
	assert.Equal(t, doc, string(data))

	require.NotEmpty(t, sum.BackupPath, "a backup is attempted before the error")
	backup, readErr := afero.ReadFile(f.fs, sum.BackupPath)
	require.NoError(t, readErr)
	assert.Equal(t, doc, string(backup))
	assert.False(t, sum.Updated)
}

func TestMalformedResultsAreListedNotFatal(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, afero.WriteFile(f.fs, f.layout.ResultPath("2.1"), []byte("{not json"), 0o644))

	sum, err := Run(context.Background(), f.fs, f.items, f.opts(time.Now()))
	require.NoError(t, err)
	assert.Contains(t, sum.Malformed, "2.1")
	assert.Contains(t, string(sum.Report), "## Unreadable Results")
	assert.Contains(t, string(sum.Report), "- **2.1**: malformed result artifact")
}

func TestRenderReportEmpty(t *testing.T) {
	out := string(RenderReport(ReportInput{Items: []task.WorkItem{{ID: "x"}}}))
	assert.Contains(t, out, "# Task Fleet: Execution Report")
	assert.Contains(t, out, "_No results recorded yet._")
	assert.Contains(t, out, "## Completed (0)\n\n_None._")
	assert.Contains(t, out, "| Uncategorized | 0 | 0 | 0 | 1 | 0.0% |")
	assert.True(t, strings.HasSuffix(out, "\n"))
}
