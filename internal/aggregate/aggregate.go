// Package aggregate folds terminal result artifacts into the tracking
// document and a standalone markdown report.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/afero"

	"github.com/josephgoksu/taskfleet/internal/artifact"
	"github.com/josephgoksu/taskfleet/internal/task"
	"github.com/josephgoksu/taskfleet/internal/tracking"
)

// DefaultLockTimeout bounds the wait for another aggregator's lock.
const DefaultLockTimeout = 10 * time.Second

// WriteError means the tracking document could not be read, locked, backed
// up or rewritten. It is fatal for aggregation only.
type WriteError struct {
	Path string
	Op   string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("tracking document %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Locker is the subset of flock used to guard the tracking document.
type Locker interface {
	TryLockContext(ctx context.Context, retryDelay time.Duration) (bool, error)
	Unlock() error
}

// Options configures Run.
type Options struct {
	Layout       artifact.Layout
	TrackingPath string
	ReportPath   string
	Title        string
	// NoUpdate leaves the tracking document untouched.
	NoUpdate    bool
	LockTimeout time.Duration
	// Now stamps backups and the sessions log. Reports never use it.
	Now     func() time.Time
	NewLock func(path string) Locker
}

// Summary describes what Run did.
type Summary struct {
	Counts     task.Counts
	Rollups    []task.CategoryRollup
	Statuses   map[string]task.Status
	Malformed  map[string]error
	Report     []byte
	ReportPath string
	Updated    bool
	BackupPath string
}

// Run reads every result for items, updates the tracking document (unless
// NoUpdate or no TrackingPath) and writes the report. A tracking failure is
// returned as *WriteError after the report has been written.
func Run(ctx context.Context, fs afero.Fs, items []task.WorkItem, opts Options) (*Summary, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewLock == nil {
		opts.NewLock = func(path string) Locker { return flock.New(path) }
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = DefaultLockTimeout
	}
	if opts.ReportPath == "" {
		opts.ReportPath = opts.Layout.ReportPath()
	}

	results, malformed := artifact.ScanResults(fs, opts.Layout, items)
	for id, err := range malformed {
		slog.Warn("skipping unreadable result", "task", id, "error", err)
	}
	statuses := TerminalStatuses(results)

	sum := &Summary{
		Counts:     task.CountStatuses(items, statuses),
		Rollups:    task.Rollup(items, statuses),
		Statuses:   statuses,
		Malformed:  malformed,
		ReportPath: opts.ReportPath,
	}
	sum.Report = RenderReport(ReportInput{
		Title:     opts.Title,
		Items:     items,
		Results:   results,
		Statuses:  statuses,
		Malformed: malformed,
	})
	if err := fs.MkdirAll(filepath.Dir(opts.ReportPath), 0o755); err != nil {
		return sum, fmt.Errorf("create report dir: %w", err)
	}
	if err := artifact.AtomicWriteFile(fs, opts.ReportPath, sum.Report, 0o644); err != nil {
		return sum, fmt.Errorf("write report: %w", err)
	}
	slog.Info("report written", "path", opts.ReportPath, "completed", sum.Counts.Completed, "total", sum.Counts.Total)

	if opts.NoUpdate || opts.TrackingPath == "" {
		return sum, nil
	}
	updated, backup, err := UpdateTracking(ctx, fs, opts.TrackingPath, statuses, sum.Counts, opts)
	sum.Updated = updated
	sum.BackupPath = backup
	return sum, err
}

// TerminalStatuses keeps only the results that carry a terminal status.
func TerminalStatuses(results map[string]artifact.Result) map[string]task.Status {
	out := make(map[string]task.Status, len(results))
	for id, r := range results {
		if st, err := r.TaskStatus(); err == nil && st.IsTerminal() {
			out[id] = st
		}
	}
	return out
}

// UpdateTracking rewrites the tracking document under an exclusive lock. The
// document is backed up and a sessions line appended only when the statuses
// actually change something; an unchanged document is left byte-for-byte alone.
func UpdateTracking(ctx context.Context, fs afero.Fs, path string, statuses map[string]task.Status, counts task.Counts, opts Options) (updated bool, backup string, err error) {
	lock := opts.NewLock(path + ".lock")
	lockCtx, cancel := context.WithTimeout(ctx, opts.LockTimeout)
	defer cancel()

	locked, err := lock.TryLockContext(lockCtx, 100*time.Millisecond)
	if err == nil && !locked {
		err = errors.New("lock not acquired")
	}
	if err != nil {
		return false, backupBeforeFailing(fs, path, opts.Now()), &WriteError{Path: path, Op: "lock", Err: err}
	}
	defer func() { _ = lock.Unlock() }()

	doc, err := tracking.Load(fs, path)
	if err != nil {
		return false, backupBeforeFailing(fs, path, opts.Now()), &WriteError{Path: path, Op: "read", Err: err}
	}
	if !doc.Apply(statuses) {
		slog.Info("tracking document already up to date", "path", path)
		return false, "", nil
	}

	now := opts.Now()
	backup, err = tracking.Backup(fs, path, now)
	if err != nil {
		return false, "", &WriteError{Path: path, Op: "backup", Err: err}
	}
	doc.AppendSession(fmt.Sprintf("%s: aggregate: %d completed, %d failed, %d blocked",
		now.Format("2006-01-02 15:04"), counts.Completed, counts.Failed, counts.Blocked))

	if err := artifact.AtomicWriteFile(fs, path, doc.Bytes(), 0o644); err != nil {
		return false, backup, &WriteError{Path: path, Op: "write", Err: err}
	}
	slog.Info("tracking document updated", "path", path, "backup", backup)
	return true, backup, nil
}

// backupBeforeFailing copies the document aside before a WriteError is
// returned. The backup never touches the document itself, so it needs no
// lock. It returns "" when no backup could be made.
func backupBeforeFailing(fs afero.Fs, path string, now time.Time) string {
	backup, err := tracking.Backup(fs, path, now)
	if err != nil {
		slog.Warn("tracking document backup failed", "path", path, "error", err)
		return ""
	}
	slog.Warn("backed up tracking document before failing", "path", path, "backup", backup)
	return backup
}
