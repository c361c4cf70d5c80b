// Package reconcile infers the state of detached workers from the artifacts
// they leave behind. It only ever reads.
package reconcile

import (
	"errors"
	"os"
	"time"

	"github.com/spf13/afero"

	"github.com/josephgoksu/taskfleet/internal/artifact"
	"github.com/josephgoksu/taskfleet/internal/task"
)

// State is the presentation state of one item. It is a superset of
// task.Status.
type State string

const (
	StatePending      State = "pending"
	StateRunning      State = "running"
	StateStalled      State = "stalled"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
	StateBlocked      State = "blocked"
	StateLaunchFailed State = "launch_failed"
	StateError        State = "error"
)

// DefaultLiveness is how recently a log must have been written for its worker
// to count as running.
const DefaultLiveness = 60 * time.Second

// TaskStatus maps the presentation state onto the scheduling statuses.
// Stalled workers are still running as far as anyone knows; launch failures
// and unreadable results are failures.
func (s State) TaskStatus() task.Status {
	switch s {
	case StateCompleted:
		return task.StatusCompleted
	case StateFailed, StateLaunchFailed, StateError:
		return task.StatusFailed
	case StateBlocked:
		return task.StatusBlocked
	case StateRunning, StateStalled:
		return task.StatusRunning
	default:
		return task.StatusPending
	}
}

// Terminal reports whether the state can no longer change on its own.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateBlocked, StateLaunchFailed:
		return true
	}
	return false
}

// ItemState is the reconciled view of one item.
type ItemState struct {
	Item       task.WorkItem
	State      State
	Result     *artifact.Result
	LogPath    string
	LogModTime time.Time
	LaunchedAt time.Time
	// Note explains the state: result notes, launch or parse errors.
	Note string
}

// Snapshot is one poll of the workspace. Counts tallies presentation states,
// so stalled, launch_failed and error items land in Counts.Other.
type Snapshot struct {
	Items     []ItemState
	Counts    task.Counts
	Rollups   []task.CategoryRollup
	StartedAt time.Time
	PolledAt  time.Time
}

// Statuses returns the scheduling status of every item.
func (s *Snapshot) Statuses() map[string]task.Status {
	out := make(map[string]task.Status, len(s.Items))
	for _, it := range s.Items {
		out[it.Item.ID] = it.State.TaskStatus()
	}
	return out
}

// Count returns how many items are in state st.
func (s *Snapshot) Count(st State) int {
	n := 0
	for _, it := range s.Items {
		if it.State == st {
			n++
		}
	}
	return n
}

// Elapsed is the time since the first launch, or zero when nothing launched.
func (s *Snapshot) Elapsed() time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	return s.PolledAt.Sub(s.StartedAt)
}

// Reconciler polls the artifact layout.
type Reconciler struct {
	fs       afero.Fs
	layout   artifact.Layout
	items    []task.WorkItem
	liveness time.Duration
	now      func() time.Time
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLiveness overrides DefaultLiveness.
func WithLiveness(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.liveness = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// New returns a reconciler for items laid out under layout.
func New(fs afero.Fs, layout artifact.Layout, items []task.WorkItem, opts ...Option) *Reconciler {
	r := &Reconciler{
		fs:       fs,
		layout:   layout,
		items:    items,
		liveness: DefaultLiveness,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Items returns the items being reconciled.
func (r *Reconciler) Items() []task.WorkItem { return r.items }

// Layout returns the artifact layout being polled.
func (r *Reconciler) Layout() artifact.Layout { return r.layout }

// Poll reads every artifact once. Per-item problems become that item's state;
// Poll itself only fails when the launch manifest is unreadable, and even then
// the snapshot is returned without launch information.
func (r *Reconciler) Poll() (*Snapshot, error) {
	now := r.now()
	snap := &Snapshot{PolledAt: now}

	manifest, manifestErr := artifact.ReadLaunchManifest(r.fs, r.layout)
	if manifest != nil {
		snap.StartedAt = manifest.StartedAt
	}

	statuses := make(map[string]task.Status, len(r.items))
	for _, it := range r.items {
		var entry *artifact.LaunchEntry
		if manifest != nil {
			if e, ok := manifest.Entries[it.ID]; ok {
				entry = &e
			}
		}
		st := r.inspect(it, entry, now)
		snap.Items = append(snap.Items, st)
		statuses[it.ID] = st.State.TaskStatus()
		snap.Counts.Add(task.Status(st.State))
	}

	snap.Rollups = task.Rollup(r.items, statuses)
	return snap, manifestErr
}

func (r *Reconciler) inspect(it task.WorkItem, entry *artifact.LaunchEntry, now time.Time) ItemState {
	st := ItemState{Item: it, State: StatePending, LogPath: r.layout.LogPath(it.ID)}
	if entry != nil {
		st.LaunchedAt = entry.LaunchedAt
	}
	if info, err := r.fs.Stat(st.LogPath); err == nil {
		st.LogModTime = info.ModTime()
	}

	res, err := artifact.ReadResult(r.fs, r.layout.ResultPath(it.ID))
	switch {
	case err == nil:
		status, _ := res.TaskStatus()
		st.Result = &res
		st.State = State(status)
		st.Note = res.Notes
		if st.Note == "" {
			st.Note = res.Error
		}
		return st
	case errors.Is(err, os.ErrNotExist):
	default:
		st.State = StateError
		st.Note = err.Error()
		return st
	}

	if entry != nil && entry.Failed() {
		st.State = StateLaunchFailed
		st.Note = entry.Error
		return st
	}
	if !st.LogModTime.IsZero() {
		if now.Sub(st.LogModTime) <= r.liveness {
			st.State = StateRunning
		} else {
			st.State = StateStalled
			st.Note = "no log output for " + now.Sub(st.LogModTime).Truncate(time.Second).String()
		}
	}
	return st
}
