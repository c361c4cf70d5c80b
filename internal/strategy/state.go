package strategy

import (
	"fmt"
	"sync"

	"github.com/josephgoksu/taskfleet/internal/task"
)

var allowedTransitions = map[task.Status]map[task.Status]struct{}{
	task.StatusPending: {
		task.StatusRunning: {},
		task.StatusBlocked: {},
	},
	task.StatusRunning: {
		task.StatusCompleted: {},
		task.StatusFailed:    {},
	},
}

// ValidateTransition reports whether from -> to is a legal step of the
// per-item lifecycle. Terminal states have no outgoing transitions.
func ValidateTransition(from, to task.Status) error {
	if next, ok := allowedTransitions[from]; ok {
		if _, ok := next[to]; ok {
			return nil
		}
	}
	return fmt.Errorf("invalid transition %s -> %s", from, to)
}

// RunState is the in-memory id -> status map owned by one strategy run.
// It is safe for concurrent use.
type RunState struct {
	mu      sync.Mutex
	status  map[string]task.Status
	results map[string]task.TaskResult
}

// NewRunState starts every item as pending.
func NewRunState(items []task.WorkItem) *RunState {
	s := &RunState{
		status:  make(map[string]task.Status, len(items)),
		results: make(map[string]task.TaskResult, len(items)),
	}
	for _, it := range items {
		s.status[it.ID] = task.StatusPending
	}
	return s
}

// Start moves id to running.
func (s *RunState) Start(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ValidateTransition(s.status[id], task.StatusRunning); err != nil {
		return fmt.Errorf("%s: %w", id, err)
	}
	s.status[id] = task.StatusRunning
	return nil
}

// Finish records the terminal result for res.TaskID. A second terminal result
// for the same item is refused.
func (s *RunState) Finish(res task.TaskResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ValidateTransition(s.status[res.TaskID], res.Status); err != nil {
		return fmt.Errorf("%s: %w", res.TaskID, err)
	}
	s.status[res.TaskID] = res.Status
	s.results[res.TaskID] = res
	return nil
}

// Status returns the current status of id.
func (s *RunState) Status(id string) task.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status[id]
}

// Partition splits ids into completed and everything else that is no longer pending.
func (s *RunState) Partition() (completed, started map[string]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	completed = map[string]bool{}
	started = map[string]bool{}
	for id, st := range s.status {
		switch st {
		case task.StatusPending:
		case task.StatusCompleted:
			completed[id] = true
		default:
			started[id] = true
		}
	}
	return completed, started
}

// Results returns one result per item in input order. Items that never
// reached a terminal state are omitted.
func (s *RunState) Results(items []task.WorkItem) []task.TaskResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]task.TaskResult, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		if res, ok := s.results[it.ID]; ok {
			out = append(out, res)
		}
	}
	return out
}
