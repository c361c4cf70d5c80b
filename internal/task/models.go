package task

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Status represents the lifecycle state of a work item.
type Status string

const (
	StatusPending   Status = "pending"   // Not yet admitted
	StatusRunning   Status = "running"   // Engine call in flight
	StatusCompleted Status = "completed" // Finished successfully
	StatusFailed    Status = "failed"    // Engine reported a failure
	StatusBlocked   Status = "blocked"   // A dependency can never complete
)

// IsTerminal reports whether the status can no longer change.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusBlocked:
		return true
	default:
		return false
	}
}

// ParseStatus converts a status string (any case) into a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusPending:
		return StatusPending, nil
	case StatusRunning, "in_progress", "in-progress":
		return StatusRunning, nil
	case StatusCompleted, "complete", "done":
		return StatusCompleted, nil
	case StatusFailed, "failure", "error":
		return StatusFailed, nil
	case StatusBlocked:
		return StatusBlocked, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// Priority orders work items. Higher values are scheduled first.
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

var priorityNames = map[Priority]string{
	PriorityLow:      "Low",
	PriorityMedium:   "Medium",
	PriorityHigh:     "High",
	PriorityCritical: "Critical",
}

func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return "Medium"
}

// ParsePriority accepts the names used in tracking documents and manifests.
// An empty string maps to Medium.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "medium", "med", "p2", "2":
		return PriorityMedium, nil
	case "critical", "crit", "p0", "4":
		return PriorityCritical, nil
	case "high", "p1", "3":
		return PriorityHigh, nil
	case "low", "p3", "1":
		return PriorityLow, nil
	default:
		return 0, fmt.Errorf("unknown priority %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler so priorities round-trip as names.
func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Priority) UnmarshalText(text []byte) error {
	parsed, err := ParsePriority(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// WorkItem is a discrete unit of schedulable work. It is created at load time
// and never mutated once scheduling begins.
type WorkItem struct {
	ID          string            `json:"id" yaml:"id" toml:"id" validate:"required"`
	Name        string            `json:"name" yaml:"name" toml:"name"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
	DependsOn   []string          `json:"depends_on,omitempty" yaml:"depends_on,omitempty" toml:"depends_on,omitempty" validate:"dive,required"`
	Category    string            `json:"category,omitempty" yaml:"category,omitempty" toml:"category,omitempty"`
	Priority    Priority          `json:"priority" yaml:"priority" toml:"priority" validate:"min=1,max=4"`
	TestCommand string            `json:"test_command,omitempty" yaml:"test_command,omitempty" toml:"test_command,omitempty"`
	Template    string            `json:"template,omitempty" yaml:"template,omitempty" toml:"template,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty" toml:"metadata,omitempty"`
}

// Title returns the display name, falling back to the ID.
func (w WorkItem) Title() string {
	if strings.TrimSpace(w.Name) != "" {
		return w.Name
	}
	return w.ID
}

// TaskResult is the single terminal outcome of a work item.
type TaskResult struct {
	TaskID       string        `json:"task_id"`
	Status       Status        `json:"status"`
	Output       string        `json:"output,omitempty"`
	Error        string        `json:"error,omitempty"`
	FilesCreated []string      `json:"files_created"`
	TestResult   string        `json:"test_result,omitempty"`
	Notes        string        `json:"notes"`
	Engine       string        `json:"engine,omitempty"`
	Duration     time.Duration `json:"-"`
	Timestamp    time.Time     `json:"timestamp"`
}

// Failed builds a failed result for id with the given error message.
func Failed(id, msg string) TaskResult {
	return TaskResult{
		TaskID:    id,
		Status:    StatusFailed,
		Error:     msg,
		Notes:     msg,
		Timestamp: time.Now().UTC(),
	}
}

// Blocked builds a blocked result for id.
func Blocked(id, reason string) TaskResult {
	return TaskResult{
		TaskID:    id,
		Status:    StatusBlocked,
		Notes:     reason,
		Timestamp: time.Now().UTC(),
	}
}

// SortByPriority orders items by priority (highest first), keeping the input
// order for equal priorities.
func SortByPriority(items []WorkItem) []WorkItem {
	out := make([]WorkItem, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}

// Filter narrows a work item set by category and minimum priority.
type Filter struct {
	Categories  []string
	MinPriority Priority
}

// Apply returns the items accepted by the filter, preserving order.
func (f Filter) Apply(items []WorkItem) []WorkItem {
	if len(f.Categories) == 0 && f.MinPriority == 0 {
		return items
	}
	allowed := make(map[string]bool, len(f.Categories))
	for _, c := range f.Categories {
		allowed[strings.ToLower(strings.TrimSpace(c))] = true
	}
	var out []WorkItem
	for _, it := range items {
		if len(allowed) > 0 && !allowed[strings.ToLower(strings.TrimSpace(it.Category))] {
			continue
		}
		if f.MinPriority > 0 && it.Priority < f.MinPriority {
			continue
		}
		out = append(out, it)
	}
	return out
}
