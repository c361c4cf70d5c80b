package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/josephgoksu/taskfleet/internal/task"
)

// ErrMalformedResult marks a result artifact that is not parseable JSON or has
// no usable status.
var ErrMalformedResult = errors.New("malformed result artifact")

// Result is the JSON contract workers honour. Only status is required on read.
type Result struct {
	TaskID       string    `json:"task_id"`
	Status       string    `json:"status"`
	FilesCreated []string  `json:"files_created"`
	TestResult   string    `json:"test_result,omitempty"`
	Notes        string    `json:"notes"`
	Timestamp    time.Time `json:"timestamp"`

	Error      string `json:"error,omitempty"`
	Output     string `json:"output,omitempty"`
	Engine     string `json:"engine,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
}

// resultWire tolerates timestamps in any of the layouts workers are known to emit.
type resultWire struct {
	TaskID       string   `json:"task_id"`
	Status       string   `json:"status"`
	FilesCreated []string `json:"files_created"`
	TestResult   string   `json:"test_result"`
	Notes        string   `json:"notes"`
	Timestamp    string   `json:"timestamp"`
	Error        string   `json:"error"`
	Output       string   `json:"output"`
	Engine       string   `json:"engine"`
	DurationMS   int64    `json:"duration_ms"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Result) UnmarshalJSON(data []byte) error {
	var w resultWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*r = Result{
		TaskID:       w.TaskID,
		Status:       w.Status,
		FilesCreated: w.FilesCreated,
		TestResult:   w.TestResult,
		Notes:        w.Notes,
		Error:        w.Error,
		Output:       w.Output,
		Engine:       w.Engine,
		DurationMS:   w.DurationMS,
	}
	if ts := strings.TrimSpace(w.Timestamp); ts != "" {
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, ts); err == nil {
				r.Timestamp = t
				break
			}
		}
	}
	return nil
}

// TaskStatus parses the embedded status.
func (r Result) TaskStatus() (task.Status, error) {
	return task.ParseStatus(r.Status)
}

// FromTaskResult converts an in-process result into the artifact schema.
func FromTaskResult(res task.TaskResult) Result {
	files := res.FilesCreated
	if files == nil {
		files = []string{}
	}
	return Result{
		TaskID:       res.TaskID,
		Status:       string(res.Status),
		FilesCreated: files,
		TestResult:   res.TestResult,
		Notes:        res.Notes,
		Timestamp:    res.Timestamp.UTC(),
		Error:        res.Error,
		Output:       res.Output,
		Engine:       res.Engine,
		DurationMS:   res.Duration.Milliseconds(),
	}
}

// TaskResult converts the artifact back into the in-memory result.
// Unknown statuses are reported as failed.
func (r Result) TaskResult() task.TaskResult {
	status, err := r.TaskStatus()
	if err != nil {
		status = task.StatusFailed
	}
	return task.TaskResult{
		TaskID:       r.TaskID,
		Status:       status,
		Output:       r.Output,
		Error:        r.Error,
		FilesCreated: r.FilesCreated,
		TestResult:   r.TestResult,
		Notes:        r.Notes,
		Engine:       r.Engine,
		Duration:     time.Duration(r.DurationMS) * time.Millisecond,
		Timestamp:    r.Timestamp,
	}
}

// WriteResult persists res to its result path with write-then-rename.
func WriteResult(fs afero.Fs, l Layout, res task.TaskResult) error {
	if err := fs.MkdirAll(l.ResultsDir(), 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}
	data, err := json.MarshalIndent(FromTaskResult(res), "", "  ")
	if err != nil {
		return fmt.Errorf("encode result %s: %w", res.TaskID, err)
	}
	return AtomicWriteFile(fs, l.ResultPath(res.TaskID), data, 0o644)
}

// ReadResult loads one result artifact. A missing file returns an error
// satisfying os.IsNotExist; anything unparseable, or a status other than
// completed, failed or blocked, wraps ErrMalformedResult.
func ReadResult(fs afero.Fs, path string) (Result, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return Result{}, err
	}
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return Result{}, fmt.Errorf("%w: %s: %v", ErrMalformedResult, filepath.Base(path), err)
	}
	if strings.TrimSpace(r.Status) == "" {
		return Result{}, fmt.Errorf("%w: %s: missing status", ErrMalformedResult, filepath.Base(path))
	}
	st, err := r.TaskStatus()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s: %v", ErrMalformedResult, filepath.Base(path), err)
	}
	if !st.IsTerminal() {
		return Result{}, fmt.Errorf("%w: %s: status %q is not terminal", ErrMalformedResult, filepath.Base(path), st)
	}
	return r, nil
}

// ScanResults reads every result artifact for items. Items without a result
// file are absent from both maps; malformed files land in errs.
func ScanResults(fs afero.Fs, l Layout, items []task.WorkItem) (results map[string]Result, errs map[string]error) {
	results = make(map[string]Result, len(items))
	errs = make(map[string]error)
	for _, it := range items {
		r, err := ReadResult(fs, l.ResultPath(it.ID))
		switch {
		case err == nil:
			if r.TaskID == "" {
				r.TaskID = it.ID
			}
			results[it.ID] = r
		case errors.Is(err, os.ErrNotExist):
		default:
			errs[it.ID] = err
		}
	}
	return results, errs
}

// NewestTimestamp returns the latest timestamp across results, or the zero time.
func NewestTimestamp(results map[string]Result) time.Time {
	var newest time.Time
	for _, r := range results {
		if r.Timestamp.After(newest) {
			newest = r.Timestamp
		}
	}
	return newest
}
