// Package artifact defines the on-disk workspace shared by the launcher,
// detached workers, the reconciler and the aggregator.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/josephgoksu/taskfleet/internal/task"
)

const (
	TasksDir   = "tasks"
	LogsDir    = "logs"
	ResultsDir = "results"

	LaunchManifestFile = "launch.json"
	ReportFile         = "REPORT.md"
)

// Layout resolves artifact paths beneath a workspace root.
type Layout struct {
	Root string
}

// NewLayout returns a layout rooted at root.
func NewLayout(root string) Layout {
	return Layout{Root: root}
}

func (l Layout) TasksDir() string   { return filepath.Join(l.Root, TasksDir) }
func (l Layout) LogsDir() string    { return filepath.Join(l.Root, LogsDir) }
func (l Layout) ResultsDir() string { return filepath.Join(l.Root, ResultsDir) }

// TaskPath is the task-specification markdown for id.
func (l Layout) TaskPath(id string) string {
	return filepath.Join(l.TasksDir(), fmt.Sprintf("task_%s.md", task.Slug(id)))
}

// PromptPath is the plain-text prompt handed to the backend for id.
func (l Layout) PromptPath(id string) string {
	return filepath.Join(l.TasksDir(), fmt.Sprintf("prompt_%s.txt", task.Slug(id)))
}

// ResultPath is where the worker for id must report its outcome.
func (l Layout) ResultPath(id string) string {
	return filepath.Join(l.ResultsDir(), ResultFileName(id))
}

// LogPath receives the combined stdout/stderr of the worker for id.
func (l Layout) LogPath(id string) string {
	return filepath.Join(l.LogsDir(), fmt.Sprintf("task_%s.log", task.Slug(id)))
}

func (l Layout) LaunchManifestPath() string { return filepath.Join(l.Root, LaunchManifestFile) }
func (l Layout) ReportPath() string         { return filepath.Join(l.Root, ReportFile) }

// ResultFileName is the base name of the result artifact for id.
func ResultFileName(id string) string {
	return fmt.Sprintf("result_%s.json", task.Slug(id))
}

// Ensure creates the artifact directories.
func (l Layout) Ensure(fs afero.Fs) error {
	for _, dir := range []string{l.TasksDir(), l.LogsDir(), l.ResultsDir()} {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// AtomicWriteFile writes data to a temporary sibling and renames it over path,
// so readers never observe a partial file.
func AtomicWriteFile(fs afero.Fs, path string, data []byte, perm os.FileMode) error {
	tmpFile := path + ".tmp"

	if err := afero.WriteFile(fs, tmpFile, data, perm); err != nil {
		return err
	}

	if err := fs.Rename(tmpFile, path); err != nil {
		_ = fs.Remove(tmpFile)
		return err
	}
	return nil
}
