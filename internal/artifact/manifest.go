package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/afero"
)

// LaunchEntry records one detached launch attempt.
type LaunchEntry struct {
	TaskID     string    `json:"task_id"`
	RunID      string    `json:"run_id"`
	LaunchedAt time.Time `json:"launched_at"`
	Terminal   string    `json:"terminal"`
	Command    []string  `json:"command"`
	Error      string    `json:"error,omitempty"`
}

// Failed reports whether the OS refused to start the worker.
func (e LaunchEntry) Failed() bool { return e.Error != "" }

// LaunchManifest is the launcher's record of what it started. It is the only
// trace of a launch failure, since such a worker never writes a log or result.
type LaunchManifest struct {
	RunID     string                 `json:"run_id"`
	StartedAt time.Time              `json:"started_at"`
	UpdatedAt time.Time              `json:"updated_at"`
	Entries   map[string]LaunchEntry `json:"entries"`
}

// ReadLaunchManifest loads the manifest. A missing manifest yields (nil, nil).
func ReadLaunchManifest(fs afero.Fs, l Layout) (*LaunchManifest, error) {
	data, err := afero.ReadFile(fs, l.LaunchManifestPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read launch manifest: %w", err)
	}
	var m LaunchManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse launch manifest: %w", err)
	}
	if m.Entries == nil {
		m.Entries = map[string]LaunchEntry{}
	}
	return &m, nil
}

// WriteLaunchManifest persists m atomically.
func WriteLaunchManifest(fs afero.Fs, l Layout, m *LaunchManifest) error {
	if err := fs.MkdirAll(l.Root, 0o755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode launch manifest: %w", err)
	}
	return AtomicWriteFile(fs, l.LaunchManifestPath(), data, 0o644)
}
