package tracking

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// BackupTimeFormat is the suffix layout of backup copies.
const BackupTimeFormat = "20060102-150405"

// Load reads and parses the tracking document at path.
func Load(fs afero.Fs, path string) (*Document, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read tracking document: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return doc, nil
}

// BackupPath is the timestamped copy location for path.
func BackupPath(path string, at time.Time) string {
	return fmt.Sprintf("%s.%s.bak", path, at.Format(BackupTimeFormat))
}

// Backup copies the document next to itself and returns the backup path.
func Backup(fs afero.Fs, path string, at time.Time) (string, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return "", fmt.Errorf("read for backup: %w", err)
	}
	dst := BackupPath(path, at)
	if err := afero.WriteFile(fs, dst, data, 0o644); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	return dst, nil
}
