// Package logger configures structured logging and captures crash logs.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"
)

// MaxCrashLogs is the maximum number of crash logs to keep
const MaxCrashLogs = 10

// Crash records what the process was doing so a panic can be written to disk
// with context. One instance is built in main and handed to whoever sets context.
type Crash struct {
	mu       sync.RWMutex
	dir      string
	version  string
	command  string
	lastTask string
	now      func() time.Time
	stderr   io.Writer
	exit     func(int)
}

// NewCrash returns a crash recorder writing into dir.
func NewCrash(dir, version string) *Crash {
	return &Crash{
		dir:     dir,
		version: version,
		now:     time.Now,
		stderr:  os.Stderr,
		exit:    os.Exit,
	}
}

// SetDir moves crash logs once the workspace is known.
func (c *Crash) SetDir(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dir = dir
}

// SetCommand sets the current command being executed.
func (c *Crash) SetCommand(cmd string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.command = cmd
}

// SetLastTask notes the most recently admitted work item.
func (c *Crash) SetLastTask(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastTask = truncateForLog(strings.TrimSpace(id), 200)
}

func truncateForLog(value string, maxLen int) string {
	if len(value) <= maxLen {
		return value
	}
	return value[:maxLen] + "... [truncated]"
}

// CrashLog represents a crash log entry.
type CrashLog struct {
	Timestamp  time.Time
	Version    string
	Command    string
	LastTask   string
	PanicValue string
	StackTrace string
	GoVersion  string
	OS         string
	Arch       string
}

// HandlePanic is a deferred function that recovers from panics, logs them and
// exits with status 2.
// Usage: defer crash.HandlePanic()
func (c *Crash) HandlePanic() {
	r := recover()
	if r == nil {
		return
	}
	path, err := c.Capture(r)
	if err != nil {
		fmt.Fprintf(c.stderr, "\n[CRASH] Failed to write crash log: %v\n", err)
		fmt.Fprintf(c.stderr, "[CRASH] Panic: %v\n%s\n", r, debug.Stack())
	} else {
		fmt.Fprintf(c.stderr, "\ntaskfleet encountered an unexpected error.\n")
		fmt.Fprintf(c.stderr, "A crash log has been saved to:\n  %s\n\n", path)
		fmt.Fprintf(c.stderr, "Detached workers already launched keep running.\n")
	}
	c.exit(2)
}

// Capture writes a crash log for panicValue and returns its path.
func (c *Crash) Capture(panicValue any) (string, error) {
	c.mu.RLock()
	log := CrashLog{
		Timestamp:  c.now(),
		Version:    c.version,
		Command:    c.command,
		LastTask:   c.lastTask,
		PanicValue: fmt.Sprintf("%v", panicValue),
		StackTrace: string(debug.Stack()),
		GoVersion:  runtime.Version(),
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
	}
	dir := c.dir
	c.mu.RUnlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create crash log dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("crash_%s.log", log.Timestamp.Format("20060102_150405.000")))
	if err := os.WriteFile(path, []byte(formatCrashLog(log)), 0o644); err != nil {
		return "", fmt.Errorf("write crash log: %w", err)
	}

	if err := cleanOldCrashLogs(dir); err != nil {
		fmt.Fprintf(c.stderr, "[WARN] Failed to clean old crash logs: %v\n", err)
	}
	return path, nil
}

func formatCrashLog(log CrashLog) string {
	rule := strings.Repeat("-", 80) + "\n"
	var sb strings.Builder

	sb.WriteString(strings.Repeat("=", 80) + "\n")
	sb.WriteString("TASKFLEET CRASH LOG\n")
	sb.WriteString(strings.Repeat("=", 80) + "\n\n")

	sb.WriteString(fmt.Sprintf("Timestamp: %s\n", log.Timestamp.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Version:   %s\n", log.Version))
	sb.WriteString(fmt.Sprintf("Command:   %s\n", log.Command))
	if log.LastTask != "" {
		sb.WriteString(fmt.Sprintf("Last task: %s\n", log.LastTask))
	}
	sb.WriteString(fmt.Sprintf("Go:        %s\n", log.GoVersion))
	sb.WriteString(fmt.Sprintf("OS/Arch:   %s/%s\n", log.OS, log.Arch))

	sb.WriteString("\n" + rule + "PANIC VALUE\n" + rule)
	sb.WriteString(log.PanicValue + "\n")

	sb.WriteString("\n" + rule + "STACK TRACE\n" + rule)
	sb.WriteString(log.StackTrace)

	return sb.String()
}

// cleanOldCrashLogs removes old crash logs, keeping only MaxCrashLogs most recent.
func cleanOldCrashLogs(dir string) error {
	logs, err := ListCrashLogs(dir)
	if err != nil {
		return err
	}
	if len(logs) <= MaxCrashLogs {
		return nil
	}
	for _, path := range logs[:len(logs)-MaxCrashLogs] {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove old crash log %s: %w", filepath.Base(path), err)
		}
	}
	return nil
}

// ListCrashLogs returns crash log paths in dir, oldest first.
func ListCrashLogs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var logs []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "crash_") && strings.HasSuffix(e.Name(), ".log") {
			logs = append(logs, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(logs)
	return logs, nil
}
