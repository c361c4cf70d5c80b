package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/josephgoksu/taskfleet/internal/artifact"
	"github.com/josephgoksu/taskfleet/internal/config"
	"github.com/josephgoksu/taskfleet/internal/history"
	"github.com/josephgoksu/taskfleet/internal/task"
	"github.com/josephgoksu/taskfleet/internal/tracking"
)

// workspace is a validated work item set plus where its artifacts live.
type workspace struct {
	cfg    *config.AppConfig
	fs     afero.Fs
	layout artifact.Layout
	title  string
	items  []task.WorkItem
	graph  *task.Graph
	// trackingPath is empty when items came from a manifest.
	trackingPath string
}

// openWorkspace loads and validates the configured tasks file. Any failure is
// fatal: nothing runs against an invalid item set.
func openWorkspace() (*workspace, error) {
	cfg := appCfg
	fs := afero.NewOsFs()
	ws := &workspace{cfg: cfg, fs: fs, layout: artifact.NewLayout(cfg.Workspace)}

	if task.IsManifestPath(cfg.Tasks) {
		m, err := task.LoadManifest(cfg.Tasks)
		if err != nil {
			return nil, fatal(err)
		}
		ws.title, ws.items = m.Title, m.Items
	} else {
		doc, err := tracking.Load(fs, cfg.Tasks)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fatal(fmt.Errorf("tasks file %s not found (set --tasks)", cfg.Tasks))
			}
			return nil, fatal(err)
		}
		ws.title, ws.items, ws.trackingPath = doc.Title, doc.Items, cfg.Tasks
	}

	g, err := task.Validate(ws.items)
	if err != nil {
		return nil, fatal(fmt.Errorf("invalid task set in %s: %w", cfg.Tasks, err))
	}
	ws.graph = g
	slog.Debug("workspace loaded", "tasks", cfg.Tasks, "items", len(ws.items))
	return ws, nil
}

// addFilterFlags registers --category and --priority on cmd.
func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("category", nil, "only items in this category (repeatable)")
	cmd.Flags().String("priority", "", "only items at or above this priority (low, medium, high, critical)")
}

func filterFromFlags(cmd *cobra.Command) (task.Filter, error) {
	var f task.Filter
	cats, _ := cmd.Flags().GetStringSlice("category")
	f.Categories = cats
	if p, _ := cmd.Flags().GetString("priority"); strings.TrimSpace(p) != "" {
		prio, err := task.ParsePriority(p)
		if err != nil {
			return f, fatal(err)
		}
		f.MinPriority = prio
	}
	return f, nil
}

// recordRun appends a run to the history ledger. Ledger problems never fail
// the command.
func recordRun(ctx context.Context, cfg *config.AppConfig, r history.Run, results []task.TaskResult) {
	if cfg.History.Disabled {
		return
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		slog.Warn("history unavailable", "path", cfg.History.Path, "error", err)
		return
	}
	defer store.Close()
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now()
	}
	if _, err := store.Record(ctx, r, results); err != nil {
		slog.Warn("history record failed", "kind", r.Kind, "error", err)
	}
}

// sortedKeys returns the keys of m in lexical order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// workDir is the project directory workers and engines run in.
func workDir() string {
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}
