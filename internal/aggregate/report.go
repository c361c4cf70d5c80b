package aggregate

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/josephgoksu/taskfleet/internal/artifact"
	"github.com/josephgoksu/taskfleet/internal/task"
)

// ReportInput is everything a report is computed from. Identical inputs render
// byte-identical reports: no wall clock is consulted.
type ReportInput struct {
	Title    string
	Items    []task.WorkItem
	Results  map[string]artifact.Result
	Statuses map[string]task.Status
	// Malformed lists result artifacts that could not be read.
	Malformed map[string]error
}

// RenderReport builds the markdown report.
func RenderReport(in ReportInput) []byte {
	title := cases.Title(language.English)
	counts := task.CountStatuses(in.Items, in.Statuses)
	rollups := task.Rollup(in.Items, in.Statuses)

	var sb strings.Builder
	name := strings.TrimSpace(in.Title)
	if name == "" {
		name = "Task Fleet"
	}
	sb.WriteString(fmt.Sprintf("# %s: Execution Report\n\n", name))
	if asOf := artifact.NewestTimestamp(in.Results); !asOf.IsZero() {
		sb.WriteString(fmt.Sprintf("_As of %s (newest result)._\n\n", asOf.UTC().Format(time.RFC3339)))
	} else {
		sb.WriteString("_No results recorded yet._\n\n")
	}

	sb.WriteString("## Executive Summary\n\n")
	sb.WriteString(fmt.Sprintf("%d of %d items completed (%d%%). %d failed, %d blocked, %d without a result.\n\n",
		counts.Completed, counts.Total, counts.Percent(), counts.Failed, counts.Blocked, counts.Total-counts.Finished()))
	sb.WriteString("| Status | Count |\n|--------|-------|\n")
	for _, row := range []struct {
		status task.Status
		n      int
	}{
		{task.StatusCompleted, counts.Completed},
		{task.StatusFailed, counts.Failed},
		{task.StatusBlocked, counts.Blocked},
		{task.StatusPending, counts.Total - counts.Finished()},
	} {
		sb.WriteString(fmt.Sprintf("| %s | %d |\n", title.String(string(row.status)), row.n))
	}
	sb.WriteString(fmt.Sprintf("| Total | %d |\n\n", counts.Total))

	if len(in.Malformed) > 0 {
		sb.WriteString(fmt.Sprintf("%d result file(s) could not be read and are counted as missing.\n\n", len(in.Malformed)))
	}

	sb.WriteString("## Categories\n\n")
	sb.WriteString("| Category | Completed | Failed | Blocked | Total | Success Rate |\n")
	sb.WriteString("|----------|-----------|--------|---------|-------|--------------|\n")
	for _, r := range rollups {
		sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %d | %.1f%% |\n",
			r.Category, r.Completed, r.Failed, r.Blocked, r.Total, r.SuccessRate()))
	}
	sb.WriteString("\n")

	for _, status := range []task.Status{task.StatusCompleted, task.StatusFailed, task.StatusBlocked} {
		var lines []string
		for _, it := range in.Items {
			if in.Statuses[it.ID] != status {
				continue
			}
			lines = append(lines, listing(it, in.Results[it.ID]))
		}
		sb.WriteString(fmt.Sprintf("## %s (%d)\n\n", title.String(string(status)), len(lines)))
		if len(lines) == 0 {
			sb.WriteString("_None._\n\n")
			continue
		}
		sb.WriteString(strings.Join(lines, "\n"))
		sb.WriteString("\n\n")
	}

	if len(in.Malformed) > 0 {
		sb.WriteString("## Unreadable Results\n\n")
		for _, it := range in.Items {
			if err, ok := in.Malformed[it.ID]; ok {
				sb.WriteString(fmt.Sprintf("- **%s**: %s\n", it.ID, oneLine(err.Error())))
			}
		}
		sb.WriteString("\n")
	}

	return []byte(strings.TrimRight(sb.String(), "\n") + "\n")
}

func listing(it task.WorkItem, r artifact.Result) string {
	line := fmt.Sprintf("- **%s** %s", it.ID, it.Title())
	note := oneLine(r.Notes)
	if note == "" {
		note = oneLine(r.Error)
	}
	if note != "" {
		line += ": " + note
	}
	if r.TestResult != "" {
		line += fmt.Sprintf(" (test: %s)", r.TestResult)
	}
	if len(r.FilesCreated) > 0 {
		line += fmt.Sprintf(" [%d file(s)]", len(r.FilesCreated))
	}
	return line
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
