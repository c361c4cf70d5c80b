// Package tracking reads and rewrites the markdown tracking document that
// lists work items per category.
package tracking

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/josephgoksu/taskfleet/internal/task"
)

// Status glyphs used in the Status column.
const (
	GlyphPending   = "⬜"
	GlyphRunning   = "🔄"
	GlyphCompleted = "✅"
	GlyphFailed    = "❌"
	GlyphBlocked   = "🚫"
)

const (
	progressPrefix  = "## Progress:"
	sessionsHeading = "## Sessions Log"
)

var (
	categoryRe = regexp.MustCompile(`^##\s+(.+?)\s*(\[\d+/\d+\])?\s*$`)
	progressRe = regexp.MustCompile(`^##\s+Progress:`)
)

// Glyph returns the status marker for s.
func Glyph(s task.Status) string {
	switch s {
	case task.StatusRunning:
		return GlyphRunning
	case task.StatusCompleted:
		return GlyphCompleted
	case task.StatusFailed:
		return GlyphFailed
	case task.StatusBlocked:
		return GlyphBlocked
	default:
		return GlyphPending
	}
}

// ParseGlyph reads a Status cell. Glyphs win over words; anything unknown is pending.
func ParseGlyph(cell string) task.Status {
	switch {
	case strings.Contains(cell, GlyphCompleted):
		return task.StatusCompleted
	case strings.Contains(cell, GlyphFailed):
		return task.StatusFailed
	case strings.Contains(cell, GlyphBlocked):
		return task.StatusBlocked
	case strings.Contains(cell, GlyphRunning):
		return task.StatusRunning
	}
	if s, err := task.ParseStatus(strings.Trim(cell, " *`")); err == nil {
		return s
	}
	return task.StatusPending
}

type row struct {
	line      int
	statusCol int
	category  int
}

type section struct {
	name string
	line int
	ids  []string
}

// Document is a parsed tracking document. It keeps the original lines so that
// rewrites touch only status cells and progress headers.
type Document struct {
	Title    string
	Items    []task.WorkItem
	Statuses map[string]task.Status

	lines    []string
	rows     map[string]row
	sections []section
}

// Parse reads a tracking document. Tables are recognised by an ID column;
// other columns are matched by header name and are optional except Status.
func Parse(data []byte) (*Document, error) {
	doc := &Document{
		Statuses: map[string]task.Status{},
		rows:     map[string]row{},
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		doc.lines = append(doc.lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan tracking document: %w", err)
	}

	current := -1
	var cols map[string]int
	for i := 0; i < len(doc.lines); i++ {
		line := strings.TrimSpace(doc.lines[i])

		switch {
		case strings.HasPrefix(line, "# ") && doc.Title == "":
			doc.Title = strings.TrimSpace(strings.TrimPrefix(line, "# "))
			continue
		case strings.HasPrefix(line, "## "):
			cols = nil
			if progressRe.MatchString(line) || line == sessionsHeading {
				current = -1
				continue
			}
			if m := categoryRe.FindStringSubmatch(line); m != nil {
				doc.sections = append(doc.sections, section{name: m[1], line: i})
				current = len(doc.sections) - 1
			}
			continue
		case !strings.HasPrefix(line, "|"):
			cols = nil
			continue
		}

		cells := splitRow(line)
		if cols == nil {
			cols = headerColumns(cells)
			if cols == nil {
				continue
			}
			// Skip the separator row.
			if i+1 < len(doc.lines) && isSeparator(doc.lines[i+1]) {
				i++
			}
			continue
		}

		id := cellAt(cells, cols, "id")
		if id == "" {
			continue
		}
		if _, dup := doc.rows[id]; dup {
			// Keep both so validation can report the duplicate.
			doc.Items = append(doc.Items, task.WorkItem{ID: id})
			continue
		}

		it, err := rowItem(cells, cols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		if current >= 0 {
			it.Category = doc.sections[current].name
			doc.sections[current].ids = append(doc.sections[current].ids, id)
		}
		doc.Items = append(doc.Items, it)
		doc.Statuses[id] = ParseGlyph(cellAt(cells, cols, "status"))
		doc.rows[id] = row{line: i, statusCol: cols["status"], category: current}
	}

	if len(doc.Items) == 0 {
		return nil, fmt.Errorf("no task tables found")
	}
	return doc, nil
}

func rowItem(cells []string, cols map[string]int) (task.WorkItem, error) {
	prio, err := task.ParsePriority(cellAt(cells, cols, "priority"))
	if err != nil {
		return task.WorkItem{}, err
	}
	it := task.WorkItem{
		ID:          cellAt(cells, cols, "id"),
		Name:        cellAt(cells, cols, "task"),
		Description: cellAt(cells, cols, "description"),
		Priority:    prio,
		TestCommand: strings.Trim(cellAt(cells, cols, "test"), "`"),
	}
	for _, dep := range strings.Split(cellAt(cells, cols, "depends"), ",") {
		dep = strings.Trim(strings.TrimSpace(dep), "`")
		if dep != "" && dep != "-" {
			it.DependsOn = append(it.DependsOn, dep)
		}
	}
	return it, nil
}

// headerColumns maps normalised column names to indices. It returns nil when
// the row is not a task table header.
func headerColumns(cells []string) map[string]int {
	cols := map[string]int{}
	for i, c := range cells {
		switch strings.ToLower(strings.TrimSpace(c)) {
		case "id":
			cols["id"] = i
		case "task", "name", "title":
			cols["task"] = i
		case "status":
			cols["status"] = i
		case "priority":
			cols["priority"] = i
		case "depends on", "depends", "dependencies", "deps":
			cols["depends"] = i
		case "test", "test command", "acceptance":
			cols["test"] = i
		case "description":
			cols["description"] = i
		}
	}
	if _, ok := cols["id"]; !ok {
		return nil
	}
	if _, ok := cols["status"]; !ok {
		return nil
	}
	return cols
}

func cellAt(cells []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(cells) {
		return ""
	}
	return strings.ReplaceAll(strings.TrimSpace(cells[i]), `\|`, "|")
}

// splitRow returns the raw cells of a pipe table row without the outer
// borders. Escaped pipes (\|) stay inside their cell, still escaped, so a
// row can be joined back unchanged.
func splitRow(line string) []string {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "|")
	if strings.HasSuffix(line, "|") && !strings.HasSuffix(line, `\|`) {
		line = line[:len(line)-1]
	}

	var cells []string
	start := 0
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			i++
		case '|':
			cells = append(cells, line[start:i])
			start = i + 1
		}
	}
	return append(cells, line[start:])
}

func isSeparator(line string) bool {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "|") {
		return false
	}
	return strings.Trim(line, "|-: ") == ""
}
