package tracking

import (
	"fmt"
	"strings"

	"github.com/josephgoksu/taskfleet/internal/task"
)

// Apply records statuses in the document and refreshes every category header
// and the overall progress line. It reports whether any line changed.
func (d *Document) Apply(statuses map[string]task.Status) bool {
	before := strings.Join(d.lines, "\n")

	for id, s := range statuses {
		r, ok := d.rows[id]
		if !ok {
			continue
		}
		d.Statuses[id] = s
		cells := splitRow(d.lines[r.line])
		if r.statusCol >= len(cells) {
			continue
		}
		cells[r.statusCol] = " " + Glyph(s) + " "
		d.lines[r.line] = "|" + strings.Join(cells, "|") + "|"
	}

	for _, sec := range d.sections {
		if len(sec.ids) == 0 {
			continue
		}
		done := 0
		for _, id := range sec.ids {
			if d.Statuses[id] == task.StatusCompleted {
				done++
			}
		}
		d.lines[sec.line] = fmt.Sprintf("## %s [%d/%d]", sec.name, done, len(sec.ids))
	}

	d.setProgress()

	return strings.Join(d.lines, "\n") != before
}

// Counts tallies the document's current statuses.
func (d *Document) Counts() task.Counts {
	return task.CountStatuses(d.Items, d.Statuses)
}

func (d *Document) setProgress() {
	c := d.Counts()
	line := fmt.Sprintf("%s %d/%d (%d%%)", progressPrefix, c.Completed, c.Total, c.Percent())

	for i, l := range d.lines {
		if progressRe.MatchString(strings.TrimSpace(l)) {
			d.lines[i] = line
			return
		}
	}

	// No progress line yet: place it after the title.
	at := 0
	for i, l := range d.lines {
		if strings.HasPrefix(strings.TrimSpace(l), "# ") {
			at = i + 1
			break
		}
	}
	d.insertLines(at, "", line)
}

// AppendSession adds one entry to the Sessions Log, creating the section if needed.
func (d *Document) AppendSession(entry string) {
	entry = "- " + strings.TrimSpace(entry)

	start := -1
	for i, l := range d.lines {
		if strings.TrimSpace(l) == sessionsHeading {
			start = i
			break
		}
	}
	if start < 0 {
		for len(d.lines) > 0 && strings.TrimSpace(d.lines[len(d.lines)-1]) == "" {
			d.lines = d.lines[:len(d.lines)-1]
		}
		d.lines = append(d.lines, "", sessionsHeading, entry)
		return
	}

	// Insert after the last list entry of the section.
	at := start + 1
	for i := start + 1; i < len(d.lines); i++ {
		l := strings.TrimSpace(d.lines[i])
		if strings.HasPrefix(l, "## ") {
			break
		}
		if strings.HasPrefix(l, "- ") {
			at = i + 1
		}
	}
	d.insertLines(at, entry)
}

func (d *Document) insertLines(at int, lines ...string) {
	out := make([]string, 0, len(d.lines)+len(lines))
	out = append(out, d.lines[:at]...)
	out = append(out, lines...)
	out = append(out, d.lines[at:]...)
	d.lines = out

	for id, r := range d.rows {
		if r.line >= at {
			r.line += len(lines)
			d.rows[id] = r
		}
	}
	for i := range d.sections {
		if d.sections[i].line >= at {
			d.sections[i].line += len(lines)
		}
	}
}

// Bytes renders the document with a trailing newline.
func (d *Document) Bytes() []byte {
	return []byte(strings.Join(d.lines, "\n") + "\n")
}
