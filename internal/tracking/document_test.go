package tracking

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/taskfleet/internal/task"
)

const sample = `# Platform Rewrite

## Progress: 0/4 (0%)

## Core Infrastructure [0/3]

| ID | Task | Status | Priority | Depends On | Test |
|----|------|--------|----------|------------|------|
| 1.1 | Config loader | ⬜ | Critical | | ` + "`go test ./internal/config`" + ` |
| 1.2 | Logger | ⬜ | High | 1.1 | |
| 1.3 | CLI wiring | 🔄 | Medium | 1.1, 1.2 | |

## Docs [0/1]

| ID | Task | Status | Priority |
|----|------|--------|----------|
| 2.1 | README | ⬜ | Low |

## Sessions Log
- 2026-10-16 18:00: launch: 4 items
`

func TestParse(t *testing.T) {
	doc, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "Platform Rewrite", doc.Title)
	require.Len(t, doc.Items, 4)

	first := doc.Items[0]
	assert.Equal(t, "1.1", first.ID)
	assert.Equal(t, "Config loader", first.Name)
	assert.Equal(t, "Core Infrastructure", first.Category)
	assert.Equal(t, task.PriorityCritical, first.Priority)
	assert.Equal(t, "go test ./internal/config", first.TestCommand)

	assert.Equal(t, []string{"1.1", "1.2"}, doc.Items[2].DependsOn)
	assert.Equal(t, task.StatusRunning, doc.Statuses["1.3"])
	assert.Equal(t, "Docs", doc.Items[3].Category)
	assert.Equal(t, task.PriorityLow, doc.Items[3].Priority)
}

func TestParse_EscapedPipeStaysInCell(t *testing.T) {
	src := "## Core\n\n| ID | Task | Status | Priority | Test |\n|---|---|---|---|---|\n" +
		"| 1.1 | Loader | ⬜ | High | `go test ./... \\| tee test.log` |\n"
	doc, err := Parse([]byte(src))
	require.NoError(t, err)
	require.Len(t, doc.Items, 1)
	assert.Equal(t, "go test ./... | tee test.log", doc.Items[0].TestCommand)
	assert.Equal(t, task.PriorityHigh, doc.Items[0].Priority)

	require.True(t, doc.Apply(map[string]task.Status{"1.1": task.StatusCompleted}))
	assert.Contains(t, string(doc.Bytes()), "| 1.1 | Loader | ✅ | High | `go test ./... \\| tee test.log` |")
}

func TestSplitRow(t *testing.T) {
	assert.Equal(t, []string{" a ", " b "}, splitRow("| a | b |"))
	assert.Equal(t, []string{" a ", ` x \| y `}, splitRow(`| a | x \| y |`))
	assert.Equal(t, []string{"a", "b"}, splitRow("a|b"))
}

func TestParse_NoTables(t *testing.T) {
	_, err := Parse([]byte("# Empty\n\nnothing here\n"))
	assert.Error(t, err)
}

func TestParse_UnknownPriority(t *testing.T) {
	_, err := Parse([]byte("## A\n\n| ID | Status | Priority |\n|---|---|---|\n| x | ⬜ | Someday |\n"))
	assert.Error(t, err)
}

func TestApply_RewritesGlyphsAndHeaders(t *testing.T) {
	doc, err := Parse([]byte(sample))
	require.NoError(t, err)

	changed := doc.Apply(map[string]task.Status{
		"1.1": task.StatusCompleted,
		"1.2": task.StatusFailed,
		"2.1": task.StatusCompleted,
	})
	assert.True(t, changed)

	out := string(doc.Bytes())
	assert.Contains(t, out, "## Progress: 2/4 (50%)")
	assert.Contains(t, out, "## Core Infrastructure [1/3]")
	assert.Contains(t, out, "## Docs [1/1]")
	assert.Contains(t, out, "| ✅ |")
	assert.Contains(t, out, "| ❌ |")

	again, err := Parse(doc.Bytes())
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, again.Statuses["1.1"])
	assert.Equal(t, task.StatusFailed, again.Statuses["1.2"])

	assert.False(t, again.Apply(map[string]task.Status{"1.1": task.StatusCompleted}))
}

func TestApply_InsertsMissingProgress(t *testing.T) {
	doc, err := Parse([]byte("# T\n\n## A\n\n| ID | Status |\n|---|---|\n| x | ⬜ |\n"))
	require.NoError(t, err)

	doc.Apply(map[string]task.Status{"x": task.StatusCompleted})
	lines := strings.Split(string(doc.Bytes()), "\n")
	assert.Equal(t, "## Progress: 1/1 (100%)", lines[2])
	assert.Contains(t, string(doc.Bytes()), "| x | ✅ |")
}

func TestAppendSession(t *testing.T) {
	doc, err := Parse([]byte(sample))
	require.NoError(t, err)

	doc.AppendSession("2026-10-17 10:00: aggregate: 2 completed")
	out := string(doc.Bytes())
	assert.True(t, strings.HasSuffix(out,
		"- 2026-10-16 18:00: launch: 4 items\n- 2026-10-17 10:00: aggregate: 2 completed\n"))

	bare, err := Parse([]byte("## A\n\n| ID | Status |\n|---|---|\n| x | ⬜ |\n"))
	require.NoError(t, err)
	bare.AppendSession("first")
	assert.True(t, strings.HasSuffix(string(bare.Bytes()), "\n## Sessions Log\n- first\n"))
}

func TestBackup(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/ws/TASKS.md", []byte(sample), 0o644))

	at := time.Date(2026, 10, 17, 10, 4, 5, 0, time.UTC)
	dst, err := Backup(fs, "/ws/TASKS.md", at)
	require.NoError(t, err)
	assert.Equal(t, "/ws/TASKS.md.20261017-100405.bak", dst)

	data, err := afero.ReadFile(fs, dst)
	require.NoError(t, err)
	assert.Equal(t, sample, string(data))
}
