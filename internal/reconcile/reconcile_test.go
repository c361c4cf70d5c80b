package reconcile

import (
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/taskfleet/internal/artifact"
	"github.com/josephgoksu/taskfleet/internal/task"
)

var base = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

func touchLog(t *testing.T, fs afero.Fs, l artifact.Layout, id string, age time.Duration) {
	t.Helper()
	path := l.LogPath(id)
	require.NoError(t, afero.WriteFile(fs, path, []byte("working\n"), 0o644))
	mtime := base.Add(-age)
	require.NoError(t, fs.Chtimes(path, mtime, mtime))
}

func writeRaw(t *testing.T, fs afero.Fs, l artifact.Layout, id, body string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, l.ResultPath(id), []byte(body), 0o644))
}

func pollOne(t *testing.T, fs afero.Fs, l artifact.Layout, id string) ItemState {
	t.Helper()
	r := New(fs, l, []task.WorkItem{{ID: id}}, WithClock(func() time.Time { return base }))
	snap, err := r.Poll()
	require.NoError(t, err)
	require.Len(t, snap.Items, 1)
	return snap.Items[0]
}

func TestPrecedenceExample(t *testing.T) {
	fs := afero.NewMemMapFs()
	l := artifact.NewLayout("/ws")

	assert.Equal(t, StatePending, pollOne(t, fs, l, "3.2").State)

	touchLog(t, fs, l, "3.2", 10*time.Second)
	assert.Equal(t, StateRunning, pollOne(t, fs, l, "3.2").State)

	touchLog(t, fs, l, "3.2", 300*time.Second)
	st := pollOne(t, fs, l, "3.2")
	assert.Equal(t, StateStalled, st.State)
	assert.Contains(t, st.Note, "5m0s")

	touchLog(t, fs, l, "3.2", 1*time.Second)
	writeRaw(t, fs, l, "3.2", `{"status":"completed"}`)
	assert.Equal(t, "/ws/results/result_3_2.json", l.ResultPath("3.2"))
	st = pollOne(t, fs, l, "3.2")
	assert.Equal(t, StateCompleted, st.State)
	require.NotNil(t, st.Result)
}

func TestLivenessWindowOption(t *testing.T) {
	fs := afero.NewMemMapFs()
	l := artifact.NewLayout("/ws")
	touchLog(t, fs, l, "A", 90*time.Second)

	r := New(fs, l, []task.WorkItem{{ID: "A"}},
		WithClock(func() time.Time { return base }),
		WithLiveness(2*time.Minute))
	snap, err := r.Poll()
	require.NoError(t, err)
	assert.Equal(t, StateRunning, snap.Items[0].State)
}

func TestMalformedResultDegradesOnlyThatItem(t *testing.T) {
	fs := afero.NewMemMapFs()
	l := artifact.NewLayout("/ws")
	items := []task.WorkItem{{ID: "A", Category: "core"}, {ID: "B", Category: "core"}, {ID: "C"}}
	writeRaw(t, fs, l, "A", `{"status": "comp`)
	writeRaw(t, fs, l, "B", `{"status":"failed","notes":"tests red"}`)
	writeRaw(t, fs, l, "C", `{"notes":"no status"}`)

	snap, err := New(fs, l, items, WithClock(func() time.Time { return base })).Poll()
	require.NoError(t, err)

	assert.Equal(t, StateError, snap.Items[0].State)
	assert.Contains(t, snap.Items[0].Note, "malformed")
	assert.Equal(t, StateFailed, snap.Items[1].State)
	assert.Equal(t, "tests red", snap.Items[1].Note)
	assert.Equal(t, StateError, snap.Items[2].State)

	assert.Equal(t, 3, snap.Counts.Total)
	assert.Equal(t, 1, snap.Counts.Failed)
	assert.Equal(t, 2, snap.Counts.Other)
}

func TestNonTerminalResultIsError(t *testing.T) {
	fs := afero.NewMemMapFs()
	l := artifact.NewLayout("/ws")
	touchLog(t, fs, l, "3.2", 10*time.Minute)
	writeRaw(t, fs, l, "3.2", `{"status":"pending"}`)

	st := pollOne(t, fs, l, "3.2")
	assert.Equal(t, StateError, st.State)
	assert.Nil(t, st.Result)
	assert.Contains(t, st.Note, "not terminal")
	assert.Equal(t, task.StatusFailed, st.State.TaskStatus())
}

func TestLaunchFailureFromManifest(t *testing.T) {
	fs := afero.NewMemMapFs()
	l := artifact.NewLayout("/ws")
	started := base.Add(-10 * time.Minute)
	require.NoError(t, artifact.WriteLaunchManifest(fs, l, &artifact.LaunchManifest{
		RunID:     "r1",
		StartedAt: started,
		Entries: map[string]artifact.LaunchEntry{
			"A": {TaskID: "A", Error: "exec: \"xterm\": executable file not found"},
			"B": {TaskID: "B", Error: "refused"},
			"C": {TaskID: "C", LaunchedAt: started},
		},
	}))
	writeRaw(t, fs, l, "B", `{"status":"completed"}`)

	items := []task.WorkItem{{ID: "A"}, {ID: "B"}, {ID: "C"}}
	snap, err := New(fs, l, items, WithClock(func() time.Time { return base })).Poll()
	require.NoError(t, err)

	assert.Equal(t, StateLaunchFailed, snap.Items[0].State)
	assert.Contains(t, snap.Items[0].Note, "xterm")
	assert.Equal(t, StateCompleted, snap.Items[1].State, "a result outranks a launch error")
	assert.Equal(t, StatePending, snap.Items[2].State)
	assert.True(t, snap.Items[2].LaunchedAt.Equal(started))
	assert.Equal(t, 10*time.Minute, snap.Elapsed())
}

func TestPollIsReadOnlyAndIdempotent(t *testing.T) {
	fs := afero.NewMemMapFs()
	l := artifact.NewLayout("/ws")
	touchLog(t, fs, l, "A", 5*time.Second)
	writeRaw(t, fs, l, "B", `{"status":"blocked","notes":"needs A"}`)

	r := New(fs, l, []task.WorkItem{{ID: "A"}, {ID: "B"}}, WithClock(func() time.Time { return base }))
	first, err := r.Poll()
	require.NoError(t, err)
	second, err := r.Poll()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	var files []string
	require.NoError(t, afero.Walk(fs, "/ws", func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			files = append(files, path)
		}
		return err
	}))
	assert.ElementsMatch(t, []string{l.LogPath("A"), l.ResultPath("B")}, files)
}

func TestSnapshotRollupsAndStatuses(t *testing.T) {
	fs := afero.NewMemMapFs()
	l := artifact.NewLayout("/ws")
	items := []task.WorkItem{
		{ID: "1", Category: "core"}, {ID: "2", Category: "core"}, {ID: "3", Category: "ui"},
	}
	writeRaw(t, fs, l, "1", `{"status":"completed"}`)
	touchLog(t, fs, l, "3", 400*time.Second)

	snap, err := New(fs, l, items, WithClock(func() time.Time { return base })).Poll()
	require.NoError(t, err)

	require.Len(t, snap.Rollups, 2)
	assert.Equal(t, "core", snap.Rollups[0].Category)
	assert.Equal(t, 1, snap.Rollups[0].Completed)
	assert.Equal(t, 2, snap.Rollups[0].Total)
	assert.Equal(t, 1, snap.Count(StateStalled))

	statuses := snap.Statuses()
	assert.Equal(t, task.StatusCompleted, statuses["1"])
	assert.Equal(t, task.StatusPending, statuses["2"])
	assert.Equal(t, task.StatusRunning, statuses["3"])
}

func TestTailLog(t *testing.T) {
	fs := afero.NewMemMapFs()
	var b strings.Builder
	for i := 1; i <= 50; i++ {
		fmt.Fprintf(&b, "line %d\r\n", i)
	}
	require.NoError(t, afero.WriteFile(fs, "/log", []byte(b.String()), 0o644))

	lines, err := TailLog(fs, "/log", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"line 48", "line 49", "line 50"}, lines)

	lines, err = TailLog(fs, "/log", 100)
	require.NoError(t, err)
	assert.Len(t, lines, 50)

	_, err = TailLog(fs, "/missing", 3)
	assert.Error(t, err)
}

func TestTailLogLargeFileDropsPartialLine(t *testing.T) {
	fs := afero.NewMemMapFs()
	big := strings.Repeat("x", tailWindow+10) + "\nlast\n"
	require.NoError(t, afero.WriteFile(fs, "/log", []byte(big), 0o644))

	lines, err := TailLog(fs, "/log", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"last"}, lines)
}
