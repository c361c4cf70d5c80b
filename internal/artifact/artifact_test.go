package artifact

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/taskfleet/internal/task"
)

func TestLayoutPaths(t *testing.T) {
	l := NewLayout("/ws")
	assert.Equal(t, filepath.Join("/ws", "results", "result_3_2.json"), l.ResultPath("3.2"))
	assert.Equal(t, filepath.Join("/ws", "logs", "task_3_2.log"), l.LogPath("3.2"))
	assert.Equal(t, filepath.Join("/ws", "tasks", "task_3_2.md"), l.TaskPath("3.2"))
	assert.Equal(t, filepath.Join("/ws", "tasks", "prompt_3_2.txt"), l.PromptPath("3.2"))
}

func TestWriteAndReadResult(t *testing.T) {
	fs := afero.NewMemMapFs()
	l := NewLayout("/ws")
	ts := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

	err := WriteResult(fs, l, task.TaskResult{
		TaskID:    "1.1",
		Status:    task.StatusCompleted,
		Notes:     "done",
		Duration:  1500 * time.Millisecond,
		Timestamp: ts,
	})
	require.NoError(t, err)

	exists, err := afero.Exists(fs, l.ResultPath("1.1")+".tmp")
	require.NoError(t, err)
	assert.False(t, exists, "temporary file must be renamed away")

	r, err := ReadResult(fs, l.ResultPath("1.1"))
	require.NoError(t, err)
	assert.Equal(t, "completed", r.Status)
	assert.Equal(t, []string{}, r.FilesCreated)
	assert.Equal(t, int64(1500), r.DurationMS)
	assert.True(t, ts.Equal(r.Timestamp))

	back := r.TaskResult()
	assert.Equal(t, task.StatusCompleted, back.Status)
	assert.Equal(t, 1500*time.Millisecond, back.Duration)
}

func TestReadResult_WorkerTimestampWithoutZone(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/r.json",
		[]byte(`{"task_id":"a","status":"failed","timestamp":"2026-10-17T08:00:00.123456","notes":"tests broke"}`), 0o644))

	r, err := ReadResult(fs, "/r.json")
	require.NoError(t, err)
	assert.Equal(t, 8, r.Timestamp.Hour())
	assert.Equal(t, "tests broke", r.Notes)
}

func TestReadResult_Malformed(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/bad.json", []byte(`{"status":`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/nostatus.json", []byte(`{"task_id":"x"}`), 0o644))

	_, err := ReadResult(fs, "/bad.json")
	assert.True(t, errors.Is(err, ErrMalformedResult))

	_, err = ReadResult(fs, "/nostatus.json")
	assert.ErrorIs(t, err, ErrMalformedResult)

	for _, st := range []string{"pending", "running", "in_progress"} {
		require.NoError(t, afero.WriteFile(fs, "/open.json", []byte(`{"status":"`+st+`"}`), 0o644))
		_, err = ReadResult(fs, "/open.json")
		assert.ErrorIs(t, err, ErrMalformedResult, st)
	}
}

func TestScanResults(t *testing.T) {
	fs := afero.NewMemMapFs()
	l := NewLayout("/ws")
	require.NoError(t, l.Ensure(fs))
	require.NoError(t, afero.WriteFile(fs, l.ResultPath("a"), []byte(`{"status":"completed"}`), 0o644))
	require.NoError(t, afero.WriteFile(fs, l.ResultPath("b"), []byte(`not json`), 0o644))

	items := []task.WorkItem{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	results, errs := ScanResults(fs, l, items)

	require.Contains(t, results, "a")
	assert.Equal(t, "a", results["a"].TaskID)
	assert.Contains(t, errs, "b")
	assert.NotContains(t, results, "c")
	assert.NotContains(t, errs, "c")
}

func TestLaunchManifestRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	l := NewLayout("/ws")

	m, err := ReadLaunchManifest(fs, l)
	require.NoError(t, err)
	assert.Nil(t, m)

	in := &LaunchManifest{
		RunID:     "run-1",
		StartedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Entries: map[string]LaunchEntry{
			"a": {TaskID: "a", Error: "exec: \"tmux\": not found"},
		},
	}
	require.NoError(t, WriteLaunchManifest(fs, l, in))

	out, err := ReadLaunchManifest(fs, l)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "run-1", out.RunID)
	assert.True(t, out.Entries["a"].Failed())
}
