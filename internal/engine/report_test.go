package engine

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"

	"github.com/josephgoksu/taskfleet/internal/task"
)

func TestParseSelfReport(t *testing.T) {
	tests := []struct {
		name   string
		output string
		ok     bool
		status string
		notes  string
	}{
		{
			name:   "fenced block after prose",
			output: "Implemented the loader.\n```json\n{\"status\": \"completed\", \"notes\": \"loader done\", \"files_created\": [\"a.go\"]}\n```",
			ok:     true, status: "completed", notes: "loader done",
		},
		{
			name:   "last block wins",
			output: `first {"status": "failed", "notes": "draft"} then {"status": "completed", "notes": "final"}`,
			ok:     true, status: "completed", notes: "final",
		},
		{
			name:   "trailing comma and single quotes",
			output: "{'status': 'blocked', 'notes': 'waiting on 1.1',}",
			ok:     true, status: "blocked", notes: "waiting on 1.1",
		},
		{
			name:   "raw newline inside a string",
			output: "{\"status\": \"failed\", \"notes\": \"tests failed:\nTestLoad\"}",
			ok:     true, status: "failed", notes: "tests failed:\nTestLoad",
		},
		{
			name:   "nested object",
			output: `{"status": "completed", "notes": "ok", "extra": {"k": 1}}`,
			ok:     true, status: "completed", notes: "ok",
		},
		{name: "non terminal status", output: `{"status": "running"}`},
		{name: "no json", output: "all done"},
		{name: "schema placeholder", output: `{"status": "completed" | "failed"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep, ok := parseSelfReport(tt.output)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.status, rep.Status)
				assert.Equal(t, tt.notes, rep.Notes)
			}
		})
	}
}

func TestChat_SelfReportedFailure(t *testing.T) {
	content := "I could not make the tests pass.\n" +
		`{"status": "failed", "notes": "TestLoad still red", "test_result": "fail", "files_created": ["internal/config/loader.go"]}`
	m := &MockChatModel{Response: &schema.Message{Role: schema.Assistant, Content: content}}
	res := newTestChat(m).Execute(context.Background(), sampleItem)

	assert.Equal(t, task.StatusFailed, res.Status)
	assert.Equal(t, "TestLoad still red", res.Notes)
	assert.Equal(t, "TestLoad still red", res.Error)
	assert.Equal(t, "fail", res.TestResult)
	assert.Equal(t, []string{"internal/config/loader.go"}, res.FilesCreated)
	assert.Contains(t, m.Seen[1].Content, "status block")
}
