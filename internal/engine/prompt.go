package engine

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/josephgoksu/taskfleet/internal/task"
)

const defaultPrompt = `You are working on task {{.Item.ID}}: {{.Item.Title}}
{{- if .Item.Category}}
Category: {{.Item.Category}}
{{- end}}
Priority: {{.Item.Priority}}
{{- if .Item.Description}}

{{.Item.Description}}
{{- end}}
{{- if .Item.DependsOn}}

This task builds on the completed tasks: {{join .Item.DependsOn ", "}}.
{{- end}}
{{- if .Item.TestCommand}}

Acceptance check: the task is done only when this command passes:
    {{.Item.TestCommand}}
{{- end}}
{{- if .ResultPath}}

When you finish, write a JSON file to {{.ResultPath}} with exactly this shape:
{{.Schema}}
Use "completed" if the acceptance check passed, "failed" if it did not, and
"blocked" if you could not start. Write the file even when you fail.
{{- else}}

End your reply with a status block in this shape (task_id and timestamp may be omitted):
{{.Schema}}
{{- end}}
`

// ResultSchema is the example shown to workers.
const ResultSchema = `{
  "task_id": "<id>",
  "status": "completed" | "failed" | "blocked",
  "files_created": ["path", "..."],
  "test_result": "pass" | "fail",
  "notes": "what you did and anything left open",
  "timestamp": "<ISO-8601>"
}`

var funcs = template.FuncMap{"join": strings.Join}

var promptTmpl = template.Must(template.New("prompt").Funcs(funcs).Parse(defaultPrompt))

type promptData struct {
	Item       task.WorkItem
	ResultPath string
	Schema     string
}

// BuildPrompt renders the prompt for item. A non-empty item.Template replaces
// the default template and sees the same fields. resultPath may be empty for
// in-process runs, which report through the adapter instead.
func BuildPrompt(item task.WorkItem, resultPath string) (string, error) {
	tmpl := promptTmpl
	if strings.TrimSpace(item.Template) != "" {
		custom, err := template.New(item.ID).Funcs(funcs).Parse(item.Template)
		if err != nil {
			return "", fmt.Errorf("parse template for %s: %w", item.ID, err)
		}
		tmpl = custom
	}

	var buf bytes.Buffer
	data := promptData{Item: item, ResultPath: resultPath, Schema: ResultSchema}
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt for %s: %w", item.ID, err)
	}
	return buf.String(), nil
}
