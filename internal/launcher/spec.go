package launcher

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/josephgoksu/taskfleet/internal/engine"
	"github.com/josephgoksu/taskfleet/internal/task"
)

const taskSpecTemplate = `# Task {{.Item.ID}}: {{.Item.Title}}

- Category: {{if .Item.Category}}{{.Item.Category}}{{else}}Uncategorized{{end}}
- Priority: {{.Item.Priority}}
{{- if .Item.DependsOn}}
- Depends on: {{join .Item.DependsOn ", "}}
{{- end}}

## Objective

{{if .Item.Description}}{{.Item.Description}}{{else}}{{.Item.Title}}{{end}}
{{- if .Item.TestCommand}}

## Acceptance

Run this command. The task is complete only when it passes:

` + "```" + `
{{.Item.TestCommand}}
` + "```" + `
{{- end}}

## Reporting

Write your outcome to ` + "`{{.ResultPath}}`" + ` as JSON:

` + "```json" + `
{{.Schema}}
` + "```" + `

Status must be one of completed, failed or blocked. Write the file even when the
task fails; nothing else tells the coordinator what happened.
`

var taskSpecTmpl = template.Must(template.New("task").
	Funcs(template.FuncMap{"join": strings.Join}).
	Parse(taskSpecTemplate))

// RenderTaskSpec renders the self-contained task specification for item.
func RenderTaskSpec(item task.WorkItem, resultPath string) ([]byte, error) {
	var buf bytes.Buffer
	err := taskSpecTmpl.Execute(&buf, struct {
		Item       task.WorkItem
		ResultPath string
		Schema     string
	}{item, resultPath, engine.ResultSchema})
	if err != nil {
		return nil, fmt.Errorf("render task spec for %s: %w", item.ID, err)
	}
	return buf.Bytes(), nil
}
