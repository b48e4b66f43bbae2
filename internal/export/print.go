package export

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/estateops/taskdesk/models"
)

var printTemplate = template.Must(template.New("print").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 2rem; color: #111; }
h1 { margin-bottom: 0.25rem; }
.meta { color: #555; margin-bottom: 1.5rem; }
.meta span { margin-right: 1.5rem; }
.section { margin-top: 1.5rem; }
.thread-item { border-left: 3px solid #ddd; padding-left: 0.75rem; margin-bottom: 0.75rem; }
.thread-item .who { font-weight: bold; }
.thread-item .when { color: #888; font-size: 0.85rem; }
ul { padding-left: 1.25rem; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<div class="meta">
<span>Status: {{.Status}}</span>
<span>Priority: {{.Priority}}</span>
{{if .Category}}<span>Category: {{.Category}}</span>{{end}}
{{if .DueDate}}<span>Due: {{.DueDate}}</span>{{end}}
</div>
<div class="meta">
<span>Created: {{.CreatedAt.Format "2006-01-02 15:04"}}</span>
<span>Updated: {{.UpdatedAt.Format "2006-01-02 15:04"}}</span>
</div>
{{if .Assignees}}<div class="section"><strong>Assignees:</strong> {{range $i, $a := .Assignees}}{{if $i}}, {{end}}{{$a}}{{end}}</div>{{end}}
{{if .Labels}}<div class="section"><strong>Labels:</strong> {{range $i, $l := .Labels}}{{if $i}}, {{end}}{{$l}}{{end}}</div>{{end}}
{{if .Description}}<div class="section"><h2>Description</h2><p>{{.Description}}</p></div>{{end}}
{{if .Thread}}<div class="section"><h2>Conversation</h2>
{{range .Thread}}<div class="thread-item"><span class="who">{{.Author}}</span> <span class="when">{{.At.Format "2006-01-02 15:04"}}</span><p>{{.Text}}</p></div>
{{end}}</div>{{end}}
{{if .Attachments}}<div class="section"><h2>Attachments</h2><ul>
{{range .Attachments}}<li>{{.Name}} ({{.Size}} bytes)</li>
{{end}}</ul></div>{{end}}
</body>
</html>
`))

// PrintHTML renders a single task as a standalone printable page.
func PrintHTML(task models.Task) ([]byte, error) {
	var buf bytes.Buffer
	if err := printTemplate.Execute(&buf, task); err != nil {
		return nil, fmt.Errorf("render print view for task %s: %w", task.ID, err)
	}
	return buf.Bytes(), nil
}
