package report

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"auditor/internal/evidence"
)

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

var pageTmpl = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: -apple-system, "Segoe UI", Helvetica, Arial, sans-serif; max-width: 960px; margin: 2rem auto; padding: 0 1rem; color: #1f2328; line-height: 1.5; }
table { border-collapse: collapse; width: 100%; margin: 1rem 0; }
th, td { border: 1px solid #d0d7de; padding: 6px 10px; text-align: left; vertical-align: top; }
th { background: #f6f8fa; }
code { background: #f6f8fa; padding: 0 4px; border-radius: 4px; }
h3 { border-bottom: 1px solid #d0d7de; padding-bottom: 4px; }
{{if .Degraded}}body { border-top: 6px solid #cf222e; }{{end}}
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// RenderHTML converts the Markdown rendering of rep into a standalone page.
func RenderHTML(rep *evidence.Report) ([]byte, error) {
	var body bytes.Buffer
	if err := md.Convert([]byte(Markdown(rep)), &body); err != nil {
		return nil, fmt.Errorf("convert markdown: %w", err)
	}
	var out bytes.Buffer
	err := pageTmpl.Execute(&out, struct {
		Title    string
		Degraded bool
		Body     template.HTML
	}{
		Title:    "Audit Report: " + orUnknown(rep.RepoURL),
		Degraded: rep.Degraded,
		Body:     template.HTML(body.String()),
	})
	if err != nil {
		return nil, fmt.Errorf("render page: %w", err)
	}
	return out.Bytes(), nil
}
