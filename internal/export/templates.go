package export

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var reportTemplate = template.Must(template.New("report.html").Funcs(template.FuncMap{
	"formatDate": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
}).ParseFS(templateFS, "templates/report.html"))

// TemplateData holds data for report template rendering. ContentHTML must
// come from the content parser, which escapes everything it emits; Raw is
// escaped by the template.
type TemplateData struct {
	Title       string
	Author      string
	UpdatedAt   time.Time
	ContentHTML template.HTML
	Raw         string
	Degraded    bool
}

// RenderReportHTML renders the standalone report page.
func RenderReportHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render report template: %w", err)
	}
	return buf.String(), nil
}
