package export

import (
	"bytes"
	"html/template"
	"strings"
	"time"
)

// SafeHTML is a template function that marks a string as safe HTML
func SafeHTML(s interface{}) template.HTML {
	switch v := s.(type) {
	case string:
		return template.HTML(v)
	case template.HTML:
		return v
	default:
		return template.HTML("")
	}
}

var manuscriptTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
		"safeHTML": SafeHTML,
	}
	manuscriptTemplate = template.Must(template.New("manuscript").Funcs(funcMap).Parse(manuscriptHTML))
}

// TemplateData holds data for manuscript template rendering
type TemplateData struct {
	Title       string
	Author      string
	Description string
	GeneratedAt time.Time
	Chapters    []TemplateChapter
}

// TemplateChapter holds one chapter for the template
type TemplateChapter struct {
	Number      int
	Title       string
	ContentHTML template.HTML
}

// RenderManuscriptHTML renders the manuscript template with provided data
func RenderManuscriptHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := manuscriptTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const manuscriptHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Georgia, serif; line-height: 1.8; max-width: 700px; margin: 2rem auto; }
    .title-page { text-align: center; page-break-after: always; margin-top: 30vh; }
    .title-page h1 { font-size: 2.2em; margin-bottom: 0.3em; }
    .title-page .author { color: #444; font-size: 1.1em; }
    .description { color: #555; font-style: italic; margin: 2rem 0; }
    .chapter { page-break-before: always; }
    .chapter h2 { text-align: center; margin: 3rem 0 2rem; }
    .meta { color: #888; font-size: 0.8em; text-align: center; }
    p { text-indent: 2em; margin: 0 0 0.4em; }
  </style>
</head>
<body>
  <div class="title-page">
    <h1>{{.Title}}</h1>
    {{if .Author}}<div class="author">{{.Author}}</div>{{end}}
    <div class="meta">{{.GeneratedAt.Format "Jan 2, 2006"}}</div>
  </div>
  {{if .Description}}<div class="description">{{.Description}}</div>{{end}}
  {{range .Chapters}}
  <div class="chapter">
    <h2>Chapter {{.Number}}{{if .Title}} &middot; {{.Title}}{{end}}</h2>
    {{.ContentHTML | safeHTML}}
  </div>
  {{end}}
</body>
</html>`
