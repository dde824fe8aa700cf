// Package report renders a stored critique into a downloadable HTML
// document. Pure formatting: the model output is accepted verbatim, its
// structure is not validated.
package report

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html"
	"html/template"
	"strings"
	"time"
)

// Document is a rendered report ready for download.
type Document struct {
	Bytes []byte
	MIME  string
}

var page = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="zh">
<head>
<meta charset="utf-8">
<title>BayernGomez 修图报告</title>
<style>
body { font-family: "PingFang SC", "Microsoft YaHei", sans-serif; max-width: 720px; margin: 2em auto; color: #222; }
h1 { border-bottom: 2px solid #222; padding-bottom: .3em; }
img { max-width: 100%; border-radius: 6px; }
.note { background: #f5f5f5; padding: .8em; border-left: 4px solid #888; }
.meta { color: #888; font-size: .85em; }
</style>
</head>
<body>
<h1>BayernGomez 修图报告</h1>
<p class="meta">导出时间：{{.ExportedAt}}</p>
{{if .Image}}<p><img src="data:{{.ImageMIME}};base64,{{.Image}}" alt="照片"></p>{{end}}
{{if .Note}}<div class="note">用户需求：{{.Note}}</div>{{end}}
<div class="report">{{.Body}}</div>
</body>
</html>
`))

type pageData struct {
	ExportedAt string
	Note       string
	Image      string
	ImageMIME  string
	Body       template.HTML
}

// Render formats a report and optional source image into an HTML document.
// The user note is embedded verbatim (HTML-escaped); any printable report
// text renders without error.
func Render(reportText, userNote string, image []byte, imageMIME string) (*Document, error) {
	data := pageData{
		ExportedAt: time.Now().Format("2006-01-02 15:04"),
		Note:       userNote,
		Body:       formatBody(reportText),
	}
	if len(image) > 0 {
		data.Image = base64.StdEncoding.EncodeToString(image)
		if imageMIME == "" {
			imageMIME = "image/jpeg"
		}
		data.ImageMIME = imageMIME
	}

	var buf bytes.Buffer
	if err := page.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}
	return &Document{Bytes: buf.Bytes(), MIME: "text/html; charset=utf-8"}, nil
}

// formatBody promotes markdown heading tokens to HTML headings and converts
// line breaks. Everything else is escaped text.
func formatBody(text string) template.HTML {
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		switch {
		case strings.HasPrefix(line, "### "):
			b.WriteString("<h4>" + html.EscapeString(strings.TrimPrefix(line, "### ")) + "</h4>")
		case strings.HasPrefix(line, "## "):
			b.WriteString("<h3>" + html.EscapeString(strings.TrimPrefix(line, "## ")) + "</h3>")
		case strings.HasPrefix(line, "# "):
			b.WriteString("<h2>" + html.EscapeString(strings.TrimPrefix(line, "# ")) + "</h2>")
		default:
			b.WriteString(html.EscapeString(line) + "<br>")
		}
		b.WriteString("\n")
	}
	return template.HTML(b.String())
}
