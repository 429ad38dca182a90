// Package report renders captures as a standalone HTML page.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/skratchdot/open-golang/open"
	"github.com/yuin/goldmark"

	"github.com/aayushbajaj/trigcap/internal/capture"
	"github.com/aayushbajaj/trigcap/internal/storage"
	"github.com/aayushbajaj/trigcap/internal/trigger"
)

// Data is the input to Render.
type Data struct {
	Title     string
	Generated time.Time
	Captures  []capture.Record
	Days      []storage.DayStats
}

type dayGroup struct {
	Date  string
	Items []item
}

type item struct {
	Kind     string
	Time     string
	Duration string
	App      string
	Tags     []string
	Content  template.HTML
}

type page struct {
	Title     string
	Generated string
	Totals    totals
	Days      []storage.DayStats
	MaxDay    int
	Groups    []dayGroup
}

type totals struct {
	Notes, Tasks, Timers int
	TimerTime            string
}

var funcs = template.FuncMap{
	"barWidth": func(n, max int) int {
		if max == 0 {
			return 0
		}
		return n * 100 / max
	},
}

var pageTemplate = template.Must(template.New("report").Funcs(funcs).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, sans-serif; max-width: 820px; margin: 2em auto; color: #222; }
h1 { margin-bottom: 0; }
.generated { color: #888; font-size: 0.9em; }
.totals span { display: inline-block; margin-right: 1.5em; }
.bars { display: flex; align-items: flex-end; height: 80px; gap: 4px; margin: 1em 0; }
.bar { background: #4a90d9; width: 24px; }
.item { border-left: 3px solid #ccc; padding: 0.2em 0.8em; margin: 0.6em 0; }
.item.task { border-color: #e0a030; }
.item.timer { border-color: #4a90d9; }
.meta { color: #888; font-size: 0.85em; }
.tag { background: #eef; border-radius: 3px; padding: 0 4px; margin-right: 3px; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p class="generated">Generated {{.Generated}}</p>
<p class="totals"><span>Notes: {{.Totals.Notes}}</span><span>Tasks: {{.Totals.Tasks}}</span><span>Timers: {{.Totals.Timers}} ({{.Totals.TimerTime}})</span></p>
{{if .Days}}<div class="bars">{{range .Days}}<div class="bar" title="{{.Date}}: {{.Total}}" style="height: {{barWidth .Total $.MaxDay}}%"></div>{{end}}</div>{{end}}
{{range .Groups}}
<h2>{{.Date}}</h2>
{{range .Items}}<div class="item {{.Kind}}">
<div class="meta">{{.Time}} {{.Kind}}{{if .Duration}} {{.Duration}}{{end}}{{if .App}} in {{.App}}{{end}} {{range .Tags}}<span class="tag">#{{.}}</span>{{end}}</div>
{{.Content}}
</div>
{{end}}{{else}}<p>No captures.</p>
{{end}}
</body>
</html>
`))

// Render returns the report page.
func Render(d Data) ([]byte, error) {
	if d.Title == "" {
		d.Title = "Captures"
	}
	if d.Generated.IsZero() {
		d.Generated = time.Now()
	}

	p := page{
		Title:     d.Title,
		Generated: d.Generated.Format("2006-01-02 15:04"),
		Days:      d.Days,
	}
	for _, day := range d.Days {
		if day.Total() > p.MaxDay {
			p.MaxDay = day.Total()
		}
	}

	var timerTotal time.Duration
	for _, rec := range d.Captures {
		switch rec.Kind {
		case trigger.KindNote:
			p.Totals.Notes++
		case trigger.KindTask:
			p.Totals.Tasks++
		case trigger.KindTimer:
			p.Totals.Timers++
			timerTotal += rec.Duration()
		}

		date := rec.Started.Format("Monday, January 2, 2006")
		if n := len(p.Groups); n == 0 || p.Groups[n-1].Date != date {
			p.Groups = append(p.Groups, dayGroup{Date: date})
		}
		g := &p.Groups[len(p.Groups)-1]
		g.Items = append(g.Items, toItem(rec))
	}
	p.Totals.TimerTime = formatDuration(timerTotal)

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, p); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}

func toItem(rec capture.Record) item {
	it := item{
		Kind:    rec.Kind.String(),
		Time:    rec.Started.Format("15:04"),
		App:     rec.App,
		Tags:    rec.Tags,
		Content: renderMarkdown(rec.Content),
	}
	if rec.Kind == trigger.KindTimer {
		it.Duration = formatDuration(rec.Duration())
	}
	return it
}

// renderMarkdown converts capture text to HTML. Raw HTML in the content is
// not passed through.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %02dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

// openFunc is replaced in tests.
var openFunc = open.Run

// WriteAndOpen renders d to path and opens it in the default browser. An
// empty path writes to a temporary file.
func WriteAndOpen(d Data, path string) (string, error) {
	html, err := Render(d)
	if err != nil {
		return "", err
	}
	if path == "" {
		path = filepath.Join(os.TempDir(), fmt.Sprintf("trigcap-report-%s.html", time.Now().Format("20060102-150405")))
	}
	if !strings.HasSuffix(path, ".html") {
		path += ".html"
	}
	if err := os.WriteFile(path, html, 0644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	if err := openFunc(path); err != nil {
		return path, fmt.Errorf("open report: %w", err)
	}
	return path, nil
}
