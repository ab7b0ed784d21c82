package report

import (
	"bytes"
	"html/template"

	"github.com/crumble-dev/crumble/pkg/core"
	"github.com/crumble-dev/crumble/pkg/record"
)

// documentTmpl is self-contained: inline styles, no external assets.
var documentTmpl = template.Must(template.New("document").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Session Report — {{.Date}}</title>
<style>
body { font-family: -apple-system, "Segoe UI", sans-serif; max-width: 720px; margin: 2rem auto; padding: 0 1rem; color: #1a1a1a; }
h1 { font-size: 1.4rem; }
.stats { display: flex; gap: 2rem; margin: 1rem 0; padding: 1rem; background: #f5f5f5; border-radius: 8px; }
.stats div { text-align: center; }
.stats .value { font-size: 1.6rem; font-weight: 700; }
.stats .label { font-size: 0.8rem; color: #666; }
.summary { margin: 1rem 0; padding: 1rem; background: #f0f6ff; border-radius: 8px; }
.entry { display: flex; gap: 0.75rem; padding: 0.4rem 0; border-bottom: 1px solid #eee; }
.entry .time { color: #999; font-variant-numeric: tabular-nums; }
.entry.feedback { color: #1a1a1a; }
.entry.system, .entry.analyzing, .entry.listening { color: #777; }
.entry.error { color: #b00020; }
</style>
</head>
<body>
<h1>Session Report — {{.Date}}</h1>
<div class="stats">
<div><div class="value">{{.FindingCount}}</div><div class="label">findings</div></div>
<div><div class="value">{{.Duration}}</div><div class="label">duration</div></div>
</div>
{{if .Summary}}<div class="summary">{{.Summary}}</div>{{end}}
<div class="entries">
{{range .Entries}}<div class="entry {{.Type}}"><span class="time">{{.Time}}</span><span class="message">{{.Message}}</span></div>
{{end}}</div>
</body>
</html>
`))

type documentData struct {
	Date         string
	Duration     string
	FindingCount int
	Summary      template.HTML
	Entries      []record.TranscriptEntry
}

// Document renders the self-contained HTML report for a finalized
// record. Pure: identical input yields identical bytes.
func Document(rec record.SessionRecord) ([]byte, error) {
	data := documentData{
		Date:         rec.StartTime.Format("2006-01-02 15:04"),
		Duration:     rec.Duration,
		FindingCount: rec.FeedbackCount(),
		Entries:      rec.Entries,
	}
	if rec.Summary != "" {
		data.Summary = renderBlocksHTML(ParseMarkup(rec.Summary))
	}
	var buf bytes.Buffer
	if err := documentTmpl.Execute(&buf, data); err != nil {
		return nil, core.NewPersistenceError("render report", "execute template", err)
	}
	return buf.Bytes(), nil
}

// renderBlocksHTML turns parsed markup into HTML. All text passes
// through html/template escaping before any tags are added.
func renderBlocksHTML(blocks []Block) template.HTML {
	var b bytes.Buffer
	for _, blk := range blocks {
		switch blk.Kind {
		case BlockHeading:
			if blk.Level == 3 {
				b.WriteString("<h3>")
				writeSpansHTML(&b, blk.Spans)
				b.WriteString("</h3>")
			} else {
				b.WriteString("<h2>")
				writeSpansHTML(&b, blk.Spans)
				b.WriteString("</h2>")
			}
		case BlockBullets:
			b.WriteString("<ul>")
			for _, item := range blk.Items {
				b.WriteString("<li>")
				writeSpansHTML(&b, item)
				b.WriteString("</li>")
			}
			b.WriteString("</ul>")
		default:
			b.WriteString("<p>")
			writeSpansHTML(&b, blk.Spans)
			b.WriteString("</p>")
		}
	}
	return template.HTML(b.String())
}

func writeSpansHTML(b *bytes.Buffer, spans []Span) {
	for _, s := range spans {
		text := template.HTMLEscapeString(s.Text)
		if s.Bold {
			b.WriteString("<strong>")
			b.WriteString(text)
			b.WriteString("</strong>")
		} else {
			b.WriteString(text)
		}
	}
}
