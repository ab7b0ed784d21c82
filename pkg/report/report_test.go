package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/crumble-dev/crumble/pkg/record"
)

func sampleRecord() record.SessionRecord {
	return record.SessionRecord{
		ID:        "a1b2",
		StartTime: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 3, 1, 10, 5, 30, 0, time.UTC),
		Duration:  "05:30",
		Entries: []record.TranscriptEntry{
			{Type: record.EntrySystem, Message: "Session active — analyzing your screen", Time: "00:00"},
			{Type: record.EntryFeedback, Message: "The primary button is below the fold", Time: "01:12"},
			{Type: record.EntrySystem, Message: "Feedback delivered", Time: "01:15"},
			{Type: record.EntryFeedback, Message: "Form labels use low-contrast gray", Time: "03:40"},
		},
	}
}

func TestParseMarkupBlocks(t *testing.T) {
	text := "## Layout\nThe fold hides actions.\n\n- **Button** below fold\n- Labels too gray\n\n### Detail\nSecond paragraph\nstill same paragraph"
	blocks := ParseMarkup(text)

	if len(blocks) != 5 {
		t.Fatalf("ParseMarkup() = %d blocks, want 5", len(blocks))
	}
	if blocks[0].Kind != BlockHeading || blocks[0].Level != 2 {
		t.Fatalf("block[0] = %+v, want h2", blocks[0])
	}
	if blocks[1].Kind != BlockParagraph {
		t.Fatalf("block[1].Kind = %v, want paragraph", blocks[1].Kind)
	}
	if blocks[2].Kind != BlockBullets || len(blocks[2].Items) != 2 {
		t.Fatalf("block[2] = %+v, want 2 bullets", blocks[2])
	}
	if !blocks[2].Items[0][0].Bold || blocks[2].Items[0][0].Text != "Button" {
		t.Fatalf("first bullet spans = %+v, want bold Button", blocks[2].Items[0])
	}
	if blocks[3].Kind != BlockHeading || blocks[3].Level != 3 {
		t.Fatalf("block[3] = %+v, want h3", blocks[3])
	}
	para := PlainText(blocks[4:])
	if para != "Second paragraph still same paragraph" {
		t.Fatalf("joined paragraph = %q", para)
	}
}

func TestParseSpansUnclosedBoldStaysPlain(t *testing.T) {
	spans := parseSpans("a **broken marker")
	if len(spans) != 2 {
		t.Fatalf("parseSpans() = %d spans, want 2", len(spans))
	}
	if spans[0].Bold || spans[0].Text != "a " {
		t.Fatalf("span[0] = %+v", spans[0])
	}
	if spans[1].Bold || spans[1].Text != "broken marker" {
		t.Fatalf("span[1] = %+v, want plain tail", spans[1])
	}
}

func TestFindingsNumbersFeedbackOnly(t *testing.T) {
	out := Findings(sampleRecord())

	if !strings.Contains(out, "Findings: 2") {
		t.Fatalf("output missing finding count:\n%s", out)
	}
	if !strings.Contains(out, "1. [01:12] The primary button is below the fold") {
		t.Fatalf("output missing numbered first finding:\n%s", out)
	}
	if !strings.Contains(out, "2. [03:40] Form labels use low-contrast gray") {
		t.Fatalf("output missing numbered second finding:\n%s", out)
	}
	if strings.Contains(out, "Feedback delivered") {
		t.Fatalf("system entries must not appear in findings:\n%s", out)
	}
	if strings.Contains(out, "Summary") {
		t.Fatalf("summary section present without a summary:\n%s", out)
	}
}

func TestFindingsIncludesSummaryPrefix(t *testing.T) {
	rec := sampleRecord()
	rec.Summary = "## Themes\n- **Contrast** issues"
	out := Findings(rec)

	sumIdx := strings.Index(out, "Themes")
	findIdx := strings.Index(out, "1. [01:12]")
	if sumIdx < 0 || findIdx < 0 || sumIdx > findIdx {
		t.Fatalf("summary must precede findings:\n%s", out)
	}
	if strings.Contains(out, "**") {
		t.Fatalf("markup markers leaked into plain text:\n%s", out)
	}
}

func TestDocumentIsSelfContainedAndStyled(t *testing.T) {
	rec := sampleRecord()
	rec.Summary = "- **Contrast** needs work"
	out, err := Document(rec)
	if err != nil {
		t.Fatalf("Document() error = %v", err)
	}
	html := string(out)

	for _, want := range []string{
		`<div class="value">2</div>`,
		`<div class="value">05:30</div>`,
		`class="entry feedback"`,
		`class="entry system"`,
		"<li><strong>Contrast</strong> needs work</li>",
		"The primary button is below the fold",
	} {
		if !strings.Contains(html, want) {
			t.Fatalf("document missing %q:\n%s", want, html)
		}
	}
	if strings.Contains(html, "<script") || strings.Contains(html, "href=") {
		t.Fatalf("document must not reference external assets:\n%s", html)
	}
}

func TestDocumentEscapesEntryText(t *testing.T) {
	rec := sampleRecord()
	rec.Entries = append(rec.Entries, record.TranscriptEntry{
		Type:    record.EntryFeedback,
		Message: `<img src=x onerror=alert(1)>`,
		Time:    "04:00",
	})
	out, err := Document(rec)
	if err != nil {
		t.Fatalf("Document() error = %v", err)
	}
	if bytes.Contains(out, []byte("<img")) {
		t.Fatalf("entry text was not escaped:\n%s", out)
	}
}

func TestDocumentIsDeterministic(t *testing.T) {
	rec := sampleRecord()
	a, err := Document(rec)
	if err != nil {
		t.Fatalf("Document() error = %v", err)
	}
	b, err := Document(rec)
	if err != nil {
		t.Fatalf("Document() error = %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("Document() output varies for identical input")
	}
}

func TestBuildSummaryPromptRequiresFeedback(t *testing.T) {
	rec := sampleRecord()
	prompt, err := buildSummaryPrompt(rec)
	if err != nil {
		t.Fatalf("buildSummaryPrompt() error = %v", err)
	}
	if !strings.Contains(prompt, "- The primary button is below the fold") {
		t.Fatalf("prompt missing finding:\n%s", prompt)
	}
	if strings.Contains(prompt, "Feedback delivered") {
		t.Fatalf("prompt leaked system entries:\n%s", prompt)
	}

	rec.Entries = nil
	if _, err := buildSummaryPrompt(rec); err == nil {
		t.Fatalf("buildSummaryPrompt() error = nil for empty record")
	}
}
