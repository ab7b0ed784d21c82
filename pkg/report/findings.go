package report

import (
	"fmt"
	"strings"

	"github.com/crumble-dev/crumble/pkg/record"
)

// Findings renders the plain-text findings transcript: session stats,
// the summary when present, then each feedback entry numbered in
// chronological order. Deterministic for a given record.
func Findings(rec record.SessionRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Session %s\n", rec.StartTime.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Duration: %s\n", rec.Duration)
	fmt.Fprintf(&b, "Findings: %d\n", rec.FeedbackCount())

	if rec.Summary != "" {
		b.WriteString("\nSummary\n")
		b.WriteString(PlainText(ParseMarkup(rec.Summary)))
		b.WriteString("\n")
	}

	n := 0
	for _, e := range rec.Entries {
		if e.Type != record.EntryFeedback {
			continue
		}
		n++
		if n == 1 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. [%s] %s\n", n, e.Time, e.Message)
	}
	return b.String()
}
