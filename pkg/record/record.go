// Package record keeps the per-session transcript log and the durable
// archive of finished sessions.
package record

import (
	"fmt"
	"time"
)

// EntryType classifies a transcript entry.
type EntryType string

const (
	EntrySystem    EntryType = "system"
	EntryAnalyzing EntryType = "analyzing"
	EntryListening EntryType = "listening"
	EntryFeedback  EntryType = "feedback"
	EntryError     EntryType = "error"
)

// TranscriptEntry is one observable event during a session. Time is the
// elapsed time at the append moment, formatted MM:SS.
type TranscriptEntry struct {
	Type    EntryType `json:"type"`
	Message string    `json:"message"`
	Time    string    `json:"time"`
}

// SessionRecord is the append-only log of one live session. Entries are
// in chronological order and never mutated after append. Summary is set
// at most once, after the record is archived.
type SessionRecord struct {
	ID        string            `json:"id"`
	StartTime time.Time         `json:"startTime"`
	EndTime   time.Time         `json:"endTime"`
	Duration  string            `json:"duration"`
	Entries   []TranscriptEntry `json:"entries"`
	Summary   string            `json:"summary,omitempty"`
}

// FeedbackCount returns the number of feedback entries.
func (r SessionRecord) FeedbackCount() int {
	n := 0
	for _, e := range r.Entries {
		if e.Type == EntryFeedback {
			n++
		}
	}
	return n
}

// FormatElapsed renders a duration as MM:SS. Negative durations clamp
// to 00:00.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
