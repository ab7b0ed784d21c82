package record

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Recorder owns the in-memory record of the current live session and
// writes it to the archive on finalize. Appends from multiple
// goroutines are serialized; elapsed stamps are single-writer
// monotonic because each append reads the clock under the lock.
type Recorder struct {
	archive *Archive

	// Now is the clock; replaced in tests.
	Now func() time.Time

	mu      sync.Mutex
	current *SessionRecord
}

// NewRecorder returns a recorder writing finalized records to archive.
func NewRecorder(archive *Archive) *Recorder {
	return &Recorder{archive: archive, Now: time.Now}
}

// Begin opens a fresh record and returns its id. Any unfinalized
// record is discarded.
func (r *Recorder) Begin() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = &SessionRecord{
		ID:        uuid.NewString(),
		StartTime: r.Now(),
	}
	return r.current.ID
}

// Append adds a transcript entry stamped with the current elapsed time
// and returns it. A no-op returning a zero entry when no record is
// open.
func (r *Recorder) Append(typ EntryType, message string) TranscriptEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return TranscriptEntry{}
	}
	entry := TranscriptEntry{
		Type:    typ,
		Message: message,
		Time:    FormatElapsed(r.Now().Sub(r.current.StartTime)),
	}
	r.current.Entries = append(r.current.Entries, entry)
	return entry
}

// RemoveLast drops the most recent entry if it matches typ. Used to
// retract the transient speaking marker.
func (r *Recorder) RemoveLast(typ EntryType) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil || len(r.current.Entries) == 0 {
		return false
	}
	last := len(r.current.Entries) - 1
	if r.current.Entries[last].Type != typ {
		return false
	}
	r.current.Entries = r.current.Entries[:last]
	return true
}

// HasEntry reports whether any current entry matches typ and message.
func (r *Recorder) HasEntry(typ EntryType, message string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return false
	}
	for _, e := range r.current.Entries {
		if e.Type == typ && e.Message == message {
			return true
		}
	}
	return false
}

// Entries returns a copy of the current record's entries.
func (r *Recorder) Entries() []TranscriptEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return nil
	}
	out := make([]TranscriptEntry, len(r.current.Entries))
	copy(out, r.current.Entries)
	return out
}

// Elapsed returns the time since the current record started, or zero
// when no record is open.
func (r *Recorder) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return 0
	}
	return r.Now().Sub(r.current.StartTime)
}

// Finalize stamps end time and duration, archives the record newest
// first and clears it. Records with zero entries are discarded without
// touching the archive. Returns the archived record's id, or "" when
// nothing was persisted.
func (r *Recorder) Finalize() (string, error) {
	r.mu.Lock()
	rec := r.current
	r.current = nil
	if rec == nil || len(rec.Entries) == 0 {
		r.mu.Unlock()
		return "", nil
	}
	rec.EndTime = r.Now()
	rec.Duration = FormatElapsed(rec.EndTime.Sub(rec.StartTime))
	r.mu.Unlock()

	if err := r.archive.Prepend(*rec); err != nil {
		return "", err
	}
	return rec.ID, nil
}

// Summarize attaches a generated summary to an archived record.
func (r *Recorder) Summarize(id, summary string) error {
	return r.archive.AttachSummary(id, summary)
}
