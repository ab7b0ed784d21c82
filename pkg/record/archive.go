package record

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/crumble-dev/crumble/pkg/core"
)

const archiveFileName = "sessions.json"

// Archive is the durable store of finalized session records, newest
// first, kept as a single JSON blob. A missing or corrupt blob reads as
// an empty archive so history problems never reach the live path.
type Archive struct {
	path string
	mu   sync.Mutex
}

// DefaultArchivePath resolves ${XDG_DATA_HOME:-~/.local/share}/crumble/sessions.json.
func DefaultArchivePath() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", core.NewPersistenceError("resolve archive path", "home directory unavailable", err)
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "crumble", archiveFileName), nil
}

// NewArchive returns an archive stored at path.
func NewArchive(path string) *Archive {
	return &Archive{path: path}
}

// Path returns the blob location.
func (a *Archive) Path() string { return a.path }

// Load reads all archived records, newest first. It never fails: a
// missing, unreadable or corrupt blob yields an empty slice.
func (a *Archive) Load() []SessionRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loadLocked()
}

func (a *Archive) loadLocked() []SessionRecord {
	data, err := os.ReadFile(a.path)
	if err != nil {
		return nil
	}
	var records []SessionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil
	}
	return records
}

func (a *Archive) saveLocked(records []SessionRecord) error {
	if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
		return core.NewPersistenceError("save archive", "create data directory", err)
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return core.NewPersistenceError("save archive", "encode records", err)
	}
	tmp := a.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return core.NewPersistenceError("save archive", "write blob", err)
	}
	if err := os.Rename(tmp, a.path); err != nil {
		return core.NewPersistenceError("save archive", "replace blob", err)
	}
	return nil
}

// Prepend stores rec as the newest archived record.
func (a *Archive) Prepend(rec SessionRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	records := append([]SessionRecord{rec}, a.loadLocked()...)
	return a.saveLocked(records)
}

// Find returns the archived record with the given id.
func (a *Archive) Find(id string) (SessionRecord, bool) {
	for _, rec := range a.Load() {
		if rec.ID == id {
			return rec, true
		}
	}
	return SessionRecord{}, false
}

// AttachSummary sets the summary on the archived record with the given
// id. It rereads the blob before writing; if the record is no longer
// present the write is dropped without error.
func (a *Archive) AttachSummary(id, summary string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	records := a.loadLocked()
	for i := range records {
		if records[i].ID == id {
			records[i].Summary = summary
			return a.saveLocked(records)
		}
	}
	return nil
}

// Clear removes all archived records.
func (a *Archive) Clear() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	err := os.Remove(a.path)
	if err != nil && !os.IsNotExist(err) {
		return core.NewPersistenceError("clear archive", "remove blob", err)
	}
	return nil
}
