package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Journal records session events.
type Journal interface {
	Record(event Event) error
	Close() error
}

// FileJournal appends events to a file as newline-delimited JSON.
type FileJournal struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
	path string
}

// OpenFileJournal opens path for appending, creating parent directories.
func OpenFileJournal(path string) (*FileJournal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	return &FileJournal{file: f, enc: json.NewEncoder(f), path: path}, nil
}

func (j *FileJournal) Record(event Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.enc.Encode(event)
}

func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}

func (j *FileJournal) Path() string {
	return j.path
}

// NopJournal discards all events.
type NopJournal struct{}

func (NopJournal) Record(Event) error { return nil }
func (NopJournal) Close() error       { return nil }

const journalSuffix = "-gridscan.jsonl"

// DefaultJournalPath returns a timestamped journal path inside dir.
func DefaultJournalPath(dir string) string {
	ts := time.Now().UTC().Format("20060102T150405Z")
	return filepath.Join(dir, ts+journalSuffix)
}
