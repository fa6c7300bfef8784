package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/microsoft/gridscan/internal/models"
)

// DirStore keeps history records as JSON documents in a directory:
//
//	<dir>/<id>.json                  the record
//	<dir>/<id>/details/data.json     the detail sub-record (oldest layout)
type DirStore struct {
	dir string
	mu  sync.RWMutex
}

// NewDirStore creates a DirStore rooted at dir.
func NewDirStore(dir string) *DirStore {
	return &DirStore{dir: dir}
}

// Query reads every record document belonging to userID and returns the
// newest limit of them.
func (s *DirStore) Query(ctx context.Context, userID string, limit int) ([]models.HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []models.HistoryRecord{}, nil
		}
		return nil, err
	}

	records := []models.HistoryRecord{}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			continue
		}
		rec, err := decodeDocument(strings.TrimSuffix(e.Name(), ".json"), data)
		if err != nil {
			continue
		}
		if rec.UserID != userID {
			continue
		}
		records = append(records, rec)
	}
	return newestFirst(records, limit), nil
}

// Get reads <dir>/<id>.json.
func (s *DirStore) Get(_ context.Context, id string) (models.HistoryRecord, error) {
	if checkID(id) != nil {
		return models.HistoryRecord{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(filepath.Join(s.dir, id+".json"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.HistoryRecord{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
		}
		return models.HistoryRecord{}, fmt.Errorf("reading history record %s: %w", id, err)
	}
	return decodeDocument(id, data)
}

// Detail reads <dir>/<id>/details/data.json.
func (s *DirStore) Detail(_ context.Context, id string) (*models.AnalysisResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, err := s.detailPath(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrHistoryNotFound, id)
		}
		return nil, fmt.Errorf("reading history details %s: %w", id, err)
	}
	return decodeDetail(id, data)
}

// Save writes rec as <dir>/<id>.json.
func (s *DirStore) Save(_ context.Context, rec models.HistoryRecord) error {
	p, err := s.recordPath(rec.ID)
	if err != nil {
		return err
	}
	data, err := encodeRecord(rec)
	if err != nil {
		return fmt.Errorf("encoding history record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("creating history directory: %w", err)
	}
	return os.WriteFile(p, data, 0644)
}

// SaveDetail writes the detail sub-record for id.
func (s *DirStore) SaveDetail(_ context.Context, id string, result *models.AnalysisResult) error {
	p, err := s.detailPath(id)
	if err != nil {
		return err
	}
	data, err := encodeDetail(result)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("creating details directory: %w", err)
	}
	return os.WriteFile(p, data, 0644)
}

func (s *DirStore) recordPath(id string) (string, error) {
	if err := checkID(id); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, id+".json"), nil
}

func (s *DirStore) detailPath(id string) (string, error) {
	if err := checkID(id); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, id, detailCollection, detailDocument+".json"), nil
}

func checkID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("invalid history record id %q", id)
	}
	return nil
}

// Ensure DirStore satisfies RecordStore.
var _ RecordStore = (*DirStore)(nil)
