package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/microsoft/gridscan/internal/models"
	_ "modernc.org/sqlite"
)

// SQLStore keeps history records in a SQLite database. Each row holds the
// record's stored document so older layouts decode the same way as in
// DirStore.
type SQLStore struct {
	db     *sql.DB
	dbPath string
}

// OpenSQLStore opens or creates the history database at dbPath.
func OpenSQLStore(dbPath string) (*SQLStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create history db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLStore{db: db, dbPath: dbPath}
	if err := s.initSchema(); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *SQLStore) initSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS history (
	id       TEXT PRIMARY KEY,
	user_id  TEXT NOT NULL,
	document TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_user ON history(user_id);
CREATE TABLE IF NOT EXISTS history_details (
	id       TEXT PRIMARY KEY,
	document TEXT NOT NULL
);`)
	return err
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLStore) Path() string {
	return s.dbPath
}

// Query returns the newest limit records for userID. Older documents carry
// timestamps in several shapes, so ordering is applied after decoding.
func (s *SQLStore) Query(ctx context.Context, userID string, limit int) ([]models.HistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, document FROM history WHERE user_id = ?", userID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	records := []models.HistoryRecord{}
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		rec, err := decodeDocument(id, []byte(doc))
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return newestFirst(records, limit), nil
}

// Get returns the record with id.
func (s *SQLStore) Get(ctx context.Context, id string) (models.HistoryRecord, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, "SELECT document FROM history WHERE id = ?", id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return models.HistoryRecord{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	if err != nil {
		return models.HistoryRecord{}, fmt.Errorf("query history record %s: %w", id, err)
	}
	return decodeDocument(id, []byte(doc))
}

// Detail reads the detail sub-record for id.
func (s *SQLStore) Detail(ctx context.Context, id string) (*models.AnalysisResult, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, "SELECT document FROM history_details WHERE id = ?", id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrHistoryNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query history details %s: %w", id, err)
	}
	return decodeDetail(id, []byte(doc))
}

// Save inserts or replaces rec.
func (s *SQLStore) Save(ctx context.Context, rec models.HistoryRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("history record has no id")
	}
	data, err := encodeRecord(rec)
	if err != nil {
		return fmt.Errorf("encoding history record: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO history (id, user_id, document) VALUES (?, ?, ?)",
		rec.ID, rec.UserID, string(data))
	if err != nil {
		return fmt.Errorf("save history record: %w", err)
	}
	return nil
}

// SaveDetail writes the detail sub-record for id.
func (s *SQLStore) SaveDetail(ctx context.Context, id string, result *models.AnalysisResult) error {
	data, err := encodeDetail(result)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO history_details (id, document) VALUES (?, ?)",
		id, string(data))
	if err != nil {
		return fmt.Errorf("save history details: %w", err)
	}
	return nil
}

var _ RecordStore = (*SQLStore)(nil)
