package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/microsoft/gridscan/internal/models"
)

// PayloadWriter stores a result payload and returns the storage URL it can
// later be fetched from.
type PayloadWriter interface {
	WritePayload(ctx context.Context, name string, data []byte) (string, error)
}

// DirPayloads writes payloads under a local directory and hands out
// file:// storage URLs. With Compress set, payloads are gzipped and get a
// .gz suffix.
type DirPayloads struct {
	Dir      string
	Compress bool
}

func (d DirPayloads) WritePayload(_ context.Context, name string, data []byte) (string, error) {
	if d.Compress {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return "", fmt.Errorf("compressing payload: %w", err)
		}
		if err := zw.Close(); err != nil {
			return "", fmt.Errorf("compressing payload: %w", err)
		}
		data = buf.Bytes()
		name += ".gz"
	}

	p, err := filepath.Abs(filepath.Join(d.Dir, filepath.FromSlash(name)))
	if err != nil {
		return "", fmt.Errorf("resolving payload path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return "", fmt.Errorf("creating payload directory: %w", err)
	}
	if err := os.WriteFile(p, data, 0644); err != nil {
		return "", fmt.Errorf("writing payload: %w", err)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(p)}).String(), nil
}

// Archiver records finished analysis runs in the current storage layout:
// the payload goes to a PayloadWriter and the record keeps its storage URL.
type Archiver struct {
	Store    RecordStore
	Payloads PayloadWriter
	Now      func() time.Time
}

// Archive stores result for userID and returns the saved record.
func (a *Archiver) Archive(ctx context.Context, userID, fileName string, result *models.AnalysisResult) (models.HistoryRecord, error) {
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	ts := now()

	data, err := json.Marshal(result)
	if err != nil {
		return models.HistoryRecord{}, fmt.Errorf("encoding result: %w", err)
	}

	name := fmt.Sprintf("history/%s/%d_%s.json", sanitizeName(userID), ts.UnixMilli(), sanitizeName(fileName))
	storageURL, err := a.Payloads.WritePayload(ctx, name, data)
	if err != nil {
		return models.HistoryRecord{}, err
	}

	rec := models.HistoryRecord{
		ID:         uuid.NewString(),
		UserID:     userID,
		FileName:   fileName,
		Timestamp:  models.NewTimestamp(ts),
		StorageURL: storageURL,
	}
	if err := a.Store.Save(ctx, rec); err != nil {
		return models.HistoryRecord{}, fmt.Errorf("saving history record: %w", err)
	}
	return rec, nil
}

func sanitizeName(name string) string {
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "upload"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '?', '#', '%':
			return '_'
		}
		return r
	}, name)
}
