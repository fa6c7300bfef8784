package history

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/microsoft/gridscan/internal/models"
)

//go:generate go tool mockgen -source=store.go -destination=mock_store_test.go -package=history

// ListLimit is the maximum number of records returned by a listing.
const ListLimit = 20

// RecordStore is the queryable store of history records.
type RecordStore interface {
	// Query returns the records belonging to userID, newest first. A
	// positive limit caps the result after ordering.
	Query(ctx context.Context, userID string, limit int) ([]models.HistoryRecord, error)

	// Get returns the record with id, or ErrRecordNotFound.
	Get(ctx context.Context, id string) (models.HistoryRecord, error)

	// Detail reads the (id, "details", "data") sub-record used by the oldest
	// schema. Returns ErrHistoryNotFound when it does not exist.
	Detail(ctx context.Context, id string) (*models.AnalysisResult, error)

	// Save inserts or replaces a record.
	Save(ctx context.Context, rec models.HistoryRecord) error
}

// newestFirst orders records and applies limit.
func newestFirst(records []models.HistoryRecord, limit int) []models.HistoryRecord {
	SortNewestFirst(records)
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records
}

// encodeRecord renders rec as the stored document form.
func encodeRecord(rec models.HistoryRecord) ([]byte, error) {
	return json.Marshal(rec)
}

// decodeDocument converts a loosely-typed stored document into a record.
// Documents written by older clients store timestamps as RFC 3339 strings
// or bare epoch seconds, and some omit the id field entirely.
func decodeDocument(id string, data []byte) (models.HistoryRecord, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return models.HistoryRecord{}, fmt.Errorf("parsing history document %s: %w", id, err)
	}

	var rec models.HistoryRecord
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       timestampHook,
		WeaklyTypedInput: true,
		Result:           &rec,
	})
	if err != nil {
		return models.HistoryRecord{}, err
	}
	if err := dec.Decode(doc); err != nil {
		return models.HistoryRecord{}, fmt.Errorf("decoding history document %s: %w", id, err)
	}
	if rec.ID == "" {
		rec.ID = id
	}

	if raw, ok := doc["resultData"]; ok && raw != nil {
		result, err := decodeResult(raw)
		if err != nil {
			return models.HistoryRecord{}, fmt.Errorf("decoding resultData of %s: %w", id, err)
		}
		rec.ResultData = result
	}
	return rec, nil
}

// decodeResult re-encodes a generic value so the result's own JSON decoding
// rules (tolerant numerics, raw amounts) apply.
func decodeResult(raw any) (*models.AnalysisResult, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var result models.AnalysisResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

var timestampType = reflect.TypeOf(models.Timestamp{})

func timestampHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != timestampType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("timestamp %q: %w", v, err)
		}
		return map[string]any{"seconds": t.Unix(), "nanos": t.Nanosecond()}, nil
	case float64:
		return map[string]any{"seconds": int64(v)}, nil
	case int64:
		return map[string]any{"seconds": v}, nil
	}
	return data, nil
}

// Oldest-schema records keep their result at (id, detailCollection, detailDocument).
const (
	detailCollection = "details"
	detailDocument   = "data"
)

type detailDoc struct {
	ResultData *models.AnalysisResult `json:"resultData"`
}

func encodeDetail(result *models.AnalysisResult) ([]byte, error) {
	data, err := json.Marshal(detailDoc{ResultData: result})
	if err != nil {
		return nil, fmt.Errorf("encoding history details: %w", err)
	}
	return data, nil
}

// decodeDetail reads the resultData field of a detail sub-record. A
// sub-record without resultData counts as not found.
func decodeDetail(id string, data []byte) (*models.AnalysisResult, error) {
	var doc detailDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding history details %s: %w", id, err)
	}
	if doc.ResultData == nil {
		return nil, fmt.Errorf("%w: %s", ErrHistoryNotFound, id)
	}
	return doc.ResultData, nil
}
