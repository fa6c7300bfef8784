// Package history lists past analysis runs and loads their results across
// every storage layout the history store has used.
package history

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/microsoft/gridscan/internal/models"
	"golang.org/x/sync/errgroup"
)

// tier loads the result for one storage generation.
type tier struct {
	schema  models.HistorySchema
	applies func(models.HistoryRecord) bool
	load    func(context.Context, models.HistoryRecord) (*models.AnalysisResult, error)
}

// Resolver turns history records into analysis results.
type Resolver struct {
	store   RecordStore
	fetcher PayloadFetcher
	logger  *slog.Logger
	tiers   []tier
}

// NewResolver creates a resolver reading records from store and storage
// URL payloads through fetcher. A nil logger uses slog.Default().
func NewResolver(store RecordStore, fetcher PayloadFetcher, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{store: store, fetcher: fetcher, logger: logger}

	// Newest layout first. The first tier whose shape matches the record is
	// the only one attempted: a failed storage URL read does not fall back
	// to inline data.
	r.tiers = []tier{
		{
			schema:  models.CurrentSchema,
			applies: func(rec models.HistoryRecord) bool { return rec.StorageURL != "" },
			load:    r.loadFromStorage,
		},
		{
			schema:  models.LegacySchema,
			applies: func(rec models.HistoryRecord) bool { return rec.ResultData != nil },
			load: func(_ context.Context, rec models.HistoryRecord) (*models.AnalysisResult, error) {
				return rec.ResultData, nil
			},
		},
		{
			schema:  models.OldestSchema,
			applies: func(models.HistoryRecord) bool { return true },
			load:    r.loadFromDetail,
		},
	}
	return r
}

// Resolve loads the result referenced by rec.
func (r *Resolver) Resolve(ctx context.Context, rec models.HistoryRecord) (*models.AnalysisResult, error) {
	for _, t := range r.tiers {
		if !t.applies(rec) {
			continue
		}
		r.logger.Debug("resolving history record", "id", rec.ID, "schema", t.schema.String())
		result, err := t.load(ctx, rec)
		if err != nil {
			r.logger.Warn("history record could not be loaded", "id", rec.ID, "schema", t.schema.String(), "error", err)
			return nil, err
		}
		return result, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrHistoryNotFound, rec.ID)
}

func (r *Resolver) loadFromStorage(ctx context.Context, rec models.HistoryRecord) (*models.AnalysisResult, error) {
	if r.fetcher == nil {
		return nil, &FetchError{URL: rec.StorageURL, Err: fmt.Errorf("no payload fetcher configured")}
	}
	body, err := r.fetcher.Fetch(ctx, rec.StorageURL)
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, &FetchError{URL: rec.StorageURL, Err: err}
	}
	var result models.AnalysisResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, &FetchError{URL: rec.StorageURL, Err: fmt.Errorf("decoding payload: %w", err)}
	}
	return &result, nil
}

func (r *Resolver) loadFromDetail(ctx context.Context, rec models.HistoryRecord) (*models.AnalysisResult, error) {
	if rec.ID == "" {
		return nil, fmt.Errorf("%w: record has no id", ErrHistoryNotFound)
	}
	return r.store.Detail(ctx, rec.ID)
}

// List returns up to ListLimit records for userID, newest first. Records
// without a timestamp sort as the oldest.
func (r *Resolver) List(ctx context.Context, userID string) ([]models.HistoryRecord, error) {
	records, err := r.store.Query(ctx, userID, ListLimit)
	if err != nil {
		return nil, fmt.Errorf("listing history for %s: %w", userID, err)
	}
	SortNewestFirst(records)
	if len(records) > ListLimit {
		records = records[:ListLimit]
	}
	r.logger.Debug("history listed", "user", userID, "count", len(records))
	return records, nil
}

// Find returns userID's record with id. Records of other users are reported
// as not found.
func (r *Resolver) Find(ctx context.Context, userID, id string) (models.HistoryRecord, error) {
	rec, err := r.store.Get(ctx, id)
	if err != nil {
		return models.HistoryRecord{}, err
	}
	if rec.UserID != userID {
		return models.HistoryRecord{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	return rec, nil
}

// SortNewestFirst orders records by descending timestamp seconds, keeping
// the original order for equal timestamps.
func SortNewestFirst(records []models.HistoryRecord) {
	slices.SortStableFunc(records, func(a, b models.HistoryRecord) int {
		return cmp.Compare(b.Timestamp.UnixSeconds(), a.Timestamp.UnixSeconds())
	})
}

// Verification is the outcome of resolving one record.
type Verification struct {
	Record models.HistoryRecord
	Schema models.HistorySchema
	Err    error
}

// Verify resolves every record with bounded concurrency and reports, per
// record, which storage layout served it and whether loading failed.
// Results are in input order.
func (r *Resolver) Verify(ctx context.Context, records []models.HistoryRecord) []Verification {
	out := make([]Verification, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, rec := range records {
		g.Go(func() error {
			_, err := r.Resolve(gctx, rec)
			out[i] = Verification{Record: rec, Schema: rec.Schema(), Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}
