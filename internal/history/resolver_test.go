package history

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/microsoft/gridscan/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const payloadJSON = `{
  "summary": {"grid_health_score": 91, "critical_cases": 1, "anomalies_detected": 2, "total_loss_calculated": "1,234"},
  "results": [{"consumer_id": "C1", "transformer_id": "T1", "aggregate_risk_score": 0.9, "risk_class": "critical"}],
  "anomalies": [],
  "transformers_at_risk": []
}`

type fetcherFunc func(ctx context.Context, storageURL string) (io.ReadCloser, error)

func (f fetcherFunc) Fetch(ctx context.Context, storageURL string) (io.ReadCloser, error) {
	return f(ctx, storageURL)
}

func TestResolve_StorageURLPreferredOverInline(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockRecordStore(ctrl)

	var fetched []string
	fetcher := fetcherFunc(func(_ context.Context, u string) (io.ReadCloser, error) {
		fetched = append(fetched, u)
		return io.NopCloser(strings.NewReader(payloadJSON)), nil
	})

	inline := &models.AnalysisResult{Summary: models.Summary{GridHealthScore: 10}}
	rec := models.HistoryRecord{ID: "r1", StorageURL: "https://example.test/p.json", ResultData: inline}

	got, err := NewResolver(store, fetcher, nil).Resolve(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.test/p.json"}, fetched)
	assert.Equal(t, 91.0, got.Summary.GridHealthScore)
	assert.Equal(t, "1,234", got.Summary.TotalLossCalculated.Raw())
}

func TestResolve_InlineResult(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockRecordStore(ctrl)
	fetcher := fetcherFunc(func(context.Context, string) (io.ReadCloser, error) {
		t.Fatal("fetcher must not be called for inline records")
		return nil, nil
	})

	inline := &models.AnalysisResult{Summary: models.Summary{CriticalCases: 3}}
	got, err := NewResolver(store, fetcher, nil).Resolve(context.Background(), models.HistoryRecord{ID: "r2", ResultData: inline})
	require.NoError(t, err)
	assert.Same(t, inline, got)
}

func TestResolve_DetailRecord(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockRecordStore(ctrl)
	want := &models.AnalysisResult{Summary: models.Summary{AnomaliesDetected: 5}}
	store.EXPECT().Detail(gomock.Any(), "r3").Return(want, nil)

	got, err := NewResolver(store, nil, nil).Resolve(context.Background(), models.HistoryRecord{ID: "r3"})
	require.NoError(t, err)
	assert.Same(t, want, got)
}

func TestResolve_DetailMissing(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockRecordStore(ctrl)
	store.EXPECT().Detail(gomock.Any(), "r4").Return(nil, ErrHistoryNotFound)

	_, err := NewResolver(store, nil, nil).Resolve(context.Background(), models.HistoryRecord{ID: "r4"})
	require.ErrorIs(t, err, ErrHistoryNotFound)
}

func TestResolve_FetchFailureDoesNotFallBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	ctrl := gomock.NewController(t)
	store := NewMockRecordStore(ctrl)
	rec := models.HistoryRecord{
		ID:         "r5",
		StorageURL: srv.URL + "/gone.json",
		ResultData: &models.AnalysisResult{},
	}

	_, err := NewResolver(store, DefaultFetchers(), nil).Resolve(context.Background(), rec)
	require.ErrorIs(t, err, ErrHistoryFetch)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
}

func TestResolve_MalformedPayload(t *testing.T) {
	fetcher := fetcherFunc(func(context.Context, string) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader("{not json")), nil
	})
	ctrl := gomock.NewController(t)
	_, err := NewResolver(NewMockRecordStore(ctrl), fetcher, nil).
		Resolve(context.Background(), models.HistoryRecord{ID: "r6", StorageURL: "https://x.test/p"})
	require.ErrorIs(t, err, ErrHistoryFetch)
}

func TestList_NewestFirstRegardlessOfStoreOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockRecordStore(ctrl)
	store.EXPECT().Query(gomock.Any(), "u1", ListLimit).Return([]models.HistoryRecord{
		{ID: "a", UserID: "u1"},
		{ID: "b", UserID: "u1", Timestamp: &models.Timestamp{Seconds: 100}},
		{ID: "c", UserID: "u1", Timestamp: &models.Timestamp{Seconds: 300}},
		{ID: "d", UserID: "u1", Timestamp: &models.Timestamp{Seconds: 100}},
	}, nil)

	records, err := NewResolver(store, nil, nil).List(context.Background(), "u1")
	require.NoError(t, err)

	var ids []string
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"c", "b", "d", "a"}, ids)
}

func TestFind_ChecksOwner(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockRecordStore(ctrl)
	store.EXPECT().Get(gomock.Any(), "r1").Return(models.HistoryRecord{ID: "r1", UserID: "u1"}, nil).Times(2)
	store.EXPECT().Get(gomock.Any(), "gone").Return(models.HistoryRecord{}, fmt.Errorf("%w: gone", ErrRecordNotFound))

	r := NewResolver(store, nil, nil)
	rec, err := r.Find(context.Background(), "u1", "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", rec.ID)

	_, err = r.Find(context.Background(), "u2", "r1")
	require.ErrorIs(t, err, ErrRecordNotFound)

	_, err = r.Find(context.Background(), "u1", "gone")
	require.ErrorIs(t, err, ErrRecordNotFound)
}

func TestList_QueryError(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockRecordStore(ctrl)
	store.EXPECT().Query(gomock.Any(), "u1", ListLimit).Return(nil, errors.New("boom"))

	_, err := NewResolver(store, nil, nil).List(context.Background(), "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestVerify_ReportsPerRecord(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockRecordStore(ctrl)
	store.EXPECT().Detail(gomock.Any(), "old").Return(nil, ErrHistoryNotFound)

	dir := t.TempDir()
	payload := filepath.Join(dir, "p.json")
	require.NoError(t, os.WriteFile(payload, []byte(payloadJSON), 0644))

	records := []models.HistoryRecord{
		{ID: "cur", StorageURL: "file://" + filepath.ToSlash(payload)},
		{ID: "inline", ResultData: &models.AnalysisResult{}},
		{ID: "old"},
	}
	out := NewResolver(store, DefaultFetchers(), nil).Verify(context.Background(), records)
	require.Len(t, out, 3)

	assert.Equal(t, models.CurrentSchema, out[0].Schema)
	assert.NoError(t, out[0].Err)
	assert.Equal(t, models.LegacySchema, out[1].Schema)
	assert.NoError(t, out[1].Err)
	assert.Equal(t, models.OldestSchema, out[2].Schema)
	assert.ErrorIs(t, out[2].Err, ErrHistoryNotFound)
}

func TestFetchError(t *testing.T) {
	err := &FetchError{URL: "https://x.test/p", StatusCode: 500}
	assert.ErrorIs(t, err, ErrHistoryFetch)
	assert.Contains(t, err.Error(), "500")

	inner := errors.New("dial failed")
	err = &FetchError{URL: "https://x.test/p", Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.ErrorIs(t, err, ErrHistoryFetch)
}
