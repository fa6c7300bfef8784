package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/microsoft/gridscan/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDocument_TimestampShapes(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want int64
	}{
		{"object", `{"userId":"u","timestamp":{"seconds":1700000000,"nanos":5}}`, 1700000000},
		{"rfc3339", `{"userId":"u","timestamp":"2023-11-14T22:13:20Z"}`, 1700000000},
		{"epoch number", `{"userId":"u","timestamp":1700000000}`, 1700000000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := decodeDocument("k", []byte(tt.doc))
			require.NoError(t, err)
			require.NotNil(t, rec.Timestamp)
			assert.Equal(t, tt.want, rec.Timestamp.Seconds)
		})
	}
}

func TestDecodeDocument_IDFallbackAndInlineResult(t *testing.T) {
	doc := `{"userId":"u","fileName":"meter.csv","resultData":{"summary":{"total_loss_calculated":1234}}}`
	rec, err := decodeDocument("key-1", []byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "key-1", rec.ID)
	assert.Equal(t, "meter.csv", rec.FileName)
	assert.Nil(t, rec.Timestamp)
	require.NotNil(t, rec.ResultData)
	assert.Equal(t, "1234", rec.ResultData.Summary.TotalLossCalculated.Raw())
	assert.Equal(t, models.LegacySchema, rec.Schema())
}

func TestDecodeDocument_Invalid(t *testing.T) {
	_, err := decodeDocument("k", []byte("not json"))
	require.Error(t, err)

	_, err = decodeDocument("k", []byte(`{"timestamp":"yesterday"}`))
	require.Error(t, err)
}

type detailStore interface {
	RecordStore
	SaveDetail(ctx context.Context, id string, result *models.AnalysisResult) error
}

func testStores(t *testing.T) map[string]detailStore {
	sqlStore, err := OpenSQLStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlStore.Close() }) //nolint:errcheck

	return map[string]detailStore{
		"dir":    NewDirStore(t.TempDir()),
		"sqlite": sqlStore,
	}
}

func TestStores_SaveQueryDetail(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ts := models.NewTimestamp(time.Unix(1700000000, 0))
			require.NoError(t, store.Save(ctx, models.HistoryRecord{ID: "a", UserID: "u1", FileName: "a.csv", Timestamp: ts}))
			require.NoError(t, store.Save(ctx, models.HistoryRecord{ID: "b", UserID: "u2"}))
			require.NoError(t, store.Save(ctx, models.HistoryRecord{ID: "c", UserID: "u1", StorageURL: "file:///tmp/c.json"}))

			records, err := store.Query(ctx, "u1", ListLimit)
			require.NoError(t, err)
			require.Len(t, records, 2)
			ids := map[string]bool{}
			for _, r := range records {
				assert.Equal(t, "u1", r.UserID)
				ids[r.ID] = true
			}
			assert.True(t, ids["a"])
			assert.True(t, ids["c"])

			limited, err := store.Query(ctx, "u1", 1)
			require.NoError(t, err)
			require.Len(t, limited, 1)
			assert.Equal(t, "a", limited[0].ID)

			got, err := store.Get(ctx, "b")
			require.NoError(t, err)
			assert.Equal(t, "u2", got.UserID)
			_, err = store.Get(ctx, "missing")
			require.ErrorIs(t, err, ErrRecordNotFound)

			_, err = store.Detail(ctx, "a")
			require.ErrorIs(t, err, ErrHistoryNotFound)

			want := &models.AnalysisResult{Summary: models.Summary{CriticalCases: 4, TotalLossCalculated: models.NewAmount("2,000")}}
			require.NoError(t, store.SaveDetail(ctx, "a", want))
			detail, err := store.Detail(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, 4, detail.Summary.CriticalCases)
			assert.Equal(t, "2,000", detail.Summary.TotalLossCalculated.Raw())
		})
	}
}

func TestStores_ListingKeepsNewestBeyondLimit(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			const total = ListLimit + 5
			for i := range total {
				require.NoError(t, store.Save(ctx, models.HistoryRecord{
					ID:        fmt.Sprintf("a%02d", i),
					UserID:    "u",
					Timestamp: models.NewTimestamp(time.Unix(1700000000+int64(i)*60, 0)),
				}))
			}

			r := NewResolver(store, nil, nil)
			records, err := r.List(ctx, "u")
			require.NoError(t, err)
			require.Len(t, records, ListLimit)
			assert.Equal(t, "a24", records[0].ID)
			assert.Equal(t, "a05", records[ListLimit-1].ID)

			all, err := store.Query(ctx, "u", 0)
			require.NoError(t, err)
			assert.Len(t, all, total)

			rec, err := r.Find(ctx, "u", "a00")
			require.NoError(t, err)
			assert.Equal(t, "a00", rec.ID)

			_, err = r.Find(ctx, "someone-else", "a00")
			require.ErrorIs(t, err, ErrRecordNotFound)
		})
	}
}

func TestDirStore_MissingDirectory(t *testing.T) {
	store := NewDirStore(filepath.Join(t.TempDir(), "nope"))
	records, err := store.Query(context.Background(), "u1", ListLimit)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDirStore_RejectsPathIDs(t *testing.T) {
	store := NewDirStore(t.TempDir())
	err := store.Save(context.Background(), models.HistoryRecord{ID: "../escape", UserID: "u"})
	require.Error(t, err)
}

func TestArchiver_ArchiveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewDirStore(filepath.Join(dir, "records"))
	a := &Archiver{
		Store:    store,
		Payloads: DirPayloads{Dir: filepath.Join(dir, "payloads"), Compress: true},
		Now:      func() time.Time { return time.Unix(1700000000, 0) },
	}

	result := &models.AnalysisResult{Summary: models.Summary{AnomaliesDetected: 7, TotalLossCalculated: models.NewAmount("1,234,500")}}
	rec, err := a.Archive(context.Background(), "u1", "upload/meter.csv", result)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, models.CurrentSchema, rec.Schema())
	assert.Equal(t, int64(1700000000), rec.Timestamp.UnixSeconds())
	assert.Contains(t, rec.StorageURL, "meter.csv.json.gz")

	resolver := NewResolver(store, DefaultFetchers(), nil)
	records, err := resolver.List(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, records, 1)

	got, err := resolver.Resolve(context.Background(), records[0])
	require.NoError(t, err)
	assert.Equal(t, 7, got.Summary.AnomaliesDetected)
	assert.Equal(t, "1,234,500", got.Summary.TotalLossCalculated.Raw())
}

func TestFileFetcher_Missing(t *testing.T) {
	p := filepath.Join(t.TempDir(), "missing.json")
	_, err := FileFetcher{}.Fetch(context.Background(), "file://"+filepath.ToSlash(p))
	require.ErrorIs(t, err, ErrHistoryFetch)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFetchers_UnknownScheme(t *testing.T) {
	_, err := DefaultFetchers().Fetch(context.Background(), "ftp://host/p.json")
	require.ErrorIs(t, err, ErrHistoryFetch)
}

func TestSplitBlobURL(t *testing.T) {
	c, b, err := splitBlobURL("azblob://results/history/u1/1_a.json")
	require.NoError(t, err)
	assert.Equal(t, "results", c)
	assert.Equal(t, "history/u1/1_a.json", b)

	c, b, err = splitBlobURL("https://acct.blob.core.windows.net/results/history/u1/a.json")
	require.NoError(t, err)
	assert.Equal(t, "results", c)
	assert.Equal(t, "history/u1/a.json", b)

	_, _, err = splitBlobURL("azblob://results")
	require.Error(t, err)

	assert.True(t, isBlobHost("Acct.Blob.Core.Windows.Net"))
	assert.False(t, isBlobHost("example.com"))
}
