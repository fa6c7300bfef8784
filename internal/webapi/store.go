package webapi

import (
	"context"
	"io"
	"log/slog"

	"github.com/microsoft/gridscan/internal/history"
	"github.com/microsoft/gridscan/internal/models"
	"github.com/microsoft/gridscan/internal/report"
	"github.com/microsoft/gridscan/internal/session"
)

// ErrRecordNotFound is returned when a history id does not belong to the
// user.
var ErrRecordNotFound = history.ErrRecordNotFound

// Analyzer uploads a dataset to the scoring service.
type Analyzer interface {
	Analyze(ctx context.Context, filename string, r io.Reader) (*models.AnalysisResult, error)
}

// HistorySource lists and resolves a user's past runs.
type HistorySource interface {
	List(ctx context.Context, userID string) ([]models.HistoryRecord, error)
	Find(ctx context.Context, userID, id string) (models.HistoryRecord, error)
	Resolve(ctx context.Context, rec models.HistoryRecord) (*models.AnalysisResult, error)
}

// Archiver saves a finished run to history.
type Archiver interface {
	Archive(ctx context.Context, userID, fileName string, result *models.AnalysisResult) (models.HistoryRecord, error)
}

// Deps wires the API to the session it serves. History and Archiver are
// optional; without them the history endpoints answer 503 and uploads are
// not saved.
type Deps struct {
	Session  *session.Session
	Analyzer Analyzer
	History  HistorySource
	Archiver Archiver
	UserID   string

	// ExportFormat is used when GET /api/export has no format parameter.
	ExportFormat report.Format
	Logger       *slog.Logger
}
