package webapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/microsoft/gridscan/internal/analyze"
	"github.com/microsoft/gridscan/internal/derive"
	"github.com/microsoft/gridscan/internal/history"
	"github.com/microsoft/gridscan/internal/inspection"
	"github.com/microsoft/gridscan/internal/models"
	"github.com/microsoft/gridscan/internal/report"
	"github.com/microsoft/gridscan/internal/session"
	"github.com/microsoft/gridscan/internal/validation"
)

// Version is set at build time or defaults to dev.
var Version = "0.1.0-dev"

// maxUpload bounds dataset uploads and posted result documents.
const maxUpload = 32 << 20

// Handlers holds the HTTP handler methods for the web API.
type Handlers struct {
	deps   Deps
	logger *slog.Logger
}

// NewHandlers creates a new Handlers over deps.
func NewHandlers(deps Deps) *Handlers {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.ExportFormat == "" {
		deps.ExportFormat = report.FormatMarkdown
	}
	return &Handlers{deps: deps, logger: logger}
}

// HandleHealth returns a simple health check response.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: Version,
	})
}

// HandleResult returns the displayed result.
func (h *Handlers) HandleResult(w http.ResponseWriter, _ *http.Request) {
	result, source, err := h.deps.Session.Result()
	if err != nil {
		h.fail(w, "result", err)
		return
	}
	writeJSON(w, http.StatusOK, ResultResponse{Source: source, Result: result})
}

// HandlePostResult installs a result document uploaded by the client after
// validating its structure.
func (h *Handlers) HandlePostResult(w http.ResponseWriter, r *http.Request) {
	tok := h.deps.Session.Begin()

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUpload))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("reading body: %v", err))
		return
	}
	if errs := validation.ValidateResultBytes(data); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "result document failed validation",
			Code:    http.StatusBadRequest,
			Details: errs,
		})
		return
	}
	result, err := models.ParseResult(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	source := r.URL.Query().Get("name")
	if source == "" {
		source = "upload"
	}
	if err := h.deps.Session.Apply(tok, source, result); err != nil {
		h.fail(w, "result", err)
		return
	}
	writeJSON(w, http.StatusOK, ResultResponse{Source: source, Result: result})
}

// HandleAnalyze forwards an uploaded dataset to the scoring service and
// installs the returned result. With ?save=true the run is archived.
func (h *Handlers) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	if h.deps.Analyzer == nil {
		writeError(w, http.StatusServiceUnavailable, "scoring service is not configured")
		return
	}
	tok := h.deps.Session.Begin()

	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	file, header, err := r.FormFile("files")
	if err != nil {
		h.fail(w, "analyze", analyze.ErrUploadMissing)
		return
	}
	defer file.Close() //nolint:errcheck

	result, err := h.deps.Analyzer.Analyze(r.Context(), header.Filename, file)
	if err != nil {
		h.fail(w, "analyze", err)
		return
	}
	if err := h.deps.Session.Apply(tok, header.Filename, result); err != nil {
		h.fail(w, "analyze", err)
		return
	}

	if save, _ := strconv.ParseBool(r.URL.Query().Get("save")); save && h.deps.Archiver != nil {
		if _, err := h.deps.Archiver.Archive(r.Context(), h.deps.UserID, header.Filename, result); err != nil {
			// The result is already displayed; a failed save is only reported.
			h.logger.Warn("failed to archive analysis", "file", header.Filename, "error", err)
			h.deps.Session.RecordError("archive", err)
		}
	}
	writeJSON(w, http.StatusOK, ResultResponse{Source: header.Filename, Result: result})
}

// HandleMarkers returns the map markers of the displayed result.
func (h *Handlers) HandleMarkers(w http.ResponseWriter, _ *http.Request) {
	result, _, err := h.deps.Session.Result()
	if err != nil {
		h.fail(w, "markers", err)
		return
	}
	markers := derive.Markers(result)
	if markers == nil {
		markers = []derive.Marker{}
	}
	writeJSON(w, http.StatusOK, MarkersResponse{
		Center:  derive.MapCenter(derive.GeoMarkers(result)),
		Markers: markers,
	})
}

// HandleClassification returns the anomaly and ranked tables.
func (h *Handlers) HandleClassification(w http.ResponseWriter, _ *http.Request) {
	view, err := h.deps.Session.Snapshot()
	if err != nil {
		h.fail(w, "classification", err)
		return
	}
	c := derive.Classify(view.Result)
	writeJSON(w, http.StatusOK, ClassificationResponse{
		Anomalies: classifiedRows(c.Anomalies, view.Statuses),
		Normal:    classifiedRows(c.Normal, view.Statuses),
	})
}

func classifiedRows(records []models.ConsumerResult, statuses inspection.Snapshot) []ClassifiedRow {
	rows := make([]ClassifiedRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, ClassifiedRow{
			ConsumerResult: rec,
			ScorePercent:   derive.ScorePercent(rec.AggregateRiskScore),
			Status:         statuses.Label(rec.ConsumerID),
		})
	}
	return rows
}

// HandleTransformers returns the transformer distribution chart data.
func (h *Handlers) HandleTransformers(w http.ResponseWriter, _ *http.Request) {
	result, _, err := h.deps.Session.Result()
	if err != nil {
		h.fail(w, "transformers", err)
		return
	}
	writeJSON(w, http.StatusOK, derive.TransformerStats(result.TransformersAtRisk))
}

// HandleHistory lists the user's past runs, newest first.
func (h *Handlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if h.deps.History == nil {
		writeError(w, http.StatusServiceUnavailable, "history is not configured")
		return
	}
	records, err := h.deps.History.List(r.Context(), h.userID(r))
	if err != nil {
		h.fail(w, "history", err)
		return
	}
	entries := make([]HistoryEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, HistoryEntry{
			ID:        rec.ID,
			FileName:  rec.DisplayName(),
			Timestamp: rec.Timestamp.Time(),
			Schema:    rec.Schema().String(),
		})
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleHistoryLoad resolves a past run and installs it as the displayed
// result.
func (h *Handlers) HandleHistoryLoad(w http.ResponseWriter, r *http.Request) {
	if h.deps.History == nil {
		writeError(w, http.StatusServiceUnavailable, "history is not configured")
		return
	}
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "history id is required")
		return
	}
	tok := h.deps.Session.Begin()

	rec, err := h.deps.History.Find(r.Context(), h.userID(r), id)
	if err != nil {
		h.fail(w, "history load", err)
		return
	}
	result, err := h.deps.History.Resolve(r.Context(), rec)
	if err != nil {
		h.fail(w, "history load", err)
		return
	}
	source := rec.DisplayName()
	if err := h.deps.Session.Apply(tok, source, result); err != nil {
		h.fail(w, "history load", err)
		return
	}
	writeJSON(w, http.StatusOK, ResultResponse{Source: source, Result: result})
}

// HandleInspection lists the inspection status of every anomaly.
func (h *Handlers) HandleInspection(w http.ResponseWriter, _ *http.Request) {
	view, err := h.deps.Session.Snapshot()
	if err != nil {
		h.fail(w, "inspection", err)
		return
	}
	anomalies := view.Result.Anomalies
	seen := make(map[string]bool, len(anomalies))
	entries := make([]InspectionEntry, 0, len(anomalies))
	for _, a := range anomalies {
		if seen[a.ConsumerID] {
			continue
		}
		seen[a.ConsumerID] = true
		entries = append(entries, InspectionEntry{ConsumerID: a.ConsumerID, Status: view.Statuses.Label(a.ConsumerID)})
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleSetInspection records the inspection status of one consumer.
func (h *Handlers) HandleSetInspection(w http.ResponseWriter, r *http.Request) {
	if _, _, err := h.deps.Session.Result(); err != nil {
		h.fail(w, "inspection", err)
		return
	}
	id := r.PathValue("consumerId")
	if id == "" {
		writeError(w, http.StatusBadRequest, "consumer id is required")
		return
	}

	var req StatusRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decoding body: %v", err))
		return
	}
	status := models.InspectionStatus(req.Status)
	if req.Status == models.InspectionNotStarted {
		status = models.InspectionUnset
	}
	if err := h.deps.Session.SetStatus(id, status); err != nil {
		h.fail(w, "inspection", err)
		return
	}
	writeJSON(w, http.StatusOK, InspectionEntry{ConsumerID: id, Status: status.Label()})
}

// HandleExport renders the report of the displayed result as a download.
func (h *Handlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	format := h.deps.ExportFormat
	if q := r.URL.Query().Get("format"); q != "" {
		if err := format.Set(q); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid format %q: %v", q, err))
			return
		}
	}
	gz, _ := strconv.ParseBool(r.URL.Query().Get("gzip"))

	view, err := h.deps.Session.Snapshot()
	if err != nil {
		h.fail(w, "export", err)
		return
	}
	exp := &report.Exporter{Format: format, Gzip: gz, Logger: h.logger}
	data, err := exp.Render(view.Result, view.Statuses)
	if err != nil {
		h.fail(w, "export", err)
		return
	}

	name := report.Filename(format, gz)
	w.Header().Set("Content-Type", contentType(format, gz))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck
	h.deps.Session.RecordExport(name, string(format))
}

func contentType(format report.Format, gz bool) string {
	if gz {
		return "application/gzip"
	}
	switch format {
	case report.FormatHTML:
		return "text/html; charset=utf-8"
	case report.FormatJSON:
		return "application/json"
	case report.FormatText:
		return "text/plain; charset=utf-8"
	default:
		return "text/markdown; charset=utf-8"
	}
}

func (h *Handlers) userID(r *http.Request) string {
	if u := strings.TrimSpace(r.URL.Query().Get("user")); u != "" {
		return u
	}
	return h.deps.UserID
}

// fail journals err and answers with the matching status code. The
// displayed session state is never changed by a failure.
func (h *Handlers) fail(w http.ResponseWriter, op string, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		h.logger.Error("request failed", "op", op, "error", err)
	} else {
		h.logger.Debug("request rejected", "op", op, "error", err)
	}
	if !errors.Is(err, session.ErrNoResult) {
		h.deps.Session.RecordError(op, err)
	}
	writeError(w, code, err.Error())
}

func statusFor(err error) int {
	var transportErr *analyze.TransportError
	var statusErr *analyze.UnexpectedStatusError
	switch {
	case errors.Is(err, session.ErrNoResult),
		errors.Is(err, history.ErrHistoryNotFound),
		errors.Is(err, ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrStale):
		return http.StatusConflict
	case errors.Is(err, analyze.ErrUploadMissing),
		errors.Is(err, inspection.ErrInvalidStatus):
		return http.StatusBadRequest
	case errors.Is(err, history.ErrHistoryFetch),
		errors.As(err, &transportErr),
		errors.As(err, &statusErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// RegisterRoutes registers all web API routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, deps Deps) {
	h := NewHandlers(deps)
	mux.HandleFunc("GET /api/health", h.HandleHealth)
	mux.HandleFunc("GET /api/result", h.HandleResult)
	mux.HandleFunc("POST /api/result", h.HandlePostResult)
	mux.HandleFunc("POST /api/analyze", h.HandleAnalyze)
	mux.HandleFunc("GET /api/markers", h.HandleMarkers)
	mux.HandleFunc("GET /api/classification", h.HandleClassification)
	mux.HandleFunc("GET /api/transformers", h.HandleTransformers)
	mux.HandleFunc("GET /api/history", h.HandleHistory)
	mux.HandleFunc("POST /api/history/{id}/load", h.HandleHistoryLoad)
	mux.HandleFunc("GET /api/inspection", h.HandleInspection)
	mux.HandleFunc("PUT /api/inspection/{consumerId}", h.HandleSetInspection)
	mux.HandleFunc("GET /api/export", h.HandleExport)
}

// CORSMiddleware wraps a handler with CORS headers.
// If allowedOrigins is empty, no CORS header is set (same-origin only).
// Otherwise, the request Origin is checked against the allowed list.
func CORSMiddleware(next http.Handler, allowedOrigins ...string) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if len(allowedOrigins) > 0 && origin != "" && allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ErrorResponse{Error: msg, Code: code})
}
