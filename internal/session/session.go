// Package session holds the state of one interactive gridscan session: the
// displayed analysis result and its inspection statuses.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/microsoft/gridscan/internal/inspection"
	"github.com/microsoft/gridscan/internal/models"
)

// ErrStale is returned by Apply when a newer request has already installed
// its result.
var ErrStale = errors.New("stale result discarded")

// ErrNoResult is returned by operations that need a displayed result.
var ErrNoResult = errors.New("no analysis result loaded")

// Token identifies one asynchronous request that may replace the displayed
// result. Tokens increase monotonically.
type Token uint64

// Session is safe for concurrent use.
type Session struct {
	mu      sync.RWMutex
	issued  Token
	applied Token
	result  *models.AnalysisResult
	source  string
	tracker *inspection.Tracker

	journal Journal
	logger  *slog.Logger
}

// New creates an empty session. A nil journal discards events and a nil
// logger uses slog.Default().
func New(journal Journal, logger *slog.Logger) *Session {
	if journal == nil {
		journal = NopJournal{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{tracker: inspection.NewTracker(), journal: journal, logger: logger}
}

// Begin issues the token for a new request.
func (s *Session) Begin() Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

// Apply installs result as the displayed result if no request newer than
// tok has been applied. Installing a result resets inspection statuses.
// source names where the result came from (a file name or history id).
func (s *Session) Apply(tok Token, source string, result *models.AnalysisResult) error {
	if result == nil {
		return fmt.Errorf("applying %s: %w", source, ErrNoResult)
	}

	s.mu.Lock()
	if tok < s.applied {
		current := s.applied
		s.mu.Unlock()
		s.logger.Debug("discarding stale result", "token", tok, "current", current, "source", source)
		s.record(EventStaleDiscarded, StaleDiscardedData(tok, current, source))
		return ErrStale
	}
	s.applied = tok
	s.result = result
	s.source = source
	s.tracker.Reset()
	s.mu.Unlock()

	s.logger.Debug("result applied", "token", tok, "source", source)
	s.record(EventResultApplied, ResultAppliedData(tok, source, len(result.Results), len(result.Anomalies)))
	return nil
}

// Result returns the displayed result and its source.
func (s *Session) Result() (*models.AnalysisResult, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.result == nil {
		return nil, "", ErrNoResult
	}
	return s.result, s.source, nil
}

// SetStatus records an inspection status for a consumer of the displayed
// result.
func (s *Session) SetStatus(consumerID string, status models.InspectionStatus) error {
	s.mu.RLock()
	err := s.tracker.Set(consumerID, status)
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	s.record(EventInspectionSet, InspectionSetData(consumerID, status.Label()))
	return nil
}

// Statuses returns a copy of the current inspection statuses.
func (s *Session) Statuses() inspection.Snapshot {
	return s.tracker.Snapshot()
}

// View is the displayed result together with the statuses set on it.
type View struct {
	Result   *models.AnalysisResult
	Source   string
	Statuses inspection.Snapshot
}

// Snapshot returns the displayed result and its statuses read under one
// lock, so a concurrent Apply cannot pair a result with another result's
// statuses.
func (s *Session) Snapshot() (View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.result == nil {
		return View{}, ErrNoResult
	}
	return View{Result: s.result, Source: s.source, Statuses: s.tracker.Snapshot()}, nil
}

// Start journals the beginning of the session.
func (s *Session) Start(userID, apiURL string) {
	s.record(EventSessionStart, SessionStartData(userID, apiURL))
}

// RecordExport journals a finished export.
func (s *Session) RecordExport(path, format string) {
	s.record(EventReportExported, ReportExportedData(path, format))
}

// RecordError journals a failed operation. The displayed state is never
// changed by a failure.
func (s *Session) RecordError(op string, err error) {
	s.record(EventError, ErrorData(err.Error(), map[string]any{"op": op}))
}

func (s *Session) record(t EventType, data map[string]any) {
	if err := s.journal.Record(NewEvent(t, data)); err != nil {
		s.logger.Warn("failed to write session journal", "error", err)
	}
}
