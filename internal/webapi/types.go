package webapi

import (
	"time"

	"github.com/microsoft/gridscan/internal/derive"
	"github.com/microsoft/gridscan/internal/models"
)

// HealthResponse is the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ErrorResponse is returned for errors.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Code    int      `json:"code"`
	Details []string `json:"details,omitempty"`
}

// ResultResponse is the displayed analysis result and where it came from.
type ResultResponse struct {
	Source string                 `json:"source"`
	Result *models.AnalysisResult `json:"result"`
}

// MarkersResponse is the map view: high-risk pins and the initial center.
type MarkersResponse struct {
	Center  derive.Coordinate `json:"center"`
	Markers []derive.Marker   `json:"markers"`
}

// ClassifiedRow is a table row with its inspection status label.
type ClassifiedRow struct {
	models.ConsumerResult
	ScorePercent int    `json:"score_percent"`
	Status       string `json:"status"`
}

// ClassificationResponse holds the anomaly table and the score-ranked table
// of everything else.
type ClassificationResponse struct {
	Anomalies []ClassifiedRow `json:"anomalies"`
	Normal    []ClassifiedRow `json:"normal"`
}

// HistoryEntry is one row of the history list.
type HistoryEntry struct {
	ID        string    `json:"id"`
	FileName  string    `json:"fileName"`
	Timestamp time.Time `json:"timestamp"`
	Schema    string    `json:"schema"`
}

// InspectionEntry is the inspection status of one anomaly.
type InspectionEntry struct {
	ConsumerID string `json:"consumer_id"`
	Status     string `json:"status"`
}

// StatusRequest is the body of PUT /api/inspection/{consumerId}.
type StatusRequest struct {
	Status string `json:"status"`
}
