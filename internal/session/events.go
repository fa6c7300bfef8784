package session

import "time"

// EventType identifies the kind of journal event.
type EventType string

const (
	EventSessionStart   EventType = "session_start"
	EventResultApplied  EventType = "result_applied"
	EventStaleDiscarded EventType = "stale_discarded"
	EventInspectionSet  EventType = "inspection_set"
	EventReportExported EventType = "report_exported"
	EventError          EventType = "error"
)

// Event is a single timestamped entry in a session journal.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Type      EventType      `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
}

// NewEvent creates an event with the current timestamp.
func NewEvent(t EventType, data map[string]any) Event {
	return Event{
		Timestamp: time.Now().UTC(),
		Type:      t,
		Data:      data,
	}
}

func SessionStartData(userID, apiURL string) map[string]any {
	return map[string]any{
		"user_id": userID,
		"api_url": apiURL,
	}
}

func ResultAppliedData(token Token, source string, consumers, anomalies int) map[string]any {
	return map[string]any{
		"token":     uint64(token),
		"source":    source,
		"consumers": consumers,
		"anomalies": anomalies,
	}
}

func StaleDiscardedData(token, current Token, source string) map[string]any {
	return map[string]any{
		"token":   uint64(token),
		"current": uint64(current),
		"source":  source,
	}
}

func InspectionSetData(consumerID, status string) map[string]any {
	return map[string]any{
		"consumer_id": consumerID,
		"status":      status,
	}
}

func ReportExportedData(path, format string) map[string]any {
	return map[string]any{
		"path":   path,
		"format": format,
	}
}

// ErrorData returns event data for an error.
func ErrorData(message string, details map[string]any) map[string]any {
	d := map[string]any{
		"message": message,
	}
	for k, v := range details {
		d[k] = v
	}
	return d
}
