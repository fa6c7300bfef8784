package models

import "time"

// InspectionStatus is the field-inspection workflow state of a consumer.
// The zero value means no status has been chosen.
type InspectionStatus string

const (
	InspectionUnset     InspectionStatus = ""
	InspectionInitiated InspectionStatus = "Initiated"
	InspectionInProcess InspectionStatus = "In Process"
	InspectionCompleted InspectionStatus = "Completed"
)

// InspectionNotStarted is the label shown for an unset status.
const InspectionNotStarted = "Not Started"

// InspectionStatuses lists the selectable statuses in workflow order.
var InspectionStatuses = []InspectionStatus{
	InspectionInitiated,
	InspectionInProcess,
	InspectionCompleted,
}

// Valid reports whether s is unset or one of the selectable statuses.
func (s InspectionStatus) Valid() bool {
	switch s {
	case InspectionUnset, InspectionInitiated, InspectionInProcess, InspectionCompleted:
		return true
	}
	return false
}

// Label returns the display text, substituting InspectionNotStarted for unset.
func (s InspectionStatus) Label() string {
	if s == InspectionUnset {
		return InspectionNotStarted
	}
	return string(s)
}

// Timestamp mirrors the {seconds, nanos} shape used by the history store.
type Timestamp struct {
	Seconds int64 `json:"seconds" mapstructure:"seconds"`
	Nanos   int32 `json:"nanos,omitempty" mapstructure:"nanos"`
}

// NewTimestamp converts t to a Timestamp.
func NewTimestamp(t time.Time) *Timestamp {
	return &Timestamp{Seconds: t.Unix(), Nanos: int32(t.Nanosecond())}
}

// Time converts the timestamp to a time.Time. A nil timestamp is the epoch.
func (t *Timestamp) Time() time.Time {
	if t == nil {
		return time.Unix(0, 0).UTC()
	}
	return time.Unix(t.Seconds, int64(t.Nanos)).UTC()
}

// UnixSeconds returns the seconds field, 0 for a nil timestamp.
func (t *Timestamp) UnixSeconds() int64 {
	if t == nil {
		return 0
	}
	return t.Seconds
}

// HistorySchema identifies which storage generation a HistoryRecord uses.
type HistorySchema int

const (
	// OldestSchema records keep the payload in a detail sub-record.
	OldestSchema HistorySchema = iota
	// LegacySchema records carry the payload inline in resultData.
	LegacySchema
	// CurrentSchema records point at the payload through storageUrl.
	CurrentSchema
)

func (s HistorySchema) String() string {
	switch s {
	case CurrentSchema:
		return "storage-url"
	case LegacySchema:
		return "inline"
	default:
		return "detail-record"
	}
}

// HistoryRecord is one stored reference to a past analysis run.
type HistoryRecord struct {
	ID         string          `json:"id" mapstructure:"id"`
	UserID     string          `json:"userId" mapstructure:"userId"`
	FileName   string          `json:"fileName,omitempty" mapstructure:"fileName"`
	Timestamp  *Timestamp      `json:"timestamp,omitempty" mapstructure:"timestamp"`
	StorageURL string          `json:"storageUrl,omitempty" mapstructure:"storageUrl"`
	ResultData *AnalysisResult `json:"resultData,omitempty" mapstructure:"-"`
}

// Schema reports the storage generation, preferring the newest shape when a
// record carries more than one.
func (r HistoryRecord) Schema() HistorySchema {
	switch {
	case r.StorageURL != "":
		return CurrentSchema
	case r.ResultData != nil:
		return LegacySchema
	default:
		return OldestSchema
	}
}

// DisplayName returns the uploaded file name or a placeholder.
func (r HistoryRecord) DisplayName() string {
	if r.FileName == "" {
		return "Unknown File"
	}
	return r.FileName
}
