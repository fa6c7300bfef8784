// Package inspection tracks the field-inspection workflow status of flagged
// consumers for the currently displayed analysis result.
package inspection

import (
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/microsoft/gridscan/internal/models"
)

// ErrInvalidStatus is returned by Set for statuses outside the workflow.
var ErrInvalidStatus = errors.New("invalid inspection status")

// Tracker maps consumer ids to inspection statuses. The zero value is ready
// to use.
type Tracker struct {
	mu       sync.RWMutex
	statuses map[string]models.InspectionStatus
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{statuses: make(map[string]models.InspectionStatus)}
}

// Set overwrites the status for consumerID. Setting the unset status clears
// the entry.
func (t *Tracker) Set(consumerID string, status models.InspectionStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if status == models.InspectionUnset {
		delete(t.statuses, consumerID)
		return nil
	}
	if t.statuses == nil {
		t.statuses = make(map[string]models.InspectionStatus)
	}
	t.statuses[consumerID] = status
	return nil
}

// Get returns the status for consumerID, or the unset status.
func (t *Tracker) Get(consumerID string) models.InspectionStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.statuses[consumerID]
}

// Label returns the display label for consumerID's status.
func (t *Tracker) Label(consumerID string) string {
	return t.Get(consumerID).Label()
}

// Reset drops every status. Called whenever a new result replaces the one
// being displayed.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.statuses = make(map[string]models.InspectionStatus)
}

// Snapshot returns a copy of the current statuses.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Snapshot(maps.Clone(t.statuses))
}

// Snapshot is a point-in-time copy of tracker state.
type Snapshot map[string]models.InspectionStatus

// Label returns the display label for consumerID in the snapshot.
func (s Snapshot) Label(consumerID string) string {
	return s[consumerID].Label()
}
