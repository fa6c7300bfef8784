package history

import (
	"errors"
	"fmt"
)

var (
	// ErrHistoryFetch matches any failure to read a payload through its
	// storage URL.
	ErrHistoryFetch = errors.New("failed to load history data")

	// ErrHistoryNotFound is returned when a record's detail sub-record does
	// not exist.
	ErrHistoryNotFound = errors.New("history details not found")

	// ErrRecordNotFound is returned when no record with the requested id
	// belongs to the user.
	ErrRecordNotFound = errors.New("history record not found")
)

// FetchError describes a failed storage URL read. StatusCode is zero for
// transport failures.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("fetching %s: unexpected status %d", e.URL, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("fetching %s failed", e.URL)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrHistoryFetch) match every FetchError.
func (e *FetchError) Is(target error) bool { return target == ErrHistoryFetch }
