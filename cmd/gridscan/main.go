package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/microsoft/gridscan/internal/analyze"
	"github.com/microsoft/gridscan/internal/dataset"
	"github.com/microsoft/gridscan/internal/history"
	"github.com/microsoft/gridscan/internal/report"
	"github.com/microsoft/gridscan/internal/session"
)

// Exit codes for different failure modes
const (
	ExitSuccess = 0 // Command completed
	ExitFailed  = 1 // The analysis, history or export step failed
	ExitError   = 2 // Configuration or runtime error
)

// ValidationFailedError indicates that validate ran but the document did
// not conform to its schema.
type ValidationFailedError struct {
	Path   string
	Errors []string
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("%s: %d validation error(s)", e.Path, len(e.Errors))
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps user-facing domain failures to ExitFailed and everything
// else to ExitError.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var (
		transportErr  *analyze.TransportError
		statusErr     *analyze.UnexpectedStatusError
		exportErr     *report.ExportError
		columnsErr    *dataset.MissingColumnsError
		validationErr *ValidationFailedError
	)
	switch {
	case errors.Is(err, analyze.ErrUploadMissing),
		errors.Is(err, history.ErrHistoryFetch),
		errors.Is(err, history.ErrHistoryNotFound),
		errors.Is(err, errRecordNotFound),
		errors.Is(err, session.ErrNoResult),
		errors.As(err, &transportErr),
		errors.As(err, &statusErr),
		errors.As(err, &exportErr),
		errors.As(err, &columnsErr),
		errors.As(err, &validationErr):
		return ExitFailed
	}
	return ExitError
}
