// Package wizard runs the interactive inspection status prompt used before
// exporting a report.
package wizard

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/microsoft/gridscan/internal/inspection"
	"github.com/microsoft/gridscan/internal/models"
	"golang.org/x/term"
)

// StatusChoice is one anomaly whose inspection status is being chosen.
type StatusChoice struct {
	ConsumerID    string
	TransformerID string
	RiskClass     string
	Status        models.InspectionStatus
}

// NewChoices lists the anomalies in order with their current status.
// Consumers appearing more than once are prompted for once.
func NewChoices(anomalies []models.ConsumerResult, current inspection.Snapshot) []StatusChoice {
	seen := make(map[string]bool, len(anomalies))
	choices := make([]StatusChoice, 0, len(anomalies))
	for _, a := range anomalies {
		if a.ConsumerID == "" || seen[a.ConsumerID] {
			continue
		}
		seen[a.ConsumerID] = true
		choices = append(choices, StatusChoice{
			ConsumerID:    a.ConsumerID,
			TransformerID: a.TransformerID,
			RiskClass:     a.RiskClass,
			Status:        current[a.ConsumerID],
		})
	}
	return choices
}

// statusOptions returns the selectable statuses, with the unset status
// shown as "Not Started".
func statusOptions() []huh.Option[models.InspectionStatus] {
	opts := []huh.Option[models.InspectionStatus]{
		huh.NewOption(models.InspectionNotStarted, models.InspectionUnset),
	}
	for _, s := range models.InspectionStatuses {
		opts = append(opts, huh.NewOption(s.Label(), s))
	}
	return opts
}

// RunStatusWizard asks for an inspection status per choice and writes the
// answers back into choices.
func RunStatusWizard(in io.Reader, out io.Writer, choices []StatusChoice) error {
	if len(choices) == 0 {
		return nil
	}

	fields := make([]huh.Field, 0, len(choices))
	for i := range choices {
		c := &choices[i]
		fields = append(fields, huh.NewSelect[models.InspectionStatus]().
			Title(fmt.Sprintf("Inspection status for %s", c.ConsumerID)).
			Description(fmt.Sprintf("Transformer %s, risk class %s", c.TransformerID, c.RiskClass)).
			Options(statusOptions()...).
			Value(&c.Status))
	}

	form := huh.NewForm(huh.NewGroup(fields...)).
		WithInput(in).
		WithOutput(out)

	// Use accessible mode for non-TTY input (e.g., tests, piped input).
	if f, ok := in.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		form = form.WithAccessible(true)
	}

	if err := form.Run(); err != nil {
		return fmt.Errorf("status prompt failed: %w", err)
	}
	return nil
}

// StatusSetter records inspection statuses.
type StatusSetter interface {
	SetStatus(consumerID string, status models.InspectionStatus) error
}

// Apply records every choice through s.
func Apply(s StatusSetter, choices []StatusChoice) error {
	for _, c := range choices {
		if err := s.SetStatus(c.ConsumerID, c.Status); err != nil {
			return fmt.Errorf("setting status for %s: %w", c.ConsumerID, err)
		}
	}
	return nil
}
