// Package derive turns an AnalysisResult into the views shown on the map,
// in the tables, and in exported reports. Every function is pure: inputs are
// never mutated and the same input always yields the same output.
package derive

import (
	"cmp"
	"iter"
	"math"
	"slices"

	"github.com/microsoft/gridscan/internal/models"
)

// DefaultCenter is the map center used when there are no markers.
var DefaultCenter = Coordinate{Lat: 28.6139, Lng: 77.2090}

// Coordinate is a latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Marker is one map pin for a high-risk consumer.
type Marker struct {
	ConsumerID    string     `json:"consumer_id"`
	TransformerID string     `json:"transformer_id"`
	RiskClass     string     `json:"risk_class"`
	ScorePercent  int        `json:"score_percent"`
	Severity      int        `json:"severity"`
	Position      Coordinate `json:"position"`
}

// Classification splits results into the anomaly table and the
// score-ranked table of everything else.
type Classification struct {
	Anomalies []models.ConsumerResult `json:"anomalies"`
	Normal    []models.ConsumerResult `json:"normal"`
}

// DedupeByEntity keeps, per consumer id, the record with the highest score.
// Absent scores count as 0 and ties keep the first record seen.
func DedupeByEntity(records []models.ConsumerResult) map[string]models.ConsumerResult {
	out := make(map[string]models.ConsumerResult, len(records))
	for _, r := range DedupeOrdered(records) {
		out[r.ConsumerID] = r
	}
	return out
}

// DedupeOrdered is DedupeByEntity returning the winners ordered by the
// position where each consumer id first appeared.
func DedupeOrdered(records []models.ConsumerResult) []models.ConsumerResult {
	index := make(map[string]int, len(records))
	out := make([]models.ConsumerResult, 0, len(records))
	for _, r := range records {
		i, seen := index[r.ConsumerID]
		if !seen {
			index[r.ConsumerID] = len(out)
			out = append(out, r)
			continue
		}
		if r.Score() > out[i].Score() {
			out[i] = r
		}
	}
	return out
}

// GeoMarkers yields one marker per deduplicated consumer that has in-range
// coordinates and a high or critical risk class. The sequence is computed
// on each iteration, so ranging over it twice yields the same markers.
func GeoMarkers(result *models.AnalysisResult) iter.Seq[Marker] {
	return func(yield func(Marker) bool) {
		if result == nil {
			return
		}
		for _, r := range DedupeOrdered(result.Results) {
			m, ok := markerFor(r)
			if !ok {
				continue
			}
			if !yield(m) {
				return
			}
		}
	}
}

func markerFor(r models.ConsumerResult) (Marker, bool) {
	if r.ConsumerID == "" {
		return Marker{}, false
	}
	pos, ok := position(r)
	if !ok {
		return Marker{}, false
	}
	severity := Severity(r.RiskClass)
	if severity == 0 {
		return Marker{}, false
	}
	return Marker{
		ConsumerID:    r.ConsumerID,
		TransformerID: r.TransformerID,
		RiskClass:     r.RiskClass,
		ScorePercent:  ScorePercent(r.AggregateRiskScore),
		Severity:      severity,
		Position:      pos,
	}, true
}

func position(r models.ConsumerResult) (Coordinate, bool) {
	if !r.Latitude.Valid || !r.Longitude.Valid {
		return Coordinate{}, false
	}
	lat, lng := r.Latitude.Value, r.Longitude.Value
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return Coordinate{}, false
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return Coordinate{}, false
	}
	return Coordinate{Lat: lat, Lng: lng}, true
}

// Severity maps a risk class to its marker tier: 2 for critical, 1 for
// high, 0 (no marker) otherwise.
func Severity(riskClass string) int {
	rc, _ := models.ParseRiskClass(riskClass)
	switch rc {
	case models.RiskCritical:
		return 2
	case models.RiskHigh:
		return 1
	}
	return 0
}

// Markers collects GeoMarkers into a slice.
func Markers(result *models.AnalysisResult) []Marker {
	return slices.Collect(GeoMarkers(result))
}

// MapCenter returns the position of the first marker, or DefaultCenter.
func MapCenter(markers iter.Seq[Marker]) Coordinate {
	for m := range markers {
		return m.Position
	}
	return DefaultCenter
}

// Classify returns the anomalies exactly as the scoring service flagged them
// and every other result ranked by descending score. Equal scores keep
// their original order.
func Classify(result *models.AnalysisResult) Classification {
	if result == nil {
		return Classification{Anomalies: []models.ConsumerResult{}, Normal: []models.ConsumerResult{}}
	}

	anomalyIDs := make(map[string]struct{}, len(result.Anomalies))
	for _, a := range result.Anomalies {
		anomalyIDs[a.ConsumerID] = struct{}{}
	}

	normal := make([]models.ConsumerResult, 0, len(result.Results))
	for _, r := range result.Results {
		if _, flagged := anomalyIDs[r.ConsumerID]; !flagged {
			normal = append(normal, r)
		}
	}
	slices.SortStableFunc(normal, func(a, b models.ConsumerResult) int {
		return cmp.Compare(b.Score(), a.Score())
	})

	anomalies := slices.Clone(result.Anomalies)
	if anomalies == nil {
		anomalies = []models.ConsumerResult{}
	}
	return Classification{Anomalies: anomalies, Normal: normal}
}

// ScorePercent renders a 0..1 score as a whole percentage, rounding halves
// up. Absent scores are 0.
func ScorePercent(score models.OptionalFloat) int {
	return int(math.Floor(score.Or(0)*100 + 0.5))
}
