package derive

import "github.com/microsoft/gridscan/internal/models"

// TransformerSlice is one transformer's entry in the anomaly distribution
// and per-transformer bar charts.
type TransformerSlice struct {
	TransformerID string  `json:"transformer_id"`
	Anomalies     int     `json:"anomalies_detected"`
	Share         float64 `json:"share"`
	SharePercent  int     `json:"share_percent"`
}

// TransformerChart is the aggregate view behind the transformer stats
// charts. Slices keep the order the scoring service reported.
type TransformerChart struct {
	Total  int                `json:"total"`
	Slices []TransformerSlice `json:"slices"`
}

// TransformerStats computes each transformer's share of the flagged
// anomalies. A zero total leaves every share at 0.
func TransformerStats(stats []models.TransformerStat) TransformerChart {
	chart := TransformerChart{Slices: make([]TransformerSlice, 0, len(stats))}
	for _, s := range stats {
		if s.AnomaliesDetected > 0 {
			chart.Total += s.AnomaliesDetected
		}
	}
	for _, s := range stats {
		slice := TransformerSlice{TransformerID: s.TransformerID, Anomalies: s.AnomaliesDetected}
		if chart.Total > 0 && s.AnomaliesDetected > 0 {
			slice.Share = float64(s.AnomaliesDetected) / float64(chart.Total)
			slice.SharePercent = ScorePercent(models.Float(slice.Share))
		}
		chart.Slices = append(chart.Slices, slice)
	}
	return chart
}
