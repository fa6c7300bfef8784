package models

import "strings"

// RiskClass is the categorical severity label assigned by the scoring service.
type RiskClass string

const (
	RiskNormal   RiskClass = "normal"
	RiskMild     RiskClass = "mild"
	RiskHigh     RiskClass = "high"
	RiskCritical RiskClass = "critical"
)

// ParseRiskClass folds case and surrounding whitespace. The second return
// value is false for labels outside the known set.
func ParseRiskClass(s string) (RiskClass, bool) {
	rc := RiskClass(strings.ToLower(strings.TrimSpace(s)))
	switch rc {
	case RiskNormal, RiskMild, RiskHigh, RiskCritical:
		return rc, true
	}
	return "", false
}

// AnalysisResult is the complete output of one scoring run. It is treated
// as immutable once received.
type AnalysisResult struct {
	Summary            Summary           `json:"summary"`
	Results            []ConsumerResult  `json:"results"`
	Anomalies          []ConsumerResult  `json:"anomalies"`
	TransformersAtRisk []TransformerStat `json:"transformers_at_risk"`
}

// Summary holds the headline metrics of a run.
type Summary struct {
	GridHealthScore     float64 `json:"grid_health_score"`
	CriticalCases       int     `json:"critical_cases"`
	AnomaliesDetected   int     `json:"anomalies_detected"`
	TotalLossCalculated Amount  `json:"total_loss_calculated"`
	TotalConsumers      int     `json:"total_consumers,omitempty"`
}

// ConsumerResult is the per-consumer scoring record.
type ConsumerResult struct {
	ConsumerID         string        `json:"consumer_id"`
	TransformerID      string        `json:"transformer_id"`
	AggregateRiskScore OptionalFloat `json:"aggregate_risk_score"`
	RiskClass          string        `json:"risk_class"`
	Latitude           OptionalFloat `json:"latitude"`
	Longitude          OptionalFloat `json:"longitude"`
	InspectionFlag     *bool         `json:"inspection_flag,omitempty"`
}

// Score returns the aggregate risk score, treating an absent or malformed
// value as 0.
func (c ConsumerResult) Score() float64 {
	return c.AggregateRiskScore.Or(0)
}

// Class returns the case-folded risk class.
func (c ConsumerResult) Class() (RiskClass, bool) {
	return ParseRiskClass(c.RiskClass)
}

// TransformerStat is the per-transformer anomaly count.
type TransformerStat struct {
	TransformerID     string `json:"transformer_id"`
	AnomaliesDetected int    `json:"anomalies_detected"`
}
