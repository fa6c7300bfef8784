package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/microsoft/gridscan/internal/models"
	"github.com/stretchr/testify/require"
)

const validResultJSON = `{
  "summary": {"grid_health_score": 91.5, "critical_cases": 2, "anomalies_detected": 3, "total_loss_calculated": "1,234"},
  "results": [
    {"consumer_id": "C1", "transformer_id": "T1", "aggregate_risk_score": 0.91, "risk_class": "critical", "latitude": 28.6, "longitude": 77.2},
    {"consumer_id": "C2", "transformer_id": "T1", "aggregate_risk_score": "n/a", "risk_class": "normal", "latitude": "bad", "longitude": null}
  ],
  "anomalies": [{"consumer_id": "C1", "transformer_id": "T1", "risk_class": "critical"}],
  "transformers_at_risk": [{"transformer_id": "T1", "anomalies_detected": 1}]
}`

const invalidResultJSON = `{
  "summary": {},
  "results": [{"transformer_id": "T1"}],
  "anomalies": "none"
}`

const validConfigYAML = `api:
  url: http://localhost:8000
  timeout: 30
user:
  id: analyst-1
history:
  backend: sqlite
  sqlite_path: .gridscan/history.db
export:
  format: html
server:
  port: 3000
`

const invalidConfigYAML = `api:
  url: localhost
history:
  backend: firestore
server:
  port: 70000
colour: blue
`

func TestValidateResultBytes_Valid(t *testing.T) {
	errs := ValidateResultBytes([]byte(validResultJSON))
	require.Empty(t, errs, "soft-malformed numerics must not fail validation")
}

func TestValidateResultBytes_Envelope(t *testing.T) {
	errs := ValidateResultBytes([]byte(`{"status":"success","data":` + validResultJSON + `}`))
	require.Empty(t, errs)
}

func TestValidateResultBytes_Invalid(t *testing.T) {
	errs := ValidateResultBytes([]byte(invalidResultJSON))
	require.NotEmpty(t, errs)

	joined := joinErrs(errs)
	require.Contains(t, joined, "consumer_id")
	require.Contains(t, joined, "/anomalies")
}

func TestValidateResultBytes_NotJSON(t *testing.T) {
	errs := ValidateResultBytes([]byte("{"))
	require.Len(t, errs, 1)
	require.Contains(t, errs[0], "JSON parse error")
}

func TestValidateConfigBytes(t *testing.T) {
	require.Empty(t, ValidateConfigBytes([]byte(validConfigYAML)))
	require.Empty(t, ValidateConfigBytes(nil), "empty config is valid")

	errs := ValidateConfigBytes([]byte(invalidConfigYAML))
	joined := joinErrs(errs)
	require.Contains(t, joined, "/api/url")
	require.Contains(t, joined, "/history/backend")
	require.Contains(t, joined, "/server/port")
	require.Contains(t, joined, "colour")

	errs = ValidateConfigBytes([]byte("api: [unclosed"))
	require.Len(t, errs, 1)
	require.Contains(t, errs[0], "YAML parse error")
}

func TestValidateFiles(t *testing.T) {
	dir := t.TempDir()
	resultPath := filepath.Join(dir, "result.json")
	require.NoError(t, os.WriteFile(resultPath, []byte(validResultJSON), 0644))
	configPath := filepath.Join(dir, ".gridscan.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(invalidConfigYAML), 0644))

	errs, err := ValidateResultFile(resultPath)
	require.NoError(t, err)
	require.Empty(t, errs)

	errs, err = ValidateConfigFile(configPath)
	require.NoError(t, err)
	require.NotEmpty(t, errs)

	_, err = ValidateResultFile(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
}

func joinErrs(errs []string) string {
	result := ""
	for _, e := range errs {
		result += e + "\n"
	}
	return result
}

func TestWarnings(t *testing.T) {
	result, err := models.ParseResult([]byte(validResultJSON))
	require.NoError(t, err)

	warnings := Warnings(result)
	require.Len(t, warnings, 1)
	require.Equal(t, "/results/1 (C2): missing or unreadable aggregate_risk_score", warnings[0])

	result.Results[0].RiskClass = "severe"
	warnings = Warnings(result)
	require.Len(t, warnings, 2)
	require.Contains(t, warnings[0], `risk_class "severe"`)

	result.Summary.TotalLossCalculated = models.NewAmount("about 5 lakh")
	warnings = Warnings(result)
	require.Len(t, warnings, 3)
	require.Equal(t, `/summary/total_loss_calculated: unreadable amount "about 5 lakh"`, warnings[0])

	result.Summary.TotalLossCalculated = models.NewAmount("1,234,500.50")
	require.Len(t, Warnings(result), 2)

	require.Nil(t, Warnings(nil))
}
