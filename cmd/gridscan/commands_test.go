package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/microsoft/gridscan/internal/analyze"
	"github.com/microsoft/gridscan/internal/dataset"
	"github.com/microsoft/gridscan/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const serviceResponse = `{"status":"success","data":{
  "summary":{"grid_health_score":88.5,"critical_cases":1,"anomalies_detected":2,"total_loss_calculated":"1,234,500"},
  "results":[
    {"consumer_id":"C0001","transformer_id":"T001","aggregate_risk_score":0.91,"risk_class":"critical","latitude":28.61249,"longitude":77.20621},
    {"consumer_id":"C0002","transformer_id":"T002","aggregate_risk_score":0.74,"risk_class":"high","latitude":28.6267,"longitude":77.21717},
    {"consumer_id":"C0003","transformer_id":"T002","aggregate_risk_score":0.08,"risk_class":"normal","latitude":28.63,"longitude":77.22},
    {"consumer_id":"C0004","transformer_id":"T003","aggregate_risk_score":0.11,"risk_class":"Normal"}
  ],
  "anomalies":[
    {"consumer_id":"C0001","transformer_id":"T001","aggregate_risk_score":0.91,"risk_class":"critical"},
    {"consumer_id":"C0002","transformer_id":"T002","aggregate_risk_score":0.74,"risk_class":"high"}
  ],
  "transformers_at_risk":[{"transformer_id":"T001","anomalies_detected":1},{"transformer_id":"T002","anomalies_detected":1}]
}}`

// runCLI executes the root command with args and returns combined output.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// workspace creates a project directory with a .gridscan.yaml and makes it
// the working directory.
func workspace(t *testing.T, config string) string {
	t.Helper()
	dir := t.TempDir()
	if config != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".gridscan.yaml"), []byte(config), 0o644))
	}
	t.Chdir(dir)
	return dir
}

func writeResult(t *testing.T, dir string) string {
	t.Helper()
	p := filepath.Join(dir, "result.json")
	require.NoError(t, os.WriteFile(p, []byte(serviceResponse), 0o644))
	return p
}

func scoringService(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, _, err := r.FormFile("files"); err != nil {
			http.Error(w, "no file", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(serviceResponse)) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)
	t.Setenv(analyze.APIURLEnv, srv.URL)
	return srv
}

func TestSampleCommand(t *testing.T) {
	dir := workspace(t, "")

	out, err := runCLI(t, "sample")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "consumer_id,"))

	path := filepath.Join(dir, "sample.csv")
	out, err = runCLI(t, "sample", "--out", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)
	require.NoError(t, dataset.RequireColumns(path, dataset.RequiredColumns...))
}

func TestValidateCommand(t *testing.T) {
	dir := workspace(t, "user:\n  id: analyst-1\n")

	out, err := runCLI(t, "validate", writeResult(t, dir))
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")
	assert.NotContains(t, out, "  ! ")

	soft := filepath.Join(dir, "soft.json")
	require.NoError(t, os.WriteFile(soft, []byte(`{"summary":{},"results":[{"consumer_id":"C9","aggregate_risk_score":"n/a","risk_class":"normal"}]}`), 0o644))
	out, err = runCLI(t, "validate", soft)
	require.NoError(t, err)
	assert.Contains(t, out, "  ! /results/0 (C9): missing or unreadable aggregate_risk_score")

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"summary": {}}`), 0o644))
	out, err = runCLI(t, "validate", bad)
	var vErr *ValidationFailedError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, out, "results")
	assert.Equal(t, ExitFailed, exitCode(err))

	out, err = runCLI(t, "validate", "--config")
	require.NoError(t, err)
	assert.Contains(t, out, ".gridscan.yaml is valid")

	_, err = runCLI(t, "validate")
	require.Error(t, err)
}

func TestMarkersCommand(t *testing.T) {
	dir := workspace(t, "")
	input := writeResult(t, dir)

	out, err := runCLI(t, "markers", "--input", input)
	require.NoError(t, err)
	assert.Contains(t, out, "Map center: 28.6125, 77.2062")
	assert.Contains(t, out, "C0001")
	assert.Contains(t, out, "C0002")
	assert.NotContains(t, out, "C0003")

	out, err = runCLI(t, "markers", "--input", input, "--json")
	require.NoError(t, err)
	var body struct {
		Markers []map[string]any `json:"markers"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	assert.Len(t, body.Markers, 2)
}

func TestTransformersCommand(t *testing.T) {
	dir := workspace(t, "")
	input := writeResult(t, dir)

	out, err := runCLI(t, "transformers", "--input", input)
	require.NoError(t, err)
	assert.Contains(t, out, "T001")
	assert.Contains(t, out, "50%")
	assert.Contains(t, out, "Total anomalies: 2")
}

func TestExportCommand(t *testing.T) {
	dir := workspace(t, "export:\n  format: html\n  dir: reports\n")
	input := writeResult(t, dir)

	out, err := runCLI(t, "export", "--input", input)
	require.NoError(t, err)
	path := filepath.Join(dir, "reports", "electricity_theft_report.html")
	assert.Contains(t, out, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Detected Anomalies")
	assert.Contains(t, string(data), "Rs. 1234500")

	out, err = runCLI(t, "export", "--input", input, "--format", "md", "--stdout")
	require.NoError(t, err)
	assert.Contains(t, out, "## Normal Entries")
	assert.Contains(t, out, "C0003")
	assert.NotContains(t, out, "C0004", "only the exact lowercase class is exported as normal")
	assert.Contains(t, out, "Not Started")
}

func TestExportCommand_RequiresSource(t *testing.T) {
	workspace(t, "")

	_, err := runCLI(t, "export")
	require.Error(t, err)

	_, err = runCLI(t, "export", "--input", "a.json", "--history", "b")
	require.Error(t, err)

	_, err = runCLI(t, "export", "--input", "a.json", "--format", "pdf")
	require.Error(t, err)
}

func TestAnalyzeCommand_MissingFile(t *testing.T) {
	workspace(t, "")

	_, err := runCLI(t, "analyze")
	require.ErrorIs(t, err, analyze.ErrUploadMissing)
}

func TestAnalyzeCommand_MissingColumns(t *testing.T) {
	dir := workspace(t, "")
	csv := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(csv, []byte("consumer_id,transformer_id\nC1,T1\n"), 0o644))

	_, err := runCLI(t, "analyze", "--file", csv)
	var colErr *dataset.MissingColumnsError
	require.ErrorAs(t, err, &colErr)
	assert.Equal(t, []string{"energy_consumed"}, colErr.Missing)
}

func TestAnalyzeSaveAndHistory(t *testing.T) {
	for _, backend := range []string{"dir", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			dir := workspace(t, "user:\n  id: analyst-1\nhistory:\n  backend: "+backend+"\n  compress: true\njournal:\n  dir: journal\n")
			scoringService(t)

			csv := filepath.Join(dir, "feeder.csv")
			_, err := runCLI(t, "sample", "--out", csv)
			require.NoError(t, err)

			out, err := runCLI(t, "--journal", "analyze", "--file", csv, "--save", "--export", "txt", "--out", filepath.Join(dir, "out"))
			require.NoError(t, err)
			assert.Contains(t, out, "Result: feeder.csv")
			assert.Contains(t, out, "Est. Revenue Loss:  Rs. 1234500")
			assert.Contains(t, out, "C0001")
			assert.FileExists(t, filepath.Join(dir, "out", "electricity_theft_report.txt"))

			m := regexp.MustCompile(`Saved to history as (\S+)`).FindStringSubmatch(out)
			require.Len(t, m, 2, out)
			id := m[1]

			out, err = runCLI(t, "history", "list")
			require.NoError(t, err)
			assert.Contains(t, out, id)
			assert.Contains(t, out, "feeder.csv")
			assert.Contains(t, out, "storage-url")

			out, err = runCLI(t, "history", "list", "--verify")
			require.NoError(t, err)
			assert.Contains(t, out, "ok")
			assert.NotContains(t, out, "could not be loaded")

			out, err = runCLI(t, "history", "show", id, "--json")
			require.NoError(t, err)
			var shown models.AnalysisResult
			require.NoError(t, json.Unmarshal([]byte(out), &shown))
			assert.Len(t, shown.Results, 4)

			_, err = runCLI(t, "history", "show", id, "--user", "someone-else")
			require.ErrorIs(t, err, errRecordNotFound)

			out, err = runCLI(t, "export", "--history", id, "--stdout", "--format", "json")
			require.NoError(t, err)
			assert.Contains(t, out, "Summary Statistics")

			out, err = runCLI(t, "session", "list")
			require.NoError(t, err)
			assert.Contains(t, out, "-gridscan.jsonl")

			journals, err := filepath.Glob(filepath.Join(dir, "journal", "*-gridscan.jsonl"))
			require.NoError(t, err)
			require.Len(t, journals, 1)
			out, err = runCLI(t, "session", "view", journals[0])
			require.NoError(t, err)
			assert.Contains(t, out, "feeder.csv")
		})
	}
}

func TestAnalyzeCommand_ServiceError(t *testing.T) {
	dir := workspace(t, "")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	t.Setenv(analyze.APIURLEnv, srv.URL)

	csv := filepath.Join(dir, "feeder.csv")
	_, err := runCLI(t, "sample", "--out", csv)
	require.NoError(t, err)

	_, err = runCLI(t, "analyze", "--file", csv, "--save")
	var tErr *analyze.TransportError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, "model not loaded", err.Error())
	assert.NoDirExists(t, filepath.Join(dir, ".gridscan", "history"))
}

func TestHistoryList_Empty(t *testing.T) {
	workspace(t, "")

	out, err := runCLI(t, "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No history found.")
}
