package projectconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNew_ReturnsAllDefaults(t *testing.T) {
	cfg := New()

	// API
	assertEqual(t, "API.URL", "http://localhost:8000", cfg.API.URL)
	assertEqualInt(t, "API.Timeout", 120, cfg.API.Timeout)

	// User
	assertEqual(t, "User.ID", "local", cfg.User.ID)

	// History
	assertEqual(t, "History.Backend", "dir", cfg.History.Backend)
	assertEqual(t, "History.Dir", ".gridscan/history", cfg.History.Dir)
	assertEqual(t, "History.SQLitePath", ".gridscan/history.db", cfg.History.SQLitePath)
	assertEqual(t, "History.PayloadDir", ".gridscan/payloads", cfg.History.PayloadDir)
	assertBoolPtr(t, "History.Compress", false, cfg.History.Compress)
	assertEqual(t, "History.BlobAccountURL", "", cfg.History.BlobAccountURL)
	assertEqual(t, "History.BlobContainer", "analysis-results", cfg.History.BlobContainer)

	// Export
	assertEqual(t, "Export.Format", "md", cfg.Export.Format)
	assertEqual(t, "Export.Dir", ".", cfg.Export.Dir)

	// Server
	assertEqualInt(t, "Server.Port", 3000, cfg.Server.Port)

	// Journal
	assertEqual(t, "Journal.Dir", ".gridscan/journal", cfg.Journal.Dir)

	assertEqual(t, "Path", "", cfg.Path)
}

func TestLoad_FullConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".gridscan.yaml", `
api:
  url: https://scoring.example.com
  timeout: 30
user:
  id: analyst-7
history:
  backend: sqlite
  dir: hist
  sqlite_path: /var/lib/gridscan/history.db
  payload_dir: payloads
  compress: true
  blob_account_url: https://acct.blob.core.windows.net
  blob_container: results
export:
  format: html
  dir: reports
server:
  port: 8080
journal:
  dir: logs
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	assertEqual(t, "API.URL", "https://scoring.example.com", cfg.API.URL)
	assertEqualInt(t, "API.Timeout", 30, cfg.API.Timeout)
	if got := cfg.API.TimeoutDuration(); got != 30*time.Second {
		t.Errorf("TimeoutDuration = %v, want 30s", got)
	}
	assertEqual(t, "User.ID", "analyst-7", cfg.User.ID)
	assertEqual(t, "History.Backend", "sqlite", cfg.History.Backend)
	assertEqual(t, "History.Dir", "hist", cfg.History.Dir)
	assertEqual(t, "History.SQLitePath", "/var/lib/gridscan/history.db", cfg.History.SQLitePath)
	assertEqual(t, "History.PayloadDir", "payloads", cfg.History.PayloadDir)
	assertBoolPtr(t, "History.Compress", true, cfg.History.Compress)
	assertEqual(t, "History.BlobAccountURL", "https://acct.blob.core.windows.net", cfg.History.BlobAccountURL)
	assertEqual(t, "History.BlobContainer", "results", cfg.History.BlobContainer)
	assertEqual(t, "Export.Format", "html", cfg.Export.Format)
	assertEqual(t, "Export.Dir", "reports", cfg.Export.Dir)
	assertEqualInt(t, "Server.Port", 8080, cfg.Server.Port)
	assertEqual(t, "Journal.Dir", "logs", cfg.Journal.Dir)
	assertEqual(t, "Path", filepath.Join(dir, ".gridscan.yaml"), cfg.Path)
}

func TestLoad_PartialConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".gridscan.yaml", `
user:
  id: analyst-1
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	assertEqual(t, "User.ID", "analyst-1", cfg.User.ID)
	assertEqual(t, "API.URL", DefaultAPIURL, cfg.API.URL)
	assertEqual(t, "History.Backend", DefaultHistoryBackend, cfg.History.Backend)
	assertEqualInt(t, "Server.Port", DefaultServerPort, cfg.Server.Port)
}

func TestLoad_MissingFile_ReturnsDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load should not error on missing file: %v", err)
	}

	defaults := New()
	assertEqual(t, "API.URL", defaults.API.URL, cfg.API.URL)
	assertEqual(t, "User.ID", defaults.User.ID, cfg.User.ID)
	assertEqual(t, "Path", "", cfg.Path)

	if _, err := Find(dir); !os.IsNotExist(err) {
		t.Errorf("Find on empty tree = %v, want not-exist", err)
	}
}

func TestLoad_InvalidYAML_ReturnsError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".gridscan.yaml", `
api:
  url: [invalid
`)

	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for invalid YAML, got nil")
	}
}

func TestLoad_UnknownBackend(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".gridscan.yaml", `
history:
  backend: firestore
`)

	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for unknown backend, got nil")
	}
}

func TestLoad_WalksUpDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gridscan.yaml", `
server:
  port: 9999
`)

	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(nested)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	assertEqualInt(t, "Server.Port", 9999, cfg.Server.Port)

	found, err := Find(nested)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	assertEqual(t, "Find", filepath.Join(root, ".gridscan.yaml"), found)
}

func TestResolve(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gridscan.yaml", "history:\n  dir: hist\n")

	cfg, err := Load(filepath.Join(root))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	assertEqual(t, "relative", filepath.Join(root, "hist"), cfg.Resolve(cfg.History.Dir))

	abs := filepath.Join(root, "elsewhere")
	assertEqual(t, "absolute", abs, cfg.Resolve(abs))
	assertEqual(t, "empty", "", cfg.Resolve(""))
	assertEqual(t, "defaults", "hist", New().Resolve("hist"))
}

func TestBoolPointerFields(t *testing.T) {
	t.Run("explicit false overrides", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, ".gridscan.yaml", `
history:
  compress: false
`)
		cfg, err := Load(dir)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		assertBoolPtr(t, "History.Compress", false, cfg.History.Compress)
	})

	t.Run("omitted keeps default", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, ".gridscan.yaml", `
export:
  format: txt
`)
		cfg, err := Load(dir)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		assertBoolPtr(t, "History.Compress", false, cfg.History.Compress)
	})
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func assertEqual(t *testing.T, field, want, got string) {
	t.Helper()
	if got != want {
		t.Errorf("%s = %q, want %q", field, got, want)
	}
}

func assertEqualInt(t *testing.T, field string, want, got int) {
	t.Helper()
	if got != want {
		t.Errorf("%s = %d, want %d", field, got, want)
	}
}

func assertBoolPtr(t *testing.T, field string, want bool, got *bool) {
	t.Helper()
	if got == nil {
		t.Errorf("%s is nil, want *%v", field, want)
		return
	}
	if *got != want {
		t.Errorf("%s = %v, want %v", field, *got, want)
	}
}
