// Package projectconfig provides the ProjectConfig struct and loader for
// .gridscan.yaml project-level configuration files.
package projectconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the project configuration file looked up by Load.
const FileName = ".gridscan.yaml"

// Default values for project configuration. New() references them and no
// other code should duplicate them.
const (
	DefaultAPIURL     = "http://localhost:8000"
	DefaultAPITimeout = 120

	DefaultUserID = "local"

	DefaultHistoryBackend = BackendDir
	DefaultHistoryDir     = ".gridscan/history"
	DefaultSQLitePath     = ".gridscan/history.db"
	DefaultPayloadDir     = ".gridscan/payloads"
	DefaultBlobContainer  = "analysis-results"

	DefaultExportFormat = "md"
	DefaultExportDir    = "."

	DefaultServerPort = 3000

	DefaultJournalDir = ".gridscan/journal"
)

// History backends.
const (
	BackendDir    = "dir"
	BackendSQLite = "sqlite"
)

// APIConfig holds scoring service settings.
type APIConfig struct {
	URL     string `yaml:"url,omitempty"`
	Timeout int    `yaml:"timeout,omitempty"`
}

// TimeoutDuration returns Timeout as a duration.
func (a APIConfig) TimeoutDuration() time.Duration {
	return time.Duration(a.Timeout) * time.Second
}

// UserConfig identifies whose history is listed and written.
type UserConfig struct {
	ID string `yaml:"id,omitempty"`
}

// HistoryConfig holds history store settings.
type HistoryConfig struct {
	Backend    string `yaml:"backend,omitempty"`
	Dir        string `yaml:"dir,omitempty"`
	SQLitePath string `yaml:"sqlite_path,omitempty"`
	PayloadDir string `yaml:"payload_dir,omitempty"`
	Compress   *bool  `yaml:"compress,omitempty"`

	// BlobAccountURL enables Azure Blob payloads, e.g.
	// https://<account>.blob.core.windows.net
	BlobAccountURL string `yaml:"blob_account_url,omitempty"`
	BlobContainer  string `yaml:"blob_container,omitempty"`
}

// ExportConfig holds report export defaults.
type ExportConfig struct {
	Format string `yaml:"format,omitempty"`
	Dir    string `yaml:"dir,omitempty"`
}

// ServerConfig holds dashboard server settings.
type ServerConfig struct {
	Port int `yaml:"port,omitempty"`
}

// JournalConfig holds session journal settings.
type JournalConfig struct {
	Dir string `yaml:"dir,omitempty"`
}

// ProjectConfig is the top-level configuration loaded from .gridscan.yaml.
type ProjectConfig struct {
	API     APIConfig     `yaml:"api,omitempty"`
	User    UserConfig    `yaml:"user,omitempty"`
	History HistoryConfig `yaml:"history,omitempty"`
	Export  ExportConfig  `yaml:"export,omitempty"`
	Server  ServerConfig  `yaml:"server,omitempty"`
	Journal JournalConfig `yaml:"journal,omitempty"`

	// Path is the file the configuration was read from, empty for defaults.
	Path string `yaml:"-"`
}

// New returns a ProjectConfig with all hard-coded defaults populated.
func New() *ProjectConfig {
	return &ProjectConfig{
		API: APIConfig{
			URL:     DefaultAPIURL,
			Timeout: DefaultAPITimeout,
		},
		User: UserConfig{
			ID: DefaultUserID,
		},
		History: HistoryConfig{
			Backend:       DefaultHistoryBackend,
			Dir:           DefaultHistoryDir,
			SQLitePath:    DefaultSQLitePath,
			PayloadDir:    DefaultPayloadDir,
			Compress:      boolPtr(false),
			BlobContainer: DefaultBlobContainer,
		},
		Export: ExportConfig{
			Format: DefaultExportFormat,
			Dir:    DefaultExportDir,
		},
		Server: ServerConfig{
			Port: DefaultServerPort,
		},
		Journal: JournalConfig{
			Dir: DefaultJournalDir,
		},
	}
}

// Load finds .gridscan.yaml by walking up from startDir (max 10 levels),
// unmarshals it, and fills in missing fields with defaults.
// If no config file is found, returns defaults with a nil error.
// Real I/O errors (e.g. permission denied) are returned to the caller.
func Load(startDir string) (*ProjectConfig, error) {
	cfg := New()

	path, data, err := findConfigFile(startDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("loading %s: %w", FileName, err)
	}

	var fileCfg ProjectConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if b := fileCfg.History.Backend; b != "" && b != BackendDir && b != BackendSQLite {
		return nil, fmt.Errorf("parsing %s: unknown history backend %q", path, b)
	}

	mergeConfig(cfg, &fileCfg)
	cfg.Path = path
	return cfg, nil
}

// Find returns the path of the nearest .gridscan.yaml above startDir.
func Find(startDir string) (string, error) {
	path, _, err := findConfigFile(startDir)
	return path, err
}

// findConfigFile walks up from dir looking for .gridscan.yaml (max 10 levels).
// Returns os.ErrNotExist if no config file is found.
func findConfigFile(dir string) (string, []byte, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", nil, fmt.Errorf("resolving path %q: %w", dir, err)
	}
	dir = absDir

	for i := 0; i < 10; i++ {
		p := filepath.Join(dir, FileName)
		data, err := os.ReadFile(p)
		if err == nil {
			return p, data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", nil, fmt.Errorf("reading %q: %w", p, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached filesystem root
		}
		dir = parent
	}
	return "", nil, os.ErrNotExist
}

// Resolve makes a relative path from the config relative to the directory
// holding the config file. Absolute paths and default configs pass through.
func (c *ProjectConfig) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.Path == "" {
		return p
	}
	return filepath.Join(filepath.Dir(c.Path), p)
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *ProjectConfig) {
	// API
	if src.API.URL != "" {
		dst.API.URL = src.API.URL
	}
	if src.API.Timeout != 0 {
		dst.API.Timeout = src.API.Timeout
	}

	// User
	if src.User.ID != "" {
		dst.User.ID = src.User.ID
	}

	// History
	if src.History.Backend != "" {
		dst.History.Backend = src.History.Backend
	}
	if src.History.Dir != "" {
		dst.History.Dir = src.History.Dir
	}
	if src.History.SQLitePath != "" {
		dst.History.SQLitePath = src.History.SQLitePath
	}
	if src.History.PayloadDir != "" {
		dst.History.PayloadDir = src.History.PayloadDir
	}
	if src.History.Compress != nil {
		dst.History.Compress = src.History.Compress
	}
	if src.History.BlobAccountURL != "" {
		dst.History.BlobAccountURL = src.History.BlobAccountURL
	}
	if src.History.BlobContainer != "" {
		dst.History.BlobContainer = src.History.BlobContainer
	}

	// Export
	if src.Export.Format != "" {
		dst.Export.Format = src.Export.Format
	}
	if src.Export.Dir != "" {
		dst.Export.Dir = src.Export.Dir
	}

	// Server
	if src.Server.Port != 0 {
		dst.Server.Port = src.Server.Port
	}

	// Journal
	if src.Journal.Dir != "" {
		dst.Journal.Dir = src.Journal.Dir
	}
}

func boolPtr(b bool) *bool {
	return &b
}
