// Package analyze uploads meter datasets to the scoring service.
package analyze

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/microsoft/gridscan/internal/models"
)

const (
	// DefaultBaseURL is used when neither configuration nor APIURLEnv names
	// the service.
	DefaultBaseURL = "http://localhost:8000"

	// APIURLEnv overrides the configured service URL.
	APIURLEnv = "GRIDSCAN_API_URL"

	analyzePath = "/api/v1/analyze"
	fileField   = "files"
)

// ErrUploadMissing is returned when no dataset was selected. No request is
// sent.
var ErrUploadMissing = errors.New("please select a file first")

// TransportError is a network failure or non-2xx response. Message is the
// response body when there was one.
type TransportError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return fmt.Sprintf("analyze request failed: %v", e.Err)
	default:
		return fmt.Sprintf("analyze request failed with status %d", e.StatusCode)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// UnexpectedStatusError is a 2xx response whose status field is not
// "success". Body is the raw response text.
type UnexpectedStatusError struct {
	Status string
	Body   string
}

func (e *UnexpectedStatusError) Error() string {
	return e.Body
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the scoring service.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// ResolveBaseURL picks the service URL: APIURLEnv, then configured, then
// DefaultBaseURL.
func ResolveBaseURL(configured string) string {
	if v := strings.TrimSpace(os.Getenv(APIURLEnv)); v != "" {
		return v
	}
	if configured != "" {
		return configured
	}
	return DefaultBaseURL
}

// New creates a Client. An empty BaseURL falls back to ResolveBaseURL.
func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	base := cfg.BaseURL
	if base == "" {
		base = ResolveBaseURL("")
	}
	return &Client{baseURL: strings.TrimSuffix(base, "/"), http: hc, logger: logger}
}

// BaseURL returns the service URL requests are sent to.
func (c *Client) BaseURL() string { return c.baseURL }

type envelope struct {
	Status string                 `json:"status"`
	Data   *models.AnalysisResult `json:"data"`
}

// AnalyzeFile uploads the dataset at path.
func (c *Client) AnalyzeFile(ctx context.Context, path string) (*models.AnalysisResult, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrUploadMissing
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset: %w", err)
	}
	defer f.Close() //nolint:errcheck
	return c.Analyze(ctx, filepath.Base(path), f)
}

// Analyze uploads a dataset read from r under filename.
func (c *Client) Analyze(ctx context.Context, filename string, r io.Reader) (*models.AnalysisResult, error) {
	if filename == "" || r == nil {
		return nil, ErrUploadMissing
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(fileField, filename)
	if err != nil {
		return nil, fmt.Errorf("building upload: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("reading dataset: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("building upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+analyzePath, &body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	c.logger.Debug("uploading dataset", "file", filename, "url", req.URL.String())
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{StatusCode: resp.StatusCode, Err: err}
	}
	c.logger.Debug("analyze response", "status", resp.StatusCode, "bytes", len(raw), "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = resp.Status
		}
		return nil, &TransportError{StatusCode: resp.StatusCode, Message: msg}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Status != "success" || env.Data == nil {
		return nil, &UnexpectedStatusError{Status: env.Status, Body: string(raw)}
	}
	return env.Data, nil
}
