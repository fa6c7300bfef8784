package history

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// PayloadFetcher reads the payload a storage URL points at.
type PayloadFetcher interface {
	Fetch(ctx context.Context, storageURL string) (io.ReadCloser, error)
}

// Fetchers dispatches a storage URL to the fetcher for its scheme. Azure
// blob URLs go to Blob when it is configured; other http(s) URLs go to HTTP.
type Fetchers struct {
	HTTP PayloadFetcher
	Blob PayloadFetcher
	File PayloadFetcher
}

// DefaultFetchers returns HTTP and file fetchers. Blob access needs
// credentials, so it is left for the caller to configure.
func DefaultFetchers() *Fetchers {
	return &Fetchers{
		HTTP: &HTTPFetcher{},
		File: FileFetcher{},
	}
}

func (f *Fetchers) Fetch(ctx context.Context, storageURL string) (io.ReadCloser, error) {
	u, err := url.Parse(storageURL)
	if err != nil {
		return nil, &FetchError{URL: storageURL, Err: err}
	}

	var next PayloadFetcher
	switch strings.ToLower(u.Scheme) {
	case "file":
		next = f.File
	case blobScheme:
		next = f.Blob
	case "http", "https":
		if f.Blob != nil && isBlobHost(u.Host) {
			next = f.Blob
		} else {
			next = f.HTTP
		}
	}
	if next == nil {
		return nil, &FetchError{URL: storageURL, Err: fmt.Errorf("no fetcher configured for scheme %q", u.Scheme)}
	}
	return next.Fetch(ctx, storageURL)
}

// HTTPFetcher fetches payloads with plain GET requests.
type HTTPFetcher struct {
	Client *http.Client
}

func (f *HTTPFetcher) Fetch(ctx context.Context, storageURL string) (io.ReadCloser, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, storageURL, nil)
	if err != nil {
		return nil, &FetchError{URL: storageURL, Err: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: storageURL, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close() //nolint:errcheck
		return nil, &FetchError{URL: storageURL, StatusCode: resp.StatusCode}
	}
	return maybeGunzip(storageURL, req.URL.Path, resp.Body)
}

// FileFetcher reads file:// payloads from the local filesystem.
type FileFetcher struct{}

func (FileFetcher) Fetch(_ context.Context, storageURL string) (io.ReadCloser, error) {
	u, err := url.Parse(storageURL)
	if err != nil {
		return nil, &FetchError{URL: storageURL, Err: err}
	}
	p := u.Path
	if p == "" {
		p = u.Opaque
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, &FetchError{URL: storageURL, Err: err}
	}
	return maybeGunzip(storageURL, p, f)
}

// maybeGunzip wraps payloads stored with a .gz suffix in a decompressor.
func maybeGunzip(storageURL, name string, rc io.ReadCloser) (io.ReadCloser, error) {
	if path.Ext(name) != ".gz" {
		return rc, nil
	}
	zr, err := gzip.NewReader(rc)
	if err != nil {
		rc.Close() //nolint:errcheck
		return nil, &FetchError{URL: storageURL, Err: err}
	}
	return &gzipReadCloser{Reader: zr, under: rc}, nil
}

type gzipReadCloser struct {
	*gzip.Reader
	under io.Closer
}

func (g *gzipReadCloser) Close() error {
	zerr := g.Reader.Close()
	if err := g.under.Close(); err != nil {
		return err
	}
	return zerr
}
