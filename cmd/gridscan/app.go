package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/microsoft/gridscan/internal/analyze"
	"github.com/microsoft/gridscan/internal/history"
	"github.com/microsoft/gridscan/internal/projectconfig"
	"github.com/microsoft/gridscan/internal/session"
	"github.com/spf13/cobra"
)

var errRecordNotFound = history.ErrRecordNotFound

// app is the configured environment a command runs in.
type app struct {
	cfg    *projectconfig.ProjectConfig
	opts   *rootOptions
	logger *slog.Logger

	records history.RecordStore
	blob    *history.BlobStore
	closers []func() error
}

// loadApp reads .gridscan.yaml from the working directory upwards.
func loadApp(opts *rootOptions) (*app, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolving working directory: %w", err)
	}
	cfg, err := projectconfig.Load(wd)
	if err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &rootOptions{}
	}
	logger := slog.Default()
	if cfg.Path != "" {
		logger.Debug("loaded project config", "path", cfg.Path)
	}
	return &app{cfg: cfg, opts: opts, logger: logger}, nil
}

// Close releases stores and journals opened by the app.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *app) userID() string {
	if a.opts.user != "" {
		return a.opts.user
	}
	return a.cfg.User.ID
}

// analyzer builds the scoring service client. GRIDSCAN_API_URL wins over
// the configured URL.
func (a *app) analyzer() *analyze.Client {
	return analyze.New(analyze.Config{
		BaseURL: analyze.ResolveBaseURL(a.cfg.API.URL),
		Timeout: a.cfg.API.TimeoutDuration(),
		Logger:  a.logger,
	})
}

// withTimeout bounds a network operation by the configured API timeout.
func (a *app) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d := a.cfg.API.TimeoutDuration(); d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

// store opens the configured history record store once per app.
func (a *app) store() (history.RecordStore, error) {
	if a.records != nil {
		return a.records, nil
	}
	h := a.cfg.History
	switch h.Backend {
	case projectconfig.BackendSQLite:
		s, err := history.OpenSQLStore(a.cfg.Resolve(h.SQLitePath))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		a.logger.Debug("using sqlite history store", "path", s.Path())
		a.records = s
	case projectconfig.BackendDir, "":
		dir := a.cfg.Resolve(h.Dir)
		a.logger.Debug("using directory history store", "dir", dir)
		a.records = history.NewDirStore(dir)
	default:
		return nil, fmt.Errorf("unknown history backend %q", h.Backend)
	}
	return a.records, nil
}

// blobStore connects to Azure Blob Storage when an account is configured.
func (a *app) blobStore() (*history.BlobStore, error) {
	if a.cfg.History.BlobAccountURL == "" {
		return nil, nil
	}
	if a.blob == nil {
		b, err := history.NewBlobStore(a.cfg.History.BlobAccountURL, a.cfg.History.BlobContainer)
		if err != nil {
			return nil, err
		}
		a.blob = b
	}
	return a.blob, nil
}

// fetcher dispatches storage URLs, adding blob access when configured.
func (a *app) fetcher() (history.PayloadFetcher, error) {
	f := history.DefaultFetchers()
	b, err := a.blobStore()
	if err != nil {
		return nil, err
	}
	if b != nil {
		f.Blob = b
	}
	return f, nil
}

// resolver wires the record store and payload fetchers.
func (a *app) resolver() (*history.Resolver, error) {
	store, err := a.store()
	if err != nil {
		return nil, err
	}
	f, err := a.fetcher()
	if err != nil {
		return nil, err
	}
	return history.NewResolver(store, f, a.logger), nil
}

// archiver writes new payloads to blob storage when configured and to the
// local payload directory otherwise.
func (a *app) archiver() (*history.Archiver, error) {
	store, err := a.store()
	if err != nil {
		return nil, err
	}
	b, err := a.blobStore()
	if err != nil {
		return nil, err
	}
	var payloads history.PayloadWriter = history.DirPayloads{
		Dir:      a.cfg.Resolve(a.cfg.History.PayloadDir),
		Compress: a.cfg.History.Compress != nil && *a.cfg.History.Compress,
	}
	if b != nil {
		payloads = b
	}
	return &history.Archiver{Store: store, Payloads: payloads}, nil
}

// session creates the command's session. With --journal, events are
// appended to a new file in the journal directory.
func (a *app) session() (*session.Session, error) {
	var journal session.Journal = session.NopJournal{}
	if a.opts.journal {
		j, err := session.OpenFileJournal(session.DefaultJournalPath(a.cfg.Resolve(a.cfg.Journal.Dir)))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, j.Close)
		a.logger.Debug("journaling session", "path", j.Path())
		journal = j
	}
	s := session.New(journal, a.logger)
	s.Start(a.userID(), analyze.ResolveBaseURL(a.cfg.API.URL))
	return s, nil
}

// closeApp is deferred by commands; close errors are only logged.
func closeApp(cmd *cobra.Command, a *app) {
	if err := a.Close(); err != nil {
		a.logger.Warn("failed to close resources", "command", cmd.Name(), "error", err)
	}
}
