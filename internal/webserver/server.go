// Package webserver serves the gridscan dashboard page and its session API
// on the loopback interface.
package webserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/microsoft/gridscan/internal/webapi"
)

// DefaultPort is used when Config.Port is zero.
const DefaultPort = 3000

const shutdownTimeout = 5 * time.Second

// Config holds the dashboard server configuration.
type Config struct {
	Port           int
	API            webapi.Deps
	AllowedOrigins []string
	NoBrowser      bool
	Logger         *slog.Logger

	// Out receives the startup banner. Defaults to os.Stdout.
	Out io.Writer
}

// Server is the dashboard HTTP server.
type Server struct {
	cfg     Config
	handler http.Handler
	logger  *slog.Logger
}

// New builds the dashboard server. cfg.API.Session is required.
func New(cfg Config) (*Server, error) {
	if cfg.API.Session == nil {
		return nil, errors.New("webserver: a session is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.API.Logger == nil {
		cfg.API.Logger = cfg.Logger
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}

	mux := http.NewServeMux()
	if err := registerRoutes(mux, cfg); err != nil {
		return nil, err
	}
	handler := webapi.CORSMiddleware(mux, cfg.AllowedOrigins...)
	return &Server{cfg: cfg, handler: logRequests(cfg.Logger, handler), logger: cfg.Logger}, nil
}

// ListenAndServe binds 127.0.0.1 on the configured port and serves until
// ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("dashboard port %d: %w", s.cfg.Port, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
// The browser is opened once the listener is ready unless NoBrowser is set.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	url := "http://" + ln.Addr().String()
	if tcp, ok := ln.Addr().(*net.TCPAddr); ok && tcp.IP.IsLoopback() {
		url = fmt.Sprintf("http://localhost:%d", tcp.Port)
	}
	s.logger.Info("dashboard listening", "address", ln.Addr().String())
	fmt.Fprintf(s.cfg.Out, "gridscan dashboard: %s\n", url) //nolint:errcheck

	if !s.cfg.NoBrowser {
		if err := openBrowser(url); err != nil {
			s.logger.Debug("failed to open browser", "error", err)
		}
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("dashboard server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down dashboard")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("dashboard shutdown: %w", err)
	}
	return nil
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// logRequests logs every request at debug level.
func logRequests(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug("dashboard request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("no browser launcher for %s", runtime.GOOS)
	}
	return cmd.Start()
}
