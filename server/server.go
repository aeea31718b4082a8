package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/strata-site/strata/config"
	"github.com/strata-site/strata/site"
)

// Server serves the generated output directory and the registered API
// routes. API patterns are consulted first; everything else falls through
// to the static assets, emulating the CDN the build deploys to.
type Server struct {
	cfg          *config.Config
	svc          *site.Service
	dispatcher   *Dispatcher
	logger       *slog.Logger
	serverHeader string
}

// New constructs a server instance with the default API routes registered.
func New(cfg *config.Config, svc *site.Service, logger *slog.Logger, serverHeader string) (*Server, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	dispatcher := NewDispatcher(cfg.Env(), logger, cfg.HandlerTimeout)
	srv := &Server{
		cfg:          cfg,
		svc:          svc,
		dispatcher:   dispatcher,
		logger:       logger,
		serverHeader: strings.TrimSpace(serverHeader),
	}
	if err := srv.registerRoutes(); err != nil {
		return nil, err
	}
	return srv, nil
}

// Dispatcher exposes the route table so callers can register additional
// handlers before Start.
func (s *Server) Dispatcher() *Dispatcher { return s.dispatcher }

// Start launches the HTTP server and blocks until the context is cancelled
// or serving fails.
func (s *Server) Start(ctx context.Context) error {
	listener, err := s.listen(s.cfg.Server.Listen)
	if err != nil {
		return err
	}

	server := &http.Server{
		Handler:      s.withServerHeader(s.logRequests(s)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(ctxShutdown)
		close(shutdownDone)
	}()

	s.logger.Info("listening", "address", s.cfg.Server.Listen, "tls", s.cfg.Server.EnableTLS)

	var serveErr error
	if s.cfg.Server.EnableTLS {
		serveErr = server.ServeTLS(listener, s.cfg.Server.TLSCert, s.cfg.Server.TLSKey)
	} else {
		serveErr = server.Serve(listener)
	}
	if errors.Is(serveErr, http.ErrServerClosed) {
		<-shutdownDone
		return nil
	}
	return serveErr
}

// ServeHTTP routes API-matched paths through the dispatcher and serves
// everything else from the output directory.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.dispatcher.Matches(r.URL.Path) {
		s.dispatcher.ServeHTTP(w, r)
		return
	}
	s.serveStatic(w, r)
}

func (s *Server) serveStatic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	// Assets with a non-HTML extension are served directly from the
	// output tree.
	if target, ok := s.assetPath(r.URL.Path); ok {
		http.ServeFile(w, r, target)
		return
	}

	target := s.svc.StaticDocumentPath(r.URL.Path)
	if info, err := os.Stat(target); err == nil && !info.IsDir() {
		http.ServeFile(w, r, target)
		return
	}
	s.serveNotFound(w, r)
}

func (s *Server) serveNotFound(w http.ResponseWriter, r *http.Request) {
	notFound := s.svc.NotFoundDocumentPath()
	data, err := os.ReadFile(notFound)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	if r.Method != http.MethodHead {
		_, _ = w.Write(data)
	}
}

func (s *Server) assetPath(requestPath string) (string, bool) {
	clean := path.Clean(cleanRequestPath(requestPath))
	if clean == "/" || clean == "." {
		return "", false
	}
	ext := strings.ToLower(path.Ext(clean))
	if ext == "" || ext == ".html" {
		return "", false
	}
	target := filepath.Join(s.cfg.OutputDir, filepath.FromSlash(strings.TrimPrefix(clean, "/")))
	if !isWithin(s.cfg.OutputDir, target) {
		return "", false
	}
	info, err := os.Stat(target)
	if err != nil || info.IsDir() {
		return "", false
	}
	return target, true
}

func isWithin(base, target string) bool {
	baseAbs, err := filepath.Abs(base)
	if err != nil {
		return false
	}
	targetAbs, err := filepath.Abs(target)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(baseAbs, targetAbs)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	return rel != ".." && !strings.HasPrefix(rel, "../")
}

func (s *Server) listen(address string) (net.Listener, error) {
	if after, ok := strings.CutPrefix(address, "unix:"); ok {
		_ = os.Remove(after)
		return net.Listen("unix", after)
	}
	return net.Listen("tcp", address)
}

func (s *Server) withServerHeader(next http.Handler) http.Handler {
	if s.serverHeader == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", s.serverHeader)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		s.logger.Info("http", "method", r.Method, "path", r.URL.Path, "status", rw.status, "duration", time.Since(start))
	})
}

func cleanRequestPath(p string) string {
	if p == "" || !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(status int) {
	sw.status = status
	sw.ResponseWriter.WriteHeader(status)
}
