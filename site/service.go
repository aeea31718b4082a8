package site

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/strata-site/strata/config"
	"github.com/strata-site/strata/content"
	"github.com/strata-site/strata/fsutil"
	"github.com/strata-site/strata/gitinfo"
	"github.com/strata-site/strata/renderer"
	"github.com/strata-site/strata/templatex"
)

// Service orchestrates page enumeration, rendering, and persistence.
type Service struct {
	cfg       *config.Config
	store     *content.Store
	templates *templatex.Engine
	renderer  *renderer.Renderer
	git       *gitinfo.Repository
	logger    *slog.Logger

	buildMu sync.Mutex
}

// NewService constructs a Service instance. git may be nil.
func NewService(cfg *config.Config, store *content.Store, templates *templatex.Engine, rend *renderer.Renderer, git *gitinfo.Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:       cfg,
		store:     store,
		templates: templates,
		renderer:  rend,
		git:       git,
		logger:    logger,
	}
}

// Store exposes the content source for request-time handlers.
func (s *Service) Store() *content.Store { return s.store }

// RenderPreview renders markdown content without persisting it.
func (s *Service) RenderPreview(src []byte) (*renderer.RenderResult, error) {
	return s.renderer.Render(src)
}

// BuildStatic materializes the whole site into the output directory. The
// build runs against a temporary directory and is activated with an atomic
// rename, so a failed build never publishes partial output.
func (s *Service) BuildStatic(ctx context.Context) error {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	finalDir := s.cfg.OutputDir
	parent := filepath.Dir(finalDir)
	if parent == "" {
		parent = "."
	}
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("ensure output parent: %w", err)
	}

	tempDir, err := os.MkdirTemp(parent, ".__build-")
	if err != nil {
		return fmt.Errorf("create temp output dir: %w", err)
	}
	cleanTemp := true
	defer func() {
		if cleanTemp {
			_ = os.RemoveAll(tempDir)
		}
	}()

	pages, err := Enumerate(s.cfg.Routes, s.store)
	if err != nil {
		return err
	}

	if err := s.writePages(tempDir, pages); err != nil {
		return err
	}
	if err := s.writeListings(ctx, tempDir); err != nil {
		return err
	}
	if err := s.writeHomePage(tempDir); err != nil {
		return err
	}
	if err := s.writeNotFoundPage(tempDir); err != nil {
		return err
	}
	if err := s.writeSitemap(tempDir, pages); err != nil {
		return err
	}
	if err := s.writeFeed(tempDir, pages); err != nil {
		return err
	}

	if s.cfg.StaticDir != "" {
		if _, err := os.Stat(s.cfg.StaticDir); err == nil {
			if err := fsutil.CopyTree(s.cfg.StaticDir, tempDir); err != nil {
				return fmt.Errorf("copy static assets: %w", err)
			}
		}
	}
	if s.templates.StaticDir != "" {
		if err := fsutil.CopyTree(s.templates.StaticDir, filepath.Join(tempDir, "theme")); err != nil {
			return fmt.Errorf("copy theme assets: %w", err)
		}
	}

	backupDir := finalDir + ".old"
	if err := os.RemoveAll(backupDir); err != nil {
		return fmt.Errorf("clean backup dir: %w", err)
	}
	if err := os.Rename(finalDir, backupDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rotate old output: %w", err)
	}
	if err := os.Rename(tempDir, finalDir); err != nil {
		_ = os.Rename(backupDir, finalDir)
		return fmt.Errorf("activate new output: %w", err)
	}
	_ = os.RemoveAll(backupDir)
	cleanTemp = false

	s.logger.Info("build complete", "pages", len(pages), "output", finalDir)
	return nil
}

// Rebuild reloads the content source and regenerates the site.
func (s *Service) Rebuild(ctx context.Context) error {
	if err := s.store.Load(ctx); err != nil {
		return err
	}
	return s.BuildStatic(ctx)
}

// Sync pulls upstream content changes (when the content tree is a git
// checkout) and rebuilds.
func (s *Service) Sync(ctx context.Context) error {
	if s.git != nil {
		if err := s.git.Pull(ctx); err != nil {
			return err
		}
	}
	return s.Rebuild(ctx)
}

// StaticDocumentPath resolves the on-disk file that serves a request path.
func (s *Service) StaticDocumentPath(requestPath string) string {
	route := sanitizeRoute(requestPath)
	if route == "/" {
		return filepath.Join(s.cfg.OutputDir, "index.html")
	}
	trimmed := strings.TrimPrefix(route, "/")
	if strings.HasSuffix(strings.ToLower(trimmed), ".html") {
		trimmed = trimmed[:len(trimmed)-len(".html")]
	}
	return filepath.Join(s.cfg.OutputDir, filepath.FromSlash(trimmed)+".html")
}

// NotFoundDocumentPath returns the prebuilt 404 page path.
func (s *Service) NotFoundDocumentPath() string {
	return filepath.Join(s.cfg.OutputDir, "404.html")
}

func sanitizeRoute(input string) string {
	route := strings.TrimSpace(input)
	if route == "" {
		return "/"
	}
	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	cleaned := path.Clean(route)
	if cleaned == "." {
		cleaned = "/"
	}
	return cleaned
}
