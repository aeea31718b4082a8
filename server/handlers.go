package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"
)

// postSummary is the list representation of a blog entry.
type postSummary struct {
	Slug    string    `json:"slug"`
	Title   string    `json:"title"`
	Route   string    `json:"route"`
	Date    time.Time `json:"date,omitempty"`
	Summary string    `json:"summary,omitempty"`
	Tags    []string  `json:"tags,omitempty"`
}

// postDetail adds the rendered body for single-entry lookups.
type postDetail struct {
	postSummary
	HTML string `json:"html"`
}

const postsCollection = "blog"

func (s *Server) registerRoutes() error {
	registrations := []struct {
		pattern string
		method  string
		handler Handler
	}{
		{"/api/health", http.MethodGet, s.handleHealth},
		{"/api/posts", http.MethodGet, s.handleListPosts},
		{"/api/posts/[slug]", http.MethodGet, s.handleGetPost},
		{"/api/preview", http.MethodPost, s.handlePreview},
		{"/api/webhook/rebuild", http.MethodPost, s.handleRebuild},
	}
	for _, reg := range registrations {
		if err := s.dispatcher.Handle(reg.pattern, reg.method, reg.handler); err != nil {
			return err
		}
	}

	if origin := strings.TrimSpace(s.cfg.Server.CORSOrigin); origin != "" {
		for _, pattern := range []string{"/api/posts", "/api/posts/[slug]"} {
			if err := s.dispatcher.EnableCORS(pattern, origin); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Server) handleHealth(*RequestContext) (*Response, error) {
	return JSONResponse(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListPosts(*RequestContext) (*Response, error) {
	entries := s.svc.Store().Collection(postsCollection)
	posts := make([]postSummary, 0, len(entries))
	for _, entry := range entries {
		posts = append(posts, postSummary{
			Slug:    entry.Slug,
			Title:   entry.Title,
			Route:   "/" + postsCollection + "/" + entry.Slug,
			Date:    entry.Date,
			Summary: entry.Summary,
			Tags:    entry.Tags,
		})
	}
	return JSONResponse(http.StatusOK, map[string]any{"items": posts, "count": len(posts)})
}

func (s *Server) handleGetPost(ctx *RequestContext) (*Response, error) {
	slug := ctx.Params["slug"]
	entry, ok := s.svc.Store().GetBySlug(postsCollection, slug)
	if !ok {
		return ErrorResponse(http.StatusNotFound, "Post not found")
	}
	return JSONResponse(http.StatusOK, postDetail{
		postSummary: postSummary{
			Slug:    entry.Slug,
			Title:   entry.Title,
			Route:   "/" + postsCollection + "/" + entry.Slug,
			Date:    entry.Date,
			Summary: entry.Summary,
			Tags:    entry.Tags,
		},
		HTML: string(entry.HTML),
	})
}

func (s *Server) handlePreview(ctx *RequestContext) (*Response, error) {
	var payload struct {
		Content string `json:"content"`
	}
	if err := ctx.DecodeJSON(&payload); err != nil {
		return ErrorResponse(http.StatusBadRequest, "invalid json")
	}
	rendered, err := s.svc.RenderPreview([]byte(payload.Content))
	if err != nil {
		return nil, err
	}
	return JSONResponse(http.StatusOK, map[string]any{
		"html":     string(rendered.HTML),
		"headings": rendered.Headings,
	})
}

// handleRebuild syncs the content source and regenerates the site. Guarded
// by the shared webhook secret when one is configured.
func (s *Server) handleRebuild(ctx *RequestContext) (*Response, error) {
	if !s.authorizeWebhook(ctx) {
		return ErrorResponse(http.StatusUnauthorized, "unauthorized")
	}
	if err := s.svc.Sync(ctx.Request.Context()); err != nil {
		s.logger.Error("rebuild webhook", "error", err)
		return ErrorResponse(http.StatusInternalServerError, err.Error())
	}
	return JSONResponse(http.StatusOK, map[string]string{"status": "rebuilt"})
}

func (s *Server) authorizeWebhook(ctx *RequestContext) bool {
	secret := strings.TrimSpace(s.cfg.Server.WebhookSecret)
	if secret == "" {
		return true
	}
	token := strings.TrimSpace(ctx.Request.Header.Get("Authorization"))
	if token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1
}
