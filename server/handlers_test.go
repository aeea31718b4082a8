package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-site/strata/config"
	"github.com/strata-site/strata/content"
	"github.com/strata-site/strata/renderer"
	"github.com/strata-site/strata/site"
	"github.com/strata-site/strata/templatex"
)

const testLayout = `{{define "layout"}}<!DOCTYPE html>
<html><head><title>{{.PageTitle}}</title></head><body>
{{if eq .ContentTemplate "content-list"}}{{template "content-list" .}}{{else if eq .ContentTemplate "content-404"}}{{template "content-404" .}}{{else}}{{template "content-default" .}}{{end}}
</body></html>{{end}}
{{define "content-default"}}<h1>{{.Title}}</h1><article>{{.ContentHTML}}</article>{{end}}
{{define "content-list"}}<ul>{{range .Entries}}<li><a href="{{.Route}}">{{.Title}}</a></li>{{end}}</ul>{{end}}
{{define "content-404"}}<p>Page not found.</p>{{end}}`

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	root := t.TempDir()
	contentDir := filepath.Join(root, "content")
	templateDir := filepath.Join(root, "template")

	require.NoError(t, os.MkdirAll(templateDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(templateDir, "layout.html"), []byte(testLayout), 0o644))

	files := map[string]string{
		"blog/first-post.md": "---\ntitle: First Post\ntags: [go, web]\n---\n\nHello from the first post.\n",
		"blog/older-post.md": "---\ntitle: Older Post\ndate: 2024-01-02\n---\n\nOlder body.\n",
		"index.md":           "# Welcome\n",
	}
	for rel, body := range files {
		path := filepath.Join(contentDir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}

	cfg := &config.Config{
		SiteName:       "Test Site",
		ContentDir:     contentDir,
		TemplateDir:    templateDir,
		OutputDir:      filepath.Join(root, "dist"),
		HomeDoc:        "index.md",
		Routes:         []config.RouteConfig{{Pattern: "/blog/[slug]", Collection: "blog"}},
		HandlerTimeout: 5 * time.Second,
	}
	if mutate != nil {
		mutate(cfg)
	}

	rend := renderer.New()
	store := content.NewStore(contentDir, rend, nil)
	templates, err := templatex.Load(templateDir)
	require.NoError(t, err)
	svc := site.NewService(cfg, store, templates, rend, nil, nil)
	require.NoError(t, svc.Rebuild(context.Background()))

	srv, err := New(cfg, svc, nil, "strata-test")
	require.NoError(t, err)
	return srv
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestListPosts(t *testing.T) {
	srv := newTestServer(t, nil)
	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/api/posts", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Count int `json:"count"`
		Items []struct {
			Slug  string `json:"slug"`
			Route string `json:"route"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, 2, body.Count)
	slugs := []string{body.Items[0].Slug, body.Items[1].Slug}
	assert.Contains(t, slugs, "first-post")
	assert.Contains(t, slugs, "older-post")
	assert.Equal(t, "/blog/"+body.Items[0].Slug, body.Items[0].Route)
}

func TestGetPost(t *testing.T) {
	srv := newTestServer(t, nil)
	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/api/posts/first-post", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Slug  string `json:"slug"`
		Title string `json:"title"`
		HTML  string `json:"html"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "first-post", body.Slug)
	assert.Equal(t, "First Post", body.Title)
	assert.Contains(t, body.HTML, "Hello from the first post")
}

func TestGetPostMissingKeyIs404(t *testing.T) {
	srv := newTestServer(t, nil)
	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/api/posts/99", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"error":"Post not found"}`, rr.Body.String())
}

func TestPostsMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, nil)
	rr := serve(srv, httptest.NewRequest(http.MethodDelete, "/api/posts/first-post", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, "GET", rr.Header().Get("Allow"))
}

func TestPreviewRendersMarkdown(t *testing.T) {
	srv := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/preview", strings.NewReader(`{"content":"# Draft\n\nbody"}`))
	rr := serve(srv, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		HTML string `json:"html"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Contains(t, body.HTML, "Draft")
}

func TestPreviewRejectsInvalidJSON(t *testing.T) {
	srv := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/preview", strings.NewReader("not json"))
	rr := serve(srv, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error":"invalid json"}`, rr.Body.String())
}

func TestRebuildWebhookAuthorization(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.WebhookSecret = "super-secret-token"
	})

	req := httptest.NewRequest(http.MethodPost, "/api/webhook/rebuild", nil)
	rr := serve(srv, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/webhook/rebuild", nil)
	req.Header.Set("Authorization", "wrong-token")
	rr = serve(srv, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/webhook/rebuild", nil)
	req.Header.Set("Authorization", "super-secret-token")
	rr = serve(srv, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"rebuilt"}`, rr.Body.String())
}

func TestCORSPreflightOnPosts(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.CORSOrigin = "https://app.example.com"
	})
	rr := serve(srv, httptest.NewRequest(http.MethodOptions, "/api/posts", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "https://app.example.com", rr.Header().Get("Access-Control-Allow-Origin"))

	// Non-API paths are untouched by CORS handling.
	rr = serve(srv, httptest.NewRequest(http.MethodOptions, "/blog/first-post", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestStaticFallthrough(t *testing.T) {
	srv := newTestServer(t, nil)

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/blog/first-post", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "First Post")

	rr = serve(srv, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Welcome")
}

func TestStaticMissingPageServes404Document(t *testing.T) {
	srv := newTestServer(t, nil)
	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/blog/no-such-post", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "Page not found")
}

func TestStaticRejectsTraversal(t *testing.T) {
	srv := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.URL.Path = "/../secrets.txt"
	rr := serve(srv, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
