package site

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-site/strata/config"
	"github.com/strata-site/strata/content"
	"github.com/strata-site/strata/renderer"
	"github.com/strata-site/strata/router"
	"github.com/strata-site/strata/templatex"
)

const testLayout = `{{define "layout"}}<!DOCTYPE html>
<html><head><title>{{.PageTitle}}</title></head><body>
{{if eq .ContentTemplate "content-list"}}{{template "content-list" .}}{{else if eq .ContentTemplate "content-404"}}{{template "content-404" .}}{{else}}{{template "content-default" .}}{{end}}
</body></html>{{end}}
{{define "content-default"}}<h1>{{.Title}}</h1><article>{{.ContentHTML}}</article>{{end}}
{{define "content-list"}}<ul>{{range .Entries}}<li><a href="{{.Route}}">{{.Title}}</a></li>{{end}}</ul>{{end}}
{{define "content-404"}}<p>Page not found.</p>{{end}}`

type fixture struct {
	cfg   *config.Config
	store *content.Store
	svc   *Service
}

func newFixture(t *testing.T, routes []config.RouteConfig, files map[string]string) *fixture {
	t.Helper()
	root := t.TempDir()
	contentDir := filepath.Join(root, "content")
	templateDir := filepath.Join(root, "template")
	outputDir := filepath.Join(root, "dist")

	require.NoError(t, os.MkdirAll(templateDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(templateDir, "layout.html"), []byte(testLayout), 0o644))
	for rel, body := range files {
		path := filepath.Join(contentDir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}

	cfg := &config.Config{
		SiteName:    "Test Site",
		ContentDir:  contentDir,
		TemplateDir: templateDir,
		OutputDir:   outputDir,
		HomeDoc:     "index.md",
		Routes:      routes,
	}

	rend := renderer.New()
	store := content.NewStore(contentDir, rend, nil)
	templates, err := templatex.Load(templateDir)
	require.NoError(t, err)

	return &fixture{
		cfg:   cfg,
		store: store,
		svc:   NewService(cfg, store, templates, rend, nil, nil),
	}
}

func blogRoutes() []config.RouteConfig {
	return []config.RouteConfig{{Pattern: "/blog/[slug]", Collection: "blog"}}
}

func TestBuildGeneratesOnePagePerEntry(t *testing.T) {
	f := newFixture(t, blogRoutes(), map[string]string{
		"blog/first-post.md":  "---\ntitle: First\n---\n\nFirst body.\n",
		"blog/second-post.md": "---\ntitle: Second\n---\n\nSecond body.\n",
		"index.md":            "# Welcome\n",
	})
	ctx := context.Background()
	require.NoError(t, f.store.Load(ctx))
	require.NoError(t, f.svc.BuildStatic(ctx))

	first, err := os.ReadFile(filepath.Join(f.cfg.OutputDir, "blog", "first-post.html"))
	require.NoError(t, err)
	assert.Contains(t, string(first), "First")

	second, err := os.ReadFile(filepath.Join(f.cfg.OutputDir, "blog", "second-post.html"))
	require.NoError(t, err)
	assert.Contains(t, string(second), "Second")

	// Home page, 404, listing, and feeds are part of every build.
	for _, name := range []string{"index.html", "404.html", "blog.html", "sitemap.xml", "feed.json"} {
		_, err := os.Stat(filepath.Join(f.cfg.OutputDir, name))
		assert.NoError(t, err, "expected build artifact %s", name)
	}

	listing, err := os.ReadFile(filepath.Join(f.cfg.OutputDir, "blog.html"))
	require.NoError(t, err)
	assert.Contains(t, string(listing), "/blog/first-post")
	assert.Contains(t, string(listing), "/blog/second-post")
}

func TestBuildEmptySourceSucceedsWithZeroPages(t *testing.T) {
	f := newFixture(t, blogRoutes(), nil)
	ctx := context.Background()
	require.NoError(t, f.store.Load(ctx))
	require.NoError(t, f.svc.BuildStatic(ctx))

	entries, err := os.ReadDir(filepath.Join(f.cfg.OutputDir))
	require.NoError(t, err)
	for _, entry := range entries {
		assert.NotEqual(t, "blog", entry.Name(), "no collection pages expected")
	}
	_, err = os.Stat(filepath.Join(f.cfg.OutputDir, "404.html"))
	assert.NoError(t, err)
}

func TestBuildDuplicateSlugFailsWithZeroOutput(t *testing.T) {
	f := newFixture(t, blogRoutes(), map[string]string{
		"blog/a.md": "---\nslug: same-post\n---\nA\n",
		"blog/b.md": "---\nslug: same-post\n---\nB\n",
	})
	err := f.svc.Rebuild(context.Background())
	require.ErrorIs(t, err, router.ErrDuplicateRoute)

	_, statErr := os.Stat(f.cfg.OutputDir)
	assert.True(t, os.IsNotExist(statErr), "failed build must publish nothing")
}

func TestBuildFailureKeepsPreviousOutput(t *testing.T) {
	f := newFixture(t, blogRoutes(), map[string]string{
		"blog/first-post.md": "---\ntitle: First\n---\nBody\n",
	})
	ctx := context.Background()
	require.NoError(t, f.svc.Rebuild(ctx))
	_, err := os.Stat(filepath.Join(f.cfg.OutputDir, "blog", "first-post.html"))
	require.NoError(t, err)

	// Introduce a duplicate; the rebuild fails and the live output survives.
	dup := filepath.Join(f.cfg.ContentDir, "blog", "dup.md")
	require.NoError(t, os.WriteFile(dup, []byte("---\nslug: first-post\n---\nDup\n"), 0o644))
	require.Error(t, f.svc.Rebuild(ctx))

	_, err = os.Stat(filepath.Join(f.cfg.OutputDir, "blog", "first-post.html"))
	assert.NoError(t, err)
}

func TestEnumerateIsDeterministicAndSorted(t *testing.T) {
	f := newFixture(t, blogRoutes(), map[string]string{
		"blog/zeta.md":  "Z\n",
		"blog/alpha.md": "A\n",
		"blog/mid.md":   "M\n",
	})
	require.NoError(t, f.store.Load(context.Background()))

	first, err := Enumerate(f.cfg.Routes, f.store)
	require.NoError(t, err)
	second, err := Enumerate(f.cfg.Routes, f.store)
	require.NoError(t, err)

	require.Len(t, first, 3)
	assert.Equal(t, first, second)
	assert.Equal(t, "/blog/alpha", first[0].Route)
	assert.Equal(t, "/blog/mid", first[1].Route)
	assert.Equal(t, "/blog/zeta", first[2].Route)
	assert.Equal(t, "blog/alpha.html", first[0].OutputPath)
}

func TestEnumerateMultiSegmentRoutes(t *testing.T) {
	f := newFixture(t, []config.RouteConfig{
		{Pattern: "/[lang]/docs/[slug]", Collection: "docs"},
	}, map[string]string{
		"docs/install.md": "---\nlang: en\n---\nInstall\n",
		"docs/einbau.md":  "---\nlang: de\n---\nEinbau\n",
	})
	require.NoError(t, f.store.Load(context.Background()))

	pages, err := Enumerate(f.cfg.Routes, f.store)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "/de/docs/einbau", pages[0].Route)
	assert.Equal(t, "/en/docs/install", pages[1].Route)
	assert.Equal(t, router.Params{"lang": "de", "slug": "einbau"}, pages[0].Params)
}

func TestEnumerateMissingAttributeFails(t *testing.T) {
	f := newFixture(t, []config.RouteConfig{
		{Pattern: "/[lang]/docs/[slug]", Collection: "docs"},
	}, map[string]string{
		"docs/install.md": "No lang frontmatter\n",
	})
	require.NoError(t, f.store.Load(context.Background()))

	_, err := Enumerate(f.cfg.Routes, f.store)
	assert.ErrorIs(t, err, router.ErrMissingParam)
}

func TestEnumerateDuplicateAcrossCollections(t *testing.T) {
	f := newFixture(t, []config.RouteConfig{
		{Pattern: "/pages/[slug]", Collection: "blog"},
		{Pattern: "/pages/[id]", Collection: "docs"},
	}, map[string]string{
		"blog/intro.md": "---\nid: intro\n---\nA\n",
		"docs/intro.md": "---\nid: intro\n---\nB\n",
	})
	require.NoError(t, f.store.Load(context.Background()))

	_, err := Enumerate(f.cfg.Routes, f.store)
	assert.ErrorIs(t, err, router.ErrDuplicateRoute)
}

func TestStaticDocumentPath(t *testing.T) {
	f := newFixture(t, blogRoutes(), nil)
	assert.Equal(t, filepath.Join(f.cfg.OutputDir, "index.html"), f.svc.StaticDocumentPath("/"))
	assert.Equal(t, filepath.Join(f.cfg.OutputDir, "blog", "first-post.html"), f.svc.StaticDocumentPath("/blog/first-post"))
	assert.Equal(t, filepath.Join(f.cfg.OutputDir, "blog", "first-post.html"), f.svc.StaticDocumentPath("/blog/first-post.html"))
	assert.Equal(t, filepath.Join(f.cfg.OutputDir, "404.html"), f.svc.NotFoundDocumentPath())
}
