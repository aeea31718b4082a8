package content

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-site/strata/renderer"
	"github.com/strata-site/strata/router"
)

func writeEntry(t *testing.T, root, rel, body string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	return NewStore(dir, renderer.New(), nil), dir
}

func TestLoadIndexesCollections(t *testing.T) {
	store, dir := newTestStore(t)
	writeEntry(t, dir, "blog/first-post.md", "---\ntitle: First\ndate: 2024-03-01\n---\n\nHello.\n")
	writeEntry(t, dir, "blog/second-post.md", "---\ntitle: Second\ndate: 2024-04-01\n---\n\nWorld.\n")
	writeEntry(t, dir, "docs/install.md", "# Install\n")
	writeEntry(t, dir, "index.md", "# Welcome\n")

	require.NoError(t, store.Load(context.Background()))

	all := store.ListAll()
	assert.Len(t, all, 4)

	blog := store.Collection("blog")
	require.Len(t, blog, 2)
	// Newest first.
	assert.Equal(t, "second-post", blog[0].Slug)
	assert.Equal(t, "first-post", blog[1].Slug)

	entry, ok := store.GetBySlug("blog", "first-post")
	require.True(t, ok)
	assert.Equal(t, "First", entry.Title)
	assert.Equal(t, "blog", entry.Collection)

	home, ok := store.GetBySlug("", "index")
	require.True(t, ok)
	assert.Equal(t, "", home.Collection)
}

func TestLoadSlugDefaultsFromFilename(t *testing.T) {
	store, dir := newTestStore(t)
	writeEntry(t, dir, "blog/My Great Post.md", "no frontmatter here\n")

	require.NoError(t, store.Load(context.Background()))
	entry, ok := store.GetBySlug("blog", "my-great-post")
	require.True(t, ok)
	assert.Equal(t, "My Great Post", entry.Title)
}

func TestLoadFailsOnDuplicateSlug(t *testing.T) {
	store, dir := newTestStore(t)
	writeEntry(t, dir, "blog/a.md", "---\nslug: same\n---\nA\n")
	writeEntry(t, dir, "blog/b.md", "---\nslug: same\n---\nB\n")

	err := store.Load(context.Background())
	assert.ErrorIs(t, err, router.ErrDuplicateRoute)
}

func TestLoadAllowsSameSlugAcrossCollections(t *testing.T) {
	store, dir := newTestStore(t)
	writeEntry(t, dir, "blog/intro.md", "A\n")
	writeEntry(t, dir, "docs/intro.md", "B\n")

	require.NoError(t, store.Load(context.Background()))
	_, ok := store.GetBySlug("blog", "intro")
	assert.True(t, ok)
	_, ok = store.GetBySlug("docs", "intro")
	assert.True(t, ok)
}

func TestLoadSkipsUnderscoreAndDotFiles(t *testing.T) {
	store, dir := newTestStore(t)
	writeEntry(t, dir, "blog/_draft.md", "draft\n")
	writeEntry(t, dir, ".obsidian/cache.md", "noise\n")
	writeEntry(t, dir, "blog/real.md", "real\n")

	require.NoError(t, store.Load(context.Background()))
	assert.Len(t, store.ListAll(), 1)
}

func TestLoadMissingDirectoryYieldsEmptySource(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nope"), renderer.New(), nil)
	require.NoError(t, store.Load(context.Background()))
	assert.Empty(t, store.ListAll())
}

func TestEntryAttrBinding(t *testing.T) {
	entry := &Entry{Slug: "hello", Metadata: map[string]any{"lang": "en", "rank": 3, "draft": false}}

	got, ok := entry.Attr("slug")
	require.True(t, ok)
	assert.Equal(t, "hello", got)

	got, ok = entry.Attr("lang")
	require.True(t, ok)
	assert.Equal(t, "en", got)

	got, ok = entry.Attr("rank")
	require.True(t, ok)
	assert.Equal(t, "3", got)

	_, ok = entry.Attr("missing")
	assert.False(t, ok)
}
