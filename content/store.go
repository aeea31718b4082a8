package content

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/strata-site/strata/gitinfo"
	"github.com/strata-site/strata/renderer"
	"github.com/strata-site/strata/router"
)

var titleCaser = cases.Title(language.English)

// Store loads and indexes content entries from a directory tree. The first
// path component below the root names the collection; files in the root
// belong to the unnamed collection.
type Store struct {
	dir      string
	renderer *renderer.Renderer
	git      *gitinfo.Repository

	mu     sync.RWMutex
	all    []*Entry
	bySlug map[string]map[string]*Entry
}

// NewStore constructs a store rooted at dir. git may be nil; when present,
// entries are stamped with last-commit metadata.
func NewStore(dir string, rend *renderer.Renderer, git *gitinfo.Repository) *Store {
	return &Store{dir: dir, renderer: rend, git: git}
}

// Dir returns the content root.
func (s *Store) Dir() string { return s.dir }

// Load walks the content tree, renders every markdown file, and indexes the
// resulting entries. A duplicate slug within a collection fails the load.
func (s *Store) Load(ctx context.Context) error {
	entries := make([]*Entry, 0, 32)

	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
			return nil
		}
		if !strings.EqualFold(filepath.Ext(name), ".md") {
			return nil
		}
		entry, err := s.loadEntry(ctx, path)
		if err != nil {
			return err
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			// Missing content directory means an empty source, not an error.
			entries = entries[:0]
		} else {
			return err
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Collection != entries[j].Collection {
			return entries[i].Collection < entries[j].Collection
		}
		return entries[i].Slug < entries[j].Slug
	})

	bySlug := make(map[string]map[string]*Entry, 4)
	for _, entry := range entries {
		byCollection := bySlug[entry.Collection]
		if byCollection == nil {
			byCollection = make(map[string]*Entry, 8)
			bySlug[entry.Collection] = byCollection
		}
		if prev, exists := byCollection[entry.Slug]; exists {
			return fmt.Errorf("%w: slug %q used by %s and %s",
				router.ErrDuplicateRoute, entry.Slug, prev.Source, entry.Source)
		}
		byCollection[entry.Slug] = entry
	}

	s.mu.Lock()
	s.all = entries
	s.bySlug = bySlug
	s.mu.Unlock()
	return nil
}

// ListAll returns every entry, ordered by collection then slug.
func (s *Store) ListAll() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Entry(nil), s.all...)
}

// Collection returns the entries of one collection, newest first when dates
// are present, otherwise by slug.
func (s *Store) Collection(name string) []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Entry, 0, 8)
	for _, entry := range s.all {
		if entry.Collection == name {
			out = append(out, entry)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].Slug < out[j].Slug
	})
	return out
}

// GetBySlug resolves one entry by collection and slug.
func (s *Store) GetBySlug(collection, slug string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.bySlug[collection][slug]
	return entry, ok
}

// GetBySource resolves one entry by its path relative to the content root.
func (s *Store) GetBySource(rel string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rel = filepath.ToSlash(rel)
	for _, entry := range s.all {
		if entry.Source == rel {
			return entry, true
		}
	}
	return nil, false
}

func (s *Store) loadEntry(ctx context.Context, path string) (*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	rendered, err := s.renderer.Render(data)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", path, err)
	}

	rel, err := filepath.Rel(s.dir, path)
	if err != nil {
		return nil, err
	}
	rel = filepath.ToSlash(rel)

	entry := &Entry{
		Source:     rel,
		Collection: collectionOf(rel),
		Metadata:   rendered.Metadata,
		HTML:       template.HTML(rendered.HTML),
		PlainText:  rendered.PlainText,
		Headings:   rendered.Headings,
	}

	entry.Slug = metaString(rendered.Metadata, "slug")
	if entry.Slug == "" {
		base := strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel))
		entry.Slug = renderer.Slugify(base)
	}

	entry.Title = metaString(rendered.Metadata, "title")
	if entry.Title == "" {
		entry.Title = deriveTitle(rel)
	}
	entry.Summary = metaString(rendered.Metadata, "description")
	if entry.Summary == "" {
		entry.Summary = summarize(rendered.PlainText)
	}
	entry.Date = metaDate(rendered.Metadata, "date")
	entry.Tags = metaStrings(rendered.Metadata, "tags")

	if info, err := os.Stat(path); err == nil {
		entry.LastMod = info.ModTime().UTC()
	}
	if s.git != nil {
		if commit, err := s.git.LastCommit(ctx, rel); err == nil && commit.Hash != "" {
			entry.LastHash = commit.Hash
			entry.LastMod = commit.CommittedAt
		}
	}
	return entry, nil
}

func collectionOf(rel string) string {
	if idx := strings.IndexByte(rel, '/'); idx >= 0 {
		return rel[:idx]
	}
	return ""
}

func deriveTitle(rel string) string {
	name := strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel))
	name = strings.ReplaceAll(name, "-", " ")
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.TrimSpace(name)
	if name == "" {
		return "Untitled"
	}
	return titleCaser.String(name)
}

func summarize(plain string) string {
	plain = strings.Join(strings.Fields(plain), " ")
	if plain == "" {
		return ""
	}
	runes := []rune(plain)
	if len(runes) <= 200 {
		return plain
	}
	return string(runes[:200]) + "..."
}

func metaString(metadata map[string]any, key string) string {
	if value, ok := metadata[key]; ok {
		if s, ok := value.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func metaStrings(metadata map[string]any, key string) []string {
	raw, ok := metadata[key]
	if !ok {
		return nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

func metaDate(metadata map[string]any, key string) time.Time {
	raw := metaString(metadata, key)
	if raw == "" {
		if t, ok := metadata[key].(time.Time); ok {
			return t
		}
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
