package site

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/strata-site/strata/content"
	"github.com/strata-site/strata/router"
	"github.com/strata-site/strata/templatex"
)

func (s *Service) writePages(baseDir string, pages []GeneratedPage) error {
	for _, page := range pages {
		data := s.pageData(page.Entry, page.Route, page.Params)
		if err := s.renderToFile(baseDir, page.OutputPath, data); err != nil {
			return fmt.Errorf("page %s: %w", page.Route, err)
		}
		if !page.Entry.LastMod.IsZero() {
			stamp := page.Entry.LastMod.UTC()
			target := filepath.Join(baseDir, filepath.FromSlash(page.OutputPath))
			if err := os.Chtimes(target, stamp, stamp); err != nil {
				return fmt.Errorf("set mod time %s: %w", page.Route, err)
			}
		}
	}
	return nil
}

// writeListings emits one index page per routed collection, at the route's
// literal prefix. Only single-parameter patterns with a trailing dynamic
// segment get a listing; nested dynamic routes have no natural index.
func (s *Service) writeListings(ctx context.Context, baseDir string) error {
	for _, rc := range s.cfg.Routes {
		if err := ctx.Err(); err != nil {
			return err
		}
		pattern, err := router.Parse(rc.Pattern)
		if err != nil {
			return err
		}
		prefix := pattern.LiteralPrefix()
		if prefix == "/" || len(pattern.ParamNames()) != 1 || !strings.HasSuffix(pattern.String(), "]") {
			continue
		}

		entries := s.store.Collection(rc.Collection)
		refs := make([]templatex.EntryRef, 0, len(entries))
		for _, entry := range entries {
			params, err := bindParams(pattern, entry)
			if err != nil {
				return err
			}
			route, err := pattern.Expand(params)
			if err != nil {
				return err
			}
			refs = append(refs, templatex.EntryRef{
				Title:   entry.Title,
				Route:   route,
				Date:    entry.Date,
				Summary: entry.Summary,
			})
		}

		title := listingTitle(rc.Collection)
		data := s.basePageData(title, prefix)
		data.ContentTemplate = templatex.ListContentTemplate
		data.Entries = refs
		data.Meta = s.buildMeta(fmt.Sprintf("All pages under %s.", prefix), title, "website")

		if err := s.renderToFile(baseDir, outputPathFor(prefix), data); err != nil {
			return fmt.Errorf("listing %s: %w", prefix, err)
		}
	}
	return nil
}

func (s *Service) writeHomePage(baseDir string) error {
	entry, ok := s.store.GetBySource(s.cfg.HomeDoc)
	if !ok {
		s.logger.Warn("home document missing, skipping index page", "homeDoc", s.cfg.HomeDoc)
		return nil
	}
	data := s.pageData(entry, "/", router.Params{})
	return s.renderToFile(baseDir, "index.html", data)
}

func (s *Service) writeNotFoundPage(baseDir string) error {
	// Pre-rendered so the CDN (or the local server) can serve it verbatim
	// for any path that was not generated.
	data := s.basePageData("404 - Not Found", "")
	data.ContentTemplate = templatex.NotFoundContentTemplate
	data.Meta = s.buildMeta("The page you are looking for could not be found.", "404", "website")
	return s.renderToFile(baseDir, "404.html", data)
}

func (s *Service) renderToFile(baseDir, outputPath string, data *templatex.PageData) error {
	var buf bytes.Buffer
	if err := s.templates.Render(&buf, data); err != nil {
		return err
	}
	minified, err := s.renderer.MinifyHTML(buf.Bytes())
	if err != nil {
		return fmt.Errorf("minify: %w", err)
	}
	target := filepath.Join(baseDir, filepath.FromSlash(outputPath))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	return os.WriteFile(target, minified, 0o644)
}

func (s *Service) pageData(entry *content.Entry, route string, params router.Params) *templatex.PageData {
	sections := make([]templatex.TOCEntry, 0, len(entry.Headings))
	for _, heading := range entry.Headings {
		sections = append(sections, templatex.TOCEntry{ID: heading.ID, Text: heading.Text, Level: heading.Level})
	}

	data := s.basePageData(entry.Title, route)
	data.ContentHTML = entry.HTML
	data.Sections = sections
	data.Params = params
	data.Meta = s.buildMeta(entry.Summary, entry.Title, "article")
	if !entry.LastMod.IsZero() {
		data.LastUpdatedISO = entry.LastMod.UTC().Format(time.RFC3339)
		data.LastUpdated = entry.LastMod.UTC().Format("Jan 2 15:04:05 MST 2006")
	}
	return data
}

func (s *Service) basePageData(title, route string) *templatex.PageData {
	return &templatex.PageData{
		Title:     title,
		PageTitle: s.pageTitle(title),
		SiteName:  s.cfg.SiteName,
		BaseURL:   s.cfg.BaseURL,
		Route:     route,
		PublicEnv: s.cfg.Env().Public(),
	}
}

func (s *Service) buildMeta(summary, fallback, ogType string) templatex.Meta {
	description := metaDescription(summary, fallback)
	if description == "" {
		description = s.cfg.SiteName
	}
	return templatex.Meta{
		Description:   description,
		OpenGraphType: ogType,
		OpenGraphSite: s.cfg.SiteName,
	}
}

func (s *Service) pageTitle(raw string) string {
	title := strings.TrimSpace(raw)
	if title == "" {
		return s.cfg.SiteName
	}
	return fmt.Sprintf("%s - %s", title, s.cfg.SiteName)
}

func listingTitle(collection string) string {
	name := strings.TrimSpace(strings.ReplaceAll(collection, "-", " "))
	if name == "" {
		return "All Pages"
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

func metaDescription(summary, fallback string) string {
	const limit = 160
	text := strings.TrimSpace(summary)
	if text == "" {
		text = strings.TrimSpace(fallback)
	}
	if text == "" {
		return ""
	}
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit-1]) + "..."
}
