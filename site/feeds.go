package site

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

type sitemapSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

// writeSitemap emits sitemap.xml for every generated page. Pages arrive
// sorted by route, so the document is byte-stable across rebuilds.
func (s *Service) writeSitemap(baseDir string, pages []GeneratedPage) error {
	set := sitemapSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  make([]sitemapURL, 0, len(pages)+1),
	}
	set.URLs = append(set.URLs, sitemapURL{Loc: s.absoluteURL("/")})
	for _, page := range pages {
		url := sitemapURL{Loc: s.absoluteURL(page.Route)}
		if !page.Entry.LastMod.IsZero() {
			url.LastMod = page.Entry.LastMod.UTC().Format("2006-01-02")
		}
		set.URLs = append(set.URLs, url)
	}

	data, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sitemap: %w", err)
	}
	payload := append([]byte(xml.Header), data...)
	return os.WriteFile(filepath.Join(baseDir, "sitemap.xml"), payload, 0o644)
}

type feedItem struct {
	Title   string    `json:"title"`
	Route   string    `json:"route"`
	URL     string    `json:"url"`
	Date    time.Time `json:"date,omitempty"`
	Summary string    `json:"summary,omitempty"`
	Tags    []string  `json:"tags,omitempty"`
}

// writeFeed emits feed.json, a machine-readable index of the generated
// pages consumed by client-side navigation and external integrations.
func (s *Service) writeFeed(baseDir string, pages []GeneratedPage) error {
	items := make([]feedItem, 0, len(pages))
	for _, page := range pages {
		items = append(items, feedItem{
			Title:   page.Entry.Title,
			Route:   page.Route,
			URL:     s.absoluteURL(page.Route),
			Date:    page.Entry.Date,
			Summary: page.Entry.Summary,
			Tags:    page.Entry.Tags,
		})
	}
	payload := struct {
		Site  string     `json:"site"`
		Count int        `json:"count"`
		Items []feedItem `json:"items"`
	}{
		Site:  s.cfg.SiteName,
		Count: len(items),
		Items: items,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal feed: %w", err)
	}
	return os.WriteFile(filepath.Join(baseDir, "feed.json"), data, 0o644)
}

func (s *Service) absoluteURL(route string) string {
	base := strings.TrimRight(strings.TrimSpace(s.cfg.BaseURL), "/")
	if base == "" {
		return route
	}
	return base + route
}
