package templatex

import (
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	DefaultContentTemplate  = "content-default"
	ListContentTemplate     = "content-list"
	NotFoundContentTemplate = "content-404"
	LayoutTemplate          = "layout"
)

// Engine is a thin wrapper around Go templates with a shared base layout.
type Engine struct {
	templates *template.Template
	StaticDir string
}

// PageData is the data model every layout execution receives.
type PageData struct {
	Title           string
	PageTitle       string
	SiteName        string
	BaseURL         string
	ContentHTML     template.HTML
	ContentTemplate string
	Sections        []TOCEntry
	Route           string
	RequestedPath   string
	Params          map[string]string
	Entries         []EntryRef
	PublicEnv       map[string]string
	Meta            Meta
	LastUpdated     string
	LastUpdatedISO  string
}

// Meta holds SEO-oriented metadata for the rendered page.
type Meta struct {
	Description   string
	OpenGraphType string
	OpenGraphSite string
}

// TOCEntry models a single heading for in-page navigation.
type TOCEntry struct {
	ID    string
	Text  string
	Level int
}

// EntryRef is a lightweight reference to a generated page, used by listing
// templates and feeds.
type EntryRef struct {
	Title   string
	Route   string
	Date    time.Time
	Summary string
}

// Load instantiates an engine using files from templateDir. Top-level *.html
// files and partials/*.html are parsed together; a "layout" template must be
// defined.
func Load(templateDir string) (*Engine, error) {
	if templateDir == "" {
		return nil, fmt.Errorf("template directory not configured")
	}

	funcs := template.FuncMap{
		"safeHTML": func(v any) template.HTML {
			switch value := v.(type) {
			case template.HTML:
				return value
			case string:
				return template.HTML(value)
			default:
				return ""
			}
		},
		"baseHref": func(base string) string {
			base = strings.TrimSpace(base)
			if base == "" || base == "/" {
				return "/"
			}
			return "/" + strings.Trim(base, "/") + "/"
		},
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.UTC().Format("Jan 2, 2006")
		},
	}

	files := make([]string, 0)
	mainFiles, err := filepath.Glob(filepath.Join(templateDir, "*.html"))
	if err != nil {
		return nil, fmt.Errorf("glob main templates: %w", err)
	}
	files = append(files, mainFiles...)

	partialsDir := filepath.Join(templateDir, "partials")
	if info, err := os.Stat(partialsDir); err == nil && info.IsDir() {
		partialFiles, err := filepath.Glob(filepath.Join(partialsDir, "*.html"))
		if err != nil {
			return nil, fmt.Errorf("glob partial templates: %w", err)
		}
		files = append(files, partialFiles...)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no templates found in %s", templateDir)
	}
	sort.Strings(files)

	tpl, err := template.New("root").Funcs(funcs).ParseFiles(files...)
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	if tpl.Lookup(LayoutTemplate) == nil {
		return nil, fmt.Errorf("template %q is not defined", LayoutTemplate)
	}

	engine := &Engine{templates: tpl}
	assetsPath := filepath.Join(templateDir, "assets")
	if info, err := os.Stat(assetsPath); err == nil && info.IsDir() {
		engine.StaticDir = assetsPath
	}
	return engine, nil
}

// Render writes the rendered layout into the provided writer.
func (e *Engine) Render(w io.Writer, data *PageData) error {
	if e.templates == nil {
		return fmt.Errorf("template engine not initialized")
	}
	if data != nil {
		if strings.TrimSpace(data.ContentTemplate) == "" {
			data.ContentTemplate = DefaultContentTemplate
		}
		if strings.TrimSpace(data.RequestedPath) == "" {
			data.RequestedPath = data.Route
		}
	}
	return e.templates.ExecuteTemplate(w, LayoutTemplate, data)
}
