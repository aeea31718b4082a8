package content

import (
	"html/template"
	"strconv"
	"time"

	"github.com/strata-site/strata/renderer"
)

// Entry is one unit of publishable content. The slug is the route key and
// is unique within a collection.
type Entry struct {
	Slug       string
	Collection string
	Source     string // path relative to the content root
	Title      string
	Date       time.Time
	Tags       []string
	Summary    string
	Metadata   map[string]any
	HTML       template.HTML
	PlainText  string
	Headings   []renderer.Heading
	LastMod    time.Time
	LastHash   string
}

// Attr resolves a named attribute for route-parameter binding. "slug" maps
// to the slug itself; any other name is looked up in the frontmatter and
// must be a scalar.
func (e *Entry) Attr(name string) (string, bool) {
	if name == "slug" {
		return e.Slug, e.Slug != ""
	}
	value, ok := e.Metadata[name]
	if !ok {
		return "", false
	}
	return scalarString(value)
}

func scalarString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, v != ""
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return "", false
	}
}
