package site

import (
	"fmt"
	"sort"
	"strings"

	"github.com/strata-site/strata/config"
	"github.com/strata-site/strata/content"
	"github.com/strata-site/strata/router"
)

// GeneratedPage is the immutable build output plan for one route: the
// concrete path, the parameter bindings that produced it, and the entry
// injected into the template.
type GeneratedPage struct {
	Route      string
	OutputPath string
	Params     router.Params
	Entry      *content.Entry
}

// Enumerate produces the complete, finite set of pages to materialize: one
// per (route, entry) pair, with every dynamic segment bound from the entry's
// attributes. The result is sorted by route so builds are reproducible.
//
// An empty content source yields zero pages. Two pages expanding to the same
// concrete path fail with router.ErrDuplicateRoute; an entry lacking an
// attribute a pattern requires fails with router.ErrMissingParam.
func Enumerate(routes []config.RouteConfig, store *content.Store) ([]GeneratedPage, error) {
	pages := make([]GeneratedPage, 0, 32)
	claimed := make(map[string]string, 32) // route -> source

	for _, rc := range routes {
		pattern, err := router.Parse(rc.Pattern)
		if err != nil {
			return nil, fmt.Errorf("route %q: %w", rc.Pattern, err)
		}
		for _, entry := range store.Collection(rc.Collection) {
			params, err := bindParams(pattern, entry)
			if err != nil {
				return nil, err
			}
			route, err := pattern.Expand(params)
			if err != nil {
				return nil, fmt.Errorf("entry %s: %w", entry.Source, err)
			}
			if prev, taken := claimed[route]; taken {
				return nil, fmt.Errorf("%w: %s claimed by both %s and %s",
					router.ErrDuplicateRoute, route, prev, entry.Source)
			}
			claimed[route] = entry.Source
			pages = append(pages, GeneratedPage{
				Route:      route,
				OutputPath: outputPathFor(route),
				Params:     params,
				Entry:      entry,
			})
		}
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].Route < pages[j].Route })
	return pages, nil
}

func bindParams(pattern router.Pattern, entry *content.Entry) (router.Params, error) {
	params := make(router.Params, 3)
	for _, name := range pattern.ParamNames() {
		value, ok := entry.Attr(name)
		if !ok {
			return nil, fmt.Errorf("entry %s: %w: %s required by %s",
				entry.Source, router.ErrMissingParam, name, pattern.String())
		}
		params[name] = value
	}
	return params, nil
}

func outputPathFor(route string) string {
	trimmed := strings.TrimPrefix(route, "/")
	if trimmed == "" {
		return "index.html"
	}
	return trimmed + ".html"
}
