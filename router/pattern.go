// Package router implements route patterns with bracketed dynamic segments,
// e.g. /blog/[slug] or /[lang]/[category]/[slug]. Patterns are shared by the
// build-time page generator (which expands them) and the request dispatcher
// (which matches them).
package router

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

var (
	// ErrDuplicateRoute signals that two pages or registrations would occupy
	// the same concrete URL.
	ErrDuplicateRoute = errors.New("duplicate route")
	// ErrRouteConflict signals two registered patterns that match the same
	// set of paths and cannot be ordered by specificity.
	ErrRouteConflict = errors.New("conflicting route patterns")
	// ErrMissingParam is returned when expansion lacks a value for a
	// declared dynamic segment.
	ErrMissingParam = errors.New("missing route parameter")
)

// Params binds dynamic segment names to concrete values for one route.
type Params map[string]string

type segment struct {
	literal string
	param   string // non-empty for dynamic segments
}

func (s segment) dynamic() bool { return s.param != "" }

// Pattern is a parsed route pattern. The zero value matches nothing; use
// Parse.
type Pattern struct {
	raw      string
	segments []segment
}

// Parse validates and compiles a pattern string. A pattern must start with
// "/"; each component is either a literal or a single bracketed name. "/"
// alone denotes the root route.
func Parse(raw string) (Pattern, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || !strings.HasPrefix(trimmed, "/") {
		return Pattern{}, fmt.Errorf("pattern %q must start with '/'", raw)
	}
	cleaned := path.Clean(trimmed)
	if cleaned == "/" {
		return Pattern{raw: "/"}, nil
	}

	parts := strings.Split(strings.TrimPrefix(cleaned, "/"), "/")
	segments := make([]segment, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		if strings.HasPrefix(part, "[") || strings.HasSuffix(part, "]") {
			name := strings.TrimSuffix(strings.TrimPrefix(part, "["), "]")
			if name == "" || len(name)+2 != len(part) {
				return Pattern{}, fmt.Errorf("pattern %q: malformed dynamic segment %q", raw, part)
			}
			if !validParamName(name) {
				return Pattern{}, fmt.Errorf("pattern %q: invalid parameter name %q", raw, name)
			}
			if _, dup := seen[name]; dup {
				return Pattern{}, fmt.Errorf("pattern %q: parameter %q declared twice", raw, name)
			}
			seen[name] = struct{}{}
			segments = append(segments, segment{param: name})
			continue
		}
		if strings.ContainsAny(part, "[]") {
			return Pattern{}, fmt.Errorf("pattern %q: stray bracket in segment %q", raw, part)
		}
		segments = append(segments, segment{literal: part})
	}
	return Pattern{raw: cleaned, segments: segments}, nil
}

// MustParse is Parse for statically known patterns.
func MustParse(raw string) Pattern {
	p, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the cleaned pattern text.
func (p Pattern) String() string { return p.raw }

// ParamNames lists declared dynamic segment names in order.
func (p Pattern) ParamNames() []string {
	names := make([]string, 0, len(p.segments))
	for _, seg := range p.segments {
		if seg.dynamic() {
			names = append(names, seg.param)
		}
	}
	return names
}

// Match reports whether the concrete path matches this pattern, capturing
// one path component per dynamic segment. Matching is exact-segment-count
// and trailing-slash insensitive.
func (p Pattern) Match(requestPath string) (Params, bool) {
	parts, ok := splitPath(requestPath)
	if !ok || len(parts) != len(p.segments) {
		return nil, false
	}
	var params Params
	for i, seg := range p.segments {
		if seg.dynamic() {
			if params == nil {
				params = make(Params, 2)
			}
			params[seg.param] = parts[i]
			continue
		}
		if seg.literal != parts[i] {
			return nil, false
		}
	}
	if params == nil {
		params = Params{}
	}
	return params, true
}

// Expand substitutes params into the pattern and returns the concrete path.
// Every dynamic segment must be bound to a non-empty, slash-free value.
func (p Pattern) Expand(params Params) (string, error) {
	if len(p.segments) == 0 {
		return "/", nil
	}
	var b strings.Builder
	for _, seg := range p.segments {
		b.WriteByte('/')
		if !seg.dynamic() {
			b.WriteString(seg.literal)
			continue
		}
		value, ok := params[seg.param]
		if !ok || strings.TrimSpace(value) == "" {
			return "", fmt.Errorf("expand %s: %w: %s", p.raw, ErrMissingParam, seg.param)
		}
		if strings.Contains(value, "/") {
			return "", fmt.Errorf("expand %s: parameter %s contains '/': %q", p.raw, seg.param, value)
		}
		b.WriteString(value)
	}
	return b.String(), nil
}

// LiteralPrefix returns the leading literal components of the pattern as a
// path, e.g. /blog for /blog/[slug]. Returns "/" when the pattern starts
// with a dynamic segment.
func (p Pattern) LiteralPrefix() string {
	var b strings.Builder
	for _, seg := range p.segments {
		if seg.dynamic() {
			break
		}
		b.WriteByte('/')
		b.WriteString(seg.literal)
	}
	if b.Len() == 0 {
		return "/"
	}
	return b.String()
}

// MoreSpecific reports whether p wins over q for a path both match.
// Literal segments beat dynamic ones, compared left to right.
func (p Pattern) MoreSpecific(q Pattern) bool {
	for i := range p.segments {
		if i >= len(q.segments) {
			break
		}
		pd, qd := p.segments[i].dynamic(), q.segments[i].dynamic()
		if pd != qd {
			return !pd
		}
	}
	return false
}

// ConflictsWith reports whether the two patterns match exactly the same set
// of concrete paths. Such pairs cannot be ordered by literal-over-dynamic
// precedence and are a configuration error.
func (p Pattern) ConflictsWith(q Pattern) bool {
	if len(p.segments) != len(q.segments) {
		return false
	}
	for i, seg := range p.segments {
		other := q.segments[i]
		if seg.dynamic() != other.dynamic() {
			return false
		}
		if !seg.dynamic() && seg.literal != other.literal {
			return false
		}
	}
	return true
}

func splitPath(requestPath string) ([]string, bool) {
	trimmed := strings.TrimSpace(requestPath)
	if trimmed == "" {
		trimmed = "/"
	}
	if !strings.HasPrefix(trimmed, "/") {
		trimmed = "/" + trimmed
	}
	cleaned := path.Clean(trimmed)
	if cleaned == "/" {
		return nil, true
	}
	parts := strings.Split(strings.TrimPrefix(cleaned, "/"), "/")
	for _, part := range parts {
		if part == "" {
			return nil, false
		}
	}
	return parts, true
}

func validParamName(name string) bool {
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}
