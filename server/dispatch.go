package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/strata-site/strata/config"
	"github.com/strata-site/strata/router"
)

// route holds the method table and per-path options for one pattern.
type route struct {
	pattern    router.Pattern
	handlers   map[string]Handler
	corsOrigin string
}

// Dispatcher maps (path, method) to exactly one handler. Routes are
// registered explicitly at startup; nothing is inferred from file layout.
// Every dispatched request produces exactly one response: unmatched paths
// get 404, unregistered methods 405, handler faults and overruns 500.
type Dispatcher struct {
	routes  []*route
	env     *config.Env
	logger  *slog.Logger
	timeout time.Duration
}

// NewDispatcher constructs a dispatcher. timeout bounds each handler
// invocation; zero means the platform default of 15 seconds.
func NewDispatcher(env *config.Env, logger *slog.Logger, timeout time.Duration) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Dispatcher{env: env, logger: logger, timeout: timeout}
}

// Handle registers a handler for one pattern and method. Registering two
// patterns that match the same set of paths, or the same method twice, is
// a configuration error.
func (d *Dispatcher) Handle(pattern, method string, h Handler) error {
	parsed, err := router.Parse(pattern)
	if err != nil {
		return err
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" || h == nil {
		return fmt.Errorf("route %s: method and handler are required", pattern)
	}

	entry := d.findRoute(parsed)
	if entry == nil {
		for _, existing := range d.routes {
			if existing.pattern.ConflictsWith(parsed) {
				return fmt.Errorf("route %s: %w with %s", pattern, router.ErrRouteConflict, existing.pattern.String())
			}
		}
		entry = &route{pattern: parsed, handlers: make(map[string]Handler, 4)}
		d.routes = append(d.routes, entry)
	}
	if _, dup := entry.handlers[method]; dup {
		return fmt.Errorf("route %s: method %s registered twice", pattern, method)
	}
	entry.handlers[method] = h
	return nil
}

// EnableCORS makes OPTIONS requests on the pattern answer preflight with
// the given origin instead of regular method dispatch.
func (d *Dispatcher) EnableCORS(pattern, origin string) error {
	parsed, err := router.Parse(pattern)
	if err != nil {
		return err
	}
	entry := d.findRoute(parsed)
	if entry == nil {
		return fmt.Errorf("route %s not registered", pattern)
	}
	if origin == "" {
		origin = "*"
	}
	entry.corsOrigin = origin
	return nil
}

func (d *Dispatcher) findRoute(pattern router.Pattern) *route {
	for _, entry := range d.routes {
		if entry.pattern.String() == pattern.String() {
			return entry
		}
	}
	return nil
}

// Match resolves the most specific registered pattern for a path. Literal
// segments beat dynamic ones, compared left to right.
func (d *Dispatcher) Match(path string) (*route, router.Params, bool) {
	var (
		best       *route
		bestParams router.Params
	)
	for _, entry := range d.routes {
		params, ok := entry.pattern.Match(path)
		if !ok {
			continue
		}
		if best == nil || entry.pattern.MoreSpecific(best.pattern) {
			best = entry
			bestParams = params
		}
	}
	if best == nil {
		return nil, nil, false
	}
	return best, bestParams, true
}

// Matches reports whether any registered pattern covers the path.
func (d *Dispatcher) Matches(path string) bool {
	_, _, ok := d.Match(path)
	return ok
}

// ServeHTTP implements http.Handler over the registered route table.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	entry, params, ok := d.Match(r.URL.Path)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	handler, registered := entry.handlers[r.Method]
	if !registered {
		if r.Method == http.MethodOptions && entry.corsOrigin != "" {
			d.writePreflight(w, entry)
			return
		}
		w.Header().Set("Allow", allowedMethods(entry))
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rctx := &RequestContext{
		Request: r,
		Method:  r.Method,
		Path:    r.URL.Path,
		Params:  params,
		Query:   r.URL.Query(),
		Env:     d.env,
	}

	resp, err := d.invoke(r.Context(), handler, rctx)
	if err != nil {
		d.logger.Error("handler", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if entry.corsOrigin != "" {
		w.Header().Set("Access-Control-Allow-Origin", entry.corsOrigin)
	}
	writeResponse(w, resp)
}

// invoke runs the handler under the invocation deadline. A handler that
// panics or outlives the deadline is reported as a fault; the dispatcher
// never assumes handlers return.
func (d *Dispatcher) invoke(ctx context.Context, handler Handler, rctx *RequestContext) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	rctx.Request = rctx.Request.WithContext(ctx)

	type outcome struct {
		resp *Response
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{err: fmt.Errorf("handler panic: %v", rec)}
			}
		}()
		resp, err := handler(rctx)
		if err == nil && resp == nil {
			err = fmt.Errorf("handler returned no response")
		}
		done <- outcome{resp: resp, err: err}
	}()

	select {
	case out := <-done:
		return out.resp, out.err
	case <-ctx.Done():
		return nil, fmt.Errorf("handler overran deadline: %w", ctx.Err())
	}
}

func (d *Dispatcher) writePreflight(w http.ResponseWriter, entry *route) {
	w.Header().Set("Access-Control-Allow-Origin", entry.corsOrigin)
	w.Header().Set("Access-Control-Allow-Methods", allowedMethods(entry))
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.WriteHeader(http.StatusNoContent)
}

func allowedMethods(entry *route) string {
	methods := make([]string, 0, len(entry.handlers))
	for method := range entry.handlers {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}

func writeResponse(w http.ResponseWriter, resp *Response) {
	for key, values := range resp.Header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(resp.Body) > 0 {
		_, _ = w.Write(resp.Body)
	}
}
