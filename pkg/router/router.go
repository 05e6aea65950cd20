package router

import (
	"net/http"
	"strings"
	"sync"

	"github.com/Suhaibinator/SOnion/pkg/common"
	"go.uber.org/zap"
)

// Router holds an ordered table of exact-match routes.
// The table is written during setup and frozen by the first call to Routes;
// after that it is only read, so the returned middleware is safe for concurrent requests.
type Router struct {
	logger *zap.Logger
	mu     sync.Mutex
	routes []Route
	frozen bool
}

// NewRouter creates a new Router with the given configuration.
func NewRouter(config RouterConfig) *Router {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{logger: logger}
}

// Register appends a route. The method is stored lower-cased and the path is kept
// verbatim: there are no wildcards, parameters or trailing-slash normalization.
// When the same path and method are registered twice, the first entry wins.
// Register panics if called after Routes, since the table is immutable once served.
func (r *Router) Register(path, method string, handler Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		panic("router: Register called after Routes; routes must be registered before serving")
	}

	route := Route{
		Path:    path,
		Method:  strings.ToLower(method),
		Handler: handler,
	}
	r.routes = append(r.routes, route)

	r.logger.Debug("Route registered",
		zap.String("method", strings.ToUpper(route.Method)),
		zap.String("path", route.Path),
	)
}

// Get registers a handler for GET requests on path.
func (r *Router) Get(path string, handler Middleware) {
	r.Register(path, http.MethodGet, handler)
}

// Post registers a handler for POST requests on path.
func (r *Router) Post(path string, handler Middleware) {
	r.Register(path, http.MethodPost, handler)
}

// Put registers a handler for PUT requests on path.
func (r *Router) Put(path string, handler Middleware) {
	r.Register(path, http.MethodPut, handler)
}

// Patch registers a handler for PATCH requests on path.
func (r *Router) Patch(path string, handler Middleware) {
	r.Register(path, http.MethodPatch, handler)
}

// Delete registers a handler for DELETE requests on path.
func (r *Router) Delete(path string, handler Middleware) {
	r.Register(path, http.MethodDelete, handler)
}

// Head registers a handler for HEAD requests on path.
func (r *Router) Head(path string, handler Middleware) {
	r.Register(path, http.MethodHead, handler)
}

// Options registers a handler for OPTIONS requests on path.
func (r *Router) Options(path string, handler Middleware) {
	r.Register(path, http.MethodOptions, handler)
}

// Entries returns a copy of the route table in registration order.
func (r *Router) Entries() []Route {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]Route, len(r.routes))
	copy(entries, r.routes)
	return entries
}

// Routes freezes the table and returns the dispatch middleware.
//
// On each request the table is scanned in registration order for the first entry
// whose path equals the context URL and whose method equals the lower-cased request
// method. A matched handler is called with the context and the router's own
// continuation, and its result is awaited and returned. If nothing matches, or the
// matched entry has no handler, the request falls through to next.
func (r *Router) Routes() Middleware {
	r.mu.Lock()
	r.frozen = true
	stack := make([]Route, len(r.routes))
	copy(stack, r.routes)
	r.mu.Unlock()

	logger := r.logger

	return func(c *common.Context, next common.Next) error {
		handler, ok := match(stack, c.URL(), c.Method())
		if ok && handler != nil {
			return handler(c, next)
		}

		logger.Debug("No route matched",
			zap.String("method", c.Method()),
			zap.String("path", c.URL()),
		)
		return next()
	}
}

// match performs the linear first-match scan.
func match(stack []Route, path, method string) (Middleware, bool) {
	method = strings.ToLower(method)
	for _, route := range stack {
		if route.Path == path && route.Method == method {
			return route.Handler, true
		}
	}
	return nil, false
}
