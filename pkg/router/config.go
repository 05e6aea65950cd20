// Package router provides an exact-match routing middleware for the SOnion framework.
// Routes are registered up front and consulted by a single middleware returned from Routes.
package router

import (
	"github.com/Suhaibinator/SOnion/pkg/common"
	"go.uber.org/zap"
)

// RouterConfig defines the configuration for the router.
type RouterConfig struct {
	Logger *zap.Logger // Logger for route registration and dispatch; a no-op logger is used when nil
}

// Route is one registered endpoint.
type Route struct {
	Path    string            // Exact request path, compared byte for byte
	Method  string            // Lower-case HTTP verb
	Handler common.Middleware // Invoked with the context and the continuation on a match
}

// Middleware is an alias for common.Middleware.
type Middleware = common.Middleware
