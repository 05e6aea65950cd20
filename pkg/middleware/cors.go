package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Suhaibinator/SOnion/pkg/common"
)

// CORSConfig defines the configuration for CORS.
type CORSConfig struct {
	// Origin is sent verbatim as Access-Control-Allow-Origin when non-empty.
	Origin string

	// OriginFunc computes the allowed origin per request. Returning false skips CORS
	// handling for the request. It is consulted when Origin is empty.
	OriginFunc func(r *common.Request) (string, bool)

	// DisableOrigin turns the middleware into a pass-through.
	DisableOrigin bool

	// Methods defaults to GET,HEAD,PUT,POST,DELETE.
	Methods []string

	Expose []string

	// MaxAge in seconds. Only sent when positive.
	MaxAge int

	Credentials bool

	// Headers allowed on the actual request. When empty the preflight's
	// Access-Control-Request-Headers value is echoed back.
	Headers []string
}

// DefaultCORSMethods is used when CORSConfig.Methods is empty.
var DefaultCORSMethods = []string{"GET", "HEAD", "PUT", "POST", "DELETE"}

// CORS sets the Access-Control-* response headers and then continues the chain.
// OPTIONS requests are answered with 204 and do not reach downstream middleware.
//
// Without Origin or OriginFunc the request's Origin header is echoed, or "*" when
// the request has none.
func CORS(config CORSConfig) Middleware {
	methods := config.Methods
	if len(methods) == 0 {
		methods = DefaultCORSMethods
	}
	allowMethods := strings.Join(methods, ",")
	expose := strings.Join(config.Expose, ",")
	allowHeaders := strings.Join(config.Headers, ",")
	var maxAge string
	if config.MaxAge > 0 {
		maxAge = strconv.Itoa(config.MaxAge)
	}

	return func(c *common.Context, next common.Next) error {
		if config.DisableOrigin {
			return next()
		}

		origin, ok := resolveOrigin(c, config)
		if !ok {
			return next()
		}

		c.Set("Access-Control-Allow-Origin", origin)
		if expose != "" {
			c.Set("Access-Control-Expose-Headers", expose)
		}
		if maxAge != "" {
			c.Set("Access-Control-Max-Age", maxAge)
		}
		if config.Credentials {
			c.Set("Access-Control-Allow-Credentials", "true")
		}
		c.Set("Access-Control-Allow-Methods", allowMethods)

		headers := allowHeaders
		if headers == "" {
			headers = c.Get("Access-Control-Request-Headers")
		}
		if headers != "" {
			c.Set("Access-Control-Allow-Headers", headers)
		}

		if c.Method() == http.MethodOptions {
			c.SetStatus(http.StatusNoContent)
			return nil
		}
		return next()
	}
}

func resolveOrigin(c *common.Context, config CORSConfig) (string, bool) {
	switch {
	case config.Origin != "":
		return config.Origin, true
	case config.OriginFunc != nil:
		return config.OriginFunc(c.Request)
	}
	if origin := c.Get("Origin"); origin != "" {
		return origin, true
	}
	return "*", true
}
