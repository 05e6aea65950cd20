package middleware

import (
	"net"
	"strings"

	"github.com/Suhaibinator/SOnion/pkg/common"
)

// IPSourceType defines the source for client IP addresses
type IPSourceType string

const (
	// IPSourceRemoteAddr uses the request's RemoteAddr field
	IPSourceRemoteAddr IPSourceType = "remote_addr"

	// IPSourceXForwardedFor uses the X-Forwarded-For header
	IPSourceXForwardedFor IPSourceType = "x_forwarded_for"

	// IPSourceXRealIP uses the X-Real-IP header
	IPSourceXRealIP IPSourceType = "x_real_ip"

	// IPSourceCustomHeader uses a custom header specified in the configuration
	IPSourceCustomHeader IPSourceType = "custom_header"
)

// IPConfig defines configuration for IP extraction
type IPConfig struct {
	// Source specifies where to extract the client IP from
	Source IPSourceType

	// CustomHeader is the name of the custom header to use when Source is IPSourceCustomHeader
	CustomHeader string

	// TrustProxy determines whether to trust proxy headers like X-Forwarded-For.
	// If false, RemoteAddr is always used.
	TrustProxy bool
}

// DefaultIPConfig returns the default IP configuration
func DefaultIPConfig() *IPConfig {
	return &IPConfig{
		Source:     IPSourceXForwardedFor,
		TrustProxy: true,
	}
}

// ClientIPStateKey is the Context.State key holding the client IP.
const ClientIPStateKey = "client_ip"

// ClientIP returns the client IP stored by ClientIPMiddleware, or an empty string.
func ClientIP(c *common.Context) string {
	if ip, ok := c.State[ClientIPStateKey].(string); ok {
		return ip
	}
	return ""
}

// ClientIPMiddleware resolves the client IP once per request and stores it in the Context state.
func ClientIPMiddleware(config *IPConfig) Middleware {
	if config == nil {
		config = DefaultIPConfig()
	}

	return func(c *common.Context, next common.Next) error {
		c.State[ClientIPStateKey] = extractClientIP(c.Request, config)
		return next()
	}
}

// extractClientIP picks the client address according to the configuration
func extractClientIP(r *common.Request, config *IPConfig) string {
	var ip string

	if config.TrustProxy {
		switch config.Source {
		case IPSourceXRealIP:
			ip = r.Get("X-Real-IP")
		case IPSourceCustomHeader:
			ip = r.Get(config.CustomHeader)
		case IPSourceRemoteAddr:
			ip = r.Req.RemoteAddr
		default:
			ip = firstForwardedFor(r.Get("X-Forwarded-For"))
		}
	}

	if ip == "" {
		ip = r.Req.RemoteAddr
	}

	return cleanIP(strings.TrimSpace(ip))
}

// firstForwardedFor returns the leftmost (original client) entry of an X-Forwarded-For value
func firstForwardedFor(xff string) string {
	if xff == "" {
		return ""
	}
	first, _, _ := strings.Cut(xff, ",")
	return strings.TrimSpace(first)
}

// cleanIP strips a port and IPv6 brackets when present
func cleanIP(ip string) string {
	if host, _, err := net.SplitHostPort(ip); err == nil {
		return host
	}
	return strings.TrimSuffix(strings.TrimPrefix(ip, "["), "]")
}
