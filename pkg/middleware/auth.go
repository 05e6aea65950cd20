package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/Suhaibinator/SOnion/pkg/common"
	"go.uber.org/zap"
)

// UserStateKey is the Context.State key holding the authenticated user.
const UserStateKey = "user"

// ErrUnauthenticated is returned by user providers when the request carries no valid credentials.
var ErrUnauthenticated = errors.New("unauthenticated")

// AuthProvider defines an interface for authentication providers.
// The package ships BasicAuthProvider, BearerTokenProvider and APIKeyProvider.
type AuthProvider interface {
	// Authenticate reports whether the request carries valid credentials.
	Authenticate(r *common.Request) bool
}

// BasicAuthProvider provides HTTP Basic Authentication against a fixed credential map.
type BasicAuthProvider struct {
	Credentials map[string]string // username -> password
	Realm       string
}

// Authenticate implements AuthProvider.
func (p *BasicAuthProvider) Authenticate(r *common.Request) bool {
	username, password, ok := r.Req.BasicAuth()
	if !ok {
		return false
	}

	expected, exists := p.Credentials[username]
	if !exists {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(expected)) == 1
}

// BearerTokenProvider provides Bearer Token Authentication.
// Validator takes precedence over ValidTokens when set.
type BearerTokenProvider struct {
	ValidTokens map[string]bool         // token -> valid
	Validator   func(token string) bool // optional token validator
}

// Authenticate implements AuthProvider.
func (p *BearerTokenProvider) Authenticate(r *common.Request) bool {
	token, ok := bearerToken(r)
	if !ok {
		return false
	}
	if p.Validator != nil {
		return p.Validator(token)
	}
	return p.ValidTokens[token]
}

// APIKeyProvider provides API Key Authentication from a header or a query parameter.
type APIKeyProvider struct {
	ValidKeys map[string]bool // key -> valid
	Header    string          // header name (e.g., "X-API-Key")
	Query     string          // query parameter name (e.g., "api_key")
}

// Authenticate implements AuthProvider.
func (p *APIKeyProvider) Authenticate(r *common.Request) bool {
	key := apiKey(r, p.Header, p.Query)
	return key != "" && p.ValidKeys[key]
}

// Authentication rejects requests the provider does not accept with a 401
// *common.HTTPError. Downstream middleware does not run in that case.
func Authentication(provider AuthProvider, logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *common.Context, next common.Next) error {
		if !provider.Authenticate(c.Request) {
			logger.Warn("Authentication failed",
				zap.String("method", c.Method()),
				zap.String("path", c.URL()),
				zap.String("remote_addr", c.Req.RemoteAddr),
			)
			return unauthorized(c, provider)
		}
		return next()
	}
}

// NewBasicAuthMiddleware creates a middleware that uses HTTP Basic Authentication
func NewBasicAuthMiddleware(credentials map[string]string, logger *zap.Logger) Middleware {
	return Authentication(&BasicAuthProvider{Credentials: credentials}, logger)
}

// NewBearerTokenMiddleware creates a middleware that accepts a fixed set of bearer tokens
func NewBearerTokenMiddleware(validTokens map[string]bool, logger *zap.Logger) Middleware {
	return Authentication(&BearerTokenProvider{ValidTokens: validTokens}, logger)
}

// NewAPIKeyMiddleware creates a middleware that uses API Key Authentication
func NewAPIKeyMiddleware(validKeys map[string]bool, header, query string, logger *zap.Logger) Middleware {
	return Authentication(&APIKeyProvider{ValidKeys: validKeys, Header: header, Query: query}, logger)
}

// UserAuthProvider resolves the authenticated user of a request.
type UserAuthProvider[T any] interface {
	AuthenticateUser(r *common.Request) (*T, error)
}

// UserProviderFunc adapts a function to UserAuthProvider.
type UserProviderFunc[T any] func(r *common.Request) (*T, error)

// AuthenticateUser implements UserAuthProvider.
func (f UserProviderFunc[T]) AuthenticateUser(r *common.Request) (*T, error) {
	return f(r)
}

// AuthenticationWithUser authenticates the request through provider and stores the
// resulting user under UserStateKey. A failed lookup yields a 401.
func AuthenticationWithUser[T any](provider UserAuthProvider[T], logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *common.Context, next common.Next) error {
		user, err := provider.AuthenticateUser(c.Request)
		if err != nil || user == nil {
			logger.Warn("Authentication failed",
				zap.String("method", c.Method()),
				zap.String("path", c.URL()),
				zap.Error(err),
			)
			return unauthorized(c, provider)
		}

		c.State[UserStateKey] = user
		return next()
	}
}

// BearerAuth authenticates "Authorization: Bearer <token>" requests with lookup
// and stores the returned user in the Context state.
func BearerAuth[T any](lookup func(token string) (*T, error), logger *zap.Logger) Middleware {
	provider := UserProviderFunc[T](func(r *common.Request) (*T, error) {
		token, ok := bearerToken(r)
		if !ok {
			return nil, ErrUnauthenticated
		}
		return lookup(token)
	})
	return AuthenticationWithUser[T](&bearerUserProvider[T]{provider}, logger)
}

// bearerUserProvider marks a user provider as bearer based for the challenge header.
type bearerUserProvider[T any] struct {
	UserProviderFunc[T]
}

// GetUser returns the user stored by AuthenticationWithUser, or nil.
func GetUser[T any](c *common.Context) *T {
	user, _ := c.State[UserStateKey].(*T)
	return user
}

// unauthorized builds the 401 error and the matching WWW-Authenticate challenge.
func unauthorized(c *common.Context, provider any) error {
	switch p := provider.(type) {
	case *BasicAuthProvider:
		realm := p.Realm
		if realm == "" {
			realm = "Restricted"
		}
		c.Set("WWW-Authenticate", `Basic realm="`+realm+`"`)
	case *BearerTokenProvider, interface{ bearer() }:
		c.Set("WWW-Authenticate", "Bearer")
	}
	return common.NewHTTPError(http.StatusUnauthorized, "")
}

func (bearerUserProvider[T]) bearer() {}

func bearerToken(r *common.Request) (string, bool) {
	header := r.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

func apiKey(r *common.Request, header, query string) string {
	if header != "" {
		if key := r.Get(header); key != "" {
			return key
		}
	}
	if query != "" {
		return r.Query(query)
	}
	return ""
}
