package common

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Context is the per-request state threaded through the middleware chain.
// A Context is created for exactly one request and must not be shared with
// another one. Req and Res are also reachable through the Request and Response
// facades; both naming conventions resolve to the same objects.
type Context struct {
	Req      *http.Request
	Res      http.ResponseWriter
	Request  *Request
	Response *Response

	// Body is written once by the server shell after the chain completes.
	// nil yields an empty response body.
	Body any

	// State carries values between middleware of the same request.
	State map[string]any

	url    string
	method string
	logger *zap.Logger
}

// NewContext builds a fresh Context and its facades for one request/response pair.
// URL and method are captured here and never change afterwards.
func NewContext(w http.ResponseWriter, r *http.Request) *Context {
	c := &Context{
		Req:    r,
		Res:    w,
		State:  make(map[string]any),
		method: strings.ToUpper(r.Method),
		logger: zap.NewNop(),
	}
	if r.URL != nil {
		c.url = r.URL.Path
	}
	c.Request = &Request{ctx: c, Req: r}
	c.Response = &Response{ctx: c, Res: w}
	return c
}

// URL returns the path portion of the request target.
func (c *Context) URL() string {
	return c.url
}

// Method returns the upper-case HTTP verb of the request.
func (c *Context) Method() string {
	return c.method
}

// Get returns a request header, looked up case-insensitively.
func (c *Context) Get(name string) string {
	return c.Request.Get(name)
}

// Set sets a response header. It is the same operation as c.Response.Set.
func (c *Context) Set(name, value string) {
	c.Response.Set(name, value)
}

// Status returns the response status code.
func (c *Context) Status() int {
	return c.Response.Status()
}

// SetStatus sets the response status code.
func (c *Context) SetStatus(code int) {
	c.Response.SetStatus(code)
}

// Context returns the request's context.Context. It is cancelled when the client
// goes away or when the server's request timeout expires.
func (c *Context) Context() context.Context {
	return c.Req.Context()
}

// Logger returns the request-scoped logger. It is never nil.
func (c *Context) Logger() *zap.Logger {
	return c.logger
}

// SetLogger replaces the request-scoped logger. A nil logger is ignored.
func (c *Context) SetLogger(logger *zap.Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// Throw returns an *HTTPError that the server shell turns into a response
// with the given status. Typical use is `return c.Throw(http.StatusForbidden, "")`.
func (c *Context) Throw(statusCode int, message string) error {
	return NewHTTPError(statusCode, message)
}
