package common

import (
	"net/http"
	"strings"
)

// Request is a read-only view over the incoming *http.Request.
type Request struct {
	ctx *Context
	Req *http.Request
}

// Ctx returns the Context owning this facade.
func (r *Request) Ctx() *Context {
	return r.ctx
}

// Method returns the upper-case HTTP verb.
func (r *Request) Method() string {
	return r.ctx.method
}

// URL returns the path portion of the request target.
func (r *Request) URL() string {
	return r.ctx.url
}

// Query returns the first value of the named query parameter.
func (r *Request) Query(name string) string {
	if r.Req.URL == nil {
		return ""
	}
	return r.Req.URL.Query().Get(name)
}

// Header returns the incoming header table.
func (r *Request) Header() http.Header {
	return r.Req.Header
}

// Get returns the named request header. The lookup is case-insensitive and
// "Referer" and "Referrer" are interchangeable.
func (r *Request) Get(name string) string {
	switch strings.ToLower(name) {
	case "referer", "referrer":
		if v := r.Req.Header.Get("Referer"); v != "" {
			return v
		}
		return r.Req.Header.Get("Referrer")
	}
	return r.Req.Header.Get(name)
}

// Path is an alias of URL.
func (r *Request) Path() string {
	return r.ctx.url
}
