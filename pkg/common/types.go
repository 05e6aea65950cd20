// Package common provides shared types and utilities used across the SOnion framework.
package common

// Next is the continuation handed to every middleware.
// Calling it runs the rest of the chain and returns once every downstream
// middleware, including the code after their own calls to next, has finished.
type Next func() error

// Middleware is a unit of request-processing logic.
// Code placed before the call to next runs on the way in, code placed after it
// runs on the way out. Returning without calling next short-circuits the chain.
type Middleware func(c *Context, next Next) error

// HandlerFunc is a terminal handler that does not need the continuation.
type HandlerFunc func(c *Context) error

// Handler adapts a HandlerFunc into a Middleware that never calls next.
func Handler(h HandlerFunc) Middleware {
	return func(c *Context, _ Next) error {
		return h(c)
	}
}
