package common

// MiddlewareChain represents an ordered chain of middleware
type MiddlewareChain []Middleware

// NewMiddlewareChain creates a new middleware chain
func NewMiddlewareChain(middlewares ...Middleware) MiddlewareChain {
	return middlewares
}

// Append adds middleware to the end of the chain
func (c MiddlewareChain) Append(middlewares ...Middleware) MiddlewareChain {
	return append(c, middlewares...)
}

// Prepend adds middleware to the beginning of the chain
func (c MiddlewareChain) Prepend(middlewares ...Middleware) MiddlewareChain {
	result := make(MiddlewareChain, len(middlewares)+len(c))
	copy(result, middlewares)
	copy(result[len(middlewares):], c)
	return result
}

// Compose snapshots the chain and returns a single entry point running it in onion order.
func (c MiddlewareChain) Compose() func(*Context) error {
	return Compose(c...)
}

// Compose turns an ordered list of middleware into one function.
// Middleware at index i receives a continuation that dispatches index i+1; the
// chain is exhausted once the index passes the end of the list, at which point
// next returns nil. The returned function only returns after every middleware
// that was reached has fully completed, or as soon as one of them returns an error
// that its callers do not handle.
//
// The list is copied, so appending to the original slice afterwards does not
// change an already composed chain. A nil entry behaves like a middleware that
// only calls next.
func Compose(middlewares ...Middleware) func(*Context) error {
	stack := make([]Middleware, len(middlewares))
	copy(stack, middlewares)

	return func(c *Context) error {
		// highest index dispatched so far, per composed invocation
		index := -1

		var dispatch func(i int) error
		dispatch = func(i int) error {
			if i <= index {
				return ErrNextCalledMultipleTimes
			}
			index = i

			if i >= len(stack) {
				return nil
			}

			m := stack[i]
			if m == nil {
				return dispatch(i + 1)
			}

			return m(c, func() error {
				return dispatch(i + 1)
			})
		}

		return dispatch(0)
	}
}
