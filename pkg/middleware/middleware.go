// Package middleware provides a collection of onion middleware components for the SOnion framework.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/Suhaibinator/SOnion/pkg/common"
	"go.uber.org/zap"
)

// Use the Middleware type from the common package
type Middleware = common.Middleware

// Chain combines several middlewares into one. The combined middleware runs them in
// order and then continues with its own next.
func Chain(middlewares ...Middleware) Middleware {
	stack := make([]Middleware, len(middlewares))
	copy(stack, middlewares)

	return func(c *common.Context, next common.Next) error {
		tail := func(*common.Context, common.Next) error {
			return next()
		}
		chain := common.NewMiddlewareChain(stack...).Append(tail)
		return chain.Compose()(c)
	}
}

// Recovery turns a panic further down the chain into a 500 *common.HTTPError,
// so outer middleware still sees an ordinary error.
func Recovery(logger *zap.Logger) Middleware {
	return func(c *common.Context, next common.Next) (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				l := logger
				if l == nil {
					l = c.Logger()
				}
				l.Error("Panic recovered",
					zap.Any("panic", rec),
					zap.String("stack", string(debug.Stack())),
					zap.String("method", c.Method()),
					zap.String("path", c.URL()),
				)
				err = &common.HTTPError{
					StatusCode: http.StatusInternalServerError,
					Message:    http.StatusText(http.StatusInternalServerError),
					Err:        fmt.Errorf("panic: %v", rec),
				}
			}
		}()

		return next()
	}
}

// Logging is a middleware that logs requests once the rest of the chain has finished.
// When logger is nil the request-scoped logger is used.
func Logging(logger *zap.Logger) Middleware {
	return func(c *common.Context, next common.Next) error {
		start := time.Now()

		err := next()

		duration := time.Since(start)
		status := c.Status()
		if err != nil {
			status = http.StatusInternalServerError
			var httpErr *common.HTTPError
			if errors.As(err, &httpErr) {
				status = httpErr.StatusCode
			}
		}

		l := logger
		if l == nil {
			l = c.Logger()
		}

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.URL()),
			zap.Int("status", status),
			zap.Duration("duration", duration),
		}
		if traceID := GetTraceID(c); traceID != "" && logger != nil {
			fields = append([]zap.Field{zap.String("trace_id", traceID)}, fields...)
		}

		// Use appropriate log level based on status code and duration
		switch {
		case status >= 500:
			l.Error("Server error", append(fields, zap.String("remote_addr", c.Req.RemoteAddr))...)
		case status >= 400:
			l.Warn("Client error", fields...)
		case duration > 1*time.Second:
			l.Warn("Slow request", fields...)
		default:
			l.Debug("Request", fields...)
		}

		return err
	}
}

// MaxBodySize is a middleware that limits the size of the request body
func MaxBodySize(maxSize int64) Middleware {
	return func(c *common.Context, next common.Next) error {
		c.Req.Body = http.MaxBytesReader(c.Res, c.Req.Body, maxSize)
		c.Request.Req = c.Req
		return next()
	}
}

// Timeout bounds the rest of the chain with a deadline on the request context.
// Downstream middleware must watch c.Context(); once the chain returns after the
// deadline passed, the result is replaced with a 408 *common.HTTPError.
func Timeout(timeout time.Duration) Middleware {
	return func(c *common.Context, next common.Next) error {
		ctx, cancel := context.WithTimeout(c.Req.Context(), timeout)
		defer cancel()

		c.Req = c.Req.WithContext(ctx)
		c.Request.Req = c.Req

		err := next()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &common.HTTPError{
				StatusCode: http.StatusRequestTimeout,
				Message:    "Request Timeout",
				Err:        ctx.Err(),
			}
		}
		return err
	}
}
