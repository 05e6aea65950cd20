package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"runtime/debug"
	"sync"

	"github.com/Suhaibinator/SOnion/pkg/codec"
	"github.com/Suhaibinator/SOnion/pkg/common"
	"go.uber.org/zap"
)

// App is the server shell. It implements http.Handler.
//
// Middleware is registered with Use during setup. The list is frozen and composed
// once, when the first request arrives or Listen/Serve is called; calling Use after
// that panics. Each request gets its own Context, so concurrent requests never
// share mutable state.
type App struct {
	config AppConfig
	logger *zap.Logger

	mu          sync.Mutex
	middlewares []common.Middleware
	frozen      bool
	handler     func(*common.Context) error

	server     *http.Server
	wg         sync.WaitGroup
	shutdown   bool
	shutdownMu sync.RWMutex
}

// New creates a new App with the given configuration.
func New(config AppConfig) *App {
	logger := config.Logger
	if logger == nil {
		// Create a default logger if none is provided
		var err error
		logger, err = zap.NewProduction()
		if err != nil {
			logger = zap.NewNop()
		}
	}

	a := &App{
		config: config,
		logger: logger,
	}
	a.middlewares = append(a.middlewares, config.Middlewares...)
	return a
}

// Use appends middleware to the chain. Registration order is execution order.
func (a *App) Use(middlewares ...common.Middleware) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.frozen {
		panic("app: Use called after the app started serving")
	}
	a.middlewares = append(a.middlewares, middlewares...)
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// compose freezes the middleware list and returns the composed chain.
func (a *App) compose() func(*common.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.frozen {
		a.frozen = true
		a.handler = common.Compose(a.middlewares...)
		a.logger.Debug("Middleware chain composed", zap.Int("middlewares", len(a.middlewares)))
	}
	return a.handler
}

// ServeHTTP implements the http.Handler interface.
// It runs the composed chain for one request and writes Context.Body exactly once.
func (a *App) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	// Add under the read lock so no Add happens once Shutdown has started waiting
	a.shutdownMu.RLock()
	if a.shutdown {
		a.shutdownMu.RUnlock()
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}
	a.wg.Add(1)
	a.shutdownMu.RUnlock()
	defer a.wg.Done()

	fn := a.compose()

	var done func(status int, bytes int64)
	if a.config.Metrics != nil {
		done = a.config.Metrics.Start(req.Method, req.URL.Path)
	}

	if a.config.RequestTimeout > 0 {
		ctx, cancel := context.WithTimeout(req.Context(), a.config.RequestTimeout)
		defer cancel()
		req = req.WithContext(ctx)
	}

	c := common.NewContext(w, req)
	c.SetLogger(a.logger)

	abandoned, err := a.run(fn, c)
	status, n := a.respond(c, err, abandoned)

	if done != nil {
		done(status, n)
	}
}

// run executes the chain, inline when no timeout is configured and on a separate
// goroutine otherwise so the shell can answer when the deadline passes.
// abandoned is true when the deadline passed first and the chain may still be touching the Context.
func (a *App) run(fn func(*common.Context) error, c *common.Context) (abandoned bool, err error) {
	if a.config.RequestTimeout <= 0 {
		return false, a.invoke(fn, c)
	}

	ctx := c.Context()
	result := make(chan error)
	gone := make(chan struct{})
	go func() {
		err := a.invoke(fn, c)
		select {
		case result <- err:
		case <-gone:
			// Nobody will write this body
			closeBody(c)
		}
	}()

	select {
	case err := <-result:
		return false, err
	case <-ctx.Done():
		// The chain keeps running in the background; its writes are dropped once we commit.
		close(gone)
		return true, &common.HTTPError{
			StatusCode: http.StatusRequestTimeout,
			Message:    "Request Timeout",
			Err:        ctx.Err(),
		}
	}
}

// invoke calls the chain and converts a panic into an error.
func (a *App) invoke(fn func(*common.Context) error, c *common.Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			c.Logger().Error("Panic recovered",
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
	return fn(c)
}

// respond commits the response and writes it. It returns the status sent and the
// number of body bytes written.
func (a *App) respond(c *common.Context, err error, abandoned bool) (int, int64) {
	if !c.Response.Commit() {
		return c.Status(), 0
	}

	if err != nil {
		if !abandoned {
			closeBody(c)
		}
		// An abandoned chain may still be swapping the request logger
		logger := a.logger
		if !abandoned {
			logger = c.Logger()
		}
		status, message := a.handleError(c, logger, err)
		h := c.Res.Header()
		h.Set("Content-Type", "text/plain; charset=utf-8")
		h.Set("X-Content-Type-Options", "nosniff")
		n, _ := codec.WriteBody(c.Res, status, message)
		return status, n
	}

	status := c.Status()
	if !validStatus(status) {
		closeBody(c)
		c.Logger().Error("Invalid response status",
			zap.String("method", c.Method()),
			zap.String("path", c.URL()),
			zap.Int("status", status),
		)
		http.Error(c.Res, "Internal Server Error", http.StatusInternalServerError)
		return http.StatusInternalServerError, 0
	}

	n, werr := codec.WriteBody(c.Res, status, c.Body)
	if werr != nil {
		c.Logger().Error("Failed to write response",
			zap.Error(werr),
			zap.String("method", c.Method()),
			zap.String("path", c.URL()),
			zap.Int("status", status),
		)

		var encErr *codec.EncodeError
		if errors.As(werr, &encErr) {
			// Nothing reached the client yet
			http.Error(c.Res, "Internal Server Error", http.StatusInternalServerError)
			return http.StatusInternalServerError, 0
		}
	}
	return status, n
}

// handleError logs a chain failure and maps it to a status and a body.
// *common.HTTPError values keep their status and message; anything else becomes a 500.
func (a *App) handleError(c *common.Context, logger *zap.Logger, err error) (int, string) {
	statusCode := http.StatusInternalServerError
	message := http.StatusText(statusCode)

	var httpErr *common.HTTPError
	if errors.As(err, &httpErr) {
		statusCode = httpErr.StatusCode
		message = httpErr.Message
	}

	fields := []zap.Field{
		zap.Error(err),
		zap.String("method", c.Method()),
		zap.String("path", c.URL()),
		zap.Int("status", statusCode),
	}
	if !validStatus(statusCode) {
		logger.Error("Invalid response status", fields...)
		statusCode = http.StatusInternalServerError
		message = http.StatusText(statusCode)
	} else if statusCode >= 500 {
		logger.Error("Middleware chain failed", fields...)
	} else {
		logger.Warn("Middleware chain failed", fields...)
	}

	return statusCode, message
}

// validStatus reports whether net/http accepts code in WriteHeader.
func validStatus(code int) bool {
	return code >= 100 && code <= 999
}

// closeBody closes Context.Body when it holds a resource such as an open file.
func closeBody(c *common.Context) {
	if closer, ok := c.Body.(io.Closer); ok {
		_ = closer.Close()
	}
}

// Listen opens a TCP listener on addr and serves until Shutdown is called.
// It returns nil after a graceful shutdown.
func (a *App) Listen(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return a.Serve(l)
}

// Serve serves requests accepted on l until Shutdown is called.
func (a *App) Serve(l net.Listener) error {
	a.compose()

	srv := &http.Server{
		Handler:           a,
		ReadHeaderTimeout: a.config.ReadHeaderTimeout,
		ErrorLog:          zap.NewStdLog(a.logger),
	}

	a.shutdownMu.Lock()
	if a.shutdown {
		a.shutdownMu.Unlock()
		_ = l.Close()
		return http.ErrServerClosed
	}
	a.server = srv
	a.shutdownMu.Unlock()

	a.logger.Info("Server listening", zap.String("addr", l.Addr().String()))

	err := srv.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// ErrShuttingDown is returned by Ready once Shutdown has been called.
var ErrShuttingDown = errors.New("app: shutting down")

// Ready reports whether the app still accepts requests.
func (a *App) Ready() error {
	a.shutdownMu.RLock()
	defer a.shutdownMu.RUnlock()
	if a.shutdown {
		return ErrShuttingDown
	}
	return nil
}

// Shutdown gracefully shuts down the app.
// It stops accepting new requests and waits for in-flight requests to complete.
// If the context is canceled before all requests complete, it returns the context's error.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownMu.Lock()
	a.shutdown = true
	srv := a.server
	a.shutdownMu.Unlock()

	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			return err
		}
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		a.logger.Info("Server stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
