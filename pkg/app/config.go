// Package app provides the SOnion server shell: it owns the middleware list,
// builds a Context per request, runs the composed chain and writes the response.
package app

import (
	"time"

	"github.com/Suhaibinator/SOnion/pkg/common"
	"github.com/Suhaibinator/SOnion/pkg/metrics"
	"go.uber.org/zap"
)

// AppConfig defines the global configuration for the application.
type AppConfig struct {
	Logger      *zap.Logger         // Logger for all server shell operations
	Middlewares []common.Middleware // Initial middleware, equivalent to calling Use for each in order

	// RequestTimeout bounds the time a chain may run. Zero disables the bound, in which
	// case a middleware that never returns keeps its connection open indefinitely.
	RequestTimeout time.Duration

	ReadHeaderTimeout time.Duration      // Passed to the http.Server created by Listen
	Metrics           *metrics.Collector // Optional request metrics
}
