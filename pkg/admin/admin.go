// Package admin exposes operational endpoints for a running SOnion app on a separate listener.
package admin

import (
	"net/http"
	"strings"

	"github.com/Suhaibinator/SOnion/pkg/codec"
	"github.com/Suhaibinator/SOnion/pkg/metrics"
	"github.com/Suhaibinator/SOnion/pkg/router"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// AdminConfig defines the configuration for the admin handler.
type AdminConfig struct {
	Logger    *zap.Logger
	Collector *metrics.Collector // serves /metrics when set
	Router    *router.Router     // serves /routes when set
	Ready     func() error       // /healthz reports 503 when it returns an error
}

// RouteInfo describes one registered route in /routes responses.
type RouteInfo struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

type healthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// NewHandler builds the admin handler:
//
//	GET /healthz          readiness probe
//	GET /metrics          Prometheus exposition
//	GET /routes           every registered route
//	GET /routes/:method   routes registered for one method
func NewHandler(config AdminConfig) http.Handler {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	hr := httprouter.New()
	hr.GET("/healthz", healthz(config.Ready, logger))

	if config.Collector != nil {
		hr.Handler(http.MethodGet, "/metrics", config.Collector.Handler())
	}

	if config.Router != nil {
		hr.GET("/routes", routes(config.Router, logger))
		hr.GET("/routes/:method", routes(config.Router, logger))
	}

	hr.PanicHandler = func(w http.ResponseWriter, r *http.Request, v any) {
		logger.Error("Admin handler panic",
			zap.Any("panic", v),
			zap.String("path", r.URL.Path),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}

	return hr
}

func healthz(ready func() error, logger *zap.Logger) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		status := http.StatusOK
		body := healthResponse{Status: "ok"}
		if ready != nil {
			if err := ready(); err != nil {
				status = http.StatusServiceUnavailable
				body = healthResponse{Status: "unavailable", Error: err.Error()}
			}
		}
		write(w, status, body, logger)
	}
}

func routes(rt *router.Router, logger *zap.Logger) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		method := strings.ToLower(ps.ByName("method"))

		infos := make([]RouteInfo, 0)
		for _, route := range rt.Entries() {
			if method != "" && route.Method != method {
				continue
			}
			infos = append(infos, RouteInfo{Method: strings.ToUpper(route.Method), Path: route.Path})
		}
		write(w, http.StatusOK, infos, logger)
	}
}

func write(w http.ResponseWriter, status int, body any, logger *zap.Logger) {
	if _, err := codec.WriteBody(w, status, body); err != nil {
		logger.Error("Failed to write admin response", zap.Error(err))
	}
}
