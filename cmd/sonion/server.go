package main

import (
	"fmt"
	"net/http"

	"github.com/Suhaibinator/SOnion/pkg/admin"
	"github.com/Suhaibinator/SOnion/pkg/app"
	"github.com/Suhaibinator/SOnion/pkg/common"
	"github.com/Suhaibinator/SOnion/pkg/metrics"
	"github.com/Suhaibinator/SOnion/pkg/middleware"
	"github.com/Suhaibinator/SOnion/pkg/router"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// server bundles the app with the pieces the admin listener reports on.
type server struct {
	app       *app.App
	router    *router.Router
	collector *metrics.Collector
	admin     http.Handler
}

func page(text string) common.HandlerFunc {
	return func(c *common.Context) error {
		c.Body = text
		return nil
	}
}

// newServer wires static files, the router and CORS in that order, behind
// trace IDs, request logging and optional rate limiting.
func newServer(cfg Config, logger *zap.Logger) (*server, error) {
	collector, err := metrics.NewCollector(prometheus.NewRegistry(), metrics.DefaultMetricsConfig())
	if err != nil {
		return nil, fmt.Errorf("create metrics collector: %w", err)
	}

	r := router.NewRouter(router.RouterConfig{Logger: logger})
	r.Get("/index", common.Handler(page("index page")))
	r.Get("/post", common.Handler(page("post page")))
	r.Get("/list", common.Handler(page("list page")))
	r.Post("/index", common.Handler(page("post page")))

	a := app.New(app.AppConfig{
		Logger:         logger,
		RequestTimeout: cfg.RequestTimeout,
		Metrics:        collector,
	})

	a.Use(middleware.TraceID(), middleware.Logging(nil))
	if cfg.RateLimit > 0 {
		a.Use(
			middleware.ClientIPMiddleware(middleware.DefaultIPConfig()),
			middleware.RateLimit(&middleware.RateLimitConfig{
				BucketName: "global",
				Limit:      cfg.RateLimit,
				Window:     cfg.RateWindow,
				Strategy:   "ip",
			}, middleware.NewFixedWindowLimiter(), logger),
		)
	}
	a.Use(
		middleware.Static(cfg.StaticRoot, middleware.StaticConfig{}),
		r.Routes(),
		middleware.CORS(middleware.CORSConfig{Origin: cfg.CORSOrigin}),
	)

	return &server{
		app:       a,
		router:    r,
		collector: collector,
		admin: admin.NewHandler(admin.AdminConfig{
			Logger:    logger,
			Collector: collector,
			Router:    r,
			Ready:     a.Ready,
		}),
	}, nil
}
