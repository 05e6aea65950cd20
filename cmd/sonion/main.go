// Command sonion runs the demo SOnion server: static files, a handful of exact
// routes and CORS, with an optional admin listener for metrics and health.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		zap.NewExample().Fatal("Invalid configuration", zap.Error(err))
	}

	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = level
	logger, err := zcfg.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	defer logger.Sync()

	srv, err := newServer(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to build server", zap.Error(err))
	}

	var adminSrv *http.Server
	if cfg.AdminAddr != "" {
		adminSrv = &http.Server{Addr: cfg.AdminAddr, Handler: srv.admin}
		go func() {
			logger.Info("Admin listener started", zap.String("addr", cfg.AdminAddr))
			if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Admin listener failed", zap.Error(err))
			}
		}()
	}

	go func() {
		if err := srv.app.Listen(cfg.Addr); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()

	if adminSrv != nil {
		if err := adminSrv.Shutdown(ctx); err != nil {
			logger.Error("Admin listener shutdown failed", zap.Error(err))
		}
	}
	if err := srv.app.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Server exited gracefully")
}
