package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"proiezioni/internal/cli"
	apphttp "proiezioni/internal/http"
	applog "proiezioni/internal/log"
	"proiezioni/internal/services"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig(nil)
	if err != nil {
		cli.SetupLogger(applog.ComponentApp, nil).Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(applog.ComponentApp, cfg)

	res, err := cli.OpenBackend(context.Background(), logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer res.Close()

	svc := res.Service(
		services.NewProjectionEngine(cfg.ProjectionMaxDays),
		services.WithLogger(logger.WithComponent(applog.ComponentScenario).Logger),
	)

	checks := make([]apphttp.ReadinessCheck, 0, len(res.Checks))
	for _, c := range res.Checks {
		checks = append(checks, apphttp.ReadinessCheck{Name: c.Name, Check: c.Check})
	}
	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
		Checks:             checks,
	})

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	_, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	logger.Info("Starting proiezioni server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		_ = res.Close()
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
