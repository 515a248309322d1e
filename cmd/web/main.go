package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"basket-insights/internal/config"
	"basket-insights/internal/metrics"
	"basket-insights/internal/middleware"
	"basket-insights/internal/observability"
	"basket-insights/internal/server"
	"basket-insights/internal/services"
	"basket-insights/internal/ui/templates"
)

const (
	version       = "1.0.0"
	renderTimeout = 10 * time.Second
	loadTimeout   = 5 * time.Minute
	sweepInterval = time.Minute
	cacheMaxAge   = "public, max-age=300"
	configFileEnv = "BASKET_CONFIG_FILE"
)

func handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", cacheMaxAge)
	if err := templates.Dashboard().Render(ctx, w); err != nil {
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}

func main() {
	cfg, err := config.Load(os.Getenv(configFileEnv))
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", version,
		"addr", cfg.Address(),
		"dataset", cfg.Dataset.Path,
		"min_support", cfg.Mining.MinSupport,
		"metric", cfg.Mining.Metric,
		"min_threshold", cfg.Mining.MinThreshold,
	)

	m := metrics.New()
	analytics := services.NewAnalytics(
		services.WithOptions(services.OptionsFromConfig(cfg)),
		services.WithLogger(logger),
		services.WithMetrics(m),
	)

	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	start := time.Now()
	err = analytics.LoadFromFile(ctx, cfg.Dataset.Path)
	cancel()
	if err != nil {
		logger.Error("failed to load dataset", "path", cfg.Dataset.Path, "error", err)
		os.Exit(1)
	}
	logger.Info("dataset analysed", "duration", time.Since(start), "stats", analytics.Stats())

	srv := server.NewServer(analytics, logger, &server.TemplateHandlers{Dashboard: handleDashboard}, m)

	rateLimiter := middleware.NewRateLimiter(cfg.Security)
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go rateLimiter.Run(sweepCtx, sweepInterval)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      srv.Handler(cfg.Security, rateLimiter),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg.Server)
	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		logger.Info("stopping rate limiter sweeper")
		stopSweep()
		return nil
	})

	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
