package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"starter/internal/api"
	"starter/internal/config"
	"starter/internal/logger"
	"starter/internal/models"
	"starter/internal/observability"
	"starter/internal/ratelimit"
	"starter/internal/todo"
	"starter/internal/version"
)

var (
	configFile  = flag.String("config", "", "Path to configuration file")
	envFile     = flag.String("env-file", "", "Path to a .env file loaded before environment overrides")
	showVersion = flag.Bool("version", false, "Print version information and exit")
	exampleOut  = flag.String("write-example-config", "", "Write an example configuration file to this path and exit")
)

func main() {
	flag.Parse()

	info := version.GetInfo()
	if *showVersion {
		fmt.Println(info.String())
		return
	}
	if *exampleOut != "" {
		if err := config.SaveExample(*exampleOut); err != nil {
			slog.Error("Failed to write example configuration", "error", err)
			os.Exit(1)
		}
		return
	}

	// Load configuration
	cfg, err := config.Load(*configFile, *envFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logging
	log, closer, err := logger.Setup(cfg.Logging, info)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	slog.SetDefault(log)

	// Initialize observability (OpenTelemetry)
	otelProvider, err := observability.Setup(cfg.Metrics, cfg.Observability, info)
	if err != nil {
		slog.Error("Failed to initialize observability", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown observability", "error", err)
		}
	}()

	// Initialize rate limiters if enabled
	var presets *ratelimit.Presets
	if cfg.RateLimit.Enabled {
		presets, err = initializeLimiters(cfg.RateLimit, otelProvider)
		if err != nil {
			slog.Error("Failed to initialize rate limiters", "error", err)
			os.Exit(1)
		}
		defer presets.Close()
	}

	handlers := api.NewHandlers(todo.NewMemoryStore(),
		api.WithVersionInfo(info),
		api.WithLimiters(presets),
	)

	routeOpts := []api.RouteOption{}
	if cfg.Observability.Tracing.Enabled {
		routeOpts = append(routeOpts, api.WithOTelMiddleware(cfg.Observability.ServiceName))
	}
	router := api.SetupRoutes(handlers, cfg, presets, routeOpts...)

	// Start metrics server if enabled
	var metricsServer *observability.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = observability.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, otelProvider)
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("Starting HTTP server",
			"addr", server.Addr,
			"rate_limit_enabled", cfg.RateLimit.Enabled,
			"static_dir", cfg.Server.StaticDir)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			slog.Error("Metrics server forced to shutdown", "error", err)
		}
	}

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server shutdown complete")
}

// initializeLimiters builds the general, strict and auth limiters from
// configuration and reports their decisions through the provider's meters.
func initializeLimiters(cfg models.RateLimitConfig, provider *observability.Provider) (*ratelimit.Presets, error) {
	extractor, err := ratelimit.ExtractorFor(cfg.KeyStrategy, cfg.KeyHeader)
	if err != nil {
		return nil, err
	}

	limiterMetrics, err := observability.NewLimiterMetrics(provider.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create limiter metrics: %w", err)
	}

	presets, err := ratelimit.NewPresets(ratelimit.PresetOverrides{
		General:      presetOverride(cfg.General),
		Strict:       presetOverride(cfg.Strict),
		Auth:         presetOverride(cfg.Auth),
		KeyExtractor: extractor,
	},
		ratelimit.WithSweep(ratelimit.SweepMode(cfg.SweepMode), cfg.SweepInterval),
		ratelimit.WithObserver(limiterMetrics),
	)
	if err != nil {
		limiterMetrics.Close()
		return nil, err
	}
	limiterMetrics.Track(presets.All()...)

	for _, l := range presets.All() {
		lc := l.Config()
		slog.Info("Rate limiter configured",
			"limiter", lc.Name,
			"window", lc.Window,
			"max_requests", lc.MaxRequests,
			"key_strategy", cfg.KeyStrategy,
			"sweep_mode", cfg.SweepMode)
	}
	return presets, nil
}

func presetOverride(pc models.PresetConfig) ratelimit.PresetOverride {
	return ratelimit.PresetOverride{
		Window:      pc.Window,
		MaxRequests: pc.MaxRequests,
		Message:     pc.Message,
	}
}
