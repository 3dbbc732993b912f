package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"langgraph-chat/app/pkg/config"
	"langgraph-chat/app/pkg/di"
	"langgraph-chat/app/pkg/logger"
	"langgraph-chat/app/pkg/router"
	"langgraph-chat/app/shared/observability"
)

func main() {
	cfg := config.New()

	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = cfg.Logging.Format != "text"
	log := logger.New(logConfig)
	logger.SetGlobal(log)

	if err := run(cfg, log); err != nil {
		log.LogError(err, "Server stopped with error")
		os.Exit(1)
	}
	log.Info("Server exited gracefully")
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Starting backend simulator",
		"version", os.Getenv("APP_VERSION"),
		"env", cfg.Server.Env,
		"storage", cfg.Server.Storage,
		"responder", cfg.Responder.Mode,
	)

	if cfg.Observability.TracingEnabled {
		shutdown, err := observability.SetupTracing("langgraph-chat-server", nil)
		if err != nil {
			return err
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(flushCtx); err != nil {
				log.LogError(err, "Failed to flush traces")
			}
		}()
	}

	container, err := di.New(ctx, cfg, log, di.Options{Seed: time.Now().UnixNano()})
	if err != nil {
		return err
	}
	defer container.Close()

	meterProvider, err := observability.SetupPrometheusMetrics(container.Registry)
	if err != nil {
		return err
	}
	defer func() { _ = meterProvider.Shutdown(context.Background()) }()

	r := router.New(container)
	if err := r.AddOpenAPIValidation(cfg.Responder.OpenAPIPath); err != nil {
		return err
	}
	r.SetupRoutes()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r.Engine,
		ReadHeaderTimeout: 10 * time.Second,
		// replies can take as long as the responder's upstream timeout
		WriteTimeout: cfg.Server.Timeout + 5*time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return container.Run(ctx) })
	g.Go(func() error {
		log.Info("Server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	var metricsSrv *http.Server
	if cfg.Observability.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.MetricsHandler(container.Registry))
		metricsSrv = &http.Server{Addr: cfg.Observability.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			log.Info("Metrics server starting", "addr", cfg.Observability.MetricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
