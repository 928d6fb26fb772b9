package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpRouter "eurofx-service/internal/adapter/http"
	"eurofx-service/internal/app"
	"eurofx-service/internal/config"
	"eurofx-service/internal/metrics"
	"eurofx-service/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

func main() {
	log := logger.NewLogger(os.Getenv("LOG_LEVEL"))
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log); err != nil {
		log.Error("Service stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("Server exited")
}

func run(ctx context.Context, log *logger.Logger) error {
	log.Info("Starting exchange rate service")

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appMetrics := metrics.NewMetrics(prometheus.DefaultRegisterer)

	rates, err := app.New(cfg, appMetrics, log)
	if err != nil {
		return err
	}

	handler := httpRouter.NewHandler(rates.Service, log, appMetrics)
	router := httpRouter.NewRouter(handler, log, appMetrics, prometheus.DefaultGatherer)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router.SetupRoutes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runWarmup(gctx, cfg.Warmup, cfg.Source.Timeout, rates, log.With("component", "warmup"))
	})

	g.Go(func() error {
		return serveHTTP(gctx, server, log)
	})

	return g.Wait()
}

func serveHTTP(ctx context.Context, server *http.Server, log *logger.Logger) error {
	go func() {
		<-ctx.Done()
		log.Info("Shutting down server...")

		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutCtx); err != nil {
			log.Error("Server forced to shutdown", "error", err)
		}
	}()

	log.Info("Starting HTTP server", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
