package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DanielPopoola/edge-collector/internal/api"
	"github.com/DanielPopoola/edge-collector/internal/application"
	"github.com/DanielPopoola/edge-collector/internal/application/services"
	"github.com/DanielPopoola/edge-collector/internal/config"
	"github.com/DanielPopoola/edge-collector/internal/infrastructure/edge"
	"github.com/DanielPopoola/edge-collector/internal/infrastructure/persistence/memory"
	"github.com/DanielPopoola/edge-collector/internal/infrastructure/persistence/postgres"
	"github.com/DanielPopoola/edge-collector/internal/infrastructure/persistence/sqlite"
	"github.com/DanielPopoola/edge-collector/internal/interfaces/rest/handlers"
	"github.com/DanielPopoola/edge-collector/internal/interfaces/rest/middleware"
	"github.com/DanielPopoola/edge-collector/internal/platform/metrics"
	"github.com/DanielPopoola/edge-collector/internal/platform/otel"
	"github.com/DanielPopoola/edge-collector/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting edge collector",
		"port", cfg.Server.Port,
		"log_level", cfg.Logger.Level,
		"edge_domain", cfg.Edge.Domain,
		"cookie_backend", cfg.Cookies.Backend,
	)

	ctx := context.Background()

	shutdownTracing, err := otel.Setup(ctx, cfg.Telemetry)
	if err != nil {
		logger.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}

	store, closeStore, err := openCookieStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open cookie store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	doc, err := api.Load()
	if err != nil {
		logger.Error("failed to load openapi document", "error", err)
		os.Exit(1)
	}
	responseSchema, err := api.Schema(doc, api.SchemaEdgeResponse)
	if err != nil {
		logger.Error("failed to resolve schema", "error", err)
		os.Exit(1)
	}
	requestSchema, err := api.Schema(doc, api.SchemaSendEventRequest)
	if err != nil {
		logger.Error("failed to resolve schema", "error", err)
		os.Exit(1)
	}

	collectors := metrics.New()

	transport := edge.NewHTTPTransport(cfg.Transport, cfg.Edge, store, logger)
	retryTransport := edge.NewRetryTransport(transport, cfg.Retry, logger)

	instance := services.NewInstance(ctx, cfg.Edge, store, retryTransport, responseSchema, collectors, logger)

	h := handlers.NewHandlers(instance.Events, requestSchema, collectors, logger)

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	limiter := middleware.NewClientLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, 10*time.Minute)
	trustedProxies, err := middleware.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		logger.Error("invalid trusted proxies", "error", err)
		os.Exit(1)
	}

	handler := middleware.Chain(mux,
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logging(logger),
		middleware.RateLimit(limiter, trustedProxies, logger),
		middleware.Timeout(cfg.Server.WriteTimeout),
	)

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	sweeper := worker.NewCookieSweeper(store, cfg.Cookies.SweepInterval, collectors, logger)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	go sweeper.Start(workerCtx)

	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("failed to flush traces", "error", err)
	}

	logger.Info("server exited")
}

func openCookieStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (application.CookieStore, func(), error) {
	switch cfg.Cookies.Backend {
	case "memory":
		return memory.NewCookieStore(), func() {}, nil

	case "sqlite":
		store, err := sqlite.Open(cfg.Cookies.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				logger.Error("failed to close sqlite store", "error", err)
			}
		}, nil

	case "postgres":
		db, err := postgres.Connect(ctx, &cfg.Database, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return postgres.NewCookieRepository(db), db.Close, nil
	}

	return nil, nil, fmt.Errorf("unknown cookie backend %q", cfg.Cookies.Backend)
}
