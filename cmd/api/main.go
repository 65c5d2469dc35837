// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/parley-ai/parley/internal/config"
	"github.com/parley-ai/parley/internal/container"
	"github.com/parley-ai/parley/internal/handler"
	"github.com/parley-ai/parley/internal/middleware"
	"github.com/parley-ai/parley/pkg/logger"
	"github.com/parley-ai/parley/pkg/tracing"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "parley", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Build all services. A store failure is fatal; degraded providers and
	// an unreachable event broker are not.
	c := container.New(cfg, log)
	if err := c.Initialize(ctx); err != nil {
		log.Error("failed to initialize services", zap.Error(err))
		os.Exit(1)
	}

	healthHandler := handler.NewHealthHandler(c, cfg.BackupPath)
	sessionHandler := handler.NewSessionHandler(c.Sessions(), c.Events(), log)
	messageHandler := handler.NewMessageHandler(c.Sessions(), c.Chat(), log)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Get("/stats", healthHandler.Stats)
		r.Post("/admin/backup", healthHandler.Backup)
		r.Post("/admin/restore", healthHandler.Restore)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", sessionHandler.Create)
			r.Get("/", sessionHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", sessionHandler.Get)
				r.Patch("/", sessionHandler.Update)
				r.Delete("/", sessionHandler.Delete)

				r.Get("/messages", messageHandler.List)
				r.Post("/messages", messageHandler.Append)
				r.Delete("/messages", messageHandler.Clear)

				r.Post("/exchange", messageHandler.Exchange)
			})
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop accepting requests before tearing down services so in-flight
	// exchanges can still reach the store.
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	if err := c.Shutdown(shutdownCtx); err != nil {
		log.Error("service shutdown error", zap.Error(err))
	}

	log.Info("server stopped")
}
