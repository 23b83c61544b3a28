package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/wolfman30/medassist/internal/api/router"
	appconfig "github.com/wolfman30/medassist/internal/config"
	"github.com/wolfman30/medassist/internal/conversation"
	"github.com/wolfman30/medassist/internal/observability/metrics"
	"github.com/wolfman30/medassist/internal/scheduling"
	"github.com/wolfman30/medassist/pkg/logging"
)

func main() {
	// Load .env if present, then configuration
	_ = godotenv.Load()
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel, cfg.Env)
	logger.Info("starting medassist API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"scheduling_base_url", cfg.SchedulingBaseURL,
	)

	// Metrics
	registry := prometheus.NewRegistry()
	dialogueMetrics := metrics.NewDialogueMetrics(registry)

	// Backing scheduling service client
	schedulingClient := scheduling.NewClient(cfg.SchedulingBaseURL,
		scheduling.WithHTTPClient(&http.Client{Timeout: cfg.SchedulingTimeout}),
		scheduling.WithLogger(logger),
		scheduling.WithMetrics(dialogueMetrics),
	)

	// Optional turn transcript store
	var transcriptStore *conversation.TranscriptStore
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		transcriptStore = conversation.NewTranscriptStore(redis.NewClient(opts))
		logger.Info("turn transcript store enabled", "addr", cfg.RedisAddr)
	}

	// Conversation engine and handler
	engine := conversation.NewEngine(schedulingClient, cfg.Departments, logger, dialogueMetrics)
	conversationHandler := conversation.NewHandler(engine, schedulingClient, transcriptStore, logger)

	// Setup router
	r := router.New(&router.Config{
		Logger:              logger,
		ConversationHandler: conversationHandler,
		MetricsHandler:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
