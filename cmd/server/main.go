package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/factumarket/audit-trail/internal/api"
	"github.com/factumarket/audit-trail/internal/audit"
	"github.com/factumarket/audit-trail/internal/broker"
	"github.com/factumarket/audit-trail/internal/config"
	"github.com/factumarket/audit-trail/internal/consumer"
	"github.com/factumarket/audit-trail/internal/store"
	ws "github.com/factumarket/audit-trail/internal/websocket"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// PostgreSQL
	pgStore, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()
	logger.Info("connected to PostgreSQL")

	if err := pgStore.RunMigrations(ctx, "migrations"); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrations applied")

	// Broker topology
	client, err := broker.Connect(broker.DefaultConfig(cfg.NatsURL))
	if err != nil {
		logger.Error("failed to connect to nats", "error", err)
		os.Exit(1)
	}

	if _, err := client.EnsureEventStream(ctx); err != nil {
		logger.Error("failed to ensure event stream", "error", err)
		os.Exit(1)
	}

	dlq, err := broker.NewDeadLetterQueue(ctx, client, logger)
	if err != nil {
		logger.Error("failed to ensure dead-letter stream", "error", err)
		os.Exit(1)
	}

	jsConsumer, err := client.EnsureConsumer(ctx, cfg.MaxDeliver, cfg.AckWait)
	if err != nil {
		logger.Error("failed to ensure consumer", "error", err)
		os.Exit(1)
	}
	logger.Info("broker topology ready",
		"stream", broker.EventStreamName,
		"queue", broker.ConsumerName,
		"subjects", broker.EventSubjects,
	)

	// Live feed
	hub := ws.NewHub(logger)
	go hub.Run()

	// Audit worker
	worker := consumer.New(jsConsumer, pgStore, audit.DefaultRegistry(), dlq, hub, logger, cfg.MaxDeliver)
	workerCtx, stopWorker := context.WithCancel(ctx)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(workerCtx)
	}()

	// Read API
	router := api.NewRouter(pgStore, dlq, hub)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")

	// Stop consuming first: the in-flight message finishes, anything
	// unacked goes back to the queue for redelivery.
	stopWorker()
	<-workerDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	if err := client.Drain(); err != nil {
		logger.Error("failed to drain nats connection", "error", err)
	}

	logger.Info("server stopped")
}
