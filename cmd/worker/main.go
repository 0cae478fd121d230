package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marketingops/campaign-console/internal/config"
	"github.com/marketingops/campaign-console/internal/db"
	"github.com/marketingops/campaign-console/internal/events"
	"github.com/marketingops/campaign-console/internal/repository"
	"github.com/marketingops/campaign-console/internal/worker"
)

func main() {
	// Initialize logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	logger.Info("starting campaign console worker")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Connect to database
	database, err := db.New(db.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer database.Close()

	logger.Info("connected to database")

	// Connect to the lifecycle event bus
	eventsClient, err := events.NewRedisClient(events.RedisConfig{
		URL:       cfg.Events.RedisURL,
		QueueName: cfg.Events.QueueName,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to Redis", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer eventsClient.Close()

	// Initialize dispatcher with a mock channel notifier (92% success rate)
	historyRepo := repository.NewHistoryRepository(database.DB)
	notifier := worker.NewMockNotifier(0.92)
	dispatcher := worker.NewDispatcher(historyRepo, notifier, logger)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start consuming lifecycle events
	consumerErrors := make(chan error, 1)
	go func() {
		handler := func(ctx context.Context, event *events.CampaignEvent) error {
			return dispatcher.Handle(ctx, event)
		}
		consumerErrors <- eventsClient.Consume(ctx, handler, cfg.Worker.Concurrency)
	}()

	// Wait for interrupt signal or consumer error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-consumerErrors:
		if err != nil && err != context.Canceled {
			logger.Error("consumer error", slog.String("error", err.Error()))
			os.Exit(1)
		}

	case sig := <-quit:
		logger.Info("shutting down worker", slog.String("signal", sig.String()))

		// Cancel context to stop consumer
		cancel()

		// Give the consumer time to finish in-flight events
		time.Sleep(5 * time.Second)
	}

	logger.Info("worker stopped")
}
