package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/marketingops/campaign-console/internal/config"
	"github.com/marketingops/campaign-console/internal/db"
	"github.com/marketingops/campaign-console/internal/events"
	"github.com/marketingops/campaign-console/internal/repository"
	"github.com/marketingops/campaign-console/internal/scheduler"
	"github.com/marketingops/campaign-console/internal/service"
)

func main() {
	// Initialize logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	logger.Info("starting campaign console scheduler")

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

	// Connect to the lifecycle event bus so scheduled transitions reach the
	// execution channel like any other transition
	eventsClient, err := events.NewRedisClient(events.RedisConfig{
		URL:       cfg.Events.RedisURL,
		QueueName: cfg.Events.QueueName,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to Redis", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer eventsClient.Close()

	// The scheduler drives transitions through the campaign service
	campaignRepo := repository.NewCampaignRepository(database.DB)
	resourceRepo := repository.NewResourceRepository(database.DB)
	campaignSvc := service.NewCampaignService(
		campaignRepo,
		resourceRepo,
		eventsClient,
		cfg.Cache.TTL,
		logger,
	)

	sched := scheduler.New(
		campaignRepo,
		campaignSvc,
		cfg.Scheduler.PollInterval,
		cfg.Scheduler.BatchSize,
		logger,
	)

	// Run until interrupted
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-quit
		logger.Info("shutting down scheduler", slog.String("signal", sig.String()))
		cancel()
	}()

	if err := sched.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("scheduler error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("scheduler stopped")
}
