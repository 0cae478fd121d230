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

	"github.com/go-chi/chi/v5"

	"github.com/marketingops/campaign-console/internal/config"
	"github.com/marketingops/campaign-console/internal/db"
	"github.com/marketingops/campaign-console/internal/events"
	"github.com/marketingops/campaign-console/internal/handler"
	"github.com/marketingops/campaign-console/internal/repository"
	"github.com/marketingops/campaign-console/internal/service"
)

func main() {
	// Initialize logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	logger.Info("starting campaign console API server")

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

	// Initialize repositories
	campaignRepo := repository.NewCampaignRepository(database.DB)
	templateRepo := repository.NewTemplateRepository(database.DB)
	historyRepo := repository.NewHistoryRepository(database.DB)
	resourceRepo := repository.NewResourceRepository(database.DB)

	// Initialize services
	campaignSvc := service.NewCampaignService(
		campaignRepo,
		resourceRepo,
		eventsClient,
		cfg.Cache.TTL,
		logger,
	)
	templateSvc := service.NewTemplateService(templateRepo, campaignSvc, cfg.Cache.TTL, logger)
	historySvc := service.NewHistoryService(historyRepo, campaignRepo, logger)

	// Initialize handlers
	campaignHandler := handler.NewCampaignHandler(campaignSvc, historySvc, logger)
	templateHandler := handler.NewTemplateHandler(templateSvc, logger)
	adminHandler := handler.NewAdminHandler(campaignSvc, templateSvc, logger)
	healthHandler := handler.NewHealthHandler(database.DB, eventsClient, logger)

	// Setup router
	r := chi.NewRouter()

	// Apply middleware
	r.Use(handler.RecoveryMiddleware(logger))
	r.Use(handler.LoggingMiddleware(logger))
	r.Use(handler.CORSMiddleware)
	r.Use(handler.ActorMiddleware)

	// Register routes
	r.Get("/health", healthHandler.Health)
	r.Route("/campaigns", campaignHandler.Routes)
	r.Route("/templates", templateHandler.Routes)
	r.Post("/admin/cache/reset", adminHandler.ResetCaches)

	// Create server
	addr := fmt.Sprintf(":%d", cfg.API.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("API server listening", slog.String("addr", addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Wait for interrupt signal or server error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)

	case sig := <-quit:
		logger.Info("shutting down server", slog.String("signal", sig.String()))

		// Graceful shutdown with timeout
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown failed", slog.String("error", err.Error()))
			if err := server.Close(); err != nil {
				logger.Error("forced shutdown failed", slog.String("error", err.Error()))
			}
		}

		logger.Info("server stopped")
	}
}
