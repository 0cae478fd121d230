package handler

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/marketingops/campaign-console/internal/events"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	db           *sql.DB
	eventsClient events.Client
	logger       *slog.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *sql.DB, eventsClient events.Client, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		db:           db,
		eventsClient: eventsClient,
		logger:       logger,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:   "healthy",
		Services: make(map[string]string),
	}

	// Check database
	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Error("database health check failed", slog.String("error", err.Error()))
		response.Status = "unhealthy"
		response.Services["database"] = "unhealthy"
	} else {
		response.Services["database"] = "healthy"
	}

	// Check event bus
	if h.eventsClient != nil {
		if err := h.eventsClient.Health(ctx); err != nil {
			h.logger.Error("event bus health check failed", slog.String("error", err.Error()))
			response.Status = "unhealthy"
			response.Services["events"] = "unhealthy"
		} else {
			response.Services["events"] = "healthy"
		}
	} else {
		response.Services["events"] = "not_configured"
	}

	// Return appropriate status code
	if response.Status == "healthy" {
		respondSuccess(w, response)
	} else {
		respondJSON(w, http.StatusServiceUnavailable, response)
	}
}
