package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/marketingops/campaign-console/internal/models"
)

// handleError maps service errors to HTTP responses.
//
//	validation failure        -> 400 with the collected field list
//	invalid transition        -> 409, the campaign state rejects the operation
//	dependency conflict       -> 409, a dependent object blocks the operation
//	unresolved reference      -> 422, the payload names an unknown resource
//	not found                 -> 404
//	persistence failure       -> 500, details logged but not exposed
func handleError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var verrs models.ValidationErrors
	if errors.As(err, &verrs) {
		respondValidationErrors(w, verrs)
		return
	}

	var transErr *models.InvalidTransitionError
	if errors.As(err, &transErr) {
		respondError(w, http.StatusConflict, "INVALID_TRANSITION", transErr.Error())
		return
	}

	var depErr *models.DependencyConflictError
	if errors.As(err, &depErr) {
		respondError(w, http.StatusConflict, "DEPENDENCY_CONFLICT", depErr.Error())
		return
	}

	var refErr *models.ReferenceNotFoundError
	if errors.As(err, &refErr) {
		respondError(w, http.StatusUnprocessableEntity, "REFERENCE_NOT_FOUND", refErr.Error())
		return
	}

	if errors.Is(err, models.ErrNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}

	// Log internal errors but don't expose details to client
	logger.Error("internal server error",
		slog.String("error", err.Error()),
	)
	respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred")
}
