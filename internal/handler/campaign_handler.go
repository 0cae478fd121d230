package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/marketingops/campaign-console/internal/models"
	"github.com/marketingops/campaign-console/internal/service"
)

// CampaignHandler handles campaign HTTP requests
type CampaignHandler struct {
	campaignService service.CampaignService
	historyService  service.HistoryService
	logger          *slog.Logger
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(
	campaignService service.CampaignService,
	historyService service.HistoryService,
	logger *slog.Logger,
) *CampaignHandler {
	return &CampaignHandler{
		campaignService: campaignService,
		historyService:  historyService,
		logger:          logger,
	}
}

// Routes mounts the campaign endpoints on r
func (h *CampaignHandler) Routes(r chi.Router) {
	r.Post("/", h.CreateCampaign)
	r.Get("/", h.ListCampaigns)
	r.Get("/{id}", h.GetCampaign)
	r.Put("/{id}", h.EditCampaign)
	r.Delete("/{id}", h.DeleteCampaign)
	r.Get("/{id}/history", h.GetHistory)
	r.Get("/{id}/stats", h.GetStats)
	r.Post("/{id}/schedule", h.ScheduleCampaign)
	r.Post("/{id}/reschedule", h.RescheduleCampaign)
	r.Post("/{id}/activate", h.ActivateCampaign)
	r.Post("/{id}/pause", h.PauseCampaign)
	r.Post("/{id}/resume", h.ResumeCampaign)
	r.Post("/{id}/cancel", h.CancelCampaign)
	r.Post("/{id}/finish", h.FinishCampaign)
	r.Post("/{id}/archive", h.ArchiveCampaign)
	r.Post("/{id}/duplicate", h.DuplicateCampaign)
}

// pathID parses the {id} route parameter
func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// CreateCampaign handles POST /campaigns
func (h *CampaignHandler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req service.CreateCampaignRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}

	campaign, err := h.campaignService.Create(r.Context(), &req)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondCreated(w, campaign)
}

// ListCampaigns handles GET /campaigns
func (h *CampaignHandler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page, _ := strconv.Atoi(query.Get("page"))
	pageSize, _ := strconv.Atoi(query.Get("page_size"))

	filter := models.CampaignFilter{
		Name:     query.Get("name"),
		State:    query.Get("state"),
		Priority: query.Get("priority"),
		Channel:  query.Get("channel"),
		Page:     page,
		PageSize: pageSize,
	}

	// Archived campaigns are hidden unless asked for explicitly
	if v := query.Get("archived"); v != "" {
		archived, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_FILTER", "archived must be true or false")
			return
		}
		filter.Archived = &archived
	}

	result, err := h.campaignService.List(r.Context(), filter)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, result)
}

// GetCampaign handles GET /campaigns/{id}
func (h *CampaignHandler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Invalid campaign ID")
		return
	}

	campaign, err := h.campaignService.GetByID(r.Context(), id)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, campaign)
}

// EditCampaign handles PUT /campaigns/{id}
func (h *CampaignHandler) EditCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Invalid campaign ID")
		return
	}

	var req service.EditCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}

	campaign, err := h.campaignService.Edit(r.Context(), id, &req)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, campaign)
}

// DeleteCampaign handles DELETE /campaigns/{id}
func (h *CampaignHandler) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Invalid campaign ID")
		return
	}

	if err := h.campaignService.Delete(r.Context(), id); err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondNoContent(w)
}

// GetHistory handles GET /campaigns/{id}/history
func (h *CampaignHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Invalid campaign ID")
		return
	}

	entries, err := h.historyService.ListByCampaign(r.Context(), id)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, entries)
}

// GetStats handles GET /campaigns/{id}/stats
func (h *CampaignHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Invalid campaign ID")
		return
	}

	stats, err := h.campaignService.GetStats(r.Context(), id)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, stats)
}

// ScheduleCampaign handles POST /campaigns/{id}/schedule
func (h *CampaignHandler) ScheduleCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Invalid campaign ID")
		return
	}

	var req service.ScheduleCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}

	campaign, err := h.campaignService.Schedule(r.Context(), id, &req)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, campaign)
}

// RescheduleCampaign handles POST /campaigns/{id}/reschedule
func (h *CampaignHandler) RescheduleCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Invalid campaign ID")
		return
	}

	var req service.RescheduleCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}

	campaign, err := h.campaignService.Reschedule(r.Context(), id, &req)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, campaign)
}

// ActivateCampaign handles POST /campaigns/{id}/activate
func (h *CampaignHandler) ActivateCampaign(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.campaignService.Activate)
}

// ResumeCampaign handles POST /campaigns/{id}/resume
func (h *CampaignHandler) ResumeCampaign(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.campaignService.Resume)
}

// FinishCampaign handles POST /campaigns/{id}/finish
func (h *CampaignHandler) FinishCampaign(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.campaignService.Finish)
}

// ArchiveCampaign handles POST /campaigns/{id}/archive
func (h *CampaignHandler) ArchiveCampaign(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.campaignService.Archive)
}

// DuplicateCampaign handles POST /campaigns/{id}/duplicate
func (h *CampaignHandler) DuplicateCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Invalid campaign ID")
		return
	}

	campaign, err := h.campaignService.Duplicate(r.Context(), id)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondCreated(w, campaign)
}

// PauseCampaign handles POST /campaigns/{id}/pause
func (h *CampaignHandler) PauseCampaign(w http.ResponseWriter, r *http.Request) {
	h.reasonedTransition(w, r, h.campaignService.Pause)
}

// CancelCampaign handles POST /campaigns/{id}/cancel
func (h *CampaignHandler) CancelCampaign(w http.ResponseWriter, r *http.Request) {
	h.reasonedTransition(w, r, h.campaignService.Cancel)
}

// transition handles the payload-free lifecycle endpoints
func (h *CampaignHandler) transition(
	w http.ResponseWriter,
	r *http.Request,
	apply func(ctx context.Context, id int64) (*models.Campaign, error),
) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Invalid campaign ID")
		return
	}

	campaign, err := apply(r.Context(), id)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, campaign)
}

// reasonedTransition handles the lifecycle endpoints that require a reason
func (h *CampaignHandler) reasonedTransition(
	w http.ResponseWriter,
	r *http.Request,
	apply func(ctx context.Context, id int64, req *service.ReasonRequest) (*models.Campaign, error),
) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Invalid campaign ID")
		return
	}

	var req service.ReasonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}

	campaign, err := apply(r.Context(), id, &req)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, campaign)
}
