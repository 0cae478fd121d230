package handler

import (
	"log/slog"
	"net/http"

	"github.com/marketingops/campaign-console/internal/service"
)

// AdminHandler exposes operational endpoints
type AdminHandler struct {
	campaignService service.CampaignService
	templateService service.TemplateService
	logger          *slog.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(
	campaignService service.CampaignService,
	templateService service.TemplateService,
	logger *slog.Logger,
) *AdminHandler {
	return &AdminHandler{
		campaignService: campaignService,
		templateService: templateService,
		logger:          logger,
	}
}

// ResetCaches handles POST /admin/cache/reset, discarding every cached read
// so the next requests hit storage
func (h *AdminHandler) ResetCaches(w http.ResponseWriter, r *http.Request) {
	h.campaignService.ResetCaches()
	h.templateService.ResetCaches()

	h.logger.Info("read caches reset")
	respondNoContent(w)
}
