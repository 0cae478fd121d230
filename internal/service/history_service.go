package service

import (
	"context"
	"log/slog"

	"github.com/marketingops/campaign-console/internal/models"
	"github.com/marketingops/campaign-console/internal/repository"
)

// HistoryService exposes a campaign's append-only audit trail. Entries are
// written by the campaign repository alongside the mutations they record, so
// this service is read-only.
type HistoryService interface {
	ListByCampaign(ctx context.Context, campaignID int64) ([]*models.HistoryEntry, error)
}

type historyService struct {
	historyRepo  repository.HistoryRepository
	campaignRepo repository.CampaignRepository
	logger       *slog.Logger
}

// NewHistoryService creates a new history service
func NewHistoryService(
	historyRepo repository.HistoryRepository,
	campaignRepo repository.CampaignRepository,
	logger *slog.Logger,
) HistoryService {
	return &historyService{
		historyRepo:  historyRepo,
		campaignRepo: campaignRepo,
		logger:       logger,
	}
}

// ListByCampaign returns a campaign's history, oldest first. The campaign
// must exist; an existing campaign with no recorded actions yet gets an
// empty slice, not an error.
func (s *historyService) ListByCampaign(ctx context.Context, campaignID int64) ([]*models.HistoryEntry, error) {
	if _, err := s.campaignRepo.GetByID(ctx, campaignID); err != nil {
		return nil, err
	}
	return s.historyRepo.ListByCampaign(ctx, campaignID)
}
