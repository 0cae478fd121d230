package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/marketingops/campaign-console/internal/events"
	"github.com/marketingops/campaign-console/internal/models"
	"github.com/marketingops/campaign-console/internal/repository"
)

// Dispatcher consumes lifecycle events and notifies the execution channel
// (mailing or call provider) so running campaigns start, stop or adjust.
type Dispatcher struct {
	historyRepo repository.HistoryRepository
	notifier    ChannelNotifier
	logger      *slog.Logger
}

// NewDispatcher creates a new lifecycle event dispatcher
func NewDispatcher(
	historyRepo repository.HistoryRepository,
	notifier ChannelNotifier,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		historyRepo: historyRepo,
		notifier:    notifier,
		logger:      logger,
	}
}

// Handle processes a single lifecycle event. Notification failures on
// activation are recorded in the campaign's history so operators can see why
// a campaign never went out.
func (d *Dispatcher) Handle(ctx context.Context, event *events.CampaignEvent) error {
	d.logger.Info("dispatching lifecycle event",
		slog.Int64("campaign_id", event.CampaignID),
		slog.String("action", string(event.Action)),
		slog.String("channel", event.Channel),
	)

	err := d.notifier.Notify(ctx, event)
	if err == nil {
		return nil
	}

	d.logger.Warn("channel notification failed",
		slog.Int64("campaign_id", event.CampaignID),
		slog.String("action", string(event.Action)),
		slog.String("error", err.Error()),
	)

	if event.Action == models.ActionActivate {
		entry := &models.HistoryEntry{
			CampaignID: event.CampaignID,
			Action:     models.ActionExecutionError,
			Actor:      "worker",
			Detail:     fmt.Sprintf("activation dispatch failed: %s", err.Error()),
		}
		if appendErr := d.historyRepo.Append(ctx, entry); appendErr != nil {
			d.logger.Error("failed to record execution error",
				slog.Int64("campaign_id", event.CampaignID),
				slog.String("error", appendErr.Error()),
			)
		}
	}

	return fmt.Errorf("failed to notify channel: %w", err)
}
