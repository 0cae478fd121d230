package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/marketingops/campaign-console/internal/models"
)

// dueLister is the slice of the campaign repository the scheduler reads from
type dueLister interface {
	ListDueForActivation(ctx context.Context, now time.Time, limit int) ([]*models.Campaign, error)
	ListDueForFinish(ctx context.Context, now time.Time, limit int) ([]*models.Campaign, error)
}

// transitioner is the slice of the campaign service the scheduler drives.
// Going through the service keeps the transition table, history and events in
// the loop; the scheduler is only a clock.
type transitioner interface {
	Activate(ctx context.Context, id int64) (*models.Campaign, error)
	Finish(ctx context.Context, id int64) (*models.Campaign, error)
}

// Scheduler polls for campaigns whose execution window has opened or closed
// and applies the corresponding transition. Time alone never changes state;
// every change goes through the campaign service like any other caller.
type Scheduler struct {
	repo         dueLister
	svc          transitioner
	pollInterval time.Duration
	batchSize    int
	logger       *slog.Logger
}

// New creates a new scheduler
func New(repo dueLister, svc transitioner, pollInterval time.Duration, batchSize int, logger *slog.Logger) *Scheduler {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Scheduler{
		repo:         repo,
		svc:          svc,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		logger:       logger,
	}
}

// Run polls until the context is cancelled
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started",
		slog.Duration("poll_interval", s.pollInterval),
		slog.Int("batch_size", s.batchSize),
	)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx, time.Now())
		}
	}
}

// Tick runs one poll cycle against now. Exported so one cycle can be driven
// directly in tests and one-shot invocations.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	s.activateDue(ctx, now)
	s.finishDue(ctx, now)
}

func (s *Scheduler) activateDue(ctx context.Context, now time.Time) {
	due, err := s.repo.ListDueForActivation(ctx, now, s.batchSize)
	if err != nil {
		s.logger.Error("failed to list campaigns due for activation",
			slog.String("error", err.Error()),
		)
		return
	}

	for _, campaign := range due {
		if _, err := s.svc.Activate(ctx, campaign.ID); err != nil {
			// A concurrent cancel or pause between listing and activating
			// surfaces as an invalid transition; skip, not an error.
			var transErr *models.InvalidTransitionError
			if errors.As(err, &transErr) {
				s.logger.Info("activation skipped",
					slog.Int64("campaign_id", campaign.ID),
					slog.String("state", string(transErr.CurrentState)),
				)
				continue
			}
			s.logger.Error("failed to activate due campaign",
				slog.Int64("campaign_id", campaign.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		s.logger.Info("campaign activated on schedule", slog.Int64("campaign_id", campaign.ID))
	}
}

func (s *Scheduler) finishDue(ctx context.Context, now time.Time) {
	due, err := s.repo.ListDueForFinish(ctx, now, s.batchSize)
	if err != nil {
		s.logger.Error("failed to list campaigns due for finish",
			slog.String("error", err.Error()),
		)
		return
	}

	for _, campaign := range due {
		if _, err := s.svc.Finish(ctx, campaign.ID); err != nil {
			var transErr *models.InvalidTransitionError
			if errors.As(err, &transErr) {
				s.logger.Info("finish skipped",
					slog.Int64("campaign_id", campaign.ID),
					slog.String("state", string(transErr.CurrentState)),
				)
				continue
			}
			s.logger.Error("failed to finish due campaign",
				slog.Int64("campaign_id", campaign.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		s.logger.Info("campaign finished on schedule", slog.Int64("campaign_id", campaign.ID))
	}
}
