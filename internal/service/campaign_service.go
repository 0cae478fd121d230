package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/marketingops/campaign-console/internal/cache"
	"github.com/marketingops/campaign-console/internal/events"
	"github.com/marketingops/campaign-console/internal/identity"
	"github.com/marketingops/campaign-console/internal/models"
	"github.com/marketingops/campaign-console/internal/repository"
)

// CampaignService owns the campaign lifecycle: every transition is checked
// against the transition table, validated, persisted atomically with its
// history entry, and followed by cache invalidation and an event to the
// execution channel.
type CampaignService interface {
	Create(ctx context.Context, req *CreateCampaignRequest) (*models.Campaign, error)
	GetByID(ctx context.Context, id int64) (*models.Campaign, error)
	GetStats(ctx context.Context, id int64) (*models.CampaignStats, error)
	List(ctx context.Context, filter models.CampaignFilter) (*models.Page[*models.Campaign], error)
	Edit(ctx context.Context, id int64, req *EditCampaignRequest) (*models.Campaign, error)
	Schedule(ctx context.Context, id int64, req *ScheduleCampaignRequest) (*models.Campaign, error)
	Reschedule(ctx context.Context, id int64, req *RescheduleCampaignRequest) (*models.Campaign, error)
	Activate(ctx context.Context, id int64) (*models.Campaign, error)
	Pause(ctx context.Context, id int64, req *ReasonRequest) (*models.Campaign, error)
	Resume(ctx context.Context, id int64) (*models.Campaign, error)
	Cancel(ctx context.Context, id int64, req *ReasonRequest) (*models.Campaign, error)
	Finish(ctx context.Context, id int64) (*models.Campaign, error)
	Archive(ctx context.Context, id int64) (*models.Campaign, error)
	Duplicate(ctx context.Context, id int64) (*models.Campaign, error)
	Delete(ctx context.Context, id int64) error
	ResetCaches()
}

type campaignService struct {
	campaignRepo repository.CampaignRepository
	resourceRepo repository.ResourceRepository
	eventsClient events.Client
	logger       *slog.Logger

	detailCache *cache.Cache[*models.Campaign]
	listCache   *cache.Cache[*models.Page[*models.Campaign]]
	statsCache  *cache.Cache[*models.CampaignStats]
}

// NewCampaignService creates a new campaign service
func NewCampaignService(
	campaignRepo repository.CampaignRepository,
	resourceRepo repository.ResourceRepository,
	eventsClient events.Client,
	cacheTTL time.Duration,
	logger *slog.Logger,
) CampaignService {
	return &campaignService{
		campaignRepo: campaignRepo,
		resourceRepo: resourceRepo,
		eventsClient: eventsClient,
		logger:       logger,
		detailCache:  cache.New[*models.Campaign](cacheTTL, logger),
		listCache:    cache.New[*models.Page[*models.Campaign]](cacheTTL, logger),
		statsCache:   cache.New[*models.CampaignStats](cacheTTL, logger),
	}
}

func detailKey(id int64) string {
	return fmt.Sprintf("campaign:%d", id)
}

func statsKey(id int64) string {
	return fmt.Sprintf("campaign:stats:%d", id)
}

func listKey(f models.CampaignFilter) string {
	archived := "default"
	if f.Archived != nil {
		archived = fmt.Sprintf("%t", *f.Archived)
	}
	return fmt.Sprintf("campaigns:list:name=%s&state=%s&priority=%s&channel=%s&archived=%s&page=%d&size=%d",
		f.Name, f.State, f.Priority, f.Channel, archived, f.Page, f.PageSize)
}

// newEntry builds the single history entry a successful operation appends.
func newEntry(ctx context.Context, action models.ActionKind, detail string) *models.HistoryEntry {
	if detail == "" {
		detail = action.Description()
	}
	return &models.HistoryEntry{
		Action: action,
		Actor:  identity.ActorFrom(ctx),
		Detail: detail,
	}
}

// invalidate drops every cache entry whose key depends on the campaign: its
// detail entry and any list page that could include it.
func (s *campaignService) invalidate(id int64) {
	s.detailCache.Invalidate(detailKey(id))
	s.listCache.InvalidatePrefix("campaigns:list")
}

// publish notifies the execution channel of a transition. Publishing is best
// effort: the transition is already committed, so a bus failure is logged
// and not surfaced to the caller.
func (s *campaignService) publish(ctx context.Context, c *models.Campaign, prev models.CampaignState, action models.ActionKind, reason string) {
	if s.eventsClient == nil {
		return
	}

	event := &events.CampaignEvent{
		CampaignID: c.ID,
		Action:     action,
		PrevState:  prev,
		NewState:   c.State,
		Channel:    c.Channel,
		Reason:     reason,
		OccurredAt: time.Now(),
	}

	if err := s.eventsClient.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish lifecycle event",
			slog.Int64("campaign_id", c.ID),
			slog.String("action", string(action)),
			slog.String("error", err.Error()),
		)
	}
}

// resolveRefs checks that optional segment/survey references resolve before
// a mutation commits.
func (s *campaignService) resolveRefs(ctx context.Context, segmentID, surveyID *int64) error {
	if segmentID != nil {
		exists, err := s.resourceRepo.SegmentExists(ctx, *segmentID)
		if err != nil {
			return fmt.Errorf("failed to resolve segment: %w", err)
		}
		if !exists {
			return &models.ReferenceNotFoundError{Kind: "segment", ID: *segmentID}
		}
	}
	if surveyID != nil {
		exists, err := s.resourceRepo.SurveyExists(ctx, *surveyID)
		if err != nil {
			return fmt.Errorf("failed to resolve survey: %w", err)
		}
		if !exists {
			return &models.ReferenceNotFoundError{Kind: "survey", ID: *surveyID}
		}
	}
	return nil
}

// Create creates a new campaign in draft state
func (s *campaignService) Create(ctx context.Context, req *CreateCampaignRequest) (*models.Campaign, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.resolveRefs(ctx, req.SegmentID, req.SurveyID); err != nil {
		return nil, err
	}

	priority := req.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}

	campaign := &models.Campaign{
		Name:        req.Name,
		Theme:       req.Theme,
		Description: req.Description,
		Priority:    priority,
		Channel:     req.Channel,
		State:       models.StateDraft,
		SegmentID:   req.SegmentID,
		SurveyID:    req.SurveyID,
	}

	entry := newEntry(ctx, models.ActionCreate, "")
	if err := s.campaignRepo.Create(ctx, campaign, entry); err != nil {
		s.logger.Error("failed to create campaign",
			slog.String("name", req.Name),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.listCache.InvalidatePrefix("campaigns:list")

	s.logger.Info("campaign created",
		slog.Int64("campaign_id", campaign.ID),
		slog.String("name", campaign.Name),
	)

	return campaign, nil
}

// GetByID retrieves a campaign through the read cache
func (s *campaignService) GetByID(ctx context.Context, id int64) (*models.Campaign, error) {
	return s.detailCache.Get(ctx, detailKey(id), func(ctx context.Context) (*models.Campaign, error) {
		return s.campaignRepo.GetByID(ctx, id)
	})
}

// GetStats retrieves campaign execution statistics through the read cache
func (s *campaignService) GetStats(ctx context.Context, id int64) (*models.CampaignStats, error) {
	return s.statsCache.Get(ctx, statsKey(id), func(ctx context.Context) (*models.CampaignStats, error) {
		return s.campaignRepo.GetStats(ctx, id)
	})
}

// List retrieves one page of campaigns through the read cache
func (s *campaignService) List(ctx context.Context, filter models.CampaignFilter) (*models.Page[*models.Campaign], error) {
	models.ValidateAndSetDefaults(&filter.Page, &filter.PageSize)

	return s.listCache.Get(ctx, listKey(filter), func(ctx context.Context) (*models.Page[*models.Campaign], error) {
		campaigns, totalCount, err := s.campaignRepo.List(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("failed to list campaigns: %w", err)
		}
		return models.NewPage(campaigns, filter.Page, filter.PageSize, totalCount), nil
	})
}

// Edit updates the editable fields of a draft or paused campaign. Omitted
// priority and segment/survey references keep their current values.
func (s *campaignService) Edit(ctx context.Context, id int64, req *EditCampaignRequest) (*models.Campaign, error) {
	campaign, err := s.campaignRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := campaign.CanApply(models.OpEdit); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.resolveRefs(ctx, req.SegmentID, req.SurveyID); err != nil {
		return nil, err
	}

	updated := *campaign
	updated.Name = req.Name
	updated.Theme = req.Theme
	updated.Description = req.Description
	if req.Priority != "" {
		updated.Priority = req.Priority
	}
	updated.Channel = req.Channel
	if req.SegmentID != nil {
		updated.SegmentID = req.SegmentID
	}
	if req.SurveyID != nil {
		updated.SurveyID = req.SurveyID
	}

	entry := newEntry(ctx, models.ActionEdit, "")
	if err := s.campaignRepo.Update(ctx, &updated, entry); err != nil {
		return nil, err
	}

	s.invalidate(id)

	s.logger.Info("campaign edited", slog.Int64("campaign_id", id))
	return &updated, nil
}

// Schedule moves a draft campaign to scheduled with an execution window and
// an assigned agent
func (s *campaignService) Schedule(ctx context.Context, id int64, req *ScheduleCampaignRequest) (*models.Campaign, error) {
	campaign, err := s.campaignRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := campaign.CanApply(models.OpSchedule); err != nil {
		return nil, err
	}
	if err := req.Validate(time.Now()); err != nil {
		return nil, err
	}

	exists, err := s.resourceRepo.AgentExists(ctx, *req.AgentID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve agent: %w", err)
	}
	if !exists {
		return nil, &models.ReferenceNotFoundError{Kind: "agent", ID: *req.AgentID}
	}
	if err := s.resolveRefs(ctx, req.SegmentID, req.SurveyID); err != nil {
		return nil, err
	}

	prev := campaign.State
	updated := *campaign
	updated.State = campaign.NextState(models.OpSchedule)
	updated.StartAt = req.StartAt
	updated.EndAt = req.EndAt
	updated.AgentID = req.AgentID
	if req.SegmentID != nil {
		updated.SegmentID = req.SegmentID
	}
	if req.SurveyID != nil {
		updated.SurveyID = req.SurveyID
	}

	detail := fmt.Sprintf("scheduled from %s to %s",
		req.StartAt.Format(time.RFC3339), req.EndAt.Format(time.RFC3339))
	entry := newEntry(ctx, models.ActionSchedule, detail)
	if err := s.campaignRepo.Update(ctx, &updated, entry); err != nil {
		return nil, err
	}

	s.invalidate(id)
	s.publish(ctx, &updated, prev, models.ActionSchedule, "")

	s.logger.Info("campaign scheduled",
		slog.Int64("campaign_id", id),
		slog.Time("start", *req.StartAt),
		slog.Time("end", *req.EndAt),
	)

	return &updated, nil
}

// Reschedule moves the execution window of a scheduled or paused campaign
func (s *campaignService) Reschedule(ctx context.Context, id int64, req *RescheduleCampaignRequest) (*models.Campaign, error) {
	campaign, err := s.campaignRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := campaign.CanApply(models.OpReschedule); err != nil {
		return nil, err
	}
	if err := req.Validate(time.Now()); err != nil {
		return nil, err
	}

	prev := campaign.State
	updated := *campaign
	updated.StartAt = req.StartAt
	updated.EndAt = req.EndAt

	detail := fmt.Sprintf("rescheduled from %s to %s",
		req.StartAt.Format(time.RFC3339), req.EndAt.Format(time.RFC3339))
	entry := newEntry(ctx, models.ActionReschedule, detail)
	if err := s.campaignRepo.Update(ctx, &updated, entry); err != nil {
		return nil, err
	}

	s.invalidate(id)
	s.publish(ctx, &updated, prev, models.ActionReschedule, "")

	s.logger.Info("campaign rescheduled", slog.Int64("campaign_id", id))
	return &updated, nil
}

// transition applies a payload-free state change (activate, resume, finish)
func (s *campaignService) transition(ctx context.Context, id int64, op models.Operation, action models.ActionKind, reason string) (*models.Campaign, error) {
	campaign, err := s.campaignRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := campaign.CanApply(op); err != nil {
		return nil, err
	}

	prev := campaign.State
	updated := *campaign
	updated.State = campaign.NextState(op)

	entry := newEntry(ctx, action, reason)
	if err := s.campaignRepo.Update(ctx, &updated, entry); err != nil {
		return nil, err
	}

	s.invalidate(id)
	s.publish(ctx, &updated, prev, action, reason)

	s.logger.Info("campaign state changed",
		slog.Int64("campaign_id", id),
		slog.String("from", string(prev)),
		slog.String("to", string(updated.State)),
	)

	return &updated, nil
}

// Activate moves a scheduled campaign to active. Invoked by the scheduler
// when the window opens, never self-triggered.
func (s *campaignService) Activate(ctx context.Context, id int64) (*models.Campaign, error) {
	return s.transition(ctx, id, models.OpActivate, models.ActionActivate, "")
}

// Pause suspends an active campaign with a reason
func (s *campaignService) Pause(ctx context.Context, id int64, req *ReasonRequest) (*models.Campaign, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, models.OpPause, models.ActionPause, req.Reason)
}

// Resume reactivates a paused campaign
func (s *campaignService) Resume(ctx context.Context, id int64) (*models.Campaign, error) {
	return s.transition(ctx, id, models.OpResume, models.ActionResume, "")
}

// Cancel permanently cancels a scheduled, active or paused campaign
func (s *campaignService) Cancel(ctx context.Context, id int64, req *ReasonRequest) (*models.Campaign, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, models.OpCancel, models.ActionCancel, req.Reason)
}

// Finish completes an active campaign. Invoked by the scheduler when the
// window closes.
func (s *campaignService) Finish(ctx context.Context, id int64) (*models.Campaign, error) {
	return s.transition(ctx, id, models.OpFinish, models.ActionFinish, "")
}

// Archive freezes a finished or cancelled campaign. Blocked when the linked
// survey still has other open campaigns.
func (s *campaignService) Archive(ctx context.Context, id int64) (*models.Campaign, error) {
	campaign, err := s.campaignRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := campaign.CanApply(models.OpArchive); err != nil {
		return nil, err
	}

	if campaign.SurveyID != nil {
		conflict, err := s.campaignRepo.SurveyHasOpenCampaigns(ctx, *campaign.SurveyID, id)
		if err != nil {
			return nil, fmt.Errorf("failed to check survey dependents: %w", err)
		}
		if conflict {
			return nil, &models.DependencyConflictError{
				Reason: fmt.Sprintf("survey %d still has open campaigns attached", *campaign.SurveyID),
			}
		}
	}

	updated := *campaign
	updated.Archived = true

	entry := newEntry(ctx, models.ActionArchive, "")
	if err := s.campaignRepo.Update(ctx, &updated, entry); err != nil {
		return nil, err
	}

	s.invalidate(id)

	s.logger.Info("campaign archived", slog.Int64("campaign_id", id))
	return &updated, nil
}

// Duplicate seeds a fresh draft from a finished or cancelled campaign,
// copying editable fields and dropping id, state, schedule and history.
func (s *campaignService) Duplicate(ctx context.Context, id int64) (*models.Campaign, error) {
	original, err := s.campaignRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := original.CanApply(models.OpDuplicate); err != nil {
		return nil, err
	}

	clone := &models.Campaign{
		Name:        copyName(original.Name),
		Theme:       original.Theme,
		Description: original.Description,
		Priority:    original.Priority,
		Channel:     original.Channel,
		State:       models.StateDraft,
		SegmentID:   original.SegmentID,
		SurveyID:    original.SurveyID,
	}

	entry := newEntry(ctx, models.ActionDuplicate, fmt.Sprintf("duplicated from campaign %d", id))
	if err := s.campaignRepo.Create(ctx, clone, entry); err != nil {
		return nil, err
	}

	s.listCache.InvalidatePrefix("campaigns:list")

	s.logger.Info("campaign duplicated",
		slog.Int64("campaign_id", id),
		slog.Int64("copy_id", clone.ID),
	)

	return clone, nil
}

// Delete physically removes a draft campaign
func (s *campaignService) Delete(ctx context.Context, id int64) error {
	campaign, err := s.campaignRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := campaign.CanApply(models.OpDelete); err != nil {
		return err
	}

	if err := s.campaignRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.invalidate(id)
	s.statsCache.Invalidate(statsKey(id))

	s.logger.Info("campaign deleted", slog.Int64("campaign_id", id))
	return nil
}

// ResetCaches clears the whole read-cache scope, e.g. on session teardown.
func (s *campaignService) ResetCaches() {
	s.detailCache.Reset()
	s.listCache.Reset()
	s.statsCache.Reset()
}

// copyName derives the name for a duplicated or materialized campaign.
func copyName(name string) string {
	return name + " (Copy)"
}
