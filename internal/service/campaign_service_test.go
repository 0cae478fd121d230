package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/marketingops/campaign-console/internal/events"
	"github.com/marketingops/campaign-console/internal/identity"
	"github.com/marketingops/campaign-console/internal/models"
)

// MockCampaignRepository for testing
type mockCampaignRepository struct {
	campaigns []*models.Campaign
	history   map[int64][]*models.HistoryEntry

	surveyConflict bool
	failUpdate     bool
}

func newMockCampaignRepository() *mockCampaignRepository {
	return &mockCampaignRepository{history: map[int64][]*models.HistoryEntry{}}
}

func (m *mockCampaignRepository) record(campaignID int64, entry *models.HistoryEntry) {
	entry.ID = int64(len(m.history[campaignID]) + 1)
	entry.CampaignID = campaignID
	entry.RecordedAt = time.Now()
	m.history[campaignID] = append(m.history[campaignID], entry)
}

func (m *mockCampaignRepository) Create(ctx context.Context, campaign *models.Campaign, entry *models.HistoryEntry) error {
	campaign.ID = int64(len(m.campaigns) + 1)
	campaign.CreatedAt = time.Now()
	campaign.UpdatedAt = campaign.CreatedAt
	m.campaigns = append(m.campaigns, campaign)
	m.record(campaign.ID, entry)
	return nil
}

func (m *mockCampaignRepository) GetByID(ctx context.Context, id int64) (*models.Campaign, error) {
	for _, c := range m.campaigns {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, models.ErrNotFoundWithMsg("campaign not found")
}

func (m *mockCampaignRepository) List(ctx context.Context, filter models.CampaignFilter) ([]*models.Campaign, int64, error) {
	filtered := []*models.Campaign{}
	for _, c := range m.campaigns {
		if filter.State != "" && string(c.State) != filter.State {
			continue
		}
		archived := false
		if filter.Archived != nil {
			archived = *filter.Archived
		}
		if c.Archived != archived {
			continue
		}
		filtered = append(filtered, c)
	}
	return filtered, int64(len(filtered)), nil
}

func (m *mockCampaignRepository) Update(ctx context.Context, campaign *models.Campaign, entry *models.HistoryEntry) error {
	if m.failUpdate {
		return &models.PersistenceError{Err: errors.New("update failed")}
	}
	for i, c := range m.campaigns {
		if c.ID == campaign.ID {
			m.campaigns[i] = campaign
			m.record(campaign.ID, entry)
			return nil
		}
	}
	return models.ErrNotFoundWithMsg("campaign not found")
}

func (m *mockCampaignRepository) Delete(ctx context.Context, id int64) error {
	for i, c := range m.campaigns {
		if c.ID == id {
			m.campaigns = append(m.campaigns[:i], m.campaigns[i+1:]...)
			delete(m.history, id)
			return nil
		}
	}
	return models.ErrNotFoundWithMsg("campaign not found")
}

func (m *mockCampaignRepository) GetStats(ctx context.Context, id int64) (*models.CampaignStats, error) {
	if _, err := m.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return &models.CampaignStats{}, nil
}

func (m *mockCampaignRepository) ListDueForActivation(ctx context.Context, now time.Time, limit int) ([]*models.Campaign, error) {
	due := []*models.Campaign{}
	for _, c := range m.campaigns {
		if c.State == models.StateScheduled && c.StartAt != nil && !c.StartAt.After(now) {
			due = append(due, c)
		}
	}
	return due, nil
}

func (m *mockCampaignRepository) ListDueForFinish(ctx context.Context, now time.Time, limit int) ([]*models.Campaign, error) {
	due := []*models.Campaign{}
	for _, c := range m.campaigns {
		if c.State == models.StateActive && c.EndAt != nil && !c.EndAt.After(now) {
			due = append(due, c)
		}
	}
	return due, nil
}

func (m *mockCampaignRepository) SurveyHasOpenCampaigns(ctx context.Context, surveyID, excludeCampaignID int64) (bool, error) {
	return m.surveyConflict, nil
}

// MockResourceRepository for testing
type mockResourceRepository struct {
	agents   map[int64]bool
	segments map[int64]bool
	surveys  map[int64]bool
}

func newMockResourceRepository() *mockResourceRepository {
	return &mockResourceRepository{
		agents:   map[int64]bool{1: true},
		segments: map[int64]bool{1: true},
		surveys:  map[int64]bool{1: true},
	}
}

func (m *mockResourceRepository) AgentExists(ctx context.Context, id int64) (bool, error) {
	return m.agents[id], nil
}

func (m *mockResourceRepository) SegmentExists(ctx context.Context, id int64) (bool, error) {
	return m.segments[id], nil
}

func (m *mockResourceRepository) SurveyExists(ctx context.Context, id int64) (bool, error) {
	return m.surveys[id], nil
}

// MockEventsClient for testing
type mockEventsClient struct {
	published []*events.CampaignEvent
}

func (m *mockEventsClient) Publish(ctx context.Context, event *events.CampaignEvent) error {
	m.published = append(m.published, event)
	return nil
}

func (m *mockEventsClient) Consume(ctx context.Context, handler events.EventHandler, concurrency int) error {
	return nil
}

func (m *mockEventsClient) Close() error { return nil }

func (m *mockEventsClient) Health(ctx context.Context) error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService() (CampaignService, *mockCampaignRepository, *mockEventsClient) {
	repo := newMockCampaignRepository()
	bus := &mockEventsClient{}
	// ttl 0 keeps every read a cache miss so tests observe repo state directly
	svc := NewCampaignService(repo, newMockResourceRepository(), bus, 0, testLogger())
	return svc, repo, bus
}

func ptrInt64(v int64) *int64 { return &v }

func ptrTime(t time.Time) *time.Time { return &t }

func TestCreateCampaign(t *testing.T) {
	svc, repo, _ := newTestService()

	campaign, err := svc.Create(context.Background(), &CreateCampaignRequest{
		Name:    "Summer Promo",
		Theme:   "Seasonal discounts",
		Channel: models.ChannelMailing,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if campaign.State != models.StateDraft {
		t.Errorf("expected draft state, got %s", campaign.State)
	}
	if campaign.Priority != models.PriorityMedium {
		t.Errorf("expected default medium priority, got %s", campaign.Priority)
	}
	if len(repo.history[campaign.ID]) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(repo.history[campaign.ID]))
	}
	if repo.history[campaign.ID][0].Action != models.ActionCreate {
		t.Errorf("expected create action, got %s", repo.history[campaign.ID][0].Action)
	}
}

func TestCreateCampaignCollectsValidationErrors(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Create(context.Background(), &CreateCampaignRequest{
		Name:    "ab",
		Theme:   "x",
		Channel: "pigeon",
	})
	if err == nil {
		t.Fatal("expected validation error")
	}

	var verrs models.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(verrs) != 3 {
		t.Errorf("expected 3 collected violations, got %d: %v", len(verrs), verrs)
	}
}

func TestCreateCampaignUnknownSegment(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Create(context.Background(), &CreateCampaignRequest{
		Name:      "Summer Promo",
		Theme:     "Seasonal discounts",
		Channel:   models.ChannelMailing,
		SegmentID: ptrInt64(99),
	})

	var refErr *models.ReferenceNotFoundError
	if !errors.As(err, &refErr) {
		t.Fatalf("expected ReferenceNotFoundError, got %v", err)
	}
	if refErr.Kind != "segment" || refErr.ID != 99 {
		t.Errorf("unexpected reference error: %+v", refErr)
	}
}

func TestEditKeepsOmittedReferences(t *testing.T) {
	svc, repo, _ := newTestService()

	campaign, err := svc.Create(context.Background(), &CreateCampaignRequest{
		Name:      "Summer Promo",
		Theme:     "Seasonal discounts",
		Channel:   models.ChannelMailing,
		SegmentID: ptrInt64(1),
		SurveyID:  ptrInt64(1),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	edited, err := svc.Edit(context.Background(), campaign.ID, &EditCampaignRequest{
		Name:    "Summer Promo v2",
		Theme:   "Seasonal discounts",
		Channel: models.ChannelMailing,
	})
	if err != nil {
		t.Fatalf("Edit failed: %v", err)
	}

	if edited.Name != "Summer Promo v2" {
		t.Errorf("edit not applied: %q", edited.Name)
	}
	if edited.SegmentID == nil || *edited.SegmentID != 1 {
		t.Error("omitted segment reference was cleared by edit")
	}
	if edited.SurveyID == nil || *edited.SurveyID != 1 {
		t.Error("omitted survey reference was cleared by edit")
	}

	got, _ := repo.GetByID(context.Background(), campaign.ID)
	if got.SegmentID == nil || got.SurveyID == nil {
		t.Error("persisted campaign lost references on edit")
	}
}

func TestScheduleCampaign(t *testing.T) {
	svc, repo, bus := newTestService()

	campaign, err := svc.Create(context.Background(), &CreateCampaignRequest{
		Name:    "Summer Promo",
		Theme:   "Seasonal discounts",
		Channel: models.ChannelMailing,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	start := time.Now().Add(24 * time.Hour)
	end := start.Add(6 * time.Hour)

	scheduled, err := svc.Schedule(context.Background(), campaign.ID, &ScheduleCampaignRequest{
		StartAt: ptrTime(start),
		EndAt:   ptrTime(end),
		AgentID: ptrInt64(1),
	})
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	if scheduled.State != models.StateScheduled {
		t.Errorf("expected scheduled state, got %s", scheduled.State)
	}
	if scheduled.AgentID == nil || *scheduled.AgentID != 1 {
		t.Error("expected agent assignment to persist")
	}
	if len(repo.history[campaign.ID]) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(repo.history[campaign.ID]))
	}
	if repo.history[campaign.ID][1].Action != models.ActionSchedule {
		t.Errorf("expected schedule action, got %s", repo.history[campaign.ID][1].Action)
	}
	if len(bus.published) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(bus.published))
	}
	if bus.published[0].NewState != models.StateScheduled {
		t.Errorf("event carries wrong state: %s", bus.published[0].NewState)
	}
}

func TestScheduleCampaignWindowTooShort(t *testing.T) {
	svc, repo, _ := newTestService()

	campaign, _ := svc.Create(context.Background(), &CreateCampaignRequest{
		Name:    "Summer Promo",
		Theme:   "Seasonal discounts",
		Channel: models.ChannelMailing,
	})

	start := time.Now().Add(24 * time.Hour)
	end := start.Add(30 * time.Minute)

	_, err := svc.Schedule(context.Background(), campaign.ID, &ScheduleCampaignRequest{
		StartAt: ptrTime(start),
		EndAt:   ptrTime(end),
		AgentID: ptrInt64(1),
	})

	var verrs models.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	found := false
	for _, fe := range verrs {
		if fe.Field == "end" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected end-field violation, got %v", verrs)
	}

	// A rejected schedule must leave state and history untouched
	got, _ := repo.GetByID(context.Background(), campaign.ID)
	if got.State != models.StateDraft {
		t.Errorf("state changed on failed schedule: %s", got.State)
	}
	if len(repo.history[campaign.ID]) != 1 {
		t.Errorf("history grew on failed schedule: %d entries", len(repo.history[campaign.ID]))
	}
}

func TestScheduleFromNonDraftRejected(t *testing.T) {
	svc, repo, _ := newTestService()

	campaign := &models.Campaign{
		Name: "Launch", Theme: "Launch theme", Priority: models.PriorityMedium,
		Channel: models.ChannelCalls, State: models.StateActive,
	}
	repo.Create(context.Background(), campaign, &models.HistoryEntry{Action: models.ActionCreate, Actor: "test"})

	start := time.Now().Add(time.Hour)
	end := start.Add(2 * time.Hour)
	_, err := svc.Schedule(context.Background(), campaign.ID, &ScheduleCampaignRequest{
		StartAt: ptrTime(start),
		EndAt:   ptrTime(end),
		AgentID: ptrInt64(1),
	})

	var transErr *models.InvalidTransitionError
	if !errors.As(err, &transErr) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if transErr.CurrentState != models.StateActive {
		t.Errorf("unexpected current state in error: %s", transErr.CurrentState)
	}
}

func TestPauseRequiresReason(t *testing.T) {
	svc, repo, _ := newTestService()

	campaign := &models.Campaign{
		Name: "Launch", Theme: "Launch theme", Priority: models.PriorityMedium,
		Channel: models.ChannelCalls, State: models.StateActive,
	}
	repo.Create(context.Background(), campaign, &models.HistoryEntry{Action: models.ActionCreate, Actor: "test"})

	_, err := svc.Pause(context.Background(), campaign.ID, &ReasonRequest{})
	var verrs models.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors for empty reason, got %v", err)
	}

	paused, err := svc.Pause(context.Background(), campaign.ID, &ReasonRequest{Reason: "budget review"})
	if err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if paused.State != models.StatePaused {
		t.Errorf("expected paused state, got %s", paused.State)
	}

	entries := repo.history[campaign.ID]
	last := entries[len(entries)-1]
	if last.Detail != "budget review" {
		t.Errorf("expected reason in history detail, got %q", last.Detail)
	}
}

func TestCancelThenArchive(t *testing.T) {
	svc, repo, _ := newTestService()

	campaign := &models.Campaign{
		Name: "Launch", Theme: "Launch theme", Priority: models.PriorityMedium,
		Channel: models.ChannelCalls, State: models.StateActive,
	}
	repo.Create(context.Background(), campaign, &models.HistoryEntry{Action: models.ActionCreate, Actor: "test"})

	cancelled, err := svc.Cancel(context.Background(), campaign.ID, &ReasonRequest{Reason: "out of budget"})
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if cancelled.State != models.StateCancelled {
		t.Errorf("expected cancelled state, got %s", cancelled.State)
	}

	archived, err := svc.Archive(context.Background(), campaign.ID)
	if err != nil {
		t.Fatalf("Archive failed: %v", err)
	}
	if !archived.Archived {
		t.Error("expected archived flag set")
	}
	if archived.State != models.StateCancelled {
		t.Errorf("archive must not change state, got %s", archived.State)
	}

	// Any further operation on an archived campaign is frozen out
	_, err = svc.Duplicate(context.Background(), campaign.ID)
	var transErr *models.InvalidTransitionError
	if !errors.As(err, &transErr) {
		t.Fatalf("expected InvalidTransitionError on archived campaign, got %v", err)
	}
	if !transErr.Archived {
		t.Error("expected error to flag the archived freeze")
	}
}

func TestArchiveBlockedBySurveyConflict(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.surveyConflict = true

	campaign := &models.Campaign{
		Name: "Launch", Theme: "Launch theme", Priority: models.PriorityMedium,
		Channel: models.ChannelCalls, State: models.StateFinished, SurveyID: ptrInt64(1),
	}
	repo.Create(context.Background(), campaign, &models.HistoryEntry{Action: models.ActionCreate, Actor: "test"})

	_, err := svc.Archive(context.Background(), campaign.ID)
	var depErr *models.DependencyConflictError
	if !errors.As(err, &depErr) {
		t.Fatalf("expected DependencyConflictError, got %v", err)
	}

	got, _ := repo.GetByID(context.Background(), campaign.ID)
	if got.Archived {
		t.Error("campaign archived despite dependency conflict")
	}
}

func TestDuplicateCopiesFieldsAndResetsLifecycle(t *testing.T) {
	svc, repo, _ := newTestService()

	start := time.Now().Add(-48 * time.Hour)
	end := start.Add(24 * time.Hour)
	campaign := &models.Campaign{
		Name: "Winter Sale", Theme: "Clearance", Description: "Year-end clearance",
		Priority: models.PriorityHigh, Channel: models.ChannelMailing,
		State: models.StateFinished, AgentID: ptrInt64(1), SegmentID: ptrInt64(1),
		StartAt: ptrTime(start), EndAt: ptrTime(end),
	}
	repo.Create(context.Background(), campaign, &models.HistoryEntry{Action: models.ActionCreate, Actor: "test"})

	clone, err := svc.Duplicate(context.Background(), campaign.ID)
	if err != nil {
		t.Fatalf("Duplicate failed: %v", err)
	}

	if clone.Name != "Winter Sale (Copy)" {
		t.Errorf("expected copy suffix, got %q", clone.Name)
	}
	if clone.State != models.StateDraft {
		t.Errorf("expected draft state, got %s", clone.State)
	}
	if clone.ID == campaign.ID {
		t.Error("clone shares id with original")
	}
	if clone.StartAt != nil || clone.EndAt != nil || clone.AgentID != nil {
		t.Error("clone must not inherit schedule or agent")
	}
	if clone.Theme != campaign.Theme || clone.Priority != campaign.Priority {
		t.Error("clone lost copied fields")
	}
	if len(repo.history[clone.ID]) != 1 {
		t.Errorf("expected fresh history for clone, got %d entries", len(repo.history[clone.ID]))
	}
}

func TestDeleteOnlyFromDraft(t *testing.T) {
	svc, repo, _ := newTestService()

	draft, _ := svc.Create(context.Background(), &CreateCampaignRequest{
		Name: "Scratch", Theme: "Scratch theme", Channel: models.ChannelMailing,
	})

	active := &models.Campaign{
		Name: "Launch", Theme: "Launch theme", Priority: models.PriorityMedium,
		Channel: models.ChannelCalls, State: models.StateActive,
	}
	repo.Create(context.Background(), active, &models.HistoryEntry{Action: models.ActionCreate, Actor: "test"})

	if err := svc.Delete(context.Background(), draft.ID); err != nil {
		t.Fatalf("Delete draft failed: %v", err)
	}
	if _, err := repo.GetByID(context.Background(), draft.ID); err == nil {
		t.Error("draft still present after delete")
	}

	err := svc.Delete(context.Background(), active.ID)
	var transErr *models.InvalidTransitionError
	if !errors.As(err, &transErr) {
		t.Fatalf("expected InvalidTransitionError deleting active campaign, got %v", err)
	}
}

func TestTransitionActorFromContext(t *testing.T) {
	svc, repo, _ := newTestService()

	ctx := identity.WithActor(context.Background(), "marta")
	campaign, err := svc.Create(ctx, &CreateCampaignRequest{
		Name: "Summer Promo", Theme: "Seasonal discounts", Channel: models.ChannelMailing,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if repo.history[campaign.ID][0].Actor != "marta" {
		t.Errorf("expected actor from context, got %q", repo.history[campaign.ID][0].Actor)
	}

	// Without an actor the entry is attributed to the system
	if _, err := svc.Finish(context.Background(), campaign.ID); err == nil {
		t.Fatal("expected finish from draft to fail")
	}
}

func TestFailedPersistLeavesNothingBehind(t *testing.T) {
	svc, repo, bus := newTestService()

	campaign := &models.Campaign{
		Name: "Launch", Theme: "Launch theme", Priority: models.PriorityMedium,
		Channel: models.ChannelCalls, State: models.StateActive,
	}
	repo.Create(context.Background(), campaign, &models.HistoryEntry{Action: models.ActionCreate, Actor: "test"})
	repo.failUpdate = true

	_, err := svc.Finish(context.Background(), campaign.ID)
	var perr *models.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}

	got, _ := repo.GetByID(context.Background(), campaign.ID)
	if got.State != models.StateActive {
		t.Errorf("state changed despite failed persist: %s", got.State)
	}
	if len(repo.history[campaign.ID]) != 1 {
		t.Errorf("history grew despite failed persist: %d", len(repo.history[campaign.ID]))
	}
	if len(bus.published) != 0 {
		t.Errorf("event published despite failed persist: %d", len(bus.published))
	}
}
