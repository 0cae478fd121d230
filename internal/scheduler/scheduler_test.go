package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/marketingops/campaign-console/internal/models"
)

type mockLister struct {
	dueActivation []*models.Campaign
	dueFinish     []*models.Campaign
}

func (m *mockLister) ListDueForActivation(ctx context.Context, now time.Time, limit int) ([]*models.Campaign, error) {
	return m.dueActivation, nil
}

func (m *mockLister) ListDueForFinish(ctx context.Context, now time.Time, limit int) ([]*models.Campaign, error) {
	return m.dueFinish, nil
}

type mockTransitioner struct {
	activated []int64
	finished  []int64
	failWith  error
}

func (m *mockTransitioner) Activate(ctx context.Context, id int64) (*models.Campaign, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	m.activated = append(m.activated, id)
	return &models.Campaign{ID: id, State: models.StateActive}, nil
}

func (m *mockTransitioner) Finish(ctx context.Context, id int64) (*models.Campaign, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	m.finished = append(m.finished, id)
	return &models.Campaign{ID: id, State: models.StateFinished}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTickActivatesAndFinishesDueCampaigns(t *testing.T) {
	lister := &mockLister{
		dueActivation: []*models.Campaign{{ID: 1}, {ID: 2}},
		dueFinish:     []*models.Campaign{{ID: 3}},
	}
	trans := &mockTransitioner{}

	s := New(lister, trans, time.Second, 10, quietLogger())
	s.Tick(context.Background(), time.Now())

	if len(trans.activated) != 2 {
		t.Errorf("expected 2 activations, got %v", trans.activated)
	}
	if len(trans.finished) != 1 || trans.finished[0] != 3 {
		t.Errorf("expected campaign 3 finished, got %v", trans.finished)
	}
}

func TestTickSkipsConcurrentlyMovedCampaigns(t *testing.T) {
	lister := &mockLister{
		dueActivation: []*models.Campaign{{ID: 1}},
	}
	trans := &mockTransitioner{
		failWith: &models.InvalidTransitionError{
			Operation:    models.OpActivate,
			CurrentState: models.StateCancelled,
		},
	}

	s := New(lister, trans, time.Second, 10, quietLogger())
	// Must not panic or abort the cycle
	s.Tick(context.Background(), time.Now())

	if len(trans.activated) != 0 {
		t.Errorf("expected no activations, got %v", trans.activated)
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	s := New(&mockLister{}, &mockTransitioner{}, 0, 0, quietLogger())
	if s.pollInterval != 30*time.Second {
		t.Errorf("expected default poll interval, got %v", s.pollInterval)
	}
	if s.batchSize != 50 {
		t.Errorf("expected default batch size, got %d", s.batchSize)
	}
}
