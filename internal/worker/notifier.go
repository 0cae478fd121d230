package worker

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/marketingops/campaign-console/internal/events"
)

// ChannelNotifier pushes a lifecycle change to the execution channel provider
type ChannelNotifier interface {
	Notify(ctx context.Context, event *events.CampaignEvent) error
}

// mockNotifier simulates a channel provider with a configurable success rate
type mockNotifier struct {
	successRate float64
	minDelay    time.Duration
	maxDelay    time.Duration
}

// NewMockNotifier creates a simulated channel notifier.
// successRate: probability of success (0.0 to 1.0), default 0.92 (92%)
func NewMockNotifier(successRate float64) ChannelNotifier {
	if successRate <= 0 || successRate > 1.0 {
		successRate = 0.92
	}

	return &mockNotifier{
		successRate: successRate,
		minDelay:    50 * time.Millisecond, // Simulate network latency
		maxDelay:    200 * time.Millisecond,
	}
}

// Notify simulates pushing the change to the provider
func (n *mockNotifier) Notify(ctx context.Context, event *events.CampaignEvent) error {
	delay := n.minDelay + time.Duration(rand.Int63n(int64(n.maxDelay-n.minDelay)))

	select {
	case <-time.After(delay):
		// Continue
	case <-ctx.Done():
		return ctx.Err()
	}

	if rand.Float64() > n.successRate {
		return fmt.Errorf("mock notifier failed: simulated network error")
	}

	return nil
}
