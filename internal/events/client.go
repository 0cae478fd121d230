package events

import (
	"context"
	"time"

	"github.com/marketingops/campaign-console/internal/models"
)

// CampaignEvent notifies the execution channel of a lifecycle transition.
type CampaignEvent struct {
	CampaignID int64                `json:"campaign_id"`
	Action     models.ActionKind    `json:"action"`
	PrevState  models.CampaignState `json:"prev_state,omitempty"`
	NewState   models.CampaignState `json:"new_state"`
	Channel    string               `json:"channel"`
	Reason     string               `json:"reason,omitempty"`
	OccurredAt time.Time            `json:"occurred_at"`
}

// Client defines the interface for the lifecycle event bus
type Client interface {
	// Publish sends a lifecycle event to the bus
	Publish(ctx context.Context, event *CampaignEvent) error

	// Consume receives events from the bus and processes them with the handler;
	// concurrency controls how many events can be processed simultaneously
	Consume(ctx context.Context, handler EventHandler, concurrency int) error

	// Close closes the bus connection
	Close() error

	// Health checks if the bus is healthy
	Health(ctx context.Context) error
}

// EventHandler is a function that processes one lifecycle event
type EventHandler func(ctx context.Context, event *CampaignEvent) error
