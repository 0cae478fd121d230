package models

import (
	"time"
)

// Campaign lifecycle states
type CampaignState string

const (
	StateDraft     CampaignState = "draft"
	StateScheduled CampaignState = "scheduled"
	StateActive    CampaignState = "active"
	StatePaused    CampaignState = "paused"
	StateFinished  CampaignState = "finished"
	StateCancelled CampaignState = "cancelled"
)

// Campaign priority constants
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Campaign execution channel constants
const (
	ChannelMailing = "mailing"
	ChannelCalls   = "calls"
)

// Campaign represents a marketing campaign moving through its lifecycle.
// State, the archived flag and the scheduling window are owned by the
// lifecycle service; nothing else mutates them.
type Campaign struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name"`
	Theme       string        `json:"theme"`
	Description string        `json:"description,omitempty"`
	Priority    string        `json:"priority"`
	Channel     string        `json:"channel"`
	State       CampaignState `json:"state"`
	Archived    bool          `json:"archived"`
	AgentID     *int64        `json:"agent_id,omitempty"`
	SegmentID   *int64        `json:"segment_id,omitempty"`
	SurveyID    *int64        `json:"survey_id,omitempty"`
	StartAt     *time.Time    `json:"scheduled_start,omitempty"`
	EndAt       *time.Time    `json:"scheduled_end,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Operation identifies a lifecycle operation against a campaign.
type Operation string

const (
	OpCreate     Operation = "create"
	OpEdit       Operation = "edit"
	OpSchedule   Operation = "schedule"
	OpReschedule Operation = "reschedule"
	OpActivate   Operation = "activate"
	OpPause      Operation = "pause"
	OpResume     Operation = "resume"
	OpCancel     Operation = "cancel"
	OpFinish     Operation = "finish"
	OpArchive    Operation = "archive"
	OpDuplicate  Operation = "duplicate"
	OpDelete     Operation = "delete"
)

// allowedSources is the transition table: for each operation, the set of
// states it may be invoked from. Legality is decided here and nowhere else.
var allowedSources = map[Operation][]CampaignState{
	OpEdit:       {StateDraft, StatePaused},
	OpSchedule:   {StateDraft},
	OpReschedule: {StateScheduled, StatePaused},
	OpActivate:   {StateScheduled},
	OpPause:      {StateActive},
	OpResume:     {StatePaused},
	OpCancel:     {StateScheduled, StateActive, StatePaused},
	OpFinish:     {StateActive},
	OpArchive:    {StateFinished, StateCancelled},
	OpDuplicate:  {StateFinished, StateCancelled},
	OpDelete:     {StateDraft},
}

// resultState maps state-changing operations to the state they produce.
// Operations absent from this map leave the state unchanged.
var resultState = map[Operation]CampaignState{
	OpSchedule: StateScheduled,
	OpActivate: StateActive,
	OpPause:    StatePaused,
	OpResume:   StateActive,
	OpCancel:   StateCancelled,
	OpFinish:   StateFinished,
}

// CanApply reports whether op may be invoked against the campaign's current
// state. An archived campaign is frozen: every operation is rejected.
func (c *Campaign) CanApply(op Operation) error {
	if c.Archived {
		return &InvalidTransitionError{Operation: op, CurrentState: c.State, Archived: true}
	}
	for _, s := range allowedSources[op] {
		if s == c.State {
			return nil
		}
	}
	return &InvalidTransitionError{Operation: op, CurrentState: c.State}
}

// NextState returns the state the campaign ends in after op succeeds.
func (c *Campaign) NextState(op Operation) CampaignState {
	if next, ok := resultState[op]; ok {
		return next
	}
	return c.State
}

// IsValidState checks if the value is one of the lifecycle states
func IsValidState(state string) bool {
	switch CampaignState(state) {
	case StateDraft, StateScheduled, StateActive, StatePaused, StateFinished, StateCancelled:
		return true
	default:
		return false
	}
}

// IsValidPriority checks if the priority is valid
func IsValidPriority(priority string) bool {
	return priority == PriorityHigh || priority == PriorityMedium || priority == PriorityLow
}

// IsValidChannel checks if the execution channel is valid
func IsValidChannel(channel string) bool {
	return channel == ChannelMailing || channel == ChannelCalls
}

// CampaignFilter holds filtering options for listing campaigns
type CampaignFilter struct {
	Name     string
	State    string
	Priority string
	Channel  string
	Archived *bool
	Page     int
	PageSize int
}

// CampaignStats holds execution statistics for a campaign, aggregated from
// the interactions the execution channel records.
type CampaignStats struct {
	Total     int64 `json:"total"`
	Pending   int64 `json:"pending"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}
