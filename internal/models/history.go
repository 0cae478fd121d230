package models

import "time"

// ActionKind identifies the kind of action recorded in a campaign's history.
type ActionKind string

const (
	ActionCreate         ActionKind = "create"
	ActionEdit           ActionKind = "edit"
	ActionSchedule       ActionKind = "schedule"
	ActionReschedule     ActionKind = "reschedule"
	ActionActivate       ActionKind = "activate"
	ActionPause          ActionKind = "pause"
	ActionResume         ActionKind = "resume"
	ActionCancel         ActionKind = "cancel"
	ActionFinish         ActionKind = "finish"
	ActionArchive        ActionKind = "archive"
	ActionDuplicate      ActionKind = "duplicate"
	ActionExecutionError ActionKind = "execution_error"
)

// actionDescriptions gives the default user-facing detail per action kind,
// used when the operation carries no free-text detail of its own.
var actionDescriptions = map[ActionKind]string{
	ActionCreate:         "Campaign created in draft state",
	ActionEdit:           "Campaign details updated",
	ActionSchedule:       "Campaign scheduled for automatic execution",
	ActionReschedule:     "Scheduled execution window changed",
	ActionActivate:       "Campaign became active and started execution",
	ActionPause:          "Campaign execution paused",
	ActionResume:         "Campaign execution resumed",
	ActionCancel:         "Campaign permanently cancelled",
	ActionFinish:         "Campaign completed its execution",
	ActionArchive:        "Campaign archived",
	ActionDuplicate:      "Campaign duplicated",
	ActionExecutionError: "An error occurred during campaign execution",
}

// Description returns the default detail text for the action kind.
func (a ActionKind) Description() string {
	return actionDescriptions[a]
}

// HistoryEntry is one immutable audit record of a state-changing operation.
// Entries are only ever appended, never updated or deleted.
type HistoryEntry struct {
	ID         int64      `json:"id"`
	CampaignID int64      `json:"campaign_id"`
	Action     ActionKind `json:"action"`
	Actor      string     `json:"actor"`
	Detail     string     `json:"detail,omitempty"`
	RecordedAt time.Time  `json:"recorded_at"`
}
