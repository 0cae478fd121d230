package service

import (
	"time"
	"unicode/utf8"

	"github.com/marketingops/campaign-console/internal/models"
)

// Field length bounds shared by create/edit for campaigns and templates.
const (
	nameMinLen        = 3
	nameMaxLen        = 100
	themeMinLen       = 3
	themeMaxLen       = 100
	descriptionMaxLen = 500

	// Minimum scheduled execution window.
	minScheduleWindow = time.Hour
)

// validateCampaignFields collects every field violation instead of stopping
// at the first one, so the caller can surface them together.
func validateCampaignFields(name, theme, description, priority, channel string) models.ValidationErrors {
	var errs models.ValidationErrors

	switch n := utf8.RuneCountInString(name); {
	case n < nameMinLen:
		errs = errs.Add("name", "must be at least 3 characters")
	case n > nameMaxLen:
		errs = errs.Add("name", "must be at most 100 characters")
	}

	switch n := utf8.RuneCountInString(theme); {
	case n < themeMinLen:
		errs = errs.Add("theme", "must be at least 3 characters")
	case n > themeMaxLen:
		errs = errs.Add("theme", "must be at most 100 characters")
	}

	if utf8.RuneCountInString(description) > descriptionMaxLen {
		errs = errs.Add("description", "must be at most 500 characters")
	}

	if priority != "" && !models.IsValidPriority(priority) {
		errs = errs.Add("priority", "must be one of high, medium, low")
	}

	if channel == "" {
		errs = errs.Add("channel", "is required")
	} else if !models.IsValidChannel(channel) {
		errs = errs.Add("channel", "must be one of mailing, calls")
	}

	return errs
}

// validateScheduleWindow applies the date rules for schedule and reschedule.
// The start-in-future rule holds only at the instant the operation is
// accepted; it is never re-checked as time passes.
func validateScheduleWindow(start, end *time.Time, now time.Time) models.ValidationErrors {
	var errs models.ValidationErrors

	if start == nil {
		errs = errs.Add("start", "is required")
	}
	if end == nil {
		errs = errs.Add("end", "is required")
	}
	if start != nil && !start.After(now) {
		errs = errs.Add("start", "must be in the future")
	}
	if start != nil && end != nil {
		if !end.After(*start) {
			errs = errs.Add("end", "must be after start")
		} else if end.Sub(*start) < minScheduleWindow {
			errs = errs.Add("end", "duration<1h")
		}
	}

	return errs
}

// CreateCampaignRequest represents a request to create a draft campaign
type CreateCampaignRequest struct {
	Name        string `json:"name"`
	Theme       string `json:"theme"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Channel     string `json:"channel"`
	SegmentID   *int64 `json:"segment_id,omitempty"`
	SurveyID    *int64 `json:"survey_id,omitempty"`
}

// Validate performs validation on the create campaign request
func (r *CreateCampaignRequest) Validate() error {
	return validateCampaignFields(r.Name, r.Theme, r.Description, r.Priority, r.Channel).OrNil()
}

// EditCampaignRequest represents a request to edit campaign fields. Edits
// follow the same field rules as create. Omitted segment/survey references
// keep their current value; references are replaced, never cleared, since
// downstream interactions may already hang off them.
type EditCampaignRequest struct {
	Name        string `json:"name"`
	Theme       string `json:"theme"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Channel     string `json:"channel"`
	SegmentID   *int64 `json:"segment_id,omitempty"`
	SurveyID    *int64 `json:"survey_id,omitempty"`
}

// Validate performs validation on the edit campaign request
func (r *EditCampaignRequest) Validate() error {
	return validateCampaignFields(r.Name, r.Theme, r.Description, r.Priority, r.Channel).OrNil()
}

// ScheduleCampaignRequest represents a request to schedule a draft campaign
// for an execution window with an assigned agent.
type ScheduleCampaignRequest struct {
	StartAt   *time.Time `json:"start"`
	EndAt     *time.Time `json:"end"`
	AgentID   *int64     `json:"agent_id"`
	SegmentID *int64     `json:"segment_id,omitempty"`
	SurveyID  *int64     `json:"survey_id,omitempty"`
}

// Validate performs validation on the schedule request against now.
func (r *ScheduleCampaignRequest) Validate(now time.Time) error {
	errs := validateScheduleWindow(r.StartAt, r.EndAt, now)
	if r.AgentID == nil {
		errs = errs.Add("agent_id", "is required")
	}
	return errs.OrNil()
}

// RescheduleCampaignRequest represents a request to move the execution
// window of a scheduled or paused campaign.
type RescheduleCampaignRequest struct {
	StartAt *time.Time `json:"start"`
	EndAt   *time.Time `json:"end"`
}

// Validate performs validation on the reschedule request against now.
func (r *RescheduleCampaignRequest) Validate(now time.Time) error {
	return validateScheduleWindow(r.StartAt, r.EndAt, now).OrNil()
}

// ReasonRequest carries the free-text reason for pause and cancel.
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// Validate requires a non-empty reason
func (r *ReasonRequest) Validate() error {
	var errs models.ValidationErrors
	if r.Reason == "" {
		errs = errs.Add("reason", "is required")
	}
	return errs.OrNil()
}

// TemplateRequest represents a request to create or edit a campaign
// template. Templates follow the campaign text field rules.
type TemplateRequest struct {
	Name        string `json:"name"`
	Theme       string `json:"theme"`
	Description string `json:"description,omitempty"`
	Channel     string `json:"channel"`
	SegmentID   *int64 `json:"segment_id,omitempty"`
	SurveyID    *int64 `json:"survey_id,omitempty"`
}

// Validate performs validation on the template request
func (r *TemplateRequest) Validate() error {
	return validateCampaignFields(r.Name, r.Theme, r.Description, "", r.Channel).OrNil()
}
