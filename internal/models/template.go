package models

import "time"

// Template is a reusable field set used to pre-populate a new draft
// campaign. Templates carry no state and no schedule.
type Template struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Theme       string     `json:"theme"`
	Description string     `json:"description,omitempty"`
	Channel     string     `json:"channel"`
	SegmentID   *int64     `json:"segment_id,omitempty"`
	SurveyID    *int64     `json:"survey_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TemplateFilter holds filtering options for listing templates
type TemplateFilter struct {
	Name     string
	Channel  string
	Page     int
	PageSize int
}
