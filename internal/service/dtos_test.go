package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/marketingops/campaign-console/internal/models"
)

func fieldsOf(t *testing.T, err error) []string {
	t.Helper()
	var verrs models.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	fields := make([]string, len(verrs))
	for i, fe := range verrs {
		fields[i] = fe.Field
	}
	return fields
}

func contains(fields []string, field string) bool {
	for _, f := range fields {
		if f == field {
			return true
		}
	}
	return false
}

func TestCreateCampaignRequestValidate(t *testing.T) {
	tests := []struct {
		name       string
		req        CreateCampaignRequest
		wantFields []string
	}{
		{
			name: "valid",
			req: CreateCampaignRequest{
				Name: "Summer Promo", Theme: "Seasonal discounts", Channel: models.ChannelMailing,
			},
		},
		{
			name:       "name too short",
			req:        CreateCampaignRequest{Name: "ab", Theme: "Seasonal", Channel: models.ChannelMailing},
			wantFields: []string{"name"},
		},
		{
			name: "name too long",
			req: CreateCampaignRequest{
				Name: strings.Repeat("x", 101), Theme: "Seasonal", Channel: models.ChannelMailing,
			},
			wantFields: []string{"name"},
		},
		{
			name: "description too long",
			req: CreateCampaignRequest{
				Name: "Summer Promo", Theme: "Seasonal",
				Description: strings.Repeat("x", 501), Channel: models.ChannelMailing,
			},
			wantFields: []string{"description"},
		},
		{
			name: "bad priority and channel",
			req: CreateCampaignRequest{
				Name: "Summer Promo", Theme: "Seasonal", Priority: "urgent", Channel: "pigeon",
			},
			wantFields: []string{"priority", "channel"},
		},
		{
			name:       "everything wrong at once",
			req:        CreateCampaignRequest{Name: "", Theme: "", Channel: ""},
			wantFields: []string{"name", "theme", "channel"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}
			fields := fieldsOf(t, err)
			if len(fields) != len(tt.wantFields) {
				t.Fatalf("expected %d violations, got %v", len(tt.wantFields), fields)
			}
			for _, want := range tt.wantFields {
				if !contains(fields, want) {
					t.Errorf("missing violation for %q in %v", want, fields)
				}
			}
		})
	}
}

func TestScheduleCampaignRequestValidate(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)

	tests := []struct {
		name       string
		req        ScheduleCampaignRequest
		wantFields []string
	}{
		{
			name: "valid window",
			req: ScheduleCampaignRequest{
				StartAt: ptrTime(future), EndAt: ptrTime(future.Add(2 * time.Hour)), AgentID: ptrInt64(1),
			},
		},
		{
			name:       "missing everything",
			req:        ScheduleCampaignRequest{},
			wantFields: []string{"start", "end", "agent_id"},
		},
		{
			name: "start in the past",
			req: ScheduleCampaignRequest{
				StartAt: ptrTime(now.Add(-time.Minute)), EndAt: ptrTime(future), AgentID: ptrInt64(1),
			},
			wantFields: []string{"start"},
		},
		{
			name: "start exactly now is not future",
			req: ScheduleCampaignRequest{
				StartAt: ptrTime(now), EndAt: ptrTime(future), AgentID: ptrInt64(1),
			},
			wantFields: []string{"start"},
		},
		{
			name: "end before start",
			req: ScheduleCampaignRequest{
				StartAt: ptrTime(future), EndAt: ptrTime(future.Add(-time.Hour)), AgentID: ptrInt64(1),
			},
			wantFields: []string{"end"},
		},
		{
			name: "window shorter than an hour",
			req: ScheduleCampaignRequest{
				StartAt: ptrTime(future), EndAt: ptrTime(future.Add(59 * time.Minute)), AgentID: ptrInt64(1),
			},
			wantFields: []string{"end"},
		},
		{
			name: "window exactly an hour",
			req: ScheduleCampaignRequest{
				StartAt: ptrTime(future), EndAt: ptrTime(future.Add(time.Hour)), AgentID: ptrInt64(1),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate(now)
			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}
			fields := fieldsOf(t, err)
			if len(fields) != len(tt.wantFields) {
				t.Fatalf("expected %d violations, got %v", len(tt.wantFields), fields)
			}
			for _, want := range tt.wantFields {
				if !contains(fields, want) {
					t.Errorf("missing violation for %q in %v", want, fields)
				}
			}
		})
	}
}

func TestRescheduleRequestValidate(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)

	if err := (&RescheduleCampaignRequest{
		StartAt: ptrTime(future), EndAt: ptrTime(future.Add(3 * time.Hour)),
	}).Validate(now); err != nil {
		t.Errorf("expected valid reschedule, got %v", err)
	}

	err := (&RescheduleCampaignRequest{}).Validate(now)
	fields := fieldsOf(t, err)
	if !contains(fields, "start") || !contains(fields, "end") {
		t.Errorf("expected start and end violations, got %v", fields)
	}
}
