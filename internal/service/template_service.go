package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/marketingops/campaign-console/internal/cache"
	"github.com/marketingops/campaign-console/internal/models"
	"github.com/marketingops/campaign-console/internal/repository"
)

// TemplateService manages reusable campaign templates and materializes them
// into draft campaigns.
type TemplateService interface {
	Create(ctx context.Context, req *TemplateRequest) (*models.Template, error)
	GetByID(ctx context.Context, id int64) (*models.Template, error)
	List(ctx context.Context, filter models.TemplateFilter) (*models.Page[*models.Template], error)
	Edit(ctx context.Context, id int64, req *TemplateRequest) (*models.Template, error)
	Delete(ctx context.Context, id int64) error
	Materialize(ctx context.Context, id int64) (*models.Campaign, error)
	ResetCaches()
}

type templateService struct {
	templateRepo repository.TemplateRepository
	campaignSvc  CampaignService
	logger       *slog.Logger

	detailCache *cache.Cache[*models.Template]
	listCache   *cache.Cache[*models.Page[*models.Template]]
}

// NewTemplateService creates a new template service
func NewTemplateService(
	templateRepo repository.TemplateRepository,
	campaignSvc CampaignService,
	cacheTTL time.Duration,
	logger *slog.Logger,
) TemplateService {
	return &templateService{
		templateRepo: templateRepo,
		campaignSvc:  campaignSvc,
		logger:       logger,
		detailCache:  cache.New[*models.Template](cacheTTL, logger),
		listCache:    cache.New[*models.Page[*models.Template]](cacheTTL, logger),
	}
}

func templateKey(id int64) string {
	return fmt.Sprintf("template:%d", id)
}

func templateListKey(f models.TemplateFilter) string {
	return fmt.Sprintf("templates:list:name=%s&channel=%s&page=%d&size=%d",
		f.Name, f.Channel, f.Page, f.PageSize)
}

func (s *templateService) invalidate(id int64) {
	s.detailCache.Invalidate(templateKey(id))
	s.listCache.InvalidatePrefix("templates:list")
}

// Create creates a new template
func (s *templateService) Create(ctx context.Context, req *TemplateRequest) (*models.Template, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	template := &models.Template{
		Name:        req.Name,
		Theme:       req.Theme,
		Description: req.Description,
		Channel:     req.Channel,
		SegmentID:   req.SegmentID,
		SurveyID:    req.SurveyID,
	}

	if err := s.templateRepo.Create(ctx, template); err != nil {
		s.logger.Error("failed to create template",
			slog.String("name", req.Name),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.listCache.InvalidatePrefix("templates:list")

	s.logger.Info("template created",
		slog.Int64("template_id", template.ID),
		slog.String("name", template.Name),
	)

	return template, nil
}

// GetByID retrieves a template through the read cache
func (s *templateService) GetByID(ctx context.Context, id int64) (*models.Template, error) {
	return s.detailCache.Get(ctx, templateKey(id), func(ctx context.Context) (*models.Template, error) {
		return s.templateRepo.GetByID(ctx, id)
	})
}

// List retrieves one page of templates through the read cache
func (s *templateService) List(ctx context.Context, filter models.TemplateFilter) (*models.Page[*models.Template], error) {
	models.ValidateAndSetDefaults(&filter.Page, &filter.PageSize)

	return s.listCache.Get(ctx, templateListKey(filter), func(ctx context.Context) (*models.Page[*models.Template], error) {
		templates, totalCount, err := s.templateRepo.List(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("failed to list templates: %w", err)
		}
		return models.NewPage(templates, filter.Page, filter.PageSize, totalCount), nil
	})
}

// Edit updates an existing template
func (s *templateService) Edit(ctx context.Context, id int64, req *TemplateRequest) (*models.Template, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	template, err := s.templateRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := *template
	updated.Name = req.Name
	updated.Theme = req.Theme
	updated.Description = req.Description
	updated.Channel = req.Channel
	updated.SegmentID = req.SegmentID
	updated.SurveyID = req.SurveyID

	if err := s.templateRepo.Update(ctx, &updated); err != nil {
		return nil, err
	}

	s.invalidate(id)

	s.logger.Info("template updated", slog.Int64("template_id", id))
	return &updated, nil
}

// Delete removes a template. Campaigns already materialized from it are
// untouched; they hold copies, not references.
func (s *templateService) Delete(ctx context.Context, id int64) error {
	if err := s.templateRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.invalidate(id)

	s.logger.Info("template deleted", slog.Int64("template_id", id))
	return nil
}

// Materialize copies the template's fields into a create payload and hands
// it to the campaign service, seeding a new draft.
func (s *templateService) Materialize(ctx context.Context, id int64) (*models.Campaign, error) {
	template, err := s.templateRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	campaign, err := s.campaignSvc.Create(ctx, MaterializeTemplate(template))
	if err != nil {
		return nil, err
	}

	s.logger.Info("template materialized",
		slog.Int64("template_id", id),
		slog.Int64("campaign_id", campaign.ID),
	)

	return campaign, nil
}

// ResetCaches clears the template read-cache scope.
func (s *templateService) ResetCaches() {
	s.detailCache.Reset()
	s.listCache.Reset()
}

// MaterializeTemplate copies a template's reusable fields, by value, into a
// draft-campaign create payload. Identifiers, timestamps and anything
// state- or schedule-related are deliberately left out.
func MaterializeTemplate(t *models.Template) *CreateCampaignRequest {
	return &CreateCampaignRequest{
		Name:        copyName(t.Name),
		Theme:       t.Theme,
		Description: t.Description,
		Channel:     t.Channel,
		SegmentID:   t.SegmentID,
		SurveyID:    t.SurveyID,
	}
}
