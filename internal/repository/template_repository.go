package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/marketingops/campaign-console/internal/models"
)

// TemplateRepository defines the interface for campaign template data access
type TemplateRepository interface {
	Create(ctx context.Context, template *models.Template) error
	GetByID(ctx context.Context, id int64) (*models.Template, error)
	List(ctx context.Context, filter models.TemplateFilter) ([]*models.Template, int64, error)
	Update(ctx context.Context, template *models.Template) error
	Delete(ctx context.Context, id int64) error
}

// templateRepository implements TemplateRepository using PostgreSQL
type templateRepository struct {
	db *sql.DB
}

// NewTemplateRepository creates a new template repository
func NewTemplateRepository(db *sql.DB) TemplateRepository {
	return &templateRepository{db: db}
}

const templateColumns = `id, name, theme, description, channel, segment_id, survey_id, created_at, updated_at`

func scanTemplate(row interface{ Scan(...any) error }) (*models.Template, error) {
	template := &models.Template{}
	var description sql.NullString
	err := row.Scan(
		&template.ID,
		&template.Name,
		&template.Theme,
		&description,
		&template.Channel,
		&template.SegmentID,
		&template.SurveyID,
		&template.CreatedAt,
		&template.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	template.Description = description.String
	return template, nil
}

// Create inserts a new template
func (r *templateRepository) Create(ctx context.Context, template *models.Template) error {
	query := `
		INSERT INTO campaign_templates (name, theme, description, channel, segment_id, survey_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		template.Name,
		template.Theme,
		template.Description,
		template.Channel,
		template.SegmentID,
		template.SurveyID,
	).Scan(&template.ID, &template.CreatedAt, &template.UpdatedAt)

	if err != nil {
		return &models.PersistenceError{Err: fmt.Errorf("failed to create template: %w", err)}
	}

	return nil
}

// GetByID retrieves a template by ID
func (r *templateRepository) GetByID(ctx context.Context, id int64) (*models.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM campaign_templates WHERE id = $1`

	template, err := scanTemplate(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFoundWithMsg(fmt.Sprintf("template with ID %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	return template, nil
}

// List retrieves templates with pagination and filtering
func (r *templateRepository) List(ctx context.Context, filter models.TemplateFilter) ([]*models.Template, int64, error) {
	models.ValidateAndSetDefaults(&filter.Page, &filter.PageSize)

	where := ` WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if filter.Name != "" {
		where += fmt.Sprintf(" AND name ILIKE $%d", argPos)
		args = append(args, "%"+filter.Name+"%")
		argPos++
	}
	if filter.Channel != "" {
		where += fmt.Sprintf(" AND channel = $%d", argPos)
		args = append(args, filter.Channel)
		argPos++
	}

	var totalCount int64
	countQuery := `SELECT COUNT(*) FROM campaign_templates` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count templates: %w", err)
	}

	offset := models.CalculateOffset(filter.Page, filter.PageSize)
	query := `SELECT ` + templateColumns + ` FROM campaign_templates` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, filter.PageSize, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	templates := []*models.Template{}
	for rows.Next() {
		template, err := scanTemplate(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, template)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating templates: %w", err)
	}

	return templates, totalCount, nil
}

// Update updates an existing template
func (r *templateRepository) Update(ctx context.Context, template *models.Template) error {
	query := `
		UPDATE campaign_templates
		SET name = $1, theme = $2, description = $3, channel = $4,
			segment_id = $5, survey_id = $6, updated_at = now()
		WHERE id = $7
		RETURNING updated_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		template.Name,
		template.Theme,
		template.Description,
		template.Channel,
		template.SegmentID,
		template.SurveyID,
		template.ID,
	).Scan(&template.UpdatedAt)

	if err == sql.ErrNoRows {
		return models.ErrNotFoundWithMsg(fmt.Sprintf("template with ID %d not found", template.ID))
	}
	if err != nil {
		return &models.PersistenceError{Err: fmt.Errorf("failed to update template: %w", err)}
	}

	return nil
}

// Delete removes a template
func (r *templateRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM campaign_templates WHERE id = $1`, id)
	if err != nil {
		return &models.PersistenceError{Err: fmt.Errorf("failed to delete template: %w", err)}
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return &models.PersistenceError{Err: err}
	}
	if rowsAffected == 0 {
		return models.ErrNotFoundWithMsg(fmt.Sprintf("template with ID %d not found", id))
	}

	return nil
}
