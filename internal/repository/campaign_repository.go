package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/marketingops/campaign-console/internal/models"
)

// CampaignRepository defines the interface for campaign data access.
// Mutating methods that take a history entry persist the campaign and the
// entry in one transaction: if the append fails, the mutation rolls back.
type CampaignRepository interface {
	Create(ctx context.Context, campaign *models.Campaign, entry *models.HistoryEntry) error
	GetByID(ctx context.Context, id int64) (*models.Campaign, error)
	List(ctx context.Context, filter models.CampaignFilter) ([]*models.Campaign, int64, error)
	Update(ctx context.Context, campaign *models.Campaign, entry *models.HistoryEntry) error
	Delete(ctx context.Context, id int64) error
	GetStats(ctx context.Context, id int64) (*models.CampaignStats, error)
	ListDueForActivation(ctx context.Context, now time.Time, limit int) ([]*models.Campaign, error)
	ListDueForFinish(ctx context.Context, now time.Time, limit int) ([]*models.Campaign, error)
	SurveyHasOpenCampaigns(ctx context.Context, surveyID, excludeCampaignID int64) (bool, error)
}

// campaignRepository implements CampaignRepository using PostgreSQL
type campaignRepository struct {
	db *sql.DB
}

// NewCampaignRepository creates a new campaign repository
func NewCampaignRepository(db *sql.DB) CampaignRepository {
	return &campaignRepository{db: db}
}

const campaignColumns = `id, name, theme, description, priority, channel, state, archived,
		agent_id, segment_id, survey_id, start_at, end_at, created_at, updated_at`

func scanCampaign(row interface{ Scan(...any) error }) (*models.Campaign, error) {
	campaign := &models.Campaign{}
	var description sql.NullString
	err := row.Scan(
		&campaign.ID,
		&campaign.Name,
		&campaign.Theme,
		&description,
		&campaign.Priority,
		&campaign.Channel,
		&campaign.State,
		&campaign.Archived,
		&campaign.AgentID,
		&campaign.SegmentID,
		&campaign.SurveyID,
		&campaign.StartAt,
		&campaign.EndAt,
		&campaign.CreatedAt,
		&campaign.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	campaign.Description = description.String
	return campaign, nil
}

// Create inserts a new campaign and its creation history entry atomically.
func (r *campaignRepository) Create(ctx context.Context, campaign *models.Campaign, entry *models.HistoryEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &models.PersistenceError{Err: err}
	}
	defer tx.Rollback()

	query := `
		INSERT INTO campaigns (name, theme, description, priority, channel, state, archived,
			agent_id, segment_id, survey_id, start_at, end_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`

	err = tx.QueryRowContext(
		ctx,
		query,
		campaign.Name,
		campaign.Theme,
		campaign.Description,
		campaign.Priority,
		campaign.Channel,
		campaign.State,
		campaign.Archived,
		campaign.AgentID,
		campaign.SegmentID,
		campaign.SurveyID,
		campaign.StartAt,
		campaign.EndAt,
	).Scan(&campaign.ID, &campaign.CreatedAt, &campaign.UpdatedAt)
	if err != nil {
		return &models.PersistenceError{Err: fmt.Errorf("failed to create campaign: %w", err)}
	}

	entry.CampaignID = campaign.ID
	if err := insertHistory(ctx, tx, entry); err != nil {
		return &models.PersistenceError{Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &models.PersistenceError{Err: err}
	}

	return nil
}

// GetByID retrieves a campaign by ID
func (r *campaignRepository) GetByID(ctx context.Context, id int64) (*models.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`

	campaign, err := scanCampaign(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFoundWithMsg(fmt.Sprintf("campaign with ID %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}

	return campaign, nil
}

// List retrieves campaigns with pagination and filtering. Archived campaigns
// are excluded unless the filter asks for them explicitly.
func (r *campaignRepository) List(ctx context.Context, filter models.CampaignFilter) ([]*models.Campaign, int64, error) {
	models.ValidateAndSetDefaults(&filter.Page, &filter.PageSize)

	where := ` WHERE archived = $1`
	archived := false
	if filter.Archived != nil {
		archived = *filter.Archived
	}
	args := []interface{}{archived}
	argPos := 2

	if filter.Name != "" {
		where += fmt.Sprintf(" AND name ILIKE $%d", argPos)
		args = append(args, "%"+filter.Name+"%")
		argPos++
	}
	if filter.State != "" {
		where += fmt.Sprintf(" AND state = $%d", argPos)
		args = append(args, filter.State)
		argPos++
	}
	if filter.Priority != "" {
		where += fmt.Sprintf(" AND priority = $%d", argPos)
		args = append(args, filter.Priority)
		argPos++
	}
	if filter.Channel != "" {
		where += fmt.Sprintf(" AND channel = $%d", argPos)
		args = append(args, filter.Channel)
		argPos++
	}

	var totalCount int64
	countQuery := `SELECT COUNT(*) FROM campaigns` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count campaigns: %w", err)
	}

	offset := models.CalculateOffset(filter.Page, filter.PageSize)
	query := `SELECT ` + campaignColumns + ` FROM campaigns` + where +
		fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, filter.PageSize, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	campaigns := []*models.Campaign{}
	for rows.Next() {
		campaign, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan campaign: %w", err)
		}
		campaigns = append(campaigns, campaign)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating campaigns: %w", err)
	}

	return campaigns, totalCount, nil
}

// Update persists a mutated campaign snapshot and its history entry in one
// transaction.
func (r *campaignRepository) Update(ctx context.Context, campaign *models.Campaign, entry *models.HistoryEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &models.PersistenceError{Err: err}
	}
	defer tx.Rollback()

	query := `
		UPDATE campaigns
		SET name = $1, theme = $2, description = $3, priority = $4, channel = $5,
			state = $6, archived = $7, agent_id = $8, segment_id = $9, survey_id = $10,
			start_at = $11, end_at = $12, updated_at = now()
		WHERE id = $13
		RETURNING updated_at`

	err = tx.QueryRowContext(
		ctx,
		query,
		campaign.Name,
		campaign.Theme,
		campaign.Description,
		campaign.Priority,
		campaign.Channel,
		campaign.State,
		campaign.Archived,
		campaign.AgentID,
		campaign.SegmentID,
		campaign.SurveyID,
		campaign.StartAt,
		campaign.EndAt,
		campaign.ID,
	).Scan(&campaign.UpdatedAt)
	if err == sql.ErrNoRows {
		return models.ErrNotFoundWithMsg(fmt.Sprintf("campaign with ID %d not found", campaign.ID))
	}
	if err != nil {
		return &models.PersistenceError{Err: fmt.Errorf("failed to update campaign: %w", err)}
	}

	entry.CampaignID = campaign.ID
	if err := insertHistory(ctx, tx, entry); err != nil {
		return &models.PersistenceError{Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &models.PersistenceError{Err: err}
	}

	return nil
}

// Delete removes a campaign. History rows cascade with it.
func (r *campaignRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return &models.PersistenceError{Err: fmt.Errorf("failed to delete campaign: %w", err)}
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return &models.PersistenceError{Err: err}
	}
	if rowsAffected == 0 {
		return models.ErrNotFoundWithMsg(fmt.Sprintf("campaign with ID %d not found", id))
	}

	return nil
}

// GetStats aggregates execution statistics from the interactions the
// execution channel records for the campaign.
func (r *campaignRepository) GetStats(ctx context.Context, id int64) (*models.CampaignStats, error) {
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'pending') AS pending,
			COUNT(*) FILTER (WHERE status = 'completed') AS completed,
			COUNT(*) FILTER (WHERE status = 'failed') AS failed
		FROM campaign_interactions
		WHERE campaign_id = $1`

	stats := &models.CampaignStats{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&stats.Total,
		&stats.Pending,
		&stats.Completed,
		&stats.Failed,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign stats: %w", err)
	}

	return stats, nil
}

// ListDueForActivation returns scheduled campaigns whose start time has
// passed. Consumed by the scheduler binary, not by the lifecycle core.
func (r *campaignRepository) ListDueForActivation(ctx context.Context, now time.Time, limit int) ([]*models.Campaign, error) {
	query := `SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE state = $1 AND archived = false AND start_at <= $2
		ORDER BY start_at ASC
		LIMIT $3`

	return r.listDue(ctx, query, models.StateScheduled, now, limit)
}

// ListDueForFinish returns active campaigns whose end time has passed.
func (r *campaignRepository) ListDueForFinish(ctx context.Context, now time.Time, limit int) ([]*models.Campaign, error) {
	query := `SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE state = $1 AND archived = false AND end_at <= $2
		ORDER BY end_at ASC
		LIMIT $3`

	return r.listDue(ctx, query, models.StateActive, now, limit)
}

func (r *campaignRepository) listDue(ctx context.Context, query string, state models.CampaignState, now time.Time, limit int) ([]*models.Campaign, error) {
	rows, err := r.db.QueryContext(ctx, query, state, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due campaigns: %w", err)
	}
	defer rows.Close()

	campaigns := []*models.Campaign{}
	for rows.Next() {
		campaign, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}
		campaigns = append(campaigns, campaign)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating due campaigns: %w", err)
	}

	return campaigns, nil
}

// SurveyHasOpenCampaigns reports whether the survey is still referenced by
// another campaign that has not finished or been cancelled. Blocks archive().
func (r *campaignRepository) SurveyHasOpenCampaigns(ctx context.Context, surveyID, excludeCampaignID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM campaigns
			WHERE survey_id = $1 AND id <> $2 AND state NOT IN ($3, $4)
		)`

	var exists bool
	err := r.db.QueryRowContext(ctx, query, surveyID, excludeCampaignID,
		models.StateFinished, models.StateCancelled).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check survey dependents: %w", err)
	}

	return exists, nil
}
