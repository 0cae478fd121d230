package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/marketingops/campaign-console/internal/models"
)

// queryer is satisfied by both *sql.DB and *sql.Tx, so history appends can
// join the transaction of the mutation they record.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// HistoryRepository defines the interface for audit history data access.
// Entries are append-only; there are no update or delete operations.
type HistoryRepository interface {
	Append(ctx context.Context, entry *models.HistoryEntry) error
	ListByCampaign(ctx context.Context, campaignID int64) ([]*models.HistoryEntry, error)
}

// historyRepository implements HistoryRepository using PostgreSQL
type historyRepository struct {
	db *sql.DB
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB) HistoryRepository {
	return &historyRepository{db: db}
}

// insertHistory appends one entry using q, which may be a transaction shared
// with the campaign mutation the entry records. The database assigns the
// timestamp so entries for a campaign order by recorded_at with the row id
// breaking ties.
func insertHistory(ctx context.Context, q queryer, entry *models.HistoryEntry) error {
	query := `
		INSERT INTO campaign_history (campaign_id, action, actor, detail)
		VALUES ($1, $2, $3, $4)
		RETURNING id, recorded_at`

	err := q.QueryRowContext(
		ctx,
		query,
		entry.CampaignID,
		entry.Action,
		entry.Actor,
		entry.Detail,
	).Scan(&entry.ID, &entry.RecordedAt)

	if err != nil {
		return fmt.Errorf("failed to append history entry: %w", err)
	}

	return nil
}

// Append records a standalone history entry, outside any campaign mutation.
// Used by the execution dispatcher for execution errors.
func (r *historyRepository) Append(ctx context.Context, entry *models.HistoryEntry) error {
	if err := insertHistory(ctx, r.db, entry); err != nil {
		return &models.PersistenceError{Err: err}
	}
	return nil
}

// ListByCampaign returns a campaign's full history, oldest first.
func (r *historyRepository) ListByCampaign(ctx context.Context, campaignID int64) ([]*models.HistoryEntry, error) {
	query := `
		SELECT id, campaign_id, action, actor, detail, recorded_at
		FROM campaign_history
		WHERE campaign_id = $1
		ORDER BY recorded_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	entries := []*models.HistoryEntry{}
	for rows.Next() {
		entry := &models.HistoryEntry{}
		err := rows.Scan(
			&entry.ID,
			&entry.CampaignID,
			&entry.Action,
			&entry.Actor,
			&entry.Detail,
			&entry.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}

	return entries, nil
}
