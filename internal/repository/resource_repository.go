package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// ResourceRepository resolves references to resources owned by neighbouring
// modules (agents, segments, surveys). The lifecycle core only needs to know
// whether a referenced id exists.
type ResourceRepository interface {
	AgentExists(ctx context.Context, id int64) (bool, error)
	SegmentExists(ctx context.Context, id int64) (bool, error)
	SurveyExists(ctx context.Context, id int64) (bool, error)
}

// resourceRepository implements ResourceRepository using PostgreSQL
type resourceRepository struct {
	db *sql.DB
}

// NewResourceRepository creates a new resource repository
func NewResourceRepository(db *sql.DB) ResourceRepository {
	return &resourceRepository{db: db}
}

func (r *resourceRepository) exists(ctx context.Context, table string, id int64) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, table)

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to resolve %s %d: %w", table, id, err)
	}

	return exists, nil
}

// AgentExists reports whether the agent id resolves
func (r *resourceRepository) AgentExists(ctx context.Context, id int64) (bool, error) {
	return r.exists(ctx, "agents", id)
}

// SegmentExists reports whether the segment id resolves
func (r *resourceRepository) SegmentExists(ctx context.Context, id int64) (bool, error) {
	return r.exists(ctx, "segments", id)
}

// SurveyExists reports whether the survey id resolves
func (r *resourceRepository) SurveyExists(ctx context.Context, id int64) (bool, error) {
	return r.exists(ctx, "surveys", id)
}
