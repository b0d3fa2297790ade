package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"edudrive/internal/domain"
)

type ActivityRepository struct {
	db *sqlx.DB
}

func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Insert appends one activity row. The table is append-only: no update or
// delete path exists in this package.
func (r *ActivityRepository) Insert(ctx context.Context, activity *domain.Activity) error {
	if activity.ID == uuid.Nil {
		activity.ID = uuid.New()
	}
	if len(activity.Metadata) == 0 {
		activity.Metadata = []byte(`{}`)
	}

	query := `
        INSERT INTO activities (id, owner_id, actor_id, action, target_type, target_name, metadata)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		activity.ID,
		activity.OwnerID,
		activity.ActorID,
		activity.Action,
		activity.TargetType,
		activity.TargetName,
		activity.Metadata,
	).Scan(&activity.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}

	return nil
}

// Query returns a page of activities newest-first plus the total count for
// the same filter.
func (r *ActivityRepository) Query(ctx context.Context, ownerID string, filter domain.ActivityFilter) ([]domain.Activity, int64, error) {
	where := `WHERE owner_id = $1`
	args := []interface{}{ownerID}

	if filter.Action != "" {
		where += ` AND action = $2`
		args = append(args, filter.Action)
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM activities ` + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count activities: %w", err)
	}

	offset := (filter.Page - 1) * filter.Limit
	listQuery := fmt.Sprintf(`
        SELECT * FROM activities %s
        ORDER BY created_at DESC
        LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, offset)

	activities := make([]domain.Activity, 0, filter.Limit)
	if err := r.db.SelectContext(ctx, &activities, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to query activities: %w", err)
	}

	return activities, total, nil
}

// Stats returns the per-action row counts for the owner's whole log.
func (r *ActivityRepository) Stats(ctx context.Context, ownerID string) (map[domain.Action]int64, error) {
	rows := []struct {
		Action domain.Action `db:"action"`
		Count  int64         `db:"count"`
	}{}

	query := `
        SELECT action, COUNT(*) AS count
        FROM activities
        WHERE owner_id = $1
        GROUP BY action`

	if err := r.db.SelectContext(ctx, &rows, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to get activity stats: %w", err)
	}

	stats := make(map[domain.Action]int64, len(rows))
	for _, row := range rows {
		stats[row.Action] = row.Count
	}

	return stats, nil
}
