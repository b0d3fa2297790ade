package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"edudrive/internal/domain"
)

// DriveDefaults are applied when a drive row is created on first use.
type DriveDefaults struct {
	StorageLimit    int64
	BandwidthLimit  int64
	BandwidthPeriod time.Duration
	TrashRetention  time.Duration
}

type DriveRepository struct {
	db       *sqlx.DB
	defaults DriveDefaults
}

func NewDriveRepository(db *sqlx.DB, defaults DriveDefaults) *DriveRepository {
	return &DriveRepository{db: db, defaults: defaults}
}

func (r *DriveRepository) GetOrCreate(ctx context.Context, ownerID string) (*domain.Drive, error) {
	var drive domain.Drive

	err := r.db.GetContext(ctx, &drive,
		`SELECT * FROM drives WHERE owner_id = $1`, ownerID)
	if err == nil {
		return &drive, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get drive: %w", err)
	}

	query := `
        INSERT INTO drives (owner_id, storage_limit, bandwidth_limit, bandwidth_reset_at, trash_retention)
        VALUES ($1, $2, $3, CURRENT_TIMESTAMP + make_interval(secs => $4), make_interval(secs => $5))
        ON CONFLICT (owner_id) DO UPDATE SET updated_at = CURRENT_TIMESTAMP
        RETURNING *`

	err = r.db.GetContext(ctx, &drive, query,
		ownerID,
		r.defaults.StorageLimit,
		r.defaults.BandwidthLimit,
		r.defaults.BandwidthPeriod.Seconds(),
		r.defaults.TrashRetention.Seconds(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive: %w", err)
	}

	return &drive, nil
}

// ReserveStorage charges deltaBytes against the storage quota. The check and
// the charge are one conditional UPDATE so concurrent uploads cannot
// overshoot the limit; an exact fit (used + delta == limit) is admitted.
func (r *DriveRepository) ReserveStorage(ctx context.Context, ownerID string, deltaBytes int64) error {
	query := `
        UPDATE drives
        SET storage_used = storage_used + $1,
            updated_at = CURRENT_TIMESTAMP
        WHERE owner_id = $2
        AND storage_used + $1 <= storage_limit`

	result, err := r.db.ExecContext(ctx, query, deltaBytes, ownerID)
	if err != nil {
		return fmt.Errorf("failed to reserve storage: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		// Either the drive row is missing or the reservation does not fit.
		var exists bool
		if err := r.db.GetContext(ctx, &exists,
			`SELECT EXISTS(SELECT 1 FROM drives WHERE owner_id = $1)`, ownerID); err != nil {
			return fmt.Errorf("failed to check drive existence: %w", err)
		}
		if !exists {
			return fmt.Errorf("drive for owner %s: %w", ownerID, domain.ErrNotFound)
		}
		return fmt.Errorf("storage: %w", domain.ErrQuotaExceeded)
	}

	return nil
}

func (r *DriveRepository) ReleaseStorage(ctx context.Context, ownerID string, bytes int64) error {
	query := `
        UPDATE drives
        SET storage_used = GREATEST(0, storage_used - $1),
            updated_at = CURRENT_TIMESTAMP
        WHERE owner_id = $2`

	result, err := r.db.ExecContext(ctx, query, bytes, ownerID)
	if err != nil {
		return fmt.Errorf("failed to release storage: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("drive for owner %s: %w", ownerID, domain.ErrNotFound)
	}

	return nil
}

// ReserveBandwidth charges deltaBytes against the bandwidth quota. When the
// reset boundary has passed, the counter restarts at deltaBytes and the
// boundary advances by period in the same statement, so a charge can never
// be double-counted across the boundary.
func (r *DriveRepository) ReserveBandwidth(ctx context.Context, ownerID string, deltaBytes int64, period time.Duration) error {
	query := `
        UPDATE drives
        SET bandwidth_used = CASE
                WHEN CURRENT_TIMESTAMP >= bandwidth_reset_at THEN $1
                ELSE bandwidth_used + $1
            END,
            bandwidth_reset_at = CASE
                WHEN CURRENT_TIMESTAMP >= bandwidth_reset_at THEN CURRENT_TIMESTAMP + make_interval(secs => $2)
                ELSE bandwidth_reset_at
            END,
            updated_at = CURRENT_TIMESTAMP
        WHERE owner_id = $3
        AND (CASE
                WHEN CURRENT_TIMESTAMP >= bandwidth_reset_at THEN $1
                ELSE bandwidth_used + $1
            END) <= bandwidth_limit`

	result, err := r.db.ExecContext(ctx, query, deltaBytes, period.Seconds(), ownerID)
	if err != nil {
		return fmt.Errorf("failed to reserve bandwidth: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		var exists bool
		if err := r.db.GetContext(ctx, &exists,
			`SELECT EXISTS(SELECT 1 FROM drives WHERE owner_id = $1)`, ownerID); err != nil {
			return fmt.Errorf("failed to check drive existence: %w", err)
		}
		if !exists {
			return fmt.Errorf("drive for owner %s: %w", ownerID, domain.ErrNotFound)
		}
		return fmt.Errorf("bandwidth: %w", domain.ErrQuotaExceeded)
	}

	return nil
}

func (r *DriveRepository) UpdateStorageLimit(ctx context.Context, ownerID string, newLimit int64) error {
	query := `
        UPDATE drives
        SET storage_limit = $1,
            updated_at = CURRENT_TIMESTAMP
        WHERE owner_id = $2`

	result, err := r.db.ExecContext(ctx, query, newLimit, ownerID)
	if err != nil {
		return fmt.Errorf("failed to update storage limit: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("drive for owner %s: %w", ownerID, domain.ErrNotFound)
	}

	return nil
}
