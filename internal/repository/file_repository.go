package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"edudrive/internal/domain"
)

type FileRepository struct {
	db *sqlx.DB
}

func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

// Create inserts the file row and bumps the size/count rollups of the folder
// chain in one transaction. The caller persists the blob first: a row only
// ever points at durably stored bytes.
func (r *FileRepository) Create(ctx context.Context, file *domain.File) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
        INSERT INTO files (uuid, name, stored_name, mime_type, size_bytes, content_hash, folder_id, owner_id)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING created_at, updated_at`

	err = tx.QueryRowContext(
		ctx,
		query,
		file.UUID,
		file.Name,
		file.StoredName,
		file.MIMEType,
		file.SizeBytes,
		file.ContentHash,
		file.FolderID,
		file.OwnerID,
	).Scan(&file.CreatedAt, &file.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if file.FolderID != nil {
		updateQuery := `
            WITH RECURSIVE folder_tree AS (
                SELECT id, parent_id FROM folders WHERE id = $1
                UNION ALL
                SELECT f.id, f.parent_id
                FROM folders f
                INNER JOIN folder_tree ft ON f.id = ft.parent_id
            )
            UPDATE folders f
            SET size_bytes = f.size_bytes + $2,
                files_count = f.files_count + 1,
                updated_at = CURRENT_TIMESTAMP
            WHERE f.id IN (SELECT id FROM folder_tree)`

		if _, err := tx.ExecContext(ctx, updateQuery, *file.FolderID, file.SizeBytes); err != nil {
			return fmt.Errorf("failed to update folder rollups: %w", err)
		}
	}

	return tx.Commit()
}

func (r *FileRepository) GetByUUID(ctx context.Context, id uuid.UUID) (*domain.File, error) {
	var file domain.File
	err := r.db.GetContext(ctx, &file, `SELECT * FROM files WHERE uuid = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("file %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get file: %w", err)
	}

	return &file, nil
}

// GetLive returns a file that has not been trashed.
func (r *FileRepository) GetLive(ctx context.Context, id uuid.UUID) (*domain.File, error) {
	var file domain.File
	err := r.db.GetContext(ctx, &file,
		`SELECT * FROM files WHERE uuid = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("file %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get file: %w", err)
	}

	return &file, nil
}

// FindLiveByHash looks for a live file with identical content in the same
// drive; the dedup key. ErrNotFound means no duplicate exists.
func (r *FileRepository) FindLiveByHash(ctx context.Context, ownerID, contentHash string) (*domain.File, error) {
	var file domain.File
	query := `
        SELECT * FROM files
        WHERE owner_id = $1 AND content_hash = $2 AND deleted_at IS NULL
        ORDER BY created_at
        LIMIT 1`

	err := r.db.GetContext(ctx, &file, query, ownerID, contentHash)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find file by hash: %w", err)
	}

	return &file, nil
}

func (r *FileRepository) ExistsInFolder(ctx context.Context, folderID *int64, ownerID, name string) (bool, error) {
	var exists bool
	query := `
        SELECT EXISTS(
            SELECT 1 FROM files
            WHERE folder_id IS NOT DISTINCT FROM $1
            AND owner_id = $2 AND name = $3 AND deleted_at IS NULL
        )`

	err := r.db.GetContext(ctx, &exists, query, folderID, ownerID, name)
	if err != nil {
		return false, fmt.Errorf("failed to check file existence: %w", err)
	}

	return exists, nil
}

func (r *FileRepository) Rename(ctx context.Context, id uuid.UUID, newName string) error {
	query := `
        UPDATE files
        SET name = $1,
            updated_at = CURRENT_TIMESTAMP
        WHERE uuid = $2 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, newName, id)
	if err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("file %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

// Move reassigns the file's folder and shifts the rollups of both folder
// chains in one transaction.
func (r *FileRepository) Move(ctx context.Context, id uuid.UUID, folderID *int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var oldFolderID *int64
	var sizeBytes int64
	err = tx.QueryRowContext(ctx,
		`SELECT folder_id, size_bytes FROM files WHERE uuid = $1 AND deleted_at IS NULL FOR UPDATE`,
		id,
	).Scan(&oldFolderID, &sizeBytes)
	if err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("file %s: %w", id, domain.ErrNotFound)
		}
		return fmt.Errorf("failed to lock file: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE files SET folder_id = $1, updated_at = CURRENT_TIMESTAMP WHERE uuid = $2`,
		folderID, id)
	if err != nil {
		return fmt.Errorf("failed to move file: %w", err)
	}

	rollup := `
        WITH RECURSIVE folder_tree AS (
            SELECT id, parent_id FROM folders WHERE id = $1
            UNION ALL
            SELECT f.id, f.parent_id
            FROM folders f
            INNER JOIN folder_tree ft ON f.id = ft.parent_id
        )
        UPDATE folders f
        SET size_bytes = f.size_bytes + $2,
            files_count = f.files_count + $3,
            updated_at = CURRENT_TIMESTAMP
        WHERE f.id IN (SELECT id FROM folder_tree)`

	if oldFolderID != nil {
		if _, err := tx.ExecContext(ctx, rollup, *oldFolderID, -sizeBytes, -1); err != nil {
			return fmt.Errorf("failed to update source folder rollups: %w", err)
		}
	}
	if folderID != nil {
		if _, err := tx.ExecContext(ctx, rollup, *folderID, sizeBytes, 1); err != nil {
			return fmt.Errorf("failed to update target folder rollups: %w", err)
		}
	}

	return tx.Commit()
}
