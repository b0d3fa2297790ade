package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"edudrive/internal/domain"
)

func pqInt64Array(ids []int64) pq.Int64Array {
	return pq.Int64Array(ids)
}

type TrashRepository struct {
	db *sqlx.DB
}

func NewTrashRepository(db *sqlx.DB) *TrashRepository {
	return &TrashRepository{db: db}
}

// SoftDeleteFolder marks the folder and every live descendant folder and
// file as trashed in one transaction, stashing the restore targets. Returns
// the number of nodes (folders + files) trashed. Quota is not released;
// trash still counts against storage.
func (r *TrashRepository) SoftDeleteFolder(ctx context.Context, folderID int64, ownerID string) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	foldersQuery := `
        WITH RECURSIVE subfolder AS (
            SELECT id FROM folders
            WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL
            UNION ALL
            SELECT f.id
            FROM folders f
            INNER JOIN subfolder s ON f.parent_id = s.id
            WHERE f.deleted_at IS NULL
        )
        UPDATE folders f
        SET deleted_at = CURRENT_TIMESTAMP,
            restore_path = f.path,
            restore_parent_id = f.parent_id,
            updated_at = CURRENT_TIMESTAMP
        FROM subfolder s
        WHERE f.id = s.id
        RETURNING f.id`

	rows, err := tx.QueryContext(ctx, foldersQuery, folderID, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to trash folders: %w", err)
	}

	folderIDs := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan trashed folder id: %w", err)
		}
		folderIDs = append(folderIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("error iterating trashed folders: %w", err)
	}

	if len(folderIDs) == 0 {
		return 0, fmt.Errorf("folder %d: %w", folderID, domain.ErrNotFound)
	}

	filesQuery := `
        UPDATE files
        SET deleted_at = CURRENT_TIMESTAMP,
            restore_folder_id = folder_id,
            restore_path = (SELECT path FROM folders WHERE id = files.folder_id),
            updated_at = CURRENT_TIMESTAMP
        WHERE folder_id = ANY($1) AND deleted_at IS NULL`

	result, err := tx.ExecContext(ctx, filesQuery, pqInt64Array(folderIDs))
	if err != nil {
		return 0, fmt.Errorf("failed to trash files: %w", err)
	}
	fileCount, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}

	return len(folderIDs) + int(fileCount), nil
}

func (r *TrashRepository) SoftDeleteFile(ctx context.Context, id uuid.UUID, ownerID string) error {
	query := `
        UPDATE files
        SET deleted_at = CURRENT_TIMESTAMP,
            restore_folder_id = folder_id,
            restore_path = (SELECT path FROM folders WHERE id = files.folder_id),
            updated_at = CURRENT_TIMESTAMP
        WHERE uuid = $1 AND owner_id = $2 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to trash file: %w", err)
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

// RestoreFolder brings the folder and its trashed descendants back to live,
// but only when no live folder already occupies the restore path; otherwise
// ErrPathConflict and the whole subtree stays trashed. Returns the number of
// nodes restored.
func (r *TrashRepository) RestoreFolder(ctx context.Context, folderID int64, ownerID string) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var restorePath sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT restore_path FROM folders
         WHERE id = $1 AND owner_id = $2 AND deleted_at IS NOT NULL
         FOR UPDATE`,
		folderID, ownerID,
	).Scan(&restorePath)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, fmt.Errorf("trashed folder %d: %w", folderID, domain.ErrNotFound)
		}
		return 0, fmt.Errorf("failed to get trashed folder: %w", err)
	}
	if !restorePath.Valid {
		return 0, fmt.Errorf("trashed folder %d has no restore path: %w", folderID, domain.ErrPathConflict)
	}

	var occupied bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS(
            SELECT 1 FROM folders
            WHERE owner_id = $1 AND path = $2 AND deleted_at IS NULL
        )`,
		ownerID, restorePath.String,
	).Scan(&occupied)
	if err != nil {
		return 0, fmt.Errorf("failed to check restore path: %w", err)
	}
	if occupied {
		return 0, fmt.Errorf("path %s: %w", restorePath.String, domain.ErrPathConflict)
	}

	restoreFolders := `
        WITH RECURSIVE subfolder AS (
            SELECT id FROM folders
            WHERE id = $1 AND owner_id = $2 AND deleted_at IS NOT NULL
            UNION ALL
            SELECT f.id
            FROM folders f
            INNER JOIN subfolder s ON f.parent_id = s.id
            WHERE f.deleted_at IS NOT NULL
        )
        UPDATE folders f
        SET deleted_at = NULL,
            path = f.restore_path,
            parent_id = f.restore_parent_id,
            restore_path = NULL,
            restore_parent_id = NULL,
            updated_at = CURRENT_TIMESTAMP
        FROM subfolder s
        WHERE f.id = s.id
        RETURNING f.id`

	rows, err := tx.QueryContext(ctx, restoreFolders, folderID, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to restore folders: %w", err)
	}

	folderIDs := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan restored folder id: %w", err)
		}
		folderIDs = append(folderIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("error iterating restored folders: %w", err)
	}

	restoreFiles := `
        UPDATE files
        SET deleted_at = NULL,
            folder_id = restore_folder_id,
            restore_folder_id = NULL,
            restore_path = NULL,
            updated_at = CURRENT_TIMESTAMP
        WHERE restore_folder_id = ANY($1) AND deleted_at IS NOT NULL`

	result, err := tx.ExecContext(ctx, restoreFiles, pqInt64Array(folderIDs))
	if err != nil {
		return 0, fmt.Errorf("failed to restore files: %w", err)
	}
	fileCount, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}

	return len(folderIDs) + int(fileCount), nil
}

// RestoreFile brings one file back to live. If its original folder was
// purged in the meantime, the file lands in the drive root.
func (r *TrashRepository) RestoreFile(ctx context.Context, id uuid.UUID, ownerID string) error {
	query := `
        UPDATE files
        SET deleted_at = NULL,
            folder_id = (
                SELECT f.id FROM folders f
                WHERE f.id = files.restore_folder_id AND f.deleted_at IS NULL
            ),
            restore_folder_id = NULL,
            restore_path = NULL,
            updated_at = CURRENT_TIMESTAMP
        WHERE uuid = $1 AND owner_id = $2 AND deleted_at IS NOT NULL`

	result, err := r.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to restore file: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("trashed file %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

// List returns the top-level trash entries: trashed folders whose parent is
// not itself trashed, and trashed files whose folder is not trashed.
func (r *TrashRepository) List(ctx context.Context, ownerID string) ([]domain.TrashItem, error) {
	items := make([]domain.TrashItem, 0)

	query := `
        WITH folder_sizes AS (
            SELECT f.id, COALESCE(SUM(fi.size_bytes), 0) AS total_size
            FROM folders f
            LEFT JOIN files fi ON fi.restore_folder_id = f.id OR fi.folder_id = f.id
            WHERE f.deleted_at IS NOT NULL
            GROUP BY f.id
        ),
        trashed_folders AS (
            SELECT
                f.id::text AS id,
                f.name,
                'folder' AS type,
                f.path,
                COALESCE(fs.total_size, 0) AS size,
                f.deleted_at,
                COALESCE(f.restore_path, f.path) AS original_path,
                NULL::text AS mime_type
            FROM folders f
            LEFT JOIN folder_sizes fs ON f.id = fs.id
            WHERE f.owner_id = $1
            AND f.deleted_at IS NOT NULL
            AND NOT EXISTS (
                SELECT 1 FROM folders p
                WHERE p.id = f.restore_parent_id AND p.deleted_at IS NOT NULL
            )
        ),
        trashed_files AS (
            SELECT
                fi.uuid::text AS id,
                fi.name,
                'file' AS type,
                COALESCE(fi.restore_path, '/') AS path,
                fi.size_bytes AS size,
                fi.deleted_at,
                COALESCE(fi.restore_path, '/') AS original_path,
                fi.mime_type
            FROM files fi
            WHERE fi.owner_id = $1
            AND fi.deleted_at IS NOT NULL
            AND NOT EXISTS (
                SELECT 1 FROM folders p
                WHERE p.id = fi.restore_folder_id AND p.deleted_at IS NOT NULL
            )
        )
        SELECT id, name, type, path, size, deleted_at, original_path, mime_type
        FROM trashed_folders
        UNION ALL
        SELECT id, name, type, path, size, deleted_at, original_path, mime_type
        FROM trashed_files
        ORDER BY deleted_at DESC`

	err := r.db.SelectContext(ctx, &items, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trash: %w", err)
	}

	return items, nil
}

// PurgeFolder permanently deletes a trashed folder subtree. Returns the
// total bytes freed and the blob keys to delete from the object store.
// Terminal: rows are gone and quota is released by the caller.
func (r *TrashRepository) PurgeFolder(ctx context.Context, folderID int64, ownerID string) (int64, []string, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	subtree := `
        WITH RECURSIVE subfolder AS (
            SELECT id FROM folders
            WHERE id = $1 AND owner_id = $2 AND deleted_at IS NOT NULL
            UNION ALL
            SELECT f.id
            FROM folders f
            INNER JOIN subfolder s ON f.parent_id = s.id
        )
        SELECT id FROM subfolder`

	var folderIDs []int64
	if err := tx.SelectContext(ctx, &folderIDs, subtree, folderID, ownerID); err != nil {
		return 0, nil, fmt.Errorf("failed to collect subtree: %w", err)
	}
	if len(folderIDs) == 0 {
		return 0, nil, fmt.Errorf("trashed folder %d: %w", folderID, domain.ErrNotFound)
	}

	type purgedFile struct {
		StoredName string `db:"stored_name"`
		SizeBytes  int64  `db:"size_bytes"`
	}
	var purged []purgedFile
	deleteFiles := `
        DELETE FROM files
        WHERE folder_id = ANY($1) OR restore_folder_id = ANY($1)
        RETURNING stored_name, size_bytes`

	if err := tx.SelectContext(ctx, &purged, deleteFiles, pqInt64Array(folderIDs)); err != nil {
		return 0, nil, fmt.Errorf("failed to purge files: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM folders WHERE id = ANY($1)`, pqInt64Array(folderIDs)); err != nil {
		return 0, nil, fmt.Errorf("failed to purge folders: %w", err)
	}

	var freed int64
	keys := make([]string, 0, len(purged))
	for _, f := range purged {
		freed += f.SizeBytes
		keys = append(keys, f.StoredName)
	}

	if err := tx.Commit(); err != nil {
		return 0, nil, fmt.Errorf("failed to commit: %w", err)
	}

	return freed, keys, nil
}

func (r *TrashRepository) PurgeFile(ctx context.Context, id uuid.UUID, ownerID string) (int64, string, error) {
	var storedName string
	var sizeBytes int64

	query := `
        DELETE FROM files
        WHERE uuid = $1 AND owner_id = $2 AND deleted_at IS NOT NULL
        RETURNING stored_name, size_bytes`

	err := r.db.QueryRowContext(ctx, query, id, ownerID).Scan(&storedName, &sizeBytes)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, "", fmt.Errorf("trashed file %s: %w", id, domain.ErrNotFound)
		}
		return 0, "", fmt.Errorf("failed to purge file: %w", err)
	}

	return sizeBytes, storedName, nil
}

// PurgeExpired permanently removes every trashed row older than retention.
// Returns total bytes freed, blob keys to delete, and freed bytes per owner
// so the caller can release each drive's quota.
func (r *TrashRepository) PurgeExpired(ctx context.Context, retention time.Duration) (int64, []string, map[string]int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	type purgedFile struct {
		OwnerID    string `db:"owner_id"`
		StoredName string `db:"stored_name"`
		SizeBytes  int64  `db:"size_bytes"`
	}
	var purged []purgedFile

	deleteFiles := `
        DELETE FROM files
        WHERE deleted_at IS NOT NULL
        AND deleted_at < CURRENT_TIMESTAMP - make_interval(secs => $1)
        RETURNING owner_id, stored_name, size_bytes`

	if err := tx.SelectContext(ctx, &purged, deleteFiles, retention.Seconds()); err != nil {
		return 0, nil, nil, fmt.Errorf("failed to purge expired files: %w", err)
	}

	deleteFolders := `
        DELETE FROM folders
        WHERE deleted_at IS NOT NULL
        AND deleted_at < CURRENT_TIMESTAMP - make_interval(secs => $1)
        AND NOT EXISTS (
            SELECT 1 FROM folders c WHERE c.parent_id = folders.id
        )`

	// Children purge before parents; loop until the subtree bottoms out.
	for {
		result, err := tx.ExecContext(ctx, deleteFolders, retention.Seconds())
		if err != nil {
			return 0, nil, nil, fmt.Errorf("failed to purge expired folders: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return 0, nil, nil, fmt.Errorf("failed to get affected rows: %w", err)
		}
		if rows == 0 {
			break
		}
	}

	var freed int64
	keys := make([]string, 0, len(purged))
	perOwner := make(map[string]int64)
	for _, f := range purged {
		freed += f.SizeBytes
		keys = append(keys, f.StoredName)
		perOwner[f.OwnerID] += f.SizeBytes
	}

	if err := tx.Commit(); err != nil {
		return 0, nil, nil, fmt.Errorf("failed to commit: %w", err)
	}

	return freed, keys, perOwner, nil
}
