package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"edudrive/internal/domain"
)

type FolderRepository struct {
	db *sqlx.DB
}

func NewFolderRepository(db *sqlx.DB) *FolderRepository {
	return &FolderRepository{db: db}
}

// uniqueViolation is the Postgres error code raised by the partial unique
// index on (owner_id, path) WHERE deleted_at IS NULL.
const uniqueViolation = "23505"

func isDuplicatePath(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

func childPath(parentPath, name string) string {
	if parentPath == "/" {
		return "/" + name
	}
	return parentPath + "/" + name
}

// Create inserts a folder, deriving path and level from the parent inside
// one transaction. The unique index is the authority on path collisions;
// a violation surfaces as ErrDuplicatePath.
func (r *FolderRepository) Create(ctx context.Context, folder *domain.Folder) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var path string
	var level int

	if folder.ParentID == nil {
		path = "/"
		level = 0
	} else {
		var parentOwner string
		err := tx.QueryRowContext(ctx,
			`SELECT path, level, owner_id FROM folders WHERE id = $1 AND deleted_at IS NULL`,
			folder.ParentID,
		).Scan(&path, &level, &parentOwner)
		if err != nil {
			if err == sql.ErrNoRows {
				return fmt.Errorf("parent folder %d: %w", *folder.ParentID, domain.ErrNotFound)
			}
			return fmt.Errorf("failed to get parent folder: %w", err)
		}
		if parentOwner != folder.OwnerID {
			return fmt.Errorf("parent folder %d: %w", *folder.ParentID, domain.ErrAccessDenied)
		}

		path = childPath(path, folder.Name)
		level = level + 1
	}

	query := `
        INSERT INTO folders (name, owner_id, parent_id, path, level, subject_id)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, created_at, updated_at`

	err = tx.QueryRowContext(
		ctx,
		query,
		folder.Name,
		folder.OwnerID,
		folder.ParentID,
		path,
		level,
		folder.SubjectID,
	).Scan(&folder.ID, &folder.CreatedAt, &folder.UpdatedAt)
	if err != nil {
		if isDuplicatePath(err) {
			return fmt.Errorf("path %s: %w", path, domain.ErrDuplicatePath)
		}
		return fmt.Errorf("failed to create folder: %w", err)
	}

	folder.Path = path
	folder.Level = level

	return tx.Commit()
}

// GetByID returns a live folder; trashed or absent folders are ErrNotFound.
func (r *FolderRepository) GetByID(ctx context.Context, id int64) (*domain.Folder, error) {
	query := `
        SELECT * FROM folders
        WHERE id = $1 AND deleted_at IS NULL`

	var folder domain.Folder
	err := r.db.GetContext(ctx, &folder, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("folder %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get folder: %w", err)
	}

	return &folder, nil
}

func (r *FolderRepository) GetRoot(ctx context.Context, ownerID string) (*domain.Folder, error) {
	var folder domain.Folder
	query := `
        SELECT * FROM folders
        WHERE owner_id = $1 AND parent_id IS NULL AND deleted_at IS NULL
        LIMIT 1`

	err := r.db.GetContext(ctx, &folder, query, ownerID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("root folder for %s: %w", ownerID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get root folder: %w", err)
	}

	return &folder, nil
}

func (r *FolderRepository) GetContent(ctx context.Context, folder *domain.Folder) (*domain.FolderContent, error) {
	var subfolders []domain.Folder
	err := r.db.SelectContext(ctx, &subfolders, `
        SELECT * FROM folders
        WHERE parent_id = $1 AND deleted_at IS NULL
        ORDER BY name`, folder.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get subfolders: %w", err)
	}

	var files []domain.File
	err = r.db.SelectContext(ctx, &files, `
        SELECT * FROM files
        WHERE folder_id = $1 AND deleted_at IS NULL
        ORDER BY name`, folder.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get files: %w", err)
	}

	return &domain.FolderContent{
		Folder:  *folder,
		Files:   files,
		Folders: subfolders,
	}, nil
}

func (r *FolderRepository) GetUserFolders(ctx context.Context, ownerID string) ([]domain.Folder, error) {
	var folders []domain.Folder
	query := `
        SELECT * FROM folders
        WHERE owner_id = $1 AND deleted_at IS NULL
        ORDER BY path`

	err := r.db.SelectContext(ctx, &folders, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user folders: %w", err)
	}

	return folders, nil
}

func (r *FolderRepository) GetBySubject(ctx context.Context, ownerID string, subjectID int64) (*domain.Folder, error) {
	var folder domain.Folder
	query := `
        SELECT * FROM folders
        WHERE owner_id = $1 AND subject_id = $2 AND deleted_at IS NULL
        LIMIT 1`

	err := r.db.GetContext(ctx, &folder, query, ownerID, subjectID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("subject folder %d: %w", subjectID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get subject folder: %w", err)
	}

	return &folder, nil
}

// PathExists reports whether a live folder occupies path in the owner's
// drive. Advisory only: the unique index decides races.
func (r *FolderRepository) PathExists(ctx context.Context, ownerID, path string) (bool, error) {
	var exists bool
	query := `
        SELECT EXISTS(
            SELECT 1 FROM folders
            WHERE owner_id = $1 AND path = $2 AND deleted_at IS NULL
        )`

	err := r.db.GetContext(ctx, &exists, query, ownerID, path)
	if err != nil {
		return false, fmt.Errorf("failed to check path existence: %w", err)
	}

	return exists, nil
}

// Rename updates the folder's name and path and rewrites the paths of every
// live descendant in the same transaction.
func (r *FolderRepository) Rename(ctx context.Context, folder *domain.Folder, newName, newPath string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
        UPDATE folders
        SET name = $1,
            path = $2,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $3 AND deleted_at IS NULL`

	result, err := tx.ExecContext(ctx, query, newName, newPath, folder.ID)
	if err != nil {
		if isDuplicatePath(err) {
			return fmt.Errorf("path %s: %w", newPath, domain.ErrDuplicatePath)
		}
		return fmt.Errorf("failed to rename folder: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("folder %d: %w", folder.ID, domain.ErrNotFound)
	}

	if err := updateSubtreePaths(ctx, tx, folder.ID, folder.Path, newPath); err != nil {
		return err
	}

	return tx.Commit()
}

// Move reparents the folder and rewrites descendant paths transactionally.
// The cycle check runs again inside the transaction against current paths,
// so a concurrent move cannot sneak a folder under its own subtree.
func (r *FolderRepository) Move(ctx context.Context, folder *domain.Folder, newParent *domain.Folder) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var oldPath string
	err = tx.QueryRowContext(ctx,
		`SELECT path FROM folders WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`,
		folder.ID,
	).Scan(&oldPath)
	if err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("folder %d: %w", folder.ID, domain.ErrNotFound)
		}
		return fmt.Errorf("failed to lock folder: %w", err)
	}

	var newParentID int64
	var newPath string
	var newLevel int

	if newParent == nil {
		// moving to drive root keeps the owner's root folder as parent
		var rootID int64
		var rootPath string
		err = tx.QueryRowContext(ctx,
			`SELECT id, path FROM folders WHERE owner_id = $1 AND parent_id IS NULL AND deleted_at IS NULL`,
			folder.OwnerID,
		).Scan(&rootID, &rootPath)
		if err != nil {
			if err == sql.ErrNoRows {
				return fmt.Errorf("root folder for %s: %w", folder.OwnerID, domain.ErrNotFound)
			}
			return fmt.Errorf("failed to get root folder: %w", err)
		}
		newParentID = rootID
		newPath = childPath(rootPath, folder.Name)
		newLevel = 1
	} else {
		var parentPath string
		var parentLevel int
		err = tx.QueryRowContext(ctx,
			`SELECT path, level FROM folders WHERE id = $1 AND deleted_at IS NULL`,
			newParent.ID,
		).Scan(&parentPath, &parentLevel)
		if err != nil {
			if err == sql.ErrNoRows {
				return fmt.Errorf("target folder %d: %w", newParent.ID, domain.ErrNotFound)
			}
			return fmt.Errorf("failed to get target folder: %w", err)
		}

		if parentPath == oldPath || strings.HasPrefix(parentPath, oldPath+"/") {
			return fmt.Errorf("folder %d into %d: %w", folder.ID, newParent.ID, domain.ErrInvalidMove)
		}

		newParentID = newParent.ID
		newPath = childPath(parentPath, folder.Name)
		newLevel = parentLevel + 1
	}

	query := `
        UPDATE folders
        SET parent_id = $1,
            path = $2,
            level = $3,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $4`

	_, err = tx.ExecContext(ctx, query, newParentID, newPath, newLevel, folder.ID)
	if err != nil {
		if isDuplicatePath(err) {
			return fmt.Errorf("path %s: %w", newPath, domain.ErrDuplicatePath)
		}
		return fmt.Errorf("failed to move folder: %w", err)
	}

	if err := updateSubtreePaths(ctx, tx, folder.ID, oldPath, newPath); err != nil {
		return err
	}

	return tx.Commit()
}

// updateSubtreePaths rewrites the path prefix and adjusts the level of every
// live descendant of folderID. Either the whole subtree updates or the
// enclosing transaction rolls back.
func updateSubtreePaths(ctx context.Context, tx *sqlx.Tx, folderID int64, oldPath, newPath string) error {
	if oldPath == newPath {
		return nil
	}

	query := `
        WITH RECURSIVE subfolder AS (
            SELECT id FROM folders WHERE parent_id = $1 AND deleted_at IS NULL
            UNION ALL
            SELECT f.id
            FROM folders f
            INNER JOIN subfolder s ON f.parent_id = s.id
            WHERE f.deleted_at IS NULL
        )
        UPDATE folders f
        SET path = $3 || substring(f.path from length($2) + 1),
            level = f.level + (array_length(string_to_array($3, '/'), 1) - array_length(string_to_array($2, '/'), 1)),
            updated_at = CURRENT_TIMESTAMP
        WHERE f.id IN (SELECT id FROM subfolder)`

	if _, err := tx.ExecContext(ctx, query, folderID, oldPath, newPath); err != nil {
		if isDuplicatePath(err) {
			return fmt.Errorf("subtree under %s: %w", newPath, domain.ErrDuplicatePath)
		}
		return fmt.Errorf("failed to update subtree paths: %w", err)
	}

	return nil
}
