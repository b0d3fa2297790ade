package domain

import (
	"time"
)

type Folder struct {
	ID              int64      `json:"id" db:"id"`
	Name            string     `json:"name" db:"name"`
	OwnerID         string     `json:"owner_id" db:"owner_id"`
	ParentID        *int64     `json:"parent_id,omitempty" db:"parent_id"`
	Path            string     `json:"path" db:"path"`
	Level           int        `json:"level" db:"level"`
	SizeBytes       int64      `json:"size_bytes" db:"size_bytes"`
	FilesCount      int        `json:"files_count" db:"files_count"`
	SubjectID       *int64     `json:"subject_id,omitempty" db:"subject_id"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
	RestorePath     *string    `json:"restore_path,omitempty" db:"restore_path"`
	RestoreParentID *int64     `json:"restore_parent_id,omitempty" db:"restore_parent_id"`
}

type FolderContent struct {
	Folder  Folder   `json:"folder"`
	Files   []File   `json:"files"`
	Folders []Folder `json:"subfolders"`
}
