package domain

import (
	"time"

	"github.com/google/uuid"
)

type File struct {
	UUID            uuid.UUID  `json:"uuid" db:"uuid"`
	Name            string     `json:"name" db:"name"`
	StoredName      string     `json:"stored_name" db:"stored_name"`
	MIMEType        string     `json:"mime_type" db:"mime_type"`
	SizeBytes       int64      `json:"size_bytes" db:"size_bytes"`
	ContentHash     string     `json:"content_hash" db:"content_hash"`
	FolderID        *int64     `json:"folder_id,omitempty" db:"folder_id"`
	OwnerID         string     `json:"owner_id" db:"owner_id"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
	RestorePath     *string    `json:"restore_path,omitempty" db:"restore_path"`
	RestoreFolderID *int64     `json:"restore_folder_id,omitempty" db:"restore_folder_id"`
}

type FileUpload struct {
	Name     string
	MIMEType string
	Size     int64
	FolderID *int64
	Data     []byte
}

// UploadResult reports what the upload actually did. Deduplicated is true
// when the dedup policy matched an existing live file and no new blob was
// stored; File then points at that existing file.
type UploadResult struct {
	File         *File `json:"file"`
	Deduplicated bool  `json:"deduplicated"`
}

type FileDownload struct {
	File *File
	Data []byte
}
