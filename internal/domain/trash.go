package domain

import "time"

// TrashItem is one entry in the trash listing. It can be a file or a folder;
// folders carry the aggregate size of their trashed files.
type TrashItem struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Type         string    `json:"type" db:"type"`
	Path         string    `json:"path" db:"path"`
	Size         int64     `json:"size" db:"size"`
	DeletedAt    time.Time `json:"deleted_at" db:"deleted_at"`
	OriginalPath string    `json:"original_path" db:"original_path"`
	ExpiresIn    string    `json:"expires_in"`
	MIMEType     *string   `json:"mime_type,omitempty" db:"mime_type"`
}
