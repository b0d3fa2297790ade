package domain

import "time"

// Subject is the external collaborator collection mirrored into a drive by
// the sync orchestrator. Read-only from this service's point of view.
type Subject struct {
	ID        int64     `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Material struct {
	ID        int64  `json:"id" db:"id"`
	SubjectID int64  `json:"subject_id" db:"subject_id"`
	Name      string `json:"name" db:"name"`
	MIMEType  string `json:"mime_type" db:"mime_type"`
	SizeBytes int64  `json:"size_bytes" db:"size_bytes"`
	BlobKey   string `json:"blob_key" db:"blob_key"`
}

type SyncResult struct {
	Synced int      `json:"synced"`
	Total  int      `json:"total"`
	Failed []string `json:"failed,omitempty"`
}
