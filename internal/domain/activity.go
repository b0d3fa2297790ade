package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
)

type Action string

const (
	ActionUpload       Action = "upload"
	ActionDownload     Action = "download"
	ActionDelete       Action = "delete"
	ActionMove         Action = "move"
	ActionRename       Action = "rename"
	ActionRestore      Action = "restore"
	ActionPurge        Action = "purge"
	ActionFolderCreate Action = "folder_create"
	ActionSync         Action = "sync"
)

type TargetType string

const (
	TargetFile   TargetType = "file"
	TargetFolder TargetType = "folder"
)

// Activity is one append-only log record. Rows are never updated or deleted
// by normal operation.
type Activity struct {
	ID         uuid.UUID      `json:"id" db:"id"`
	OwnerID    string         `json:"owner_id" db:"owner_id"`
	ActorID    string         `json:"actor_id" db:"actor_id"`
	Action     Action         `json:"action" db:"action"`
	TargetType TargetType     `json:"target_type" db:"target_type"`
	TargetName string         `json:"target_name" db:"target_name"`
	Metadata   types.JSONText `json:"metadata,omitempty" db:"metadata"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
}

type ActivityFilter struct {
	Action Action
	Page   int
	Limit  int
}

type ActivityStats struct {
	Total    int64            `json:"total"`
	ByAction map[Action]int64 `json:"by_action"`
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

type ActivityPage struct {
	Activities []Activity    `json:"activities"`
	Stats      ActivityStats `json:"stats"`
	Pagination Pagination    `json:"pagination"`
}
