package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"edudrive/internal/domain"
)

// Narrow interfaces consumed by the service layer. The concrete
// implementations in this package run raw SQL; tests substitute in-memory
// fakes.

type DriveStore interface {
	GetOrCreate(ctx context.Context, ownerID string) (*domain.Drive, error)
	ReserveStorage(ctx context.Context, ownerID string, deltaBytes int64) error
	ReleaseStorage(ctx context.Context, ownerID string, bytes int64) error
	ReserveBandwidth(ctx context.Context, ownerID string, deltaBytes int64, period time.Duration) error
	UpdateStorageLimit(ctx context.Context, ownerID string, newLimit int64) error
}

type FolderStore interface {
	Create(ctx context.Context, folder *domain.Folder) error
	GetByID(ctx context.Context, id int64) (*domain.Folder, error)
	GetRoot(ctx context.Context, ownerID string) (*domain.Folder, error)
	GetContent(ctx context.Context, folder *domain.Folder) (*domain.FolderContent, error)
	GetUserFolders(ctx context.Context, ownerID string) ([]domain.Folder, error)
	GetBySubject(ctx context.Context, ownerID string, subjectID int64) (*domain.Folder, error)
	PathExists(ctx context.Context, ownerID, path string) (bool, error)
	Rename(ctx context.Context, folder *domain.Folder, newName, newPath string) error
	Move(ctx context.Context, folder *domain.Folder, newParent *domain.Folder) error
}

type FileStore interface {
	Create(ctx context.Context, file *domain.File) error
	GetByUUID(ctx context.Context, id uuid.UUID) (*domain.File, error)
	GetLive(ctx context.Context, id uuid.UUID) (*domain.File, error)
	FindLiveByHash(ctx context.Context, ownerID, contentHash string) (*domain.File, error)
	ExistsInFolder(ctx context.Context, folderID *int64, ownerID, name string) (bool, error)
	Rename(ctx context.Context, id uuid.UUID, newName string) error
	Move(ctx context.Context, id uuid.UUID, folderID *int64) error
}

type TrashStore interface {
	SoftDeleteFolder(ctx context.Context, folderID int64, ownerID string) (int, error)
	SoftDeleteFile(ctx context.Context, id uuid.UUID, ownerID string) error
	RestoreFolder(ctx context.Context, folderID int64, ownerID string) (int, error)
	RestoreFile(ctx context.Context, id uuid.UUID, ownerID string) error
	List(ctx context.Context, ownerID string) ([]domain.TrashItem, error)
	PurgeFolder(ctx context.Context, folderID int64, ownerID string) (int64, []string, error)
	PurgeFile(ctx context.Context, id uuid.UUID, ownerID string) (int64, string, error)
	PurgeExpired(ctx context.Context, retention time.Duration) (int64, []string, map[string]int64, error)
}

type ActivityStore interface {
	Insert(ctx context.Context, activity *domain.Activity) error
	Query(ctx context.Context, ownerID string, filter domain.ActivityFilter) ([]domain.Activity, int64, error)
	Stats(ctx context.Context, ownerID string) (map[domain.Action]int64, error)
}

type SubjectStore interface {
	GetSubject(ctx context.Context, id int64) (*domain.Subject, error)
	GetMaterials(ctx context.Context, subjectID int64) ([]domain.Material, error)
}
