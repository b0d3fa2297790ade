package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"edudrive/internal/domain"
	"edudrive/internal/repository"
)

// AccessService authorizes an actor against drive/folder/file ownership.
// It runs before every mutating or content-serving operation. Ownership
// failures are reported as ErrNotFound so the API cannot be probed for the
// existence of other users' resources; the distinction is kept internally
// for activity metadata.
type AccessService struct {
	folderRepo repository.FolderStore
	fileRepo   repository.FileStore
}

func NewAccessService(folderRepo repository.FolderStore, fileRepo repository.FileStore) *AccessService {
	return &AccessService{
		folderRepo: folderRepo,
		fileRepo:   fileRepo,
	}
}

// OwnsDrive reports whether the actor owns the drive. Drives are keyed by
// owner, so this is an identity check kept for symmetry with the other two.
func (s *AccessService) OwnsDrive(actorID, ownerID string) bool {
	return actorID != "" && actorID == ownerID
}

// OwnsFolder resolves a live folder and verifies the actor owns it.
func (s *AccessService) OwnsFolder(ctx context.Context, actorID string, folderID int64) (*domain.Folder, error) {
	folder, err := s.folderRepo.GetByID(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if folder.OwnerID != actorID {
		return nil, fmt.Errorf("folder %d: %w", folderID, domain.ErrNotFound)
	}

	return folder, nil
}

// OwnsFile resolves a live file and verifies the actor owns it.
func (s *AccessService) OwnsFile(ctx context.Context, actorID string, fileID uuid.UUID) (*domain.File, error) {
	file, err := s.fileRepo.GetLive(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file.OwnerID != actorID {
		return nil, fmt.Errorf("file %s: %w", fileID, domain.ErrNotFound)
	}

	return file, nil
}

// OwnsTrashedFile is OwnsFile for files already in the trash.
func (s *AccessService) OwnsTrashedFile(ctx context.Context, actorID string, fileID uuid.UUID) (*domain.File, error) {
	file, err := s.fileRepo.GetByUUID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file.OwnerID != actorID || file.DeletedAt == nil {
		return nil, fmt.Errorf("trashed file %s: %w", fileID, domain.ErrNotFound)
	}

	return file, nil
}
