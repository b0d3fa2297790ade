package service

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"

	"edudrive/internal/domain"
	"edudrive/internal/repository"
	"edudrive/internal/service/s3"
)

// TrashService implements the two-stage delete lifecycle. Soft delete hides
// an item (and its subtree) from normal listings but keeps quota charged;
// purge removes rows and blobs permanently and releases the quota. Trashed
// items past the retention window are purged by AutoCleanup.
type TrashService struct {
	trashRepo repository.TrashStore
	storage   s3.Storage
	quota     *QuotaService
	access    *AccessService
	activity  *ActivityService
	retention time.Duration
}

func NewTrashService(
	trashRepo repository.TrashStore,
	storage s3.Storage,
	quota *QuotaService,
	access *AccessService,
	activity *ActivityService,
	retention time.Duration,
) *TrashService {
	return &TrashService{
		trashRepo: trashRepo,
		storage:   storage,
		quota:     quota,
		access:    access,
		activity:  activity,
		retention: retention,
	}
}

func (s *TrashService) record(ctx context.Context, actorID string, action domain.Action, tt domain.TargetType, name string, meta map[string]any) {
	_ = s.activity.Record(ctx, actorID, actorID, action, tt, name, meta)
}

// DeleteFolder soft-deletes a folder together with every live descendant
// folder and file. Returns the number of folders trashed.
func (s *TrashService) DeleteFolder(ctx context.Context, actorID string, folderID int64) (int, error) {
	folder, err := s.access.OwnsFolder(ctx, actorID, folderID)
	if err != nil {
		return 0, err
	}
	if folder.ParentID == nil {
		return 0, fmt.Errorf("cannot delete: %w", domain.ErrRootImmutable)
	}

	count, err := s.trashRepo.SoftDeleteFolder(ctx, folderID, actorID)
	if err != nil {
		return 0, err
	}

	s.record(ctx, actorID, domain.ActionDelete, domain.TargetFolder, folder.Name, map[string]any{
		"folder_id":       folderID,
		"folders_trashed": count,
	})

	return count, nil
}

func (s *TrashService) DeleteFile(ctx context.Context, actorID string, id uuid.UUID) error {
	file, err := s.access.OwnsFile(ctx, actorID, id)
	if err != nil {
		return err
	}

	if err := s.trashRepo.SoftDeleteFile(ctx, id, actorID); err != nil {
		return err
	}

	s.record(ctx, actorID, domain.ActionDelete, domain.TargetFile, file.Name, map[string]any{
		"file_id": id.String(),
	})

	return nil
}

// RestoreFolder brings a trashed folder subtree back. Returns
// ErrPathConflict when a live folder now occupies the original path.
func (s *TrashService) RestoreFolder(ctx context.Context, actorID string, folderID int64) (int, error) {
	count, err := s.trashRepo.RestoreFolder(ctx, folderID, actorID)
	if err != nil {
		return 0, err
	}

	s.record(ctx, actorID, domain.ActionRestore, domain.TargetFolder, strconv.FormatInt(folderID, 10), map[string]any{
		"folder_id":        folderID,
		"folders_restored": count,
	})

	return count, nil
}

// RestoreFile brings a single trashed file back. If its original folder was
// purged in the meantime the file lands in the drive root.
func (s *TrashService) RestoreFile(ctx context.Context, actorID string, id uuid.UUID) error {
	file, err := s.access.OwnsTrashedFile(ctx, actorID, id)
	if err != nil {
		return err
	}

	if err := s.trashRepo.RestoreFile(ctx, id, actorID); err != nil {
		return err
	}

	s.record(ctx, actorID, domain.ActionRestore, domain.TargetFile, file.Name, map[string]any{
		"file_id": id.String(),
	})

	return nil
}

// List returns the actor's top-level trash entries with their time left
// before automatic purge.
func (s *TrashService) List(ctx context.Context, actorID string) ([]domain.TrashItem, error) {
	items, err := s.trashRepo.List(ctx, actorID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	for i := range items {
		expiresAt := items[i].DeletedAt.Add(s.retention)
		left := expiresAt.Sub(now)
		if left < 0 {
			left = 0
		}
		items[i].ExpiresIn = formatDaysLeft(left)
	}

	return items, nil
}

func formatDaysLeft(d time.Duration) string {
	days := int(d.Hours() / 24)
	if days <= 0 {
		if d > 0 {
			return "less than a day"
		}
		return "expired"
	}
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}

// PurgeFolder permanently deletes a trashed folder subtree: rows first, then
// blobs, then the storage quota is released. A blob that fails to delete is
// logged and skipped; the next cleanup of the bucket catches strays.
func (s *TrashService) PurgeFolder(ctx context.Context, actorID string, folderID int64) error {
	freed, keys, err := s.trashRepo.PurgeFolder(ctx, folderID, actorID)
	if err != nil {
		return err
	}

	s.deleteBlobs(ctx, keys)

	if err := s.quota.Release(ctx, actorID, freed); err != nil {
		log.Printf("[TrashService] Failed to release %d bytes for %s after purge: %v", freed, actorID, err)
	}

	s.record(ctx, actorID, domain.ActionPurge, domain.TargetFolder, strconv.FormatInt(folderID, 10), map[string]any{
		"folder_id":   folderID,
		"bytes_freed": freed,
		"files":       len(keys),
	})

	return nil
}

func (s *TrashService) PurgeFile(ctx context.Context, actorID string, id uuid.UUID) error {
	file, err := s.access.OwnsTrashedFile(ctx, actorID, id)
	if err != nil {
		return err
	}

	freed, key, err := s.trashRepo.PurgeFile(ctx, id, actorID)
	if err != nil {
		return err
	}

	s.deleteBlobs(ctx, []string{key})

	if err := s.quota.Release(ctx, actorID, freed); err != nil {
		log.Printf("[TrashService] Failed to release %d bytes for %s after purge: %v", freed, actorID, err)
	}

	s.record(ctx, actorID, domain.ActionPurge, domain.TargetFile, file.Name, map[string]any{
		"file_id":     id.String(),
		"bytes_freed": freed,
	})

	return nil
}

// EmptyTrash purges everything currently in the actor's trash.
func (s *TrashService) EmptyTrash(ctx context.Context, actorID string) (int, error) {
	items, err := s.trashRepo.List(ctx, actorID)
	if err != nil {
		return 0, err
	}

	purged := 0
	for _, item := range items {
		switch item.Type {
		case "folder":
			folderID, err := strconv.ParseInt(item.ID, 10, 64)
			if err != nil {
				log.Printf("[TrashService] Skipping trash entry with bad folder id %q: %v", item.ID, err)
				continue
			}
			if err := s.PurgeFolder(ctx, actorID, folderID); err != nil {
				log.Printf("[TrashService] Failed to purge folder %d: %v", folderID, err)
				continue
			}
		case "file":
			fileID, err := uuid.Parse(item.ID)
			if err != nil {
				log.Printf("[TrashService] Skipping trash entry with bad file id %q: %v", item.ID, err)
				continue
			}
			if err := s.PurgeFile(ctx, actorID, fileID); err != nil {
				log.Printf("[TrashService] Failed to purge file %s: %v", fileID, err)
				continue
			}
		}
		purged++
	}

	return purged, nil
}

// AutoCleanup purges every trashed item past the retention window, across
// all drives. Run periodically from main.
func (s *TrashService) AutoCleanup(ctx context.Context) error {
	total, keys, freedByOwner, err := s.trashRepo.PurgeExpired(ctx, s.retention)
	if err != nil {
		return fmt.Errorf("failed to purge expired trash: %w", err)
	}
	if total == 0 && len(keys) == 0 {
		return nil
	}

	s.deleteBlobs(ctx, keys)

	for ownerID, freed := range freedByOwner {
		if err := s.quota.Release(ctx, ownerID, freed); err != nil {
			log.Printf("[TrashService] Failed to release %d bytes for %s during cleanup: %v", freed, ownerID, err)
		}
	}

	log.Printf("[TrashService] Auto-cleanup purged %d files, %d bytes across %d drives",
		len(keys), total, len(freedByOwner))
	return nil
}

func (s *TrashService) deleteBlobs(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.storage.DeleteObject(ctx, key); err != nil {
			log.Printf("[TrashService] Failed to delete blob %s: %v", key, err)
		}
	}
}
