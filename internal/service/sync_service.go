package service

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/google/uuid"

	"edudrive/internal/domain"
	"edudrive/internal/hash"
	"edudrive/internal/repository"
	"edudrive/internal/service/s3"
)

// SyncService mirrors a subject's materials into the actor's drive. The
// operation is idempotent: materials already present in the mirror folder
// (matched by name) are skipped, so a repeated sync of an unchanged subject
// reports synced: 0. One failing material does not abort the rest.
type SyncService struct {
	subjectRepo repository.SubjectStore
	folderRepo  repository.FolderStore
	fileRepo    repository.FileStore
	folders     *FolderService
	storage     s3.Storage
	quota       *QuotaService
	activity    *ActivityService
}

func NewSyncService(
	subjectRepo repository.SubjectStore,
	folderRepo repository.FolderStore,
	fileRepo repository.FileStore,
	folders *FolderService,
	storage s3.Storage,
	quota *QuotaService,
	activity *ActivityService,
) *SyncService {
	return &SyncService{
		subjectRepo: subjectRepo,
		folderRepo:  folderRepo,
		fileRepo:    fileRepo,
		folders:     folders,
		storage:     storage,
		quota:       quota,
		activity:    activity,
	}
}

// SyncSubject mirrors subject materials into the actor's drive under a
// dedicated folder tagged with the subject id.
func (s *SyncService) SyncSubject(ctx context.Context, actorID string, subjectID int64) (*domain.SyncResult, error) {
	subject, err := s.subjectRepo.GetSubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	folder, err := s.getOrCreateSubjectFolder(ctx, actorID, subject)
	if err != nil {
		return nil, err
	}

	materials, err := s.subjectRepo.GetMaterials(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list materials: %w", err)
	}

	result := &domain.SyncResult{Total: len(materials)}
	for _, material := range materials {
		exists, err := s.fileRepo.ExistsInFolder(ctx, &folder.ID, actorID, material.Name)
		if err != nil {
			result.Failed = append(result.Failed, material.Name)
			log.Printf("[SyncService] Failed to check material %q: %v", material.Name, err)
			continue
		}
		if exists {
			continue
		}

		if err := s.mirrorMaterial(ctx, actorID, folder, material); err != nil {
			result.Failed = append(result.Failed, material.Name)
			log.Printf("[SyncService] Failed to mirror material %q: %v", material.Name, err)
			continue
		}
		result.Synced++
	}

	_ = s.activity.Record(ctx, actorID, actorID, domain.ActionSync, domain.TargetFolder, folder.Name, map[string]any{
		"subject_id": subjectID,
		"synced":     result.Synced,
		"total":      result.Total,
		"failed":     len(result.Failed),
	})

	return result, nil
}

// getOrCreateSubjectFolder finds the actor's mirror folder for the subject,
// creating it under the drive root on first sync. A name collision with an
// unrelated user folder gets a disambiguating suffix.
func (s *SyncService) getOrCreateSubjectFolder(ctx context.Context, actorID string, subject *domain.Subject) (*domain.Folder, error) {
	folder, err := s.folderRepo.GetBySubject(ctx, actorID, subject.ID)
	if err == nil {
		return folder, nil
	}
	if !isNotFound(err) {
		return nil, fmt.Errorf("failed to look up subject folder: %w", err)
	}

	root, err := s.folders.GetOrCreateRoot(ctx, actorID)
	if err != nil {
		return nil, err
	}

	name, err := sanitizeName(subject.Title)
	if err != nil {
		name = fmt.Sprintf("Subject %d", subject.ID)
	}

	folder = &domain.Folder{
		Name:      name,
		OwnerID:   actorID,
		ParentID:  &root.ID,
		Path:      childPath(root.Path, name),
		Level:     root.Level + 1,
		SubjectID: &subject.ID,
	}
	if err := s.folderRepo.Create(ctx, folder); err != nil {
		if !isDuplicate(err) {
			return nil, err
		}
		folder.Name = fmt.Sprintf("%s (%d)", name, subject.ID)
		folder.Path = childPath(root.Path, folder.Name)
		if err := s.folderRepo.Create(ctx, folder); err != nil {
			return nil, err
		}
	}

	return folder, nil
}

// mirrorMaterial copies one material's blob into the drive and registers the
// file. The blob is duplicated rather than shared so the mirror survives the
// source material being removed.
func (s *SyncService) mirrorMaterial(ctx context.Context, actorID string, folder *domain.Folder, material domain.Material) error {
	reader, err := s.storage.GetReader(ctx, material.BlobKey)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(reader)
	reader.Close()
	if err != nil {
		return fmt.Errorf("%w: failed to read material blob %s: %v", domain.ErrIOFailure, material.BlobKey, err)
	}

	size := int64(len(data))
	if err := s.quota.Reserve(ctx, actorID, size, domain.QuotaStorage); err != nil {
		return err
	}

	file := &domain.File{
		UUID:        uuid.New(),
		Name:        material.Name,
		MIMEType:    material.MIMEType,
		SizeBytes:   size,
		ContentHash: hash.Sum(data),
		FolderID:    &folder.ID,
		OwnerID:     actorID,
	}
	file.StoredName = blobKey(actorID, file.UUID)

	if err := s.storage.UploadBytes(ctx, file.StoredName, data); err != nil {
		s.releaseQuota(ctx, actorID, size)
		return err
	}

	if err := s.fileRepo.Create(ctx, file); err != nil {
		if delErr := s.storage.DeleteObject(ctx, file.StoredName); delErr != nil {
			log.Printf("[SyncService] Orphaned blob %s after failed insert: %v", file.StoredName, delErr)
		}
		s.releaseQuota(ctx, actorID, size)
		return err
	}

	return nil
}

func (s *SyncService) releaseQuota(ctx context.Context, ownerID string, bytes int64) {
	if err := s.quota.Release(ctx, ownerID, bytes); err != nil {
		log.Printf("[SyncService] Failed to release %d bytes for %s: %v", bytes, ownerID, err)
	}
}
