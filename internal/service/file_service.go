package service

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/google/uuid"

	"edudrive/internal/config"
	"edudrive/internal/domain"
	"edudrive/internal/hash"
	"edudrive/internal/repository"
	"edudrive/internal/service/s3"
)

// FileService handles upload, download, rename and move of files. Uploads
// are content-addressed: the sha-256 of the payload is computed up front and
// drives the de-duplication policy.
type FileService struct {
	fileRepo    repository.FileStore
	folderRepo  repository.FolderStore
	storage     s3.Storage
	quota       *QuotaService
	access      *AccessService
	activity    *ActivityService
	dedupPolicy string
	maxFileSize int64
}

func NewFileService(
	fileRepo repository.FileStore,
	folderRepo repository.FolderStore,
	storage s3.Storage,
	quota *QuotaService,
	access *AccessService,
	activity *ActivityService,
	dedupPolicy string,
	maxFileSize int64,
) *FileService {
	return &FileService{
		fileRepo:    fileRepo,
		folderRepo:  folderRepo,
		storage:     storage,
		quota:       quota,
		access:      access,
		activity:    activity,
		dedupPolicy: dedupPolicy,
		maxFileSize: maxFileSize,
	}
}

func blobKey(ownerID string, id uuid.UUID) string {
	return fmt.Sprintf("drive_files/%s/%s", ownerID, id)
}

const (
	multipartThreshold = 16 * 1024 * 1024
	multipartPartSize  = 8 * 1024 * 1024
)

// storeBlob persists the payload, switching to a multipart upload above the
// threshold. A failed part aborts the whole upload so no partial object is
// left behind.
func (s *FileService) storeBlob(ctx context.Context, key string, data []byte) error {
	if int64(len(data)) <= multipartThreshold {
		return s.storage.UploadBytes(ctx, key, data)
	}

	uploadID, err := s.storage.CreateMultipartUpload(ctx, key)
	if err != nil {
		return err
	}

	var parts []s3.CompletedPart
	for offset, num := 0, 1; offset < len(data); offset, num = offset+multipartPartSize, num+1 {
		end := offset + multipartPartSize
		if end > len(data) {
			end = len(data)
		}
		etag, err := s.storage.UploadPart(ctx, uploadID, key, num, data[offset:end])
		if err != nil {
			if abortErr := s.storage.AbortMultipartUpload(ctx, uploadID, key); abortErr != nil {
				log.Printf("[FileService] Failed to abort multipart upload %s: %v", uploadID, abortErr)
			}
			return err
		}
		parts = append(parts, s3.CompletedPart{PartNumber: num, ETag: etag})
	}

	if err := s.storage.CompleteMultipartUpload(ctx, uploadID, key, parts); err != nil {
		if abortErr := s.storage.AbortMultipartUpload(ctx, uploadID, key); abortErr != nil {
			log.Printf("[FileService] Failed to abort multipart upload %s: %v", uploadID, abortErr)
		}
		return err
	}

	return nil
}

// Upload stores a new file. The flow is: validate, hash, consult the dedup
// policy, reserve storage quota, persist the blob, persist the row. A row
// insert failure rolls back the blob and the quota charge.
func (s *FileService) Upload(ctx context.Context, actorID string, upload domain.FileUpload) (*domain.UploadResult, error) {
	name, err := sanitizeName(upload.Name)
	if err != nil {
		return nil, err
	}
	size := int64(len(upload.Data))
	if size == 0 {
		return nil, fmt.Errorf("%w: file is empty", domain.ErrInvalidName)
	}
	if size > s.maxFileSize {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", domain.ErrQuotaExceeded, s.maxFileSize)
	}

	if upload.FolderID != nil {
		if _, err := s.access.OwnsFolder(ctx, actorID, *upload.FolderID); err != nil {
			return nil, err
		}
	}

	contentHash := hash.Sum(upload.Data)

	if s.dedupPolicy == config.DedupSkip {
		existing, err := s.fileRepo.FindLiveByHash(ctx, actorID, contentHash)
		if err != nil && !isNotFound(err) {
			return nil, fmt.Errorf("failed to check for duplicate content: %w", err)
		}
		if existing != nil {
			log.Printf("[FileService] Upload of %q deduplicated against %s", name, existing.UUID)
			s.record(ctx, actorID, domain.ActionUpload, domain.TargetFile, existing.Name, map[string]any{
				"file_id":      existing.UUID.String(),
				"hash":         contentHash,
				"deduplicated": true,
			})
			return &domain.UploadResult{File: existing, Deduplicated: true}, nil
		}
	}

	if err := s.quota.Reserve(ctx, actorID, size, domain.QuotaStorage); err != nil {
		return nil, err
	}

	file := &domain.File{
		UUID:        uuid.New(),
		Name:        name,
		MIMEType:    upload.MIMEType,
		SizeBytes:   size,
		ContentHash: contentHash,
		FolderID:    upload.FolderID,
		OwnerID:     actorID,
	}
	file.StoredName = blobKey(actorID, file.UUID)

	if err := s.storeBlob(ctx, file.StoredName, upload.Data); err != nil {
		s.compensateQuota(ctx, actorID, size)
		return nil, err
	}

	if err := s.fileRepo.Create(ctx, file); err != nil {
		if delErr := s.storage.DeleteObject(ctx, file.StoredName); delErr != nil {
			log.Printf("[FileService] Orphaned blob %s after failed insert: %v", file.StoredName, delErr)
		}
		s.compensateQuota(ctx, actorID, size)
		return nil, err
	}

	s.record(ctx, actorID, domain.ActionUpload, domain.TargetFile, file.Name, map[string]any{
		"file_id": file.UUID.String(),
		"size":    size,
		"hash":    contentHash,
	})

	return &domain.UploadResult{File: file}, nil
}

// Download opens the file's blob for streaming and charges the served bytes
// against the owner's bandwidth quota. When ranged, start/end select a byte
// range; end < 0 means open-ended, resolved to the last byte of the file.
func (s *FileService) Download(ctx context.Context, actorID string, id uuid.UUID, start, end int64, ranged bool) (*domain.File, s3.Object, error) {
	file, err := s.access.OwnsFile(ctx, actorID, id)
	if err != nil {
		return nil, nil, err
	}

	// Bandwidth is charged for the requested bytes, before the transfer.
	charge := file.SizeBytes
	if ranged {
		if start >= file.SizeBytes {
			return nil, nil, fmt.Errorf("range start %d past size %d: %w", start, file.SizeBytes, domain.ErrInvalidRange)
		}
		if end < 0 || end >= file.SizeBytes {
			end = file.SizeBytes - 1
		}
		charge = end - start + 1
	}
	if err := s.quota.Reserve(ctx, file.OwnerID, charge, domain.QuotaBandwidth); err != nil {
		return nil, nil, err
	}

	var obj s3.Object
	if ranged {
		obj, err = s.storage.GetObjectRange(ctx, file.StoredName, start, end)
	} else {
		obj, err = s.storage.GetObject(ctx, file.StoredName)
	}
	if err != nil {
		return nil, nil, err
	}

	s.record(ctx, actorID, domain.ActionDownload, domain.TargetFile, file.Name, map[string]any{
		"file_id": file.UUID.String(),
		"bytes":   charge,
	})

	return file, obj, nil
}

// DownloadBytes is Download buffered into memory, for small consumers like
// the preview pipeline.
func (s *FileService) DownloadBytes(ctx context.Context, actorID string, id uuid.UUID) (*domain.FileDownload, error) {
	file, obj, err := s.Download(ctx, actorID, id, 0, -1, false)
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", domain.ErrIOFailure, file.StoredName, err)
	}

	return &domain.FileDownload{File: file, Data: data}, nil
}

func (s *FileService) RenameFile(ctx context.Context, actorID string, id uuid.UUID, newName string) (*domain.File, error) {
	newName, err := sanitizeName(newName)
	if err != nil {
		return nil, err
	}

	file, err := s.access.OwnsFile(ctx, actorID, id)
	if err != nil {
		return nil, err
	}
	if file.Name == newName {
		return file, nil
	}

	oldName := file.Name
	if err := s.fileRepo.Rename(ctx, id, newName); err != nil {
		return nil, err
	}
	file.Name = newName

	s.record(ctx, actorID, domain.ActionRename, domain.TargetFile, newName, map[string]any{
		"file_id":  id.String(),
		"old_name": oldName,
	})

	return file, nil
}

// MoveFile relocates a file to another folder; folderID nil means the drive
// root.
func (s *FileService) MoveFile(ctx context.Context, actorID string, id uuid.UUID, folderID *int64) (*domain.File, error) {
	file, err := s.access.OwnsFile(ctx, actorID, id)
	if err != nil {
		return nil, err
	}
	if folderID != nil {
		if _, err := s.access.OwnsFolder(ctx, actorID, *folderID); err != nil {
			return nil, err
		}
	}

	if err := s.fileRepo.Move(ctx, id, folderID); err != nil {
		return nil, err
	}
	file.FolderID = folderID

	s.record(ctx, actorID, domain.ActionMove, domain.TargetFile, file.Name, map[string]any{
		"file_id": id.String(),
	})

	return file, nil
}

func (s *FileService) GetFile(ctx context.Context, actorID string, id uuid.UUID) (*domain.File, error) {
	return s.access.OwnsFile(ctx, actorID, id)
}

func (s *FileService) compensateQuota(ctx context.Context, ownerID string, bytes int64) {
	if err := s.quota.Release(ctx, ownerID, bytes); err != nil {
		log.Printf("[FileService] Failed to release %d bytes for %s after aborted upload: %v", bytes, ownerID, err)
	}
}

// record logs to the activity log; the operation itself already succeeded so
// a logging failure is reported but not propagated.
func (s *FileService) record(ctx context.Context, actorID string, action domain.Action, tt domain.TargetType, name string, meta map[string]any) {
	_ = s.activity.Record(ctx, actorID, actorID, action, tt, name, meta)
}
