// Package preview generates and caches image thumbnails for drive files.
// Thumbnails live in the blob store under previews/ and are tracked in the
// previews table so stale entries can be swept.
package preview

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/h2non/bimg"
	"github.com/jmoiron/sqlx"

	"edudrive/internal/domain"
	"edudrive/internal/service/s3"
)

const (
	maxThumbSize  = 1024
	jpegQuality   = 85
	previewMaxAge = 30 * 24 * time.Hour
)

var previewableTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

type Service struct {
	storage s3.Storage
	db      *sqlx.DB
}

func NewService(storage s3.Storage, db *sqlx.DB) *Service {
	return &Service{
		storage: storage,
		db:      db,
	}
}

func previewKey(file *domain.File) string {
	return fmt.Sprintf("previews/%s/%s", file.OwnerID, file.UUID)
}

// Supported reports whether a thumbnail can be generated for the MIME type.
func Supported(mimeType string) bool {
	return previewableTypes[mimeType]
}

// GetOrGenerate returns the cached thumbnail for the file, generating and
// caching it on first access. Previews are served from cache storage and do
// not charge bandwidth quota.
func (s *Service) GetOrGenerate(ctx context.Context, file *domain.File) ([]byte, error) {
	if !Supported(file.MIMEType) {
		return nil, fmt.Errorf("preview for %s: %w", file.MIMEType, domain.ErrNotFound)
	}

	key := previewKey(file)

	cached, err := s.storage.GetObject(ctx, key)
	if err == nil {
		defer cached.Close()
		return io.ReadAll(cached)
	}

	original, err := s.storage.GetObject(ctx, file.StoredName)
	if err != nil {
		return nil, err
	}
	defer original.Close()

	data, err := io.ReadAll(original)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", domain.ErrIOFailure, file.StoredName, err)
	}

	thumb, err := s.makeThumbnail(data)
	if err != nil {
		return nil, fmt.Errorf("failed to generate preview for %s: %w", file.UUID, err)
	}

	if err := s.storage.UploadBytes(ctx, key, thumb); err != nil {
		// Serve the thumbnail anyway; the cache write is best effort.
		log.Printf("[Preview] Failed to cache preview %s: %v", key, err)
		return thumb, nil
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO previews (file_uuid, owner_id, size_bytes, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (file_uuid) DO UPDATE SET size_bytes = $3, created_at = NOW()`,
		file.UUID, file.OwnerID, len(thumb))
	if err != nil {
		log.Printf("[Preview] Failed to record preview %s: %v", file.UUID, err)
	}

	return thumb, nil
}

func (s *Service) makeThumbnail(data []byte) ([]byte, error) {
	image := bimg.NewImage(data)

	size, err := image.Size()
	if err != nil {
		return nil, fmt.Errorf("failed to read image size: %w", err)
	}

	width, height := fitWithin(size.Width, size.Height, maxThumbSize)

	processed, err := image.Process(bimg.Options{
		Width:   width,
		Height:  height,
		Quality: jpegQuality,
		Type:    bimg.JPEG,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to process image: %w", err)
	}

	return processed, nil
}

// fitWithin scales (width, height) to fit a maxSize square, preserving
// aspect ratio. Images already smaller than maxSize are left alone.
func fitWithin(width, height, maxSize int) (int, int) {
	if width <= maxSize && height <= maxSize {
		return width, height
	}
	if width > height {
		return maxSize, height * maxSize / width
	}
	return width * maxSize / height, maxSize
}

// CleanupLoop drops previews older than the retention age every interval.
// The file's next preview request regenerates them.
func (s *Service) CleanupLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanupOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Service) cleanupOnce(ctx context.Context) {
	var expired []struct {
		FileUUID string `db:"file_uuid"`
		OwnerID  string `db:"owner_id"`
	}

	err := s.db.SelectContext(ctx, &expired, `
		DELETE FROM previews
		WHERE created_at < NOW() - $1::interval
		RETURNING file_uuid, owner_id`,
		fmt.Sprintf("%d seconds", int(previewMaxAge.Seconds())))
	if err != nil {
		log.Printf("[Preview] Cleanup query failed: %v", err)
		return
	}
	if len(expired) == 0 {
		return
	}

	for _, p := range expired {
		key := fmt.Sprintf("previews/%s/%s", p.OwnerID, p.FileUUID)
		if err := s.storage.DeleteObject(ctx, key); err != nil {
			log.Printf("[Preview] Failed to delete cached preview %s: %v", key, err)
		}
	}

	log.Printf("[Preview] Cleanup removed %d stale previews", len(expired))
}
