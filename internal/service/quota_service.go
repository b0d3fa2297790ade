package service

import (
	"context"
	"fmt"
	"time"

	"edudrive/internal/domain"
	"edudrive/internal/repository"
)

// QuotaService is the quota accountant: it admits or rejects storage and
// bandwidth charges per drive. Rejections leave the counters untouched; the
// conditional UPDATE in the repository makes check-and-charge atomic.
type QuotaService struct {
	driveRepo       repository.DriveStore
	bandwidthPeriod time.Duration
}

func NewQuotaService(driveRepo repository.DriveStore, bandwidthPeriod time.Duration) *QuotaService {
	return &QuotaService{
		driveRepo:       driveRepo,
		bandwidthPeriod: bandwidthPeriod,
	}
}

func (s *QuotaService) GetQuotaInfo(ctx context.Context, ownerID string) (*domain.QuotaInfo, error) {
	drive, err := s.driveRepo.GetOrCreate(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get drive: %w", err)
	}

	usagePercent := 0.0
	if drive.StorageLimit > 0 {
		usagePercent = float64(drive.StorageUsed) / float64(drive.StorageLimit) * 100
	}

	bandwidthUsed := drive.BandwidthUsed
	if time.Now().After(drive.BandwidthResetAt) {
		// The stored counter belongs to an elapsed window; report zero. The
		// actual reset happens atomically with the next charge.
		bandwidthUsed = 0
	}

	return &domain.QuotaInfo{
		StorageUsed:      drive.StorageUsed,
		StorageLimit:     drive.StorageLimit,
		StorageAvailable: drive.StorageLimit - drive.StorageUsed,
		UsagePercent:     usagePercent,
		BandwidthUsed:    bandwidthUsed,
		BandwidthLimit:   drive.BandwidthLimit,
		BandwidthResetAt: drive.BandwidthResetAt,
	}, nil
}

// Reserve charges deltaBytes against the drive's storage or bandwidth
// counter. Returns ErrQuotaExceeded (unwrapped counters unchanged) when the
// charge does not fit. An exact fit succeeds.
func (s *QuotaService) Reserve(ctx context.Context, ownerID string, deltaBytes int64, kind domain.QuotaKind) error {
	if deltaBytes < 0 {
		return fmt.Errorf("reserve delta cannot be negative")
	}

	// Ensure the drive row exists before the conditional charge.
	if _, err := s.driveRepo.GetOrCreate(ctx, ownerID); err != nil {
		return fmt.Errorf("failed to get drive: %w", err)
	}

	switch kind {
	case domain.QuotaStorage:
		return s.driveRepo.ReserveStorage(ctx, ownerID, deltaBytes)
	case domain.QuotaBandwidth:
		return s.driveRepo.ReserveBandwidth(ctx, ownerID, deltaBytes, s.bandwidthPeriod)
	default:
		return fmt.Errorf("unknown quota kind %q", kind)
	}
}

// Release returns previously charged storage bytes, e.g. after a permanent
// purge or a failed upload. Bandwidth is never released: transferred bytes
// stay counted until the window resets.
func (s *QuotaService) Release(ctx context.Context, ownerID string, bytes int64) error {
	if bytes <= 0 {
		return nil
	}
	return s.driveRepo.ReleaseStorage(ctx, ownerID, bytes)
}

func (s *QuotaService) UpdateStorageLimit(ctx context.Context, ownerID string, newLimit int64) error {
	if newLimit < 0 {
		return fmt.Errorf("new storage limit cannot be negative")
	}
	if _, err := s.driveRepo.GetOrCreate(ctx, ownerID); err != nil {
		return fmt.Errorf("failed to get drive: %w", err)
	}
	return s.driveRepo.UpdateStorageLimit(ctx, ownerID, newLimit)
}
