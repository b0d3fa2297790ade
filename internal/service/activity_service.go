package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx/types"

	"edudrive/internal/domain"
	"edudrive/internal/repository"
)

const (
	defaultActivityLimit = 20
	maxActivityLimit     = 100
)

// ActivityService keeps the append-only activity log. Entries are never
// updated or removed; purge and trash operations append new entries rather
// than touching old ones.
type ActivityService struct {
	activityRepo repository.ActivityStore
}

func NewActivityService(activityRepo repository.ActivityStore) *ActivityService {
	return &ActivityService{activityRepo: activityRepo}
}

// Record appends one activity entry. Failures are logged and returned so
// callers can decide whether the surrounding operation should fail; most
// call sites log and continue since the domain operation already succeeded.
func (s *ActivityService) Record(ctx context.Context, ownerID, actorID string, action domain.Action, targetType domain.TargetType, targetName string, metadata map[string]any) error {
	var meta types.JSONText
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal activity metadata: %w", err)
		}
		meta = types.JSONText(raw)
	}

	activity := &domain.Activity{
		OwnerID:    ownerID,
		ActorID:    actorID,
		Action:     action,
		TargetType: targetType,
		TargetName: targetName,
		Metadata:   meta,
	}

	if err := s.activityRepo.Insert(ctx, activity); err != nil {
		log.Printf("[ActivityService] Failed to record %s on %s %q: %v", action, targetType, targetName, err)
		return fmt.Errorf("failed to record activity: %w", err)
	}

	return nil
}

// Query returns the actor's activity entries, newest first, with per-action
// stats and pagination metadata.
func (s *ActivityService) Query(ctx context.Context, ownerID string, filter domain.ActivityFilter) (*domain.ActivityPage, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = defaultActivityLimit
	}
	if filter.Limit > maxActivityLimit {
		filter.Limit = maxActivityLimit
	}

	entries, total, err := s.activityRepo.Query(ctx, ownerID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}

	stats, err := s.Stats(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	totalPages := int(total) / filter.Limit
	if int(total)%filter.Limit != 0 {
		totalPages++
	}

	return &domain.ActivityPage{
		Activities: entries,
		Stats:      *stats,
		Pagination: domain.Pagination{
			Page:       filter.Page,
			Limit:      filter.Limit,
			Total:      total,
			TotalPages: totalPages,
		},
	}, nil
}

// Stats returns per-action counts over the actor's whole log.
func (s *ActivityService) Stats(ctx context.Context, ownerID string) (*domain.ActivityStats, error) {
	byAction, err := s.activityRepo.Stats(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get activity stats: %w", err)
	}

	var total int64
	for _, n := range byAction {
		total += n
	}

	return &domain.ActivityStats{
		Total:    total,
		ByAction: byAction,
	}, nil
}
