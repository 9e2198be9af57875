package linking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go_domainlink/internal/model"

	"gorm.io/gorm"
)

// intentStore persists link intents with optimistic concurrency on version
type intentStore struct {
	db *gorm.DB
}

func (s *intentStore) create(ctx context.Context, intent *model.LinkIntent) error {
	if err := s.db.WithContext(ctx).Create(intent).Error; err != nil {
		return fmt.Errorf("failed to create linking intent: %w", err)
	}
	return nil
}

func (s *intentStore) get(ctx context.Context, id string) (*model.LinkIntent, error) {
	var intent model.LinkIntent
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&intent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrIntentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

// update applies updates only if the row still has the version that was read,
// then refreshes intent from the database
func (s *intentStore) update(ctx context.Context, intent *model.LinkIntent, updates map[string]interface{}) error {
	updates["version"] = gorm.Expr("version + 1")
	result := s.db.WithContext(ctx).Model(&model.LinkIntent{}).
		Where("id = ? AND version = ?", intent.ID, intent.Version).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update linking intent: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}

	fresh, err := s.get(ctx, intent.ID)
	if err != nil {
		return err
	}
	*intent = *fresh
	return nil
}

// findActive returns an active intent of the user for domain other than excludeID
func (s *intentStore) findActive(ctx context.Context, userID int, domain, excludeID string) (*model.LinkIntent, error) {
	var list []model.LinkIntent
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND domain_name = ? AND workflow_state NOT IN ?", userID, domain, model.TerminalStates).
		Where("id <> ?", excludeID).
		Limit(1).
		Find(&list).Error
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

func (s *intentStore) listActive(ctx context.Context, userID int) ([]model.LinkIntent, error) {
	var list []model.LinkIntent
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND workflow_state NOT IN ?", userID, model.TerminalStates).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}

// listStale returns non-terminal intents untouched since before
func (s *intentStore) listStale(ctx context.Context, before time.Time, limit int) ([]model.LinkIntent, error) {
	var list []model.LinkIntent
	err := s.db.WithContext(ctx).
		Where("workflow_state NOT IN ? AND updated_at < ?", model.TerminalStates, before).
		Order("updated_at ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

// listRetryable returns failed intents that failed before the cutoff and still have retries left
func (s *intentStore) listRetryable(ctx context.Context, failedBefore time.Time, maxRetries, limit int) ([]model.LinkIntent, error) {
	var list []model.LinkIntent
	err := s.db.WithContext(ctx).
		Where("workflow_state = ? AND failed_at IS NOT NULL AND failed_at <= ? AND retry_count < ?",
			model.WorkflowStateFailed, failedBefore, maxRetries).
		Order("failed_at ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}
