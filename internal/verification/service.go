package verification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"go_domainlink/internal/model"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MaxSweepRetries caps how many times the sweep may re-drive one verification
const MaxSweepRetries = 50

var (
	// ErrVerificationNotFound is returned when no verification has the given id
	ErrVerificationNotFound = errors.New("verification not found")
	// ErrClaimLost is returned when another worker changed the verification first
	ErrClaimLost = errors.New("verification already claimed or no longer active")
)

// Service persists domain verifications
type Service struct {
	db       *gorm.DB
	interval time.Duration
	now      func() time.Time
}

// NewService creates a verification service; interval spaces consecutive checks
func NewService(db *gorm.DB, interval time.Duration) *Service {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Service{db: db, interval: interval, now: time.Now}
}

// CheckInterval returns the delay between checks of one verification
func (s *Service) CheckInterval() time.Duration {
	return s.interval
}

// CreateParams describes a new verification
type CreateParams struct {
	IntentID      string
	Type          model.VerificationType
	Step          string
	Method        string
	ExpectedValue string
}

// Create inserts a PENDING verification. Any verification still active for
// the same intent is expired first so an intent never has two.
func (s *Service) Create(ctx context.Context, p CreateParams) (*model.DomainVerification, error) {
	if p.IntentID == "" {
		return nil, fmt.Errorf("intent id is required")
	}
	if _, err := s.ExpireActiveForIntent(ctx, p.IntentID, "superseded by a new verification"); err != nil {
		return nil, err
	}

	next := s.now().Add(s.interval)
	v := &model.DomainVerification{
		ID:                 uuid.NewString(),
		IntentID:           p.IntentID,
		VerificationType:   p.Type,
		VerificationStep:   p.Step,
		VerificationMethod: p.Method,
		ExpectedValue:      p.ExpectedValue,
		Status:             model.VerificationStatusPending,
		NextCheckAt:        &next,
	}
	if err := s.db.WithContext(ctx).Create(v).Error; err != nil {
		return nil, fmt.Errorf("failed to create verification: %w", err)
	}
	return v, nil
}

// Get loads a verification by id
func (s *Service) Get(ctx context.Context, id string) (*model.DomainVerification, error) {
	var v model.DomainVerification
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrVerificationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// GetActiveForIntent returns the active verification of an intent, or nil
func (s *Service) GetActiveForIntent(ctx context.Context, intentID string) (*model.DomainVerification, error) {
	var list []model.DomainVerification
	err := s.db.WithContext(ctx).
		Where("intent_id = ? AND status IN ?", intentID, model.ActiveVerificationStatuses).
		Order("created_at DESC").
		Limit(1).
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return &list[0], nil
}

// GetLatestForIntent returns the most recent verification of an intent regardless of status, or nil
func (s *Service) GetLatestForIntent(ctx context.Context, intentID string) (*model.DomainVerification, error) {
	var list []model.DomainVerification
	err := s.db.WithContext(ctx).
		Where("intent_id = ?", intentID).
		Order("created_at DESC").
		Limit(1).
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return &list[0], nil
}

// GetPendingVerifications retrieves verifications that are due for a check
// Filters:
// - status in ('pending', 'in_progress')
// - next_check_at <= now
// - retry_count < MaxSweepRetries
func (s *Service) GetPendingVerifications(ctx context.Context, limit int) ([]model.DomainVerification, error) {
	var list []model.DomainVerification
	err := s.db.WithContext(ctx).
		Where("status IN ?", model.ActiveVerificationStatuses).
		Where("next_check_at IS NOT NULL AND next_check_at <= ?", s.now()).
		Where("retry_count < ?", MaxSweepRetries).
		Order("next_check_at ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

// Claim takes ownership of the next check of v. Only one caller wins for a
// given check_version; the loser gets ErrClaimLost.
func (s *Service) Claim(ctx context.Context, v *model.DomainVerification) error {
	result := s.db.WithContext(ctx).Model(&model.DomainVerification{}).
		Where("id = ? AND check_version = ?", v.ID, v.CheckVersion).
		Where("status IN ?", model.ActiveVerificationStatuses).
		Update("check_version", gorm.Expr("check_version + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrClaimLost
	}
	v.CheckVersion++
	return nil
}

// IncrementRetry counts one sweep re-drive of v
func (s *Service) IncrementRetry(ctx context.Context, v *model.DomainVerification) error {
	result := s.db.WithContext(ctx).Model(&model.DomainVerification{}).
		Where("id = ? AND status IN ?", v.ID, model.ActiveVerificationStatuses).
		Update("retry_count", gorm.Expr("retry_count + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrClaimLost
	}
	v.RetryCount++
	return nil
}

// RecordMatch completes v after a positive check
func (s *Service) RecordMatch(ctx context.Context, v *model.DomainVerification, res CheckResult) error {
	now := s.now()
	return s.record(ctx, v, res, map[string]interface{}{
		"status":        model.VerificationStatusCompleted,
		"completed_at":  now,
		"next_check_at": nil,
		"error_message": "",
	}, func() {
		v.Status = model.VerificationStatusCompleted
		v.CompletedAt = &now
		v.NextCheckAt = nil
		v.ErrorMessage = ""
	})
}

// RecordPending stores a negative but well-formed check and schedules the next one
func (s *Service) RecordPending(ctx context.Context, v *model.DomainVerification, res CheckResult) error {
	next := s.now().Add(s.interval)
	return s.record(ctx, v, res, map[string]interface{}{
		"status":        model.VerificationStatusInProgress,
		"next_check_at": next,
		"error_message": truncate(res.Message),
	}, func() {
		v.Status = model.VerificationStatusInProgress
		v.NextCheckAt = &next
		v.ErrorMessage = truncate(res.Message)
	})
}

// RecordFailure fails v after a hard check failure
func (s *Service) RecordFailure(ctx context.Context, v *model.DomainVerification, res CheckResult) error {
	return s.record(ctx, v, res, map[string]interface{}{
		"status":        model.VerificationStatusFailed,
		"next_check_at": nil,
		"error_message": truncate(res.Message),
	}, func() {
		v.Status = model.VerificationStatusFailed
		v.NextCheckAt = nil
		v.ErrorMessage = truncate(res.Message)
	})
}

func (s *Service) record(ctx context.Context, v *model.DomainVerification, res CheckResult, updates map[string]interface{}, apply func()) error {
	now := s.now()
	details, err := json.Marshal(res.Details)
	if err != nil {
		return fmt.Errorf("failed to encode check details: %w", err)
	}
	updates["actual_value"] = res.Actual
	updates["check_details"] = datatypes.JSON(details)
	updates["last_checked_at"] = now
	updates["first_checked_at"] = gorm.Expr("COALESCE(first_checked_at, ?)", now)
	updates["attempt_count"] = gorm.Expr("attempt_count + 1")

	result := s.db.WithContext(ctx).Model(&model.DomainVerification{}).
		Where("id = ? AND check_version = ?", v.ID, v.CheckVersion).
		Where("status IN ?", model.ActiveVerificationStatuses).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to record check: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrClaimLost
	}

	apply()
	v.ActualValue = res.Actual
	v.CheckDetails = datatypes.JSON(details)
	v.LastCheckedAt = &now
	if v.FirstCheckedAt == nil {
		v.FirstCheckedAt = &now
	}
	v.AttemptCount++
	return nil
}

// Expire moves an active verification to EXPIRED
func (s *Service) Expire(ctx context.Context, v *model.DomainVerification, reason string) error {
	result := s.db.WithContext(ctx).Model(&model.DomainVerification{}).
		Where("id = ? AND status IN ?", v.ID, model.ActiveVerificationStatuses).
		Updates(map[string]interface{}{
			"status":        model.VerificationStatusExpired,
			"next_check_at": nil,
			"error_message": truncate(reason),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrClaimLost
	}
	v.Status = model.VerificationStatusExpired
	v.NextCheckAt = nil
	v.ErrorMessage = truncate(reason)
	return nil
}

// ExpireActiveForIntent expires every active verification of an intent
func (s *Service) ExpireActiveForIntent(ctx context.Context, intentID, reason string) (int64, error) {
	result := s.db.WithContext(ctx).Model(&model.DomainVerification{}).
		Where("intent_id = ? AND status IN ?", intentID, model.ActiveVerificationStatuses).
		Updates(map[string]interface{}{
			"status":        model.VerificationStatusExpired,
			"next_check_at": nil,
			"error_message": truncate(reason),
		})
	return result.RowsAffected, result.Error
}

// ExpireExhausted expires active verifications whose sweep retries reached
// MaxSweepRetries and returns the ones it expired.
func (s *Service) ExpireExhausted(ctx context.Context) ([]model.DomainVerification, error) {
	var candidates []model.DomainVerification
	err := s.db.WithContext(ctx).
		Where("status IN ? AND retry_count >= ?", model.ActiveVerificationStatuses, MaxSweepRetries).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}
	return s.expireAll(ctx, candidates, "Maximum verification retries exceeded")
}

// CleanupExpiredVerifications expires active verifications created more than
// maxAge ago and returns the ones it expired.
func (s *Service) CleanupExpiredVerifications(ctx context.Context, maxAge time.Duration) ([]model.DomainVerification, error) {
	cutoff := s.now().Add(-maxAge)
	var candidates []model.DomainVerification
	err := s.db.WithContext(ctx).
		Where("status IN ? AND created_at < ?", model.ActiveVerificationStatuses, cutoff).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}
	return s.expireAll(ctx, candidates, "Verification expired")
}

func (s *Service) expireAll(ctx context.Context, candidates []model.DomainVerification, reason string) ([]model.DomainVerification, error) {
	expired := make([]model.DomainVerification, 0, len(candidates))
	for i := range candidates {
		v := candidates[i]
		if err := s.Expire(ctx, &v, reason); err != nil {
			if errors.Is(err, ErrClaimLost) {
				continue
			}
			return expired, err
		}
		expired = append(expired, v)
	}
	return expired, nil
}

// truncate keeps error messages within the column limit without splitting a rune
func truncate(msg string) string {
	if len(msg) <= 255 {
		return msg
	}
	cut := 252
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut] + "..."
}
