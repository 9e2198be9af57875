package model

import (
	"time"

	"gorm.io/datatypes"
)

// VerificationType is the kind of DNS evidence a verification waits for
type VerificationType string

const (
	VerificationTypeNameserverChange VerificationType = "nameserver_change"
	VerificationTypeDNSTXT           VerificationType = "dns_txt"
)

// VerificationStatus represents verification status
type VerificationStatus string

const (
	VerificationStatusPending    VerificationStatus = "pending"
	VerificationStatusInProgress VerificationStatus = "in_progress"
	VerificationStatusCompleted  VerificationStatus = "completed"
	VerificationStatusFailed     VerificationStatus = "failed"
	VerificationStatusExpired    VerificationStatus = "expired"
)

// ActiveVerificationStatuses are the statuses still awaiting a check
var ActiveVerificationStatuses = []string{
	string(VerificationStatusPending),
	string(VerificationStatusInProgress),
}

// IsActive reports whether the verification still awaits a check
func (s VerificationStatus) IsActive() bool {
	return s == VerificationStatusPending || s == VerificationStatusInProgress
}

// DomainVerification is a persisted, repeatedly polled DNS check for one intent
type DomainVerification struct {
	ID                 string             `gorm:"column:id;type:varchar(36);primaryKey" json:"verification_id"`
	IntentID           string             `gorm:"column:intent_id;type:varchar(36);index;not null" json:"intent_id"`
	VerificationType   VerificationType   `gorm:"column:verification_type;type:varchar(32);not null" json:"verification_type"`
	VerificationStep   string             `gorm:"column:verification_step;type:varchar(64)" json:"verification_step"`
	VerificationMethod string             `gorm:"column:verification_method;type:varchar(32)" json:"verification_method"`
	ExpectedValue      string             `gorm:"column:expected_value;type:varchar(255)" json:"expected_value"`
	ActualValue        string             `gorm:"column:actual_value;type:varchar(1024)" json:"actual_value"`
	Status             VerificationStatus `gorm:"column:status;type:varchar(16);index:idx_status_next;not null" json:"status"`
	NextCheckAt        *time.Time         `gorm:"column:next_check_at;index:idx_status_next" json:"next_check_at"`
	FirstCheckedAt     *time.Time         `gorm:"column:first_checked_at" json:"first_checked_at"`
	LastCheckedAt      *time.Time         `gorm:"column:last_checked_at" json:"last_checked_at"`
	CompletedAt        *time.Time         `gorm:"column:completed_at" json:"completed_at"`
	AttemptCount       int                `gorm:"column:attempt_count;not null;default:0" json:"attempt_count"`
	RetryCount         int                `gorm:"column:retry_count;not null;default:0" json:"retry_count"`
	CheckVersion       int                `gorm:"column:check_version;not null;default:0" json:"-"`
	CheckDetails       datatypes.JSON     `gorm:"column:check_details;type:json" json:"check_details"`
	ErrorMessage       string             `gorm:"column:error_message;type:varchar(255)" json:"error_message"`
	CreatedAt          time.Time          `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time          `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for DomainVerification model
func (DomainVerification) TableName() string {
	return "domain_verifications"
}
