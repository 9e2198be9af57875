package model

import (
	"time"
)

// NotificationType identifies a user-facing message of the linking workflow
type NotificationType string

const (
	NotificationNameserverInstructions NotificationType = "nameserver_instructions"
	NotificationDNSInstructions        NotificationType = "dns_instructions"
	NotificationAlreadyLinked          NotificationType = "already_linked"
	NotificationLinkingCompleted       NotificationType = "linking_completed"
	NotificationWorkflowFailed         NotificationType = "workflow_failed"
	NotificationVerificationTimeout    NotificationType = "verification_timeout"
)

// NotificationRecord is the dedup ledger entry for (intent_id, message_type)
type NotificationRecord struct {
	ID          int              `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	IntentID    string           `gorm:"column:intent_id;type:varchar(36);uniqueIndex:uk_intent_message;not null" json:"intent_id"`
	MessageType NotificationType `gorm:"column:message_type;type:varchar(64);uniqueIndex:uk_intent_message;not null" json:"message_type"`
	UserID      int              `gorm:"column:user_id;index;not null" json:"user_id"`
	DomainName  string           `gorm:"column:domain_name;type:varchar(253)" json:"domain_name"`
	SentAt      time.Time        `gorm:"column:sent_at;not null" json:"sent_at"`
}

// TableName specifies the table name for NotificationRecord model
func (NotificationRecord) TableName() string {
	return "domain_notifications"
}
