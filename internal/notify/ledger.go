package notify

import (
	"context"
	"fmt"
	"time"

	"go_domainlink/internal/model"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Notice identifies one notification of an intent
type Notice struct {
	IntentID    string
	UserID      int
	DomainName  string
	MessageType model.NotificationType
}

// Observer is told the outcome of every NotifyOnce call
type Observer func(messageType model.NotificationType, result string)

// Ledger delivers each (intent, message type) notification at most once
type Ledger struct {
	db        *gorm.DB
	messenger Messenger
	logger    *logrus.Entry
	observe   Observer
}

// NewLedger creates a Ledger sending through messenger
func NewLedger(db *gorm.DB, messenger Messenger, logger *logrus.Entry, observe Observer) *Ledger {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if observe == nil {
		observe = func(model.NotificationType, string) {}
	}
	return &Ledger{
		db:        db,
		messenger: messenger,
		logger:    logger.WithField("component", "notify"),
		observe:   observe,
	}
}

// NotifyOnce renders and sends the notice unless the ledger already holds it.
// The ledger row is inserted before sending, so a failed send is not retried.
// It returns true when this call delivered the message.
func (l *Ledger) NotifyOnce(ctx context.Context, n Notice, data Data) (bool, error) {
	log := l.logger.WithFields(logrus.Fields{
		"intent_id":    n.IntentID,
		"message_type": n.MessageType,
	})

	sent, err := l.Sent(ctx, n.IntentID, n.MessageType)
	if err != nil {
		return false, err
	}
	if sent {
		log.Debug("Notification already sent, skipping")
		l.observe(n.MessageType, "duplicate")
		return false, nil
	}

	text, err := Render(n.MessageType, n.DomainName, data)
	if err != nil {
		l.observe(n.MessageType, "render_error")
		return false, err
	}

	now := time.Now()
	record := model.NotificationRecord{
		IntentID:    n.IntentID,
		MessageType: n.MessageType,
		UserID:      n.UserID,
		DomainName:  n.DomainName,
		SentAt:      now,
	}
	result := l.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
	if result.Error != nil {
		l.observe(n.MessageType, "ledger_error")
		return false, fmt.Errorf("failed to record notification: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		log.Debug("Notification claimed concurrently, skipping")
		l.observe(n.MessageType, "duplicate")
		return false, nil
	}

	if l.messenger == nil || !l.messenger.Send(ctx, Message{
		UserID:      n.UserID,
		IntentID:    n.IntentID,
		DomainName:  n.DomainName,
		MessageType: n.MessageType,
		Text:        text,
		SentAt:      now,
	}) {
		log.Warn("Notification recorded but delivery failed")
		l.observe(n.MessageType, "send_failed")
		return false, nil
	}

	log.Info("Notification sent")
	l.observe(n.MessageType, "sent")
	return true, nil
}

// Sent reports whether the ledger holds the notice
func (l *Ledger) Sent(ctx context.Context, intentID string, messageType model.NotificationType) (bool, error) {
	var count int64
	err := l.db.WithContext(ctx).Model(&model.NotificationRecord{}).
		Where("intent_id = ? AND message_type = ?", intentID, messageType).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to query notification ledger: %w", err)
	}
	return count > 0, nil
}

// Forget removes ledger entries so the listed types can be sent again
func (l *Ledger) Forget(ctx context.Context, intentID string, types ...model.NotificationType) error {
	if len(types) == 0 {
		return nil
	}
	return l.db.WithContext(ctx).
		Where("intent_id = ? AND message_type IN ?", intentID, types).
		Delete(&model.NotificationRecord{}).Error
}
