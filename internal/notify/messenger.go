package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go_domainlink/internal/model"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// Message is one notification delivered to a user
type Message struct {
	UserID      int                    `json:"user_id"`
	IntentID    string                 `json:"intent_id"`
	DomainName  string                 `json:"domain_name"`
	MessageType model.NotificationType `json:"message_type"`
	Text        string                 `json:"text"`
	SentAt      time.Time              `json:"sent_at"`
}

// Messenger delivers a message to a user and reports whether it went out.
// Delivery is best effort.
type Messenger interface {
	Send(ctx context.Context, msg Message) bool
}

// LogMessenger writes messages to the log only
type LogMessenger struct {
	logger *logrus.Entry
}

// NewLogMessenger creates a LogMessenger
func NewLogMessenger(logger *logrus.Entry) *LogMessenger {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &LogMessenger{logger: logger.WithField("component", "log-messenger")}
}

// Send implements Messenger
func (m *LogMessenger) Send(_ context.Context, msg Message) bool {
	m.logger.WithFields(logrus.Fields{
		"user_id":      msg.UserID,
		"intent_id":    msg.IntentID,
		"message_type": msg.MessageType,
	}).Info(msg.Text)
	return true
}

// RedisMessenger publishes messages on a per-user Redis channel
type RedisMessenger struct {
	rdb    *redis.Client
	prefix string
	logger *logrus.Entry
}

// NewRedisMessenger creates a RedisMessenger publishing to prefix+user_id
func NewRedisMessenger(rdb *redis.Client, prefix string, logger *logrus.Entry) *RedisMessenger {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &RedisMessenger{rdb: rdb, prefix: prefix, logger: logger.WithField("component", "redis-messenger")}
}

// Channel returns the channel a user's messages are published on
func (m *RedisMessenger) Channel(userID int) string {
	return fmt.Sprintf("%s%d", m.prefix, userID)
}

// Send implements Messenger
func (m *RedisMessenger) Send(ctx context.Context, msg Message) bool {
	payload, err := json.Marshal(msg)
	if err != nil {
		m.logger.Errorf("Failed to marshal message: %v", err)
		return false
	}
	if err := m.rdb.Publish(ctx, m.Channel(msg.UserID), payload).Err(); err != nil {
		m.logger.WithField("user_id", msg.UserID).Warnf("Failed to publish message: %v", err)
		return false
	}
	return true
}

// MultiMessenger fans a message out to several messengers. It reports
// success when at least one of them delivered.
type MultiMessenger []Messenger

// Send implements Messenger
func (m MultiMessenger) Send(ctx context.Context, msg Message) bool {
	delivered := false
	for _, messenger := range m {
		if messenger == nil {
			continue
		}
		if messenger.Send(ctx, msg) {
			delivered = true
		}
	}
	return delivered
}
