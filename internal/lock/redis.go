package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// releaseScript deletes the lease only if it is still owned by the caller
const releaseScript = `
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`

// RedisLease is a cross-process lease on a key backed by SET NX PX.
// When Redis is unreachable the lease degrades to a no-op and callers
// rely on conditional updates in the database.
type RedisLease struct {
	rdb       *redis.Client
	prefix    string
	ttl       time.Duration
	retryWait time.Duration
	logger    *logrus.Entry
}

// NewRedisLease creates a RedisLease; keys are stored as prefix+key
func NewRedisLease(rdb *redis.Client, prefix string, ttl time.Duration, logger *logrus.Entry) *RedisLease {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &RedisLease{
		rdb:       rdb,
		prefix:    prefix,
		ttl:       ttl,
		retryWait: 50 * time.Millisecond,
		logger:    logger.WithField("component", "redis-lease"),
	}
}

func newLeaseToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Lock implements Locker
func (l *RedisLease) Lock(ctx context.Context, key string) (func(), error) {
	token, err := newLeaseToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate lease token: %w", err)
	}
	redisKey := l.prefix + key

	for {
		ok, err := l.rdb.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			l.logger.WithField("key", redisKey).Warnf("Lease unavailable, continuing without it: %v", err)
			return func() {}, nil
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryWait):
		}
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := l.rdb.Eval(releaseCtx, releaseScript, []string{redisKey}, token).Err(); err != nil && err != redis.Nil {
			l.logger.WithField("key", redisKey).Warnf("Failed to release lease: %v", err)
		}
	}, nil
}
