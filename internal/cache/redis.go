package cache

import (
	"context"
	"fmt"
	"time"

	"go_domainlink/internal/config"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// Client is the shared Redis client. It stays nil when Redis is not configured.
var Client *redis.Client

// InitRedis initializes the Redis connection. An empty address leaves
// Client nil and the service runs with in-process locking only.
func InitRedis(cfg config.RedisConfig) error {
	if cfg.Addr == "" {
		logrus.Warn("REDIS_ADDR not set, running without cross-process intent lease")
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	Client = rdb
	logrus.Info("✓ Redis connected successfully")
	return nil
}

// Close closes the Redis connection
func Close() error {
	if Client != nil {
		return Client.Close()
	}
	return nil
}
