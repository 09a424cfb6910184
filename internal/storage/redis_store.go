package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"lisst-auth/internal/bucketing"
	"lisst-auth/internal/config"
	"lisst-auth/internal/util"
)

const sessionKeyPrefix = "session"

// RedisStore is the durable key-value implementation backed by Redis. Keys
// are prefixed with a stable murmur3 bucket so entries spread across the
// keyspace and bucket-scoped scans stay cheap.
type RedisStore struct {
	client  *redis.Client
	buckets *bucketing.Manager
	logger  *zap.Logger
}

func NewRedisStore(cfg *config.Config, logger *zap.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if opts.Password == "" && cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	opts.DB = cfg.Redis.DB
	opts.PoolSize = cfg.Redis.PoolSize
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	util.Info("Redis store initialized",
		zap.String("url", cfg.Redis.URL),
		zap.Int("db", cfg.Redis.DB),
		zap.Int("key_buckets", cfg.Redis.KeyBuckets),
	)

	return &RedisStore{
		client:  client,
		buckets: bucketing.NewManager(cfg.Redis.KeyBuckets),
		logger:  logger,
	}, nil
}

func (s *RedisStore) GetItem(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, s.storageKey(key)).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		s.logger.Error("Failed to read storage key",
			zap.String("key", key),
			zap.Error(err),
		)
		return "", fmt.Errorf("failed to read key %s: %w", key, err)
	}
	return value, nil
}

func (s *RedisStore) SetItem(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.storageKey(key), value, 0).Err(); err != nil {
		s.logger.Error("Failed to write storage key",
			zap.String("key", key),
			zap.Error(err),
		)
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}
	s.logger.Debug("Storage key written", zap.String("key", key))
	return nil
}

func (s *RedisStore) RemoveItem(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.storageKey(key)).Err(); err != nil {
		s.logger.Error("Failed to remove storage key",
			zap.String("key", key),
			zap.Error(err),
		)
		return fmt.Errorf("failed to remove key %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	if err := s.client.Close(); err != nil {
		s.logger.Error("Failed to close Redis store", zap.Error(err))
		return err
	}
	util.Info("Redis store closed")
	return nil
}

func (s *RedisStore) storageKey(key string) string {
	return fmt.Sprintf("%s:%02d:%s", sessionKeyPrefix, s.buckets.KeyBucket(key), key)
}
