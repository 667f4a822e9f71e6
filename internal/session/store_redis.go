package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "checkora:sessions:"

type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// OpenRedis parses a redis:// URL and verifies the connection.
func OpenRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("redis url required")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (s *RedisStore) key(id string) string { return keyPrefix + HashID(id) }

func (s *RedisStore) Load(ctx context.Context, id string) ([]byte, error) {
	raw, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return raw, nil
}

func (s *RedisStore) Save(ctx context.Context, id string, blob []byte) error {
	if err := s.rdb.Set(ctx, s.key(id), blob, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *RedisStore) Update(ctx context.Context, id string, fn UpdateFunc) error {
	key := s.key(id)
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			raw = nil
		} else if err != nil {
			return fmt.Errorf("load session: %w", err)
		}

		next, err := fn(raw)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}

		pipe := tx.TxPipeline()
		pipe.Set(ctx, key, next, s.ttl)
		_, err = pipe.Exec(ctx)
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return ErrConflict
	}
	return err
}

func (s *RedisStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}
