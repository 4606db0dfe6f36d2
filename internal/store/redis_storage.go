package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStorage stores values as redis hashes so struct fields stay
// individually inspectable from redis-cli.
type RedisStorage struct {
	rdb redis.UniversalClient
}

func (s *RedisStorage) Conn() redis.UniversalClient {
	return s.rdb
}

func (s *RedisStorage) Get(ctx context.Context, key string, val any) error {
	cmd := s.rdb.HGetAll(ctx, key)
	if len(cmd.Val()) == 0 {
		return ErrNotFound
	}
	return cmd.Scan(val)
}

func (s *RedisStorage) Set(ctx context.Context, key string, val any, expiresIn time.Duration) error {
	if expiresIn <= 0 {
		return s.rdb.HSet(ctx, key, val).Err()
	}
	pipe := s.rdb.Pipeline()
	pipe.HSet(ctx, key, val)
	pipe.Expire(ctx, key, expiresIn)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStorage) Delete(ctx context.Context, key string) error {
	deleted, err := s.rdb.Del(ctx, key).Result()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStorage) Expire(ctx context.Context, key string, expiresAt time.Time) error {
	return s.rdb.ExpireAt(ctx, key, expiresAt).Err()
}

func NewRedisStorage(rdb redis.UniversalClient) *RedisStorage {
	return &RedisStorage{rdb: rdb}
}
