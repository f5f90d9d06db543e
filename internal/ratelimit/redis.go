package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	fieldOperations = "operations"
	fieldTTL        = "ttl"
)

// RedisStore keeps each window in a hash that Redis expires at its ttl.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(userID string, windowStart int64) string {
	return fmt.Sprintf("%s:%s:%d", s.prefix, userID, windowStart)
}

func (s *RedisStore) Get(ctx context.Context, userID string, windowStart int64) (*Window, error) {
	values, err := s.client.HGetAll(ctx, s.key(userID, windowStart)).Result()
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}
	w := &Window{UserID: userID, WindowStart: windowStart}
	if w.Operations, err = strconv.Atoi(values[fieldOperations]); err != nil {
		return nil, fmt.Errorf("ratelimit: corrupt operations field: %w", err)
	}
	if raw, ok := values[fieldTTL]; ok {
		if w.TTL, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, fmt.Errorf("ratelimit: corrupt ttl field: %w", err)
		}
	}
	return w, nil
}

func (s *RedisStore) Increment(ctx context.Context, userID string, windowStart, ttl int64) error {
	key := s.key(userID, windowStart)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, key, fieldOperations, 1)
		pipe.HSet(ctx, key, fieldTTL, ttl)
		pipe.ExpireAt(ctx, key, time.Unix(ttl, 0))
		return nil
	})
	return err
}

func (s *RedisStore) Create(ctx context.Context, userID string, windowStart, ttl int64) error {
	key := s.key(userID, windowStart)
	created, err := s.client.HSetNX(ctx, key, fieldOperations, 1).Result()
	if err != nil {
		return err
	}
	if !created {
		return ErrWindowExists
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fieldTTL, ttl)
		pipe.ExpireAt(ctx, key, time.Unix(ttl, 0))
		return nil
	})
	return err
}

func (s *RedisStore) Delete(ctx context.Context, userID string, windowStart int64) error {
	return s.client.Del(ctx, s.key(userID, windowStart)).Err()
}
