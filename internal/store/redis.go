package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore backs the publish spool with durable Redis lists: strict FIFO,
// append at the tail, pop from the head, failed entries restored to the head.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// PushBack appends a value to the tail of the list at key.
func (s *RedisStore) PushBack(ctx context.Context, key string, value []byte) error {
	if err := s.client.RPush(ctx, key, value).Err(); err != nil {
		return fmt.Errorf("pushing to tail of %s: %w", key, err)
	}
	return nil
}

// PushFront restores a value to the head of the list at key, ahead of
// everything queued behind it.
func (s *RedisStore) PushFront(ctx context.Context, key string, value []byte) error {
	if err := s.client.LPush(ctx, key, value).Err(); err != nil {
		return fmt.Errorf("pushing to head of %s: %w", key, err)
	}
	return nil
}

// PopFront removes and returns the head of the list at key. A nil value with
// a nil error means the list is empty.
func (s *RedisStore) PopFront(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.LPop(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("popping from %s: %w", key, err)
	}
	return data, nil
}

// ListLen returns the number of values in the list at key.
func (s *RedisStore) ListLen(ctx context.Context, key string) (int64, error) {
	n, err := s.client.LLen(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("reading length of %s: %w", key, err)
	}
	return n, nil
}
