package redis

import (
	"context"

	"github.com/goodtune/voicetime/internal/storage"
	"github.com/redis/go-redis/v9"
)

const metaKey = "voicetime:meta"

type metaStore struct {
	client *redis.Client
}

func (s *metaStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.HGet(ctx, metaKey, key).Result()
	if err == redis.Nil {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", storage.Unavailable("get meta", err)
	}
	return value, nil
}

func (s *metaStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.HSet(ctx, metaKey, key, value).Err(); err != nil {
		return storage.Unavailable("set meta", err)
	}
	return nil
}
