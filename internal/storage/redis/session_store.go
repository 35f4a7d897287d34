package redis

import (
	"context"
	"time"

	"github.com/goodtune/voicetime/internal/storage"
	"github.com/redis/go-redis/v9"
)

const sessionsKey = "voicetime:open_sessions"

type sessionStore struct {
	client *redis.Client
}

// Upsert creates or replaces the open session for a user
func (s *sessionStore) Upsert(ctx context.Context, session storage.OpenSession) error {
	err := s.client.HSet(ctx, sessionsKey,
		session.UserID, session.StartedAt.UTC().Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return storage.Unavailable("upsert open session", err)
	}
	return nil
}

// Get returns the open session for a user
func (s *sessionStore) Get(ctx context.Context, userID string) (*storage.OpenSession, error) {
	startedAt, err := s.client.HGet(ctx, sessionsKey, userID).Result()
	if err == redis.Nil {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, storage.Unavailable("get open session", err)
	}
	return parseOpenSession(userID, startedAt)
}

// Delete removes the open session for a user
func (s *sessionStore) Delete(ctx context.Context, userID string) error {
	if err := s.client.HDel(ctx, sessionsKey, userID).Err(); err != nil {
		return storage.Unavailable("delete open session", err)
	}
	return nil
}

// List returns all open sessions
func (s *sessionStore) List(ctx context.Context) ([]storage.OpenSession, error) {
	data, err := s.client.HGetAll(ctx, sessionsKey).Result()
	if err != nil {
		return nil, storage.Unavailable("list open sessions", err)
	}

	sessions := make([]storage.OpenSession, 0, len(data))
	for userID, startedAt := range data {
		session, err := parseOpenSession(userID, startedAt)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	return sessions, nil
}

// Clear removes every open session
func (s *sessionStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, sessionsKey).Err(); err != nil {
		return storage.Unavailable("clear open sessions", err)
	}
	return nil
}
