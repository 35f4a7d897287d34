package bolt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/goodtune/voicetime/internal/storage"
	"go.etcd.io/bbolt"
)

type sessionStore struct {
	db *bbolt.DB
}

func (s *sessionStore) Upsert(ctx context.Context, session storage.OpenSession) error {
	return putValue(ctx, s.db, bucketSessions, session.UserID, session)
}

func (s *sessionStore) Get(ctx context.Context, userID string) (*storage.OpenSession, error) {
	return getValue[storage.OpenSession](ctx, s.db, bucketSessions, userID)
}

func (s *sessionStore) Delete(ctx context.Context, userID string) error {
	return deleteValue(ctx, s.db, bucketSessions, userID)
}

func (s *sessionStore) List(ctx context.Context) ([]storage.OpenSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var sessions []storage.OpenSession
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketSessions)).ForEach(func(k, v []byte) error {
			var session storage.OpenSession
			if err := json.Unmarshal(v, &session); err != nil {
				return fmt.Errorf("decode session %s: %w", k, err)
			}
			sessions = append(sessions, session)
			return nil
		})
	})
	if err != nil {
		return nil, storage.Unavailable("list open sessions", err)
	}
	return sessions, nil
}

func (s *sessionStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucketSessions)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(bucketSessions))
		return err
	})
	if err != nil {
		return storage.Unavailable("clear open sessions", err)
	}
	return nil
}
