package bolt

import (
	"context"

	"github.com/goodtune/voicetime/internal/storage"
	"go.etcd.io/bbolt"
)

type metaStore struct {
	db *bbolt.DB
}

func (s *metaStore) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		if data := tx.Bucket([]byte(bucketMeta)).Get([]byte(key)); data != nil {
			value = append(value, data...)
		}
		return nil
	})
	if err != nil {
		return "", storage.Unavailable("get meta", err)
	}
	if value == nil {
		return "", storage.ErrNotFound
	}
	return string(value), nil
}

func (s *metaStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketMeta)).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return storage.Unavailable("set meta", err)
	}
	return nil
}
