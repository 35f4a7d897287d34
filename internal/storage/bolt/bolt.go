// Package bolt implements the storage contract on a bbolt file. Increments
// run inside a single Update transaction, which bbolt serializes, so
// concurrent deltas to the same bucket key always sum.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/goodtune/voicetime/internal/storage"
	"go.etcd.io/bbolt"
)

const (
	bucketSessions = "open_sessions"
	bucketTotals   = "daily_totals"
	bucketMeta     = "meta"
)

// Store implements the storage.Store interface using bbolt.
type Store struct {
	db *bbolt.DB
}

// Open opens a BoltDB-backed store.
func Open(path string) (*Store, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return storage.EnsureDir(dir)
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{bucketSessions, bucketTotals, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

// Close closes the underlying store database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Sessions returns the open-session store.
func (s *Store) Sessions() storage.SessionStore { return &sessionStore{db: s.db} }

// Totals returns the daily totals store.
func (s *Store) Totals() storage.TotalsStore { return &totalsStore{db: s.db} }

// Meta returns the metadata store.
func (s *Store) Meta() storage.MetaStore { return &metaStore{db: s.db} }

func putValue(ctx context.Context, db *bbolt.DB, bucket, key string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", bucket, key, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucket)).Put([]byte(key), encoded)
	})
	if err != nil {
		return storage.Unavailable("put "+bucket, err)
	}
	return nil
}

func getValue[T any](ctx context.Context, db *bbolt.DB, bucket, key string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var raw []byte
	err := db.View(func(tx *bbolt.Tx) error {
		if data := tx.Bucket([]byte(bucket)).Get([]byte(key)); data != nil {
			raw = append(raw, data...)
		}
		return nil
	})
	if err != nil {
		return nil, storage.Unavailable("get "+bucket, err)
	}
	if raw == nil {
		return nil, storage.ErrNotFound
	}

	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", bucket, key, err)
	}
	return &value, nil
}

func deleteValue(ctx context.Context, db *bbolt.DB, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucket)).Delete([]byte(key))
	})
	if err != nil {
		return storage.Unavailable("delete "+bucket, err)
	}
	return nil
}
