// Package redis implements the storage contract on Redis. Open sessions and
// meta markers live in hashes; daily totals use one hash per day so HINCRBY
// gives commutative increments and expired days age out on their own.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/voicetime/internal/config"
	"github.com/goodtune/voicetime/internal/storage"
	"github.com/redis/go-redis/v9"
)

// Store implements the storage.Store interface using Redis
type Store struct {
	client       *redis.Client
	sessionStore *sessionStore
	totalsStore  *totalsStore
	metaStore    *metaStore
}

// Open creates a new Redis-backed storage instance
func Open(cfg config.RedisConfig) (*Store, error) {
	dialTimeout, err := time.ParseDuration(cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid dial_timeout: %w", err)
	}

	readTimeout, err := time.ParseDuration(cfg.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid read_timeout: %w", err)
	}

	writeTimeout, err := time.ParseDuration(cfg.WriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid write_timeout: %w", err)
	}

	// Host may already carry the port (tests pass miniredis.Addr() directly)
	addr := cfg.Host
	if cfg.Port > 0 {
		addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{
		client:       client,
		sessionStore: &sessionStore{client: client},
		totalsStore:  &totalsStore{client: client},
		metaStore:    &metaStore{client: client},
	}, nil
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Sessions returns the open-session store.
func (s *Store) Sessions() storage.SessionStore { return s.sessionStore }

// Totals returns the daily totals store.
func (s *Store) Totals() storage.TotalsStore { return s.totalsStore }

// Meta returns the metadata store.
func (s *Store) Meta() storage.MetaStore { return s.metaStore }
