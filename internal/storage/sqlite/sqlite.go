// Package sqlite implements the storage contract on a single SQLite file.
// It is the default backend: one writer, WAL journal, and conflict-target
// upserts give the atomic replace/increment semantics the tracker needs.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/goodtune/voicetime/internal/storage"
	_ "modernc.org/sqlite"
)

// Store implements the storage.Store interface using SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) a SQLite-backed store.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := storage.EnsureDir(dir); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	dsn := path + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single connection: SQLite serializes writers anyway and this keeps
	// increments free of SQLITE_BUSY under concurrent readers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Sessions returns the open-session store.
func (s *Store) Sessions() storage.SessionStore { return &sessionStore{db: s.db} }

// Totals returns the daily totals store.
func (s *Store) Totals() storage.TotalsStore { return &totalsStore{db: s.db} }

// Meta returns the metadata store.
func (s *Store) Meta() storage.MetaStore { return &metaStore{db: s.db} }

type sessionStore struct {
	db *sql.DB
}

func (s *sessionStore) Upsert(ctx context.Context, session storage.OpenSession) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO open_sessions (user_id, started_at)
		VALUES (?, ?)
		ON CONFLICT(user_id)
		DO UPDATE SET started_at = excluded.started_at
	`, session.UserID, session.StartedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return storage.Unavailable("upsert open session", err)
	}
	return nil
}

func (s *sessionStore) Get(ctx context.Context, userID string) (*storage.OpenSession, error) {
	var startedAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT started_at FROM open_sessions WHERE user_id = ?", userID,
	).Scan(&startedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, storage.Unavailable("get open session", err)
	}

	started, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return nil, fmt.Errorf("parse started_at for %s: %w", userID, err)
	}

	return &storage.OpenSession{UserID: userID, StartedAt: started}, nil
}

func (s *sessionStore) Delete(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM open_sessions WHERE user_id = ?", userID,
	); err != nil {
		return storage.Unavailable("delete open session", err)
	}
	return nil
}

func (s *sessionStore) List(ctx context.Context) ([]storage.OpenSession, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id, started_at FROM open_sessions",
	)
	if err != nil {
		return nil, storage.Unavailable("list open sessions", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []storage.OpenSession
	for rows.Next() {
		var userID, startedAt string
		if err := rows.Scan(&userID, &startedAt); err != nil {
			return nil, storage.Unavailable("scan open session", err)
		}
		started, err := time.Parse(time.RFC3339Nano, startedAt)
		if err != nil {
			return nil, fmt.Errorf("parse started_at for %s: %w", userID, err)
		}
		sessions = append(sessions, storage.OpenSession{UserID: userID, StartedAt: started})
	}

	if err := rows.Err(); err != nil {
		return nil, storage.Unavailable("list open sessions", err)
	}
	return sessions, nil
}

func (s *sessionStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM open_sessions"); err != nil {
		return storage.Unavailable("clear open sessions", err)
	}
	return nil
}

type totalsStore struct {
	db *sql.DB
}

func (s *totalsStore) AddDailySeconds(ctx context.Context, dayKey, userID string, delta int64) error {
	if delta <= 0 {
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_totals (day_key, user_id, seconds)
		VALUES (?, ?, ?)
		ON CONFLICT(day_key, user_id)
		DO UPDATE SET seconds = seconds + excluded.seconds
	`, dayKey, userID, delta)
	if err != nil {
		return storage.Unavailable("add daily seconds", err)
	}
	return nil
}

func (s *totalsStore) GetDailySeconds(ctx context.Context, dayKey, userID string) (int64, error) {
	var seconds int64
	err := s.db.QueryRowContext(ctx,
		"SELECT seconds FROM daily_totals WHERE day_key = ? AND user_id = ?",
		dayKey, userID,
	).Scan(&seconds)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, storage.ErrNotFound
	}
	if err != nil {
		return 0, storage.Unavailable("get daily seconds", err)
	}
	return seconds, nil
}

func (s *totalsStore) ListDailyTotals(ctx context.Context, dayKey string) ([]storage.DailyTotal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT day_key, user_id, seconds
		FROM daily_totals
		WHERE day_key = ?
		ORDER BY seconds DESC, user_id ASC
	`, dayKey)
	if err != nil {
		return nil, storage.Unavailable("list daily totals", err)
	}
	defer func() { _ = rows.Close() }()

	var totals []storage.DailyTotal
	for rows.Next() {
		var total storage.DailyTotal
		if err := rows.Scan(&total.DayKey, &total.UserID, &total.Seconds); err != nil {
			return nil, storage.Unavailable("scan daily total", err)
		}
		totals = append(totals, total)
	}

	if err := rows.Err(); err != nil {
		return nil, storage.Unavailable("list daily totals", err)
	}
	return totals, nil
}

type metaStore struct {
	db *sql.DB
}

func (s *metaStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM meta WHERE key = ?", key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", storage.Unavailable("get meta", err)
	}
	return value, nil
}

func (s *metaStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meta (key, value)
		VALUES (?, ?)
		ON CONFLICT(key)
		DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return storage.Unavailable("set meta", err)
	}
	return nil
}
