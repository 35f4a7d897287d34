package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// ErrUnavailable wraps backend failures so callers can detect them with
// errors.Is without depending on driver error types.
var ErrUnavailable = errors.New("storage: unavailable")

// Unavailable wraps a backend error as ErrUnavailable, preserving the cause.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// Store represents the root storage interface. One backend instance owns all
// three record families; the session engine is the only writer of sessions
// and totals, the scheduler and command layer own the meta markers.
type Store interface {
	Close() error
	Sessions() SessionStore
	Totals() TotalsStore
	Meta() MetaStore
}

// SessionStore manages the open-session records, one per present user.
type SessionStore interface {
	// Upsert creates or replaces the open session for a user.
	Upsert(ctx context.Context, session OpenSession) error
	// Get returns the open session for a user, or ErrNotFound.
	Get(ctx context.Context, userID string) (*OpenSession, error)
	// Delete removes the open session for a user. Missing rows are not an error.
	Delete(ctx context.Context, userID string) error
	// List returns all open sessions in unspecified order.
	List(ctx context.Context) ([]OpenSession, error)
	// Clear removes every open session.
	Clear(ctx context.Context) error
}

// TotalsStore manages accumulated per-day per-user seconds.
type TotalsStore interface {
	// AddDailySeconds atomically adds delta to the (dayKey, userID) total,
	// creating the record if absent. Deltas <= 0 are a no-op. Concurrent
	// deltas to the same key must sum without losing updates.
	AddDailySeconds(ctx context.Context, dayKey, userID string, delta int64) error
	// GetDailySeconds returns the total for one user on one day, or ErrNotFound.
	GetDailySeconds(ctx context.Context, dayKey, userID string) (int64, error)
	// ListDailyTotals returns all totals for a day, ordered by seconds
	// descending, then user ID ascending.
	ListDailyTotals(ctx context.Context, dayKey string) ([]DailyTotal, error)
}

// MetaStore is a small string key/value table used by the scheduler and the
// command layer for idempotency markers.
type MetaStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}
