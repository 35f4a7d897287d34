package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goodtune/voicetime/internal/config"
	"github.com/goodtune/voicetime/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)

	store, err := Open(config.RedisConfig{
		Host:         mr.Addr(),
		DialTimeout:  "5s",
		ReadTimeout:  "3s",
		WriteTimeout: "3s",
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return store
}

func TestSessionLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	sessions := store.Sessions()

	if _, err := sessions.Get(ctx, "u1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	started := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	if err := sessions.Upsert(ctx, storage.OpenSession{UserID: "u1", StartedAt: started}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	session, err := sessions.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !session.StartedAt.Equal(started) {
		t.Errorf("expected start %v, got %v", started, session.StartedAt)
	}

	moved := started.Add(30 * time.Minute)
	if err := sessions.Upsert(ctx, storage.OpenSession{UserID: "u1", StartedAt: moved}); err != nil {
		t.Fatalf("Upsert replace: %v", err)
	}
	session, err = sessions.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get after replace: %v", err)
	}
	if !session.StartedAt.Equal(moved) {
		t.Errorf("expected moved start %v, got %v", moved, session.StartedAt)
	}

	if err := sessions.Upsert(ctx, storage.OpenSession{UserID: "u2", StartedAt: started}); err != nil {
		t.Fatalf("Upsert u2: %v", err)
	}
	listed, err := sessions.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(listed))
	}

	if err := sessions.Delete(ctx, "u1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := sessions.Get(ctx, "u1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	if err := sessions.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	listed, err = sessions.List(ctx)
	if err != nil {
		t.Fatalf("List after clear: %v", err)
	}
	if len(listed) != 0 {
		t.Errorf("expected no sessions after clear, got %d", len(listed))
	}
}

func TestAddDailySeconds(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	totals := store.Totals()

	if _, err := totals.GetDailySeconds(ctx, "2026-01-01", "u1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	for _, delta := range []int64{600, 300} {
		if err := totals.AddDailySeconds(ctx, "2026-01-01", "u1", delta); err != nil {
			t.Fatalf("AddDailySeconds(%d): %v", delta, err)
		}
	}

	seconds, err := totals.GetDailySeconds(ctx, "2026-01-01", "u1")
	if err != nil {
		t.Fatalf("GetDailySeconds: %v", err)
	}
	if seconds != 900 {
		t.Errorf("expected 900 seconds, got %d", seconds)
	}

	// Non-positive deltas never create or change a record.
	for _, delta := range []int64{0, -100} {
		if err := totals.AddDailySeconds(ctx, "2026-01-01", "u1", delta); err != nil {
			t.Fatalf("AddDailySeconds(%d): %v", delta, err)
		}
	}
	seconds, err = totals.GetDailySeconds(ctx, "2026-01-01", "u1")
	if err != nil {
		t.Fatalf("GetDailySeconds: %v", err)
	}
	if seconds != 900 {
		t.Errorf("non-positive delta changed total: %d", seconds)
	}
}

func TestDailyTotalsExpire(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := Open(config.RedisConfig{
		Host:         mr.Addr(),
		DialTimeout:  "5s",
		ReadTimeout:  "3s",
		WriteTimeout: "3s",
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	if err := store.Totals().AddDailySeconds(ctx, "2026-01-01", "u1", 60); err != nil {
		t.Fatalf("AddDailySeconds: %v", err)
	}

	ttl := mr.TTL(dailyTotalsKey("2026-01-01"))
	if ttl <= 0 {
		t.Fatalf("expected TTL on totals key, got %v", ttl)
	}

	mr.FastForward(ttl + time.Second)
	if _, err := store.Totals().GetDailySeconds(ctx, "2026-01-01", "u1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected expired totals to be gone, got %v", err)
	}
}

func TestListDailyTotalsOrdering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	totals := store.Totals()

	adds := []struct {
		day   string
		user  string
		delta int64
	}{
		{"2026-01-01", "charlie", 300},
		{"2026-01-01", "alice", 900},
		{"2026-01-01", "bob", 300},
		{"2026-01-02", "alice", 60},
	}
	for _, add := range adds {
		if err := totals.AddDailySeconds(ctx, add.day, add.user, add.delta); err != nil {
			t.Fatalf("AddDailySeconds: %v", err)
		}
	}

	rows, err := totals.ListDailyTotals(ctx, "2026-01-01")
	if err != nil {
		t.Fatalf("ListDailyTotals: %v", err)
	}

	want := []storage.DailyTotal{
		{DayKey: "2026-01-01", UserID: "alice", Seconds: 900},
		{DayKey: "2026-01-01", UserID: "bob", Seconds: 300},
		{DayKey: "2026-01-01", UserID: "charlie", Seconds: 300},
	}
	if len(rows) != len(want) {
		t.Fatalf("expected %d rows, got %d: %v", len(want), len(rows), rows)
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Errorf("row %d: expected %+v, got %+v", i, want[i], rows[i])
		}
	}
}

func TestMetaRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	meta := store.Meta()

	if _, err := meta.Get(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := meta.Set(ctx, "last_auto_report_day", "2026-01-01"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	value, err := meta.Get(ctx, "last_auto_report_day")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if value != "2026-01-01" {
		t.Errorf("expected 2026-01-01, got %q", value)
	}
}
