package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goodtune/voicetime/internal/clock"
	"github.com/goodtune/voicetime/internal/metrics"
	"github.com/goodtune/voicetime/internal/storage"
	"github.com/rs/zerolog"
)

// Tracker owns the presence-session lifecycle and the accumulation of closed
// intervals into per-local-day totals. All mutating operations are serialized
// by an internal mutex: events arrive from a single gateway path plus one
// scheduler tick, and the store only has to provide atomic upsert/increment
// semantics underneath.
type Tracker struct {
	store  storage.Store
	tz     *time.Location
	clock  clock.Clock
	logger zerolog.Logger
	mu     sync.Mutex
}

// New creates a tracker bound to a store and a reporting timezone.
func New(store storage.Store, tz *time.Location, clk clock.Clock, logger zerolog.Logger) *Tracker {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Tracker{
		store:  store,
		tz:     tz,
		clock:  clk,
		logger: logger.With().Str("component", "tracker").Logger(),
	}
}

// Location returns the reporting timezone.
func (t *Tracker) Location() *time.Location {
	return t.tz
}

// DayKey returns the local day bucket key for an instant.
func (t *Tracker) DayKey(at time.Time) string {
	return LocalDayKey(at, t.tz)
}

// PreviousDayKey returns the local day bucket key for the day before the one
// containing the instant.
func (t *Tracker) PreviousDayKey(at time.Time) string {
	return PreviousLocalDayKey(at, t.tz)
}

// MidnightFor returns the absolute instant of local midnight starting dayKey.
func (t *Tracker) MidnightFor(dayKey string) (time.Time, error) {
	return MidnightForLocalDay(dayKey, t.tz)
}

// StartSession opens a session for a user. Duplicate joins are a defined
// no-op: presence sources occasionally redeliver events, so an already-open
// session returns (false, nil) and the stored row is left untouched.
func (t *Tracker) StartSession(ctx context.Context, userID string, startedAt time.Time) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if startedAt.IsZero() {
		startedAt = t.clock.Now()
	}

	_, err := t.store.Sessions().Get(ctx, userID)
	if err == nil {
		t.logger.Debug().Str("user_id", userID).Msg("Ignoring duplicate join")
		return false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		metrics.StoreErrors.WithLabelValues("get_session").Inc()
		return false, err
	}

	session := storage.OpenSession{UserID: userID, StartedAt: startedAt.UTC()}
	if err := t.store.Sessions().Upsert(ctx, session); err != nil {
		metrics.StoreErrors.WithLabelValues("upsert_session").Inc()
		return false, err
	}

	metrics.SessionsStarted.Inc()
	t.logger.Info().
		Str("user_id", userID).
		Time("started_at", session.StartedAt).
		Msg("Session started")

	return true, nil
}

// EndSession closes a user's session, credits the closed interval to day
// buckets, and returns the seconds accumulated. A leave event with no open
// session returns (0, nil) without touching any totals.
func (t *Tracker) EndSession(ctx context.Context, userID string, endedAt time.Time) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if endedAt.IsZero() {
		endedAt = t.clock.Now()
	}

	session, err := t.store.Sessions().Get(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		t.logger.Debug().Str("user_id", userID).Msg("Ignoring leave without open session")
		return 0, nil
	}
	if err != nil {
		metrics.StoreErrors.WithLabelValues("get_session").Inc()
		return 0, err
	}

	tracked, err := t.accumulateLocked(ctx, userID, session.StartedAt, endedAt.UTC())
	if err != nil {
		return 0, err
	}

	if err := t.store.Sessions().Delete(ctx, userID); err != nil {
		metrics.StoreErrors.WithLabelValues("delete_session").Inc()
		return tracked, err
	}

	metrics.SessionsEnded.Inc()
	t.logger.Info().
		Str("user_id", userID).
		Int64("tracked_seconds", tracked).
		Msg("Session ended")

	return tracked, nil
}

// AccumulateInterval splits [start, end) into day buckets and applies an
// atomic increment per bucket. Returns the total seconds applied.
func (t *Tracker) AccumulateInterval(ctx context.Context, userID string, start, end time.Time) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.accumulateLocked(ctx, userID, start, end)
}

func (t *Tracker) accumulateLocked(ctx context.Context, userID string, start, end time.Time) (int64, error) {
	slices, err := SplitByLocalDay(start, end, t.tz)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, slice := range slices {
		if err := t.store.Totals().AddDailySeconds(ctx, slice.DayKey, userID, slice.Seconds); err != nil {
			metrics.StoreErrors.WithLabelValues("add_daily_seconds").Inc()
			return total, err
		}
		total += slice.Seconds
	}

	if total > 0 {
		metrics.SecondsTracked.Add(float64(total))
	}

	return total, nil
}

// RolloverOpenSessions flushes the pre-midnight slice of every open session
// and moves its accrual boundary to exactly the midnight instant. Sessions
// already starting at or after midnight belong to the new day and are left
// alone, which also makes a repeated call for the same midnight a no-op.
func (t *Tracker) RolloverOpenSessions(ctx context.Context, midnight time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	sessions, err := t.store.Sessions().List(ctx)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("list_sessions").Inc()
		return err
	}

	midnight = midnight.UTC()
	rolled := 0

	for _, session := range sessions {
		if !session.StartedAt.Before(midnight) {
			continue
		}

		if _, err := t.accumulateLocked(ctx, session.UserID, session.StartedAt, midnight); err != nil {
			return err
		}

		session.StartedAt = midnight
		if err := t.store.Sessions().Upsert(ctx, session); err != nil {
			metrics.StoreErrors.WithLabelValues("upsert_session").Inc()
			return err
		}
		rolled++
	}

	metrics.Rollovers.Inc()
	t.logger.Info().
		Time("midnight", midnight).
		Int("sessions_rolled", rolled).
		Msg("Rolled over open sessions")

	return nil
}

// ReseedSessions discards all open-session state and recreates exactly one
// session per given user, all starting at the same instant. Used at startup
// so time elapsed while the tracker was not observing events is never
// credited.
func (t *Tracker) ReseedSessions(ctx context.Context, userIDs []string, startedAt time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if startedAt.IsZero() {
		startedAt = t.clock.Now()
	}
	startedAt = startedAt.UTC()

	if err := t.store.Sessions().Clear(ctx); err != nil {
		metrics.StoreErrors.WithLabelValues("clear_sessions").Inc()
		return err
	}

	for _, userID := range userIDs {
		session := storage.OpenSession{UserID: userID, StartedAt: startedAt}
		if err := t.store.Sessions().Upsert(ctx, session); err != nil {
			metrics.StoreErrors.WithLabelValues("upsert_session").Inc()
			return err
		}
	}

	metrics.OpenSessions.Set(float64(len(userIDs)))
	t.logger.Info().
		Int("users", len(userIDs)).
		Time("started_at", startedAt).
		Msg("Reseeded open sessions")

	return nil
}

// TotalsForDay returns userID -> seconds for one local day. With includeLive,
// the slice of each still-open session that lands on the requested day is
// added on the fly; nothing is flushed, so DailyTotal rows remain the single
// source of truth for closed time and the read is idempotent.
func (t *Tracker) TotalsForDay(ctx context.Context, dayKey string, includeLive bool, now time.Time) (map[string]int64, error) {
	rows, err := t.store.Totals().ListDailyTotals(ctx, dayKey)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("list_daily_totals").Inc()
		return nil, err
	}

	totals := make(map[string]int64, len(rows))
	for _, row := range rows {
		totals[row.UserID] = row.Seconds
	}

	if !includeLive {
		return totals, nil
	}

	if now.IsZero() {
		now = t.clock.Now()
	}

	sessions, err := t.store.Sessions().List(ctx)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("list_sessions").Inc()
		return nil, err
	}

	for _, session := range sessions {
		slices, err := SplitByLocalDay(session.StartedAt, now, t.tz)
		if err != nil {
			return nil, err
		}
		for _, slice := range slices {
			if slice.DayKey != dayKey {
				continue
			}
			totals[session.UserID] += slice.Seconds
		}
	}

	return totals, nil
}
