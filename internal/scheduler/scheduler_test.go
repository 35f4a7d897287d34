package scheduler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goodtune/voicetime/internal/report"
	"github.com/goodtune/voicetime/internal/storage"
	"github.com/rs/zerolog"
)

type fakeRoller struct {
	calls []time.Time
}

func (r *fakeRoller) RolloverOpenSessions(_ context.Context, midnight time.Time) error {
	r.calls = append(r.calls, midnight)
	return nil
}

type fakeTotals struct {
	totals map[string]map[string]int64
}

func (f *fakeTotals) TotalsForDay(_ context.Context, dayKey string, _ bool, _ time.Time) (map[string]int64, error) {
	return f.totals[dayKey], nil
}

type fakePoster struct {
	posts   []string
	failing bool
}

func (p *fakePoster) Post(_ context.Context, content string) error {
	if p.failing {
		return errors.New("sink unavailable")
	}
	p.posts = append(p.posts, content)
	return nil
}

type fakeMeta struct {
	values map[string]string
}

func newFakeMeta() *fakeMeta {
	return &fakeMeta{values: make(map[string]string)}
}

func (m *fakeMeta) Get(_ context.Context, key string) (string, error) {
	value, ok := m.values[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return value, nil
}

func (m *fakeMeta) Set(_ context.Context, key, value string) error {
	m.values[key] = value
	return nil
}

func newTestScheduler(t *testing.T) (*Scheduler, *fakeRoller, *fakePoster, *fakeMeta) {
	t.Helper()
	tz, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}

	roller := &fakeRoller{}
	poster := &fakePoster{}
	meta := newFakeMeta()
	totals := &fakeTotals{totals: map[string]map[string]int64{
		"2026-01-01": {"u1": 3600},
	}}
	builder := report.NewBuilder(totals, report.NewRegistry(), "general", zerolog.Nop())

	sched := New(roller, builder, poster, meta, tz, 30*time.Second, nil, zerolog.Nop())
	return sched, roller, poster, meta
}

func TestTickOutsideMidnightMinute(t *testing.T) {
	sched, roller, poster, _ := newTestScheduler(t)
	ctx := context.Background()

	tz := sched.tz
	for _, now := range []time.Time{
		time.Date(2026, 1, 2, 0, 1, 0, 0, tz),
		time.Date(2026, 1, 2, 12, 0, 0, 0, tz),
		time.Date(2026, 1, 2, 23, 59, 59, 0, tz),
	} {
		if err := sched.Tick(ctx, now); err != nil {
			t.Fatalf("Tick(%v): %v", now, err)
		}
	}

	if len(roller.calls) != 0 {
		t.Errorf("expected no rollovers, got %d", len(roller.calls))
	}
	if len(poster.posts) != 0 {
		t.Errorf("expected no posts, got %d", len(poster.posts))
	}
}

func TestTickAtMidnightPostsOnce(t *testing.T) {
	sched, roller, poster, meta := newTestScheduler(t)
	ctx := context.Background()

	tz := sched.tz
	midnight := time.Date(2026, 1, 2, 0, 0, 0, 0, tz)

	// Several ticks land inside the same midnight minute.
	for _, now := range []time.Time{
		midnight.Add(5 * time.Second),
		midnight.Add(35 * time.Second),
	} {
		if err := sched.Tick(ctx, now); err != nil {
			t.Fatalf("Tick(%v): %v", now, err)
		}
	}

	if len(roller.calls) != 1 {
		t.Fatalf("expected 1 rollover, got %d", len(roller.calls))
	}
	if !roller.calls[0].Equal(midnight) {
		t.Errorf("expected rollover at %v, got %v", midnight, roller.calls[0])
	}

	if len(poster.posts) != 1 {
		t.Fatalf("expected 1 post, got %d", len(poster.posts))
	}
	if !strings.Contains(poster.posts[0], "2026-01-01") {
		t.Errorf("expected report for 2026-01-01, got: %s", poster.posts[0])
	}
	if !strings.Contains(poster.posts[0], "01:00:00") {
		t.Errorf("expected formatted total in report, got: %s", poster.posts[0])
	}

	if got := meta.values[MetaKeyLastAutoReportDay]; got != "2026-01-01" {
		t.Errorf("expected marker 2026-01-01, got %q", got)
	}
}

func TestTickRetriesFailedPost(t *testing.T) {
	sched, roller, poster, meta := newTestScheduler(t)
	ctx := context.Background()

	tz := sched.tz
	midnight := time.Date(2026, 1, 2, 0, 0, 0, 0, tz)

	poster.failing = true
	if err := sched.Tick(ctx, midnight.Add(5*time.Second)); err == nil {
		t.Fatal("expected error from failing poster")
	}

	if _, ok := meta.values[MetaKeyLastAutoReportDay]; ok {
		t.Fatal("marker must not advance after a failed post")
	}

	// The next tick within the minute retries. The rollover runs again but is
	// idempotent by contract.
	poster.failing = false
	if err := sched.Tick(ctx, midnight.Add(35*time.Second)); err != nil {
		t.Fatalf("retry Tick: %v", err)
	}

	if len(roller.calls) != 2 {
		t.Errorf("expected 2 rollover calls, got %d", len(roller.calls))
	}
	if len(poster.posts) != 1 {
		t.Errorf("expected 1 successful post, got %d", len(poster.posts))
	}
	if got := meta.values[MetaKeyLastAutoReportDay]; got != "2026-01-01" {
		t.Errorf("expected marker 2026-01-01, got %q", got)
	}
}

func TestNewClampsTick(t *testing.T) {
	sched, _, _, _ := newTestScheduler(t)
	if sched.tick != 30*time.Second {
		t.Fatalf("expected configured tick, got %v", sched.tick)
	}

	tz := time.UTC
	builder := report.NewBuilder(&fakeTotals{}, report.NewRegistry(), "general", zerolog.Nop())

	for _, tick := range []time.Duration{0, -time.Second, 5 * time.Minute} {
		s := New(&fakeRoller{}, builder, &fakePoster{}, newFakeMeta(), tz, tick, nil, zerolog.Nop())
		if s.tick != 30*time.Second {
			t.Errorf("tick %v: expected clamp to 30s, got %v", tick, s.tick)
		}
	}
}
