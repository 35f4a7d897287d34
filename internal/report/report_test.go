package report

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goodtune/voicetime/internal/storage"
	"github.com/rs/zerolog"
)

func TestFormatSeconds(t *testing.T) {
	cases := []struct {
		seconds int64
		want    string
	}{
		{0, "00:00:00"},
		{59, "00:00:59"},
		{60, "00:01:00"},
		{90, "00:01:30"},
		{3600, "01:00:00"},
		{3661, "01:01:01"},
		{25*3600 + 5, "25:00:05"},
		{-10, "00:00:00"},
	}

	for _, tc := range cases {
		if got := FormatSeconds(tc.seconds); got != tc.want {
			t.Errorf("FormatSeconds(%d) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}

type stubTotals struct {
	totals map[string]int64
	err    error
}

func (s *stubTotals) TotalsForDay(_ context.Context, _ string, _ bool, _ time.Time) (map[string]int64, error) {
	return s.totals, s.err
}

func TestRowsForDaySortingAndFallback(t *testing.T) {
	totals := &stubTotals{totals: map[string]int64{
		"100": 300,
		"200": 600,
		"300": 300,
		"400": 0,
		"500": -5,
	}}

	names := NewRegistry()
	names.Set("100", "zoe")
	names.Set("300", "Alice")

	builder := NewBuilder(totals, names, "general", zerolog.Nop())
	rows, err := builder.RowsForDay(context.Background(), "2026-01-01", false, time.Time{})
	if err != nil {
		t.Fatalf("RowsForDay: %v", err)
	}

	// Seconds descending, then case-insensitive name; non-positive dropped.
	want := []Row{
		{UserID: "200", DisplayName: "User 200", Seconds: 600},
		{UserID: "300", DisplayName: "Alice", Seconds: 300},
		{UserID: "100", DisplayName: "zoe", Seconds: 300},
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

func TestRender(t *testing.T) {
	builder := NewBuilder(&stubTotals{}, NewRegistry(), "general", zerolog.Nop())

	got := builder.Render("2026-01-01", []Row{
		{UserID: "1", DisplayName: "alice", Seconds: 3661},
		{UserID: "2", DisplayName: "bob", Seconds: 90},
	})

	want := strings.Join([]string{
		"Daily voice activity - 2026-01-01",
		"Tracked channel: #general",
		"- alice: 01:01:01",
		"- bob: 00:01:30",
	}, "\n")
	if got != want {
		t.Errorf("Render mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}

	empty := builder.Render("2026-01-01", nil)
	if !strings.Contains(empty, "No tracked activity for 2026-01-01.") {
		t.Errorf("expected no-activity line, got: %s", empty)
	}
}

func TestBuildAndPostWrapsErrors(t *testing.T) {
	builder := NewBuilder(&stubTotals{err: errors.New("store down")}, NewRegistry(), "general", zerolog.Nop())
	err := builder.BuildAndPost(context.Background(), LogPoster{Logger: zerolog.Nop()}, "2026-01-01", false, time.Time{})
	if err == nil || !strings.Contains(err.Error(), "build report for 2026-01-01") {
		t.Errorf("expected wrapped build error, got %v", err)
	}
}

func TestWebhookPoster(t *testing.T) {
	var received map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("invalid webhook payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	poster := NewWebhookPoster(server.URL)
	if err := poster.Post(context.Background(), "hello"); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if received["content"] != "hello" {
		t.Errorf("expected content hello, got %q", received["content"])
	}
}

func TestWebhookPosterNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	poster := NewWebhookPoster(server.URL)
	if err := poster.Post(context.Background(), "hello"); err == nil {
		t.Error("expected error for non-2xx response")
	}
}

type mapMeta struct {
	values map[string]string
}

func (m *mapMeta) Get(_ context.Context, key string) (string, error) {
	value, ok := m.values[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return value, nil
}

func (m *mapMeta) Set(_ context.Context, key, value string) error {
	m.values[key] = value
	return nil
}

func TestCooldown(t *testing.T) {
	meta := &mapMeta{values: make(map[string]string)}
	cooldown := NewCooldown(meta, 10*time.Minute)
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	remaining, err := cooldown.Remaining(ctx, now)
	if err != nil {
		t.Fatalf("Remaining: %v", err)
	}
	if remaining != 0 {
		t.Errorf("expected no cooldown before first report, got %v", remaining)
	}

	if err := cooldown.Record(ctx, now); err != nil {
		t.Fatalf("Record: %v", err)
	}

	remaining, err = cooldown.Remaining(ctx, now.Add(4*time.Minute))
	if err != nil {
		t.Fatalf("Remaining: %v", err)
	}
	if remaining != 6*time.Minute {
		t.Errorf("expected 6m remaining, got %v", remaining)
	}

	remaining, err = cooldown.Remaining(ctx, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Remaining: %v", err)
	}
	if remaining != 0 {
		t.Errorf("expected expired cooldown, got %v", remaining)
	}
}

func TestCooldownLenientMarkerParsing(t *testing.T) {
	meta := &mapMeta{values: make(map[string]string)}
	cooldown := NewCooldown(meta, 10*time.Minute)
	ctx := context.Background()

	// Naive timestamp written by an older build, taken as UTC.
	meta.values[MetaKeyLastManualReport] = "2026-01-01T12:00:00"
	remaining, err := cooldown.Remaining(ctx, time.Date(2026, 1, 1, 12, 5, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Remaining: %v", err)
	}
	if remaining != 5*time.Minute {
		t.Errorf("expected 5m remaining from naive marker, got %v", remaining)
	}

	// A corrupt marker never blocks reporting.
	meta.values[MetaKeyLastManualReport] = "garbage"
	remaining, err = cooldown.Remaining(ctx, time.Now())
	if err != nil {
		t.Fatalf("Remaining: %v", err)
	}
	if remaining != 0 {
		t.Errorf("expected corrupt marker to clear cooldown, got %v", remaining)
	}
}

func TestCooldownDisabled(t *testing.T) {
	cooldown := NewCooldown(&mapMeta{values: make(map[string]string)}, 0)
	remaining, err := cooldown.Remaining(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("Remaining: %v", err)
	}
	if remaining != 0 {
		t.Errorf("expected disabled cooldown, got %v", remaining)
	}
}

type countingResolver struct {
	inner NameResolver
	calls int
}

func (c *countingResolver) ResolveDisplayName(ctx context.Context, userID string) (string, error) {
	c.calls++
	return c.inner.ResolveDisplayName(ctx, userID)
}

func TestCachedResolver(t *testing.T) {
	names := NewRegistry()
	names.Set("u1", "alice")
	counting := &countingResolver{inner: names}

	resolver, err := NewCachedResolver(counting, 8)
	if err != nil {
		t.Fatalf("NewCachedResolver: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		name, err := resolver.ResolveDisplayName(ctx, "u1")
		if err != nil {
			t.Fatalf("ResolveDisplayName: %v", err)
		}
		if name != "alice" {
			t.Errorf("expected alice, got %q", name)
		}
	}
	if counting.calls != 1 {
		t.Errorf("expected 1 upstream call, got %d", counting.calls)
	}

	// Failures are not cached.
	if _, err := resolver.ResolveDisplayName(ctx, "unknown"); err == nil {
		t.Error("expected error for unknown user")
	}
}

func TestRegistryIgnoresEmptyNames(t *testing.T) {
	names := NewRegistry()
	names.Set("u1", "")
	if _, err := names.ResolveDisplayName(context.Background(), "u1"); err == nil {
		t.Error("expected empty name to be ignored")
	}
}
