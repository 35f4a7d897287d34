package report

import (
	"context"
	"errors"
	"time"

	"github.com/goodtune/voicetime/internal/storage"
)

// MetaKeyLastManualReport stores the instant the last manual report was
// triggered. Owned by the command layer, never touched by the tracker.
const MetaKeyLastManualReport = "last_manual_report_at"

// Cooldown enforces a global spacing between manual reports, persisted in the
// meta store so it survives restarts.
type Cooldown struct {
	meta   storage.MetaStore
	window time.Duration
}

// NewCooldown creates a cooldown with the given window. A non-positive window
// disables the cooldown entirely.
func NewCooldown(meta storage.MetaStore, window time.Duration) *Cooldown {
	return &Cooldown{meta: meta, window: window}
}

// Remaining returns how long until another manual report is allowed.
func (c *Cooldown) Remaining(ctx context.Context, now time.Time) (time.Duration, error) {
	if c.window <= 0 {
		return 0, nil
	}

	value, err := c.meta.Get(ctx, MetaKeyLastManualReport)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	last, err := parseInstant(value)
	if err != nil {
		// A corrupt marker should never block reporting forever.
		return 0, nil
	}

	remaining := c.window - now.Sub(last)
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

// Record persists now as the new cooldown reference instant.
func (c *Cooldown) Record(ctx context.Context, now time.Time) error {
	return c.meta.Set(ctx, MetaKeyLastManualReport, now.UTC().Format(time.RFC3339Nano))
}

// parseInstant parses stored timestamps leniently: values written by older
// builds lack sub-second precision or a zone, and naive values are taken as
// UTC.
func parseInstant(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02T15:04:05", value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
