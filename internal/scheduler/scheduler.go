// Package scheduler drives the local-midnight boundary work: rolling open
// sessions over to the new day and posting the previous day's report, at most
// once per day.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/goodtune/voicetime/internal/clock"
	"github.com/goodtune/voicetime/internal/metrics"
	"github.com/goodtune/voicetime/internal/report"
	"github.com/goodtune/voicetime/internal/storage"
	"github.com/goodtune/voicetime/internal/tracker"
	"github.com/rs/zerolog"
)

// MetaKeyLastAutoReportDay marks the last local day whose scheduled report
// was posted. Owned by the scheduler, not the tracker.
const MetaKeyLastAutoReportDay = "last_auto_report_day"

// SessionRoller is the slice of the tracker the scheduler mutates through.
type SessionRoller interface {
	RolloverOpenSessions(ctx context.Context, midnight time.Time) error
}

// Scheduler periodically checks for a local-midnight crossing. The rollover
// itself is idempotent, so a tick that rolls over but fails to post simply
// retries the post on the next tick within the midnight minute; the meta
// marker is only advanced after a successful post.
type Scheduler struct {
	roller   SessionRoller
	builder  *report.Builder
	poster   report.Poster
	meta     storage.MetaStore
	tz       *time.Location
	tick     time.Duration
	clock    clock.Clock
	logger   zerolog.Logger
	stopChan chan struct{}
}

// New creates a scheduler. The tick must be one minute or finer so the
// 00:00 local minute is never skipped.
func New(roller SessionRoller, builder *report.Builder, poster report.Poster, meta storage.MetaStore, tz *time.Location, tick time.Duration, clk clock.Clock, logger zerolog.Logger) *Scheduler {
	if tick <= 0 || tick > time.Minute {
		tick = 30 * time.Second
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Scheduler{
		roller:   roller,
		builder:  builder,
		poster:   poster,
		meta:     meta,
		tz:       tz,
		tick:     tick,
		clock:    clk,
		logger:   logger.With().Str("component", "scheduler").Logger(),
		stopChan: make(chan struct{}),
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start() {
	go s.run()
	s.logger.Info().
		Dur("tick", s.tick).
		Str("timezone", s.tz.String()).
		Msg("Midnight scheduler started")
}

// Stop stops the scheduler loop.
func (s *Scheduler) Stop() {
	close(s.stopChan)
	s.logger.Info().Msg("Midnight scheduler stopped")
}

func (s *Scheduler) run() {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.Tick(context.Background(), s.clock.Now()); err != nil {
				s.logger.Error().Err(err).Msg("Midnight tick failed")
			}
		case <-s.stopChan:
			return
		}
	}
}

// Tick performs one midnight check for the given instant. Outside the 00:00
// local minute it does nothing. Exported so the check is testable without the
// ticker loop.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) error {
	local := now.In(s.tz)
	if local.Hour() != 0 || local.Minute() != 0 {
		return nil
	}

	targetDay := tracker.PreviousLocalDayKey(now, s.tz)

	marker, err := s.meta.Get(ctx, MetaKeyLastAutoReportDay)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	if marker == targetDay {
		return nil
	}

	midnight, err := tracker.MidnightForLocalDay(tracker.LocalDayKey(now, s.tz), s.tz)
	if err != nil {
		return err
	}

	// Close yesterday's slice for users still present at midnight.
	if err := s.roller.RolloverOpenSessions(ctx, midnight); err != nil {
		return err
	}

	s.logger.Info().Str("day", targetDay).Msg("Posting midnight report")

	if err := s.builder.BuildAndPost(ctx, s.poster, targetDay, false, midnight); err != nil {
		metrics.ReportFailures.WithLabelValues("scheduled").Inc()
		return err
	}
	metrics.ReportsPosted.WithLabelValues("scheduled").Inc()

	return s.meta.Set(ctx, MetaKeyLastAutoReportDay, targetDay)
}
