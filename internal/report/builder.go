package report

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// TotalsReader is the slice of the tracker the report layer needs.
type TotalsReader interface {
	TotalsForDay(ctx context.Context, dayKey string, includeLive bool, now time.Time) (map[string]int64, error)
}

// Row is one user line in a rendered report.
type Row struct {
	UserID      string
	DisplayName string
	Seconds     int64
}

// Builder turns aggregated totals into rendered daily reports.
type Builder struct {
	totals      TotalsReader
	resolver    NameResolver
	channelName string
	logger      zerolog.Logger
}

// NewBuilder creates a report builder for one tracked channel.
func NewBuilder(totals TotalsReader, resolver NameResolver, channelName string, logger zerolog.Logger) *Builder {
	return &Builder{
		totals:      totals,
		resolver:    resolver,
		channelName: channelName,
		logger:      logger.With().Str("component", "report").Logger(),
	}
}

// RowsForDay builds the sorted report rows for one local day. Users with no
// positive tracked time are dropped; unresolvable names fall back to the raw
// ID form.
func (b *Builder) RowsForDay(ctx context.Context, dayKey string, includeLive bool, now time.Time) ([]Row, error) {
	totals, err := b.totals.TotalsForDay(ctx, dayKey, includeLive, now)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(totals))
	for userID, seconds := range totals {
		if seconds <= 0 {
			continue
		}

		name, err := b.resolver.ResolveDisplayName(ctx, userID)
		if err != nil {
			name = FallbackName(userID)
		}

		rows = append(rows, Row{UserID: userID, DisplayName: name, Seconds: seconds})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Seconds != rows[j].Seconds {
			return rows[i].Seconds > rows[j].Seconds
		}
		return strings.ToLower(rows[i].DisplayName) < strings.ToLower(rows[j].DisplayName)
	})

	return rows, nil
}

// Render produces the report text for a day.
func (b *Builder) Render(dayKey string, rows []Row) string {
	header := fmt.Sprintf("Daily voice activity - %s", dayKey)
	channelLine := fmt.Sprintf("Tracked channel: #%s", b.channelName)

	if len(rows) == 0 {
		return fmt.Sprintf("%s\n%s\nNo tracked activity for %s.", header, channelLine, dayKey)
	}

	var sb strings.Builder
	sb.WriteString(header)
	sb.WriteByte('\n')
	sb.WriteString(channelLine)
	for _, row := range rows {
		sb.WriteByte('\n')
		fmt.Fprintf(&sb, "- %s: %s", row.DisplayName, FormatSeconds(row.Seconds))
	}
	return sb.String()
}

// BuildAndPost renders the report for a day and delivers it via the poster.
func (b *Builder) BuildAndPost(ctx context.Context, poster Poster, dayKey string, includeLive bool, now time.Time) error {
	rows, err := b.RowsForDay(ctx, dayKey, includeLive, now)
	if err != nil {
		return fmt.Errorf("build report for %s: %w", dayKey, err)
	}

	content := b.Render(dayKey, rows)
	if err := poster.Post(ctx, content); err != nil {
		return fmt.Errorf("post report for %s: %w", dayKey, err)
	}

	b.logger.Info().Str("day", dayKey).Int("rows", len(rows)).Msg("Report posted")
	return nil
}
