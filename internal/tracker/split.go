package tracker

import (
	"fmt"
	"time"
)

// DayKeyFormat is the canonical local-day bucket key layout.
const DayKeyFormat = "2006-01-02"

// DaySlice is one chunk of an interval attributed to a single local day.
type DaySlice struct {
	DayKey  string
	Seconds int64
}

// SplitByLocalDay splits the absolute interval [start, end) into per-local-day
// chunks under tz. Each day key appears at most once, in chronological order,
// and the chunk lengths are whole seconds of absolute-time difference, so DST
// transitions move the boundary in wall-clock terms without ever producing
// negative or doubled seconds.
//
// A non-positive span returns an empty result, not an error; zero-value
// bounds return ErrInvalidInterval.
func SplitByLocalDay(start, end time.Time, tz *time.Location) ([]DaySlice, error) {
	if start.IsZero() || end.IsZero() || tz == nil {
		return nil, ErrInvalidInterval
	}
	if !end.After(start) {
		return nil, nil
	}

	var slices []DaySlice
	cursor := start

	for cursor.Before(end) {
		local := cursor.In(tz)
		year, month, day := local.Date()

		// Next local midnight strictly after the cursor's local date,
		// re-expressed as an absolute instant under tz. time.Date normalizes
		// nonexistent wall-clock midnights across DST gaps.
		nextMidnight := time.Date(year, month, day+1, 0, 0, 0, 0, tz)

		chunkEnd := end
		if nextMidnight.Before(end) {
			chunkEnd = nextMidnight
		}

		seconds := int64(chunkEnd.Sub(cursor) / time.Second)
		if seconds > 0 {
			slices = append(slices, DaySlice{
				DayKey:  local.Format(DayKeyFormat),
				Seconds: seconds,
			})
		}

		cursor = chunkEnd
	}

	return slices, nil
}

// LocalDayKey returns the day bucket key for an instant under tz.
func LocalDayKey(now time.Time, tz *time.Location) string {
	return now.In(tz).Format(DayKeyFormat)
}

// PreviousLocalDayKey returns the day bucket key for the local calendar day
// before the one containing now.
func PreviousLocalDayKey(now time.Time, tz *time.Location) string {
	local := now.In(tz)
	year, month, day := local.Date()
	return time.Date(year, month, day-1, 0, 0, 0, 0, tz).Format(DayKeyFormat)
}

// MidnightForLocalDay returns the absolute instant of local midnight at the
// start of the given day key under tz.
func MidnightForLocalDay(dayKey string, tz *time.Location) (time.Time, error) {
	midnight, err := time.ParseInLocation(DayKeyFormat, dayKey, tz)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse day key %q: %w", dayKey, err)
	}
	return midnight, nil
}
