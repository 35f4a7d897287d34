package storage

import "time"

// OpenSession represents one user currently present in the tracked channel.
// StartedAt marks the beginning of time not yet flushed to a day bucket.
type OpenSession struct {
	UserID    string    `json:"user_id"`
	StartedAt time.Time `json:"started_at"`
}

// DailyTotal aggregates closed-interval seconds per local day and user.
// Live (still open) session time is never included here; it is composed on
// read by the totals reader.
type DailyTotal struct {
	DayKey  string `json:"day_key"`
	UserID  string `json:"user_id"`
	Seconds int64  `json:"seconds"`
}
