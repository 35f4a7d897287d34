package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/goodtune/voicetime/internal/storage"
	"github.com/redis/go-redis/v9"
)

type totalsStore struct {
	client *redis.Client
}

func dailyTotalsKey(dayKey string) string {
	return fmt.Sprintf("voicetime:totals:%s", dayKey)
}

// AddDailySeconds atomically increments a user's total for one day
func (s *totalsStore) AddDailySeconds(ctx context.Context, dayKey, userID string, delta int64) error {
	if delta <= 0 {
		return nil
	}

	script := redis.NewScript(addDailySecondsScript)
	keys := []string{dailyTotalsKey(dayKey)}
	args := []interface{}{userID, delta, dailyTotalTTLSeconds}

	if err := script.Run(ctx, s.client, keys, args...).Err(); err != nil {
		return storage.Unavailable("add daily seconds", err)
	}
	return nil
}

// GetDailySeconds returns one user's total for one day
func (s *totalsStore) GetDailySeconds(ctx context.Context, dayKey, userID string) (int64, error) {
	value, err := s.client.HGet(ctx, dailyTotalsKey(dayKey), userID).Result()
	if err == redis.Nil {
		return 0, storage.ErrNotFound
	}
	if err != nil {
		return 0, storage.Unavailable("get daily seconds", err)
	}

	seconds, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse seconds for %s/%s: %w", dayKey, userID, err)
	}
	return seconds, nil
}

// ListDailyTotals returns all totals for a day ordered by seconds descending,
// then user ID ascending
func (s *totalsStore) ListDailyTotals(ctx context.Context, dayKey string) ([]storage.DailyTotal, error) {
	data, err := s.client.HGetAll(ctx, dailyTotalsKey(dayKey)).Result()
	if err != nil {
		return nil, storage.Unavailable("list daily totals", err)
	}

	totals := make([]storage.DailyTotal, 0, len(data))
	for userID, value := range data {
		seconds, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse seconds for %s/%s: %w", dayKey, userID, err)
		}
		totals = append(totals, storage.DailyTotal{DayKey: dayKey, UserID: userID, Seconds: seconds})
	}

	sort.Slice(totals, func(i, j int) bool {
		if totals[i].Seconds != totals[j].Seconds {
			return totals[i].Seconds > totals[j].Seconds
		}
		return totals[i].UserID < totals[j].UserID
	})

	return totals, nil
}
