package bolt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/goodtune/voicetime/internal/storage"
	"go.etcd.io/bbolt"
)

type totalsStore struct {
	db *bbolt.DB
}

// totalKey builds the composite bucket key. The separator cannot occur in a
// day key, and user IDs are opaque snowflake-style strings without newlines.
func totalKey(dayKey, userID string) []byte {
	return []byte(dayKey + "\x00" + userID)
}

func (s *totalsStore) AddDailySeconds(ctx context.Context, dayKey, userID string, delta int64) error {
	if delta <= 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketTotals))
		key := totalKey(dayKey, userID)

		total := storage.DailyTotal{DayKey: dayKey, UserID: userID}
		if data := bucket.Get(key); data != nil {
			if err := json.Unmarshal(data, &total); err != nil {
				return fmt.Errorf("decode daily total %s/%s: %w", dayKey, userID, err)
			}
		}
		total.Seconds += delta

		encoded, err := json.Marshal(total)
		if err != nil {
			return fmt.Errorf("encode daily total: %w", err)
		}
		return bucket.Put(key, encoded)
	})
	if err != nil {
		return storage.Unavailable("add daily seconds", err)
	}
	return nil
}

func (s *totalsStore) GetDailySeconds(ctx context.Context, dayKey, userID string) (int64, error) {
	total, err := getValue[storage.DailyTotal](ctx, s.db, bucketTotals, string(totalKey(dayKey, userID)))
	if err != nil {
		return 0, err
	}
	return total.Seconds, nil
}

func (s *totalsStore) ListDailyTotals(ctx context.Context, dayKey string) ([]storage.DailyTotal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := []byte(dayKey + "\x00")
	var totals []storage.DailyTotal

	err := s.db.View(func(tx *bbolt.Tx) error {
		cursor := tx.Bucket([]byte(bucketTotals)).Cursor()
		for k, v := cursor.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = cursor.Next() {
			var total storage.DailyTotal
			if err := json.Unmarshal(v, &total); err != nil {
				return fmt.Errorf("decode daily total %s: %w", k, err)
			}
			totals = append(totals, total)
		}
		return nil
	})
	if err != nil {
		return nil, storage.Unavailable("list daily totals", err)
	}

	sort.Slice(totals, func(i, j int) bool {
		if totals[i].Seconds != totals[j].Seconds {
			return totals[i].Seconds > totals[j].Seconds
		}
		return totals[i].UserID < totals[j].UserID
	})

	return totals, nil
}
