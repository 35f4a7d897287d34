package redis

import (
	"fmt"
	"time"

	"github.com/goodtune/voicetime/internal/storage"
)

// parseOpenSession converts a stored hash field to an OpenSession
func parseOpenSession(userID, startedAt string) (*storage.OpenSession, error) {
	started, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse started_at for %s: %w", userID, err)
	}
	return &storage.OpenSession{UserID: userID, StartedAt: started}, nil
}
