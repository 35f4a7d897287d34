package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goodtune/voicetime/internal/metrics"
	"github.com/goodtune/voicetime/internal/tracker"
)

// presenceEvent is one join/leave notification from the presence source.
type presenceEvent struct {
	UserID      string `json:"user_id"`
	Joined      bool   `json:"joined"`
	At          string `json:"at,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// snapshotEvent is the authoritative list of currently present users, sent by
// the source at (re)connect so downtime is never credited as tracked time.
type snapshotEvent struct {
	UserIDs      []string          `json:"user_ids"`
	At           string            `json:"at,omitempty"`
	DisplayNames map[string]string `json:"display_names,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// parseAt parses an optional event timestamp, falling back to the server
// clock when the source omits it.
func (s *Server) parseAt(value string) (time.Time, error) {
	if value == "" {
		return s.clock.Now(), nil
	}
	at, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", value, err)
	}
	return at, nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePresence(w http.ResponseWriter, r *http.Request) {
	var event presenceEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeError(w, http.StatusBadRequest, "invalid presence event")
		return
	}

	if err := s.applyPresence(r, event); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) applyPresence(r *http.Request, event presenceEvent) error {
	if event.UserID == "" {
		return fmt.Errorf("user_id is required")
	}

	at, err := s.parseAt(event.At)
	if err != nil {
		return err
	}

	s.names.Set(event.UserID, event.DisplayName)

	if event.Joined {
		metrics.PresenceEvents.WithLabelValues("join").Inc()
		started, err := s.core.StartSession(r.Context(), event.UserID, at)
		if err != nil {
			return fmt.Errorf("start session: %w", err)
		}
		if !started {
			s.logger.Debug().Str("user_id", event.UserID).Msg("Duplicate join ignored")
		}
		return nil
	}

	metrics.PresenceEvents.WithLabelValues("leave").Inc()
	if _, err := s.core.EndSession(r.Context(), event.UserID, at); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	var event snapshotEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeError(w, http.StatusBadRequest, "invalid snapshot")
		return
	}

	at, err := s.parseAt(event.At)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	for userID, name := range event.DisplayNames {
		s.names.Set(userID, name)
	}

	metrics.PresenceEvents.WithLabelValues("snapshot").Inc()
	if err := s.core.ReseedSessions(r.Context(), event.UserIDs, at); err != nil {
		writeError(w, http.StatusInternalServerError, "reseed failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"seeded": len(event.UserIDs)})
}

func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	dayKey := chi.URLParam(r, "day")
	if _, err := time.Parse(tracker.DayKeyFormat, dayKey); err != nil {
		writeError(w, http.StatusBadRequest, "day must be YYYY-MM-DD")
		return
	}

	includeLive := r.URL.Query().Get("live") == "1"

	totals, err := s.core.TotalsForDay(r.Context(), dayKey, includeLive, s.clock.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read totals")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"day":    dayKey,
		"live":   includeLive,
		"totals": totals,
	})
}

func (s *Server) handleManualReport(w http.ResponseWriter, r *http.Request) {
	now := s.clock.Now()

	remaining, err := s.cooldown.Remaining(r.Context(), now)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check cooldown")
		return
	}
	if remaining > 0 {
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":               "cooldown active",
			"retry_after_seconds": int64(remaining.Seconds()),
		})
		return
	}

	dayKey := s.core.DayKey(now)
	if err := s.builder.BuildAndPost(r.Context(), s.poster, dayKey, true, now); err != nil {
		metrics.ReportFailures.WithLabelValues("manual").Inc()
		writeError(w, http.StatusBadGateway, "failed to post report")
		return
	}
	metrics.ReportsPosted.WithLabelValues("manual").Inc()

	if err := s.cooldown.Record(r.Context(), now); err != nil {
		s.logger.Error().Err(err).Msg("Failed to record manual report cooldown")
	}

	writeJSON(w, http.StatusOK, map[string]string{"day": dayKey})
}
