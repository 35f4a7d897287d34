package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// wsEvent is one message on the event stream. The presence source pushes
// presence and snapshot events over a single long-lived connection instead of
// unary POSTs.
type wsEvent struct {
	Type     string         `json:"type"` // presence or snapshot
	Presence *presenceEvent `json:"presence,omitempty"`
	Snapshot *snapshotEvent `json:"snapshot,omitempty"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("WebSocket accept failed")
		return
	}

	connID := uuid.NewString()
	logger := s.logger.With().Str("conn_id", connID).Logger()
	logger.Info().Msg("Event stream connected")

	defer func() {
		_ = ws.Close(websocket.StatusNormalClosure, "stream closed")
		logger.Info().Msg("Event stream disconnected")
	}()

	for {
		kind, data, err := ws.Read(r.Context())
		if err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				logger.Debug().Err(err).Msg("Event stream read failed")
			}
			return
		}
		if kind != websocket.MessageText {
			continue
		}

		var event wsEvent
		if err := json.Unmarshal(data, &event); err != nil {
			logger.Warn().Err(err).Msg("Discarding malformed event")
			continue
		}

		if err := s.applyEvent(r, event); err != nil {
			logger.Warn().Err(err).Str("type", event.Type).Msg("Event rejected")
		}
	}
}

func (s *Server) applyEvent(r *http.Request, event wsEvent) error {
	switch event.Type {
	case "presence":
		if event.Presence == nil {
			return errors.New("presence payload missing")
		}
		return s.applyPresence(r, *event.Presence)
	case "snapshot":
		if event.Snapshot == nil {
			return errors.New("snapshot payload missing")
		}
		at, err := s.parseAt(event.Snapshot.At)
		if err != nil {
			return err
		}
		for userID, name := range event.Snapshot.DisplayNames {
			s.names.Set(userID, name)
		}
		return s.core.ReseedSessions(r.Context(), event.Snapshot.UserIDs, at)
	default:
		return errors.New("unknown event type: " + event.Type)
	}
}
