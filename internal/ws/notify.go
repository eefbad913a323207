package ws

import (
	"encoding/json"
	"time"
)

const (
	EventCountUpdated  = "count_updated"
	EventSessionClosed = "session_closed"
)

type Event struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp string `json:"timestamp"`
}

func Encode(eventType string, data any) ([]byte, error) {
	return json.Marshal(Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Notify encodes and broadcasts one event to a user's sockets.
func (h *Hub) Notify(userID, eventType string, data any) {
	if h == nil {
		return
	}
	b, err := Encode(eventType, data)
	if err != nil {
		h.logger.Error().Err(err).Str("type", eventType).Msg("ws encode failed")
		return
	}
	h.Broadcast(userID, b)
}
