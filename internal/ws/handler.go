package ws

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Authenticate resolves the ?token= query parameter to a user id.
type Authenticate func(token string) (userID string, err error)

// Initial returns the message sent right after the upgrade, if any.
type Initial func(userID string) ([]byte, bool)

type Handler struct {
	hub     *Hub
	auth    Authenticate
	initial Initial
	logger  zerolog.Logger
}

func NewHandler(hub *Hub, auth Authenticate, initial Initial, logger zerolog.Logger) *Handler {
	return &Handler{hub: hub, auth: auth, initial: initial, logger: logger.With().Str("component", "ws").Logger()}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleJobFilterWS streams the caller's job-filter count snapshots.
func (h *Handler) HandleJobFilterWS(c fiber.Ctx) error {
	if h == nil || h.hub == nil || h.auth == nil {
		return fiber.ErrServiceUnavailable
	}

	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "Unauthorized")
	}
	userID, err := h.auth(token)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
	}

	fiberHandler := adaptor.HTTPHandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn().Err(err).Msg("ws upgrade failed")
			return
		}

		client := NewClient(h.hub, conn, userID)
		if h.initial != nil {
			if msg, ok := h.initial(userID); ok {
				client.send <- msg
			}
		}
		if !h.hub.Register(client) {
			_ = conn.Close()
			return
		}
		go client.WritePump()
		go client.ReadPump()
	})

	return fiberHandler(c)
}
