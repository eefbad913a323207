package handler

import (
	"context"
	"time"

	"profile-forms/internal/pkg/response"

	"github.com/gofiber/fiber/v3"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	cache    Pinger
	sessions func() int
}

func NewHealthHandler(cache Pinger, sessions func() int) *HealthHandler {
	return &HealthHandler{cache: cache, sessions: sessions}
}

func (h *HealthHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}
	r.Get("/health", h.Health)
}

// Health always answers 200: a missing cache degrades to in-process state.
func (h *HealthHandler) Health(c fiber.Ctx) error {
	data := map[string]any{"status": "ok", "cache": "disabled"}

	if h.cache != nil {
		ctx, cancel := context.WithTimeout(c.Context(), time.Second)
		defer cancel()
		if err := h.cache.Ping(ctx); err != nil {
			data["cache"] = "unavailable"
		} else {
			data["cache"] = "ok"
		}
	}
	if h.sessions != nil {
		data["sessions"] = h.sessions()
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, data)
}
