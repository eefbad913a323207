package routes

import (
	"profile-forms/internal/delivery/http/handler"
	v1 "profile-forms/internal/delivery/http/routes/v1"
	"profile-forms/internal/ws"

	"github.com/gofiber/fiber/v3"
)

type Registry struct {
	health *handler.HealthHandler
	ws     *ws.Handler
	v1     v1.Handlers
}

func NewRegistry(health *handler.HealthHandler, wsHandler *ws.Handler, api v1.Handlers) *Registry {
	return &Registry{health: health, ws: wsHandler, v1: api}
}

func (r *Registry) Register(app *fiber.App) {
	if app == nil {
		return
	}

	r.registerHealth(app)
	r.registerWS(app)
	r.registerAPI(app)
}

func (r *Registry) registerHealth(app *fiber.App) {
	if r.health != nil {
		r.health.RegisterRoutes(app)
	}
}

// The websocket authenticates through ?token= since browsers cannot set
// headers on the upgrade request.
func (r *Registry) registerWS(app *fiber.App) {
	if r.ws != nil {
		app.Get("/ws/job-filter", r.ws.HandleJobFilterWS)
	}
}

func (r *Registry) registerAPI(app *fiber.App) {
	api := app.Group("/api")
	v1.Register(api.Group("/v1"), r.v1)
}
