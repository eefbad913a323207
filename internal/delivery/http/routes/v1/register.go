package v1

import (
	"profile-forms/internal/delivery/http/handler"
	"profile-forms/internal/delivery/http/middleware"
	"profile-forms/internal/domain/profile"

	"github.com/gofiber/fiber/v3"
)

type Handlers struct {
	AuthMw *middleware.AuthMiddleware

	Auth         *handler.AuthHandler
	Lookups      *handler.LookupHandler
	JobFilter    *handler.JobFilterHandler
	Educations   *handler.ResourceHandler[profile.Education]
	Experiences  *handler.ResourceHandler[profile.Experience]
	Certificates *handler.ResourceHandler[profile.Certificate]
}

func Register(r fiber.Router, h Handlers) {
	if r == nil || h.AuthMw == nil {
		return
	}

	// Public routes go first: the protected group's middleware covers every
	// route registered after it under this prefix.
	if h.Auth != nil {
		h.Auth.RegisterRoutes(r.Group("/auth"))
	}

	protected := r.Group("", h.AuthMw.Middleware())

	if h.Auth != nil {
		h.Auth.RegisterProtectedRoutes(protected.Group("/auth"))
	}
	if h.Lookups != nil {
		h.Lookups.RegisterRoutes(protected)
	}
	if h.JobFilter != nil {
		h.JobFilter.RegisterRoutes(protected)
	}

	profileGroup := protected.Group("/profile")
	if h.Educations != nil {
		h.Educations.RegisterRoutes(profileGroup)
	}
	if h.Experiences != nil {
		h.Experiences.RegisterRoutes(profileGroup)
	}
	if h.Certificates != nil {
		h.Certificates.RegisterRoutes(profileGroup)
	}
}
