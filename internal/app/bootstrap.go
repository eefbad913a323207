package app

import (
	"fmt"
	"strings"
	"time"

	"profile-forms/internal/config"
	"profile-forms/internal/delivery/http/handler"
	"profile-forms/internal/delivery/http/middleware"
	"profile-forms/internal/delivery/http/routes"
	v1 "profile-forms/internal/delivery/http/routes/v1"
	"profile-forms/internal/domain/profile"
	"profile-forms/internal/listctl"
	"profile-forms/internal/session"
	"profile-forms/internal/ws"

	"github.com/gofiber/fiber/v3"
)

const prefetchTimeout = 30 * time.Second

type App struct {
	Fiber     *fiber.App
	Container *Container
}

func New(c *Container) *App {
	f := fiber.New(fiber.Config{
		AppName: c.Config.App.AppName,
	})

	registerGlobalMiddleware(f, c)
	registerRoutes(f, c)

	return &App{Fiber: f, Container: c}
}

func Bootstrap(cfg config.Config, c *Container) (*App, func() error, error) {
	if c == nil {
		return nil, nil, fmt.Errorf("bootstrap %s: nil container", cfg.App.AppName)
	}
	app := New(c)
	return app, c.Close, nil
}

func registerGlobalMiddleware(app *fiber.App, c *Container) {
	if app == nil {
		return
	}

	errMw := middleware.NewErrorMiddleware(c.Logger)
	accessMw := middleware.NewAccessLogMiddleware(c.Logger)
	app.Use(accessMw.Middleware())
	app.Use(errMw.Middleware())
}

func registerRoutes(app *fiber.App, c *Container) {
	if app == nil {
		return
	}

	sessions := c.Sessions
	authMw := middleware.NewAuthMiddleware(c.JWT)

	wsHandler := ws.NewHandler(c.Hub,
		func(token string) (string, error) {
			claims, err := c.JWT.ValidateToken(token)
			if err != nil {
				return "", err
			}
			return claims.UserID, nil
		},
		func(userID string) ([]byte, bool) {
			w, err := sessions.Open(userID)
			if err != nil {
				return nil, false
			}
			b, err := ws.Encode(ws.EventCountUpdated, w.Counter.Snapshot())
			return b, err == nil
		},
		c.Logger,
	)

	api := v1.Handlers{
		AuthMw:    authMw,
		Auth:      handler.NewAuthHandler(c.Creds, c.Upstream, c.JWT, sessions, prefetchTimeout),
		Lookups:   handler.NewLookupHandler(sessions),
		JobFilter: handler.NewJobFilterHandler(sessions, prefetchTimeout),
		Educations: handler.NewResourceHandler(profile.KindEducation, sessions,
			func(w *session.Workspace) *listctl.Controller[profile.Education] { return w.Educations }),
		Experiences: handler.NewResourceHandler(profile.KindExperience, sessions,
			func(w *session.Workspace) *listctl.Controller[profile.Experience] { return w.Experiences }),
		Certificates: handler.NewResourceHandler(profile.KindCertificate, sessions,
			func(w *session.Workspace) *listctl.Controller[profile.Certificate] { return w.Certificates }),
	}

	health := handler.NewHealthHandler(c.Cache, sessions.Len)
	routes.NewRegistry(health, wsHandler, api).Register(app)
}

func ListenAddr(port string) (string, error) {
	p := strings.TrimSpace(port)
	if p == "" {
		return "", fmt.Errorf("empty HTTP port")
	}
	if strings.HasPrefix(p, ":") {
		return p, nil
	}
	return ":" + p, nil
}
