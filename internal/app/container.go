package app

import (
	"profile-forms/internal/config"
	"profile-forms/internal/counter"
	"profile-forms/internal/infrastructure/cache"
	"profile-forms/internal/infrastructure/credstore"
	"profile-forms/internal/infrastructure/upstream"
	"profile-forms/internal/pkg/jwt"
	"profile-forms/internal/session"
	"profile-forms/internal/ws"

	"github.com/rs/zerolog"
)

// Container owns the long-lived collaborators shared by every request.
type Container struct {
	Config   config.Config
	Logger   zerolog.Logger
	Cache    *cache.Redis
	Upstream *upstream.Client
	Creds    *credstore.Store
	JWT      *jwt.HMACService
	Sessions *session.Registry
	Hub      *ws.Hub
}

func NewContainer(cfg config.Config, logger zerolog.Logger) (*Container, error) {
	redis := cache.NewRedis(cfg.Redis, logger)
	up := upstream.New(cfg.Upstream.BaseURL, cfg.Upstream.Timeout, logger)

	creds := credstore.New(redis, cfg.Auth.SealKey, cfg.Auth.AccessExpiresIn, logger)
	jwtSvc := jwt.NewHMACService(cfg.Auth.AccessSecret, cfg.Auth.AccessExpiresIn, cfg.App.AppName)

	sessions := session.NewRegistry(up, redis, creds, session.Config{
		CountDebounce: cfg.Session.CountDebounce,
		CountTimeout:  cfg.Upstream.Timeout,
		LookupTTL:     cfg.Redis.TTL,
		IdleTTL:       cfg.Session.IdleTTL,
		SweepSpec:     cfg.Session.SweepSpec,
	}, logger)

	hub := ws.NewHub(logger)
	go hub.Run()

	sessions.OnOpen(func(w *session.Workspace) {
		userID := w.UserID
		w.Counter.Subscribe(func(s counter.Snapshot) {
			hub.Notify(userID, ws.EventCountUpdated, s)
		})
	})
	sessions.OnClose(func(userID string) {
		hub.Notify(userID, ws.EventSessionClosed, nil)
	})

	if err := sessions.Start(); err != nil {
		hub.Stop()
		_ = redis.Close()
		return nil, err
	}

	return &Container{
		Config:   cfg,
		Logger:   logger,
		Cache:    redis,
		Upstream: up,
		Creds:    creds,
		JWT:      jwtSvc,
		Sessions: sessions,
		Hub:      hub,
	}, nil
}

func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	c.Sessions.Close()
	c.Hub.Stop()
	return c.Cache.Close()
}
