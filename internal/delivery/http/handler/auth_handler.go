package handler

import (
	"context"
	"strings"
	"time"

	"profile-forms/internal/apperr"
	"profile-forms/internal/auth"
	"profile-forms/internal/delivery/http/dto"
	"profile-forms/internal/delivery/http/middleware"
	"profile-forms/internal/pkg/jwt"
	"profile-forms/internal/pkg/response"
	"profile-forms/internal/session"

	"github.com/gofiber/fiber/v3"
)

type CredentialStore interface {
	Put(ctx context.Context, userID string, c auth.Credentials) error
	Delete(ctx context.Context, userID string) error
}

// Identity resolves which upstream user a credential pair belongs to.
type Identity interface {
	WhoAmI(ctx context.Context, c auth.Credentials) (string, error)
}

type Workspaces interface {
	Open(userID string) (*session.Workspace, error)
	Drop(userID string)
}

// AuthHandler opens a BFF session: it checks the upstream credentials the
// UI already holds, stores them and hands back a token for the other routes.
// The session user is whoever upstream says owns the credentials.
type AuthHandler struct {
	creds    CredentialStore
	identity Identity
	jwt      jwt.Service
	spaces   Workspaces
	prefetch time.Duration
}

func NewAuthHandler(creds CredentialStore, identity Identity, jwtSvc jwt.Service, spaces Workspaces, prefetch time.Duration) *AuthHandler {
	return &AuthHandler{creds: creds, identity: identity, jwt: jwtSvc, spaces: spaces, prefetch: prefetch}
}

func (h *AuthHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}
	r.Post("/session", h.CreateSession)
}

func (h *AuthHandler) RegisterProtectedRoutes(r fiber.Router) {
	if r == nil {
		return
	}
	r.Delete("/session", h.DeleteSession)
}

func (h *AuthHandler) CreateSession(c fiber.Ctx) error {
	var req dto.CreateSessionRequest
	if err := c.Bind().Body(&req); err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
	}
	req.UserID = strings.TrimSpace(req.UserID)
	creds := auth.Credentials{APIKey: strings.TrimSpace(req.APIKey), APISecret: strings.TrimSpace(req.APISecret)}

	if !creds.Valid() {
		fields := map[string]string{}
		if creds.APIKey == "" {
			fields["api_key"] = "api_key is required"
		}
		if creds.APISecret == "" {
			fields["api_secret"] = "api_secret is required"
		}
		return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", fields, nil)
	}

	userID, err := h.identity.WhoAmI(c.Context(), creds)
	if err != nil {
		return middleware.FromDomain(err)
	}
	// user_id is optional; when sent it must name the credentials' owner.
	if req.UserID != "" && req.UserID != userID {
		return middleware.FromDomain(apperr.ErrForbidden)
	}

	if err := h.creds.Put(c.Context(), userID, creds); err != nil {
		return middleware.FromDomain(err)
	}
	token, claims, err := h.jwt.GenerateSessionToken(userID)
	if err != nil {
		return middleware.NewAppError(fiber.StatusInternalServerError, response.MessageInternalServerError, nil, err)
	}

	w, err := h.spaces.Open(userID)
	if err != nil {
		return middleware.FromDomain(err)
	}
	if h.prefetch > 0 {
		w.Prefetch(h.prefetch)
	}

	return response.Success(c, fiber.StatusCreated, "Session created", dto.SessionResponse{
		UserID:      claims.UserID,
		SessionID:   claims.SessionID.String(),
		AccessToken: token,
		ExpiresAt:   claims.ExpiresAt.Time,
	})
}

func (h *AuthHandler) DeleteSession(c fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	h.spaces.Drop(userID)
	if err := h.creds.Delete(c.Context(), userID); err != nil {
		return middleware.FromDomain(err)
	}
	return response.Success(c, fiber.StatusOK, "Session closed", nil)
}
