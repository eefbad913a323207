package handler

import (
	"strconv"

	"profile-forms/internal/delivery/http/middleware"
	"profile-forms/internal/pkg/response"

	"github.com/gofiber/fiber/v3"
)

type LookupHandler struct {
	spaces Workspaces
}

func NewLookupHandler(spaces Workspaces) *LookupHandler {
	return &LookupHandler{spaces: spaces}
}

func (h *LookupHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}

	grp := r.Group("/lookups")
	grp.Get("/skills", h.Skills)
	grp.Get("/cities", h.Cities)
}

func (h *LookupHandler) Skills(c fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	w, err := h.spaces.Open(userID)
	if err != nil {
		return middleware.FromDomain(err)
	}
	if err := w.Lookups.Load(c.Context()); err != nil {
		return middleware.FromDomain(err)
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	skills, err := w.Lookups.SearchSkills(c.Query("q"), limit)
	if err != nil {
		return middleware.FromDomain(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, skills)
}

func (h *LookupHandler) Cities(c fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	w, err := h.spaces.Open(userID)
	if err != nil {
		return middleware.FromDomain(err)
	}
	if err := w.Lookups.Load(c.Context()); err != nil {
		return middleware.FromDomain(err)
	}

	cities, _ := w.Lookups.Cities()
	return response.Success(c, fiber.StatusOK, response.MessageOK, cities)
}
