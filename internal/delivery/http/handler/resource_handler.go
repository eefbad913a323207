package handler

import (
	"profile-forms/internal/delivery/http/dto"
	"profile-forms/internal/delivery/http/middleware"
	"profile-forms/internal/listctl"
	"profile-forms/internal/pkg/response"
	"profile-forms/internal/session"

	"github.com/gofiber/fiber/v3"
)

// ResourceHandler exposes one profile section (educations, experiences or
// certificates) of the caller's workspace.
type ResourceHandler[T any] struct {
	kind   string
	spaces Workspaces
	pick   func(*session.Workspace) *listctl.Controller[T]
}

func NewResourceHandler[T any](kind string, spaces Workspaces, pick func(*session.Workspace) *listctl.Controller[T]) *ResourceHandler[T] {
	return &ResourceHandler[T]{kind: kind, spaces: spaces, pick: pick}
}

func (h *ResourceHandler[T]) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}

	grp := r.Group("/" + h.kind)
	grp.Get("/", h.List)
	grp.Post("/add", h.Add)
	grp.Put("/active", h.SetFields)
	grp.Post("/active/save", h.Save)
	grp.Post("/active/back", h.Back)
	grp.Post("/reorder", h.Reorder)
	grp.Post("/:id/edit", h.Edit)
	grp.Delete("/:id", h.Remove)
}

func (h *ResourceHandler[T]) controller(c fiber.Ctx) (*listctl.Controller[T], error) {
	userID, err := middleware.UserID(c)
	if err != nil {
		return nil, err
	}
	w, err := h.spaces.Open(userID)
	if err != nil {
		return nil, middleware.FromDomain(err)
	}
	return h.pick(w), nil
}

func (h *ResourceHandler[T]) view(c fiber.Ctx, status int, ctl *listctl.Controller[T]) error {
	return response.Success(c, status, "", dto.NewListView(ctl.State(), ctl.Entries()))
}

// List loads the workspace on first use; ?refresh=true reloads only this
// section.
func (h *ResourceHandler[T]) List(c fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	w, err := h.spaces.Open(userID)
	if err != nil {
		return middleware.FromDomain(err)
	}
	ctl := h.pick(w)

	if c.Query("refresh") == "true" {
		if err := ctl.Load(c.Context()); err != nil {
			return middleware.FromDomain(err)
		}
	} else if !w.Loaded() {
		// Shares the load with a running prefetch instead of racing it.
		if err := w.Load(c.Context()); err != nil {
			return middleware.FromDomain(err)
		}
	}
	return h.view(c, fiber.StatusOK, ctl)
}

func (h *ResourceHandler[T]) Add(c fiber.Ctx) error {
	ctl, err := h.controller(c)
	if err != nil {
		return err
	}
	if _, err := ctl.Add(); err != nil {
		return middleware.FromDomain(err)
	}
	return h.view(c, fiber.StatusCreated, ctl)
}

func (h *ResourceHandler[T]) Edit(c fiber.Ctx) error {
	ctl, err := h.controller(c)
	if err != nil {
		return err
	}
	if _, err := ctl.Edit(c.Params("id")); err != nil {
		return middleware.FromDomain(err)
	}
	return h.view(c, fiber.StatusOK, ctl)
}

func (h *ResourceHandler[T]) SetFields(c fiber.Ctx) error {
	ctl, err := h.controller(c)
	if err != nil {
		return err
	}
	var fields T
	if err := c.Bind().Body(&fields); err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
	}
	if _, err := ctl.SetFields(fields); err != nil {
		return middleware.FromDomain(err)
	}
	return h.view(c, fiber.StatusOK, ctl)
}

func (h *ResourceHandler[T]) Save(c fiber.Ctx) error {
	ctl, err := h.controller(c)
	if err != nil {
		return err
	}
	if _, err := ctl.Save(c.Context()); err != nil {
		return middleware.FromDomain(err)
	}
	return h.view(c, fiber.StatusOK, ctl)
}

func (h *ResourceHandler[T]) Back(c fiber.Ctx) error {
	ctl, err := h.controller(c)
	if err != nil {
		return err
	}
	if err := ctl.Back(); err != nil {
		return middleware.FromDomain(err)
	}
	return h.view(c, fiber.StatusOK, ctl)
}

func (h *ResourceHandler[T]) Reorder(c fiber.Ctx) error {
	ctl, err := h.controller(c)
	if err != nil {
		return err
	}
	var req dto.ReorderRequest
	if err := c.Bind().Body(&req); err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
	}
	if err := ctl.Reorder(req.From, req.To); err != nil {
		return middleware.FromDomain(err)
	}
	return h.view(c, fiber.StatusOK, ctl)
}

func (h *ResourceHandler[T]) Remove(c fiber.Ctx) error {
	ctl, err := h.controller(c)
	if err != nil {
		return err
	}
	if err := ctl.Remove(c.Params("id")); err != nil {
		return middleware.FromDomain(err)
	}
	return h.view(c, fiber.StatusOK, ctl)
}
