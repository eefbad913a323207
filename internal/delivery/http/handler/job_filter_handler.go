package handler

import (
	"bytes"
	"encoding/json"
	"time"

	"profile-forms/internal/apperr"
	"profile-forms/internal/counter"
	"profile-forms/internal/delivery/http/middleware"
	"profile-forms/internal/pkg/response"
	"profile-forms/internal/session"

	"github.com/gofiber/fiber/v3"
)

// JobFilterHandler drives the live "matching profiles" count of the job
// posting form.
type JobFilterHandler struct {
	spaces   Workspaces
	prefetch time.Duration
}

func NewJobFilterHandler(spaces Workspaces, prefetch time.Duration) *JobFilterHandler {
	if prefetch <= 0 {
		prefetch = 15 * time.Second
	}
	return &JobFilterHandler{spaces: spaces, prefetch: prefetch}
}

func (h *JobFilterHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}

	grp := r.Group("/job-filter")
	grp.Patch("/", h.Patch)
	grp.Post("/refresh", h.Refresh)
	grp.Get("/count", h.Count)
}

// Patch merges the body into the filter. A key mapped to null is cleared; a
// string is taken as a one-element list.
func (h *JobFilterHandler) Patch(c fiber.Ctx) error {
	patch, err := parsePatch(c.Body())
	if err != nil {
		return err
	}

	w, err := h.workspace(c)
	if err != nil {
		return err
	}
	w.Counter.SetFilter(patch)
	return response.Success(c, fiber.StatusAccepted, response.MessageAccepted, w.Counter.Snapshot())
}

func (h *JobFilterHandler) Refresh(c fiber.Ctx) error {
	w, err := h.workspace(c)
	if err != nil {
		return err
	}
	w.Counter.Refresh()
	return response.Success(c, fiber.StatusAccepted, response.MessageAccepted, w.Counter.Snapshot())
}

func (h *JobFilterHandler) Count(c fiber.Ctx) error {
	w, err := h.workspace(c)
	if err != nil {
		return err
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, w.Counter.Snapshot())
}

func (h *JobFilterHandler) workspace(c fiber.Ctx) (*session.Workspace, error) {
	userID, err := middleware.UserID(c)
	if err != nil {
		return nil, err
	}
	w, err := h.spaces.Open(userID)
	if err != nil {
		return nil, middleware.FromDomain(err)
	}
	// Skill filters wait for the lookup table; get it loading.
	if !w.Lookups.Ready() {
		w.Prefetch(h.prefetch)
	}
	return w, nil
}

func parsePatch(body []byte) (counter.Patch, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, nil)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
	}

	patch := make(counter.Patch, len(raw))
	fields := apperr.FieldErrors{}
	for name, value := range raw {
		key, ok := counter.ParseFilterKey(name)
		if !ok {
			fields[name] = "unknown filter"
			continue
		}
		if bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			patch[key] = nil
			continue
		}
		var list []string
		if err := json.Unmarshal(value, &list); err == nil {
			if list == nil {
				list = []string{}
			}
			patch[key] = list
			continue
		}
		var single string
		if err := json.Unmarshal(value, &single); err == nil {
			patch[key] = []string{single}
			continue
		}
		fields[name] = "must be a string, a list of strings or null"
	}
	if !fields.Empty() {
		return nil, middleware.NewAppError(fiber.StatusBadRequest, "Invalid filter", fields, nil)
	}
	return patch, nil
}
