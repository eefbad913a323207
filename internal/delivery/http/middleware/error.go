package middleware

import (
	"errors"

	"profile-forms/internal/apperr"
	"profile-forms/internal/pkg/response"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
)

type AppError struct {
	StatusCode int
	Message    string
	Data       any
	Cause      error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func NewAppError(statusCode int, message string, data any, cause error) *AppError {
	return &AppError{StatusCode: statusCode, Message: message, Data: data, Cause: cause}
}

// FromDomain maps the shared error taxonomy onto HTTP.
func FromDomain(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var verr *apperr.ValidationError
	switch {
	case errors.As(err, &verr):
		return NewAppError(fiber.StatusUnprocessableEntity, "Validation failed", verr.Fields, err)
	case errors.Is(err, apperr.ErrUnauthorized):
		return NewAppError(fiber.StatusUnauthorized, "Upstream rejected the credentials", nil, err)
	case errors.Is(err, apperr.ErrForbidden):
		return NewAppError(fiber.StatusForbidden, "Credentials belong to another user", nil, err)
	case errors.Is(err, apperr.ErrMissingCredentials):
		return NewAppError(fiber.StatusFailedDependency, "Upstream credentials not set", nil, err)
	case errors.Is(err, apperr.ErrDependencyNotReady):
		return NewAppError(fiber.StatusServiceUnavailable, "Lookup tables not loaded yet", nil, err)
	case errors.Is(err, apperr.ErrSaveInProgress):
		return NewAppError(fiber.StatusConflict, "Save already in progress", nil, err)
	case errors.Is(err, apperr.ErrNotEditing), errors.Is(err, apperr.ErrInvalidState):
		return NewAppError(fiber.StatusConflict, err.Error(), nil, err)
	case errors.Is(err, apperr.ErrClosed):
		return NewAppError(fiber.StatusConflict, "Session closed", nil, err)
	case errors.Is(err, apperr.ErrNotFound):
		return NewAppError(fiber.StatusNotFound, "Entry not found", nil, err)
	case errors.Is(err, apperr.ErrOutOfRange), errors.Is(err, apperr.ErrInvalidInput):
		return NewAppError(fiber.StatusBadRequest, err.Error(), nil, err)
	case errors.Is(err, apperr.ErrNetwork):
		return NewAppError(fiber.StatusBadGateway, "Upstream request failed", nil, err)
	default:
		return NewAppError(fiber.StatusInternalServerError, response.MessageInternalServerError, nil, err)
	}
}

type ErrorMiddleware struct {
	logger zerolog.Logger
}

func NewErrorMiddleware(logger zerolog.Logger) *ErrorMiddleware {
	return &ErrorMiddleware{logger: logger}
}

func (m *ErrorMiddleware) Middleware() fiber.Handler {
	return func(c fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error().Interface("panic", r).Str("path", c.Path()).Msg("panic recovered")
				err = response.Error(c, fiber.StatusInternalServerError, response.MessageInternalServerError, nil)
			}
		}()

		err = c.Next()
		if err == nil {
			return nil
		}

		status, msg, data := normalizeError(err)
		if status >= 500 {
			m.logger.Error().Err(err).Int("status", status).Str("path", c.Path()).Msg("request failed")
		}
		return response.Error(c, status, msg, data)
	}
}

func normalizeError(err error) (int, string, any) {
	if err == nil {
		return fiber.StatusInternalServerError, response.MessageInternalServerError, nil
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		status := fiberErr.Code
		if status <= 0 {
			status = fiber.StatusInternalServerError
		}
		if status >= 500 && !passThrough(status) {
			return fiber.StatusInternalServerError, response.MessageInternalServerError, nil
		}
		return status, fiberErr.Message, nil
	}

	appErr := FromDomain(err)
	if appErr.StatusCode <= 0 {
		return fiber.StatusInternalServerError, response.MessageInternalServerError, nil
	}
	status := appErr.StatusCode
	if status >= 500 && !passThrough(status) {
		return fiber.StatusInternalServerError, response.MessageInternalServerError, nil
	}
	return status, appErr.Message, appErr.Data
}

// passThrough lists the 5xx codes that describe someone else's failure and
// are safe to show.
func passThrough(status int) bool {
	return status == fiber.StatusBadGateway || status == fiber.StatusServiceUnavailable
}
