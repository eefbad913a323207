package apperr

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrMissingCredentials: upstream auth not available yet. Callers skip the
	// operation and retry on the next trigger.
	ErrMissingCredentials = errors.New("missing credentials")
	// ErrDependencyNotReady: a lookup table the operation needs is not loaded.
	ErrDependencyNotReady = errors.New("dependency not ready")
	ErrValidation         = errors.New("validation failed")
	ErrNetwork            = errors.New("network failure")

	ErrSaveInProgress = errors.New("save already in progress")
	ErrNotEditing     = errors.New("controller is not in edit mode")
	ErrInvalidState   = errors.New("operation not allowed in current mode")
	ErrNotFound       = errors.New("not found")
	ErrOutOfRange     = errors.New("index out of range")
	ErrClosed         = errors.New("instance closed")
	ErrInvalidInput   = errors.New("invalid input")
	// ErrUnauthorized: upstream rejected the credentials.
	ErrUnauthorized = errors.New("credentials rejected")
	ErrForbidden    = errors.New("forbidden")
)

// FieldErrors maps a field name to a human readable message.
type FieldErrors map[string]string

func (f FieldErrors) Empty() bool { return len(f) == 0 }

// ValidationError carries the per-field map and matches ErrValidation.
type ValidationError struct {
	Fields FieldErrors
}

func NewValidationError(fields FieldErrors) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NetworkError wraps a transport or upstream status failure.
type NetworkError struct {
	Op    string
	Cause error
}

func Network(op string, cause error) error {
	if cause == nil {
		return nil
	}
	return &NetworkError{Op: op, Cause: cause}
}

func (e *NetworkError) Error() string {
	if e.Cause == nil {
		return e.Op + ": " + ErrNetwork.Error()
	}
	return e.Op + ": " + ErrNetwork.Error() + ": " + e.Cause.Error()
}

func (e *NetworkError) Unwrap() error { return e.Cause }

func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}
