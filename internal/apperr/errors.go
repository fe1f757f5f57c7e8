// Package apperr holds the failure taxonomy surfaced to callers of the membership service.
package apperr

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var (
	// ErrNotFound is returned when no account or record exists for the lookup key.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredential is returned when the identity provider rejects a credential.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrRateLimited is returned when the identity provider reports a lockout.
	ErrRateLimited = errors.New("rate limited")
	// ErrAuthorization is returned when a role or session requirement is not met.
	ErrAuthorization = errors.New("not authorized")
	// ErrDuplicateAccount is returned when registering an email that already has sign-in methods.
	ErrDuplicateAccount = errors.New("duplicate account")
	// ErrConflict is returned when a write collides with existing state, such as a full event.
	ErrConflict = errors.New("conflict")
	// ErrValidation is returned for field-level input failures.
	ErrValidation = errors.New("validation failed")
	// ErrProfileWrite is returned when the profile store cannot be written.
	ErrProfileWrite = errors.New("profile write failed")
	// ErrEmailDelivery is returned when a confirmation email could not be sent.
	ErrEmailDelivery = errors.New("email delivery failed")
)

// Error carries a taxonomy kind, a user-facing message and the underlying cause.
type Error struct {
	Kind    error
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Kind != nil {
		return e.Kind.Error()
	}
	return "unknown error"
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// New builds an error of the given kind with a user-facing message.
func New(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap translates cause into the given kind, keeping it reachable through errors.Is.
func Wrap(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// Validation converts ozzo-validation output into a field-keyed validation error.
// Non-validation errors are returned unchanged.
func Validation(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		fields := make(map[string]string, len(fieldErrs))
		keys := make([]string, 0, len(fieldErrs))
		for key, fieldErr := range fieldErrs {
			if fieldErr == nil {
				continue
			}
			fields[key] = fieldErr.Error()
			keys = append(keys, key)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, key := range keys {
			parts = append(parts, key+": "+fields[key])
		}
		return &Error{Kind: ErrValidation, Message: strings.Join(parts, "; "), Fields: fields, Err: err}
	}
	var internal validation.InternalError
	if errors.As(err, &internal) {
		return err
	}
	return &Error{Kind: ErrValidation, Message: err.Error(), Err: err}
}

// Invalid reports a single-field validation failure.
func Invalid(field, message string) *Error {
	return &Error{Kind: ErrValidation, Message: field + ": " + message, Fields: map[string]string{field: message}}
}

// FieldsOf returns the per-field messages attached to err, if any.
func FieldsOf(err error) map[string]string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Fields
	}
	return nil
}

// Status maps the error's kind onto an HTTP status code.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidCredential):
		return http.StatusUnauthorized
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrAuthorization):
		return http.StatusForbidden
	case errors.Is(err, ErrDuplicateAccount), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrProfileWrite):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrEmailDelivery):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Code returns a stable machine-readable code for the error's kind.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "VALIDATION"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrInvalidCredential):
		return "INVALID_CREDENTIAL"
	case errors.Is(err, ErrRateLimited):
		return "RATE_LIMITED"
	case errors.Is(err, ErrAuthorization):
		return "AUTHORIZATION"
	case errors.Is(err, ErrDuplicateAccount):
		return "DUPLICATE_ACCOUNT"
	case errors.Is(err, ErrConflict):
		return "CONFLICT"
	case errors.Is(err, ErrProfileWrite):
		return "PROFILE_WRITE"
	case errors.Is(err, ErrEmailDelivery):
		return "EMAIL_DELIVERY"
	default:
		return "INTERNAL"
	}
}

// Message returns the user-facing text for err, hiding internal causes.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Error()
	}
	if Status(err) == http.StatusInternalServerError {
		return "internal server error"
	}
	return err.Error()
}
