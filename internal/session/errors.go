package session

import (
	"errors"

	"alumni/internal/apperr"
	"alumni/internal/identity"
	"alumni/internal/members"
)

// Translate maps identity and profile store errors onto the caller-facing taxonomy.
func Translate(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}

	switch {
	case errors.Is(err, identity.ErrAccountNotFound):
		return apperr.Wrap(apperr.ErrNotFound, "no account found for this email", err)
	case errors.Is(err, identity.ErrInvalidCredential):
		return apperr.Wrap(apperr.ErrInvalidCredential, "incorrect email or password", err)
	case errors.Is(err, identity.ErrTooManyAttempts):
		return apperr.Wrap(apperr.ErrRateLimited, "too many failed attempts, try again later", err)
	case errors.Is(err, identity.ErrEmailInUse):
		return apperr.Wrap(apperr.ErrDuplicateAccount, "an account with this email already exists", err)
	case errors.Is(err, identity.ErrWeakPassword):
		return &apperr.Error{Kind: apperr.ErrValidation, Message: "password: must be at least 6 characters", Fields: map[string]string{"password": "must be at least 6 characters"}, Err: err}
	case errors.Is(err, identity.ErrInvalidEmail):
		return &apperr.Error{Kind: apperr.ErrValidation, Message: "email: must be a valid email address", Fields: map[string]string{"email": "must be a valid email address"}, Err: err}
	case errors.Is(err, identity.ErrInvalidToken), errors.Is(err, identity.ErrUnverifiedEmail):
		return apperr.Wrap(apperr.ErrAuthorization, "sign in required", err)
	case errors.Is(err, members.ErrNotFound):
		return apperr.Wrap(apperr.ErrNotFound, "profile not found", err)
	default:
		return err
	}
}

func profileWriteError(err error) error {
	return apperr.Wrap(apperr.ErrProfileWrite, "profile store unavailable", err)
}

var (
	errAdminRequired  = apperr.New(apperr.ErrAuthorization, "admin privileges required")
	errSignInRequired = apperr.New(apperr.ErrAuthorization, "sign in required")
)
