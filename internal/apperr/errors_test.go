package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapExposesKindAndCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("register: %w", Wrap(ErrProfileWrite, "could not save profile", cause))

	assert.ErrorIs(t, err, ErrProfileWrite)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusServiceUnavailable, Status(err))
	assert.Equal(t, "PROFILE_WRITE", Code(err))
	assert.Equal(t, "could not save profile", Message(err))
}

func TestValidationCollectsFieldMessages(t *testing.T) {
	input := struct {
		Email string
		Name  string
	}{Email: "", Name: "ok"}

	raw := validation.ValidateStruct(&input,
		validation.Field(&input.Email, validation.Required),
		validation.Field(&input.Name, validation.Required),
	)
	err := Validation(raw)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	fields := FieldsOf(err)
	require.Contains(t, fields, "Email")
	assert.NotContains(t, fields, "Name")
	assert.Equal(t, http.StatusBadRequest, Status(err))
}

func TestValidationNil(t *testing.T) {
	assert.NoError(t, Validation(nil))
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{New(ErrNotFound, "no account"), http.StatusNotFound},
		{New(ErrInvalidCredential, "bad password"), http.StatusUnauthorized},
		{New(ErrRateLimited, "locked"), http.StatusTooManyRequests},
		{New(ErrAuthorization, "admin privileges required"), http.StatusForbidden},
		{New(ErrDuplicateAccount, "exists"), http.StatusConflict},
		{New(ErrConflict, "event is full"), http.StatusConflict},
		{New(ErrEmailDelivery, "smtp"), http.StatusBadGateway},
		{Invalid("to", "is required"), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Status(tc.err), tc.err.Error())
	}
}

func TestMessageHidesInternalErrors(t *testing.T) {
	assert.Equal(t, "internal server error", Message(errors.New("pq: relation missing")))
}
