package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"alumni/internal/apperr"
	"alumni/internal/content"
	"alumni/internal/events"
	"alumni/internal/members"
	"alumni/internal/session"
)

type errorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// respondError maps domain and taxonomy errors onto a JSON error response.
func respondError(w http.ResponseWriter, err error, logger *slog.Logger) {
	err = classify(err)
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable && status != http.StatusBadGateway {
		logger.Error("service error", "error", err)
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}
	writeJSON(w, status, errorResponse{
		Error:  apperr.Message(err),
		Code:   apperr.Code(err),
		Fields: apperr.FieldsOf(err),
	})
}

// classify translates package sentinels into the caller-facing taxonomy.
func classify(err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case errors.Is(err, members.ErrNotFound):
		return apperr.Wrap(apperr.ErrNotFound, "member not found", err)
	case errors.Is(err, members.ErrConnection):
		return apperr.Wrap(apperr.ErrValidation, err.Error(), err)
	case errors.Is(err, content.ErrNotFound):
		return apperr.Wrap(apperr.ErrNotFound, "entry not found", err)
	case errors.Is(err, content.ErrForbidden):
		return apperr.Wrap(apperr.ErrAuthorization, "you cannot manage this entry", err)
	case errors.Is(err, events.ErrNotFound):
		return apperr.Wrap(apperr.ErrNotFound, "event not found", err)
	case errors.Is(err, events.ErrRSVPNotFound):
		return apperr.Wrap(apperr.ErrNotFound, "rsvp not found", err)
	case errors.Is(err, events.ErrNotApproved):
		return apperr.Wrap(apperr.ErrAuthorization, "only approved members may rsvp", err)
	case errors.Is(err, events.ErrEventFull):
		return apperr.Wrap(apperr.ErrConflict, "event is full", err)
	case errors.Is(err, events.ErrDuplicateRSVP):
		return apperr.Wrap(apperr.ErrConflict, "you already have an rsvp for this event", err)
	default:
		return session.Translate(err)
	}
}

const maxJSONBodyBytes int64 = 1 << 20

var errPayloadTooLarge = errors.New("payload too large")

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	limited := http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	defer func() {
		_ = limited.Close()
	}()

	decoder := json.NewDecoder(limited)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("%w (max %d bytes)", errPayloadTooLarge, maxErr.Limit)
		}
		return err
	}
	return nil
}

func writeJSONError(w http.ResponseWriter, err error) {
	if errors.Is(err, errPayloadTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}
	// Return generic message to avoid leaking internal JSON parsing details
	writeError(w, http.StatusBadRequest, "invalid request body")
}

func parseUUIDParam(w http.ResponseWriter, r *http.Request, key string) (uuid.UUID, bool) {
	value := chi.URLParam(r, key)
	id, err := uuid.Parse(value)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}
