package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"alumni/internal/apperr"
	"alumni/internal/notify"
)

// EmailHandler exposes the RSVP confirmation endpoint. Callers authenticate with their own
// identity token; the dispatcher verifies it.
type EmailHandler struct {
	dispatcher *notify.Dispatcher
	logger     *slog.Logger
}

// NewEmailHandler wires the dispatcher into the endpoint.
func NewEmailHandler(dispatcher *notify.Dispatcher, logger *slog.Logger) *EmailHandler {
	return &EmailHandler{dispatcher: dispatcher, logger: logger}
}

// SendRSVPConfirmation handles POST /api/email/rsvp-confirmation.
func (h *EmailHandler) SendRSVPConfirmation(w http.ResponseWriter, r *http.Request) {
	bearer, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	bearer = strings.TrimSpace(bearer)

	var req notify.Request
	if err := decodeJSONBody(w, r, &req); err != nil {
		if rejectErr := h.dispatcher.RejectMalformed(r.Context(), bearer, err); errors.Is(rejectErr, apperr.ErrAuthorization) {
			respondError(w, rejectErr, h.logger)
			return
		}
		writeJSONError(w, err)
		return
	}

	if err := h.dispatcher.SendRSVPConfirmation(r.Context(), bearer, req); err != nil {
		respondError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
