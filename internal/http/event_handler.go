package http

import (
	"log/slog"
	"net/http"

	"alumni/internal/events"
	"alumni/internal/notify"
)

// EventHandler serves events, RSVPs and RSVP confirmations.
type EventHandler struct {
	events    *events.Service
	confirmer *notify.Confirmer
	logger    *slog.Logger
}

// NewEventHandler wires the events service and the confirmation email caller.
func NewEventHandler(svc *events.Service, confirmer *notify.Confirmer, logger *slog.Logger) *EventHandler {
	return &EventHandler{events: svc, confirmer: confirmer, logger: logger}
}

type rsvpResponse struct {
	RSVP  events.RSVP   `json:"rsvp"`
	Event events.Event  `json:"event"`
	Email notify.Result `json:"email"`
}

// List handles GET /api/events?upcoming=true.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		list []events.Event
		err  error
	)
	if r.URL.Query().Get("upcoming") == "true" {
		list, err = h.events.Upcoming(r.Context(), 0)
	} else {
		list, err = h.events.List(r.Context())
	}
	if err != nil {
		respondError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": list})
}

// Get handles GET /api/events/{id}.
func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	event, err := h.events.Get(r.Context(), id)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// Create handles POST /api/events.
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input events.Input
	if err := decodeJSONBody(w, r, &input); err != nil {
		writeJSONError(w, err)
		return
	}

	event, err := h.events.Create(r.Context(), currentSession(r.Context()).Principal.ID, input)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// Update handles PUT /api/events/{id}.
func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	var input events.Input
	if err := decodeJSONBody(w, r, &input); err != nil {
		writeJSONError(w, err)
		return
	}

	event, err := h.events.Update(r.Context(), id, input)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// Delete handles DELETE /api/events/{id}.
func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.events.Delete(r.Context(), id); err != nil {
		respondError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Attendees handles GET /api/events/{id}/attendees.
func (h *EventHandler) Attendees(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	rsvps, err := h.events.Attendees(r.Context(), id)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"attendees": rsvps})
}

// RSVP handles POST /api/events/{id}/rsvp. The RSVP is kept even when the confirmation
// email fails; the email outcome is reported alongside it.
func (h *EventHandler) RSVP(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	rsvp, event, err := h.events.RSVP(r.Context(), attendeeOf(r), id)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}

	result := h.confirm(r, event)
	writeJSON(w, http.StatusCreated, rsvpResponse{RSVP: rsvp, Event: event, Email: result})
}

// ResendConfirmation handles POST /api/events/{id}/rsvp/resend.
func (h *EventHandler) ResendConfirmation(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	rsvp, event, err := h.events.ConfirmedRSVP(r.Context(), attendeeOf(r), id)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}

	result := h.confirm(r, event)
	writeJSON(w, http.StatusOK, rsvpResponse{RSVP: rsvp, Event: event, Email: result})
}

// Cancel handles DELETE /api/events/{id}/rsvp.
func (h *EventHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	rsvp, err := h.events.Cancel(r.Context(), attendeeOf(r), id)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, rsvp)
}

// Bookings handles GET /api/rsvps.
func (h *EventHandler) Bookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.events.Bookings(r.Context(), currentSession(r.Context()).Principal.ID)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rsvps": bookings})
}

func (h *EventHandler) confirm(r *http.Request, event events.Event) notify.Result {
	rs := sessionFromContext(r.Context())
	return h.confirmer.Confirm(r.Context(), rs.Token, notify.Request{
		To:            rs.State.Session.Principal.Email,
		EventID:       event.ID.String(),
		EventName:     event.Name,
		EventDate:     event.DateString(),
		EventTime:     event.Time,
		EventLocation: event.Location,
	})
}

func attendeeOf(r *http.Request) events.Attendee {
	sess := currentSession(r.Context())
	return events.Attendee{
		ProfileID: sess.Principal.ID,
		Approved:  sess.IsAdmin || sess.Approved(),
	}
}
