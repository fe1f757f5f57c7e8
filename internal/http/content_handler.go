package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"alumni/internal/apperr"
	"alumni/internal/content"
)

// ContentHandler serves announcements, blog posts, the hall of fame and business listings.
type ContentHandler struct {
	content *content.Service
	logger  *slog.Logger
}

// NewContentHandler wires the content service into HTTP handlers.
func NewContentHandler(svc *content.Service, logger *slog.Logger) *ContentHandler {
	return &ContentHandler{content: svc, logger: logger}
}

// List handles GET /api/content/{kind}?limit=.
func (h *ContentHandler) List(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kindParam(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(w, apperr.Invalid("limit", "must be a positive number"), h.logger)
			return
		}
		limit = parsed
	}

	entries, err := h.content.List(r.Context(), viewerOf(r), kind, limit)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{kind.Collection(): entries})
}

// Get handles GET /api/content/{kind}/{id}.
func (h *ContentHandler) Get(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kindParam(w, r)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	entry, err := h.content.Get(r.Context(), viewerOf(r), id)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}
	if entry.Kind != kind {
		respondError(w, content.ErrNotFound, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// Create handles POST /api/content/{kind}.
func (h *ContentHandler) Create(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kindParam(w, r)
	if !ok {
		return
	}

	var input content.Input
	if err := decodeJSONBody(w, r, &input); err != nil {
		writeJSONError(w, err)
		return
	}

	entry, err := h.content.Create(r.Context(), viewerOf(r), kind, input)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// Update handles PUT /api/content/{kind}/{id}.
func (h *ContentHandler) Update(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.kindParam(w, r); !ok {
		return
	}
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	var input content.Input
	if err := decodeJSONBody(w, r, &input); err != nil {
		writeJSONError(w, err)
		return
	}

	entry, err := h.content.Update(r.Context(), viewerOf(r), id, input)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// Delete handles DELETE /api/content/{kind}/{id}.
func (h *ContentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.kindParam(w, r); !ok {
		return
	}
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.content.Delete(r.Context(), viewerOf(r), id); err != nil {
		respondError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ContentHandler) kindParam(w http.ResponseWriter, r *http.Request) (content.Kind, bool) {
	kind, ok := content.ParseKind(chi.URLParam(r, "kind"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown content collection")
		return "", false
	}
	return kind, true
}

// viewerOf describes the signed-in caller to the content service.
func viewerOf(r *http.Request) content.Author {
	sess := currentSession(r.Context())
	if sess == nil {
		return content.Author{}
	}
	return content.Author{
		ID:       sess.Principal.ID,
		Admin:    sess.IsAdmin,
		Approved: sess.IsAdmin || sess.Approved(),
	}
}
