package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"alumni/internal/apperr"
	"alumni/internal/members"
	"alumni/internal/session"
)

const defaultDirectoryLimit = 200

// MemberHandler serves the member directory and the caller's own profile.
type MemberHandler struct {
	members  *members.Service
	resolver *session.Resolver
	logger   *slog.Logger
}

// NewMemberHandler wires the profile service into HTTP handlers.
func NewMemberHandler(svc *members.Service, resolver *session.Resolver, logger *slog.Logger) *MemberHandler {
	return &MemberHandler{members: svc, resolver: resolver, logger: logger}
}

// Directory handles GET /api/members?q=&graduationYear=&limit=.
func (h *MemberHandler) Directory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	opts := members.DirectoryOptions{
		Query: strings.TrimSpace(query.Get("q")),
		Limit: defaultDirectoryLimit,
	}

	if raw := query.Get("graduationYear"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, apperr.Invalid("graduationYear", "must be a number"), h.logger)
			return
		}
		opts.GraduationYear = &year
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			respondError(w, apperr.Invalid("limit", "must be a positive number"), h.logger)
			return
		}
		opts.Limit = min(limit, defaultDirectoryLimit)
	}

	profiles, err := h.members.Directory(r.Context(), opts)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": profiles})
}

// Get handles GET /api/members/{id}. Unapproved members are hidden from everyone but admins.
func (h *MemberHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	profile, err := h.members.Get(r.Context(), id)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}

	viewer := currentSession(r.Context())
	if !profile.Approved && !profile.IsAdmin() && !viewer.IsAdmin && viewer.Principal.ID != id {
		respondError(w, members.ErrNotFound, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// Connect handles POST /api/members/{id}/connection.
func (h *MemberHandler) Connect(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	sess := currentSession(r.Context())
	if err := h.members.Connect(r.Context(), sess.Principal.ID, id); err != nil {
		respondError(w, err, h.logger)
		return
	}
	h.respondWithOwnProfile(w, r, sess.Principal.ID)
}

// Disconnect handles DELETE /api/members/{id}/connection.
func (h *MemberHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	sess := currentSession(r.Context())
	if err := h.members.Disconnect(r.Context(), sess.Principal.ID, id); err != nil {
		respondError(w, err, h.logger)
		return
	}
	h.respondWithOwnProfile(w, r, sess.Principal.ID)
}

func (h *MemberHandler) respondWithOwnProfile(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	profile, err := h.members.Get(r.Context(), id)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// Profile handles GET /api/profile and returns the caller's published session profile.
func (h *MemberHandler) Profile(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r.Context())
	writeJSON(w, http.StatusOK, sess.Profile)
}

// UpdateProfile handles PUT /api/profile. Every live session of the caller sees the change.
func (h *MemberHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var payload profileRequest
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeJSONError(w, err)
		return
	}

	token := sessionFromContext(r.Context()).Token
	sess, err := h.resolver.UpdateProfile(r.Context(), token.SessionID, payload.fields())
	if err != nil {
		respondError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}
