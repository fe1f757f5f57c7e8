package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"alumni/internal/apperr"
	"alumni/internal/dashboard"
	"alumni/internal/members"
	"alumni/internal/notify"
	"alumni/internal/session"
)

// AdminHandler serves member administration, the audit trail and the dashboard.
type AdminHandler struct {
	members   *members.Service
	resolver  *session.Resolver
	dashboard *dashboard.Service
	emails    notify.LogRepository
	logger    *slog.Logger
}

// NewAdminHandler wires the admin endpoints.
func NewAdminHandler(svc *members.Service, resolver *session.Resolver, dash *dashboard.Service, emails notify.LogRepository, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{members: svc, resolver: resolver, dashboard: dash, emails: emails, logger: logger}
}

// List handles GET /api/admin/members?status=pending|approved|all&q=.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		profiles []members.Profile
		err      error
	)

	query := r.URL.Query()
	switch status := query.Get("status"); status {
	case "pending":
		profiles, err = h.members.Pending(r.Context())
	case "approved":
		approved := true
		profiles, err = h.members.All(r.Context(), members.ListOptions{Approved: &approved, Query: query.Get("q")})
	case "", "all":
		profiles, err = h.members.All(r.Context(), members.ListOptions{Query: query.Get("q")})
	default:
		respondError(w, apperr.Invalid("status", "must be pending, approved or all"), h.logger)
		return
	}
	if err != nil {
		respondError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": profiles})
}

// SetApproval handles PUT /api/admin/members/{id}/approval.
func (h *AdminHandler) SetApproval(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	var payload struct {
		Approved *bool `json:"approved"`
	}
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeJSONError(w, err)
		return
	}
	if payload.Approved == nil {
		respondError(w, apperr.Invalid("approved", "is required"), h.logger)
		return
	}

	profile, err := h.members.SetApproval(r.Context(), actor(r), id, *payload.Approved)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// SetRole handles PUT /api/admin/members/{id}/role.
func (h *AdminHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	var payload struct {
		Role members.Role `json:"role"`
	}
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeJSONError(w, err)
		return
	}

	profile, err := h.members.SetRole(r.Context(), actor(r), id, payload.Role)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// Delete handles DELETE /api/admin/members/{id}. The member's identity account goes with it.
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	if currentSession(r.Context()).Principal.ID == id {
		respondError(w, apperr.New(apperr.ErrValidation, "you cannot delete your own account"), h.logger)
		return
	}

	if err := h.resolver.RemoveMember(r.Context(), h.members, actor(r), id); err != nil {
		respondError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Export handles GET /api/admin/members/export and streams the directory as CSV.
func (h *AdminHandler) Export(w http.ResponseWriter, r *http.Request) {
	filename := "alumni-directory-" + time.Now().UTC().Format("2006-01-02") + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	if err := h.members.ExportDirectory(r.Context(), w); err != nil {
		h.logger.Error("directory export failed", "error", err)
		return
	}
}

// AuditLog handles GET /api/admin/audit?limit=.
func (h *AdminHandler) AuditLog(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(w, r, 100, h.logger)
	if !ok {
		return
	}

	entries, err := h.members.AuditLog(r.Context(), limit)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// EmailLogs handles GET /api/admin/emails?status=&limit=.
func (h *AdminHandler) EmailLogs(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(w, r, 100, h.logger)
	if !ok {
		return
	}

	filter := notify.LogFilter{Limit: limit}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := notify.Status(raw)
		if status != notify.StatusDelivered && status != notify.StatusFailed {
			respondError(w, apperr.Invalid("status", "must be delivered or failed"), h.logger)
			return
		}
		filter.Status = &status
	}

	logs, err := h.emails.List(r.Context(), filter)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"emails": logs})
}

// Dashboard handles GET /api/admin/dashboard.
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := h.dashboard.Summary(r.Context())
	if err != nil {
		respondError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// actor names the signed-in admin for the audit trail.
func actor(r *http.Request) string {
	sess := currentSession(r.Context())
	if sess == nil {
		return ""
	}
	return sess.Principal.Email
}

func limitParam(w http.ResponseWriter, r *http.Request, fallback int, logger *slog.Logger) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		respondError(w, apperr.Invalid("limit", "must be a positive number"), logger)
		return 0, false
	}
	return min(limit, 500), true
}
