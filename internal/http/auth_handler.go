package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"alumni/internal/members"
	"alumni/internal/session"
)

const sessionCookieName = "alumni_session"

// AuthHandler exposes sign-up, sign-in and password management.
type AuthHandler struct {
	resolver     *session.Resolver
	logger       *slog.Logger
	secureCookie bool
}

// NewAuthHandler wires the resolver into the auth endpoints.
func NewAuthHandler(resolver *session.Resolver, env string, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		resolver:     resolver,
		logger:       logger,
		secureCookie: !strings.EqualFold(env, "development"),
	}
}

type sessionResponse struct {
	Session   *session.Session `json:"session"`
	Token     string           `json:"token,omitempty"`
	ExpiresAt *time.Time       `json:"expiresAt,omitempty"`
}

// optionalInt distinguishes an absent JSON field from an explicit null.
type optionalInt struct {
	Set   bool
	Value *int
}

func (o *optionalInt) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

type profileRequest struct {
	FirstName      *string     `json:"firstName"`
	LastName       *string     `json:"lastName"`
	Phone          *string     `json:"phone"`
	GraduationYear optionalInt `json:"graduationYear"`
	Department     *string     `json:"department"`
	Occupation     *string     `json:"occupation"`
	Company        *string     `json:"company"`
	City           *string     `json:"city"`
	Bio            *string     `json:"bio"`
	PhotoURL       *string     `json:"photoUrl"`
}

func (p profileRequest) fields() members.ProfileFields {
	fields := members.ProfileFields{
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		Phone:      p.Phone,
		Department: p.Department,
		Occupation: p.Occupation,
		Company:    p.Company,
		City:       p.City,
		Bio:        p.Bio,
		PhotoURL:   p.PhotoURL,
	}
	if p.GraduationYear.Set {
		year := p.GraduationYear.Value
		fields.GraduationYear = &year
	}
	return fields
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email           string `json:"email"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirmPassword"`
		profileRequest
	}
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeJSONError(w, err)
		return
	}

	sess, token, err := h.resolver.Register(r.Context(), session.Registration{
		Email:           payload.Email,
		Password:        payload.Password,
		ConfirmPassword: payload.ConfirmPassword,
		Profile:         payload.fields(),
	})
	if err != nil {
		respondError(w, err, h.logger)
		return
	}

	h.logger.Info("member registered", "principal_id", token.Principal.ID)
	http.SetCookie(w, h.sessionCookie(token.Raw, time.Until(token.ExpiresAt)))
	writeJSON(w, http.StatusCreated, sessionResponse{Session: &sess, Token: token.Raw, ExpiresAt: &token.ExpiresAt})
}

// Login handles POST /api/auth/login. With adminMode set only admins may sign in.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		AdminMode bool   `json:"adminMode"`
	}
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeJSONError(w, err)
		return
	}

	sess, token, err := h.resolver.Login(r.Context(), payload.Email, payload.Password, payload.AdminMode)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}

	http.SetCookie(w, h.sessionCookie(token.Raw, time.Until(token.ExpiresAt)))
	writeJSON(w, http.StatusOK, sessionResponse{Session: &sess, Token: token.Raw, ExpiresAt: &token.ExpiresAt})
}

// Logout handles POST /api/auth/logout. It always clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	rs := sessionFromContext(r.Context())
	if rs.Token.SessionID != "" {
		if err := h.resolver.Logout(r.Context(), rs.Token); err != nil {
			respondError(w, err, h.logger)
			return
		}
	}

	clearCookie := h.sessionCookie("", 0)
	clearCookie.MaxAge = -1
	clearCookie.Expires = time.Unix(0, 0)
	http.SetCookie(w, clearCookie)
	w.WriteHeader(http.StatusNoContent)
}

// Session handles GET /api/auth/session and reports the caller's published state.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	state := sessionFromContext(r.Context()).State
	writeJSON(w, http.StatusOK, state)
}

// ChangePassword handles PUT /api/auth/password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeJSONError(w, err)
		return
	}

	sess := currentSession(r.Context())
	if err := h.resolver.ChangePassword(r.Context(), sess.Principal.ID, payload.CurrentPassword, payload.NewPassword); err != nil {
		respondError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RequestPasswordReset handles POST /api/auth/password-reset.
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
	}
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeJSONError(w, err)
		return
	}

	if err := h.resolver.SendPasswordReset(r.Context(), payload.Email); err != nil {
		respondError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// ConfirmPasswordReset handles POST /api/auth/password-reset/confirm.
func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Code     string `json:"code"`
		Password string `json:"password"`
	}
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeJSONError(w, err)
		return
	}

	if err := h.resolver.ConfirmPasswordReset(r.Context(), payload.Email, payload.Code, payload.Password); err != nil {
		respondError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SignInMethods handles GET /api/auth/methods?email=.
func (h *AuthHandler) SignInMethods(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	methods, err := h.resolver.SignInMethods(r.Context(), email)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"methods": methods})
}

func (h *AuthHandler) sessionCookie(value string, ttl time.Duration) *http.Cookie {
	return newSessionCookie(value, ttl, h.secureCookie)
}

func newSessionCookie(value string, ttl time.Duration, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
		MaxAge:   int(ttl.Seconds()),
		Expires:  time.Now().Add(ttl),
	}
}
