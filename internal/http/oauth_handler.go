package http

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"alumni/internal/guard"
	"alumni/internal/identity"
	"alumni/internal/session"
)

// oauthStatePayload is the OAuth state: a nonce mirrored in a cookie plus the location to return to.
type oauthStatePayload struct {
	State      string `json:"s"`
	RedirectTo string `json:"r,omitempty"`
}

const (
	oauthStateCookieName = "alumni_oauth_state"
	oauthStateCookieTTL  = 10 * time.Minute
)

type googleAuthenticator interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*identity.GoogleClaims, error)
}

type googleSignIn interface {
	SignInWithGoogle(ctx context.Context, claims *identity.GoogleClaims) (identity.Token, error)
}

// OAuthHandler signs members in with Google and adopts the resulting identity token as a session.
type OAuthHandler struct {
	google       googleAuthenticator
	accounts     googleSignIn
	resolver     *session.Resolver
	logger       *slog.Logger
	secureCookie bool
	frontendURL  string
}

func NewOAuthHandler(google googleAuthenticator, accounts googleSignIn, resolver *session.Resolver, frontendURL, env string, logger *slog.Logger) *OAuthHandler {
	return &OAuthHandler{
		google:       google,
		accounts:     accounts,
		resolver:     resolver,
		logger:       logger,
		secureCookie: !strings.EqualFold(env, "development"),
		frontendURL:  strings.TrimSuffix(frontendURL, "/"),
	}
}

// InitiateGoogle handles GET /api/auth/google. The requested location travels inside the
// OAuth state so the callback can return the member to it.
func (h *OAuthHandler) InitiateGoogle(w http.ResponseWriter, r *http.Request) {
	nonce, err := identity.GenerateState()
	if err != nil {
		h.logger.Error("generate oauth state", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	payload := oauthStatePayload{State: nonce}
	if requested := r.URL.Query().Get("redirectTo"); requested != "" {
		payload.RedirectTo = guard.SafeReturnTo(requested)
	}
	encoded, err := payload.encode()
	if err != nil {
		h.logger.Error("encode oauth state", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	http.SetCookie(w, h.stateCookie(nonce, int(oauthStateCookieTTL.Seconds())))
	http.Redirect(w, r, h.google.AuthURL(encoded), http.StatusTemporaryRedirect)
}

// CallbackGoogle handles GET /api/auth/google/callback. A successful callback leaves a
// published session behind and sends the browser wherever the member guard allows.
func (h *OAuthHandler) CallbackGoogle(w http.ResponseWriter, r *http.Request) {
	payload, failure := h.readState(r)
	// The state cookie is single use whatever the outcome.
	http.SetCookie(w, h.stateCookie("", -1))
	if failure != nil {
		h.fail(w, r, failure)
		return
	}

	query := r.URL.Query()
	if providerErr := query.Get("error"); providerErr != "" {
		h.fail(w, r, &callbackFailure{code: providerErr, message: query.Get("error_description"), level: slog.LevelWarn})
		return
	}

	token, sess, failure := h.signIn(r.Context(), query.Get("code"))
	if failure != nil {
		h.fail(w, r, failure)
		return
	}

	http.SetCookie(w, newSessionCookie(token.Raw, time.Until(token.ExpiresAt), h.secureCookie))
	h.logger.Info("google sign-in", "principal_id", token.Principal.ID, "approved", sess.Approved())

	requested := guard.SafeReturnTo(payload.RedirectTo)
	target := requested
	if decision := guard.Member(session.State{Status: session.StatusResolved, Session: &sess}, requested); !decision.Allowed() {
		target = decision.Redirect
	}
	http.Redirect(w, r, h.frontendURL+target, http.StatusTemporaryRedirect)
}

// callbackFailure is a callback step that ends on the login page with an error code.
type callbackFailure struct {
	code    string
	message string
	level   slog.Level
	err     error
}

var errInvalidState = &callbackFailure{code: "invalid_request", message: "Invalid state. Please try again.", level: slog.LevelWarn}

func (h *OAuthHandler) readState(r *http.Request) (oauthStatePayload, *callbackFailure) {
	cookie, err := r.Cookie(oauthStateCookieName)
	if err != nil {
		return oauthStatePayload{}, &callbackFailure{code: "invalid_request", message: "Session expired. Please try again.", level: slog.LevelWarn}
	}
	payload, err := decodeOAuthState(r.URL.Query().Get("state"))
	if err != nil {
		return oauthStatePayload{}, errInvalidState
	}
	if subtle.ConstantTimeCompare([]byte(payload.State), []byte(cookie.Value)) != 1 {
		return oauthStatePayload{}, errInvalidState
	}
	return payload, nil
}

func (h *OAuthHandler) signIn(ctx context.Context, code string) (identity.Token, session.Session, *callbackFailure) {
	if code == "" {
		return identity.Token{}, session.Session{}, &callbackFailure{code: "invalid_request", message: "Missing authorization code.", level: slog.LevelWarn}
	}

	claims, err := h.google.Exchange(ctx, code)
	if err != nil {
		return identity.Token{}, session.Session{}, &callbackFailure{code: "exchange_error", message: "Failed to complete authentication.", level: slog.LevelError, err: err}
	}

	token, err := h.accounts.SignInWithGoogle(ctx, claims)
	switch {
	case errors.Is(err, identity.ErrUnverifiedEmail):
		return identity.Token{}, session.Session{}, &callbackFailure{code: "email_not_verified", message: "Please verify your Google email address.", level: slog.LevelWarn, err: err}
	case err != nil:
		return identity.Token{}, session.Session{}, &callbackFailure{code: "internal_error", message: "Failed to sign in.", level: slog.LevelError, err: err}
	}

	sess, err := h.resolver.Adopt(ctx, token)
	if err != nil {
		return identity.Token{}, session.Session{}, &callbackFailure{code: "profile_unavailable", message: "Your profile could not be loaded. Please try again.", level: slog.LevelError, err: err}
	}
	return token, sess, nil
}

func (h *OAuthHandler) fail(w http.ResponseWriter, r *http.Request, f *callbackFailure) {
	h.logger.Log(r.Context(), f.level, "google callback rejected", "code", f.code, "error", f.err)

	target := h.frontendURL + guard.LoginPath + "?error=" + url.QueryEscape(f.code)
	if f.message != "" {
		target += "&message=" + url.QueryEscape(f.message)
	}
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}

func (h *OAuthHandler) stateCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    value,
		Path:     "/api/auth",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	}
}

// encode packs the payload as base64 JSON so it survives as a single query value.
func (p oauthStatePayload) encode() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

func decodeOAuthState(raw string) (oauthStatePayload, error) {
	var payload oauthStatePayload
	data, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return payload, err
	}
	err = json.Unmarshal(data, &payload)
	return payload, err
}
