package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"alumni/internal/apperr"
	"alumni/internal/guard"
	"alumni/internal/identity"
	"alumni/internal/session"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func newSlogMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)
			duration := time.Since(start)
			logger.Info("http request", "method", r.Method, "path", r.URL.Path, "status", recorder.status, "duration", duration.String())
		})
	}
}

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const sessionContextKey contextKey = "session"

// requestSession is what the session middleware learned about the caller.
type requestSession struct {
	Token identity.Token
	State session.State
}

var signedOut = requestSession{State: session.State{Status: session.StatusResolved}}

// sessionFromContext returns the caller's published session state. Requests without a
// valid token are reported as resolved and signed out.
func sessionFromContext(ctx context.Context) requestSession {
	rs, ok := ctx.Value(sessionContextKey).(requestSession)
	if !ok {
		return signedOut
	}
	return rs
}

// currentSession returns the signed-in session, or nil.
func currentSession(ctx context.Context) *session.Session {
	return sessionFromContext(ctx).State.Session
}

// tokenFromRequest reads the identity token from the session cookie or a bearer header.
func tokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if raw, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(raw)
		}
	}
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func newSessionMiddleware(resolver *session.Resolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := tokenFromRequest(r)
			if raw == "" {
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionContextKey, signedOut)))
				return
			}

			token, state, err := resolver.Current(r.Context(), raw)
			if err != nil {
				if !errors.Is(err, apperr.ErrAuthorization) {
					logger.Error("session lookup failed", "error", err)
					respondError(w, err, logger)
					return
				}
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionContextKey, signedOut)))
				return
			}

			rs := requestSession{Token: token, State: state}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionContextKey, rs)))
		})
	}
}

type guardResponse struct {
	Error    string        `json:"error"`
	Code     string        `json:"code"`
	Outcome  guard.Outcome `json:"outcome"`
	Redirect string        `json:"redirect,omitempty"`
	ReturnTo string        `json:"returnTo,omitempty"`
}

// requestedLocation is the client route the caller was trying to reach.
func requestedLocation(r *http.Request) string {
	if location := r.Header.Get("X-Return-To"); location != "" {
		return location
	}
	return r.URL.RequestURI()
}

func newGuardMiddleware(check func(session.State, string) guard.Decision) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := sessionFromContext(r.Context()).State
			decision := check(state, requestedLocation(r))
			if decision.Allowed() {
				next.ServeHTTP(w, r)
				return
			}
			writeGuardDecision(w, state, decision)
		})
	}
}

// requireSignedIn admits any signed-in session, approved or not.
func requireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state := sessionFromContext(r.Context()).State
		if state.SignedIn() {
			next.ServeHTTP(w, r)
			return
		}
		decision := guard.Member(state, requestedLocation(r))
		writeGuardDecision(w, state, decision)
	})
}

func writeGuardDecision(w http.ResponseWriter, state session.State, decision guard.Decision) {
	resp := guardResponse{Outcome: decision.Outcome, Redirect: decision.Redirect, ReturnTo: decision.ReturnTo}
	switch decision.Outcome {
	case guard.Loading:
		w.Header().Set("Retry-After", "1")
		resp.Error, resp.Code = "session is still resolving", "SESSION_LOADING"
		if state.Status == session.StatusFailed {
			resp.Error, resp.Code = "profile store unavailable", apperr.Code(apperr.ErrProfileWrite)
		}
		writeJSON(w, http.StatusServiceUnavailable, resp)
	case guard.RedirectLogin:
		w.Header().Set("WWW-Authenticate", "Bearer")
		resp.Error, resp.Code = "authentication required", "AUTHENTICATION_REQUIRED"
		writeJSON(w, http.StatusUnauthorized, resp)
	case guard.RedirectPendingApproval:
		resp.Error, resp.Code = "membership pending approval", "PENDING_APPROVAL"
		writeJSON(w, http.StatusForbidden, resp)
	default:
		resp.Error, resp.Code = "admin privileges required", apperr.Code(apperr.ErrAuthorization)
		writeJSON(w, http.StatusForbidden, resp)
	}
}

func newSecurityHeadersMiddleware(environment string) func(http.Handler) http.Handler {
	isDev := strings.EqualFold(environment, "development")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("X-XSS-Protection", "1; mode=block")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("Permissions-Policy", "geolocation=(), camera=(), microphone=()")

			if !isDev {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}
