// Package guard decides whether a session may enter a member or admin route.
package guard

import (
	"net/url"
	"strings"

	"alumni/internal/session"
)

// Outcome is the state a guard settles in for one request.
type Outcome string

const (
	Loading                 Outcome = "loading"
	Admitted                Outcome = "admitted"
	RedirectLogin           Outcome = "redirect_login"
	RedirectPendingApproval Outcome = "redirect_pending_approval"
	RedirectHome            Outcome = "redirect_home"
)

// Redirect targets.
const (
	LoginPath           = "/login"
	PendingApprovalPath = "/pending-approval"
	HomePath            = "/"
)

// Decision is a guard result. ReturnTo carries the originally requested location so the
// client can come back to it after signing in; it is never stored on the session.
type Decision struct {
	Outcome  Outcome `json:"outcome"`
	Redirect string  `json:"redirect,omitempty"`
	ReturnTo string  `json:"returnTo,omitempty"`
}

// Allowed reports whether the request may proceed.
func (d Decision) Allowed() bool {
	return d.Outcome == Admitted
}

// Member admits signed-in admins and approved members.
func Member(state session.State, requested string) Decision {
	if state.Status == session.StatusResolving || state.Status == session.StatusFailed {
		return Decision{Outcome: Loading, ReturnTo: SafeReturnTo(requested)}
	}

	s := state.Session
	switch {
	case s == nil:
		return Decision{Outcome: RedirectLogin, Redirect: LoginPath, ReturnTo: SafeReturnTo(requested)}
	case !s.IsAdmin && !s.Profile.Approved:
		return Decision{Outcome: RedirectPendingApproval, Redirect: PendingApprovalPath, ReturnTo: SafeReturnTo(requested)}
	default:
		return Decision{Outcome: Admitted}
	}
}

// Admin admits sessions whose resolved role is admin.
func Admin(state session.State, requested string) Decision {
	if state.Status == session.StatusResolving || state.Status == session.StatusFailed {
		return Decision{Outcome: Loading, ReturnTo: SafeReturnTo(requested)}
	}
	if state.Session != nil && state.Session.IsAdmin {
		return Decision{Outcome: Admitted}
	}
	return Decision{Outcome: RedirectHome, Redirect: HomePath, ReturnTo: SafeReturnTo(requested)}
}

// SafeReturnTo returns requested when it is a same-origin relative path and HomePath otherwise.
func SafeReturnTo(requested string) string {
	if isRelativePath(requested) {
		return requested
	}
	return HomePath
}

func isRelativePath(path string) bool {
	if path == "" {
		return false
	}

	// Decode to catch encoded bypass attempts like /%2f%2f
	decoded, err := url.QueryUnescape(path)
	if err != nil {
		return false
	}

	// Must start with / but not // or /\ (browsers treat both as scheme-relative)
	if !strings.HasPrefix(decoded, "/") || strings.HasPrefix(decoded, "//") || strings.HasPrefix(decoded, "/\\") {
		return false
	}

	parsed, err := url.Parse(decoded)
	if err != nil {
		return false
	}
	return parsed.Scheme == "" && parsed.Host == ""
}
