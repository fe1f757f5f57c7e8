package http

import (
	"net/http"

	"alumni/internal/guard"
)

// Guard handles GET /api/guard?kind=member|admin&path=. It reports what the route guard
// decides for the caller's current session without enforcing it.
func Guard(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	state := sessionFromContext(r.Context()).State
	requested := query.Get("path")

	var decision guard.Decision
	switch query.Get("kind") {
	case "", "member":
		decision = guard.Member(state, requested)
	case "admin":
		decision = guard.Admin(state, requested)
	default:
		writeError(w, http.StatusBadRequest, "kind must be member or admin")
		return
	}
	writeJSON(w, http.StatusOK, decision)
}
