// Package session resolves identity principals into role-aware application sessions.
package session

import (
	"time"

	"alumni/internal/identity"
	"alumni/internal/members"
)

// Status is the resolution state of one client session.
type Status string

const (
	StatusResolving Status = "resolving"
	StatusResolved  Status = "resolved"
	StatusFailed    Status = "failed"
)

// Session is the resolved view of a principal and its profile.
type Session struct {
	Principal identity.Principal `json:"principal"`
	Profile   members.Profile    `json:"profile"`
	IsAdmin   bool               `json:"isAdmin"`
}

// New is the only place a Session is assembled.
func New(principal identity.Principal, profile members.Profile) Session {
	return Session{
		Principal: principal,
		Profile:   profile,
		IsAdmin:   profile.Role == members.RoleAdmin,
	}
}

// Approved reports whether the member may use approval-gated features.
func (s Session) Approved() bool {
	return s.Profile.Approved
}

// State is what the publisher holds for one session id.
// A Resolved state with a nil Session means signed out.
type State struct {
	Status    Status    `json:"status"`
	Session   *Session  `json:"session"`
	Err       error     `json:"-"`
	Seq       uint64    `json:"seq"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SignedIn reports whether the state holds a resolved session.
func (s State) SignedIn() bool {
	return s.Status == StatusResolved && s.Session != nil
}
