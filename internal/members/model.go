package members

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a profile cannot be located.
var ErrNotFound = errors.New("profile not found")

// ErrConnection is returned when a connection request is not allowed.
var ErrConnection = errors.New("connection not allowed")

// Role is the coarse privilege level stored on a profile.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Profile is the application-owned record keyed by principal id.
type Profile struct {
	ID             uuid.UUID   `json:"id"`
	Email          string      `json:"email"`
	Role           Role        `json:"role"`
	Approved       bool        `json:"approved"`
	FirstName      string      `json:"firstName"`
	LastName       string      `json:"lastName"`
	Phone          string      `json:"phone"`
	GraduationYear *int        `json:"graduationYear,omitempty"`
	Department     string      `json:"department"`
	Occupation     string      `json:"occupation"`
	Company        string      `json:"company"`
	City           string      `json:"city"`
	Bio            string      `json:"bio"`
	PhotoURL       string      `json:"photoUrl"`
	Connections    []uuid.UUID `json:"connections"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// IsAdmin reports whether the profile carries the admin role.
func (p Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// DisplayName joins the name fields, falling back to the email address.
func (p Profile) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
	if name == "" {
		return p.Email
	}
	return name
}

// HasConnection reports whether other is in the profile's connection list.
func (p Profile) HasConnection(other uuid.UUID) bool {
	for _, id := range p.Connections {
		if id == other {
			return true
		}
	}
	return false
}

// DefaultProfile is the profile synthesized for an identity that has none.
func DefaultProfile(id uuid.UUID, email string, now time.Time) Profile {
	return Profile{
		ID:          id,
		Email:       email,
		Role:        RoleUser,
		Approved:    false,
		Connections: []uuid.UUID{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// ProfileFields captures the self-service editable fields. Nil pointers are left unchanged.
type ProfileFields struct {
	FirstName      *string
	LastName       *string
	Phone          *string
	GraduationYear **int
	Department     *string
	Occupation     *string
	Company        *string
	City           *string
	Bio            *string
	PhotoURL       *string
}

// Apply copies the set fields onto p.
func (f ProfileFields) Apply(p *Profile) {
	setString(&p.FirstName, f.FirstName)
	setString(&p.LastName, f.LastName)
	setString(&p.Phone, f.Phone)
	setString(&p.Department, f.Department)
	setString(&p.Occupation, f.Occupation)
	setString(&p.Company, f.Company)
	setString(&p.City, f.City)
	setString(&p.Bio, f.Bio)
	setString(&p.PhotoURL, f.PhotoURL)
	if f.GraduationYear != nil {
		if *f.GraduationYear == nil {
			p.GraduationYear = nil
		} else {
			year := **f.GraduationYear
			p.GraduationYear = &year
		}
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

// Standing carries the admin-only fields.
type Standing struct {
	Role     *Role
	Approved *bool
}

// Apply copies the set standing fields onto p.
func (s Standing) Apply(p *Profile) {
	if s.Role != nil {
		p.Role = *s.Role
	}
	if s.Approved != nil {
		p.Approved = *s.Approved
	}
}

// ListOptions describes filters for listing profiles.
type ListOptions struct {
	Approved       *bool
	Role           *Role
	GraduationYear *int
	Query          string
	Limit          int
}

// Counts aggregates profile totals for the dashboard.
type Counts struct {
	Total    int `json:"total"`
	Approved int `json:"approved"`
	Pending  int `json:"pending"`
	Admins   int `json:"admins"`
}

// AuditEntry records an administrative action against a profile.
type AuditEntry struct {
	ID        uuid.UUID `json:"id"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	SubjectID uuid.UUID `json:"subjectId"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"createdAt"`
}

// Audit actions.
const (
	ActionApprove   = "approve"
	ActionUnapprove = "unapprove"
	ActionSetRole   = "set_role"
	ActionDelete    = "delete"
	ActionProvision = "provision_admin"
)
