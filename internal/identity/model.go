package identity

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sign-in method identifiers reported by SignInMethods.
const (
	MethodPassword = "password"
	MethodGoogle   = "google.com"
)

var (
	// ErrAccountNotFound is returned when no account exists for the email or id.
	ErrAccountNotFound = errors.New("identity: account not found")
	// ErrInvalidCredential is returned when a password or reset code does not match.
	ErrInvalidCredential = errors.New("identity: invalid credential")
	// ErrTooManyAttempts is returned while an email is locked out after repeated failures.
	ErrTooManyAttempts = errors.New("identity: too many failed attempts")
	// ErrEmailInUse is returned when creating an account for an email that already has one.
	ErrEmailInUse = errors.New("identity: email already in use")
	// ErrInvalidToken is returned when an identity token is malformed, expired, revoked or orphaned.
	ErrInvalidToken = errors.New("identity: invalid token")
	// ErrWeakPassword is returned when a password does not meet the minimum length.
	ErrWeakPassword = errors.New("identity: password must be at least 6 characters")
	// ErrInvalidEmail is returned when an email address is malformed.
	ErrInvalidEmail = errors.New("identity: invalid email address")
	// ErrUnverifiedEmail is returned when an external identity has not verified its email.
	ErrUnverifiedEmail = errors.New("identity: email not verified")
)

// Principal is the authenticated subject.
type Principal struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

// Token is a verified identity token bound to one client session.
type Token struct {
	Principal Principal
	SessionID string
	Raw       string
	ExpiresAt time.Time
}

// Change is emitted on every identity state change. A nil Principal means signed out.
// An empty SessionID addresses every session of PrincipalID.
type Change struct {
	SessionID   string
	PrincipalID uuid.UUID
	Principal   *Principal
}

// Account is the stored credential record behind a Principal.
type Account struct {
	ID            uuid.UUID
	Email         string
	PasswordHash  string
	GoogleSubject string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastSignInAt  *time.Time
}

// Principal returns the narrow identity view of the account.
func (a Account) Principal() Principal {
	return Principal{ID: a.ID, Email: a.Email}
}

// Methods lists the sign-in methods linked to the account.
func (a Account) Methods() []string {
	methods := make([]string, 0, 2)
	if a.PasswordHash != "" {
		methods = append(methods, MethodPassword)
	}
	if a.GoogleSubject != "" {
		methods = append(methods, MethodGoogle)
	}
	return methods
}

// GoogleClaims contains the relevant claims from a Google ID token.
type GoogleClaims struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}
