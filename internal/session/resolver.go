package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"

	"alumni/internal/apperr"
	"alumni/internal/identity"
	"alumni/internal/members"
	"alumni/internal/platform/metrics"
)

// ProfileStore is the profile document surface the resolver depends on.
type ProfileStore interface {
	Get(ctx context.Context, id uuid.UUID) (members.Profile, error)
	Create(ctx context.Context, profile members.Profile) error
	EnsureDefault(ctx context.Context, id uuid.UUID, email string) (bool, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields members.ProfileFields) (members.Profile, error)
}

// MemberRemover deletes a profile document on behalf of an admin.
type MemberRemover interface {
	Delete(ctx context.Context, actor string, id uuid.UUID) error
}

// Resolver maps identity principals onto published sessions.
type Resolver struct {
	identity  identity.Provider
	profiles  ProfileStore
	publisher *Publisher
	logger    *slog.Logger
	recorder  metrics.Recorder
	now       func() time.Time

	pruneEvery  time.Duration
	pruneRetain time.Duration

	// registering counts sign-ups in flight per email. Their change events are owned by
	// Register, which publishes or tombstones the new session id itself.
	regMu       sync.Mutex
	registering map[string]int
}

// NewResolver wires the resolver. It is constructed once at application root.
func NewResolver(provider identity.Provider, profiles ProfileStore, publisher *Publisher, logger *slog.Logger, recorder metrics.Recorder) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Resolver{
		identity:    provider,
		profiles:    profiles,
		publisher:   publisher,
		logger:      logger,
		recorder:    recorder,
		now:         func() time.Time { return time.Now().UTC() },
		pruneEvery:  5 * time.Minute,
		pruneRetain: 10 * time.Minute,
		registering: make(map[string]int),
	}
}

// Publisher exposes the published session states.
func (r *Resolver) Publisher() *Publisher {
	return r.publisher
}

// ResolveOrCreate reads the principal's profile, synthesizing the default one when it is missing.
func (r *Resolver) ResolveOrCreate(ctx context.Context, principal identity.Principal) (Session, error) {
	profile, err := r.profiles.Get(ctx, principal.ID)
	if err == nil {
		return New(principal, profile), nil
	}
	if !errors.Is(err, members.ErrNotFound) {
		return Session{}, profileWriteError(err)
	}

	if _, err := r.profiles.EnsureDefault(ctx, principal.ID, principal.Email); err != nil {
		r.logger.Error("self-heal profile write failed", "principal_id", principal.ID, "error", err)
		return Session{}, profileWriteError(err)
	}

	profile, err = r.profiles.Get(ctx, principal.ID)
	if err != nil {
		return Session{}, profileWriteError(err)
	}
	return New(principal, profile), nil
}

// resolve runs one tagged resolution attempt for sid and publishes its outcome.
func (r *Resolver) resolve(ctx context.Context, sid string, principal identity.Principal, expiresAt time.Time) (Session, error) {
	seq := r.publisher.Begin(sid, principal, expiresAt)

	session, err := r.ResolveOrCreate(ctx, principal)
	if err != nil {
		if r.publisher.Fail(sid, seq, err) {
			r.recorder.RecordResolution("failed")
		}
		return Session{}, err
	}

	if r.publisher.Publish(sid, seq, session) {
		r.recorder.RecordResolution("resolved")
	} else {
		r.logger.Debug("stale session resolution dropped", "session_id", sid, "seq", seq)
	}
	return session, nil
}

// HandleChange applies one identity change to the published sessions.
func (r *Resolver) HandleChange(ctx context.Context, change identity.Change) {
	switch {
	case change.Principal == nil && change.SessionID == "":
		for _, sid := range r.publisher.SignOutPrincipal(change.PrincipalID) {
			r.recorder.RecordResolution("signed_out")
			r.logger.Debug("session signed out", "session_id", sid)
		}
	case change.Principal == nil:
		r.publisher.SignOut(change.SessionID)
		r.recorder.RecordResolution("signed_out")
	default:
		if _, known := r.publisher.State(change.SessionID); known {
			return
		}
		if r.isRegistering(change.Principal.Email) {
			r.logger.Debug("change for sign-up in flight skipped", "session_id", change.SessionID)
			return
		}
		if _, err := r.resolve(ctx, change.SessionID, *change.Principal, time.Time{}); err != nil {
			r.logger.Error("session resolution failed", "session_id", change.SessionID, "error", err)
		}
	}
}

// Watch consumes the identity change stream until ctx is cancelled.
func (r *Resolver) Watch(ctx context.Context) {
	changes, cancel := r.identity.Subscribe()
	defer cancel()
	r.consume(ctx, changes)
}

func (r *Resolver) consume(ctx context.Context, changes <-chan identity.Change) {
	ticker := time.NewTicker(r.pruneEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			r.HandleChange(ctx, change)
		case <-ticker.C:
			if removed := r.publisher.Prune(r.pruneRetain); removed > 0 {
				r.logger.Debug("pruned session states", "removed", removed)
			}
		}
	}
}

// Login authenticates and publishes the session before returning it. With adminMode set a
// non-admin profile is rejected even though the credential was valid.
func (r *Resolver) Login(ctx context.Context, email, password string, adminMode bool) (Session, identity.Token, error) {
	token, err := r.identity.SignIn(ctx, email, password)
	if err != nil {
		return Session{}, identity.Token{}, Translate(err)
	}

	session, err := r.resolve(ctx, token.SessionID, token.Principal, token.ExpiresAt)
	if err != nil {
		return Session{}, identity.Token{}, err
	}

	if adminMode && !session.IsAdmin {
		if err := r.Logout(ctx, token); err != nil {
			r.logger.Warn("sign out after admin check failed", "principal_id", token.Principal.ID, "error", err)
		}
		return Session{}, identity.Token{}, errAdminRequired
	}
	return session, token, nil
}

// Adopt resolves and publishes a session for a token issued outside Login, such as Google sign-in.
func (r *Resolver) Adopt(ctx context.Context, token identity.Token) (Session, error) {
	return r.resolve(ctx, token.SessionID, token.Principal, token.ExpiresAt)
}

// Registration is the sign-up input. ConfirmPassword is checked and then discarded.
type Registration struct {
	Email           string
	Password        string
	ConfirmPassword string
	Profile         members.ProfileFields
}

func (reg Registration) validate() error {
	return validation.ValidateStruct(&reg,
		validation.Field(&reg.Email, validation.Required, is.EmailFormat),
		validation.Field(&reg.Password, validation.Required, validation.Length(6, 128)),
		validation.Field(&reg.ConfirmPassword, validation.Required, validation.In(reg.Password).Error("must match password")),
	)
}

// Register creates the identity account and its profile. If the profile cannot be written the
// new account is deleted before the error is returned.
func (r *Resolver) Register(ctx context.Context, reg Registration) (Session, identity.Token, error) {
	reg.Email = strings.ToLower(strings.TrimSpace(reg.Email))
	if err := reg.validate(); err != nil {
		return Session{}, identity.Token{}, apperr.Validation(renameRegistrationFields(err))
	}
	if err := members.ValidateFields(&reg.Profile, members.DefaultPhoneRegion, r.now()); err != nil {
		return Session{}, identity.Token{}, err
	}

	methods, err := r.identity.SignInMethods(ctx, reg.Email)
	if err != nil {
		return Session{}, identity.Token{}, Translate(err)
	}
	if len(methods) > 0 {
		return Session{}, identity.Token{}, apperr.New(apperr.ErrDuplicateAccount, "an account with this email already exists")
	}

	// Until the new session id is published or tombstoned below, the provider's change
	// event for it must not self-heal a profile behind Register's back.
	r.beginRegistration(reg.Email)
	defer r.endRegistration(reg.Email)

	token, err := r.identity.CreateAccount(ctx, reg.Email, reg.Password)
	if err != nil {
		return Session{}, identity.Token{}, Translate(err)
	}

	profile := members.DefaultProfile(token.Principal.ID, token.Principal.Email, r.now())
	reg.Profile.Apply(&profile)
	profile.Role = members.RoleUser
	profile.Approved = false

	if err := r.profiles.Create(ctx, profile); err != nil {
		if delErr := r.identity.DeleteAccount(ctx, token.Principal.ID); delErr != nil {
			r.logger.Error("rollback of new account failed", "principal_id", token.Principal.ID, "error", delErr)
		} else {
			r.logger.Warn("new account rolled back after profile write failure", "principal_id", token.Principal.ID)
		}
		r.publisher.SignOut(token.SessionID)
		r.publisher.SignOutPrincipal(token.Principal.ID)
		return Session{}, identity.Token{}, profileWriteError(err)
	}

	session := New(token.Principal, profile)
	seq := r.publisher.Begin(token.SessionID, token.Principal, token.ExpiresAt)
	r.publisher.Publish(token.SessionID, seq, session)
	r.recorder.RecordResolution("resolved")
	return session, token, nil
}

func (r *Resolver) beginRegistration(email string) {
	r.regMu.Lock()
	defer r.regMu.Unlock()
	r.registering[email]++
}

func (r *Resolver) endRegistration(email string) {
	r.regMu.Lock()
	defer r.regMu.Unlock()
	if r.registering[email] <= 1 {
		delete(r.registering, email)
		return
	}
	r.registering[email]--
}

func (r *Resolver) isRegistering(email string) bool {
	r.regMu.Lock()
	defer r.regMu.Unlock()
	return r.registering[strings.ToLower(strings.TrimSpace(email))] > 0
}

// Logout ends the provider session and publishes a nil session for it.
func (r *Resolver) Logout(ctx context.Context, token identity.Token) error {
	if err := r.identity.SignOut(ctx, token); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	r.publisher.SignOut(token.SessionID)
	return nil
}

// UpdateProfile writes self-service fields and patches every published session of the principal
// in place. Role and approval in the published sessions are left as they were. A session that is
// being re-resolved still carries its previous Session and may edit.
func (r *Resolver) UpdateProfile(ctx context.Context, sid string, fields members.ProfileFields) (Session, error) {
	state, ok := r.publisher.State(sid)
	if !ok || state.Session == nil {
		return Session{}, errSignInRequired
	}
	principalID := state.Session.Principal.ID

	written, err := r.profiles.UpdateFields(ctx, principalID, fields)
	if err != nil {
		if errors.Is(err, apperr.ErrValidation) {
			return Session{}, err
		}
		return Session{}, profileWriteError(err)
	}

	r.publisher.Patch(principalID, func(s *Session) {
		copySelfService(&s.Profile, written)
	})

	state, _ = r.publisher.State(sid)
	if state.Session == nil {
		return Session{}, errSignInRequired
	}
	return *state.Session, nil
}

// Refresh re-resolves every live session of principalID, typically after an admin edit.
// Failed sessions stay failed until the next identity change.
func (r *Resolver) Refresh(ctx context.Context, principalID uuid.UUID) {
	for _, sid := range r.publisher.SessionsOf(principalID) {
		state, ok := r.publisher.State(sid)
		if !ok || state.Status == StatusFailed {
			continue
		}
		principal, ok := r.publisher.Principal(sid)
		if !ok {
			continue
		}
		if _, err := r.resolve(ctx, sid, principal, time.Time{}); err != nil {
			r.logger.Error("session refresh failed", "session_id", sid, "error", err)
		}
	}
}

// Current verifies raw and returns the published state for its session, resolving on first sight.
func (r *Resolver) Current(ctx context.Context, raw string) (identity.Token, State, error) {
	token, err := r.identity.Verify(ctx, raw)
	if err != nil {
		return identity.Token{}, State{}, Translate(err)
	}

	if state, ok := r.publisher.State(token.SessionID); ok {
		return token, state, nil
	}

	if _, err := r.resolve(ctx, token.SessionID, token.Principal, token.ExpiresAt); err != nil {
		r.logger.Error("session resolution failed", "session_id", token.SessionID, "error", err)
	}
	state, _ := r.publisher.State(token.SessionID)
	return token, state, nil
}

// RemoveMember deletes the member's profile and identity account and signs out its sessions.
func (r *Resolver) RemoveMember(ctx context.Context, remover MemberRemover, actor string, id uuid.UUID) error {
	if err := remover.Delete(ctx, actor, id); err != nil {
		return Translate(err)
	}
	if err := r.identity.DeleteAccount(ctx, id); err != nil && !errors.Is(err, identity.ErrAccountNotFound) {
		return fmt.Errorf("delete account: %w", err)
	}
	r.publisher.SignOutPrincipal(id)
	return nil
}

// ChangePassword updates the signed-in principal's password.
func (r *Resolver) ChangePassword(ctx context.Context, principalID uuid.UUID, current, next string) error {
	return Translate(r.identity.UpdatePassword(ctx, principalID, current, next))
}

// SendPasswordReset mails a reset code.
func (r *Resolver) SendPasswordReset(ctx context.Context, email string) error {
	return Translate(r.identity.SendPasswordReset(ctx, email))
}

// ConfirmPasswordReset applies a reset code.
func (r *Resolver) ConfirmPasswordReset(ctx context.Context, email, code, password string) error {
	return Translate(r.identity.ConfirmPasswordReset(ctx, email, code, password))
}

// SignInMethods lists the sign-in methods linked to email.
func (r *Resolver) SignInMethods(ctx context.Context, email string) ([]string, error) {
	methods, err := r.identity.SignInMethods(ctx, email)
	return methods, Translate(err)
}

func copySelfService(dst *members.Profile, src members.Profile) {
	dst.FirstName = src.FirstName
	dst.LastName = src.LastName
	dst.Phone = src.Phone
	dst.GraduationYear = src.GraduationYear
	dst.Department = src.Department
	dst.Occupation = src.Occupation
	dst.Company = src.Company
	dst.City = src.City
	dst.Bio = src.Bio
	dst.PhotoURL = src.PhotoURL
	dst.UpdatedAt = src.UpdatedAt
}

func renameRegistrationFields(err error) error {
	var fieldErrs validation.Errors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	renamed := make(validation.Errors, len(fieldErrs))
	for key, value := range fieldErrs {
		switch key {
		case "Email":
			renamed["email"] = value
		case "Password":
			renamed["password"] = value
		case "ConfirmPassword":
			renamed["confirmPassword"] = value
		default:
			renamed[key] = value
		}
	}
	return renamed
}
