package members

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"alumni/internal/apperr"
)

// ChangeListener is notified after an administrative change to a profile.
type ChangeListener func(ctx context.Context, profileID uuid.UUID)

// Service coordinates profile reads, self-service edits and admin actions.
type Service struct {
	repo     Repository
	audit    AuditRepository
	exporter *CSVExporter
	logger   *slog.Logger
	region   string
	now      func() time.Time

	mu        sync.RWMutex
	listeners []ChangeListener
}

// NewService wires the profile store and audit log.
func NewService(repo Repository, audit AuditRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		repo:     repo,
		audit:    audit,
		exporter: NewCSVExporter(),
		logger:   logger,
		region:   DefaultPhoneRegion,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// OnChange registers a listener for admin-initiated profile changes.
func (s *Service) OnChange(listener ChangeListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, listener)
}

func (s *Service) notify(ctx context.Context, id uuid.UUID) {
	s.mu.RLock()
	listeners := append([]ChangeListener(nil), s.listeners...)
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(ctx, id)
	}
}

// Get returns the profile keyed by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Profile, error) {
	return s.repo.Get(ctx, id)
}

// Create writes a new profile document.
func (s *Service) Create(ctx context.Context, profile Profile) error {
	return s.repo.Set(ctx, profile)
}

// EnsureDefault writes the default profile for a principal unless one already exists.
func (s *Service) EnsureDefault(ctx context.Context, id uuid.UUID, email string) (bool, error) {
	created, err := s.repo.SetIfAbsent(ctx, DefaultProfile(id, email, s.now()))
	if err != nil {
		return false, err
	}
	if created {
		s.logger.Info("default profile created", "profile_id", id)
	}
	return created, nil
}

// UpdateFields validates and writes a self-service edit.
func (s *Service) UpdateFields(ctx context.Context, id uuid.UUID, fields ProfileFields) (Profile, error) {
	if err := ValidateFields(&fields, s.region, s.now()); err != nil {
		return Profile{}, err
	}
	return s.repo.Update(ctx, id, fields, s.now())
}

// DirectoryOptions filters the member directory.
type DirectoryOptions struct {
	GraduationYear *int
	Query          string
	Limit          int
}

// Directory lists approved members.
func (s *Service) Directory(ctx context.Context, opts DirectoryOptions) ([]Profile, error) {
	approved := true
	return s.repo.List(ctx, ListOptions{
		Approved:       &approved,
		GraduationYear: opts.GraduationYear,
		Query:          opts.Query,
		Limit:          opts.Limit,
	})
}

// Pending lists members awaiting approval. Admins are never pending.
func (s *Service) Pending(ctx context.Context) ([]Profile, error) {
	approved := false
	role := RoleUser
	return s.repo.List(ctx, ListOptions{Approved: &approved, Role: &role})
}

// All lists every profile matching opts.
func (s *Service) All(ctx context.Context, opts ListOptions) ([]Profile, error) {
	return s.repo.List(ctx, opts)
}

// SetApproval flips the approval flag and records who did it.
func (s *Service) SetApproval(ctx context.Context, actor string, id uuid.UUID, approved bool) (Profile, error) {
	profile, err := s.repo.UpdateStanding(ctx, id, Standing{Approved: &approved}, s.now())
	if err != nil {
		return Profile{}, err
	}

	action := ActionApprove
	if !approved {
		action = ActionUnapprove
	}
	s.record(ctx, actor, action, id, "")
	s.notify(ctx, id)
	return profile, nil
}

// SetRole changes a member's role.
func (s *Service) SetRole(ctx context.Context, actor string, id uuid.UUID, role Role) (Profile, error) {
	if !role.Valid() {
		return Profile{}, apperr.Invalid("role", "must be user or admin")
	}
	profile, err := s.repo.UpdateStanding(ctx, id, Standing{Role: &role}, s.now())
	if err != nil {
		return Profile{}, err
	}
	s.record(ctx, actor, ActionSetRole, id, string(role))
	s.notify(ctx, id)
	return profile, nil
}

// Delete removes a profile document.
func (s *Service) Delete(ctx context.Context, actor string, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, ActionDelete, id, "")
	return nil
}

// Promote grants admin standing to an existing identity, creating its profile when missing.
func (s *Service) Promote(ctx context.Context, operator, reason string, id uuid.UUID, email string) (Profile, error) {
	operator = strings.TrimSpace(operator)
	if operator == "" {
		return Profile{}, apperr.Invalid("operator", "is required")
	}

	if _, err := s.EnsureDefault(ctx, id, email); err != nil {
		return Profile{}, err
	}

	role := RoleAdmin
	approved := true
	standing := Standing{Role: &role, Approved: &approved}
	entry := s.entry(operator, ActionProvision, id, reason)

	if writer, ok := s.repo.(AuditedStandingWriter); ok {
		profile, err := writer.UpdateStandingAudited(ctx, id, standing, s.now(), entry)
		if err != nil {
			return Profile{}, fmt.Errorf("provision admin: %w", err)
		}
		s.notify(ctx, id)
		return profile, nil
	}

	before, err := s.repo.Get(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	profile, err := s.repo.UpdateStanding(ctx, id, standing, s.now())
	if err != nil {
		return Profile{}, err
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		// A promotion without its audit entry must not stand.
		previous := Standing{Role: &before.Role, Approved: &before.Approved}
		if _, revertErr := s.repo.UpdateStanding(ctx, id, previous, s.now()); revertErr != nil {
			s.logger.Error("revert unaudited promotion", "profile_id", id, "error", revertErr)
		}
		return Profile{}, fmt.Errorf("audit provisioning: %w", err)
	}
	s.notify(ctx, id)
	return profile, nil
}

// Connect adds other to the member's connection list.
func (s *Service) Connect(ctx context.Context, id, other uuid.UUID) error {
	if id == other {
		return fmt.Errorf("%w: cannot connect to yourself", ErrConnection)
	}
	target, err := s.repo.Get(ctx, other)
	if err != nil {
		return err
	}
	if !target.Approved {
		return fmt.Errorf("%w: member is not approved", ErrConnection)
	}
	return s.repo.AddConnection(ctx, id, other, s.now())
}

// Disconnect removes other from the member's connection list.
func (s *Service) Disconnect(ctx context.Context, id, other uuid.UUID) error {
	return s.repo.RemoveConnection(ctx, id, other, s.now())
}

// Counts aggregates totals for the admin dashboard.
func (s *Service) Counts(ctx context.Context) (Counts, error) {
	profiles, err := s.repo.List(ctx, ListOptions{})
	if err != nil {
		return Counts{}, err
	}
	var counts Counts
	for _, p := range profiles {
		counts.Total++
		switch {
		case p.IsAdmin():
			counts.Admins++
			counts.Approved++
		case p.Approved:
			counts.Approved++
		default:
			counts.Pending++
		}
	}
	return counts, nil
}

// AuditLog returns the most recent admin actions.
func (s *Service) AuditLog(ctx context.Context, limit int) ([]AuditEntry, error) {
	return s.audit.List(ctx, limit)
}

// ExportDirectory writes every approved member as CSV.
func (s *Service) ExportDirectory(ctx context.Context, w io.Writer) error {
	profiles, err := s.Directory(ctx, DirectoryOptions{})
	if err != nil {
		return err
	}
	return s.exporter.Export(w, profiles)
}

func (s *Service) record(ctx context.Context, actor, action string, id uuid.UUID, detail string) {
	if err := s.audit.Append(ctx, s.entry(actor, action, id, detail)); err != nil {
		s.logger.Error("append audit entry", "action", action, "subject_id", id, "error", err)
	}
}

func (s *Service) entry(actor, action string, id uuid.UUID, detail string) AuditEntry {
	return AuditEntry{
		ID:        uuid.New(),
		Actor:     actor,
		Action:    action,
		SubjectID: id,
		Detail:    detail,
		CreatedAt: s.now(),
	}
}
