package members

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alumni/internal/apperr"
)

func ptr[T any](v T) *T { return &v }

func newTestService(t *testing.T) (*Service, Repository, AuditRepository) {
	t.Helper()
	repo := NewInMemoryRepository()
	audit := NewInMemoryAuditRepository()
	svc := NewService(repo, audit, nil)
	svc.now = func() time.Time { return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC) }
	return svc, repo, audit
}

func seedProfile(t *testing.T, repo Repository, mutate func(*Profile)) Profile {
	t.Helper()
	p := DefaultProfile(uuid.New(), uuid.NewString()[:8]+"@example.org", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	if mutate != nil {
		mutate(&p)
	}
	require.NoError(t, repo.Set(context.Background(), p))
	return p
}

func TestDefaultProfile(t *testing.T) {
	p := DefaultProfile(uuid.New(), "a@x.com", time.Now())
	assert.Equal(t, RoleUser, p.Role)
	assert.False(t, p.Approved)
	assert.False(t, p.IsAdmin())
	assert.Empty(t, p.FirstName)
	assert.Equal(t, "a@x.com", p.DisplayName())
}

func TestUpdateFieldsNormalisesPhone(t *testing.T) {
	svc, repo, _ := newTestService(t)
	p := seedProfile(t, repo, nil)

	updated, err := svc.UpdateFields(context.Background(), p.ID, ProfileFields{
		FirstName:      ptr("  Grace "),
		Phone:          ptr("(650) 253-0000"),
		GraduationYear: ptr(ptr(1999)),
	})
	require.NoError(t, err)
	assert.Equal(t, "Grace", updated.FirstName)
	assert.Equal(t, "+16502530000", updated.Phone)
	require.NotNil(t, updated.GraduationYear)
	assert.Equal(t, 1999, *updated.GraduationYear)
	assert.Equal(t, RoleUser, updated.Role, "self-service edits never touch standing")
}

func TestUpdateFieldsRejectsInvalidInput(t *testing.T) {
	svc, repo, _ := newTestService(t)
	p := seedProfile(t, repo, nil)

	_, err := svc.UpdateFields(context.Background(), p.ID, ProfileFields{
		Phone:          ptr("not a phone"),
		GraduationYear: ptr(ptr(1492)),
		PhotoURL:       ptr("::nope"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	fields := apperr.FieldsOf(err)
	assert.Contains(t, fields, "phone")
	assert.Contains(t, fields, "graduationYear")
	assert.Contains(t, fields, "photoUrl")

	stored, err := repo.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Phone, "failed updates leave the stored profile intact")
}

func TestUpdateFieldsClearsGraduationYear(t *testing.T) {
	svc, repo, _ := newTestService(t)
	p := seedProfile(t, repo, func(p *Profile) { p.GraduationYear = ptr(2001) })

	var none *int
	updated, err := svc.UpdateFields(context.Background(), p.ID, ProfileFields{GraduationYear: &none})
	require.NoError(t, err)
	assert.Nil(t, updated.GraduationYear)
}

func TestDirectoryListsApprovedMembersOnly(t *testing.T) {
	svc, repo, _ := newTestService(t)
	seedProfile(t, repo, func(p *Profile) { p.Approved = true; p.LastName = "Zed"; p.GraduationYear = ptr(2010) })
	seedProfile(t, repo, func(p *Profile) { p.Approved = true; p.LastName = "Adams"; p.Company = "Acme" })
	seedProfile(t, repo, func(p *Profile) { p.LastName = "Pending" })

	all, err := svc.Directory(context.Background(), DirectoryOptions{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Adams", all[0].LastName)
	assert.Equal(t, "Zed", all[1].LastName)

	byYear, err := svc.Directory(context.Background(), DirectoryOptions{GraduationYear: ptr(2010)})
	require.NoError(t, err)
	require.Len(t, byYear, 1)
	assert.Equal(t, "Zed", byYear[0].LastName)

	byQuery, err := svc.Directory(context.Background(), DirectoryOptions{Query: "acm"})
	require.NoError(t, err)
	require.Len(t, byQuery, 1)
	assert.Equal(t, "Adams", byQuery[0].LastName)
}

func TestSetApprovalAuditsAndNotifies(t *testing.T) {
	svc, repo, audit := newTestService(t)
	p := seedProfile(t, repo, nil)

	var notified []uuid.UUID
	svc.OnChange(func(ctx context.Context, id uuid.UUID) { notified = append(notified, id) })

	updated, err := svc.SetApproval(context.Background(), "admin@example.org", p.ID, true)
	require.NoError(t, err)
	assert.True(t, updated.Approved)
	assert.Equal(t, []uuid.UUID{p.ID}, notified)

	entries, err := audit.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ActionApprove, entries[0].Action)
	assert.Equal(t, "admin@example.org", entries[0].Actor)

	pending, err := svc.Pending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSetRoleRejectsUnknownRole(t *testing.T) {
	svc, repo, _ := newTestService(t)
	p := seedProfile(t, repo, nil)

	_, err := svc.SetRole(context.Background(), "admin", p.ID, Role("owner"))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	updated, err := svc.SetRole(context.Background(), "admin", p.ID, RoleAdmin)
	require.NoError(t, err)
	assert.True(t, updated.IsAdmin())
}

func TestDeleteRemovesDanglingConnections(t *testing.T) {
	svc, repo, _ := newTestService(t)
	a := seedProfile(t, repo, func(p *Profile) { p.Approved = true })
	b := seedProfile(t, repo, func(p *Profile) { p.Approved = true })

	require.NoError(t, svc.Connect(context.Background(), a.ID, b.ID))
	require.NoError(t, svc.Delete(context.Background(), "admin", b.ID))

	stored, err := svc.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Connections)

	_, err = svc.Get(context.Background(), b.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Delete(context.Background(), "admin", b.ID), ErrNotFound)
}

func TestConnectRules(t *testing.T) {
	svc, repo, _ := newTestService(t)
	a := seedProfile(t, repo, func(p *Profile) { p.Approved = true })
	b := seedProfile(t, repo, func(p *Profile) { p.Approved = true })
	pending := seedProfile(t, repo, nil)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Connect(ctx, a.ID, a.ID), ErrConnection)
	assert.ErrorIs(t, svc.Connect(ctx, a.ID, pending.ID), ErrConnection)
	assert.ErrorIs(t, svc.Connect(ctx, a.ID, uuid.New()), ErrNotFound)

	require.NoError(t, svc.Connect(ctx, a.ID, b.ID))
	require.NoError(t, svc.Connect(ctx, a.ID, b.ID))
	stored, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{b.ID}, stored.Connections, "connections are a set")

	require.NoError(t, svc.Disconnect(ctx, a.ID, b.ID))
	stored, err = svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Connections)
}

func TestCounts(t *testing.T) {
	svc, repo, _ := newTestService(t)
	seedProfile(t, repo, func(p *Profile) { p.Role = RoleAdmin; p.Approved = true })
	seedProfile(t, repo, func(p *Profile) { p.Approved = true })
	seedProfile(t, repo, nil)
	seedProfile(t, repo, nil)

	counts, err := svc.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Counts{Total: 4, Approved: 2, Pending: 2, Admins: 1}, counts)
}

func TestPromoteCreatesMissingProfileAndAudits(t *testing.T) {
	svc, _, audit := newTestService(t)
	id := uuid.New()

	_, err := svc.Promote(context.Background(), "", "bootstrap", id, "root@example.org")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	profile, err := svc.Promote(context.Background(), "ops@example.org", "bootstrap", id, "root@example.org")
	require.NoError(t, err)
	assert.True(t, profile.IsAdmin())
	assert.True(t, profile.Approved)
	assert.Equal(t, "root@example.org", profile.Email)

	entries, err := audit.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ActionProvision, entries[0].Action)
	assert.Equal(t, "bootstrap", entries[0].Detail)
}

type failingAudit struct{ AuditRepository }

func (failingAudit) Append(context.Context, AuditEntry) error { return errors.New("disk full") }

func TestPromoteRevertsWhenAuditFails(t *testing.T) {
	repo := NewInMemoryRepository()
	svc := NewService(repo, failingAudit{NewInMemoryAuditRepository()}, nil)
	id := uuid.New()

	_, err := svc.Promote(context.Background(), "ops@example.org", "bootstrap", id, "root@example.org")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "audit provisioning")

	stored, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, RoleUser, stored.Role)
	assert.False(t, stored.Approved)
}

func TestPromoteKeepsPriorStandingWhenAuditFails(t *testing.T) {
	repo := NewInMemoryRepository()
	svc := NewService(repo, failingAudit{NewInMemoryAuditRepository()}, nil)
	p := seedProfile(t, repo, func(p *Profile) { p.Approved = true })

	_, err := svc.Promote(context.Background(), "ops@example.org", "bootstrap", p.ID, p.Email)
	require.Error(t, err)

	stored, err := repo.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsAdmin())
	assert.True(t, stored.Approved)
}

type auditedStandingRepo struct {
	Repository
	updateFn func(ctx context.Context, id uuid.UUID, standing Standing, now time.Time, entry AuditEntry) (Profile, error)
}

func (r auditedStandingRepo) UpdateStandingAudited(ctx context.Context, id uuid.UUID, standing Standing, now time.Time, entry AuditEntry) (Profile, error) {
	return r.updateFn(ctx, id, standing, now, entry)
}

func TestPromoteUsesAtomicWriterWhenAvailable(t *testing.T) {
	var got AuditEntry
	repo := auditedStandingRepo{
		Repository: NewInMemoryRepository(),
		updateFn: func(ctx context.Context, id uuid.UUID, standing Standing, now time.Time, entry AuditEntry) (Profile, error) {
			got = entry
			return Profile{}, errors.New("tx aborted")
		},
	}
	audit := NewInMemoryAuditRepository()
	svc := NewService(repo, audit, nil)
	id := uuid.New()

	_, err := svc.Promote(context.Background(), "ops@example.org", "bootstrap", id, "root@example.org")
	require.Error(t, err)
	assert.Equal(t, ActionProvision, got.Action)
	assert.Equal(t, "ops@example.org", got.Actor)

	stored, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, stored.IsAdmin())
	entries, err := audit.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSetApprovalSurvivesAuditFailure(t *testing.T) {
	repo := NewInMemoryRepository()
	svc := NewService(repo, failingAudit{NewInMemoryAuditRepository()}, nil)
	p := seedProfile(t, repo, nil)

	updated, err := svc.SetApproval(context.Background(), "admin", p.ID, true)
	require.NoError(t, err)
	assert.True(t, updated.Approved)
}

func TestExportDirectory(t *testing.T) {
	svc, repo, _ := newTestService(t)
	seedProfile(t, repo, func(p *Profile) { p.Approved = true; p.FirstName = "Listed" })
	seedProfile(t, repo, func(p *Profile) { p.FirstName = "Hidden" })

	var buf bytes.Buffer
	require.NoError(t, svc.ExportDirectory(context.Background(), &buf))
	assert.Contains(t, buf.String(), "Listed")
	assert.False(t, strings.Contains(buf.String(), "Hidden"))
}

func TestEnsureDefaultNeverOverwrites(t *testing.T) {
	svc, repo, _ := newTestService(t)
	existing := seedProfile(t, repo, func(p *Profile) { p.FirstName = "Kept"; p.Approved = true })

	created, err := svc.EnsureDefault(context.Background(), existing.ID, existing.Email)
	require.NoError(t, err)
	assert.False(t, created)

	stored, err := svc.Get(context.Background(), existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kept", stored.FirstName)
	assert.True(t, stored.Approved)

	id := uuid.New()
	created, err = svc.EnsureDefault(context.Background(), id, "new@example.org")
	require.NoError(t, err)
	assert.True(t, created)
	fresh, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, RoleUser, fresh.Role)
	assert.False(t, fresh.Approved)
}
