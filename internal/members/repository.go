package members

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the keyed profile store.
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (Profile, error)
	Set(ctx context.Context, profile Profile) error
	// SetIfAbsent writes profile only when no document exists for its id.
	SetIfAbsent(ctx context.Context, profile Profile) (bool, error)
	Update(ctx context.Context, id uuid.UUID, fields ProfileFields, now time.Time) (Profile, error)
	UpdateStanding(ctx context.Context, id uuid.UUID, standing Standing, now time.Time) (Profile, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, opts ListOptions) ([]Profile, error)
	AddConnection(ctx context.Context, id, other uuid.UUID, now time.Time) error
	RemoveConnection(ctx context.Context, id, other uuid.UUID, now time.Time) error
}

// AuditedStandingWriter is implemented by stores that can apply a standing change and its
// audit entry in one transaction.
type AuditedStandingWriter interface {
	UpdateStandingAudited(ctx context.Context, id uuid.UUID, standing Standing, now time.Time, entry AuditEntry) (Profile, error)
}

// AuditRepository stores administrative actions.
type AuditRepository interface {
	Append(ctx context.Context, entry AuditEntry) error
	List(ctx context.Context, limit int) ([]AuditEntry, error)
}
