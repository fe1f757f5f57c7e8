package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists events and RSVPs.
type Repository interface {
	Create(ctx context.Context, event Event) (Event, error)
	Get(ctx context.Context, id uuid.UUID) (Event, error)
	Update(ctx context.Context, event Event) (Event, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, opts ListOptions) ([]Event, error)

	// Confirm holds a seat for profileID, reactivating a cancelled RSVP. It fails with
	// ErrDuplicateRSVP or ErrEventFull without writing anything.
	Confirm(ctx context.Context, eventID, profileID uuid.UUID, now time.Time) (RSVP, error)
	// Cancel releases a confirmed seat.
	Cancel(ctx context.Context, eventID, profileID uuid.UUID, now time.Time) (RSVP, error)
	GetRSVP(ctx context.Context, eventID, profileID uuid.UUID) (RSVP, error)
	ListRSVPs(ctx context.Context, filter RSVPFilter) ([]RSVP, error)
}
