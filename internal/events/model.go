package events

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when an event cannot be located.
	ErrNotFound = errors.New("event not found")
	// ErrRSVPNotFound is returned when the member holds no confirmed RSVP for the event.
	ErrRSVPNotFound = errors.New("rsvp not found")
	// ErrNotApproved is returned when an unapproved member tries to RSVP.
	ErrNotApproved = errors.New("only approved members may rsvp")
	// ErrEventFull is returned when every seat is taken.
	ErrEventFull = errors.New("event is full")
	// ErrDuplicateRSVP is returned when the member already holds a confirmed RSVP.
	ErrDuplicateRSVP = errors.New("already registered for this event")
)

// DateLayout is the wire and storage format of Event.Date.
const DateLayout = "2006-01-02"

// Event is an association gathering members can RSVP to.
type Event struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	Description string     `db:"description" json:"description"`
	Location    string     `db:"location" json:"location"`
	Date        *time.Time `db:"event_date" json:"-"`
	Time        string     `db:"event_time" json:"time"`
	Capacity    *int       `db:"capacity" json:"capacity,omitempty"`
	CreatedBy   uuid.UUID  `db:"created_by" json:"createdBy"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
}

// DateString renders Date in DateLayout, or "" when unset.
func (e Event) DateString() string {
	if e.Date == nil {
		return ""
	}
	return e.Date.Format(DateLayout)
}

// MarshalJSON renders Date in DateLayout.
func (e Event) MarshalJSON() ([]byte, error) {
	type plain Event
	return json.Marshal(struct {
		plain
		Date string `json:"date,omitempty"`
	}{plain: plain(e), Date: e.DateString()})
}

// RSVPStatus tracks whether a seat is held.
type RSVPStatus string

const (
	RSVPConfirmed RSVPStatus = "confirmed"
	RSVPCancelled RSVPStatus = "cancelled"
)

// RSVP links a member profile to an event.
type RSVP struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	EventID   uuid.UUID  `db:"event_id" json:"eventId"`
	ProfileID uuid.UUID  `db:"profile_id" json:"profileId"`
	Status    RSVPStatus `db:"status" json:"status"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `db:"updated_at" json:"updatedAt"`
}

// Booking pairs an RSVP with the event it belongs to.
type Booking struct {
	RSVP  RSVP  `json:"rsvp"`
	Event Event `json:"event"`
}

// Input carries the editable fields of an event.
type Input struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Capacity    *int   `json:"capacity"`
}

// Attendee is the member acting on an RSVP.
type Attendee struct {
	ProfileID uuid.UUID
	Approved  bool
}

// ListOptions filters event listings.
type ListOptions struct {
	From  *time.Time
	Limit int
}

// RSVPFilter narrows RSVP listings. Nil fields match everything.
type RSVPFilter struct {
	EventID   *uuid.UUID
	ProfileID *uuid.UUID
	Status    *RSVPStatus
}
