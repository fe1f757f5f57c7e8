package events

import (
	"context"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"alumni/internal/apperr"
)

// Service manages events and member RSVPs.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires the event store.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create schedules a new event.
func (s *Service) Create(ctx context.Context, createdBy uuid.UUID, input Input) (Event, error) {
	date, err := s.validate(&input)
	if err != nil {
		return Event{}, err
	}

	now := s.now()
	event := Event{
		ID:        uuid.New(),
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	apply(&event, input, date)

	created, err := s.repo.Create(ctx, event)
	if err != nil {
		return Event{}, err
	}
	s.logger.Info("event created", "event_id", created.ID, "created_by", createdBy)
	return created, nil
}

// Update replaces the editable fields of an event.
func (s *Service) Update(ctx context.Context, id uuid.UUID, input Input) (Event, error) {
	date, err := s.validate(&input)
	if err != nil {
		return Event{}, err
	}
	event, err := s.repo.Get(ctx, id)
	if err != nil {
		return Event{}, err
	}
	apply(&event, input, date)
	event.UpdatedAt = s.now()
	return s.repo.Update(ctx, event)
}

// Delete cancels an event together with its RSVPs.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("event deleted", "event_id", id)
	return nil
}

// Get returns one event.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Event, error) {
	return s.repo.Get(ctx, id)
}

// List returns every event.
func (s *Service) List(ctx context.Context) ([]Event, error) {
	return s.repo.List(ctx, ListOptions{})
}

// Upcoming returns events dated today or later.
func (s *Service) Upcoming(ctx context.Context, limit int) ([]Event, error) {
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return s.repo.List(ctx, ListOptions{From: &today, Limit: limit})
}

// RSVP holds a seat for an approved member.
func (s *Service) RSVP(ctx context.Context, attendee Attendee, eventID uuid.UUID) (RSVP, Event, error) {
	if !attendee.Approved {
		return RSVP{}, Event{}, ErrNotApproved
	}
	event, err := s.repo.Get(ctx, eventID)
	if err != nil {
		return RSVP{}, Event{}, err
	}
	rsvp, err := s.repo.Confirm(ctx, eventID, attendee.ProfileID, s.now())
	if err != nil {
		return RSVP{}, Event{}, err
	}
	s.logger.Info("rsvp confirmed", "event_id", eventID, "profile_id", attendee.ProfileID)
	return rsvp, event, nil
}

// ConfirmedRSVP returns the member's confirmed RSVP and its event, for resending a confirmation.
func (s *Service) ConfirmedRSVP(ctx context.Context, attendee Attendee, eventID uuid.UUID) (RSVP, Event, error) {
	rsvp, err := s.repo.GetRSVP(ctx, eventID, attendee.ProfileID)
	if err != nil {
		return RSVP{}, Event{}, err
	}
	if rsvp.Status != RSVPConfirmed {
		return RSVP{}, Event{}, ErrRSVPNotFound
	}
	event, err := s.repo.Get(ctx, eventID)
	if err != nil {
		return RSVP{}, Event{}, err
	}
	return rsvp, event, nil
}

// Cancel releases the member's seat.
func (s *Service) Cancel(ctx context.Context, attendee Attendee, eventID uuid.UUID) (RSVP, error) {
	rsvp, err := s.repo.Cancel(ctx, eventID, attendee.ProfileID, s.now())
	if err != nil {
		return RSVP{}, err
	}
	s.logger.Info("rsvp cancelled", "event_id", eventID, "profile_id", attendee.ProfileID)
	return rsvp, nil
}

// Bookings lists the member's confirmed RSVPs with their events.
func (s *Service) Bookings(ctx context.Context, profileID uuid.UUID) ([]Booking, error) {
	status := RSVPConfirmed
	rsvps, err := s.repo.ListRSVPs(ctx, RSVPFilter{ProfileID: &profileID, Status: &status})
	if err != nil {
		return nil, err
	}

	bookings := make([]Booking, 0, len(rsvps))
	for _, rsvp := range rsvps {
		event, err := s.repo.Get(ctx, rsvp.EventID)
		if err != nil {
			s.logger.Warn("rsvp references missing event", "event_id", rsvp.EventID, "error", err)
			continue
		}
		bookings = append(bookings, Booking{RSVP: rsvp, Event: event})
	}
	return bookings, nil
}

// Attendees lists the confirmed RSVPs of an event.
func (s *Service) Attendees(ctx context.Context, eventID uuid.UUID) ([]RSVP, error) {
	if _, err := s.repo.Get(ctx, eventID); err != nil {
		return nil, err
	}
	status := RSVPConfirmed
	return s.repo.ListRSVPs(ctx, RSVPFilter{EventID: &eventID, Status: &status})
}

// ConfirmedCount returns the number of seats currently held across all events.
func (s *Service) ConfirmedCount(ctx context.Context) (int, error) {
	status := RSVPConfirmed
	rsvps, err := s.repo.ListRSVPs(ctx, RSVPFilter{Status: &status})
	if err != nil {
		return 0, err
	}
	return len(rsvps), nil
}

func (s *Service) validate(input *Input) (*time.Time, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	input.Location = strings.TrimSpace(input.Location)
	input.Date = strings.TrimSpace(input.Date)
	input.Time = strings.TrimSpace(input.Time)

	err := validation.ValidateStruct(input,
		validation.Field(&input.Name, validation.Required, validation.RuneLength(1, 200)),
		validation.Field(&input.Description, validation.RuneLength(0, 5000)),
		validation.Field(&input.Location, validation.RuneLength(0, 300)),
		validation.Field(&input.Date, validation.Date(DateLayout)),
		validation.Field(&input.Time, validation.RuneLength(0, 40)),
		validation.Field(&input.Capacity, validation.Min(1)),
	)
	if err != nil {
		return nil, apperr.Validation(err)
	}

	if input.Date == "" {
		return nil, nil
	}
	date, err := time.Parse(DateLayout, input.Date)
	if err != nil {
		return nil, apperr.Invalid("date", "must be a valid date")
	}
	return &date, nil
}

func apply(event *Event, input Input, date *time.Time) {
	event.Name = input.Name
	event.Description = input.Description
	event.Location = input.Location
	event.Date = date
	event.Time = input.Time
	event.Capacity = input.Capacity
}
