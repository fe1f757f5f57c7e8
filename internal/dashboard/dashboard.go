// Package dashboard aggregates the admin overview.
package dashboard

import (
	"context"
	"fmt"

	"alumni/internal/events"
	"alumni/internal/members"
	"alumni/internal/notify"
)

// MemberCounter reports profile totals.
type MemberCounter interface {
	Counts(ctx context.Context) (members.Counts, error)
}

// EventLister reports upcoming events and held seats.
type EventLister interface {
	Upcoming(ctx context.Context, limit int) ([]events.Event, error)
	ConfirmedCount(ctx context.Context) (int, error)
}

// Summary is the admin dashboard payload.
type Summary struct {
	Members        members.Counts    `json:"members"`
	UpcomingEvents []events.Event    `json:"upcomingEvents"`
	ConfirmedRSVPs int               `json:"confirmedRsvps"`
	EmailFailures  []notify.EmailLog `json:"emailFailures"`
}

// Service builds dashboard summaries.
type Service struct {
	members  MemberCounter
	events   EventLister
	emails   notify.LogRepository
	upcoming int
	failures int
}

// NewService wires the dashboard sources.
func NewService(memberCounter MemberCounter, eventLister EventLister, emails notify.LogRepository) *Service {
	return &Service{
		members:  memberCounter,
		events:   eventLister,
		emails:   emails,
		upcoming: 5,
		failures: 20,
	}
}

// Summary collects the current counts.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	counts, err := s.members.Counts(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("count members: %w", err)
	}
	upcoming, err := s.events.Upcoming(ctx, s.upcoming)
	if err != nil {
		return Summary{}, fmt.Errorf("list upcoming events: %w", err)
	}
	confirmed, err := s.events.ConfirmedCount(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("count rsvps: %w", err)
	}
	failed := notify.StatusFailed
	failures, err := s.emails.List(ctx, notify.LogFilter{Status: &failed, Limit: s.failures})
	if err != nil {
		return Summary{}, fmt.Errorf("list email failures: %w", err)
	}

	return Summary{
		Members:        counts,
		UpcomingEvents: upcoming,
		ConfirmedRSVPs: confirmed,
		EmailFailures:  failures,
	}, nil
}
