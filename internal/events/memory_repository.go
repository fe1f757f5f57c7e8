package events

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

type rsvpKey struct {
	eventID   uuid.UUID
	profileID uuid.UUID
}

type inMemoryRepository struct {
	mu     sync.RWMutex
	events map[uuid.UUID]Event
	rsvps  map[rsvpKey]RSVP
}

// NewInMemoryRepository returns an empty event store.
func NewInMemoryRepository() Repository {
	return &inMemoryRepository{
		events: make(map[uuid.UUID]Event),
		rsvps:  make(map[rsvpKey]RSVP),
	}
}

func (m *inMemoryRepository) Create(ctx context.Context, event Event) (Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events[event.ID] = event
	return event, nil
}

func (m *inMemoryRepository) Get(ctx context.Context, id uuid.UUID) (Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	event, ok := m.events[id]
	if !ok {
		return Event{}, ErrNotFound
	}
	return event, nil
}

func (m *inMemoryRepository) Update(ctx context.Context, event Event) (Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.events[event.ID]; !ok {
		return Event{}, ErrNotFound
	}
	m.events[event.ID] = event
	return event, nil
}

func (m *inMemoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.events[id]; !ok {
		return ErrNotFound
	}
	delete(m.events, id)
	for key := range m.rsvps {
		if key.eventID == id {
			delete(m.rsvps, key)
		}
	}
	return nil
}

func (m *inMemoryRepository) List(ctx context.Context, opts ListOptions) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Event, 0, len(m.events))
	for _, event := range m.events {
		if opts.From != nil && (event.Date == nil || event.Date.Before(*opts.From)) {
			continue
		}
		out = append(out, event)
	}

	slices.SortFunc(out, compareEvents)
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// compareEvents orders by date with undated events last, then by name.
func compareEvents(a, b Event) int {
	switch {
	case a.Date == nil && b.Date != nil:
		return 1
	case a.Date != nil && b.Date == nil:
		return -1
	case a.Date != nil && b.Date != nil && !a.Date.Equal(*b.Date):
		return a.Date.Compare(*b.Date)
	}
	if a.Name < b.Name {
		return -1
	}
	if a.Name > b.Name {
		return 1
	}
	return 0
}

func (m *inMemoryRepository) Confirm(ctx context.Context, eventID, profileID uuid.UUID, now time.Time) (RSVP, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	event, ok := m.events[eventID]
	if !ok {
		return RSVP{}, ErrNotFound
	}

	key := rsvpKey{eventID: eventID, profileID: profileID}
	existing, exists := m.rsvps[key]
	if exists && existing.Status == RSVPConfirmed {
		return RSVP{}, ErrDuplicateRSVP
	}

	if event.Capacity != nil {
		confirmed := 0
		for k, r := range m.rsvps {
			if k.eventID == eventID && r.Status == RSVPConfirmed {
				confirmed++
			}
		}
		if confirmed >= *event.Capacity {
			return RSVP{}, ErrEventFull
		}
	}

	rsvp := RSVP{
		ID:        uuid.New(),
		EventID:   eventID,
		ProfileID: profileID,
		Status:    RSVPConfirmed,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if exists {
		rsvp.ID = existing.ID
		rsvp.CreatedAt = existing.CreatedAt
	}
	m.rsvps[key] = rsvp
	return rsvp, nil
}

func (m *inMemoryRepository) Cancel(ctx context.Context, eventID, profileID uuid.UUID, now time.Time) (RSVP, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := rsvpKey{eventID: eventID, profileID: profileID}
	rsvp, ok := m.rsvps[key]
	if !ok || rsvp.Status != RSVPConfirmed {
		return RSVP{}, ErrRSVPNotFound
	}
	rsvp.Status = RSVPCancelled
	rsvp.UpdatedAt = now
	m.rsvps[key] = rsvp
	return rsvp, nil
}

func (m *inMemoryRepository) GetRSVP(ctx context.Context, eventID, profileID uuid.UUID) (RSVP, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rsvp, ok := m.rsvps[rsvpKey{eventID: eventID, profileID: profileID}]
	if !ok {
		return RSVP{}, ErrRSVPNotFound
	}
	return rsvp, nil
}

func (m *inMemoryRepository) ListRSVPs(ctx context.Context, filter RSVPFilter) ([]RSVP, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []RSVP
	for _, rsvp := range m.rsvps {
		if filter.EventID != nil && rsvp.EventID != *filter.EventID {
			continue
		}
		if filter.ProfileID != nil && rsvp.ProfileID != *filter.ProfileID {
			continue
		}
		if filter.Status != nil && rsvp.Status != *filter.Status {
			continue
		}
		out = append(out, rsvp)
	}
	slices.SortFunc(out, func(a, b RSVP) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}
