package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alumni/internal/apperr"
)

func ptr[T any](v T) *T { return &v }

func newTestService(now time.Time) *Service {
	svc := NewService(NewInMemoryRepository(), nil)
	svc.now = func() time.Time { return now }
	return svc
}

func approved() Attendee {
	return Attendee{ProfileID: uuid.New(), Approved: true}
}

func TestCreateValidatesInput(t *testing.T) {
	svc := newTestService(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))

	_, err := svc.Create(context.Background(), uuid.New(), Input{Date: "05/30/2026", Capacity: ptr(-1)})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	fields := apperr.FieldsOf(err)
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "date")
	assert.Contains(t, fields, "capacity")

	event, err := svc.Create(context.Background(), uuid.New(), Input{Name: " Gala ", Date: "2026-05-30", Time: "7pm"})
	require.NoError(t, err)
	assert.Equal(t, "Gala", event.Name)
	assert.Equal(t, "2026-05-30", event.DateString())
}

func TestRSVPRequiresApproval(t *testing.T) {
	svc := newTestService(time.Now().UTC())
	event, err := svc.Create(context.Background(), uuid.New(), Input{Name: "Gala"})
	require.NoError(t, err)

	_, _, err = svc.RSVP(context.Background(), Attendee{ProfileID: uuid.New()}, event.ID)
	assert.ErrorIs(t, err, ErrNotApproved)

	attendees, err := svc.Attendees(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Empty(t, attendees)
}

func TestRSVPRejectsDuplicatesAndReactivatesCancelled(t *testing.T) {
	svc := newTestService(time.Now().UTC())
	ctx := context.Background()
	event, err := svc.Create(ctx, uuid.New(), Input{Name: "Gala"})
	require.NoError(t, err)
	member := approved()

	first, _, err := svc.RSVP(ctx, member, event.ID)
	require.NoError(t, err)
	assert.Equal(t, RSVPConfirmed, first.Status)

	_, _, err = svc.RSVP(ctx, member, event.ID)
	assert.ErrorIs(t, err, ErrDuplicateRSVP)

	cancelled, err := svc.Cancel(ctx, member, event.ID)
	require.NoError(t, err)
	assert.Equal(t, RSVPCancelled, cancelled.Status)

	_, err = svc.Cancel(ctx, member, event.ID)
	assert.ErrorIs(t, err, ErrRSVPNotFound)

	again, _, err := svc.RSVP(ctx, member, event.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, RSVPConfirmed, again.Status)
}

func TestRSVPHonoursCapacityUnderContention(t *testing.T) {
	svc := newTestService(time.Now().UTC())
	ctx := context.Background()
	event, err := svc.Create(ctx, uuid.New(), Input{Name: "Dinner", Capacity: ptr(3)})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	full := 0
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := svc.RSVP(ctx, approved(), event.ID); err != nil {
				assert.ErrorIs(t, err, ErrEventFull)
				mu.Lock()
				full++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	attendees, err := svc.Attendees(ctx, event.ID)
	require.NoError(t, err)
	assert.Len(t, attendees, 3)
	assert.Equal(t, 7, full)
}

func TestCancelledSeatIsReleased(t *testing.T) {
	svc := newTestService(time.Now().UTC())
	ctx := context.Background()
	event, err := svc.Create(ctx, uuid.New(), Input{Name: "Dinner", Capacity: ptr(1)})
	require.NoError(t, err)

	first, second := approved(), approved()
	_, _, err = svc.RSVP(ctx, first, event.ID)
	require.NoError(t, err)
	_, _, err = svc.RSVP(ctx, second, event.ID)
	assert.ErrorIs(t, err, ErrEventFull)

	_, err = svc.Cancel(ctx, first, event.ID)
	require.NoError(t, err)
	_, _, err = svc.RSVP(ctx, second, event.ID)
	require.NoError(t, err)
}

func TestUpcomingAndBookings(t *testing.T) {
	svc := newTestService(time.Date(2026, 5, 10, 18, 0, 0, 0, time.UTC))
	ctx := context.Background()
	creator := uuid.New()

	past, err := svc.Create(ctx, creator, Input{Name: "Past", Date: "2026-05-01"})
	require.NoError(t, err)
	today, err := svc.Create(ctx, creator, Input{Name: "Today", Date: "2026-05-10"})
	require.NoError(t, err)
	later, err := svc.Create(ctx, creator, Input{Name: "Later", Date: "2026-06-01"})
	require.NoError(t, err)

	upcoming, err := svc.Upcoming(ctx, 0)
	require.NoError(t, err)
	require.Len(t, upcoming, 2)
	assert.Equal(t, today.ID, upcoming[0].ID)
	assert.Equal(t, later.ID, upcoming[1].ID)

	member := approved()
	_, _, err = svc.RSVP(ctx, member, past.ID)
	require.NoError(t, err)
	_, _, err = svc.RSVP(ctx, member, later.ID)
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, member, past.ID)
	require.NoError(t, err)

	bookings, err := svc.Bookings(ctx, member.ProfileID)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, "Later", bookings[0].Event.Name)

	count, err := svc.ConfirmedCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDeleteEventRemovesRSVPs(t *testing.T) {
	svc := newTestService(time.Now().UTC())
	ctx := context.Background()
	event, err := svc.Create(ctx, uuid.New(), Input{Name: "Gala"})
	require.NoError(t, err)
	member := approved()
	_, _, err = svc.RSVP(ctx, member, event.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, event.ID))
	_, _, err = svc.ConfirmedRSVP(ctx, member, event.ID)
	assert.ErrorIs(t, err, ErrRSVPNotFound)
	_, err = svc.Attendees(ctx, event.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEventJSONUsesDateLayout(t *testing.T) {
	date := time.Date(2026, 5, 30, 0, 0, 0, 0, time.UTC)
	raw, err := Event{ID: uuid.New(), Name: "Gala", Date: &date}.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"date":"2026-05-30"`)
	assert.Contains(t, string(raw), `"name":"Gala"`)
}
