package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alumni/internal/events"
	"alumni/internal/members"
	"alumni/internal/notify"
)

type memberCounterStub struct {
	counts func(ctx context.Context) (members.Counts, error)
}

func (s memberCounterStub) Counts(ctx context.Context) (members.Counts, error) {
	return s.counts(ctx)
}

func TestSummary(t *testing.T) {
	ctx := context.Background()
	eventSvc := events.NewService(events.NewInMemoryRepository(), nil)
	next := time.Now().UTC().AddDate(0, 1, 0).Format(events.DateLayout)
	event, err := eventSvc.Create(ctx, uuid.New(), events.Input{Name: "Gala", Date: next})
	require.NoError(t, err)
	_, _, err = eventSvc.RSVP(ctx, events.Attendee{ProfileID: uuid.New(), Approved: true}, event.ID)
	require.NoError(t, err)

	logs := notify.NewInMemoryLogRepository()
	require.NoError(t, logs.Append(ctx, notify.EmailLog{ID: uuid.New(), Status: notify.StatusFailed, Error: "smtp timeout"}))
	require.NoError(t, logs.Append(ctx, notify.EmailLog{ID: uuid.New(), Status: notify.StatusDelivered}))

	counter := memberCounterStub{counts: func(context.Context) (members.Counts, error) {
		return members.Counts{Total: 3, Approved: 2, Pending: 1, Admins: 1}, nil
	}}

	summary, err := NewService(counter, eventSvc, logs).Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Members.Total)
	require.Len(t, summary.UpcomingEvents, 1)
	assert.Equal(t, "Gala", summary.UpcomingEvents[0].Name)
	assert.Equal(t, 1, summary.ConfirmedRSVPs)
	require.Len(t, summary.EmailFailures, 1)
	assert.Equal(t, "smtp timeout", summary.EmailFailures[0].Error)
}

func TestSummaryPropagatesErrors(t *testing.T) {
	counter := memberCounterStub{counts: func(context.Context) (members.Counts, error) {
		return members.Counts{}, errors.New("db down")
	}}
	svc := NewService(counter, events.NewService(events.NewInMemoryRepository(), nil), notify.NewInMemoryLogRepository())

	_, err := svc.Summary(context.Background())
	assert.ErrorContains(t, err, "db down")
}
