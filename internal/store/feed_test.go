package store

import (
	"context"
	"errors"
	"testing"

	"classbook/internal/availability"
	"classbook/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeed_TracksStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	feed := NewFeed(model.DefaultRooms, nil)

	var pushed []availability.Snapshot
	feed.OnChange(func(s availability.Snapshot) { pushed = append(pushed, s) })

	detach, err := feed.Attach(ctx, m)
	require.NoError(t, err)
	assert.Len(t, pushed, 2, "one initial push per collection")
	assert.Equal(t, 6, feed.Snapshot().TotalRooms())

	_, err = m.CreateBooking(ctx, model.Booking{Date: "2024-06-10", Time: "09:00-10:00", Classroom: "room-1"})
	require.NoError(t, err)
	id, err := m.CreateRecurring(ctx, model.RecurringBooking{DayOfWeek: "Monday", Time: "09:00-10:00", Classroom: "room-2"})
	require.NoError(t, err)

	snap := feed.Snapshot()
	assert.Len(t, snap.Bookings, 1)
	assert.Len(t, snap.Recurring, 1)
	assert.Equal(t, availability.KindRecurring, snap.ConflictFor("2024-06-10", "09:00-10:00", "room-2", "").Kind)

	require.NoError(t, m.UpdateExceptions(ctx, id, []string{"2024-06-10"}))
	assert.False(t, feed.Snapshot().ConflictFor("2024-06-10", "09:00-10:00", "room-2", "").Conflict)
	assert.Empty(t, snap.Recurring[0].Exceptions, "earlier snapshot not rewritten")

	before := feed.Version()
	detach()
	_, err = m.CreateBooking(ctx, model.Booking{Date: "2024-06-11"})
	require.NoError(t, err)
	assert.Equal(t, before, feed.Version())
}

type failingSubscriber struct {
	stopped bool
}

func (f *failingSubscriber) SubscribeBookings(context.Context, func([]model.Booking)) (func(), error) {
	return func() { f.stopped = true }, nil
}

func (f *failingSubscriber) SubscribeRecurring(context.Context, func([]model.RecurringBooking)) (func(), error) {
	return nil, errors.New("permission denied")
}

func TestFeed_AttachFailureDetachesFirstSubscription(t *testing.T) {
	src := &failingSubscriber{}
	_, err := NewFeed(model.DefaultRooms, nil).Attach(context.Background(), src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recurringBookings")
	assert.True(t, src.stopped)
}

func TestFeed_ListenerRegisteredDuringNotify(t *testing.T) {
	feed := NewFeed(model.DefaultRooms, nil)

	var first, second, third int
	feed.OnChange(func(availability.Snapshot) {
		first++
		if first == 1 {
			feed.OnChange(func(availability.Snapshot) { third++ })
		}
	})
	feed.OnChange(func(availability.Snapshot) { second++ })

	feed.SetBookings([]model.Booking{{ID: "a", Date: "2024-06-10", Time: "09:00-10:00", Classroom: "room-1"}})
	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)
	assert.Equal(t, 0, third, "listener added mid-notify waits for the next change")

	feed.SetBookings(nil)
	assert.Equal(t, 2, first)
	assert.Equal(t, 2, second)
	assert.Equal(t, 1, third)
	assert.Empty(t, feed.Snapshot().Bookings)
}
