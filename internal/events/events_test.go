package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := NewEventBus()
	var got []Event
	unsubscribe := bus.Subscribe(BookingsChanged, func(e Event) error {
		got = append(got, e)
		return nil
	})

	bus.Publish(Event{Type: BookingsChanged, RecordID: "b1"})
	bus.Publish(Event{Type: RecurringChanged, RecordID: "r1"})

	require.Len(t, got, 1)
	assert.Equal(t, "b1", got[0].RecordID)
	assert.Equal(t, int64(1), got[0].ID)
	assert.False(t, got[0].CreatedAt.IsZero())

	unsubscribe()
	unsubscribe()
	bus.Publish(Event{Type: BookingsChanged})
	assert.Len(t, got, 1)
	assert.Equal(t, 0, bus.Subscribers(BookingsChanged))
}

func TestEventBus_UnsubscribeKeepsOthers(t *testing.T) {
	bus := NewEventBus()
	calls := map[string]int{}
	first := bus.Subscribe(BookingsChanged, func(Event) error { calls["first"]++; return nil })
	bus.Subscribe(BookingsChanged, func(Event) error { calls["second"]++; return nil })

	first()
	bus.Publish(Event{Type: BookingsChanged})

	assert.Equal(t, 0, calls["first"])
	assert.Equal(t, 1, calls["second"])
}

func TestEventBus_OnError(t *testing.T) {
	bus := NewEventBus()
	var failed []error
	bus.OnError(func(_ Event, err error) { failed = append(failed, err) })
	bus.Subscribe(RecurringChanged, func(Event) error { return errors.New("boom") })

	bus.Publish(Event{Type: RecurringChanged})
	require.Len(t, failed, 1)
	assert.EqualError(t, failed[0], "boom")
}
