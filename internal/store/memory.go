package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"classbook/internal/events"
	"classbook/internal/model"

	"github.com/google/uuid"
)

// Memory is an in-process live store.
type Memory struct {
	mu        sync.RWMutex
	bookings  map[string]model.Booking
	recurring map[string]model.RecurringBooking
	bus       *events.EventBus
	now       func() time.Time
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		bookings:  make(map[string]model.Booking),
		recurring: make(map[string]model.RecurringBooking),
		bus:       events.NewEventBus(),
		now:       time.Now,
	}
}

// WithClock overrides the timestamp source.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) listBookings() []model.Booking {
	m.mu.RLock()
	out := make([]model.Booking, 0, len(m.bookings))
	for _, b := range m.bookings {
		out = append(out, b)
	}
	m.mu.RUnlock()
	SortBookings(out)
	return out
}

func (m *Memory) listRecurring() []model.RecurringBooking {
	m.mu.RLock()
	out := make([]model.RecurringBooking, 0, len(m.recurring))
	for _, r := range m.recurring {
		out = append(out, r.Clone())
	}
	m.mu.RUnlock()
	SortRecurring(out)
	return out
}

// SubscribeBookings implements Subscriber.
func (m *Memory) SubscribeBookings(_ context.Context, fn func([]model.Booking)) (func(), error) {
	unsubscribe := m.bus.Subscribe(events.BookingsChanged, func(events.Event) error {
		fn(m.listBookings())
		return nil
	})
	fn(m.listBookings())
	return unsubscribe, nil
}

// SubscribeRecurring implements Subscriber.
func (m *Memory) SubscribeRecurring(_ context.Context, fn func([]model.RecurringBooking)) (func(), error) {
	unsubscribe := m.bus.Subscribe(events.RecurringChanged, func(events.Event) error {
		fn(m.listRecurring())
		return nil
	})
	fn(m.listRecurring())
	return unsubscribe, nil
}

// CreateBooking implements Writer.
func (m *Memory) CreateBooking(ctx context.Context, b model.Booking) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b.ID = uuid.NewString()
	b.Type = model.TypeOneTime
	if b.Timestamp.IsZero() {
		b.Timestamp = m.now()
	}

	m.mu.Lock()
	m.bookings[b.ID] = b
	m.mu.Unlock()

	m.bus.Publish(events.Event{Type: events.BookingsChanged, RecordID: b.ID})
	return b.ID, nil
}

// CreateRecurring implements Writer.
func (m *Memory) CreateRecurring(ctx context.Context, r model.RecurringBooking) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r = r.Clone()
	r.ID = uuid.NewString()
	r.Type = model.TypeRecurring
	if r.Exceptions == nil {
		r.Exceptions = []string{}
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = m.now()
	}

	m.mu.Lock()
	m.recurring[r.ID] = r
	m.mu.Unlock()

	m.bus.Publish(events.Event{Type: events.RecurringChanged, RecordID: r.ID})
	return r.ID, nil
}

// GetRecurring implements Writer.
func (m *Memory) GetRecurring(ctx context.Context, id string) (model.RecurringBooking, error) {
	if err := ctx.Err(); err != nil {
		return model.RecurringBooking{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.recurring[id]
	if !ok {
		return model.RecurringBooking{}, fmt.Errorf("recurring booking %s: %w", id, ErrNotFound)
	}
	return r.Clone(), nil
}

// UpdateExceptions implements Writer.
func (m *Memory) UpdateExceptions(ctx context.Context, id string, exceptions []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	r, ok := m.recurring[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("recurring booking %s: %w", id, ErrNotFound)
	}
	r.Exceptions = append([]string{}, exceptions...)
	m.recurring[id] = r
	m.mu.Unlock()

	m.bus.Publish(events.Event{Type: events.RecurringChanged, RecordID: id})
	return nil
}

// DeleteBooking implements Writer.
func (m *Memory) DeleteBooking(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	if _, ok := m.bookings[id]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("booking %s: %w", id, ErrNotFound)
	}
	delete(m.bookings, id)
	m.mu.Unlock()

	m.bus.Publish(events.Event{Type: events.BookingsChanged, RecordID: id})
	return nil
}

// DeleteRecurring implements Writer.
func (m *Memory) DeleteRecurring(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	if _, ok := m.recurring[id]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("recurring booking %s: %w", id, ErrNotFound)
	}
	delete(m.recurring, id)
	m.mu.Unlock()

	m.bus.Publish(events.Event{Type: events.RecurringChanged, RecordID: id})
	return nil
}

var _ Store = (*Memory)(nil)
