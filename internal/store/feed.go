package store

import (
	"context"
	"fmt"
	"sync"

	"classbook/internal/availability"
	"classbook/internal/model"

	"github.com/rs/zerolog"
)

// Feed caches the latest pushed snapshot of both collections.
type Feed struct {
	mu        sync.RWMutex
	rooms     []model.Room
	bookings  []model.Booking
	recurring []model.RecurringBooking
	version   uint64
	listeners []func(availability.Snapshot)
	logger    zerolog.Logger
}

// NewFeed creates an empty feed over a fixed room catalog.
func NewFeed(rooms []model.Room, logger *zerolog.Logger) *Feed {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "feed").Logger()
	}
	return &Feed{
		rooms:  append([]model.Room(nil), rooms...),
		logger: l,
	}
}

// Attach subscribes the feed to both collections of src.
// The returned function detaches from both.
func (f *Feed) Attach(ctx context.Context, src Subscriber) (func(), error) {
	stopBookings, err := src.SubscribeBookings(ctx, f.SetBookings)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", Bookings, err)
	}
	stopRecurring, err := src.SubscribeRecurring(ctx, f.SetRecurring)
	if err != nil {
		stopBookings()
		return nil, fmt.Errorf("subscribe %s: %w", RecurringBookings, err)
	}
	return func() {
		stopBookings()
		stopRecurring()
	}, nil
}

// OnChange registers fn to receive every new snapshot.
func (f *Feed) OnChange(fn func(availability.Snapshot)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, fn)
}

// SetBookings replaces the one-time collection.
func (f *Feed) SetBookings(list []model.Booking) {
	cp := append([]model.Booking(nil), list...)
	f.mu.Lock()
	f.bookings = cp
	f.version++
	f.mu.Unlock()
	f.logger.Debug().Int("count", len(cp)).Msg("bookings snapshot received")
	f.notify()
}

// SetRecurring replaces the recurring collection.
func (f *Feed) SetRecurring(list []model.RecurringBooking) {
	cp := make([]model.RecurringBooking, len(list))
	for i, r := range list {
		cp[i] = r.Clone()
	}
	f.mu.Lock()
	f.recurring = cp
	f.version++
	f.mu.Unlock()
	f.logger.Debug().Int("count", len(cp)).Msg("recurring snapshot received")
	f.notify()
}

// Snapshot returns the current view. The slices are shared and must not be modified.
func (f *Feed) Snapshot() availability.Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return availability.Snapshot{
		Bookings:  f.bookings,
		Recurring: f.recurring,
		Rooms:     f.rooms,
	}
}

// Version increases with every received snapshot.
func (f *Feed) Version() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.version
}

// Rooms returns the catalog.
func (f *Feed) Rooms() []model.Room {
	return f.rooms
}

func (f *Feed) notify() {
	f.mu.RLock()
	listeners := make([]func(availability.Snapshot), len(f.listeners))
	copy(listeners, f.listeners)
	f.mu.RUnlock()
	if len(listeners) == 0 {
		return
	}
	snap := f.Snapshot()
	for _, fn := range listeners {
		fn(snap)
	}
}
