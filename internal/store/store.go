// Package store defines the live booking store contract and the local snapshot feed.
package store

import (
	"context"
	"errors"
	"sort"

	"classbook/internal/model"
)

// Collection names match the persisted schema.
type Collection string

const (
	Bookings          Collection = "bookings"
	RecurringBookings Collection = "recurringBookings"
)

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = errors.New("record not found")

// Subscriber delivers full replacement snapshots of a collection, newest first.
// The first snapshot is delivered before Subscribe returns.
type Subscriber interface {
	SubscribeBookings(ctx context.Context, fn func([]model.Booking)) (unsubscribe func(), err error)
	SubscribeRecurring(ctx context.Context, fn func([]model.RecurringBooking)) (unsubscribe func(), err error)
}

// Writer mutates the store. Ids are assigned by the store.
type Writer interface {
	CreateBooking(ctx context.Context, b model.Booking) (string, error)
	CreateRecurring(ctx context.Context, r model.RecurringBooking) (string, error)
	GetRecurring(ctx context.Context, id string) (model.RecurringBooking, error)
	UpdateExceptions(ctx context.Context, id string, exceptions []string) error
	DeleteBooking(ctx context.Context, id string) error
	DeleteRecurring(ctx context.Context, id string) error
}

// Store is a live store.
type Store interface {
	Subscriber
	Writer
}

// SortBookings orders bookings newest first by timestamp.
func SortBookings(list []model.Booking) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Timestamp.After(list[j].Timestamp)
	})
}

// SortRecurring orders series newest first by timestamp.
func SortRecurring(list []model.RecurringBooking) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Timestamp.After(list[j].Timestamp)
	})
}
