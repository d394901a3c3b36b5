// Package availability answers conflict and fullness questions over a snapshot
// of one-time and recurring bookings.
//
// Every query is a pure function of the snapshot and its arguments.
package availability

import (
	"classbook/internal/model"
)

// ConflictKind names which collection produced a conflict.
type ConflictKind string

const (
	KindNone      ConflictKind = ""
	KindOneTime   ConflictKind = "one-time"
	KindRecurring ConflictKind = "recurring"
)

// Conflict is the result of a conflict check.
type Conflict struct {
	Conflict bool         `json:"conflict"`
	Kind     ConflictKind `json:"kind,omitempty"`
	// RecordID identifies the record that caused the conflict.
	RecordID string `json:"recordId,omitempty"`
}

// Snapshot is an immutable view of both collections and the room catalog.
// Callers must not mutate the slices after handing them over.
type Snapshot struct {
	Bookings  []model.Booking
	Recurring []model.RecurringBooking
	Rooms     []model.Room
}

// TotalRooms is the fullness threshold.
func (s Snapshot) TotalRooms() int {
	return len(s.Rooms)
}

// ConflictFor checks a proposed (date, slot, room) against existing records.
// One-time bookings are checked first; excludeID skips the record being edited.
func (s Snapshot) ConflictFor(date, slot, room, excludeID string) Conflict {
	for _, b := range s.Bookings {
		if b.ID != excludeID && b.Matches(date, slot, room) {
			return Conflict{Conflict: true, Kind: KindOneTime, RecordID: b.ID}
		}
	}

	day, err := model.WeekdayOf(date)
	if err != nil {
		return Conflict{}
	}
	for _, r := range s.Recurring {
		if r.ID != excludeID && r.Matches(day, slot, room) && !r.HasException(date) {
			return Conflict{Conflict: true, Kind: KindRecurring, RecordID: r.ID}
		}
	}
	return Conflict{}
}

// bookedCount sums one-time bookings and live recurring occurrences for (date, slot)
// across all rooms. A room occupied by both is counted twice.
func (s Snapshot) bookedCount(date, slot string) int {
	count := 0
	for _, b := range s.Bookings {
		if b.Date == date && b.Time == slot {
			count++
		}
	}
	day, err := model.WeekdayOf(date)
	if err != nil {
		return count
	}
	for _, r := range s.Recurring {
		if r.DayOfWeek == day && r.Time == slot && !r.HasException(date) {
			count++
		}
	}
	return count
}

// IsSlotFullyBooked reports whether the summed occupancy for (date, slot) reaches the room count.
func (s Snapshot) IsSlotFullyBooked(date, slot string) bool {
	return s.bookedCount(date, slot) >= s.TotalRooms()
}

// IsRoomBookedForSlot reports whether room is taken on date for slot by either kind.
func (s Snapshot) IsRoomBookedForSlot(date, slot, room string) bool {
	for _, b := range s.Bookings {
		if b.Matches(date, slot, room) {
			return true
		}
	}
	day, err := model.WeekdayOf(date)
	if err != nil {
		return false
	}
	for _, r := range s.Recurring {
		if r.Matches(day, slot, room) && !r.HasException(date) {
			return true
		}
	}
	return false
}

// IsRecurringSlotFullyBooked counts series on (day, slot), ignoring exceptions.
func (s Snapshot) IsRecurringSlotFullyBooked(day, slot string) bool {
	count := 0
	for _, r := range s.Recurring {
		if r.DayOfWeek == day && r.Time == slot {
			count++
		}
	}
	return count >= s.TotalRooms()
}

// IsRecurringRoomBooked reports whether any series holds the exact triple.
// Exceptions are not consulted.
func (s Snapshot) IsRecurringRoomBooked(day, slot, room string) bool {
	_, ok := s.RecurringFor(day, slot, room)
	return ok
}

// RecurringFor returns the series holding (day, slot, room), if any.
func (s Snapshot) RecurringFor(day, slot, room string) (model.RecurringBooking, bool) {
	for _, r := range s.Recurring {
		if r.Matches(day, slot, room) {
			return r, true
		}
	}
	return model.RecurringBooking{}, false
}

// Booking looks a one-time booking up by id.
func (s Snapshot) Booking(id string) (model.Booking, bool) {
	for _, b := range s.Bookings {
		if b.ID == id {
			return b, true
		}
	}
	return model.Booking{}, false
}

// RecurringByID looks a series up by id.
func (s Snapshot) RecurringByID(id string) (model.RecurringBooking, bool) {
	for _, r := range s.Recurring {
		if r.ID == id {
			return r, true
		}
	}
	return model.RecurringBooking{}, false
}
