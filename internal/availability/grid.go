package availability

import "classbook/internal/model"

// RoomStatus describes one room within a slot.
type RoomStatus struct {
	Room        model.Room   `json:"room"`
	Booked      bool         `json:"booked"`
	Kind        ConflictKind `json:"kind,omitempty"`
	RecordID    string       `json:"recordId,omitempty"`
	Subject     string       `json:"subject,omitempty"`
	TeacherName string       `json:"teacherName,omitempty"`
}

// SlotStatus describes one slot of a day grid.
type SlotStatus struct {
	Slot  string       `json:"slot"`
	Full  bool         `json:"full"`
	Rooms []RoomStatus `json:"rooms"`
}

// Day builds the slot grid for a concrete date.
func (s Snapshot) Day(date string) []SlotStatus {
	grid := make([]SlotStatus, 0, len(model.TimeSlots))
	for _, slot := range model.TimeSlots {
		status := SlotStatus{Slot: slot, Full: s.IsSlotFullyBooked(date, slot)}
		for _, room := range s.Rooms {
			rs := RoomStatus{Room: room}
			c := s.ConflictFor(date, slot, room.ID, "")
			if c.Conflict {
				rs.Booked = true
				rs.Kind = c.Kind
				rs.RecordID = c.RecordID
				rs.Subject, rs.TeacherName = s.describe(c)
			}
			status.Rooms = append(status.Rooms, rs)
		}
		grid = append(grid, status)
	}
	return grid
}

// Week builds the slot grid for a weekday using the recurring predicates.
func (s Snapshot) Week(day string) []SlotStatus {
	grid := make([]SlotStatus, 0, len(model.TimeSlots))
	for _, slot := range model.TimeSlots {
		status := SlotStatus{Slot: slot, Full: s.IsRecurringSlotFullyBooked(day, slot)}
		for _, room := range s.Rooms {
			rs := RoomStatus{Room: room}
			if r, ok := s.RecurringFor(day, slot, room.ID); ok {
				rs.Booked = true
				rs.Kind = KindRecurring
				rs.RecordID = r.ID
				rs.Subject = r.Subject
				rs.TeacherName = r.TeacherName
			}
			status.Rooms = append(status.Rooms, rs)
		}
		grid = append(grid, status)
	}
	return grid
}

func (s Snapshot) describe(c Conflict) (subject, teacher string) {
	switch c.Kind {
	case KindOneTime:
		if b, ok := s.Booking(c.RecordID); ok {
			return b.Subject, b.TeacherName
		}
	case KindRecurring:
		if r, ok := s.RecurringByID(c.RecordID); ok {
			return r.Subject, r.TeacherName
		}
	}
	return "", ""
}
