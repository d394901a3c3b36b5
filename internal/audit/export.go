// Package audit exports the booking schedule as an Excel workbook.
package audit

import (
	"fmt"
	"io"
	"strings"
	"time"

	"classbook/internal/availability"
	"classbook/internal/model"
)

const (
	SheetBookings  = "Bookings"
	SheetRecurring = "Recurring"
)

// Column headers shared by the workbook and the sheet mirror.
var (
	BookingColumns   = []string{"Date", "Time", "Classroom", "Subject", "Teacher", "Email", "Notes", "Created"}
	RecurringColumns = []string{"Day", "Time", "Classroom", "Subject", "Teacher", "Email", "Notes", "Cancelled Dates", "Created"}
)

// Filename names an export taken at t.
func Filename(t time.Time) string {
	return fmt.Sprintf("classbook_schedule_%s.xlsx", model.FormatDate(t))
}

// BookingRow renders a one-time booking in export column order.
func BookingRow(b model.Booking, rooms []model.Room) []interface{} {
	return []interface{}{
		b.Date,
		b.Time,
		model.RoomName(rooms, b.Classroom),
		b.Subject,
		b.TeacherName,
		b.TeacherEmail,
		b.Notes,
		formatTimestamp(b.Timestamp),
	}
}

// RecurringRow renders a series in export column order.
func RecurringRow(r model.RecurringBooking, rooms []model.Room) []interface{} {
	return []interface{}{
		r.DayOfWeek,
		r.Time,
		model.RoomName(rooms, r.Classroom),
		r.Subject,
		r.TeacherName,
		r.TeacherEmail,
		r.Notes,
		strings.Join(r.Exceptions, ", "),
		formatTimestamp(r.Timestamp),
	}
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}

// ExportSchedule writes both collections of snap to w, one sheet each, in snapshot order.
func ExportSchedule(w ExcelWriter, snap availability.Snapshot) error {
	if err := w.AddSheet(SheetBookings); err != nil {
		return err
	}
	if err := w.WriteHeader(BookingColumns); err != nil {
		return fmt.Errorf("write %s header: %w", SheetBookings, err)
	}
	for _, b := range snap.Bookings {
		if err := w.WriteRow(BookingRow(b, snap.Rooms)); err != nil {
			return fmt.Errorf("write booking %s: %w", b.ID, err)
		}
	}

	if err := w.AddSheet(SheetRecurring); err != nil {
		return err
	}
	if err := w.WriteHeader(RecurringColumns); err != nil {
		return fmt.Errorf("write %s header: %w", SheetRecurring, err)
	}
	for _, r := range snap.Recurring {
		if err := w.WriteRow(RecurringRow(r, snap.Rooms)); err != nil {
			return fmt.Errorf("write recurring booking %s: %w", r.ID, err)
		}
	}
	return nil
}

// WriteWorkbook exports snap into a fresh workbook and streams it to out.
func WriteWorkbook(out io.Writer, snap availability.Snapshot) error {
	w := NewExcelizeWriter()
	defer w.Close()

	if err := ExportSchedule(w, snap); err != nil {
		return err
	}
	return w.Save(out)
}
