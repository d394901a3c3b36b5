package model

import (
	"strings"
	"time"
)

// RecordType tags persisted records with their collection kind.
type RecordType string

const (
	TypeOneTime   RecordType = "one-time"
	TypeRecurring RecordType = "recurring"
)

// Teacher is the identity stored on every record.
type Teacher struct {
	TeacherID    string `json:"teacherId"`
	TeacherEmail string `json:"teacherEmail"`
	TeacherName  string `json:"teacherName"`
}

// NewTeacher builds a Teacher, falling back to the email local part for the name.
func NewTeacher(id, email, name string) Teacher {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	if name == "" {
		name = EmailLocalPart(email)
	}
	return Teacher{TeacherID: id, TeacherEmail: email, TeacherName: name}
}

// OwnedBy reports whether the record belongs to the given user id.
func (t Teacher) OwnedBy(userID string) bool {
	return userID != "" && t.TeacherID == userID
}

// EmailLocalPart returns the part of an address before '@'.
func EmailLocalPart(email string) string {
	if i := strings.IndexByte(email, '@'); i >= 0 {
		return email[:i]
	}
	return email
}

// Booking is a one-time reservation of a room for a slot on a date.
type Booking struct {
	ID string `json:"id"`
	Teacher
	Subject   string     `json:"subject"`
	Date      string     `json:"date"`      // YYYY-MM-DD
	Time      string     `json:"time"`      // HH:MM-HH:MM
	Classroom string     `json:"classroom"` // room id
	Notes     string     `json:"notes"`
	Timestamp time.Time  `json:"timestamp"`
	Type      RecordType `json:"type"`
}

// Matches reports whether the booking occupies the given triple.
func (b Booking) Matches(date, slot, room string) bool {
	return b.Date == date && b.Time == slot && b.Classroom == room
}

// RecurringBooking reserves a room for a slot on one weekday every week.
type RecurringBooking struct {
	ID string `json:"id"`
	Teacher
	Subject    string     `json:"subject"`
	DayOfWeek  string     `json:"dayOfWeek"`
	Time       string     `json:"time"`
	Classroom  string     `json:"classroom"`
	Notes      string     `json:"notes"`
	Timestamp  time.Time  `json:"timestamp"`
	Type       RecordType `json:"type"`
	Exceptions []string   `json:"exceptions"`
}

// Matches reports whether the series covers the weekday triple, ignoring exceptions.
func (r RecurringBooking) Matches(day, slot, room string) bool {
	return r.DayOfWeek == day && r.Time == slot && r.Classroom == room
}

// HasException reports whether the occurrence on date is cancelled.
func (r RecurringBooking) HasException(date string) bool {
	for _, d := range r.Exceptions {
		if d == date {
			return true
		}
	}
	return false
}

// LiveOn reports whether the series has an uncancelled occurrence on date.
func (r RecurringBooking) LiveOn(date string) bool {
	day, err := WeekdayOf(date)
	if err != nil {
		return false
	}
	return r.DayOfWeek == day && !r.HasException(date)
}

// DefaultHorizonWeeks bounds occurrence listings.
const DefaultHorizonWeeks = 52

// Occurrences lists live occurrence dates starting at from (inclusive) for the given number of weeks.
func (r RecurringBooking) Occurrences(from time.Time, weeks int) []string {
	if weeks <= 0 {
		weeks = DefaultHorizonWeeks
	}
	target, ok := ParseWeekday(r.DayOfWeek)
	if !ok {
		return nil
	}

	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(target) - int(start.Weekday()) + 7) % 7
	first := start.AddDate(0, 0, offset)

	dates := make([]string, 0, weeks)
	for i := 0; i < weeks; i++ {
		d := FormatDate(first.AddDate(0, 0, 7*i))
		if r.HasException(d) {
			continue
		}
		dates = append(dates, d)
	}
	return dates
}

// Clone returns a copy with its own exceptions slice.
func (r RecurringBooking) Clone() RecurringBooking {
	if r.Exceptions != nil {
		r.Exceptions = append(make([]string, 0, len(r.Exceptions)), r.Exceptions...)
	}
	return r
}
