package notify

import (
	"fmt"
	"strings"
	"time"

	"classbook/internal/model"
)

const (
	rule        = "----------------------------------------"
	systemTitle = "Classroom Booking System"
)

// Notice carries the booking details rendered into notifications.
type Notice struct {
	Recurring    bool
	TeacherName  string
	TeacherEmail string
	Subject      string
	Classroom    string // display name
	Date         string
	DayOfWeek    string
	Time         string
	Notes        string
}

// NoticeForBooking describes a new one-time booking.
func NoticeForBooking(b model.Booking, roomName string) Notice {
	return Notice{
		TeacherName:  b.TeacherName,
		TeacherEmail: b.TeacherEmail,
		Subject:      b.Subject,
		Classroom:    roomName,
		Date:         b.Date,
		Time:         b.Time,
		Notes:        b.Notes,
	}
}

// NoticeForRecurring describes a new weekly series.
func NoticeForRecurring(r model.RecurringBooking, roomName string) Notice {
	return Notice{
		Recurring:    true,
		TeacherName:  r.TeacherName,
		TeacherEmail: r.TeacherEmail,
		Subject:      r.Subject,
		Classroom:    roomName,
		DayOfWeek:    r.DayOfWeek,
		Time:         r.Time,
		Notes:        r.Notes,
	}
}

// BookingType returns the persisted record type name.
func (n Notice) BookingType() string {
	if n.Recurring {
		return string(model.TypeRecurring)
	}
	return string(model.TypeOneTime)
}

// When is the date for one-time bookings and the weekday for series.
func (n Notice) When() string {
	if n.Recurring {
		return n.DayOfWeek
	}
	return n.Date
}

// Title is the email subject line.
func (n Notice) Title() string {
	if n.Recurring {
		return fmt.Sprintf("New Weekly Recurring Class: %s - %s", n.Classroom, n.Subject)
	}
	return fmt.Sprintf("New Booking: %s - %s", n.Classroom, n.Subject)
}

// Body renders the plain-text email body.
func (n Notice) Body(sentAt time.Time) string {
	var sb strings.Builder
	if n.Recurring {
		sb.WriteString("NEW WEEKLY RECURRING CLASS NOTIFICATION\n\n")
		sb.WriteString("A new weekly recurring class has been scheduled in the " + systemTitle + ".\n\n")
		sb.WriteString("RECURRING CLASS DETAILS:\n")
	} else {
		sb.WriteString("NEW CLASSROOM BOOKING NOTIFICATION\n\n")
		sb.WriteString("A new class has been scheduled in the " + systemTitle + ".\n\n")
		sb.WriteString("BOOKING DETAILS:\n")
	}
	sb.WriteString(rule + "\n")
	fmt.Fprintf(&sb, "Teacher: %s\n", n.TeacherName)
	fmt.Fprintf(&sb, "Email: %s\n", n.TeacherEmail)
	fmt.Fprintf(&sb, "Subject: %s\n", n.Subject)
	fmt.Fprintf(&sb, "Classroom: %s\n", n.Classroom)
	if n.Recurring {
		fmt.Fprintf(&sb, "Schedule: Every %s\n", n.DayOfWeek)
	} else {
		fmt.Fprintf(&sb, "Date: %s\n", FormatDate(n.Date))
	}
	fmt.Fprintf(&sb, "Time: %s\n", n.Time)
	if n.Notes != "" {
		fmt.Fprintf(&sb, "Notes: %s\n", n.Notes)
	}
	sb.WriteString(rule + "\n\n")

	if n.Recurring {
		fmt.Fprintf(&sb, "DURATION: This recurring class will run for %d weeks (1 year).\n", model.DefaultHorizonWeeks)
		sb.WriteString("This time slot is now blocked for the entire duration.\n\n")
	} else {
		sb.WriteString("NOTICE: This classroom is now booked for the specified time.\n")
		sb.WriteString("Please check the booking system for any scheduling needs.\n\n")
	}

	sb.WriteString(rule + "\n")
	sb.WriteString(systemTitle + "\n")
	fmt.Fprintf(&sb, "Automated notification - %s", sentAt.Format("2006-01-02 15:04:05"))
	return sb.String()
}

// Summary is the short form posted to the staff chat.
func (n Notice) Summary() string {
	lines := []string{
		n.Title(),
		fmt.Sprintf("%s, %s", n.describeWhen(), n.Time),
		"Teacher: " + n.TeacherName,
	}
	if n.Notes != "" {
		lines = append(lines, "Notes: "+n.Notes)
	}
	return strings.Join(lines, "\n")
}

func (n Notice) describeWhen() string {
	if n.Recurring {
		return "Every " + n.DayOfWeek
	}
	return FormatDate(n.Date)
}

// FormatDate renders a YYYY-MM-DD date as "Monday, June 10, 2024".
// Unparseable input is returned unchanged.
func FormatDate(date string) string {
	t, err := model.ParseDate(date)
	if err != nil {
		return date
	}
	return t.Format("Monday, January 2, 2006")
}
