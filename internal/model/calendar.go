package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the ISO calendar date format used on every record.
const DateLayout = "2006-01-02"

// TimeSlots is the fixed daily schedule.
var TimeSlots = []string{
	"08:00-09:00",
	"09:00-10:00",
	"10:00-11:00",
	"11:00-12:00",
	"12:00-13:00",
	"13:00-14:00",
	"14:00-15:00",
	"15:00-16:00",
	"16:00-17:00",
	"17:00-18:00",
}

// Weekdays lists day names indexed by time.Weekday.
var Weekdays = []string{
	"Sunday",
	"Monday",
	"Tuesday",
	"Wednesday",
	"Thursday",
	"Friday",
	"Saturday",
}

// IsTimeSlot reports whether s is one of the enumerated slots.
func IsTimeSlot(s string) bool {
	for _, slot := range TimeSlots {
		if slot == s {
			return true
		}
	}
	return false
}

// Slot is a parsed HH:MM-HH:MM interval in minutes since midnight.
type Slot struct {
	Start int
	End   int
}

// ParseSlot parses an HH:MM-HH:MM slot string.
func ParseSlot(s string) (Slot, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return Slot{}, fmt.Errorf("invalid slot format: %s", s)
	}
	start, err := parseClock(parts[0])
	if err != nil {
		return Slot{}, fmt.Errorf("slot start: %w", err)
	}
	end, err := parseClock(parts[1])
	if err != nil {
		return Slot{}, fmt.Errorf("slot end: %w", err)
	}
	if end <= start {
		return Slot{}, fmt.Errorf("slot %s ends before it starts", s)
	}
	return Slot{Start: start, End: end}, nil
}

func parseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time format: %s", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 24 {
		return 0, fmt.Errorf("invalid hour: %s", parts[0])
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute: %s", parts[1])
	}
	return hour*60 + minute, nil
}

// MinuteOfDay returns minutes since midnight of t in its own location.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// WeekdayOf returns the weekday name for a YYYY-MM-DD date.
func WeekdayOf(date string) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return Weekdays[t.Weekday()], nil
}

// ParseWeekday resolves a weekday name (case-insensitive).
func ParseWeekday(name string) (time.Weekday, bool) {
	for i, d := range Weekdays {
		if strings.EqualFold(d, strings.TrimSpace(name)) {
			return time.Weekday(i), true
		}
	}
	return 0, false
}

// IsWeekday reports whether name is exactly one of the seven stored day names.
func IsWeekday(name string) bool {
	for _, d := range Weekdays {
		if d == name {
			return true
		}
	}
	return false
}
