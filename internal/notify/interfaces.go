package notify

import (
	"context"
	"errors"
	"strings"
)

// ErrNotConfigured is returned when no email endpoint is set.
var ErrNotConfigured = errors.New("email service not configured")

// Email is one outgoing message to a single recipient.
type Email struct {
	To      string
	Subject string
	Body    string
	Notice  Notice
}

// Sender delivers a single email.
type Sender interface {
	Send(ctx context.Context, e Email) error
}

// ChatPoster publishes a summary to a shared staff channel.
type ChatPoster interface {
	Post(ctx context.Context, text string) error
}

// Roster lists the addresses that receive notifications.
type Roster interface {
	Emails() []string
}

// StaticRoster is a fixed list of addresses.
type StaticRoster []string

// Emails implements Roster.
func (r StaticRoster) Emails() []string {
	return r
}

// Logger interface for logging.
type Logger interface {
	Info(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Debug(msg string, fields ...interface{})
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{}) {}

// Recipients returns roster addresses except the acting teacher's and blank entries.
func Recipients(roster []string, exclude string) []string {
	exclude = strings.ToLower(strings.TrimSpace(exclude))
	out := make([]string, 0, len(roster))
	for _, email := range roster {
		email = strings.TrimSpace(email)
		if email == "" || strings.ToLower(email) == exclude {
			continue
		}
		out = append(out, email)
	}
	return out
}
