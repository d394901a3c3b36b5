package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process logger. An empty or unknown level means info.
func New(out io.Writer, level string) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}
	output := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	return zerolog.New(output).Level(ParseLevel(level)).With().Timestamp().Logger()
}

// ParseLevel maps a config value to a zerolog level.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// Component returns a child logger tagged with name.
func Component(logger *zerolog.Logger, name string) *zerolog.Logger {
	l := logger.With().Str("component", name).Logger()
	return &l
}

// Adapter exposes a zerolog logger through a key/value interface.
type Adapter struct {
	logger *zerolog.Logger
}

// NewAdapter wraps logger. A nil logger discards everything.
func NewAdapter(logger *zerolog.Logger) *Adapter {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Adapter{logger: logger}
}

func (a *Adapter) Info(msg string, fields ...interface{}) {
	withFields(a.logger.Info(), fields).Msg(msg)
}

func (a *Adapter) Error(msg string, fields ...interface{}) {
	withFields(a.logger.Error(), fields).Msg(msg)
}

func (a *Adapter) Debug(msg string, fields ...interface{}) {
	withFields(a.logger.Debug(), fields).Msg(msg)
}

// withFields reads fields as alternating keys and values. A trailing key without a value is logged under "extra".
func withFields(e *zerolog.Event, fields []interface{}) *zerolog.Event {
	for i := 0; i < len(fields); i += 2 {
		if i+1 >= len(fields) {
			e = e.Interface("extra", fields[i])
			break
		}
		key, ok := fields[i].(string)
		if !ok {
			key = fmt.Sprint(fields[i])
		}
		switch v := fields[i+1].(type) {
		case error:
			e = e.AnErr(key, v)
		case string:
			e = e.Str(key, v)
		case int:
			e = e.Int(key, v)
		case time.Duration:
			e = e.Dur(key, v)
		default:
			e = e.Interface(key, v)
		}
	}
	return e
}
