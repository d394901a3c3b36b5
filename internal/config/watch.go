package config

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TeachersWatcher keeps a Roster in step with teachers.yaml by polling the
// file's modification time and size.
type TeachersWatcher struct {
	path     string
	interval time.Duration
	roster   *Roster
	logger   zerolog.Logger

	mu      sync.Mutex
	modTime time.Time
	size    int64
}

// NewTeachersWatcher creates a watcher that writes into roster.
func NewTeachersWatcher(path string, interval time.Duration, roster *Roster, logger *zerolog.Logger) *TeachersWatcher {
	if path == "" {
		path = "configs/teachers.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "teachers_watch").Logger()
	}
	return &TeachersWatcher{path: path, interval: interval, roster: roster, logger: l}
}

// Reload replaces the roster if the file changed since the last good load.
// A file that fails to parse leaves the previous roster in place.
func (w *TeachersWatcher) Reload() (bool, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.modTime.IsZero() && info.ModTime().Equal(w.modTime) && info.Size() == w.size {
		return false, nil
	}

	cfg, err := LoadTeachers(w.path)
	if err != nil {
		return false, err
	}
	w.roster.Set(cfg.Teachers)
	w.modTime = info.ModTime()
	w.size = info.Size()
	return true, nil
}

// Run reloads every interval until ctx is done.
func (w *TeachersWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			changed, err := w.Reload()
			if err != nil {
				w.logger.Warn().Err(err).Str("path", w.path).Msg("Teacher roster reload failed")
				continue
			}
			if changed {
				w.logger.Info().Int("teachers", len(w.roster.Emails())).Msg("Teacher roster reloaded")
			}
		}
	}
}
