// Package cleanup removes one-time bookings whose slot has fully elapsed.
package cleanup

import (
	"context"
	"errors"
	"sync"
	"time"

	"classbook/internal/availability"
	"classbook/internal/metrics"
	"classbook/internal/model"
	"classbook/internal/store"

	"github.com/rs/zerolog"
)

// Config holds configuration for the sweeper.
type Config struct {
	// Interval between sweeps after the initial one.
	// Default: 5 minutes.
	Interval time.Duration

	// Timeout bounds a single sweep.
	// Default: 1 minute.
	Timeout time.Duration

	// Location defines "today" and the time of day. Default: time.Local.
	Location *time.Location
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Interval: 5 * time.Minute,
		Timeout:  time.Minute,
		Location: time.Local,
	}
}

// Source provides the current snapshot.
type Source interface {
	Snapshot() availability.Snapshot
}

// Deleter removes one-time bookings from the store.
type Deleter interface {
	DeleteBooking(ctx context.Context, id string) error
}

// Result summarizes one sweep.
type Result struct {
	Checked int
	Expired int
	Deleted int
	Gone    int // removed elsewhere before this sweep reached them
	Failed  int
}

// Sweeper periodically deletes expired one-time bookings.
type Sweeper struct {
	config  *Config
	source  Source
	store   Deleter
	logger  zerolog.Logger
	now     func() time.Time
	stopCh  chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewSweeper creates a sweeper over source that deletes through deleter.
func NewSweeper(config *Config, source Source, deleter Deleter, logger *zerolog.Logger) *Sweeper {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Interval <= 0 {
		config.Interval = 5 * time.Minute
	}
	if config.Timeout <= 0 {
		config.Timeout = time.Minute
	}
	if config.Location == nil {
		config.Location = time.Local
	}

	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "sweeper").Logger()
	}

	return &Sweeper{
		config: config,
		source: source,
		store:  deleter,
		logger: l,
		now:    time.Now,
	}
}

// WithClock overrides the wall clock.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Start runs a sweep immediately and then on every interval until Stop.
func (s *Sweeper) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	stopCh := s.stopCh
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(ctx, stopCh)

	s.logger.Info().Dur("interval", s.config.Interval).Msg("Cleanup sweeper started")
}

// Stop cancels any in-flight sweep and waits for the loop to exit.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info().Msg("Cleanup sweeper stopped")
}

// Running reports whether the loop is active.
func (s *Sweeper) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Sweeper) loop(ctx context.Context, stopCh <-chan struct{}) {
	defer s.wg.Done()

	// Run immediately on start
	s.sweep(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, s.config.Timeout)
	defer cancel()
	s.SweepNow(ctx)
}

// SweepNow deletes every expired booking in the current snapshot, one at a time.
// Failed deletes are logged and skipped. A booking that is already gone is not a failure.
func (s *Sweeper) SweepNow(ctx context.Context) Result {
	now := s.now().In(s.config.Location)
	snap := s.source.Snapshot()

	var res Result
	for _, b := range snap.Bookings {
		res.Checked++
		if !IsExpired(b, now) {
			continue
		}
		res.Expired++

		if err := ctx.Err(); err != nil {
			res.Failed++
			continue
		}
		err := s.store.DeleteBooking(ctx, b.ID)
		if errors.Is(err, store.ErrNotFound) {
			res.Gone++
			s.logger.Debug().Str("booking_id", b.ID).Msg("Expired booking already removed")
			continue
		}
		if err != nil {
			res.Failed++
			s.logger.Error().Err(err).
				Str("booking_id", b.ID).
				Str("date", b.Date).
				Str("time", b.Time).
				Msg("Failed to delete expired booking")
			continue
		}
		res.Deleted++
		s.logger.Debug().Str("booking_id", b.ID).Str("date", b.Date).Str("time", b.Time).Msg("Deleted expired booking")
	}

	metrics.AddSweepDeleted(res.Deleted)
	metrics.AddSweepFailed(res.Failed)
	if res.Expired > 0 {
		s.logger.Info().
			Int("expired", res.Expired).
			Int("deleted", res.Deleted).
			Int("failed", res.Failed).
			Msg("Cleanup sweep finished")
	}
	return res
}

// IsExpired reports whether b's slot has ended relative to now.
// A booking dated before today is expired; one dated today is expired once the
// slot's end time of day is strictly before now. Unparseable records never expire.
func IsExpired(b model.Booking, now time.Time) bool {
	date, err := model.ParseDate(b.Date)
	if err != nil {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if date.Before(today) {
		return true
	}
	if !date.Equal(today) {
		return false
	}
	slot, err := model.ParseSlot(b.Time)
	if err != nil {
		return false
	}
	return slot.End < model.MinuteOfDay(now)
}
