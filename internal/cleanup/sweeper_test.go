package cleanup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"classbook/internal/availability"
	"classbook/internal/model"
	"classbook/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	mu   sync.Mutex
	snap availability.Snapshot
}

func (s *staticSource) Snapshot() availability.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

type recordingDeleter struct {
	mu      sync.Mutex
	deleted []string
	calls   int
	fail    map[string]bool
	gone    map[string]bool
}

func (d *recordingDeleter) DeleteBooking(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.fail[id] {
		return errors.New("permission denied")
	}
	if d.gone[id] {
		return fmt.Errorf("delete booking %s: %w", id, store.ErrNotFound)
	}
	d.deleted = append(d.deleted, id)
	return nil
}

func (d *recordingDeleter) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func at(date string, hour, minute int) time.Time {
	d, _ := time.Parse(model.DateLayout, date)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, time.UTC)
}

func TestIsExpired(t *testing.T) {
	now := at("2024-06-10", 14, 30)

	tests := []struct {
		name string
		date string
		slot string
		want bool
	}{
		{name: "earlier slot today", date: "2024-06-10", slot: "13:00-14:00", want: true},
		{name: "current slot today", date: "2024-06-10", slot: "14:00-15:00", want: false},
		{name: "later slot today", date: "2024-06-10", slot: "17:00-18:00", want: false},
		{name: "yesterday any slot", date: "2024-06-09", slot: "17:00-18:00", want: true},
		{name: "yesterday bad slot", date: "2024-06-09", slot: "whenever", want: true},
		{name: "tomorrow", date: "2024-06-11", slot: "08:00-09:00", want: false},
		{name: "bad date", date: "10/06/2024", slot: "08:00-09:00", want: false},
		{name: "bad slot today", date: "2024-06-10", slot: "nope", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsExpired(model.Booking{Date: tt.date, Time: tt.slot}, now))
		})
	}
}

func TestIsExpired_EndMinuteIsNotYetExpired(t *testing.T) {
	b := model.Booking{Date: "2024-06-10", Time: "13:00-14:00"}
	assert.False(t, IsExpired(b, at("2024-06-10", 14, 0)))
	assert.True(t, IsExpired(b, at("2024-06-10", 14, 1)))
}

func TestSweepNow_SkipsFailures(t *testing.T) {
	src := &staticSource{snap: availability.Snapshot{Bookings: []model.Booking{
		{ID: "a", Date: "2024-06-09", Time: "09:00-10:00"},
		{ID: "b", Date: "2024-06-10", Time: "13:00-14:00"},
		{ID: "c", Date: "2024-06-10", Time: "14:00-15:00"},
		{ID: "d", Date: "2024-06-01", Time: "10:00-11:00"},
	}}}
	del := &recordingDeleter{fail: map[string]bool{"a": true}}

	s := NewSweeper(&Config{Location: time.UTC}, src, del, nil).
		WithClock(func() time.Time { return at("2024-06-10", 14, 30) })

	res := s.SweepNow(context.Background())
	assert.Equal(t, Result{Checked: 4, Expired: 3, Deleted: 2, Failed: 1}, res)
	assert.Equal(t, []string{"b", "d"}, del.deleted)
}

func TestSweepNow_AlreadyDeletedIsNotAFailure(t *testing.T) {
	src := &staticSource{snap: availability.Snapshot{Bookings: []model.Booking{
		{ID: "a", Date: "2024-06-09", Time: "09:00-10:00"},
		{ID: "b", Date: "2024-06-09", Time: "10:00-11:00"},
	}}}
	del := &recordingDeleter{gone: map[string]bool{"a": true}}

	s := NewSweeper(&Config{Location: time.UTC}, src, del, nil).
		WithClock(func() time.Time { return at("2024-06-10", 14, 30) })

	res := s.SweepNow(context.Background())
	assert.Equal(t, Result{Checked: 2, Expired: 2, Deleted: 1, Gone: 1}, res)
	assert.Equal(t, []string{"b"}, del.deleted)
}

func TestSweepNow_TwoSweepersShareOneStore(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	_, err := mem.CreateBooking(ctx, model.Booking{Date: "2024-06-09", Time: "09:00-10:00", Classroom: "room-1"})
	require.NoError(t, err)
	bookings, err := listBookings(ctx, mem)
	require.NoError(t, err)

	// Both sessions hold the same stale snapshot.
	src := &staticSource{snap: availability.Snapshot{Bookings: bookings}}
	clock := func() time.Time { return at("2024-06-10", 14, 30) }
	first := NewSweeper(&Config{Location: time.UTC}, src, mem, nil).WithClock(clock)
	second := NewSweeper(&Config{Location: time.UTC}, src, mem, nil).WithClock(clock)

	assert.Equal(t, 1, first.SweepNow(ctx).Deleted)
	res := second.SweepNow(ctx)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, 1, res.Gone)
}

func listBookings(ctx context.Context, mem *store.Memory) ([]model.Booking, error) {
	var out []model.Booking
	stop, err := mem.SubscribeBookings(ctx, func(list []model.Booking) { out = list })
	if err != nil {
		return nil, err
	}
	stop()
	return out, nil
}

func TestSweepNow_UsesConfiguredLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	src := &staticSource{snap: availability.Snapshot{Bookings: []model.Booking{
		{ID: "a", Date: "2024-06-10", Time: "13:00-14:00"},
	}}}
	del := &recordingDeleter{}

	// 11:30 UTC is 14:30 at UTC+3.
	s := NewSweeper(&Config{Location: loc}, src, del, nil).
		WithClock(func() time.Time { return at("2024-06-10", 11, 30) })

	assert.Equal(t, 1, s.SweepNow(context.Background()).Deleted)
}

func TestSweepNow_CanceledContext(t *testing.T) {
	src := &staticSource{snap: availability.Snapshot{Bookings: []model.Booking{{ID: "a", Date: "2000-01-01", Time: "09:00-10:00"}}}}
	del := &recordingDeleter{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewSweeper(nil, src, del, nil).SweepNow(ctx)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 0, del.Calls())
}

func TestSweeper_StartRunsImmediatelyAndStops(t *testing.T) {
	src := &staticSource{snap: availability.Snapshot{Bookings: []model.Booking{
		{ID: "old", Date: "2000-01-01", Time: "09:00-10:00"},
	}}}
	del := &recordingDeleter{fail: map[string]bool{"old": true}}

	s := NewSweeper(&Config{Interval: 20 * time.Millisecond}, src, del, nil)
	s.Start()
	s.Start()
	require.True(t, s.Running())

	assert.Eventually(t, func() bool { return del.Calls() >= 1 }, time.Second, 5*time.Millisecond, "initial sweep")
	assert.Eventually(t, func() bool { return del.Calls() >= 3 }, 2*time.Second, 5*time.Millisecond, "interval sweeps keep going after failures")

	s.Stop()
	s.Stop()
	assert.False(t, s.Running())

	after := del.Calls()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, after, del.Calls(), "no sweeps after stop")
}

func TestNewSweeper_Defaults(t *testing.T) {
	s := NewSweeper(&Config{}, &staticSource{}, &recordingDeleter{}, nil)
	assert.Equal(t, 5*time.Minute, s.config.Interval)
	assert.Equal(t, time.Minute, s.config.Timeout)
	assert.NotNil(t, s.config.Location)
}
