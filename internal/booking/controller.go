// Package booking runs the teacher-facing flows: check-then-create, owner-only
// deletion and occurrence cancellation, over the live snapshot and store.
package booking

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"classbook/internal/availability"
	"classbook/internal/metrics"
	"classbook/internal/model"
	"classbook/internal/notify"
	"classbook/internal/store"

	"github.com/rs/zerolog"
)

// Notifier announces new bookings to other teachers.
type Notifier interface {
	NotifyBooking(ctx context.Context, b model.Booking, roomName string) (*notify.Result, error)
	NotifyRecurring(ctx context.Context, r model.RecurringBooking, roomName string) (*notify.Result, error)
}

// SnapshotSource provides the latest local snapshot.
type SnapshotSource interface {
	Snapshot() availability.Snapshot
}

// Config holds controller settings.
type Config struct {
	// Location defines "today". Default: time.Local.
	Location *time.Location
	// NotifyTimeout bounds one background notification fan-out. Default: 2 minutes.
	NotifyTimeout time.Duration
}

// OneTimeRequest is the form for a single booking.
type OneTimeRequest struct {
	Date      string `json:"date"`
	Time      string `json:"time"`
	Classroom string `json:"classroom"`
	Subject   string `json:"subject"`
	Notes     string `json:"notes"`
}

// RecurringRequest is the form for a weekly series.
type RecurringRequest struct {
	DayOfWeek string `json:"dayOfWeek"`
	Time      string `json:"time"`
	Classroom string `json:"classroom"`
	Subject   string `json:"subject"`
	Notes     string `json:"notes"`
}

// MyBookings lists a teacher's own records.
type MyBookings struct {
	Bookings  []model.Booking          `json:"bookings"`
	Recurring []model.RecurringBooking `json:"recurring"`
}

// Controller validates and executes booking operations for sessions.
type Controller struct {
	source   SnapshotSource
	store    store.Writer
	notifier Notifier
	config   Config
	logger   zerolog.Logger
	now      func() time.Time
	wg       sync.WaitGroup
}

// NewController creates a controller. notifier may be nil.
func NewController(source SnapshotSource, writer store.Writer, notifier Notifier, config Config, logger *zerolog.Logger) *Controller {
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.NotifyTimeout <= 0 {
		config.NotifyTimeout = 2 * time.Minute
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "booking").Logger()
	}
	return &Controller{
		source:   source,
		store:    writer,
		notifier: notifier,
		config:   config,
		logger:   l,
		now:      time.Now,
	}
}

// WithClock overrides the wall clock.
func (c *Controller) WithClock(now func() time.Time) *Controller {
	c.now = now
	return c
}

// Wait blocks until background notifications finish.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) today() string {
	return model.FormatDate(c.now().In(c.config.Location))
}

func (c *Controller) checkRoom(snap availability.Snapshot, id string) (model.Room, *Error) {
	room, ok := model.FindRoom(snap.Rooms, id)
	if !ok {
		return model.Room{}, invalid(fmt.Sprintf("Unknown classroom: %s", id))
	}
	return room, nil
}

func checkSlot(slot string) *Error {
	if !model.IsTimeSlot(slot) {
		return invalid(fmt.Sprintf("Unknown time slot: %s", slot))
	}
	return nil
}

// CreateOneTime books a room for one slot on one date.
func (c *Controller) CreateOneTime(ctx context.Context, sess *Session, req OneTimeRequest) (model.Booking, error) {
	req.Date = strings.TrimSpace(req.Date)
	sess.Select(Selection{Date: req.Date, Time: req.Time, Classroom: req.Classroom})

	if req.Date == "" || req.Time == "" || req.Classroom == "" {
		return model.Booking{}, invalid("Please select date, time, and classroom")
	}
	date, err := model.ParseDate(req.Date)
	if err != nil {
		return model.Booking{}, &Error{Kind: KindValidation, Message: "Invalid date", Err: err}
	}
	if e := checkSlot(req.Time); e != nil {
		return model.Booking{}, e
	}
	snap := c.source.Snapshot()
	room, e := c.checkRoom(snap, req.Classroom)
	if e != nil {
		return model.Booking{}, e
	}
	if model.FormatDate(date) < c.today() {
		return model.Booking{}, invalid("Cannot book a date in the past")
	}

	if conflict := snap.ConflictFor(req.Date, req.Time, req.Classroom, ""); conflict.Conflict {
		metrics.IncConflict(string(conflict.Kind))
		metrics.IncBookingCreated(string(model.TypeOneTime), "conflict")
		return model.Booking{}, conflictError(conflict.Kind)
	}

	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		return model.Booking{}, invalid("Please enter a subject")
	}

	b := model.Booking{
		Teacher:   sess.Teacher,
		Subject:   subject,
		Date:      req.Date,
		Time:      req.Time,
		Classroom: req.Classroom,
		Notes:     strings.TrimSpace(req.Notes),
		Timestamp: c.now(),
		Type:      model.TypeOneTime,
	}
	id, err := c.store.CreateBooking(ctx, b)
	if err != nil {
		metrics.IncBookingCreated(string(model.TypeOneTime), "error")
		c.logger.Error().Err(err).Str("date", b.Date).Str("time", b.Time).Msg("Failed to create booking")
		return model.Booking{}, storeError("Error creating booking. Please try again.", "Booking not found", err)
	}
	b.ID = id
	metrics.IncBookingCreated(string(model.TypeOneTime), "ok")
	sess.ClearSelection()

	c.logger.Info().
		Str("id", id).
		Str("teacher", b.TeacherEmail).
		Str("date", b.Date).
		Str("time", b.Time).
		Str("room", b.Classroom).
		Msg("Booking created")

	c.notifyAsync(func(ctx context.Context) (*notify.Result, error) {
		return c.notifier.NotifyBooking(ctx, b, room.Name)
	})
	return b, nil
}

// CreateRecurring books a room for one slot on one weekday every week.
func (c *Controller) CreateRecurring(ctx context.Context, sess *Session, req RecurringRequest) (model.RecurringBooking, error) {
	sess.Select(Selection{DayOfWeek: req.DayOfWeek, Time: req.Time, Classroom: req.Classroom})

	if req.DayOfWeek == "" || req.Time == "" || req.Classroom == "" {
		return model.RecurringBooking{}, invalid("Please select day, time, and classroom")
	}
	if !model.IsWeekday(req.DayOfWeek) {
		return model.RecurringBooking{}, invalid(fmt.Sprintf("Unknown day of week: %s", req.DayOfWeek))
	}
	if e := checkSlot(req.Time); e != nil {
		return model.RecurringBooking{}, e
	}
	snap := c.source.Snapshot()
	room, e := c.checkRoom(snap, req.Classroom)
	if e != nil {
		return model.RecurringBooking{}, e
	}

	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		return model.RecurringBooking{}, invalid("Please enter a subject")
	}

	if snap.IsRecurringRoomBooked(req.DayOfWeek, req.Time, req.Classroom) {
		metrics.IncConflict(string(availability.KindRecurring))
		metrics.IncBookingCreated(string(model.TypeRecurring), "conflict")
		err := conflictError(availability.KindRecurring)
		err.Message = "This recurring slot is already booked. Please choose a different time or classroom."
		return model.RecurringBooking{}, err
	}

	r := model.RecurringBooking{
		Teacher:    sess.Teacher,
		Subject:    subject,
		DayOfWeek:  req.DayOfWeek,
		Time:       req.Time,
		Classroom:  req.Classroom,
		Notes:      strings.TrimSpace(req.Notes),
		Timestamp:  c.now(),
		Type:       model.TypeRecurring,
		Exceptions: []string{},
	}
	id, err := c.store.CreateRecurring(ctx, r)
	if err != nil {
		metrics.IncBookingCreated(string(model.TypeRecurring), "error")
		c.logger.Error().Err(err).Str("day", r.DayOfWeek).Str("time", r.Time).Msg("Failed to create recurring booking")
		return model.RecurringBooking{}, storeError("Error creating recurring booking. Please try again.", "Recurring booking not found", err)
	}
	r.ID = id
	metrics.IncBookingCreated(string(model.TypeRecurring), "ok")
	sess.ClearSelection()

	c.logger.Info().
		Str("id", id).
		Str("teacher", r.TeacherEmail).
		Str("day", r.DayOfWeek).
		Str("time", r.Time).
		Str("room", r.Classroom).
		Msg("Recurring booking created")

	c.notifyAsync(func(ctx context.Context) (*notify.Result, error) {
		return c.notifier.NotifyRecurring(ctx, r, room.Name)
	})
	return r, nil
}

// notifyAsync runs send in the background. The caller never waits on the outcome.
func (c *Controller) notifyAsync(send func(context.Context) (*notify.Result, error)) {
	if c.notifier == nil {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.config.NotifyTimeout)
		defer cancel()

		res, err := send(ctx)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Booking notification not sent")
			return
		}
		c.logger.Info().
			Int("successful", res.Successful).
			Int("total", res.Total).
			Float64("ratio", res.Ratio()).
			Msg("Booking notification finished")
	}()
}

// DeleteBooking removes the caller's own one-time booking.
func (c *Controller) DeleteBooking(ctx context.Context, sess *Session, id string) error {
	b, ok := c.source.Snapshot().Booking(id)
	if !ok {
		return &Error{Kind: KindNotFound, Message: "Booking not found"}
	}
	if !b.OwnedBy(sess.Teacher.TeacherID) {
		return forbidden("You can only delete your own bookings")
	}
	if err := c.store.DeleteBooking(ctx, id); err != nil {
		c.logger.Error().Err(err).Str("id", id).Msg("Failed to delete booking")
		return storeError("Error deleting booking. Please try again.", "Booking not found", err)
	}
	metrics.IncBookingDeleted(string(model.TypeOneTime))
	c.logger.Info().Str("id", id).Str("teacher", sess.Teacher.TeacherEmail).Msg("Booking deleted")
	return nil
}

func (c *Controller) ownedRecurring(ctx context.Context, sess *Session, id, action string) (model.RecurringBooking, error) {
	r, err := c.store.GetRecurring(ctx, id)
	if err != nil {
		return model.RecurringBooking{}, storeError("Error loading recurring booking. Please try again.", "Recurring booking not found", err)
	}
	if !r.OwnedBy(sess.Teacher.TeacherID) {
		return model.RecurringBooking{}, forbidden(fmt.Sprintf("You can only %s your own recurring classes", action))
	}
	return r, nil
}

// DeleteRecurring removes the caller's own series with every occurrence.
func (c *Controller) DeleteRecurring(ctx context.Context, sess *Session, id string) error {
	if _, err := c.ownedRecurring(ctx, sess, id, "delete"); err != nil {
		return err
	}
	if err := c.store.DeleteRecurring(ctx, id); err != nil {
		c.logger.Error().Err(err).Str("id", id).Msg("Failed to delete recurring booking")
		return storeError("Error deleting recurring booking. Please try again.", "Recurring booking not found", err)
	}
	metrics.IncBookingDeleted(string(model.TypeRecurring))
	c.logger.Info().Str("id", id).Str("teacher", sess.Teacher.TeacherEmail).Msg("Recurring booking deleted")
	return nil
}

// CancelOccurrence suppresses one dated occurrence of the caller's series.
func (c *Controller) CancelOccurrence(ctx context.Context, sess *Session, id, date string) (model.RecurringBooking, error) {
	r, err := c.ownedRecurring(ctx, sess, id, "cancel")
	if err != nil {
		return model.RecurringBooking{}, err
	}

	day, perr := model.WeekdayOf(strings.TrimSpace(date))
	if perr != nil {
		return model.RecurringBooking{}, invalid("Please select a date to cancel")
	}
	date = strings.TrimSpace(date)
	if day != r.DayOfWeek {
		return model.RecurringBooking{}, invalid(fmt.Sprintf("This date is not a %s. Please select the correct day.", r.DayOfWeek))
	}

	updated, added := availability.AddException(r.Exceptions, date)
	if !added {
		return model.RecurringBooking{}, invalid("This class is already cancelled")
	}
	if err := c.store.UpdateExceptions(ctx, id, updated); err != nil {
		c.logger.Error().Err(err).Str("id", id).Str("date", date).Msg("Failed to cancel occurrence")
		return model.RecurringBooking{}, storeError("Error cancelling class. Please try again.", "Recurring booking not found", err)
	}
	metrics.IncOccurrenceChange("cancel")
	c.logger.Info().Str("id", id).Str("date", date).Msg("Occurrence cancelled")

	r.Exceptions = updated
	return r, nil
}

// RestoreOccurrence lifts a cancellation. Restoring a live occurrence is a no-op write.
func (c *Controller) RestoreOccurrence(ctx context.Context, sess *Session, id, date string) (model.RecurringBooking, error) {
	r, err := c.ownedRecurring(ctx, sess, id, "restore")
	if err != nil {
		return model.RecurringBooking{}, err
	}
	date = strings.TrimSpace(date)
	if _, perr := model.ParseDate(date); perr != nil {
		return model.RecurringBooking{}, invalid("Please select a date to restore")
	}

	updated, removed := availability.RemoveException(r.Exceptions, date)
	if err := c.store.UpdateExceptions(ctx, id, updated); err != nil {
		c.logger.Error().Err(err).Str("id", id).Str("date", date).Msg("Failed to restore occurrence")
		return model.RecurringBooking{}, storeError("Error restoring class. Please try again.", "Recurring booking not found", err)
	}
	if removed {
		metrics.IncOccurrenceChange("restore")
		c.logger.Info().Str("id", id).Str("date", date).Msg("Occurrence restored")
	}

	r.Exceptions = updated
	return r, nil
}

// Conflict reports what, if anything, occupies the triple.
func (c *Controller) Conflict(date, slot, room, excludeID string) (availability.Conflict, error) {
	if _, err := model.ParseDate(date); err != nil {
		return availability.Conflict{}, &Error{Kind: KindValidation, Message: "Invalid date", Err: err}
	}
	if e := checkSlot(slot); e != nil {
		return availability.Conflict{}, e
	}
	return c.source.Snapshot().ConflictFor(date, slot, room, excludeID), nil
}

// DayView is the per-slot grid for a date. An empty date means today.
func (c *Controller) DayView(date string) ([]availability.SlotStatus, error) {
	if date == "" {
		date = c.today()
	}
	if _, err := model.ParseDate(date); err != nil {
		return nil, &Error{Kind: KindValidation, Message: "Invalid date", Err: err}
	}
	return c.source.Snapshot().Day(date), nil
}

// RecurringView is the per-slot grid for a weekday. The name is matched case-insensitively.
func (c *Controller) RecurringView(day string) ([]availability.SlotStatus, error) {
	wd, ok := model.ParseWeekday(day)
	if !ok {
		return nil, invalid(fmt.Sprintf("Unknown day of week: %s", day))
	}
	return c.source.Snapshot().Week(model.Weekdays[wd]), nil
}

// Today lists today's one-time bookings in slot order.
func (c *Controller) Today() []model.Booking {
	today := c.today()
	var out []model.Booking
	for _, b := range c.source.Snapshot().Bookings {
		if b.Date == today {
			out = append(out, b)
		}
	}
	sortBySlot(out)
	return out
}

// Mine lists the session teacher's records, newest first.
func (c *Controller) Mine(sess *Session) MyBookings {
	snap := c.source.Snapshot()
	out := MyBookings{Bookings: []model.Booking{}, Recurring: []model.RecurringBooking{}}
	for _, b := range snap.Bookings {
		if b.OwnedBy(sess.Teacher.TeacherID) {
			out.Bookings = append(out.Bookings, b)
		}
	}
	for _, r := range snap.Recurring {
		if r.OwnedBy(sess.Teacher.TeacherID) {
			out.Recurring = append(out.Recurring, r.Clone())
		}
	}
	return out
}

// Rooms returns the room catalog.
func (c *Controller) Rooms() []model.Room {
	return c.source.Snapshot().Rooms
}

// Snapshot returns the current view of both collections.
func (c *Controller) Snapshot() availability.Snapshot {
	return c.source.Snapshot()
}

func sortBySlot(list []model.Booking) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Time < list[j].Time
	})
}
