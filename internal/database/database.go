package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"classbook/internal/events"
	"classbook/internal/model"
	"classbook/internal/store"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	bookingColumns   = `id, teacher_id, teacher_email, teacher_name, subject, date, time, classroom, notes, timestamp`
	recurringColumns = `id, teacher_id, teacher_email, teacher_name, subject, day_of_week, time, classroom, notes, exceptions, timestamp`
)

// Store is the SQLite-backed live store.
type Store struct {
	db     *sql.DB
	path   string
	bus    *events.EventBus
	logger *zerolog.Logger
	now    func() time.Time

	redis    *redis.Client
	cacheTTL time.Duration
}

// NewStore opens the database at path and creates tables if they don't exist.
func NewStore(path string, logger *zerolog.Logger) (*Store, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	l := logger.With().Str("component", "database").Logger()
	s := &Store{
		db:     db,
		path:   path,
		bus:    events.NewEventBus(),
		logger: &l,
		now:    time.Now,
	}
	s.bus.OnError(func(e events.Event, err error) {
		s.logger.Error().Err(err).Str("event", e.Type).Msg("Subscriber failed")
	})

	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	s.logger.Info().Str("path", path).Msg("Database initialized")
	return s, nil
}

func (s *Store) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS bookings (
			id TEXT PRIMARY KEY,
			teacher_id TEXT NOT NULL,
			teacher_email TEXT NOT NULL,
			teacher_name TEXT NOT NULL,
			subject TEXT NOT NULL,
			date TEXT NOT NULL,
			time TEXT NOT NULL,
			classroom TEXT NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			timestamp INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS recurring_bookings (
			id TEXT PRIMARY KEY,
			teacher_id TEXT NOT NULL,
			teacher_email TEXT NOT NULL,
			teacher_name TEXT NOT NULL,
			subject TEXT NOT NULL,
			day_of_week TEXT NOT NULL,
			time TEXT NOT NULL,
			classroom TEXT NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			exceptions TEXT NOT NULL DEFAULT '[]',
			timestamp INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_slot ON bookings(date, time, classroom)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_timestamp ON bookings(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_teacher ON bookings(teacher_id)`,
		`CREATE INDEX IF NOT EXISTS idx_recurring_slot ON recurring_bookings(day_of_week, time, classroom)`,
		`CREATE INDEX IF NOT EXISTS idx_recurring_timestamp ON recurring_bookings(timestamp)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return s.ensureNewColumns()
}

// ensureNewColumns adds columns introduced after the first schema.
func (s *Store) ensureNewColumns() error {
	migrations := []string{
		`ALTER TABLE bookings ADD COLUMN notes TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE recurring_bookings ADD COLUMN notes TEXT NOT NULL DEFAULT ''`,
	}
	for _, m := range migrations {
		_, err := s.db.Exec(m)
		if err != nil && !strings.Contains(strings.ToLower(err.Error()), "duplicate column") {
			return fmt.Errorf("migration %q: %w", m, err)
		}
	}
	return nil
}

// WithClock overrides the timestamp source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// UseRedisCache configures an optional read-through cache of collection listings.
func (s *Store) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	s.redis = redisClient
	s.cacheTTL = ttl
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func cacheKey(c store.Collection) string {
	return "classbook:" + string(c)
}

func (s *Store) readCache(ctx context.Context, key string, out any) bool {
	if s.redis == nil || s.cacheTTL <= 0 {
		return false
	}
	val, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (s *Store) writeCache(ctx context.Context, key string, val any) {
	if s.redis == nil || s.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = s.redis.Set(ctx, key, data, s.cacheTTL).Err()
}

func (s *Store) invalidate(ctx context.Context, c store.Collection) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, cacheKey(c)).Err(); err != nil {
		s.logger.Warn().Err(err).Str("collection", string(c)).Msg("Cache invalidation failed")
	}
}

// ListBookings returns every one-time booking, newest first.
func (s *Store) ListBookings(ctx context.Context) ([]model.Booking, error) {
	var out []model.Booking
	if s.readCache(ctx, cacheKey(store.Bookings), &out) {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+bookingColumns+` FROM bookings ORDER BY timestamp DESC`)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	out = []model.Booking{}
	for rows.Next() {
		var b model.Booking
		var ts int64
		if err := rows.Scan(&b.ID, &b.TeacherID, &b.TeacherEmail, &b.TeacherName, &b.Subject,
			&b.Date, &b.Time, &b.Classroom, &b.Notes, &ts); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		b.Type = model.TypeOneTime
		b.Timestamp = time.Unix(0, ts).UTC()
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}

	s.writeCache(ctx, cacheKey(store.Bookings), out)
	return out, nil
}

// ListRecurring returns every weekly series, newest first.
func (s *Store) ListRecurring(ctx context.Context) ([]model.RecurringBooking, error) {
	var out []model.RecurringBooking
	if s.readCache(ctx, cacheKey(store.RecurringBookings), &out) {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+recurringColumns+` FROM recurring_bookings ORDER BY timestamp DESC`)
	if err != nil {
		return nil, fmt.Errorf("list recurring bookings: %w", err)
	}
	defer rows.Close()

	out = []model.RecurringBooking{}
	for rows.Next() {
		r, err := scanRecurring(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list recurring bookings: %w", err)
	}

	s.writeCache(ctx, cacheKey(store.RecurringBookings), out)
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecurring(row scanner) (model.RecurringBooking, error) {
	var r model.RecurringBooking
	var exceptions string
	var ts int64
	if err := row.Scan(&r.ID, &r.TeacherID, &r.TeacherEmail, &r.TeacherName, &r.Subject,
		&r.DayOfWeek, &r.Time, &r.Classroom, &r.Notes, &exceptions, &ts); err != nil {
		return r, fmt.Errorf("scan recurring booking: %w", err)
	}
	r.Exceptions = []string{}
	if exceptions != "" {
		if err := json.Unmarshal([]byte(exceptions), &r.Exceptions); err != nil {
			return r, fmt.Errorf("decode exceptions of %s: %w", r.ID, err)
		}
	}
	r.Type = model.TypeRecurring
	r.Timestamp = time.Unix(0, ts).UTC()
	return r, nil
}

// SubscribeBookings implements store.Subscriber. Listings that fail after the first are logged and skipped.
func (s *Store) SubscribeBookings(ctx context.Context, fn func([]model.Booking)) (func(), error) {
	list, err := s.ListBookings(ctx)
	if err != nil {
		return nil, err
	}
	unsubscribe := s.bus.Subscribe(events.BookingsChanged, func(events.Event) error {
		list, err := s.ListBookings(context.Background())
		if err != nil {
			return err
		}
		fn(list)
		return nil
	})
	fn(list)
	return unsubscribe, nil
}

// SubscribeRecurring implements store.Subscriber.
func (s *Store) SubscribeRecurring(ctx context.Context, fn func([]model.RecurringBooking)) (func(), error) {
	list, err := s.ListRecurring(ctx)
	if err != nil {
		return nil, err
	}
	unsubscribe := s.bus.Subscribe(events.RecurringChanged, func(events.Event) error {
		list, err := s.ListRecurring(context.Background())
		if err != nil {
			return err
		}
		fn(list)
		return nil
	})
	fn(list)
	return unsubscribe, nil
}

func (s *Store) changed(ctx context.Context, c store.Collection, id string) {
	s.invalidate(ctx, c)
	eventType := events.BookingsChanged
	if c == store.RecurringBookings {
		eventType = events.RecurringChanged
	}
	s.bus.Publish(events.Event{Type: eventType, RecordID: id})
}

// CreateBooking implements store.Writer.
func (s *Store) CreateBooking(ctx context.Context, b model.Booking) (string, error) {
	b.ID = uuid.NewString()
	if b.Timestamp.IsZero() {
		b.Timestamp = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bookings (`+bookingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.TeacherID, b.TeacherEmail, b.TeacherName, b.Subject,
		b.Date, b.Time, b.Classroom, b.Notes, b.Timestamp.UnixNano())
	if err != nil {
		return "", fmt.Errorf("insert booking: %w", err)
	}
	s.logger.Debug().Str("id", b.ID).Str("date", b.Date).Str("time", b.Time).Msg("Booking created")
	s.changed(ctx, store.Bookings, b.ID)
	return b.ID, nil
}

// CreateRecurring implements store.Writer.
func (s *Store) CreateRecurring(ctx context.Context, r model.RecurringBooking) (string, error) {
	r.ID = uuid.NewString()
	if r.Timestamp.IsZero() {
		r.Timestamp = s.now()
	}
	exceptions, err := encodeExceptions(r.Exceptions)
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO recurring_bookings (`+recurringColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.TeacherID, r.TeacherEmail, r.TeacherName, r.Subject,
		r.DayOfWeek, r.Time, r.Classroom, r.Notes, exceptions, r.Timestamp.UnixNano())
	if err != nil {
		return "", fmt.Errorf("insert recurring booking: %w", err)
	}
	s.logger.Debug().Str("id", r.ID).Str("day", r.DayOfWeek).Str("time", r.Time).Msg("Recurring booking created")
	s.changed(ctx, store.RecurringBookings, r.ID)
	return r.ID, nil
}

// GetRecurring implements store.Writer. It always reads the database.
func (s *Store) GetRecurring(ctx context.Context, id string) (model.RecurringBooking, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recurringColumns+` FROM recurring_bookings WHERE id = ?`, id)
	r, err := scanRecurring(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RecurringBooking{}, fmt.Errorf("recurring booking %s: %w", id, store.ErrNotFound)
	}
	return r, err
}

// UpdateExceptions implements store.Writer.
func (s *Store) UpdateExceptions(ctx context.Context, id string, exceptions []string) error {
	data, err := encodeExceptions(exceptions)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE recurring_bookings SET exceptions = ? WHERE id = ?`, data, id)
	if err != nil {
		return fmt.Errorf("update exceptions: %w", err)
	}
	if err := expectOne(res, "recurring booking", id); err != nil {
		return err
	}
	s.changed(ctx, store.RecurringBookings, id)
	return nil
}

// DeleteBooking implements store.Writer.
func (s *Store) DeleteBooking(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}
	if err := expectOne(res, "booking", id); err != nil {
		return err
	}
	s.changed(ctx, store.Bookings, id)
	return nil
}

// DeleteRecurring implements store.Writer.
func (s *Store) DeleteRecurring(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM recurring_bookings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete recurring booking: %w", err)
	}
	if err := expectOne(res, "recurring booking", id); err != nil {
		return err
	}
	s.changed(ctx, store.RecurringBookings, id)
	return nil
}

func encodeExceptions(exceptions []string) (string, error) {
	if exceptions == nil {
		exceptions = []string{}
	}
	data, err := json.Marshal(exceptions)
	if err != nil {
		return "", fmt.Errorf("encode exceptions: %w", err)
	}
	return string(data), nil
}

func expectOne(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, store.ErrNotFound)
	}
	return nil
}

var _ store.Store = (*Store)(nil)
