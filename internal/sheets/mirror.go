// Package sheets mirrors the live schedule into a Google Sheets spreadsheet.
package sheets

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"classbook/internal/audit"
	"classbook/internal/availability"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

const syncTimeout = 30 * time.Second

// Mirror rewrites the Bookings and Recurring tabs from the latest snapshot.
type Mirror struct {
	svc           *gsheets.Service
	spreadsheetID string
	logger        zerolog.Logger

	mu      sync.Mutex
	latest  availability.Snapshot
	pending chan struct{}
}

// NewMirror authenticates with a service account credentials file.
func NewMirror(ctx context.Context, spreadsheetID, credentialsFile string, logger *zerolog.Logger) (*Mirror, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, gsheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return NewMirrorWithOptions(ctx, spreadsheetID, logger, option.WithCredentials(creds))
}

// NewMirrorWithOptions builds the Sheets client from explicit client options.
func NewMirrorWithOptions(ctx context.Context, spreadsheetID string, logger *zerolog.Logger, opts ...option.ClientOption) (*Mirror, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	svc, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "sheets").Logger()
	}
	return &Mirror{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		logger:        l,
		pending:       make(chan struct{}, 1),
	}, nil
}

func sheetRange(sheet string) string {
	return sheet + "!A1"
}

// Values renders snap into the two tab bodies, header first.
func Values(snap availability.Snapshot) (bookings, recurring [][]interface{}) {
	bookings = append(bookings, header(audit.BookingColumns))
	for _, b := range snap.Bookings {
		bookings = append(bookings, audit.BookingRow(b, snap.Rooms))
	}
	recurring = append(recurring, header(audit.RecurringColumns))
	for _, r := range snap.Recurring {
		recurring = append(recurring, audit.RecurringRow(r, snap.Rooms))
	}
	return bookings, recurring
}

func header(columns []string) []interface{} {
	row := make([]interface{}, len(columns))
	for i, c := range columns {
		row[i] = c
	}
	return row
}

// Sync clears both tabs and writes snap.
func (m *Mirror) Sync(ctx context.Context, snap availability.Snapshot) error {
	bookings, recurring := Values(snap)

	clearReq := &gsheets.BatchClearValuesRequest{
		Ranges: []string{audit.SheetBookings, audit.SheetRecurring},
	}
	if _, err := m.svc.Spreadsheets.Values.BatchClear(m.spreadsheetID, clearReq).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear sheets: %w", err)
	}

	update := &gsheets.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data: []*gsheets.ValueRange{
			{Range: sheetRange(audit.SheetBookings), Values: bookings},
			{Range: sheetRange(audit.SheetRecurring), Values: recurring},
		},
	}
	if _, err := m.svc.Spreadsheets.Values.BatchUpdate(m.spreadsheetID, update).Context(ctx).Do(); err != nil {
		return fmt.Errorf("update sheets: %w", err)
	}

	m.logger.Debug().
		Int("bookings", len(snap.Bookings)).
		Int("recurring", len(snap.Recurring)).
		Msg("Sheets mirror updated")
	return nil
}

// Notify queues snap for the next sync. Bursts collapse into one write.
func (m *Mirror) Notify(snap availability.Snapshot) {
	m.mu.Lock()
	m.latest = snap
	m.mu.Unlock()

	select {
	case m.pending <- struct{}{}:
	default:
	}
}

// Run syncs queued snapshots until ctx is done. Failures are logged and the next change retries.
func (m *Mirror) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.pending:
			m.mu.Lock()
			snap := m.latest
			m.mu.Unlock()

			syncCtx, cancel := context.WithTimeout(ctx, syncTimeout)
			if err := m.Sync(syncCtx, snap); err != nil {
				m.logger.Error().Err(err).Msg("Sheets sync failed")
			}
			cancel()
		}
	}
}
