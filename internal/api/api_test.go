package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"classbook/internal/booking"
	"classbook/internal/model"
	"classbook/internal/notify"
	"classbook/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const testAPIKey = "valid-key"

// Monday 2024-06-10 08:30 UTC.
var testNow = time.Date(2024, 6, 10, 8, 30, 0, 0, time.UTC)

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

type fakeTester struct {
	result *notify.Result
	err    error
	to     string
}

func (f *fakeTester) TestConfiguration(_ context.Context, to string) (*notify.Result, error) {
	f.to = to
	return f.result, f.err
}

type testServer struct {
	Handler  http.Handler
	Memory   *store.Memory
	Sessions *booking.SessionStore
	Tester   *fakeTester
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	mem := store.NewMemory().WithClock(func() time.Time { return testNow })
	feed := store.NewFeed(model.DefaultRooms, nil)
	detach, err := feed.Attach(context.Background(), mem)
	require.NoError(t, err)
	t.Cleanup(detach)

	ctrl := booking.NewController(feed, mem, nil, booking.Config{Location: time.UTC}, nil).
		WithClock(func() time.Time { return testNow })
	sessions := booking.NewSessionStore(time.Hour, nil, nil).
		WithClock(func() time.Time { return testNow })
	tester := &fakeTester{result: &notify.Result{Success: true, Total: 1, Successful: 1}}

	srv := NewHTTPServer(Config{Port: 0, APIKey: testAPIKey}, ctrl, sessions, tester, nil)
	srv.now = func() time.Time { return testNow }

	return &testServer{Handler: srv.Handler(), Memory: mem, Sessions: sessions, Tester: tester}
}

func (ts *testServer) do(t *testing.T, method, path, session string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader = http.NoBody
	switch v := body.(type) {
	case nil:
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", testAPIKey)
	if session != "" {
		req.Header.Set("X-Session-ID", session)
	}
	w := httptest.NewRecorder()
	ts.Handler.ServeHTTP(w, req)
	return w
}

func (ts *testServer) signIn(t *testing.T, userID, email string) string {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/sessions", "", map[string]string{"userId": userID, "email": email})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp SessionResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp.SessionID
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestAPIAuthMiddleware(t *testing.T) {
	srv := setupTestServer(t)

	tests := []struct {
		name       string
		apiKey     string
		wantStatus int
	}{
		{name: "valid api key", apiKey: testAPIKey, wantStatus: http.StatusOK},
		{name: "missing api key", apiKey: "", wantStatus: http.StatusUnauthorized},
		{name: "invalid api key", apiKey: "invalid-key", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/rooms", http.NoBody)
			if tt.apiKey != "" {
				req.Header.Set("x-api-key", tt.apiKey)
			}
			w := httptest.NewRecorder()
			srv.Handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Equal(t, "unauthorized", decodeError(t, w).Error)
			}
		})
	}
}

func TestRequestIDHeader(t *testing.T) {
	srv := setupTestServer(t)

	w := srv.do(t, http.MethodGet, "/api/slots", "", nil)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/api/slots", http.NoBody)
	req.Header.Set("x-api-key", testAPIKey)
	req.Header.Set("X-Request-ID", "req-42")
	w = httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
}

func TestNoAPIKeyConfigured(t *testing.T) {
	mem := store.NewMemory()
	feed := store.NewFeed(model.DefaultRooms, nil)
	ctrl := booking.NewController(feed, mem, nil, booking.Config{}, nil)
	srv := NewHTTPServer(Config{}, ctrl, booking.NewSessionStore(0, nil, nil), nil, nil)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/rooms", http.NoBody))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSessions(t *testing.T) {
	srv := setupTestServer(t)

	t.Run("open requires identity", func(t *testing.T) {
		w := srv.do(t, http.MethodPost, "/api/sessions", "", map[string]string{"userId": "u1"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "User id and email are required", decodeError(t, w).Error)
	})

	t.Run("open rejects unknown fields", func(t *testing.T) {
		w := srv.do(t, http.MethodPost, "/api/sessions", "", map[string]string{"userId": "u1", "role": "admin"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid JSON body", decodeError(t, w).Error)
	})

	t.Run("open and close", func(t *testing.T) {
		w := srv.do(t, http.MethodPost, "/api/sessions", "", map[string]string{"userId": "u1", "email": "ann@school.org"})
		require.Equal(t, http.StatusCreated, w.Code)

		var resp SessionResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.NotEmpty(t, resp.SessionID)
		assert.Equal(t, "ann", resp.Teacher.TeacherName)
		assert.Equal(t, 1, srv.Sessions.Len())

		w = srv.do(t, http.MethodDelete, "/api/sessions/"+resp.SessionID, "", nil)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, 0, srv.Sessions.Len())

		w = srv.do(t, http.MethodDelete, "/api/sessions/"+resp.SessionID, "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("session required", func(t *testing.T) {
		w := srv.do(t, http.MethodGet, "/api/bookings/mine", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "session required", decodeError(t, w).Error)

		w = srv.do(t, http.MethodGet, "/api/bookings/mine", "nope", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "session expired or unknown", decodeError(t, w).Error)
	})
}

func TestCatalogEndpoints(t *testing.T) {
	srv := setupTestServer(t)

	w := srv.do(t, http.MethodGet, "/api/rooms", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rooms struct {
		Rooms []model.Room `json:"rooms"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&rooms))
	assert.Len(t, rooms.Rooms, 6)

	w = srv.do(t, http.MethodGet, "/api/slots", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var slots SlotsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&slots))
	assert.Len(t, slots.Slots, 10)
	assert.Equal(t, "Sunday", slots.Weekdays[0])
}

func TestCreateBookingFlow(t *testing.T) {
	srv := setupTestServer(t)
	ann := srv.signIn(t, "u1", "ann@school.org")
	bob := srv.signIn(t, "u2", "bob@school.org")

	req := map[string]string{"date": "2024-06-11", "time": "09:00-10:00", "classroom": "room-1", "subject": "Math"}
	w := srv.do(t, http.MethodPost, "/api/bookings", ann, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created model.Booking
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "u1", created.TeacherID)

	// Same triple from another teacher.
	w = srv.do(t, http.MethodPost, "/api/bookings", bob, req)
	assert.Equal(t, http.StatusConflict, w.Code)
	e := decodeError(t, w)
	assert.Equal(t, "one-time", e.Kind)
	assert.Contains(t, e.Error, "another one-time booking")

	w = srv.do(t, http.MethodGet, "/api/conflicts?date=2024-06-11&time=09:00-10:00&room=room-1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var c struct {
		Conflict bool   `json:"conflict"`
		Kind     string `json:"kind"`
		RecordID string `json:"recordId"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&c))
	assert.True(t, c.Conflict)
	assert.Equal(t, created.ID, c.RecordID)

	w = srv.do(t, http.MethodGet, "/api/conflicts?date=2024-06-11&time=09:00-10:00&room=room-1&exclude="+created.ID, "", nil)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&c))
	assert.False(t, c.Conflict)

	w = srv.do(t, http.MethodDelete, "/api/bookings/"+created.ID, bob, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "You can only delete your own bookings", decodeError(t, w).Error)

	w = srv.do(t, http.MethodGet, "/api/bookings/mine", ann, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var mine booking.MyBookings
	require.NoError(t, json.NewDecoder(w.Body).Decode(&mine))
	assert.Len(t, mine.Bookings, 1)
	assert.Empty(t, mine.Recurring)

	w = srv.do(t, http.MethodDelete, "/api/bookings/"+created.ID, ann, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = srv.do(t, http.MethodDelete, "/api/bookings/"+created.ID, ann, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Booking not found", decodeError(t, w).Error)
}

func TestCreateBookingValidation(t *testing.T) {
	srv := setupTestServer(t)
	ann := srv.signIn(t, "u1", "ann@school.org")

	tests := []struct {
		name      string
		body      any
		wantError string
	}{
		{
			name:      "missing selection",
			body:      map[string]string{"subject": "Math"},
			wantError: "Please select date, time, and classroom",
		},
		{
			name:      "invalid date",
			body:      map[string]string{"date": "11-06-2024", "time": "09:00-10:00", "classroom": "room-1", "subject": "Math"},
			wantError: "Invalid date",
		},
		{
			name:      "past date",
			body:      map[string]string{"date": "2024-06-09", "time": "09:00-10:00", "classroom": "room-1", "subject": "Math"},
			wantError: "Cannot book a date in the past",
		},
		{
			name:      "unknown slot",
			body:      map[string]string{"date": "2024-06-11", "time": "07:00-08:00", "classroom": "room-1", "subject": "Math"},
			wantError: "Unknown time slot: 07:00-08:00",
		},
		{
			name:      "blank subject",
			body:      map[string]string{"date": "2024-06-11", "time": "09:00-10:00", "classroom": "room-1", "subject": "  "},
			wantError: "Please enter a subject",
		},
		{
			name:      "invalid JSON",
			body:      "not json",
			wantError: "invalid JSON body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := srv.do(t, http.MethodPost, "/api/bookings", ann, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.wantError, decodeError(t, w).Error)
		})
	}
}

func TestRecurringFlow(t *testing.T) {
	srv := setupTestServer(t)
	ann := srv.signIn(t, "u1", "ann@school.org")
	bob := srv.signIn(t, "u2", "bob@school.org")

	req := map[string]string{"dayOfWeek": "Tuesday", "time": "10:00-11:00", "classroom": "room-2", "subject": "Physics"}
	w := srv.do(t, http.MethodPost, "/api/recurring", ann, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var series model.RecurringBooking
	require.NoError(t, json.NewDecoder(w.Body).Decode(&series))

	w = srv.do(t, http.MethodPost, "/api/recurring", bob, req)
	assert.Equal(t, http.StatusConflict, w.Code)
	e := decodeError(t, w)
	assert.Equal(t, "recurring", e.Kind)
	assert.Contains(t, e.Error, "This recurring slot is already booked")

	w = srv.do(t, http.MethodGet, "/api/availability/recurring?day=tuesday", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), series.ID)

	w = srv.do(t, http.MethodPost, "/api/recurring/"+series.ID+"/exceptions", bob, map[string]string{"date": "2024-06-11"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "You can only cancel your own recurring classes", decodeError(t, w).Error)

	w = srv.do(t, http.MethodPost, "/api/recurring/"+series.ID+"/exceptions", ann, map[string]string{"date": "2024-06-12"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "This date is not a Tuesday. Please select the correct day.", decodeError(t, w).Error)

	w = srv.do(t, http.MethodPost, "/api/recurring/"+series.ID+"/exceptions", ann, map[string]string{"date": "2024-06-11"})
	require.Equal(t, http.StatusOK, w.Code)
	var updated model.RecurringBooking
	require.NoError(t, json.NewDecoder(w.Body).Decode(&updated))
	assert.Equal(t, []string{"2024-06-11"}, updated.Exceptions)

	w = srv.do(t, http.MethodPost, "/api/recurring/"+series.ID+"/exceptions", ann, map[string]string{"date": "2024-06-11"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "This class is already cancelled", decodeError(t, w).Error)

	// The cancelled Tuesday is free for a one-time booking.
	w = srv.do(t, http.MethodGet, "/api/conflicts?date=2024-06-11&time=10:00-11:00&room=room-2", "", nil)
	assert.JSONEq(t, `{"conflict":false}`, w.Body.String())
	w = srv.do(t, http.MethodGet, "/api/conflicts?date=2024-06-18&time=10:00-11:00&room=room-2", "", nil)
	assert.Contains(t, w.Body.String(), `"kind":"recurring"`)

	w = srv.do(t, http.MethodDelete, "/api/recurring/"+series.ID+"/exceptions/2024-06-11", ann, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&updated))
	assert.Empty(t, updated.Exceptions)

	w = srv.do(t, http.MethodDelete, "/api/recurring/"+series.ID, bob, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = srv.do(t, http.MethodDelete, "/api/recurring/"+series.ID, ann, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = srv.do(t, http.MethodDelete, "/api/recurring/"+series.ID, ann, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Recurring booking not found", decodeError(t, w).Error)
}

func TestAvailabilityAndToday(t *testing.T) {
	srv := setupTestServer(t)
	ann := srv.signIn(t, "u1", "ann@school.org")

	for _, slot := range []string{"11:00-12:00", "09:00-10:00"} {
		w := srv.do(t, http.MethodPost, "/api/bookings", ann,
			map[string]string{"date": "2024-06-10", "time": slot, "classroom": "room-3", "subject": "Art"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := srv.do(t, http.MethodGet, "/api/availability", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var grid struct {
		Slots []struct {
			Slot  string `json:"slot"`
			Full  bool   `json:"full"`
			Rooms []struct {
				Booked bool   `json:"booked"`
				Kind   string `json:"kind"`
			} `json:"rooms"`
		} `json:"slots"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&grid))
	require.Len(t, grid.Slots, 10)
	assert.True(t, grid.Slots[1].Rooms[2].Booked)
	assert.Equal(t, "one-time", grid.Slots[1].Rooms[2].Kind)
	assert.False(t, grid.Slots[1].Full)

	w = srv.do(t, http.MethodGet, "/api/availability?date=bad", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = srv.do(t, http.MethodGet, "/api/availability/recurring?day=Someday", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Unknown day of week: Someday", decodeError(t, w).Error)

	w = srv.do(t, http.MethodGet, "/api/bookings/today", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var today struct {
		Bookings []model.Booking `json:"bookings"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&today))
	require.Len(t, today.Bookings, 2)
	assert.Equal(t, "09:00-10:00", today.Bookings[0].Time)
	assert.Equal(t, "11:00-12:00", today.Bookings[1].Time)
}

func TestTodayEmptyList(t *testing.T) {
	srv := setupTestServer(t)

	w := srv.do(t, http.MethodGet, "/api/bookings/today", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"bookings":[]}`, w.Body.String())
}

func TestMethodNotAllowed(t *testing.T) {
	srv := setupTestServer(t)

	w := srv.do(t, http.MethodPut, "/api/rooms", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestExport(t *testing.T) {
	srv := setupTestServer(t)
	ann := srv.signIn(t, "u1", "ann@school.org")
	w := srv.do(t, http.MethodPost, "/api/bookings", ann,
		map[string]string{"date": "2024-06-11", "time": "09:00-10:00", "classroom": "room-1", "subject": "Math"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = srv.do(t, http.MethodGet, "/api/export", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "classbook_schedule_2024-06-10.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Bookings")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Classroom 1", rows[1][2])
}

func TestNotifyTest(t *testing.T) {
	srv := setupTestServer(t)

	w := srv.do(t, http.MethodPost, "/api/notify/test", "", map[string]string{"email": " admin@school.org "})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "admin@school.org", srv.Tester.to)

	w = srv.do(t, http.MethodPost, "/api/notify/test", "", map[string]string{"email": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	srv.Tester.result = &notify.Result{Success: false, Total: 1, Failed: 1}
	w = srv.do(t, http.MethodPost, "/api/notify/test", "", map[string]string{"email": "admin@school.org"})
	assert.Equal(t, http.StatusBadGateway, w.Code)

	srv.Tester.err = notify.ErrNotConfigured
	w = srv.do(t, http.MethodPost, "/api/notify/test", "", map[string]string{"email": "admin@school.org"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "email service not configured", decodeError(t, w).Error)

	srv.Tester.err = errors.New("boom")
	w = srv.do(t, http.MethodPost, "/api/notify/test", "", map[string]string{"email": "admin@school.org"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}
