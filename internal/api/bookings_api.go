package api

import (
	"net/http"

	"classbook/internal/booking"
	"classbook/internal/metrics"
	"classbook/internal/model"
)

// SlotsResponse lists the fixed schedule.
type SlotsResponse struct {
	Slots    []string `json:"slots"`
	Weekdays []string `json:"weekdays"`
}

// ExceptionRequest is the body for cancelling one occurrence.
type ExceptionRequest struct {
	Date string `json:"date"` // Format: YYYY-MM-DD
}

// GET /api/rooms
func (s *HTTPServer) handleRooms(w http.ResponseWriter, _ *http.Request) {
	metrics.IncHTTP("rooms")
	writeJSON(w, http.StatusOK, map[string]any{"rooms": s.controller.Rooms()})
}

// GET /api/slots
func (s *HTTPServer) handleSlots(w http.ResponseWriter, _ *http.Request) {
	metrics.IncHTTP("slots")
	writeJSON(w, http.StatusOK, SlotsResponse{Slots: model.TimeSlots, Weekdays: model.Weekdays})
}

// handleAvailability returns the slot grid for a date. The date defaults to today.
// GET /api/availability?date=YYYY-MM-DD
func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("availability")

	date := r.URL.Query().Get("date")
	grid, err := s.controller.DayView(date)
	if err != nil {
		writeBookingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "slots": grid})
}

// GET /api/availability/recurring?day=Monday
func (s *HTTPServer) handleRecurringAvailability(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("recurring_availability")

	day := r.URL.Query().Get("day")
	grid, err := s.controller.RecurringView(day)
	if err != nil {
		writeBookingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"day": day, "slots": grid})
}

// GET /api/conflicts?date=&time=&room=&exclude=
func (s *HTTPServer) handleConflicts(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("conflicts")

	q := r.URL.Query()
	c, err := s.controller.Conflict(q.Get("date"), q.Get("time"), q.Get("room"), q.Get("exclude"))
	if err != nil {
		writeBookingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// GET /api/bookings/today
func (s *HTTPServer) handleToday(w http.ResponseWriter, _ *http.Request) {
	metrics.IncHTTP("today")

	list := s.controller.Today()
	if list == nil {
		list = []model.Booking{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": list})
}

// GET /api/bookings/mine
func (s *HTTPServer) handleMine(w http.ResponseWriter, _ *http.Request, sess *booking.Session) {
	metrics.IncHTTP("mine")
	writeJSON(w, http.StatusOK, s.controller.Mine(sess))
}

// POST /api/bookings
func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request, sess *booking.Session) {
	metrics.IncHTTP("create_booking")

	var req booking.OneTimeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	b, err := s.controller.CreateOneTime(r.Context(), sess, req)
	if err != nil {
		writeBookingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// DELETE /api/bookings/{id}
func (s *HTTPServer) handleDeleteBooking(w http.ResponseWriter, r *http.Request, sess *booking.Session) {
	metrics.IncHTTP("delete_booking")

	if err := s.controller.DeleteBooking(r.Context(), sess, r.PathValue("id")); err != nil {
		writeBookingError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/recurring
func (s *HTTPServer) handleCreateRecurring(w http.ResponseWriter, r *http.Request, sess *booking.Session) {
	metrics.IncHTTP("create_recurring")

	var req booking.RecurringRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rb, err := s.controller.CreateRecurring(r.Context(), sess, req)
	if err != nil {
		writeBookingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rb)
}

// DELETE /api/recurring/{id}
func (s *HTTPServer) handleDeleteRecurring(w http.ResponseWriter, r *http.Request, sess *booking.Session) {
	metrics.IncHTTP("delete_recurring")

	if err := s.controller.DeleteRecurring(r.Context(), sess, r.PathValue("id")); err != nil {
		writeBookingError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCancelOccurrence adds one date to a series' exceptions.
// POST /api/recurring/{id}/exceptions
func (s *HTTPServer) handleCancelOccurrence(w http.ResponseWriter, r *http.Request, sess *booking.Session) {
	metrics.IncHTTP("cancel_occurrence")

	var req ExceptionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rb, err := s.controller.CancelOccurrence(r.Context(), sess, r.PathValue("id"), req.Date)
	if err != nil {
		writeBookingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rb)
}

// DELETE /api/recurring/{id}/exceptions/{date}
func (s *HTTPServer) handleRestoreOccurrence(w http.ResponseWriter, r *http.Request, sess *booking.Session) {
	metrics.IncHTTP("restore_occurrence")

	rb, err := s.controller.RestoreOccurrence(r.Context(), sess, r.PathValue("id"), r.PathValue("date"))
	if err != nil {
		writeBookingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rb)
}
