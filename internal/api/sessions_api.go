package api

import (
	"net/http"

	"classbook/internal/booking"
	"classbook/internal/metrics"
	"classbook/internal/model"
)

// SessionResponse is returned by POST /api/sessions.
type SessionResponse struct {
	SessionID string        `json:"sessionId"`
	Teacher   model.Teacher `json:"teacher"`
}

// handleOpenSession signs a teacher in.
// POST /api/sessions
func (s *HTTPServer) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("open_session")

	var identity booking.Identity
	if !decodeJSON(w, r, &identity) {
		return
	}

	sess, err := s.sessions.Open(identity)
	if err != nil {
		writeBookingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, SessionResponse{SessionID: sess.ID, Teacher: sess.Teacher})
}

// handleCloseSession signs a teacher out and stops the session's sweeper.
// DELETE /api/sessions/{id}
func (s *HTTPServer) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("close_session")

	if !s.sessions.Close(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
