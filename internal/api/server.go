// Package api exposes the booking controller as a JSON HTTP API.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"classbook/internal/booking"
	"classbook/internal/notify"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	headerAPIKey    = "x-api-key"
	headerSessionID = "X-Session-ID"
	headerRequestID = "X-Request-ID"

	maxBodyBytes = 1 << 20
)

// Sessions is the session registry used by the API.
type Sessions interface {
	Open(identity booking.Identity) (*booking.Session, error)
	Get(id string) (*booking.Session, bool)
	Close(id string) bool
}

// ConfigTester sends a test notification.
type ConfigTester interface {
	TestConfiguration(ctx context.Context, to string) (*notify.Result, error)
}

// Config holds HTTP server settings.
type Config struct {
	Port int
	// APIKey, when set, is required in the x-api-key header.
	APIKey string
}

// HTTPServer serves the booking API.
type HTTPServer struct {
	server     *http.Server
	controller *booking.Controller
	sessions   Sessions
	tester     ConfigTester
	apiKey     string
	logger     zerolog.Logger
	now        func() time.Time
}

// NewHTTPServer builds the server and its routes. tester may be nil.
func NewHTTPServer(cfg Config, controller *booking.Controller, sessions Sessions, tester ConfigTester, logger *zerolog.Logger) *HTTPServer {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "api").Logger()
	}
	s := &HTTPServer{
		controller: controller,
		sessions:   sessions,
		tester:     tester,
		apiKey:     cfg.APIKey,
		logger:     l,
		now:        time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sessions", s.handleOpenSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleCloseSession)

	mux.HandleFunc("GET /api/rooms", s.handleRooms)
	mux.HandleFunc("GET /api/slots", s.handleSlots)
	mux.HandleFunc("GET /api/availability", s.handleAvailability)
	mux.HandleFunc("GET /api/availability/recurring", s.handleRecurringAvailability)
	mux.HandleFunc("GET /api/conflicts", s.handleConflicts)

	mux.HandleFunc("GET /api/bookings/today", s.handleToday)
	mux.HandleFunc("GET /api/bookings/mine", s.withSession(s.handleMine))
	mux.HandleFunc("POST /api/bookings", s.withSession(s.handleCreateBooking))
	mux.HandleFunc("DELETE /api/bookings/{id}", s.withSession(s.handleDeleteBooking))

	mux.HandleFunc("POST /api/recurring", s.withSession(s.handleCreateRecurring))
	mux.HandleFunc("DELETE /api/recurring/{id}", s.withSession(s.handleDeleteRecurring))
	mux.HandleFunc("POST /api/recurring/{id}/exceptions", s.withSession(s.handleCancelOccurrence))
	mux.HandleFunc("DELETE /api/recurring/{id}/exceptions/{date}", s.withSession(s.handleRestoreOccurrence))

	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("POST /api/notify/test", s.handleNotifyTest)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.requestID(s.auth(mux)),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the root handler with middleware applied.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Serve listens until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(ctxShutdown)
	}()

	s.logger.Info().Str("addr", s.server.Addr).Msg("API server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

func (s *HTTPServer) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)

		l := s.logger.With().Str("request_id", id).Logger()
		start := s.now()
		next.ServeHTTP(w, r.WithContext(l.WithContext(r.Context())))
		l.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("Request served")
	})
}

func (s *HTTPServer) auth(next http.Handler) http.Handler {
	if s.apiKey == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(headerAPIKey)
		if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.apiKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *booking.Session)

func (s *HTTPServer) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerSessionID)
		if id == "" {
			writeError(w, http.StatusUnauthorized, "session required")
			return
		}
		sess, ok := s.sessions.Get(id)
		if !ok {
			writeError(w, http.StatusUnauthorized, "session expired or unknown")
			return
		}
		h(w, r, sess)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeBookingError maps controller failures to HTTP statuses.
func writeBookingError(w http.ResponseWriter, r *http.Request, err error) {
	var e *booking.Error
	if !errors.As(err, &e) {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Unexpected error")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	switch e.Kind {
	case booking.KindValidation:
		writeError(w, http.StatusBadRequest, e.Message)
	case booking.KindConflict:
		writeJSON(w, http.StatusConflict, map[string]string{"error": e.Message, "kind": string(e.Conflict)})
	case booking.KindStore:
		zerolog.Ctx(r.Context()).Error().Err(e.Err).Msg("Store operation failed")
		writeError(w, http.StatusBadGateway, e.Message)
	case booking.KindNotFound:
		writeError(w, http.StatusNotFound, e.Message)
	case booking.KindForbidden:
		writeError(w, http.StatusForbidden, e.Message)
	default:
		writeError(w, http.StatusInternalServerError, e.Message)
	}
}
