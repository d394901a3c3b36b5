package booking

import (
	"context"
	"strings"
	"sync"
	"time"

	"classbook/internal/cleanup"
	"classbook/internal/metrics"
	"classbook/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Identity is the authenticated teacher as reported by the auth provider.
type Identity struct {
	UserID      string `json:"userId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
}

// Selection is the grid cell a teacher is working on.
type Selection struct {
	Date      string `json:"date,omitempty"`
	DayOfWeek string `json:"dayOfWeek,omitempty"`
	Time      string `json:"time,omitempty"`
	Classroom string `json:"classroom,omitempty"`
}

// Session is the explicit per-teacher context the controller works against.
type Session struct {
	ID       string
	Teacher  model.Teacher
	OpenedAt time.Time

	mu        sync.Mutex
	selection Selection
	lastSeen  time.Time
	sweeper   *cleanup.Sweeper
}

// Select records the current selection.
func (s *Session) Select(sel Selection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = sel
}

// Selection returns the current selection.
func (s *Session) Selection() Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection
}

// ClearSelection resets the selection after a successful submit.
func (s *Session) ClearSelection() {
	s.Select(Selection{})
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = now
}

// IsExpired checks if session has been idle longer than timeout.
func (s *Session) IsExpired(now time.Time, timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen) > timeout
}

// SweeperRunning reports whether the session's cleanup sweeper is active.
func (s *Session) SweeperRunning() bool {
	return s.sweeper != nil && s.sweeper.Running()
}

func (s *Session) stop() {
	if s.sweeper != nil {
		s.sweeper.Stop()
	}
}

// SweeperFactory builds the cleanup sweeper owned by a session.
type SweeperFactory func(*Session) *cleanup.Sweeper

// SessionStore manages authenticated sessions.
type SessionStore struct {
	sessions   map[string]*Session
	mu         sync.RWMutex
	timeout    time.Duration
	newSweeper SweeperFactory
	logger     zerolog.Logger
	now        func() time.Time
}

// NewSessionStore creates a new session store. newSweeper may be nil.
func NewSessionStore(timeout time.Duration, newSweeper SweeperFactory, logger *zerolog.Logger) *SessionStore {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "sessions").Logger()
	}
	return &SessionStore{
		sessions:   make(map[string]*Session),
		timeout:    timeout,
		newSweeper: newSweeper,
		logger:     l,
		now:        time.Now,
	}
}

// WithClock overrides the wall clock.
func (ss *SessionStore) WithClock(now func() time.Time) *SessionStore {
	ss.now = now
	return ss
}

// Open starts a session for identity and its cleanup sweeper.
func (ss *SessionStore) Open(identity Identity) (*Session, error) {
	userID := strings.TrimSpace(identity.UserID)
	email := strings.TrimSpace(identity.Email)
	if userID == "" || email == "" {
		return nil, invalid("User id and email are required")
	}

	now := ss.now()
	session := &Session{
		ID:       uuid.NewString(),
		Teacher:  model.NewTeacher(userID, email, identity.DisplayName),
		OpenedAt: now,
		lastSeen: now,
	}
	if ss.newSweeper != nil {
		session.sweeper = ss.newSweeper(session)
	}

	ss.mu.Lock()
	ss.sessions[session.ID] = session
	n := len(ss.sessions)
	ss.mu.Unlock()

	if session.sweeper != nil {
		session.sweeper.Start()
	}
	metrics.SetActiveSessions(n)
	ss.logger.Info().Str("session", session.ID).Str("teacher", session.Teacher.TeacherEmail).Msg("Session opened")
	return session, nil
}

// Get returns a live session and marks it active. Expired sessions are closed.
func (ss *SessionStore) Get(id string) (*Session, bool) {
	ss.mu.RLock()
	session, ok := ss.sessions[id]
	ss.mu.RUnlock()
	if !ok {
		return nil, false
	}

	now := ss.now()
	if session.IsExpired(now, ss.timeout) {
		ss.Close(id)
		return nil, false
	}
	session.touch(now)
	return session, true
}

// Close ends a session and stops its sweeper.
func (ss *SessionStore) Close(id string) bool {
	ss.mu.Lock()
	session, ok := ss.sessions[id]
	delete(ss.sessions, id)
	n := len(ss.sessions)
	ss.mu.Unlock()
	if !ok {
		return false
	}

	session.stop()
	metrics.SetActiveSessions(n)
	ss.logger.Info().Str("session", id).Msg("Session closed")
	return true
}

// Cleanup closes expired sessions and returns how many it removed.
func (ss *SessionStore) Cleanup() int {
	now := ss.now()
	var expired []string
	ss.mu.RLock()
	for id, session := range ss.sessions {
		if session.IsExpired(now, ss.timeout) {
			expired = append(expired, id)
		}
	}
	ss.mu.RUnlock()

	removed := 0
	for _, id := range expired {
		if ss.Close(id) {
			removed++
		}
	}
	return removed
}

// CloseAll ends every session.
func (ss *SessionStore) CloseAll() {
	ss.mu.RLock()
	ids := make([]string, 0, len(ss.sessions))
	for id := range ss.sessions {
		ids = append(ids, id)
	}
	ss.mu.RUnlock()

	for _, id := range ids {
		ss.Close(id)
	}
}

// Len returns the number of open sessions.
func (ss *SessionStore) Len() int {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return len(ss.sessions)
}

// Run expires idle sessions every interval until ctx is done, then closes the rest.
func (ss *SessionStore) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ss.CloseAll()
			return
		case <-ticker.C:
			if n := ss.Cleanup(); n > 0 {
				ss.logger.Info().Int("expired", n).Msg("Expired idle sessions")
			}
		}
	}
}
