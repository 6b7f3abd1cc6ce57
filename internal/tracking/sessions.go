package tracking

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/bitbybit/internal/types"
)

// DefaultSessionTTL is how long an unclosed session lives.
const DefaultSessionTTL = time.Hour

// SessionInfo describes a tracking session.
type SessionInfo struct {
	ID        string    `json:"id"`
	SectionID string    `json:"section_id"`
	Mode      Mode      `json:"mode"`
	Active    bool      `json:"active"`
	Fired     bool      `json:"fired"`
	CreatedAt time.Time `json:"created_at"`
}

type session struct {
	id      string
	sub     *Subscription
	created time.Time
}

func (s *session) info() SessionInfo {
	return SessionInfo{
		ID:        s.id,
		SectionID: s.sub.SectionID(),
		Mode:      s.sub.Mode(),
		Active:    s.sub.Active(),
		Fired:     s.sub.Fired(),
		CreatedAt: s.created,
	}
}

// Sessions holds subscriptions on behalf of remote readers, keyed by a
// session id handed to the client.
type Sessions struct {
	mu       sync.Mutex
	tracker  *Tracker
	sessions map[string]*session
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewSessions creates a registry backed by tracker. Sessions older than
// ttl are disposed on the next Open; ttl <= 0 uses DefaultSessionTTL.
func NewSessions(tracker *Tracker, ttl time.Duration, logger *slog.Logger) *Sessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sessions{
		tracker:  tracker,
		sessions: make(map[string]*session),
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// Open starts tracking a section for a client. Earlier sessions for the
// same section are disposed, so only the newest one can mark it read.
func (m *Sessions) Open(sectionID string, isRead bool, initial Viewport) SessionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prune()
	for id, s := range m.sessions {
		if s.sub.SectionID() == sectionID {
			s.sub.Dispose()
			delete(m.sessions, id)
			m.logger.Debug("tracking session replaced", "session_id", id, "section_id", sectionID)
		}
	}

	s := &session{
		id:      uuid.NewString(),
		created: m.now(),
	}
	s.sub = m.tracker.Track(sectionID, isRead, initial, nil)
	m.sessions[s.id] = s
	m.logger.Debug("tracking session opened", "session_id", s.id, "section_id", sectionID, "mode", s.sub.Mode())
	return s.info()
}

// Get returns a session.
func (m *Sessions) Get(id string) (SessionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return SessionInfo{}, fmt.Errorf("tracking session %s: %w", id, types.ErrNotFound)
	}
	return s.info(), nil
}

// Scroll forwards a viewport report to a session.
func (m *Sessions) Scroll(id string, v Viewport) (SessionInfo, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return SessionInfo{}, fmt.Errorf("tracking session %s: %w", id, types.ErrNotFound)
	}
	s.sub.ReportScroll(v)
	return s.info(), nil
}

// Close disposes a session.
func (m *Sessions) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("tracking session %s: %w", id, types.ErrNotFound)
	}
	s.sub.Dispose()
	return nil
}

// CloseAll disposes every session. Called on server shutdown.
func (m *Sessions) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.sub.Dispose()
	}
	if len(sessions) > 0 {
		m.logger.Info("closed tracking sessions", "count", len(sessions))
	}
}

// Len returns the number of open sessions.
func (m *Sessions) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// prune must be called with the lock held.
func (m *Sessions) prune() {
	cutoff := m.now().Add(-m.ttl)
	for id, s := range m.sessions {
		if s.created.Before(cutoff) {
			s.sub.Dispose()
			delete(m.sessions, id)
		}
	}
}
