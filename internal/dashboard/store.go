package dashboard

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kjstillabower/capital-weather-dashboard/internal/observability"
)

type storeEntry struct {
	session  *Session
	lastSeen time.Time
}

// Store keeps sessions in memory and drops those idle for longer than ttl.
// Expired sessions are pruned on access; there is no background sweeper.
type Store struct {
	backend        Backend
	defaultCountry string
	ttl            time.Duration
	now            func() time.Time

	mu       sync.Mutex
	sessions map[string]*storeEntry
}

// NewStore returns a Store whose sessions use backend and start on defaultCountry.
func NewStore(backend Backend, defaultCountry string, ttl time.Duration) *Store {
	return &Store{
		backend:        backend,
		defaultCountry: defaultCountry,
		ttl:            ttl,
		now:            time.Now,
		sessions:       make(map[string]*storeEntry),
	}
}

// Get returns the live session for id and marks it as seen.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)
	e, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = now
	return e.session, true
}

// Create starts a new session with a random ID.
func (s *Store) Create() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)
	sess := NewSession(uuid.NewString(), s.backend, s.defaultCountry)
	s.sessions[sess.ID()] = &storeEntry{session: sess, lastSeen: now}
	observability.DashboardSessions.Set(float64(len(s.sessions)))
	return sess
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(s.now())
	return len(s.sessions)
}

func (s *Store) pruneLocked(now time.Time) {
	if s.ttl <= 0 {
		return
	}
	before := len(s.sessions)
	for id, e := range s.sessions {
		if now.Sub(e.lastSeen) > s.ttl {
			delete(s.sessions, id)
		}
	}
	if len(s.sessions) != before {
		observability.DashboardSessions.Set(float64(len(s.sessions)))
	}
}
