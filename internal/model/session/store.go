package session

import (
	"context"
	"sync"
	"time"

	"github.com/zhouzirui/date-night/backend/internal/model/preference"
)

// Store persists sessions. Implementations must be safe for concurrent use.
type Store interface {
	// Create stores prefs under a freshly generated id.
	Create(ctx context.Context, prefs preference.Preferences) (Session, error)
	// Get returns ErrSessionNotFound for unknown or expired ids.
	Get(ctx context.Context, id string) (Session, error)
	// Complete records the partner's preferences and plan. The first plan
	// stored wins; completing an already completed session returns it unchanged.
	Complete(ctx context.Context, id string, partner preference.Preferences, plan string) (Session, error)
}

// MemoryStore implements Store with an in-memory map, suitable for a single instance.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore returns an empty MemoryStore. A zero ttl keeps sessions forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context, prefs preference.Preferences) (Session, error) {
	session := New(prefs, s.now(), s.ttl)

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	return session.clone(), nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return Session{}, ErrSessionNotFound
	}
	if session.Expired(s.now()) {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		return Session{}, ErrSessionNotFound
	}
	return session.clone(), nil
}

func (s *MemoryStore) Complete(_ context.Context, id string, partner preference.Preferences, plan string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	now := s.now()
	if !ok || session.Expired(now) {
		return Session{}, ErrSessionNotFound
	}
	if session.Completed() {
		return session.clone(), nil
	}

	session = session.WithPlan(partner, plan, now)
	s.sessions[id] = session
	return session.clone(), nil
}

// DeleteExpired drops sessions whose TTL elapsed.
func (s *MemoryStore) DeleteExpired(_ context.Context) (int64, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored sessions, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s Session) clone() Session {
	s.Preferences = s.Preferences.Clone()
	if s.PartnerPreferences != nil {
		partner := s.PartnerPreferences.Clone()
		s.PartnerPreferences = &partner
	}
	return s
}
