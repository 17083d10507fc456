package session

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/date-night/backend/internal/model/preference"
)

// ErrSessionNotFound is returned by every Store for an unknown or expired id.
var ErrSessionNotFound = errors.New("session not found")

// Status tracks where a session is in the pairing exchange.
type Status string

const (
	StatusAwaitingPartner Status = "awaiting_partner"
	StatusCompleted       Status = "completed"
)

// Session is one shareable preference exchange. Its ID doubles as the
// capability token handed to the partner.
type Session struct {
	ID                 string                  `json:"id"`
	Preferences        preference.Preferences  `json:"preferences"`
	Status             Status                  `json:"status"`
	PartnerPreferences *preference.Preferences `json:"partnerPreferences,omitempty"`
	Plan               string                  `json:"plan,omitempty"`
	CreatedAt          time.Time               `json:"createdAt"`
	CompletedAt        *time.Time              `json:"completedAt,omitempty"`
	ExpiresAt          *time.Time              `json:"expiresAt,omitempty"`
}

// New opens a session for the first partner's preferences. A zero ttl means
// the session never expires.
func New(prefs preference.Preferences, now time.Time, ttl time.Duration) Session {
	s := Session{
		ID:          uuid.NewString(),
		Preferences: prefs.Clone(),
		Status:      StatusAwaitingPartner,
		CreatedAt:   now.UTC(),
	}
	if ttl > 0 {
		expires := s.CreatedAt.Add(ttl)
		s.ExpiresAt = &expires
	}
	return s
}

// Completed reports whether a plan has been stored.
func (s Session) Completed() bool {
	return s.Status == StatusCompleted
}

// Expired reports whether the session outlived its TTL at now.
func (s Session) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

// WithPlan returns the completed form of s. Callers must check Completed first;
// a stored plan is never replaced.
func (s Session) WithPlan(partner preference.Preferences, plan string, now time.Time) Session {
	partnerCopy := partner.Clone()
	completedAt := now.UTC()

	s.PartnerPreferences = &partnerCopy
	s.Plan = plan
	s.Status = StatusCompleted
	s.CompletedAt = &completedAt
	return s
}

// View is what either partner may see about a session. It never carries
// preferences, so joining stays blind.
type View struct {
	ID          string     `json:"id"`
	Status      Status     `json:"status"`
	Plan        string     `json:"plan,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func (s Session) View() View {
	return View{
		ID:          s.ID,
		Status:      s.Status,
		Plan:        s.Plan,
		CreatedAt:   s.CreatedAt,
		CompletedAt: s.CompletedAt,
	}
}
