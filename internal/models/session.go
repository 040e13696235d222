package models

import "time"

// SessionLifetimeMonths is how long a guest session stays valid after it starts.
const SessionLifetimeMonths = 2

// Session is the guest-mode session record. It only exists on-device.
type Session struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"startedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ExpiredAt reports whether the session is expired at the given instant.
// A nil session is always expired.
func (s *Session) ExpiredAt(now time.Time) bool {
	return s == nil || now.After(s.ExpiresAt)
}
