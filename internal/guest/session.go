package guest

import (
	"context"
	"log/slog"
	"time"

	"github.com/mmynk/debtbook/internal/models"
)

const day = 24 * time.Hour

// SessionManager owns the lifecycle of the guest session:
//
//	NONE --Start--> ACTIVE --(time passes)--> EXPIRED
//	ACTIVE|EXPIRED --End--> NONE
//
// Expiry is never cached and there is no timer: every check re-reads the
// persisted session and compares it against the clock.
type SessionManager struct {
	store *Store
}

// NewSessionManager creates a session manager over the guest store. It uses
// the store's clock.
func NewSessionManager(store *Store) *SessionManager {
	return &SessionManager{store: store}
}

// Start begins a guest session that expires SessionLifetimeMonths from now.
// A still-valid session is returned unchanged. An expired one is ended
// first, together with its data, since it can never become active again.
func (m *SessionManager) Start(ctx context.Context) (*models.Session, error) {
	now := m.store.timestamp()

	existing, err := m.store.loadSession(ctx)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if !existing.ExpiredAt(now) {
			return existing, nil
		}
		slog.Info("Replacing expired guest session", "session_id", existing.ID, "expired_at", existing.ExpiresAt)
		if err := m.store.Clear(ctx); err != nil {
			return nil, err
		}
	}

	session := &models.Session{
		ID:        NewLocalID(now),
		StartedAt: now,
		ExpiresAt: now.AddDate(0, models.SessionLifetimeMonths, 0),
	}
	if err := m.store.saveSession(ctx, session); err != nil {
		return nil, err
	}

	slog.Info("Guest session started", "session_id", session.ID, "expires_at", session.ExpiresAt)
	return session, nil
}

// Get returns the persisted session, or nil if there is none. It does not
// check expiry.
func (m *SessionManager) Get(ctx context.Context) (*models.Session, error) {
	return m.store.loadSession(ctx)
}

// IsExpired reports whether there is no session or it has expired.
func (m *SessionManager) IsExpired(ctx context.Context) (bool, error) {
	session, err := m.store.loadSession(ctx)
	if err != nil {
		return false, err
	}
	return session.ExpiredAt(m.store.timestamp()), nil
}

// Check returns the persisted session together with whether it has
// expired, from a single read. session is nil when there is none.
func (m *SessionManager) Check(ctx context.Context) (session *models.Session, expired bool, err error) {
	session, err = m.store.loadSession(ctx)
	if err != nil {
		return nil, false, err
	}
	return session, session.ExpiredAt(m.store.timestamp()), nil
}

// DaysRemaining returns the whole days left in the session, rounded up.
// It is 0 when there is no session or it has expired.
func (m *SessionManager) DaysRemaining(ctx context.Context) (int, error) {
	session, err := m.store.loadSession(ctx)
	if err != nil {
		return 0, err
	}
	if session == nil {
		return 0, nil
	}
	return daysUntil(m.store.timestamp(), session.ExpiresAt), nil
}

// End deletes the session and all guest data.
func (m *SessionManager) End(ctx context.Context) error {
	if err := m.store.Clear(ctx); err != nil {
		return err
	}
	slog.Info("Guest session ended")
	return nil
}

func daysUntil(now, deadline time.Time) int {
	remaining := deadline.Sub(now)
	if remaining <= 0 {
		return 0
	}
	days := int(remaining / day)
	if remaining%day != 0 {
		days++
	}
	return days
}
