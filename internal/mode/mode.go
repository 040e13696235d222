// Package mode decides where entity data lives for a caller: the on-device
// guest store, the cloud store, or nowhere.
//
// The active mode is never held in a global. It is derived on every call
// from the caller's identity and a fresh read of the guest session, and
// passed explicitly to the data layer as a Mode value.
package mode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/mmynk/debtbook/internal/auth"
	"github.com/mmynk/debtbook/internal/guest"
	"github.com/mmynk/debtbook/internal/migration"
	"github.com/mmynk/debtbook/internal/models"
	"github.com/mmynk/debtbook/internal/storage"
)

// Kind is the data mode.
type Kind int

const (
	Unauthenticated Kind = iota
	Guest
	Authenticated
)

func (k Kind) String() string {
	switch k {
	case Guest:
		return "guest"
	case Authenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// Mode is the resolved data mode of one call. UserID is set only when Kind
// is Authenticated.
type Mode struct {
	Kind   Kind
	UserID string
}

// GuestMode returns the guest Mode.
func GuestMode() Mode { return Mode{Kind: Guest} }

// AuthenticatedMode returns the Mode of a signed-in user.
func AuthenticatedMode(userID string) Mode {
	return Mode{Kind: Authenticated, UserID: userID}
}

func (m Mode) String() string { return m.Kind.String() }

// Migrator moves guest data into the cloud store.
type Migrator interface {
	Migrate(ctx context.Context, userID string) (migration.Result, error)
}

// Identity is the part of the identity provider the controller listens to.
type Identity interface {
	Subscribe(fn auth.Listener) (unsubscribe func())
}

// Controller routes callers to guest or cloud storage and drives the
// guest-to-account transition.
type Controller struct {
	local    *guest.Store
	sessions *guest.SessionManager
	cloud    storage.Store
	migrator Migrator
	identity Identity

	migrations singleflight.Group
}

// NewController creates a Controller. identity may be nil, in which case
// Attach does nothing and sign-ins are handled by calling HandleSignIn.
func NewController(store *guest.Store, sessions *guest.SessionManager, cloud storage.Store, migrator Migrator, identity Identity) *Controller {
	return &Controller{
		local:    store,
		sessions: sessions,
		cloud:    cloud,
		migrator: migrator,
		identity: identity,
	}
}

// Attach subscribes the controller to the identity provider so that every
// sign-in migrates pending guest data. It returns the unsubscribe function.
func (c *Controller) Attach() (unsubscribe func()) {
	if c.identity == nil {
		return func() {}
	}
	return c.identity.Subscribe(func(ctx context.Context, event auth.Event) {
		switch event.Type {
		case auth.SignedIn:
			if _, err := c.HandleSignIn(ctx, event.UserID); err != nil {
				slog.Error("Guest migration on sign-in failed", "user_id", event.UserID, "error", err)
			}
		case auth.SignedOut:
			slog.Info("Mode changed", "mode", Unauthenticated, "user_id", event.UserID)
		}
	})
}

// Resolve derives the mode for a caller. A non-empty userID is always
// Authenticated. Otherwise the guest session is re-read; an expired one is
// cleared together with its data and the caller is Unauthenticated.
func (c *Controller) Resolve(ctx context.Context, userID string) (Mode, error) {
	if userID != "" {
		return AuthenticatedMode(userID), nil
	}

	active, _, err := c.checkSession(ctx)
	if err != nil {
		return Mode{}, err
	}
	if !active {
		return Mode{}, nil
	}
	return GuestMode(), nil
}

// StartGuest enters guest mode. A still-valid session is reused.
func (c *Controller) StartGuest(ctx context.Context) (*models.Session, error) {
	session, err := c.sessions.Start(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start guest session: %w", err)
	}
	return session, nil
}

// EndGuest leaves guest mode, deleting all guest data.
func (c *Controller) EndGuest(ctx context.Context) error {
	if err := c.sessions.End(ctx); err != nil {
		return fmt.Errorf("failed to end guest session: %w", err)
	}
	return nil
}

// GuestStatus describes the guest session and how much data it holds.
type GuestStatus struct {
	Active        bool            `json:"active"`
	Session       *models.Session `json:"session,omitempty"`
	DaysRemaining int             `json:"daysRemaining"`
	Counts        guest.Counts    `json:"counts"`
}

// GuestStatus reports on the guest session. An expired session is cleared
// and reported as inactive.
func (c *Controller) GuestStatus(ctx context.Context) (GuestStatus, error) {
	active, _, err := c.checkSession(ctx)
	if err != nil || !active {
		return GuestStatus{}, err
	}

	session, err := c.sessions.Get(ctx)
	if err != nil {
		return GuestStatus{}, err
	}
	days, err := c.sessions.DaysRemaining(ctx)
	if err != nil {
		return GuestStatus{}, err
	}
	counts, err := c.local.Summary(ctx)
	if err != nil {
		return GuestStatus{}, err
	}
	return GuestStatus{Active: true, Session: session, DaysRemaining: days, Counts: counts}, nil
}

// guestMigrationKey groups migrations. There is one guest namespace per
// controller, so at most one pass runs at a time whoever signs in.
const guestMigrationKey = "guest"

// migrationRun is the outcome of one pass and the account it migrated into.
type migrationRun struct {
	userID string
	result migration.Result
}

// HandleSignIn completes the GUEST to AUTHENTICATED transition for userID.
//
// If a valid guest session exists its data is migrated; the session is
// cleared only when the migration reports success. Without a session, or
// with an expired one, there is nothing to migrate. Concurrent calls share
// a single migration pass. A caller that joins a pass running for another
// account migrates nothing and gets zero counts.
func (c *Controller) HandleSignIn(ctx context.Context, userID string) (migration.Result, error) {
	v, err, shared := c.migrations.Do(guestMigrationKey, func() (interface{}, error) {
		result, err := c.migrateGuest(ctx, userID)
		return migrationRun{userID: userID, result: result}, err
	})
	run, _ := v.(migrationRun)
	if shared && run.userID != userID {
		slog.Info("Guest data is being migrated to another account", "user_id", userID, "migrated_to", run.userID)
		if err != nil {
			return migration.Result{}, err
		}
		return migration.Result{Success: true, Cleared: run.result.Cleared}, nil
	}
	if shared {
		slog.Debug("Joined in-flight guest migration", "user_id", userID)
	}
	return run.result, err
}

func (c *Controller) migrateGuest(ctx context.Context, userID string) (migration.Result, error) {
	active, _, err := c.checkSession(ctx)
	if err != nil {
		return migration.Result{}, err
	}
	if !active {
		return migration.Result{Success: true, Cleared: true}, nil
	}

	slog.Info("Migrating guest session", "user_id", userID)
	result, err := c.migrator.Migrate(ctx, userID)
	if !result.Success {
		return result, err
	}
	if !result.Cleared {
		slog.Warn("Retrying guest cleanup after migration", "user_id", userID, "error", err)
		if endErr := c.sessions.End(ctx); endErr != nil {
			return result, errors.Join(err, endErr)
		}
		result.Cleared = true
	}
	slog.Info("Mode changed", "mode", Authenticated, "user_id", userID)
	return result, nil
}

// checkSession reports whether a valid guest session exists and whether
// any session existed at all. An expired session is cleared on the way.
func (c *Controller) checkSession(ctx context.Context) (active, existed bool, err error) {
	session, expired, err := c.sessions.Check(ctx)
	if err != nil {
		return false, false, fmt.Errorf("failed to read guest session: %w", err)
	}
	if session == nil {
		return false, false, nil
	}
	if expired {
		slog.Info("Guest session expired", "session_id", session.ID, "expired_at", session.ExpiresAt)
		if err := c.sessions.End(ctx); err != nil {
			slog.Error("Failed to clear expired guest session", "session_id", session.ID, "error", err)
		}
		return false, true, nil
	}
	return true, true, nil
}

// Repository returns the entity store for m. Guest mode re-checks the
// session first.
func (c *Controller) Repository(ctx context.Context, m Mode) (storage.Repository, error) {
	switch m.Kind {
	case Authenticated:
		if m.UserID == "" {
			return nil, storage.ErrUnauthenticated
		}
		return storage.ForUser(c.cloud, m.UserID), nil
	case Guest:
		active, existed, err := c.checkSession(ctx)
		if err != nil {
			return nil, err
		}
		if !existed {
			return nil, storage.ErrUnauthenticated
		}
		if !active {
			return nil, storage.ErrSessionExpired
		}
		return c.local, nil
	default:
		return nil, storage.ErrUnauthenticated
	}
}
