package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mmynk/debtbook/internal/models"
)

// EventType distinguishes identity events.
type EventType int

const (
	SignedIn EventType = iota + 1
	SignedOut
)

func (t EventType) String() string {
	switch t {
	case SignedIn:
		return "signed_in"
	case SignedOut:
		return "signed_out"
	default:
		return "unknown"
	}
}

// Event is emitted after the current identity changes. NewAccount is set
// for the sign-in that follows a sign-up.
type Event struct {
	Type       EventType
	UserID     string
	NewAccount bool
}

// Listener receives identity events. Listeners run synchronously on the
// goroutine that changed the identity, in subscription order.
type Listener func(ctx context.Context, event Event)

// Provider is the identity provider. It tells subscribers when an account
// signs in or out. CurrentUserID reports the most recent sign-in, which is
// the device user when the provider is embedded in a single-user client.
// Servers take the caller from its bearer token instead.
type Provider struct {
	authenticator Authenticator
	tokens        *JWTManager

	mu        sync.RWMutex
	current   string
	listeners []subscription
	nextID    int
}

type subscription struct {
	id int
	fn Listener
}

// NewProvider creates an identity provider with nobody signed in.
func NewProvider(authenticator Authenticator, tokens *JWTManager) *Provider {
	return &Provider{
		authenticator: authenticator,
		tokens:        tokens,
	}
}

// CurrentUserID returns the signed-in user's ID, or "" if nobody is.
func (p *Provider) CurrentUserID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Subscribe registers fn for identity events and returns a function that
// removes it.
func (p *Provider) Subscribe(fn Listener) (unsubscribe func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners = append(p.listeners, subscription{id: id, fn: fn})
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, sub := range p.listeners {
			if sub.id == id {
				p.listeners = append(p.listeners[:i:i], p.listeners[i+1:]...)
				return
			}
		}
	}
}

// SignUp registers an account, signs it in and returns a bearer token.
func (p *Provider) SignUp(ctx context.Context, email, password, displayName string) (*models.User, string, error) {
	user, err := p.authenticator.Register(ctx, email, displayName, password)
	if err != nil {
		return nil, "", err
	}
	token, err := p.signIn(ctx, user, true)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// SignIn authenticates an account, makes it current and returns a bearer
// token.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*models.User, string, error) {
	user, err := p.authenticator.Authenticate(ctx, email, password)
	if err != nil {
		return nil, "", err
	}
	token, err := p.signIn(ctx, user, false)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// SignOut signs userID out. The current account is cleared only if it is
// userID, so one caller never signs out another. An empty userID does
// nothing.
func (p *Provider) SignOut(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	p.mu.Lock()
	if p.current == userID {
		p.current = ""
	}
	p.mu.Unlock()

	slog.Info("User signed out", "user_id", userID)
	p.emit(ctx, Event{Type: SignedOut, UserID: userID})
	return nil
}

func (p *Provider) signIn(ctx context.Context, user *models.User, newAccount bool) (string, error) {
	token, err := p.tokens.Generate(user)
	if err != nil {
		return "", fmt.Errorf("failed to issue token: %w", err)
	}

	p.mu.Lock()
	p.current = user.ID
	p.mu.Unlock()

	slog.Info("User signed in", "user_id", user.ID, "new_account", newAccount)
	p.emit(ctx, Event{Type: SignedIn, UserID: user.ID, NewAccount: newAccount})
	return token, nil
}

func (p *Provider) emit(ctx context.Context, event Event) {
	p.mu.RLock()
	listeners := make([]subscription, len(p.listeners))
	copy(listeners, p.listeners)
	p.mu.RUnlock()

	for _, sub := range listeners {
		sub.fn(ctx, event)
	}
}
