package auth

import (
	"context"

	"github.com/mmynk/debtbook/internal/models"
)

// Authenticator verifies account credentials.
// Implementations may use passwords, one-time codes or an external IdP; the
// identity provider only needs a user back.
type Authenticator interface {
	// Register creates a new account. The credential format depends on the
	// implementation.
	Register(ctx context.Context, email, displayName, credential string) (*models.User, error)

	// Authenticate verifies the credential and returns the matching user.
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)

	// ValidateCredential checks the credential before it is stored.
	ValidateCredential(credential string) error
}
