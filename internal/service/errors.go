package service

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/debtbook/internal/auth"
	"github.com/mmynk/debtbook/internal/models"
	"github.com/mmynk/debtbook/internal/storage"
)

// toConnectError maps domain errors to Connect codes. Errors that already
// carry a code pass through.
func toConnectError(err error) error {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return err
	}

	code := connect.CodeInternal
	switch {
	case errors.Is(err, models.ErrInvalid):
		code = connect.CodeInvalidArgument
	case errors.Is(err, storage.ErrNotFound):
		code = connect.CodeNotFound
	case errors.Is(err, storage.ErrSessionExpired), errors.Is(err, ErrInitialTransaction):
		code = connect.CodeFailedPrecondition
	case errors.Is(err, storage.ErrUnauthenticated), errors.Is(err, auth.ErrInvalidCredentials):
		code = connect.CodeUnauthenticated
	case errors.Is(err, auth.ErrEmailExists):
		code = connect.CodeAlreadyExists
	case errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrMissingEmail):
		code = connect.CodeInvalidArgument
	case errors.Is(err, context.Canceled):
		code = connect.CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		code = connect.CodeDeadlineExceeded
	case storage.IsStorageError(err), storage.IsRemoteError(err):
		code = connect.CodeUnavailable
	}

	if code == connect.CodeInternal {
		slog.Error("Unexpected error", "error", err)
	}
	return connect.NewError(code, err)
}
