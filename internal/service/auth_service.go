package service

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mmynk/debtbook/internal/auth"
	"github.com/mmynk/debtbook/internal/middleware"
	"github.com/mmynk/debtbook/internal/models"
	"github.com/mmynk/debtbook/internal/storage"
)

// AuthServiceName is the fully-qualified name of the auth service.
const AuthServiceName = "debtbook.v1.AuthService"

// Procedure paths of AuthService.
const (
	SignUpProcedure  = "/" + AuthServiceName + "/SignUp"
	SignInProcedure  = "/" + AuthServiceName + "/SignIn"
	SignOutProcedure = "/" + AuthServiceName + "/SignOut"
)

// IdentityProvider is what AuthService needs from auth.Provider.
type IdentityProvider interface {
	SignUp(ctx context.Context, email, password, displayName string) (*models.User, string, error)
	SignIn(ctx context.Context, email, password string) (*models.User, string, error)
	SignOut(ctx context.Context, userID string) error
}

// AuthService implements the Connect AuthService. Signing up or in while a
// guest session is active migrates the guest data; the identity provider
// triggers that through its sign-in event.
type AuthService struct {
	identity IdentityProvider
}

// NewAuthService creates a new authentication service.
func NewAuthService(identity IdentityProvider) *AuthService {
	return &AuthService{identity: identity}
}

// Handler returns the path prefix and HTTP handler serving every procedure.
func (s *AuthService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	routes := map[string]unaryFunc{
		SignUpProcedure:  s.SignUp,
		SignInProcedure:  s.SignIn,
		SignOutProcedure: s.SignOut,
	}
	return "/" + AuthServiceName + "/", newServiceMux(routes, opts...)
}

type userView struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
}

type sessionResponse struct {
	User  userView `json:"user"`
	Token string   `json:"token"`
}

func newSessionResponse(user *models.User, token string) sessionResponse {
	return sessionResponse{
		User: userView{
			ID:          user.ID,
			Email:       user.Email,
			DisplayName: user.DisplayName,
			CreatedAt:   time.Unix(user.CreatedAt, 0).UTC(),
		},
		Token: token,
	}
}

// SignUp creates an account and signs it in.
func (s *AuthService) SignUp(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	var in struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"displayName"`
	}
	if err := decode(req.Msg, &in); err != nil {
		return nil, err
	}
	slog.Info("SignUp request received", "email", in.Email)

	user, token, err := s.identity.SignUp(ctx, in.Email, in.Password, in.DisplayName)
	if err != nil {
		slog.Error("SignUp failed", "email", in.Email, "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("User registered successfully", "user_id", user.ID)
	return respond(newSessionResponse(user, token))
}

// SignIn authenticates an account and returns a bearer token.
func (s *AuthService) SignIn(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decode(req.Msg, &in); err != nil {
		return nil, err
	}
	slog.Info("SignIn request received", "email", in.Email)

	if in.Email == "" || in.Password == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, auth.ErrInvalidCredentials)
	}

	user, token, err := s.identity.SignIn(ctx, in.Email, in.Password)
	if err != nil {
		slog.Warn("SignIn failed", "email", in.Email, "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("User signed in successfully", "user_id", user.ID)
	return respond(newSessionResponse(user, token))
}

// SignOut signs the calling account out. Tokens are stateless, so clients
// discard theirs.
func (s *AuthService) SignOut(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	userID := middleware.GetUserID(ctx)
	slog.Info("SignOut request received", "user_id", userID)

	if userID == "" {
		return nil, toConnectError(storage.ErrUnauthenticated)
	}
	if err := s.identity.SignOut(ctx, userID); err != nil {
		return nil, toConnectError(err)
	}
	return respond(empty{})
}
