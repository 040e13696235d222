package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mmynk/debtbook/internal/auth"
	"github.com/mmynk/debtbook/internal/models"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header      string
		wantToken   string
		wantPresent bool
		wantErr     bool
	}{
		{"", "", false, false},
		{"Bearer abc.def", "abc.def", true, false},
		{"bearer abc.def", "abc.def", true, false},
		{"Basic dXNlcg==", "", true, true},
		{"Bearer", "", true, true},
		{"Bearer ", "", true, true},
	}

	for _, tt := range tests {
		token, present, err := bearerToken(tt.header)
		if token != tt.wantToken || present != tt.wantPresent || (err != nil) != tt.wantErr {
			t.Errorf("bearerToken(%q) = %q, %v, %v; want %q, %v, err=%v",
				tt.header, token, present, err, tt.wantToken, tt.wantPresent, tt.wantErr)
		}
	}
}

// captureUser is a UnaryFunc that records the caller identity it was given.
func captureUser(got *string) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		*got = GetUserID(ctx)
		return connect.NewResponse(&structpb.Struct{}), nil
	}
}

func requestWith(header string) *connect.Request[structpb.Struct] {
	req := connect.NewRequest(&structpb.Struct{})
	if header != "" {
		req.Header().Set("Authorization", header)
	}
	return req
}

func TestAuthInterceptors(t *testing.T) {
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	user := models.NewUser("carol@example.com", "Carol", "hash")
	token, err := jwtManager.Generate(user)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	ctx := context.Background()

	t.Run("optional without token passes through anonymously", func(t *testing.T) {
		got := "unset"
		if _, err := OptionalAuth(jwtManager)(captureUser(&got))(ctx, requestWith("")); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if got != "" {
			t.Errorf("user ID = %q, want empty", got)
		}
	})

	t.Run("optional with token sets the user", func(t *testing.T) {
		var got string
		if _, err := OptionalAuth(jwtManager)(captureUser(&got))(ctx, requestWith("Bearer "+token)); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if got != user.ID {
			t.Errorf("user ID = %q, want %q", got, user.ID)
		}
	})

	t.Run("optional with bad token is rejected", func(t *testing.T) {
		var got string
		_, err := OptionalAuth(jwtManager)(captureUser(&got))(ctx, requestWith("Bearer garbage"))
		if connect.CodeOf(err) != connect.CodeUnauthenticated {
			t.Errorf("Code = %v, want Unauthenticated", connect.CodeOf(err))
		}
	})

	t.Run("required without token is rejected", func(t *testing.T) {
		var got string
		_, err := RequireAuth(jwtManager)(captureUser(&got))(ctx, requestWith(""))
		if !errors.Is(err, auth.ErrMissingToken) {
			t.Errorf("Expected ErrMissingToken, got %v", err)
		}
	})
}

func TestWithUser(t *testing.T) {
	ctx := WithUser(context.Background(), "u1", "u1@example.com")
	if GetUserID(ctx) != "u1" || GetEmail(ctx) != "u1@example.com" {
		t.Errorf("Got %q/%q", GetUserID(ctx), GetEmail(ctx))
	}
	if GetUserID(context.Background()) != "" {
		t.Error("Expected empty user ID on a bare context")
	}
}
