// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/termboard/internal/platform/apperr"
	"github.com/taibuivan/termboard/internal/platform/sec"
	"github.com/taibuivan/termboard/internal/session"
	"github.com/taibuivan/termboard/internal/users/auth"
)

func newTestService() *auth.Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := session.NewService(session.NewMemoryRepository(), logger)
	return auth.NewService(auth.NewMemoryRepository(), sessions, logger)
}

/*
TestService_Register tests account creation, normalization, and session binding.
*/
func TestService_Register(t *testing.T) {
	service := newTestService()
	ctx := context.Background()

	bound, user, err := service.Register(ctx, auth.RegisterInput{
		Username:    "Alice_99",
		Password:    "hunter22",
		DisplayName: "Alice",
		Email:       "Alice@Example.COM",
	})
	require.NoError(t, err)

	// Username and email are normalized to lowercase
	assert.Equal(t, "alice_99", user.Username)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, sec.RoleUser, user.Role)

	// The password hash is adaptive and never equals the plain text
	assert.NotEqual(t, "hunter22", user.PasswordHash)
	assert.True(t, sec.CheckPasswordHash("hunter22", user.PasswordHash))

	// Identity is bound to a session
	assert.True(t, bound.IsAuthenticated())
	assert.Equal(t, "alice_99", bound.Username)
}

/*
TestService_Register_Validation tests the input bounds.
*/
func TestService_Register_Validation(t *testing.T) {
	service := newTestService()
	ctx := context.Background()

	tests := []struct {
		name  string
		input auth.RegisterInput
	}{
		{"short_username", auth.RegisterInput{Username: "ab", Password: "hunter22"}},
		{"bad_username_chars", auth.RegisterInput{Username: "no spaces!", Password: "hunter22"}},
		{"short_password", auth.RegisterInput{Username: "alice", Password: "abc"}},
		{"seven_char_password", auth.RegisterInput{Username: "alice", Password: "abcdefg"}},
		{"bad_email", auth.RegisterInput{Username: "alice", Password: "hunter22", Email: "not-an-email"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := service.Register(ctx, tt.input)
			require.Error(t, err)

			ae := apperr.As(err)
			require.NotNil(t, ae)
			assert.Equal(t, "VALIDATION_ERROR", ae.Code)
		})
	}
}

/*
TestService_Register_Duplicate tests uniqueness of usernames, case-insensitively.
*/
func TestService_Register_Duplicate(t *testing.T) {
	service := newTestService()
	ctx := context.Background()

	_, _, err := service.Register(ctx, auth.RegisterInput{Username: "alice", Password: "hunter22"})
	require.NoError(t, err)

	_, _, err = service.Register(ctx, auth.RegisterInput{Username: "ALICE", Password: "different8"})
	require.Error(t, err)

	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, "CONFLICT", ae.Code)
}

/*
TestService_Login tests credential verification and the uniform 401 for
unknown usernames and wrong passwords.
*/
func TestService_Login(t *testing.T) {
	service := newTestService()
	ctx := context.Background()

	_, _, err := service.Register(ctx, auth.RegisterInput{Username: "alice", Password: "hunter22"})
	require.NoError(t, err)

	bound, user, err := service.Login(ctx, auth.LoginInput{Username: "Alice", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.True(t, bound.IsAuthenticated())

	// The returned record carries the freshly stamped last-login, not the
	// state fetched before the update.
	require.NotNil(t, user.LastLogin)
	assert.WithinDuration(t, time.Now(), *user.LastLogin, time.Minute)

	// Wrong password and unknown username are indistinguishable
	_, _, wrongErr := service.Login(ctx, auth.LoginInput{Username: "alice", Password: "wrong-pass"})
	_, _, unknownErr := service.Login(ctx, auth.LoginInput{Username: "nobody", Password: "hunter22"})
	require.Error(t, wrongErr)
	require.Error(t, unknownErr)
	assert.Equal(t, wrongErr.Error(), unknownErr.Error())
	assert.Equal(t, "UNAUTHORIZED", apperr.As(wrongErr).Code)
	assert.Equal(t, "UNAUTHORIZED", apperr.As(unknownErr).Code)
}

/*
TestService_LogoutAndMe tests the whoami snapshot across the login lifecycle.
*/
func TestService_LogoutAndMe(t *testing.T) {
	service := newTestService()
	ctx := context.Background()

	bound, _, err := service.Register(ctx, auth.RegisterInput{Username: "alice", Password: "hunter22"})
	require.NoError(t, err)

	current, user, err := service.Me(ctx, bound.Key)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, bound.Key, current.Key)

	require.NoError(t, service.Logout(ctx, bound.Key))

	// After logout the session survives as anonymous
	current, user, err = service.Me(ctx, bound.Key)
	require.NoError(t, err)
	assert.Nil(t, user)
	assert.False(t, current.IsAuthenticated())
}

/*
TestUser_Public verifies that the public projection never leaks the hash.
*/
func TestUser_Public(t *testing.T) {
	service := newTestService()
	ctx := context.Background()

	_, user, err := service.Register(ctx, auth.RegisterInput{
		Username: "alice", Password: "hunter22", DisplayName: "Alice",
	})
	require.NoError(t, err)

	view := user.Public()
	assert.Equal(t, user.ID, view.ID)
	assert.Equal(t, "Alice", view.DisplayName)

	public, err := service.PublicUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", public.Username)
}
