// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/taibuivan/termboard/internal/platform/apperr"
	"github.com/taibuivan/termboard/internal/platform/sec"
	"github.com/taibuivan/termboard/internal/platform/validate"
	"github.com/taibuivan/termboard/internal/session"
	"github.com/taibuivan/termboard/pkg/uuid"
)

// # Input Contracts

// RegisterInput carries the payload for account creation.
type RegisterInput struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	SessionID   string `json:"sessionId"`
	ClientAddr  string `json:"-"`
	UserAgent   string `json:"-"`
}

// LoginInput carries the payload for credential verification.
type LoginInput struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	SessionID  string `json:"sessionId"`
	ClientAddr string `json:"-"`
	UserAgent  string `json:"-"`
}

// # Authentication Service

// Service implements registration, login, logout, and whoami on top of the
// user repository and the session layer.
//
// Identity is bound to the session record rather than issued as a token;
// the session key is the only credential a terminal holds after login.
type Service struct {
	users    UserRepository
	sessions *session.Service
	logger   *slog.Logger
}

// NewService wires the authentication service.
func NewService(users UserRepository, sessions *session.Service, logger *slog.Logger) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		logger:   logger,
	}
}

/*
Register validates and creates a new account, then binds it to a session.

Description: Usernames and emails are normalized to lowercase before
uniqueness checks. The caller's session is reused when a key is supplied,
otherwise a fresh session is created, so registration from a live terminal
keeps its conversational state.

Parameters:
  - context: context.Context
  - input: RegisterInput

Returns:
  - *session.Session: Session with the new identity bound
  - *User: The created account
  - error: Validation, conflict, or persistence failures
*/
func (service *Service) Register(context context.Context, input RegisterInput) (*session.Session, *User, error) {
	username := strings.ToLower(strings.TrimSpace(input.Username))
	email := strings.ToLower(strings.TrimSpace(input.Email))
	displayName := strings.TrimSpace(input.DisplayName)
	if displayName == "" {
		displayName = input.Username
	}

	validator := &validate.Validator{}
	validator.
		Required(FieldUsername, username).
		Username(FieldUsername, username).
		Required(FieldPassword, input.Password).
		MinLen(FieldPassword, input.Password, PasswordMinLength).
		MaxLen(FieldPassword, input.Password, PasswordMaxLength).
		MaxLen(FieldDisplayName, displayName, DisplayNameMaxLength)
	if email != "" {
		validator.Email(FieldEmail, email)
	}
	if err := validator.Err(); err != nil {
		return nil, nil, err
	}

	passwordHash, err := sec.HashPassword(input.Password)
	if err != nil {
		return nil, nil, apperr.Internal(err)
	}

	user := &User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		DisplayName:  displayName,
		Role:         sec.RoleUser,
	}

	if err := service.users.Create(context, user); err != nil {
		return nil, nil, err
	}

	bound, err := service.bindSession(context, input.SessionID, input.ClientAddr, input.UserAgent, user)
	if err != nil {
		return nil, nil, err
	}

	service.logger.Info("user registered",
		slog.String("username", user.Username),
		slog.String("session_key", bound.Key),
	)

	return bound, user, nil
}

/*
Login verifies credentials and binds the identity to a session.

Description: Unknown usernames and wrong passwords produce the same
401 response so the endpoint does not leak which accounts exist. Password
comparison is constant-time via the hashing layer.

Parameters:
  - context: context.Context
  - input: LoginInput

Returns:
  - *session.Session: Session with the identity bound
  - *User: The authenticated account
  - error: Validation, authentication, or persistence failures
*/
func (service *Service) Login(context context.Context, input LoginInput) (*session.Session, *User, error) {
	username := strings.ToLower(strings.TrimSpace(input.Username))

	validator := &validate.Validator{}
	validator.
		Required(FieldUsername, username).
		Required(FieldPassword, input.Password)
	if err := validator.Err(); err != nil {
		return nil, nil, err
	}

	invalidCredentials := apperr.Unauthorized("Invalid username or password")

	user, err := service.users.FindByUsername(context, username)
	if err != nil {
		if ae := apperr.As(err); ae != nil && ae.HTTPStatus == http.StatusNotFound {
			return nil, nil, invalidCredentials
		}
		return nil, nil, err
	}

	if !sec.CheckPasswordHash(input.Password, user.PasswordHash) {
		return nil, nil, invalidCredentials
	}

	if err := service.users.UpdateLastLogin(context, user.ID); err != nil {
		return nil, nil, err
	}
	// The fetched record predates the stamp; mirror it so the reply
	// matches the persisted state without a second round trip.
	now := time.Now()
	user.LastLogin = &now

	bound, err := service.bindSession(context, input.SessionID, input.ClientAddr, input.UserAgent, user)
	if err != nil {
		return nil, nil, err
	}

	service.logger.Info("user logged in",
		slog.String("username", user.Username),
		slog.String("session_key", bound.Key),
	)

	return bound, user, nil
}

/*
Logout detaches the identity from the session.

Description: The session itself survives — area, history, and app data are
kept so the terminal continues as an anonymous caller.

Parameters:
  - context: context.Context
  - sessionID: string

Returns:
  - error: apperr.NotFound or persistence failures
*/
func (service *Service) Logout(context context.Context, sessionID string) error {
	if sessionID == "" {
		return validate.RequiredError(FieldSessionID, "This field is required")
	}

	unbound, err := service.sessions.UnbindUser(context, sessionID)
	if err != nil {
		return err
	}

	service.logger.Info("user logged out", slog.String("session_key", unbound.Key))
	return nil
}

/*
Me returns the session snapshot plus, when authenticated, the public user view.

Parameters:
  - context: context.Context
  - sessionID: string

Returns:
  - *session.Session: Current session state
  - *User: Bound account, nil when anonymous
  - error: apperr.NotFound or persistence failures
*/
func (service *Service) Me(context context.Context, sessionID string) (*session.Session, *User, error) {
	if sessionID == "" {
		return nil, nil, validate.RequiredError(FieldSessionID, "This field is required")
	}

	current, err := service.sessions.Get(context, sessionID)
	if err != nil {
		return nil, nil, err
	}

	if !current.IsAuthenticated() {
		return current, nil, nil
	}

	user, err := service.users.FindByID(context, current.UserID)
	if err != nil {
		// Account removed underneath a live session: degrade to anonymous.
		if ae := apperr.As(err); ae != nil && ae.HTTPStatus == http.StatusNotFound {
			return current, nil, nil
		}
		return nil, nil, err
	}

	return current, user, nil
}

/*
PublicUser resolves a user id to its public view. Used by the capability
facade to answer current-user lookups from sandboxed apps.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - *PublicView: Client-safe projection
  - error: apperr.NotFound or persistence failures
*/
func (service *Service) PublicUser(context context.Context, userID string) (*PublicView, error) {
	user, err := service.users.FindByID(context, userID)
	if err != nil {
		return nil, err
	}

	view := user.Public()
	return &view, nil
}

// bindSession reuses or creates the caller's session and attaches the identity.
func (service *Service) bindSession(context context.Context, sessionID, clientAddr, userAgent string, user *User) (*session.Session, error) {
	resolved, _, err := service.sessions.Resolve(context, sessionID, clientAddr, userAgent)
	if err != nil {
		return nil, err
	}

	return service.sessions.BindUser(context, resolved.Key, user.ID, user.Username, string(user.Role))
}
