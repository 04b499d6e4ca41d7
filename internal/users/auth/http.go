// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	requestutil "github.com/taibuivan/termboard/internal/platform/request"
	"github.com/taibuivan/termboard/internal/platform/respond"
	"github.com/taibuivan/termboard/internal/session"
)

// # Definitions & Constructors

// Handler implements authentication-related HTTP endpoints.
//
// # Scope
//
// Every endpoint operates on a session key; there is no token surface.
// The reply always carries the post-operation session snapshot so the
// terminal can stay in sync without a second round trip.
type Handler struct {
	authService *Service
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service) *Handler {
	return &Handler{authService: service}
}

// Routes returns a [chi.Router] configured with authentication-specific routes.
//
// # Endpoints
//   - POST /register : Creates an account and binds it to the session.
//   - POST /login    : Verifies credentials and binds the session.
//   - POST /logout   : Detaches the identity from the session.
//   - GET  /me       : Returns the session snapshot plus the public user view.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/register", handler.register)
	router.Post("/login", handler.login)
	router.Post("/logout", handler.logout)
	router.Get("/me", handler.me)

	return router
}

// # Request Payloads

type logoutRequest struct {
	SessionID string `json:"sessionId"`
}

/*
register handles the creation of a new user account.

POST /auth/register

Description: Validates input, rejects duplicate usernames/emails, hashes
the password, and binds the fresh identity to the caller's session.

Request:
  - Body: RegisterInput (username, password, displayName, email?, sessionId?)

Responses:
  - 201: sessionId, currentArea, commandHistory, user (public view)
  - 400: Validation failure
  - 409: Username or email already taken
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input RegisterInput
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}
	input.ClientAddr = request.RemoteAddr
	input.UserAgent = request.UserAgent()

	bound, user, err := handler.authService.Register(request.Context(), input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, sessionSnapshot(bound, map[string]any{
		FieldUser: user.Public(),
	}))
}

/*
login authenticates an existing account.

POST /auth/login

Description: Verifies the credentials, stamps last-login, and binds the
identity to the caller's session (reusing the supplied key when given).

Request:
  - Body: LoginInput (username, password, sessionId?)

Responses:
  - 200: sessionId, currentArea, commandHistory, user (public view)
  - 400: Validation failure
  - 401: Invalid username or password
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input LoginInput
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}
	input.ClientAddr = request.RemoteAddr
	input.UserAgent = request.UserAgent()

	bound, user, err := handler.authService.Login(request.Context(), input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, sessionSnapshot(bound, map[string]any{
		FieldUser: user.Public(),
	}))
}

/*
logout detaches the identity from the session.

POST /auth/logout

Request:
  - Body: logoutRequest (sessionId)

Responses:
  - 200: message
  - 400: Missing session id
  - 404: Unknown session
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	var payload logoutRequest
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.Logout(request.Context(), payload.SessionID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{
		FieldMessage: "Logged off. Session preserved.",
	})
}

/*
me returns the caller's identity and session snapshot.

GET /auth/me?sessionId=...

Responses:
  - 200: isLoggedIn, sessionId, currentArea, commandHistory, user?
  - 400: Missing session id
  - 404: Unknown session
*/
func (handler *Handler) me(writer http.ResponseWriter, request *http.Request) {
	sessionID := requestutil.Query(request, FieldSessionID)

	current, user, err := handler.authService.Me(request.Context(), sessionID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	fields := map[string]any{
		FieldIsLoggedIn: user != nil,
	}
	if user != nil {
		fields[FieldUser] = user.Public()
	}

	respond.OK(writer, sessionSnapshot(current, fields))
}

// sessionSnapshot merges the session state into a response payload.
func sessionSnapshot(s *session.Session, extra map[string]any) map[string]any {
	fields := map[string]any{
		FieldSessionID:   s.Key,
		"currentArea":    s.CurrentArea,
		"commandHistory": s.CommandHistory,
	}
	for key, value := range extra {
		fields[key] = value
	}
	return fields
}
