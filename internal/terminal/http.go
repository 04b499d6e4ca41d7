// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package terminal implements the client-facing endpoints of the board:
session bootstrap, command submission, and session probing.

The terminal front end is a thin renderer over these three calls; every
reply carries enough session state to keep it in sync without a second
round trip.
*/
package terminal

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/termboard/internal/bbs/registry"
	"github.com/taibuivan/termboard/internal/bbs/shell"
	"github.com/taibuivan/termboard/internal/platform/apperr"
	requestutil "github.com/taibuivan/termboard/internal/platform/request"
	"github.com/taibuivan/termboard/internal/platform/respond"
	"github.com/taibuivan/termboard/internal/session"
	"github.com/taibuivan/termboard/pkg/convert"
)

// # Definitions & Constructors

// Handler implements the terminal-facing HTTP endpoints.
type Handler struct {
	sessions *session.Service
	shell    *shell.Shell
	registry *registry.Registry
}

// NewHandler constructs a new [Handler] with its dependencies.
func NewHandler(sessions *session.Service, dispatcher *shell.Shell, reg *registry.Registry) *Handler {
	return &Handler{
		sessions: sessions,
		shell:    dispatcher,
		registry: reg,
	}
}

// Routes returns a [chi.Router] with the terminal endpoints.
//
// # Endpoints
//   - GET  /init    : Resumes or creates a session, returns welcome + catalog.
//   - POST /command : Runs one command line through the shell.
//   - GET  /session : Probes whether a session key is live.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/init", handler.init)
	router.Post("/command", handler.command)
	router.Get("/session", handler.probe)

	return router
}

// # Request Payloads

type commandRequest struct {
	SessionID string `json:"sessionId"`
	Command   string `json:"command"`
}

// menuOption is one catalog row in the init reply.
type menuOption struct {
	Number      int    `json:"number"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

/*
init bootstraps a terminal session.

GET /terminal/init?sessionId=...&simplified=true

Description: Resumes the session when the key is known; an unknown key is
adopted for a fresh session, and an absent key mints a new one. The reply
carries both welcome variants plus the app catalog; defaultWelcomeText
follows the simplified flag.

Responses:
  - 200: sessionId, currentArea, defaultWelcomeText, fullWelcomeText,
    simpleWelcomeText, menuOptions
  - 500: Store failure
*/
func (handler *Handler) init(writer http.ResponseWriter, request *http.Request) {
	sessionID := requestutil.Query(request, "sessionId")
	simplified := convert.ToBool(requestutil.Query(request, "simplified"))

	current, _, err := handler.sessions.Resolve(request.Context(), sessionID, request.RemoteAddr, request.UserAgent())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	menu := handler.shell.MainMenu()
	full := fullWelcome(menu)
	simple := simpleWelcome(menu)

	defaultWelcome := full
	if simplified {
		defaultWelcome = simple
	}

	respond.OK(writer, map[string]any{
		"sessionId":          current.Key,
		"currentArea":        current.CurrentArea,
		"defaultWelcomeText": defaultWelcome,
		"fullWelcomeText":    full,
		"simpleWelcomeText":  simple,
		"menuOptions":        handler.menuOptions(),
	})
}

/*
command runs one command line through the shell.

POST /terminal/command

Request:
  - Body: commandRequest (sessionId, command)

Responses:
  - 200: message, data{screen?, area, response, refresh, session{id,
    currentArea, commandHistory}}
  - 400: Missing sessionId or command
  - 404: Unknown session
*/
func (handler *Handler) command(writer http.ResponseWriter, request *http.Request) {
	var payload commandRequest
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}

	var missing []apperr.FieldError
	if payload.SessionID == "" {
		missing = append(missing, apperr.FieldError{Field: "sessionId", Message: "This field is required"})
	}
	if payload.Command == "" {
		missing = append(missing, apperr.FieldError{Field: "command", Message: "This field is required"})
	}
	if len(missing) > 0 {
		respond.Error(writer, request, apperr.ValidationError("Missing required fields", missing...))
		return
	}

	result, snapshot, err := handler.shell.Execute(request.Context(), payload.SessionID, payload.Command)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	data := map[string]any{
		"area":     result.Area,
		"response": result.Response,
		"refresh":  result.Refresh,
		"session": map[string]any{
			"id":             snapshot.Key,
			"currentArea":    snapshot.CurrentArea,
			"commandHistory": snapshot.CommandHistory,
		},
	}
	if result.Screen != nil {
		data["screen"] = *result.Screen
	}

	respond.OK(writer, map[string]any{
		"message": "Command executed",
		"data":    data,
	})
}

/*
probe reports whether a session key is live.

GET /terminal/session?sessionId=...

Responses:
  - 200: exists, currentArea?, historyLength?
  - 400: Missing session id
*/
func (handler *Handler) probe(writer http.ResponseWriter, request *http.Request) {
	sessionID, err := requestutil.RequiredQuery(request, "sessionId")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	current, err := handler.sessions.Get(request.Context(), sessionID)
	if err != nil {
		if ae := apperr.As(err); ae != nil && ae.HTTPStatus == http.StatusNotFound {
			respond.OK(writer, map[string]any{"exists": false})
			return
		}
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{
		"exists":        true,
		"currentArea":   current.CurrentArea,
		"historyLength": len(current.CommandHistory),
	})
}

// menuOptions projects the registry into the init catalog.
func (handler *Handler) menuOptions() []menuOption {
	entries := handler.registry.ListAll()

	options := make([]menuOption, 0, len(entries))
	for i, entry := range entries {
		meta := entry.Meta()
		options = append(options, menuOption{
			Number:      i + 1,
			ID:          meta.ID,
			Name:        meta.Name,
			Description: meta.Description,
		})
	}
	return options
}
