// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package terminal

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/termboard/internal/bbs/app"
	"github.com/taibuivan/termboard/internal/bbs/registry"
	"github.com/taibuivan/termboard/internal/bbs/shell"
	"github.com/taibuivan/termboard/internal/session"
)

type boardsApp struct{}

func (boardsApp) Meta() app.Meta {
	return app.Meta{ID: "messageBoards", Name: "Message Boards", Version: "1.0.0", Description: "Public boards"}
}

func (boardsApp) WelcomeScreen() string { return "WELCOME TO THE BOARDS" }

func (boardsApp) Help(_ *string) string { return "Board help" }

func (boardsApp) HandleCommand(_ context.Context, screenID *string, command string, _ app.SessionView) (app.CommandResult, error) {
	return app.CommandResult{Screen: screenID, Response: "echo: " + command, Refresh: false}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *session.Service) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := registry.New(nil, logger)
	sessions := session.NewService(session.NewMemoryRepository(), logger)

	_, err := reg.Register(context.Background(), boardsApp{}, registry.OriginBuiltin, "")
	require.NoError(t, err)

	dispatcher := shell.New(sessions, reg, nil, logger)
	handler := NewHandler(sessions, dispatcher, reg)

	server := httptest.NewServer(handler.Routes())
	t.Cleanup(server.Close)

	return server, sessions
}

func decodeBody(t *testing.T, response *http.Response) map[string]any {
	t.Helper()

	defer func() { _ = response.Body.Close() }()
	var body map[string]any
	require.NoError(t, json.NewDecoder(response.Body).Decode(&body))
	return body
}

/*
TestInit_FreshBoot verifies the first-contact flow: a new session in the
main area with a welcome containing the main menu.
*/
func TestInit_FreshBoot(t *testing.T) {
	server, _ := newTestServer(t)

	response, err := http.Get(server.URL + "/init")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, response.StatusCode)

	body := decodeBody(t, response)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "main", body["currentArea"])
	assert.Contains(t, body["defaultWelcomeText"], "MAIN MENU")
	assert.Contains(t, body["fullWelcomeText"], "MAIN MENU")
	assert.Contains(t, body["simpleWelcomeText"], "MAIN MENU")

	sessionID, _ := body["sessionId"].(string)
	assert.Len(t, sessionID, 48)

	options, _ := body["menuOptions"].([]any)
	require.Len(t, options, 1)
	first, _ := options[0].(map[string]any)
	assert.Equal(t, "messageBoards", first["id"])
	assert.Equal(t, float64(1), first["number"])
}

/*
TestInit_ResumeAndAdopt verifies that a known key resumes its session and
an unknown key is adopted verbatim.
*/
func TestInit_ResumeAndAdopt(t *testing.T) {
	server, sessions := newTestServer(t)

	_, _, err := sessions.Resolve(context.Background(), "known-key", "127.0.0.1", "test")
	require.NoError(t, err)
	_, err = sessions.SetCurrentArea(context.Background(), "known-key", "messageBoards:home")
	require.NoError(t, err)

	response, err := http.Get(server.URL + "/init?sessionId=known-key")
	require.NoError(t, err)
	body := decodeBody(t, response)
	assert.Equal(t, "known-key", body["sessionId"])
	assert.Equal(t, "messageBoards:home", body["currentArea"])

	response, err = http.Get(server.URL + "/init?sessionId=brand-new")
	require.NoError(t, err)
	body = decodeBody(t, response)
	assert.Equal(t, "brand-new", body["sessionId"])
	assert.Equal(t, "main", body["currentArea"])
}

/*
TestCommand verifies dispatch through the endpoint, including the session
snapshot in the reply.
*/
func TestCommand(t *testing.T) {
	server, sessions := newTestServer(t)

	_, _, err := sessions.Resolve(context.Background(), "sess1", "127.0.0.1", "test")
	require.NoError(t, err)

	response, err := http.Post(server.URL+"/command", "application/json",
		strings.NewReader(`{"sessionId": "sess1", "command": "1"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, response.StatusCode)

	body := decodeBody(t, response)
	assert.Equal(t, true, body["success"])

	data, _ := body["data"].(map[string]any)
	require.NotNil(t, data)
	assert.Equal(t, "messageBoards:home", data["area"])
	assert.Equal(t, "home", data["screen"])
	assert.Equal(t, true, data["refresh"])
	assert.Equal(t, "WELCOME TO THE BOARDS", data["response"])

	snapshot, _ := data["session"].(map[string]any)
	require.NotNil(t, snapshot)
	assert.Equal(t, "sess1", snapshot["id"])
	assert.Equal(t, "messageBoards:home", snapshot["currentArea"])
	assert.Equal(t, []any{"1"}, snapshot["commandHistory"])
}

/*
TestCommand_MissingFields verifies the 400 contract for incomplete bodies.
*/
func TestCommand_MissingFields(t *testing.T) {
	server, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"no session", `{"command": "1"}`},
		{"no command", `{"sessionId": "sess1"}`},
		{"empty", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			response, err := http.Post(server.URL+"/command", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, response.StatusCode)

			body := decodeBody(t, response)
			assert.Equal(t, false, body["success"])
		})
	}
}

/*
TestProbe verifies the session existence check.
*/
func TestProbe(t *testing.T) {
	server, sessions := newTestServer(t)

	response, err := http.Get(server.URL + "/session?sessionId=ghost")
	require.NoError(t, err)
	body := decodeBody(t, response)
	assert.Equal(t, false, body["exists"])

	_, _, err = sessions.Resolve(context.Background(), "sess1", "127.0.0.1", "test")
	require.NoError(t, err)
	_, err = sessions.RecordCommand(context.Background(), "sess1", "HELLO")
	require.NoError(t, err)

	response, err = http.Get(server.URL + "/session?sessionId=sess1")
	require.NoError(t, err)
	body = decodeBody(t, response)
	assert.Equal(t, true, body["exists"])
	assert.Equal(t, "main", body["currentArea"])
	assert.Equal(t, float64(1), body["historyLength"])

	response, err = http.Get(server.URL + "/session")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, response.StatusCode)
	_ = response.Body.Close()
}
