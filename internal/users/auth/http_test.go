// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

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

	"github.com/taibuivan/termboard/internal/session"
	"github.com/taibuivan/termboard/internal/users/auth"
)

func newTestHandler(t *testing.T) (*httptest.Server, *session.Service) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := session.NewService(session.NewMemoryRepository(), logger)
	service := auth.NewService(auth.NewMemoryRepository(), sessions, logger)
	handler := auth.NewHandler(service)

	server := httptest.NewServer(handler.Routes())
	t.Cleanup(server.Close)

	return server, sessions
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()

	response, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return response
}

func decode(t *testing.T, response *http.Response) map[string]any {
	t.Helper()

	defer func() { _ = response.Body.Close() }()
	var body map[string]any
	require.NoError(t, json.NewDecoder(response.Body).Decode(&body))
	return body
}

/*
TestRegister verifies account creation over the wire: the 201 reply
carries the bound session snapshot and the public user view, and the
password hash never leaves the server.
*/
func TestRegister(t *testing.T) {
	server, _ := newTestHandler(t)

	response := postJSON(t, server.URL+"/register",
		`{"username": "Alice", "password": "hunter22", "displayName": "Alice A."}`)
	require.Equal(t, http.StatusCreated, response.StatusCode)

	body := decode(t, response)
	assert.Equal(t, true, body["success"])

	sessionID, _ := body["sessionId"].(string)
	assert.Len(t, sessionID, 48)
	assert.Equal(t, "main", body["currentArea"])

	user, _ := body["user"].(map[string]any)
	require.NotNil(t, user)
	assert.Equal(t, "alice", user["username"])
	assert.Equal(t, "Alice A.", user["displayName"])
	assert.NotContains(t, user, "passwordHash")
}

/*
TestRegister_Conflict verifies the 409 for a case-insensitive duplicate.
*/
func TestRegister_Conflict(t *testing.T) {
	server, _ := newTestHandler(t)

	response := postJSON(t, server.URL+"/register", `{"username": "alice", "password": "hunter22"}`)
	require.Equal(t, http.StatusCreated, response.StatusCode)
	_ = response.Body.Close()

	response = postJSON(t, server.URL+"/register", `{"username": "ALICE", "password": "different8"}`)
	assert.Equal(t, http.StatusConflict, response.StatusCode)

	body := decode(t, response)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "CONFLICT", body["code"])
}

/*
TestLogin verifies credential checks and the reuse of a caller-supplied
session key on success.
*/
func TestLogin(t *testing.T) {
	server, sessions := newTestHandler(t)

	response := postJSON(t, server.URL+"/register", `{"username": "alice", "password": "hunter22"}`)
	require.Equal(t, http.StatusCreated, response.StatusCode)
	_ = response.Body.Close()

	_, _, err := sessions.Resolve(context.Background(), "terminal-7", "127.0.0.1", "test")
	require.NoError(t, err)

	response = postJSON(t, server.URL+"/login",
		`{"username": "Alice", "password": "hunter22", "sessionId": "terminal-7"}`)
	require.Equal(t, http.StatusOK, response.StatusCode)

	body := decode(t, response)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "terminal-7", body["sessionId"])

	user, _ := body["user"].(map[string]any)
	require.NotNil(t, user)
	assert.Equal(t, "alice", user["username"])
	assert.NotNil(t, user["lastLogin"])

	// Wrong password gets the uniform 401
	response = postJSON(t, server.URL+"/login", `{"username": "alice", "password": "wrong-pw"}`)
	assert.Equal(t, http.StatusUnauthorized, response.StatusCode)

	body = decode(t, response)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "UNAUTHORIZED", body["code"])
}

/*
TestMe_Lifecycle verifies the whoami snapshot across login and logout:
the identity detaches but the session and its history survive.
*/
func TestMe_Lifecycle(t *testing.T) {
	server, sessions := newTestHandler(t)

	response := postJSON(t, server.URL+"/register", `{"username": "alice", "password": "hunter22"}`)
	body := decode(t, response)
	sessionID, _ := body["sessionId"].(string)
	require.NotEmpty(t, sessionID)

	_, err := sessions.RecordCommand(context.Background(), sessionID, "WHO")
	require.NoError(t, err)

	response, getErr := http.Get(server.URL + "/me?sessionId=" + sessionID)
	require.NoError(t, getErr)
	body = decode(t, response)
	assert.Equal(t, true, body["isLoggedIn"])
	user, _ := body["user"].(map[string]any)
	require.NotNil(t, user)
	assert.Equal(t, "alice", user["username"])

	response = postJSON(t, server.URL+"/logout", `{"sessionId": "`+sessionID+`"}`)
	require.Equal(t, http.StatusOK, response.StatusCode)
	_ = response.Body.Close()

	response, getErr = http.Get(server.URL + "/me?sessionId=" + sessionID)
	require.NoError(t, getErr)
	body = decode(t, response)
	assert.Equal(t, false, body["isLoggedIn"])
	assert.NotContains(t, body, "user")
	assert.Equal(t, []any{"WHO"}, body["commandHistory"])
}

/*
TestMe_Errors verifies the 400 for a missing key and the 404 for an
unknown one.
*/
func TestMe_Errors(t *testing.T) {
	server, _ := newTestHandler(t)

	response, err := http.Get(server.URL + "/me")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, response.StatusCode)
	_ = response.Body.Close()

	response, err = http.Get(server.URL + "/me?sessionId=ghost")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, response.StatusCode)

	body := decode(t, response)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "NOT_FOUND", body["code"])
}
