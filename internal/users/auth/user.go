// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth implements the user identity layer of the board.

It defines the User entity, registration/login logic, and the binding of
authenticated identities to conversational sessions.

# Architecture

This layer is the "Truth" of the system. Identity never travels as a token;
it is attached to the session record, so every subsequent command carries
the caller's user automatically.
*/
package auth

import (
	"time"

	"github.com/taibuivan/termboard/internal/platform/sec"
)

// # Domain Entities

// User represents a registered member of the board.
type User struct {
	ID           string       `json:"id"`
	Username     string       `json:"username"`
	Email        string       `json:"email,omitempty"`
	PasswordHash string       `json:"-"` // Explicitly omitted from JSON for security.
	DisplayName  string       `json:"displayName"`
	Role         sec.UserRole `json:"role"`
	JoinDate     time.Time    `json:"joinDate"`
	LastLogin    *time.Time   `json:"lastLogin,omitempty"`
}

// PublicView is the projection of a user safe to hand to clients and to
// sandboxed apps. It never carries the password hash.
type PublicView struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	DisplayName string     `json:"displayName"`
	Email       string     `json:"email,omitempty"`
	Role        string     `json:"role"`
	JoinDate    time.Time  `json:"joinDate"`
	LastLogin   *time.Time `json:"lastLogin,omitempty"`
}

// Public returns the client-safe projection of the user.
func (u *User) Public() PublicView {
	return PublicView{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		Role:        string(u.Role),
		JoinDate:    u.JoinDate,
		LastLogin:   u.LastLogin,
	}
}

// # Field Identifiers

// Global field names for validation and identity mapping in the authentication domain.
const (
	FieldUsername    = "username"
	FieldEmail       = "email"
	FieldPassword    = "password"
	FieldDisplayName = "displayName"
	FieldSessionID   = "sessionId"
	FieldUser        = "user"
	FieldMessage     = "message"
	FieldIsLoggedIn  = "isLoggedIn"
)
