// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package app

import "time"

// # Session Projection

// SessionView is the defensive, read-only projection of a session handed
// to apps. The Data bag contains only the receiving app's own partition,
// deep-copied, so mutations by the app are invisible to the host; apps
// persist state via CommandResult.Data or the capability facade.
type SessionView struct {
	Key            string         `json:"sessionKey"`
	UserID         string         `json:"userId,omitempty"`
	Username       string         `json:"username,omitempty"`
	Role           string         `json:"role,omitempty"`
	CurrentArea    string         `json:"currentArea"`
	CommandHistory []string       `json:"commandHistory"`
	Data           map[string]any `json:"data,omitempty"`
}

// IsAuthenticated reports whether a user is bound to the viewed session.
func (v SessionView) IsAuthenticated() bool {
	return v.UserID != ""
}

// UserView is the public projection of a user returned to apps via the
// capability facade. It never carries credentials.
type UserView struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	DisplayName string     `json:"displayName"`
	Role        string     `json:"role"`
	JoinDate    time.Time  `json:"joinDate"`
	LastLogin   *time.Time `json:"lastLogin,omitempty"`
}
