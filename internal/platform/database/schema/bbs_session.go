// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// BBSSessionTable represents the 'bbs.session' table
type BBSSessionTable struct {
	Table          string
	SessionKey     string
	UserID         string
	Username       string
	Role           string
	CurrentArea    string
	CommandHistory string
	Data           string
	ClientAddr     string
	UserAgent      string
	CreatedAt      string
	LastActivity   string
}

// BBSSession is the schema definition for bbs.session
var BBSSession = BBSSessionTable{
	Table:          "bbs.session",
	SessionKey:     "sessionkey",
	UserID:         "userid",
	Username:       "username",
	Role:           "role",
	CurrentArea:    "currentarea",
	CommandHistory: "commandhistory",
	Data:           "data",
	ClientAddr:     "clientaddr",
	UserAgent:      "useragent",
	CreatedAt:      "createdat",
	LastActivity:   "lastactivity",
}

// Columns returns all standard column names
func (t BBSSessionTable) Columns() []string {
	return []string{
		t.SessionKey, t.UserID, t.Username, t.Role, t.CurrentArea,
		t.CommandHistory, t.Data, t.ClientAddr, t.UserAgent,
		t.CreatedAt, t.LastActivity,
	}
}
