// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// BBSKeyValueTable represents the 'bbs.keyvalue' table
type BBSKeyValueTable struct {
	Table     string
	AppID     string
	Key       string
	UserID    string
	Namespace string
	Value     string
	ExpiresAt string
	CreatedAt string
	UpdatedAt string
}

// BBSKeyValue is the schema definition for bbs.keyvalue
var BBSKeyValue = BBSKeyValueTable{
	Table:     "bbs.keyvalue",
	AppID:     "appid",
	Key:       "key",
	UserID:    "userid",
	Namespace: "namespace",
	Value:     "value",
	ExpiresAt: "expiresat",
	CreatedAt: "createdat",
	UpdatedAt: "updatedat",
}

// Columns returns all standard column names
func (t BBSKeyValueTable) Columns() []string {
	return []string{
		t.AppID, t.Key, t.UserID, t.Namespace, t.Value,
		t.ExpiresAt, t.CreatedAt, t.UpdatedAt,
	}
}
