// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

// # Validation Bounds

const (
	// UsernameMinLength and UsernameMaxLength bound the login identifier.
	UsernameMinLength = 3
	UsernameMaxLength = 20

	// PasswordMinLength is the minimum accepted password length.
	PasswordMinLength = 8
	// PasswordMaxLength guards bcrypt's 72-byte input ceiling.
	PasswordMaxLength = 72

	// DisplayNameMaxLength bounds the public display name.
	DisplayNameMaxLength = 50
)
