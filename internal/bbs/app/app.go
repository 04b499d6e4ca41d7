// Copyright (c) 2026 Termboard. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package app defines the contract every board app satisfies, whether it is
bundled with the server, discovered in the local modules directory, or
fetched from a remote repository and run in the sandbox.

# Architecture

The package deliberately holds only types and validation: the host-side
interfaces an app is called through ([BBSApp]) and the narrow capability
surfaces handed to it ([Capabilities], [Storage], [Utils]). Implementations
live elsewhere (the capability package, the sandbox proxy, builtin apps),
which keeps this package dependency-free and cycle-free.
*/
package app

import "context"

// # The App Contract

// Meta carries an app's registry identity and descriptive metadata.
type Meta struct {
	// ID is the unique registry identifier (letters, digits, hyphen, underscore).
	ID string `json:"id"`
	// Name is the human-readable display name.
	Name string `json:"name"`
	// Version is a free-form version label.
	Version string `json:"version"`
	// Description is a short summary shown in the main menu catalog.
	Description string `json:"description"`
	// Author names the app's author.
	Author string `json:"author"`
	// Source is the origin URL for remote apps; empty otherwise.
	Source string `json:"source,omitempty"`
}

// BBSApp is the interface every board app implements.
//
// HandleCommand receives a nil screenID when the app is entered fresh; a
// returned nil Screen means "exit back to the main menu".
type BBSApp interface {

	// Meta returns the app's identity and metadata.
	Meta() Meta

	// WelcomeScreen returns the text shown when a caller enters the app.
	WelcomeScreen() string

	// HandleCommand processes one command line submitted while the caller
	// is inside the app.
	HandleCommand(ctx context.Context, screenID *string, command string, view SessionView) (CommandResult, error)

	// Help returns the help text for the given screen (nil for app-level help).
	Help(screenID *string) string
}

// Initializer is implemented by apps that want a one-time hook with their
// capability facade when they are registered.
type Initializer interface {
	OnInit(caps Capabilities)
}

// EnterExitObserver is implemented by apps that track authenticated callers
// crossing their boundary.
type EnterExitObserver interface {
	OnUserEnter(ctx context.Context, userID string, view SessionView)
	OnUserExit(ctx context.Context, userID string, view SessionView)
}

// # Command Results

// CommandResult is what an app returns for one handled command.
type CommandResult struct {
	// Screen is the next screen id inside the app; nil exits to the main menu.
	Screen *string `json:"screen"`
	// Response is the terminal text to render.
	Response string `json:"response"`
	// Refresh tells the terminal to clear before rendering.
	Refresh bool `json:"refresh"`
	// Data is an optional partial update of the app's per-session bag.
	Data map[string]any `json:"data,omitempty"`
}

// ScreenPtr is a convenience for building CommandResult literals.
func ScreenPtr(screen string) *string {
	return &screen
}
