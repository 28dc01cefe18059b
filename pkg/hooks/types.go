// DispatchKit - command definition and dispatch engine
// License: MIT
//
// Copyright (c) 2026 DispatchKit contributors

package hooks

import "time"

// CommandRegisteredEvent is fired after a command subtree is linked into the tree.
type CommandRegisteredEvent struct {
	Path        []string
	Description string
	Aliases     []string
	Subcommands int
	Root        bool
}

// BeforeDispatchEvent is fired before a command line is resolved.
// Handlers can rewrite Tokens, or set Cancel to reject the dispatch.
type BeforeDispatchEvent struct {
	DispatchID   string
	Commander    string
	Tokens       []string // Modifiable
	Cancel       bool
	CancelReason string
}

// DispatchedEvent is fired once a dispatch finished, whatever the outcome.
type DispatchedEvent struct {
	DispatchID string
	Commander  string
	Tokens     []string
	Pattern    string
	Outcome    string
	Error      string
	Actions    int
	Failures   []string
	Duration   time.Duration
	At         time.Time
}
