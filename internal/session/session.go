// Package session tracks the named terminal sessions an external controller
// drives through tmux.
//
// The [Registry] owns the name → [Session] map and is the only entry point
// for lifecycle operations. It delegates every backend interaction to a
// [Controller], which knows how to start, feed, read and stop one backend
// session but keeps no state of its own.
//
// # Concurrency
//
// A single registry mutex guards existence checks and state transitions.
// Each session also has its own mutex that serializes backend I/O for that
// session, so a kill waits for an in-flight send to the same session while
// operations on different sessions proceed in parallel. Backend calls never
// run under the registry mutex.
package session

import (
	"slices"
	"strings"
	"time"
)

// State is the lifecycle state of a tracked session.
type State string

const (
	// StateStarting marks a name reserved by an in-flight start. It is never
	// returned to callers.
	StateStarting State = "starting"
	// StateRunning means the backend session exists and its program is alive
	// as far as the last observation knows.
	StateRunning State = "running"
	// StateExited means the program ended but the pane is kept, so its last
	// output can still be read.
	StateExited State = "exited"
	// StateKilled is terminal; the entry is removed from the registry.
	StateKilled State = "killed"
)

// String returns the state name.
func (s State) String() string {
	return string(s)
}

// Session is a snapshot of one tracked session. Values returned by the
// Registry are copies; mutating them has no effect on the registry.
type Session struct {
	// ID is unique per start and never reused, even when a name is.
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Program string    `json:"program"`
	Args    []string  `json:"args,omitempty"`
	State   State     `json:"state"`
	Created time.Time `json:"created_at"`
	// LastActivity is the time of the last successful send or read.
	LastActivity time.Time `json:"last_activity_at"`
}

// clone returns a deep copy safe to hand to callers.
func (s Session) clone() Session {
	s.Args = slices.Clone(s.Args)
	return s
}

// CommandLine returns the program followed by its arguments, space separated.
func (s Session) CommandLine() string {
	return strings.Join(append([]string{s.Program}, s.Args...), " ")
}
