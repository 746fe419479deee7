// Package backend defines the narrow multiplexer interface the session layer
// drives, and its tmux implementation.
//
// Every method addresses a session by name and is safe for concurrent use.
// A method that finds its session missing on the backend returns an error
// matching errors.ErrSessionGone; callers decide whether that is a failure
// (send, capture) or already the desired outcome (kill).
package backend

import "context"

// Backend is the set of multiplexer primitives used by the session layer.
type Backend interface {
	// CreateSession starts program with args in a new detached session.
	// Returns an error matching errors.ErrSessionAlreadyExists when the
	// backend already has a session with that name.
	CreateSession(ctx context.Context, name, program string, args []string) error

	// KillSession destroys the session and everything running in it.
	KillSession(ctx context.Context, name string) error

	// HasSession reports whether the backend has a session with that name.
	HasSession(ctx context.Context, name string) (bool, error)

	// PaneDead reports whether the session's pane process has exited while
	// the pane itself is kept.
	PaneDead(ctx context.Context, name string) (bool, error)

	// SendText types text into the pane without interpreting key names and,
	// when enter is set, submits it with Enter in the same invocation.
	SendText(ctx context.Context, name, text string, enter bool) error

	// SendKey sends one tmux key identifier (already translated) to the pane.
	SendKey(ctx context.Context, name, key string) error

	// CapturePane returns the pane's current contents as text.
	CapturePane(ctx context.Context, name string) (string, error)
}
