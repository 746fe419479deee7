// Package tmux provides centralized configuration and helpers for tmux invocations.
//
// tmux-mcp runs every controlled program on a dedicated tmux socket
// ("tmux-mcp" by default) so the sessions it creates never mix with the
// user's own tmux server, and so a crash of that server cannot take the
// user's sessions down with it. An empty socket name selects the user's
// default server.
//
// Sessions are addressed with exact-match targets: "=name" for session-scoped
// commands and "=name:" for pane-scoped ones, so a session called "py" never
// resolves to "python" by tmux's prefix matching.
package tmux

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
)

// DefaultBinary is the tmux executable looked up on PATH.
const DefaultBinary = "tmux"

// DefaultSocketName is the tmux socket used when none is configured.
const DefaultSocketName = "tmux-mcp"

// CommandContextWithSocket creates a context-aware exec.Cmd for the given tmux
// binary and socket.
func CommandContextWithSocket(ctx context.Context, binary, socket string, args ...string) *exec.Cmd {
	if binary == "" {
		binary = DefaultBinary
	}
	return exec.CommandContext(ctx, binary, CommandArgsWithSocket(socket, args...)...)
}

// CommandArgsWithSocket returns tmux arguments with a custom socket name.
// Use this when you need to build the command differently (e.g., for logging).
func CommandArgsWithSocket(socket string, args ...string) []string {
	return append(BaseArgsWithSocket(socket), args...)
}

// BaseArgsWithSocket returns socket arguments for a custom socket name.
// Returns nil for the default server.
func BaseArgsWithSocket(socket string) []string {
	if socket == "" {
		return nil
	}
	return []string{"-L", socket}
}

// SessionTarget returns an exact-match target for session-scoped commands
// (has-session, kill-session). A name ending in ";" is escaped so tmux does
// not split the command there and act on a truncated name.
func SessionTarget(name string) string {
	return EscapeArg("=" + name)
}

// PaneTarget returns an exact-match target for the active pane of the
// session's current window (send-keys, capture-pane, display-message).
func PaneTarget(name string) string {
	return "=" + name + ":"
}

// EscapeArg protects a caller-supplied argument from tmux's command parser,
// which treats any argument ending in ";" as a command separator. A trailing
// ";" becomes "\;", which tmux turns back into ";".
func EscapeArg(arg string) string {
	if strings.HasSuffix(arg, ";") {
		return arg[:len(arg)-1] + `\;`
	}
	return arg
}

// EscapeArgs applies EscapeArg to every element of args.
func EscapeArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = EscapeArg(a)
	}
	return out
}

// Sequence joins several tmux commands into one invocation separated by ";"
// arguments, so they run back to back on the server.
func Sequence(commands ...[]string) []string {
	var args []string
	for i, c := range commands {
		if len(c) == 0 {
			continue
		}
		if i > 0 && len(args) > 0 {
			args = append(args, ";")
		}
		args = append(args, c...)
	}
	return args
}

// IsSessionNotFound reports whether tmux stderr output means the target
// session (or its whole server) does not exist.
func IsSessionNotFound(stderr string) bool {
	return strings.Contains(stderr, "session not found") ||
		strings.Contains(stderr, "can't find session") ||
		strings.Contains(stderr, "can't find pane") ||
		strings.Contains(stderr, "can't find window") ||
		strings.Contains(stderr, "no server running") ||
		strings.Contains(stderr, "error connecting to")
}

// IsDuplicateSession reports whether tmux stderr output means new-session hit
// an existing session name.
func IsDuplicateSession(stderr string) bool {
	return strings.Contains(stderr, "duplicate session")
}

// Version returns the output of `tmux -V` (e.g. "tmux 3.4").
func Version(ctx context.Context, binary string) (string, error) {
	if binary == "" {
		binary = DefaultBinary
	}
	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, "-V")
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(stdout.String()), nil
}
