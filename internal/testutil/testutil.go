// Package testutil provides testing utilities for tmux-mcp tests.
package testutil

import (
	"crypto/rand"
	"encoding/hex"
	"os/exec"
	"strings"
	"testing"
)

// SkipIfNoTmux skips the test if tmux is not available.
func SkipIfNoTmux(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("tmux"); err != nil {
		t.Skip("tmux not found in PATH, skipping test")
	}
}

// SkipIfNoPython skips the test if python3 is not available.
func SkipIfNoPython(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not found in PATH, skipping test")
	}
}

// IsolatedSocket returns a tmux socket name unique to this test and kills
// that socket's server when the test completes, so tests against real tmux
// never touch the user's sessions or each other's.
func IsolatedSocket(t *testing.T) string {
	t.Helper()

	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		t.Fatalf("failed to generate socket name: %v", err)
	}
	socket := "tmux-mcp-test-" + hex.EncodeToString(buf)

	t.Cleanup(func() {
		// The server may never have started; that is fine.
		_ = runTmux(socket, "kill-server")
	})
	return socket
}

// runTmux runs a tmux command against the given socket.
func runTmux(socket string, args ...string) error {
	cmd := exec.Command("tmux", append([]string{"-L", socket}, args...)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return &tmuxError{args: args, output: output, err: err}
	}
	return nil
}

type tmuxError struct {
	args   []string
	output []byte
	err    error
}

func (e *tmuxError) Error() string {
	return "tmux " + strings.Join(e.args, " ") + ": " + e.err.Error() + "\n" + string(e.output)
}

func (e *tmuxError) Unwrap() error {
	return e.err
}
