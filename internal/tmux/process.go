package tmux

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// PaneProcess is what tmux reports about the program in a session's pane.
type PaneProcess struct {
	PID int
	// Dead is set when the program exited and remain-on-exit kept the pane.
	// PID then still names the exited program.
	Dead bool
}

// InspectPane queries the pid and liveness of the session's active pane.
// ok is false when the session is missing or the answer cannot be parsed.
func InspectPane(ctx context.Context, binary, socket, session string) (PaneProcess, bool) {
	cmd := CommandContextWithSocket(ctx, binary, socket,
		"display-message", "-p", "-t", PaneTarget(session), "#{pane_pid} #{pane_dead}")
	out, err := cmd.Output()
	if err != nil {
		return PaneProcess{}, false
	}
	return parsePaneProcess(string(out))
}

func parsePaneProcess(out string) (PaneProcess, bool) {
	fields := strings.Fields(out)
	if len(fields) != 2 {
		return PaneProcess{}, false
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil || pid <= 0 {
		return PaneProcess{}, false
	}
	return PaneProcess{PID: pid, Dead: fields[1] == "1"}, true
}

// CollectProcessTree returns the pane's pid followed by all its descendants,
// for cleanup after kill-session (the tree is undiscoverable once tmux drops
// the pane). A dead pane yields nil: its pid belongs to an exited program and
// may already have been reused by an unrelated process.
func CollectProcessTree(ctx context.Context, binary, socket, session string) []int {
	pane, ok := InspectPane(ctx, binary, socket, session)
	if !ok || pane.Dead {
		return nil
	}
	return append([]int{pane.PID}, Descendants(pane.PID)...)
}

// Descendants returns every process below pid, depth first, using pgrep -P.
func Descendants(pid int) []int {
	if pid <= 0 {
		return nil
	}
	out, err := exec.Command("pgrep", "-P", strconv.Itoa(pid)).Output()
	if err != nil {
		// pgrep exits 1 when there are no children.
		return nil
	}

	var pids []int
	for _, field := range strings.Fields(string(out)) {
		child, err := strconv.Atoi(field)
		if err != nil {
			continue
		}
		pids = append(pids, child)
		pids = append(pids, Descendants(child)...)
	}
	return pids
}

// Alive reports whether a process with this pid exists, using signal 0.
func Alive(pid int) bool {
	return pid > 0 && unix.Kill(pid, 0) == nil
}

// KillTree sends SIGKILL to pid's descendants, deepest first, then to pid.
func KillTree(pid int) {
	if pid <= 0 {
		return
	}
	below := Descendants(pid)
	for i := len(below) - 1; i >= 0; i-- {
		if Alive(below[i]) {
			_ = unix.Kill(below[i], unix.SIGKILL)
		}
	}
	if Alive(pid) {
		_ = unix.Kill(pid, unix.SIGKILL)
	}
}

// WaitForExit polls until pid is gone or timeout passes, and reports whether
// it exited.
func WaitForExit(pid int, timeout time.Duration) bool {
	if !Alive(pid) {
		return true
	}

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(timeout)
	for {
		select {
		case <-deadline:
			return !Alive(pid)
		case <-ticker.C:
			if !Alive(pid) {
				return true
			}
		}
	}
}

// ReapSurvivors runs after kill-session on a tree from CollectProcessTree.
// The pane program gets grace to exit on the hangup; then every pid still
// alive (programs that ignore SIGHUP, daemonized children) is killed along
// with its own descendants. It returns how many pids had to be killed.
func ReapSurvivors(pids []int, grace time.Duration) int {
	if len(pids) == 0 {
		return 0
	}
	WaitForExit(pids[0], grace)

	killed := 0
	for _, pid := range pids {
		if Alive(pid) {
			KillTree(pid)
			killed++
		}
	}
	return killed
}
