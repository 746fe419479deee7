package backend

import (
	"bytes"
	"context"
	"io/fs"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/Iron-Ham/tmux-mcp/internal/errors"
	"github.com/Iron-Ham/tmux-mcp/internal/logging"
	"github.com/Iron-Ham/tmux-mcp/internal/tmux"
)

// Defaults for TmuxConfig.
const (
	DefaultWidth        = 200
	DefaultHeight       = 50
	DefaultHistoryLimit = 10000
	DefaultTimeout      = 10 * time.Second
)

// exitGrace is how long a pane program may take to exit on the hangup from
// kill-session before it is force-killed.
const exitGrace = 500 * time.Millisecond

// TmuxConfig holds the settings applied to every tmux invocation.
type TmuxConfig struct {
	Binary string
	// Socket is passed as -L. Empty selects the user's default server.
	Socket       string
	Width        int
	Height       int
	HistoryLimit int
	// RemainOnExit keeps a pane around after its program exits so the exit
	// is observable and its final output can still be read.
	RemainOnExit bool
	// Timeout bounds each tmux invocation.
	Timeout time.Duration
	// EscapeSequences captures with -e, keeping color and attribute codes.
	EscapeSequences bool
	// KillProcessTree force-kills pane processes that survive kill-session.
	KillProcessTree bool
}

// DefaultTmuxConfig returns the configuration used when nothing is set.
func DefaultTmuxConfig() TmuxConfig {
	return TmuxConfig{
		Binary:          tmux.DefaultBinary,
		Socket:          tmux.DefaultSocketName,
		Width:           DefaultWidth,
		Height:          DefaultHeight,
		HistoryLimit:    DefaultHistoryLimit,
		RemainOnExit:    true,
		Timeout:         DefaultTimeout,
		KillProcessTree: true,
	}
}

// TmuxBackend implements Backend by running the tmux binary.
type TmuxBackend struct {
	config TmuxConfig
	logger *logging.Logger
}

// NewTmuxBackend creates a TmuxBackend. A nil logger discards output.
func NewTmuxBackend(config TmuxConfig, logger *logging.Logger) *TmuxBackend {
	if config.Binary == "" {
		config.Binary = tmux.DefaultBinary
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &TmuxBackend{
		config: config,
		logger: logger.WithComponent("backend"),
	}
}

// Config returns the backend's configuration.
func (b *TmuxBackend) Config() TmuxConfig {
	return b.config
}

// Check verifies the tmux binary runs and returns its version string.
func (b *TmuxBackend) Check(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.config.Timeout)
	defer cancel()

	version, err := tmux.Version(ctx, b.config.Binary)
	if err != nil {
		return "", b.classify(ctx, "version", []string{"-V"}, err, "")
	}
	return version, nil
}

// CreateSession implements Backend.
//
// The whole setup runs as one tmux command sequence: history-limit is set
// globally on a dedicated socket first (it only applies to panes created
// afterwards), then new-session, then remain-on-exit on the new window.
func (b *TmuxBackend) CreateSession(ctx context.Context, name, program string, args []string) error {
	var pre, post []string
	if b.config.Socket != "" && b.config.HistoryLimit > 0 {
		pre = []string{"set-option", "-g", "history-limit", strconv.Itoa(b.config.HistoryLimit)}
	}

	create := []string{"new-session", "-d", "-s", tmux.EscapeArg(name)}
	if b.config.Width > 0 && b.config.Height > 0 {
		create = append(create, "-x", strconv.Itoa(b.config.Width), "-y", strconv.Itoa(b.config.Height))
	}
	create = append(create, tmux.EscapeArg(program))
	create = append(create, tmux.EscapeArgs(args)...)

	if b.config.RemainOnExit {
		post = []string{"set-option", "-w", "-t", tmux.PaneTarget(name), "remain-on-exit", "on"}
	}

	_, err := b.run(ctx, "new-session", tmux.Sequence(pre, create, post)...)
	if err == nil {
		return nil
	}

	var backendErr *errors.BackendError
	if errors.As(err, &backendErr) && tmux.IsDuplicateSession(backendErr.Stderr) {
		return errors.NewAlreadyExistsError("session", name).WithCause(errors.ErrSessionAlreadyExists)
	}
	return err
}

// KillSession implements Backend. With KillProcessTree set, the tree of a
// live pane is collected first and whatever outlives the hangup is
// force-killed afterwards. Exited panes are left to kill-session alone.
func (b *TmuxBackend) KillSession(ctx context.Context, name string) error {
	var pids []int
	if b.config.KillProcessTree {
		inspectCtx, cancel := context.WithTimeout(ctx, b.config.Timeout)
		pids = tmux.CollectProcessTree(inspectCtx, b.config.Binary, b.config.Socket, name)
		cancel()
	}

	if _, err := b.run(ctx, "kill-session", "kill-session", "-t", tmux.SessionTarget(name)); err != nil {
		return err
	}

	if killed := tmux.ReapSurvivors(pids, exitGrace); killed > 0 {
		b.logger.Debug("force-killed pane processes", "session", name, "killed", killed, "tree", len(pids))
	}
	return nil
}

// HasSession implements Backend. A server that is not running has no
// sessions, so that case is not an error.
func (b *TmuxBackend) HasSession(ctx context.Context, name string) (bool, error) {
	_, err := b.run(ctx, "has-session", "has-session", "-t", tmux.SessionTarget(name))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, errors.ErrSessionGone) {
		return false, nil
	}
	return false, err
}

// PaneDead implements Backend.
func (b *TmuxBackend) PaneDead(ctx context.Context, name string) (bool, error) {
	out, err := b.run(ctx, "display-message", "display-message", "-p", "-t", tmux.PaneTarget(name), "#{pane_dead}")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) == "1", nil
}

// SendText implements Backend. Text goes through send-keys -l so words
// like "Enter" or "C-c" inside it are typed, not interpreted. The text and
// the Enter key form one command sequence, so no other client's input can
// land between them.
func (b *TmuxBackend) SendText(ctx context.Context, name, text string, enter bool) error {
	target := tmux.PaneTarget(name)
	var typed, submit []string
	if text != "" {
		typed = []string{"send-keys", "-t", target, "-l", "--", tmux.EscapeArg(text)}
	}
	if enter {
		submit = []string{"send-keys", "-t", target, "Enter"}
	}
	if typed == nil && submit == nil {
		return nil
	}
	_, err := b.run(ctx, "send-keys", tmux.Sequence(typed, submit)...)
	return err
}

// SendKey implements Backend.
func (b *TmuxBackend) SendKey(ctx context.Context, name, key string) error {
	_, err := b.run(ctx, "send-keys", "send-keys", "-t", tmux.PaneTarget(name), tmux.EscapeArg(key))
	return err
}

// CapturePane implements Backend. It returns the visible pane exactly as
// tmux prints it, including the blank rows below the last output.
func (b *TmuxBackend) CapturePane(ctx context.Context, name string) (string, error) {
	args := []string{"capture-pane", "-p", "-t", tmux.PaneTarget(name)}
	if b.config.EscapeSequences {
		args = append(args, "-e")
	}
	return b.run(ctx, "capture-pane", args...)
}

// run executes one tmux invocation under the configured timeout and returns
// its stdout. Failures come back as *errors.BackendError.
func (b *TmuxBackend) run(ctx context.Context, op string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.config.Timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := tmux.CommandContextWithSocket(ctx, b.config.Binary, b.config.Socket, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	start := time.Now()
	err := cmd.Run()
	b.logger.Debug("tmux",
		"op", op,
		"argv", cmd.Args,
		"duration_ms", time.Since(start).Milliseconds(),
		"ok", err == nil,
	)

	if err != nil {
		return "", b.classify(ctx, op, cmd.Args, err, stderr.String())
	}
	return stdout.String(), nil
}

// classify maps an exec failure onto the error taxonomy.
func (b *TmuxBackend) classify(ctx context.Context, op string, argv []string, err error, stderr string) error {
	var execErr *exec.Error
	if errors.As(err, &execErr) || errors.Is(err, fs.ErrNotExist) {
		return errors.NewBackendError("tmux "+op, errors.Join(errors.ErrBackendUnavailable, err)).
			WithArgs(argv)
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		cause := errors.Join(errors.ErrBackendCommandFailed, ctxErr)
		if ctxErr == context.DeadlineExceeded {
			cause = errors.Join(errors.ErrBackendCommandFailed,
				errors.NewTimeoutError("tmux "+op, b.config.Timeout).WithCause(ctxErr))
		}
		return errors.NewBackendError("tmux "+op, cause).
			WithArgs(argv).
			WithRetryable(true)
	}

	backendErr := errors.NewBackendError("tmux "+op, errors.ErrBackendCommandFailed).
		WithArgs(argv).
		WithStderr(stderr)

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		backendErr.WithExitCode(exitErr.ExitCode())
	}

	if tmux.IsSessionNotFound(stderr) {
		backendErr = errors.NewBackendError("tmux "+op, errors.ErrSessionGone).
			WithArgs(argv).
			WithStderr(stderr).
			WithExitCode(backendErr.ExitCode)
	}
	return backendErr
}

var _ Backend = (*TmuxBackend)(nil)
