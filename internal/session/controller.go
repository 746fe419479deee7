package session

import (
	"context"

	"github.com/Iron-Ham/tmux-mcp/internal/backend"
	"github.com/Iron-Ham/tmux-mcp/internal/capture"
	"github.com/Iron-Ham/tmux-mcp/internal/errors"
	"github.com/Iron-Ham/tmux-mcp/internal/keys"
	"github.com/Iron-Ham/tmux-mcp/internal/logging"
)

// PaneStatus is what the backend reports about a session when queried.
type PaneStatus int

const (
	// PaneGone means the backend no longer has the session.
	PaneGone PaneStatus = iota
	// PaneAlive means the session exists and its program is running.
	PaneAlive
	// PaneDead means the session exists but its program has exited.
	PaneDead
)

// String returns a human-readable name for the status.
func (p PaneStatus) String() string {
	switch p {
	case PaneGone:
		return "gone"
	case PaneAlive:
		return "alive"
	case PaneDead:
		return "dead"
	default:
		return "unknown"
	}
}

// Controller performs operations on one backend session, addressed by name.
// It holds no per-session state and is safe for concurrent use; callers are
// responsible for serializing operations on the same session.
type Controller struct {
	backend backend.Backend
	keys    *keys.Translator
	logger  *logging.Logger
}

// NewController creates a Controller over b. A nil logger discards output.
func NewController(b backend.Backend, logger *logging.Logger) *Controller {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Controller{
		backend: b,
		keys:    keys.NewTranslator(),
		logger:  logger.WithComponent("controller"),
	}
}

// Create starts program with args in a new detached backend session.
func (c *Controller) Create(ctx context.Context, name, program string, args []string) error {
	return c.backend.CreateSession(ctx, name, program, args)
}

// Exists reports whether the backend has a session with this name.
func (c *Controller) Exists(ctx context.Context, name string) (bool, error) {
	return c.backend.HasSession(ctx, name)
}

// Terminate destroys the backend session. A session that is already gone is
// not an error: the desired end state holds.
func (c *Controller) Terminate(ctx context.Context, name string) error {
	err := c.backend.KillSession(ctx, name)
	if errors.Is(err, errors.ErrSessionGone) {
		c.logger.Debug("session already gone at terminate", "session", name)
		return nil
	}
	return err
}

// SendCommand types text into the session literally and, when pressEnter is
// set, submits it with an Enter key. Empty text with pressEnter sends only
// Enter; empty text without it does nothing.
func (c *Controller) SendCommand(ctx context.Context, name, text string, pressEnter bool) error {
	if text == "" && !pressEnter {
		return nil
	}
	return c.backend.SendText(ctx, name, text, pressEnter)
}

// SendKey resolves a symbolic key name and sends it. An unknown key fails
// before the backend is touched.
func (c *Controller) SendKey(ctx context.Context, name, keyName string) error {
	id, err := c.keys.Resolve(keyName)
	if err != nil {
		return err
	}
	return c.backend.SendKey(ctx, name, id)
}

// ReadOutput captures the session's pane as text.
func (c *Controller) ReadOutput(ctx context.Context, name string, opts capture.Options) (string, error) {
	return capture.Capture(ctx, c.backend, name, opts)
}

// Status queries the backend for the session's existence and pane state.
func (c *Controller) Status(ctx context.Context, name string) (PaneStatus, error) {
	exists, err := c.backend.HasSession(ctx, name)
	if err != nil {
		return PaneGone, err
	}
	if !exists {
		return PaneGone, nil
	}

	dead, err := c.backend.PaneDead(ctx, name)
	if errors.Is(err, errors.ErrSessionGone) {
		// Vanished between the two queries.
		return PaneGone, nil
	}
	if err != nil {
		return PaneAlive, err
	}
	if dead {
		return PaneDead, nil
	}
	return PaneAlive, nil
}
