package session

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/Iron-Ham/tmux-mcp/internal/capture"
	"github.com/Iron-Ham/tmux-mcp/internal/errors"
	"github.com/Iron-Ham/tmux-mcp/internal/logging"
)

// DefaultReconcileParallelism bounds concurrent backend status checks during List.
const DefaultReconcileParallelism = 4

// RegistryConfig holds Registry settings.
type RegistryConfig struct {
	// ReconcileParallelism bounds concurrent backend status checks during List.
	ReconcileParallelism int
	// KillOnClose makes Close kill every tracked session. By default sessions
	// are left running in tmux when the server stops.
	KillOnClose bool
}

// entry is the registry's record for one name. sess and removed are guarded
// by Registry.mu; mu serializes backend I/O for the session.
type entry struct {
	mu      sync.Mutex
	sess    Session
	removed bool
}

// Registry owns the set of tracked sessions. It is safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry

	ctrl   *Controller
	config RegistryConfig
	logger *logging.Logger
	now    func() time.Time
}

// NewRegistry creates an empty Registry. A nil logger discards output.
func NewRegistry(ctrl *Controller, config RegistryConfig, logger *logging.Logger) *Registry {
	if config.ReconcileParallelism <= 0 {
		config.ReconcileParallelism = DefaultReconcileParallelism
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Registry{
		entries: make(map[string]*entry),
		ctrl:    ctrl,
		config:  config,
		logger:  logger.WithComponent("registry"),
		now:     time.Now,
	}
}

func notFound(name string) error {
	return errors.NewNotFoundError("session", name).WithCause(errors.ErrSessionNotFound)
}

func alreadyExists(name string, cause error) error {
	if cause == nil {
		cause = errors.ErrSessionAlreadyExists
	}
	return errors.NewAlreadyExistsError("session", name).WithCause(cause)
}

// Start launches program with args in a new backend session and tracks it.
//
// The name is reserved atomically before any backend call, so of several
// concurrent starts with one name exactly one succeeds. A name already used
// by a session on the backend (one this registry did not start) is also
// rejected. On any failure nothing is tracked.
func (r *Registry) Start(ctx context.Context, name, program string, args []string) (Session, error) {
	if strings.TrimSpace(name) == "" {
		return Session{}, errors.NewValidationError("session name cannot be empty").WithField("session_name")
	}
	// tmux rewrites these to '_', which would leave the entry pointing at a
	// session that does not exist.
	if strings.ContainsAny(name, ".:") {
		return Session{}, errors.NewValidationError("session name cannot contain '.' or ':'").WithField("session_name")
	}
	if strings.TrimSpace(program) == "" {
		return Session{}, errors.NewValidationError("program cannot be empty").WithField("program")
	}

	r.mu.Lock()
	if _, exists := r.entries[name]; exists {
		r.mu.Unlock()
		return Session{}, alreadyExists(name, nil)
	}
	e := &entry{sess: Session{
		ID:      uuid.NewString(),
		Name:    name,
		Program: program,
		Args:    slices.Clone(args),
		State:   StateStarting,
	}}
	e.mu.Lock()
	r.entries[name] = e
	r.mu.Unlock()
	defer e.mu.Unlock()

	log := r.logger.WithSession(name).With("id", e.sess.ID)

	exists, err := r.ctrl.Exists(ctx, name)
	if err == nil && exists {
		err = alreadyExists(name, errors.Wrap(errors.ErrSessionAlreadyExists, "tmux session exists on the backend"))
	}
	if err == nil {
		err = r.ctrl.Create(ctx, name, program, args)
	}
	if err != nil {
		r.release(e)
		log.Warn("session start failed", "program", program, "error", err, "code", errors.Code(err))
		if errors.Is(err, errors.ErrSessionAlreadyExists) {
			return Session{}, err
		}
		return Session{}, errors.NewSessionError("start", err).WithSessionName(name)
	}

	r.mu.Lock()
	now := r.now()
	e.sess.State = StateRunning
	e.sess.Created = now
	e.sess.LastActivity = now
	snapshot := e.sess.clone()
	r.mu.Unlock()

	log.Info("session started", "program", program, "args", args)
	return snapshot, nil
}

// release drops a reservation made by Start.
func (r *Registry) release(e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.removed = true
	if r.entries[e.sess.Name] == e {
		delete(r.entries, e.sess.Name)
	}
}

// Get returns the tracked session with this name.
func (r *Registry) Get(name string) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok || e.sess.State == StateStarting {
		return Session{}, notFound(name)
	}
	return e.sess.clone(), nil
}

// List reconciles tracked sessions against the backend and returns them
// sorted by name. Sessions whose backend session vanished are dropped and
// sessions whose program exited are reported as exited. A failed status
// check leaves that session's state as it was.
func (r *Registry) List(ctx context.Context) []Session {
	r.Reconcile(ctx)
	return r.Snapshot()
}

// Snapshot returns the tracked sessions sorted by name without querying the
// backend.
func (r *Registry) Snapshot() []Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions := make([]Session, 0, len(r.entries))
	for _, e := range r.entries {
		if e.sess.State == StateStarting {
			continue
		}
		sessions = append(sessions, e.sess.clone())
	}
	slices.SortFunc(sessions, func(a, b Session) int {
		return strings.Compare(a.Name, b.Name)
	})
	return sessions
}

type statusCheck struct {
	entry  *entry
	id     string
	status PaneStatus
	err    error
}

// Reconcile checks every tracked session on the backend concurrently and
// applies what it finds.
func (r *Registry) Reconcile(ctx context.Context) {
	r.mu.Lock()
	targets := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		if e.sess.State == StateRunning || e.sess.State == StateExited {
			targets = append(targets, e)
		}
	}
	r.mu.Unlock()

	if len(targets) == 0 {
		return
	}

	p := pool.NewWithResults[statusCheck]().WithMaxGoroutines(r.config.ReconcileParallelism)
	for _, e := range targets {
		p.Go(func() statusCheck {
			e.mu.Lock()
			defer e.mu.Unlock()

			r.mu.Lock()
			id, name, removed := e.sess.ID, e.sess.Name, e.removed
			r.mu.Unlock()
			if removed {
				return statusCheck{entry: e, id: id, status: PaneGone}
			}

			status, err := r.ctrl.Status(ctx, name)
			return statusCheck{entry: e, id: id, status: status, err: err}
		})
	}

	for _, res := range p.Wait() {
		r.apply(res)
	}
}

// apply records one status check, unless the entry changed in the meantime.
func (r *Registry) apply(res statusCheck) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := res.entry
	if e.removed || e.sess.ID != res.id {
		return
	}
	log := r.logger.WithSession(e.sess.Name).With("id", e.sess.ID)

	if res.err != nil {
		log.Warn("session status check failed", "error", res.err)
		return
	}

	switch res.status {
	case PaneGone:
		r.removeLocked(e)
		log.Info("session reclaimed", "reason", "backend session gone")
	case PaneDead:
		if e.sess.State != StateExited {
			e.sess.State = StateExited
			log.Info("session program exited", "program", e.sess.Program)
		}
	}
}

// removeLocked drops e from the registry. The caller must hold r.mu.
func (r *Registry) removeLocked(e *entry) {
	e.removed = true
	if r.entries[e.sess.Name] == e {
		delete(r.entries, e.sess.Name)
	}
}

// acquire looks up a visible entry and locks it for backend I/O. The caller
// must unlock e.mu. The returned id identifies the session acquired, so a
// result can never be applied to a later session with the same name.
func (r *Registry) acquire(name string) (*entry, string, error) {
	r.mu.Lock()
	e, ok := r.entries[name]
	if !ok || e.sess.State == StateStarting {
		r.mu.Unlock()
		return nil, "", notFound(name)
	}
	r.mu.Unlock()

	e.mu.Lock()

	r.mu.Lock()
	if e.removed {
		r.mu.Unlock()
		e.mu.Unlock()
		return nil, "", notFound(name)
	}
	id := e.sess.ID
	r.mu.Unlock()
	return e, id, nil
}

// finish applies the outcome of a send or read performed under e.mu. touch
// records the operation as activity when it succeeded.
func (r *Registry) finish(e *entry, id, op string, err error, touch bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := !e.removed && e.sess.ID == id
	if err == nil {
		if current && touch {
			e.sess.LastActivity = r.now()
		}
		return nil
	}

	name := e.sess.Name
	if errors.Is(err, errors.ErrSessionGone) {
		if current {
			r.removeLocked(e)
			r.logger.WithSession(name).Info("session reclaimed", "id", id, "reason", op+" found backend session gone")
		}
		return errors.NewNotFoundError("session", name).WithCause(errors.Join(errors.ErrSessionNotFound, err))
	}
	return errors.NewSessionError(op, err).WithSessionName(name).WithSessionID(id)
}

// SendCommand types text into the session and optionally presses Enter.
func (r *Registry) SendCommand(ctx context.Context, name, text string, pressEnter bool) error {
	e, id, err := r.acquire(name)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	err = r.ctrl.SendCommand(ctx, name, text, pressEnter)
	return r.finish(e, id, "send command", err, true)
}

// SendKey sends one symbolic key to the session.
func (r *Registry) SendKey(ctx context.Context, name, key string) error {
	e, id, err := r.acquire(name)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	err = r.ctrl.SendKey(ctx, name, key)
	if errors.Is(err, errors.ErrUnknownKey) {
		return err
	}
	return r.finish(e, id, "send key", err, true)
}

// ReadOutput captures the session's pane. It counts as activity.
func (r *Registry) ReadOutput(ctx context.Context, name string, opts capture.Options) (string, error) {
	return r.read(ctx, name, opts, true)
}

// Peek captures the session's pane like ReadOutput but leaves LastActivity
// untouched. A session found gone is still reclaimed.
func (r *Registry) Peek(ctx context.Context, name string, opts capture.Options) (string, error) {
	return r.read(ctx, name, opts, false)
}

func (r *Registry) read(ctx context.Context, name string, opts capture.Options, touch bool) (string, error) {
	e, id, err := r.acquire(name)
	if err != nil {
		return "", err
	}
	defer e.mu.Unlock()

	text, err := r.ctrl.ReadOutput(ctx, name, opts)
	if err := r.finish(e, id, "read output", err, touch); err != nil {
		return "", err
	}
	return text, nil
}

// Kill terminates the session's backend session and stops tracking it.
// Killing a session whose program already exited, or whose backend session
// is already gone, succeeds. If the backend fails to kill, the session stays
// tracked so the caller can retry.
func (r *Registry) Kill(ctx context.Context, name string) error {
	e, id, err := r.acquire(name)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	if err := r.ctrl.Terminate(ctx, name); err != nil {
		r.logger.WithSession(name).Error("session kill failed", "id", id, "error", err)
		return errors.NewSessionError("kill", err).WithSessionName(name).WithSessionID(id)
	}

	r.mu.Lock()
	e.sess.State = StateKilled
	r.removeLocked(e)
	r.mu.Unlock()

	r.logger.WithSession(name).Info("session killed", "id", id)
	return nil
}

// Len returns the number of tracked sessions, including in-flight starts.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close is called when the server shuts down. With KillOnClose set it kills
// every tracked session; otherwise sessions keep running in tmux.
func (r *Registry) Close(ctx context.Context) error {
	sessions := r.Snapshot()
	if !r.config.KillOnClose {
		if len(sessions) > 0 {
			r.logger.Info("leaving sessions running", "count", len(sessions))
		}
		return nil
	}

	var errs []error
	for _, s := range sessions {
		if err := r.Kill(ctx, s.Name); err != nil && !errors.Is(err, errors.ErrSessionNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
