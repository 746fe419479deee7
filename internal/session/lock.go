package session

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/gofrs/flock"

	"github.com/Iron-Ham/tmux-mcp/internal/errors"
	"github.com/Iron-Ham/tmux-mcp/internal/logging"
)

// ErrSocketLocked is returned when another server already owns the tmux socket.
var ErrSocketLocked = errors.New("tmux socket is in use by another server")

// Lock is an acquired server lock on one tmux socket. Two servers sharing a
// socket would each track half the sessions and kill each other's sessions
// on shutdown, so only one may run per socket.
type Lock struct {
	Socket    string    `json:"socket"`
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"started_at"`

	flock  *flock.Flock
	logger *logging.Logger
}

// AcquireLock takes the lock file at path for socket without blocking.
// Returns ErrSocketLocked, naming the holder when it can be read, if another
// process holds it. The lock is released by the kernel if the process dies,
// so a stale file never blocks a new server. The logger may be nil.
func AcquireLock(path, socket string, logger *logging.Logger) (*Lock, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}

	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	if !locked {
		if holder, readErr := ReadLock(path); readErr == nil {
			logger.Error("failed to acquire lock", "socket", socket, "holder_pid", holder.PID, "holder_host", holder.Hostname)
			return nil, fmt.Errorf("%w: PID %d on %s since %s", ErrSocketLocked,
				holder.PID, holder.Hostname, holder.StartedAt.Format(time.RFC3339))
		}
		logger.Error("failed to acquire lock", "socket", socket)
		return nil, ErrSocketLocked
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	lock := &Lock{
		Socket:    socket,
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartedAt: time.Now(),
		flock:     fl,
		logger:    logger,
	}

	data, err := json.MarshalIndent(lock, "", "  ")
	if err == nil {
		err = os.WriteFile(path, data, 0o644)
	}
	if err != nil {
		_ = fl.Unlock()
		return nil, fmt.Errorf("failed to write lock file: %w", err)
	}

	logger.Info("socket lock acquired", "socket", socket, "pid", lock.PID, "path", path)
	return lock, nil
}

// Release unlocks and removes the lock file. Safe to call multiple times.
func (l *Lock) Release() error {
	if l == nil || l.flock == nil || !l.flock.Locked() {
		return nil
	}

	path := l.flock.Path()
	// Remove before unlocking so a waiting server never reads our stale info.
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		l.logger.Warn("failed to remove lock file", "path", path, "error", err)
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock %s: %w", path, err)
	}

	l.logger.Info("socket lock released", "socket", l.Socket)
	return nil
}

// ReadLock reads the holder information written to a lock file.
func ReadLock(path string) (*Lock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var lock Lock
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("failed to parse lock file: %w", err)
	}
	return &lock, nil
}
