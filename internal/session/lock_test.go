package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Iron-Ham/tmux-mcp/internal/errors"
)

func TestAcquireLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tmux-mcp-test.lock")

	lock, err := AcquireLock(path, "test", nil)
	if err != nil {
		t.Fatalf("AcquireLock() error = %v", err)
	}

	info, err := ReadLock(path)
	if err != nil {
		t.Fatalf("ReadLock() error = %v", err)
	}
	if info.Socket != "test" || info.PID != os.Getpid() {
		t.Errorf("lock info = %+v", info)
	}

	// flock locks are per open file description, so a second acquire in
	// the same process is refused just like one from another process.
	if _, err := AcquireLock(path, "test", nil); !errors.Is(err, ErrSocketLocked) {
		t.Fatalf("second AcquireLock() error = %v, want ErrSocketLocked", err)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("lock file should be removed, stat error = %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Errorf("second Release() error = %v", err)
	}

	again, err := AcquireLock(path, "test", nil)
	if err != nil {
		t.Fatalf("AcquireLock() after release error = %v", err)
	}
	_ = again.Release()
}

func TestAcquireLock_StaleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stale.lock")
	if err := os.WriteFile(path, []byte(`{"socket":"old","pid":1}`), 0o644); err != nil {
		t.Fatal(err)
	}

	lock, err := AcquireLock(path, "new", nil)
	if err != nil {
		t.Fatalf("AcquireLock() over stale file error = %v", err)
	}
	defer lock.Release()

	info, _ := ReadLock(path)
	if info.Socket != "new" {
		t.Errorf("lock info socket = %q, want new", info.Socket)
	}
}

func TestReadLock_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.lock")
	_ = os.WriteFile(path, []byte("not json"), 0o644)
	if _, err := ReadLock(path); err == nil {
		t.Error("ReadLock() should fail on invalid content")
	}
	if _, err := ReadLock(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("ReadLock() should fail on a missing file")
	}
}
