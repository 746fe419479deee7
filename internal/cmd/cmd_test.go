package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/tmux-mcp/internal/config"
	"github.com/Iron-Ham/tmux-mcp/internal/errors"
	"github.com/Iron-Ham/tmux-mcp/internal/logging"
	"github.com/Iron-Ham/tmux-mcp/internal/session"
)

// executeCommand runs a cobra command with args and returns captured output
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err = root.Execute()
	return buf.String(), err
}

// setupTestEnvironment isolates config lookup, the lock directory and the
// log file from the developer's machine.
func setupTestEnvironment(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("TMPDIR", dir)
	t.Setenv("TMUX_MCP_LOGGING_FILE", filepath.Join(dir, "tmux-mcp.log"))
	t.Setenv("TMUX_MCP_TMUX_SOCKET", "cmd-test")
	return dir
}

// fakeTmux writes a stand-in tmux binary that only answers -V.
func fakeTmux(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "tmux")
	script := "#!/bin/sh\nif [ \"$1\" = \"-V\" ]; then echo 'tmux 3.4'; exit 0; fi\nexit 1\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "tmux-mcp" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "tmux-mcp")
	}

	expectedCmds := []string{"serve", "check", "keys", "config", "version"}
	cmdMap := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		cmdMap[cmd.Name()] = true
	}
	for _, expected := range expectedCmds {
		if !cmdMap[expected] {
			t.Errorf("expected subcommand %q not found", expected)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	setupTestEnvironment(t)
	output, err := executeCommand(rootCmd, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.HasPrefix(output, "tmux-mcp "+Version) {
		t.Errorf("output = %q", output)
	}
}

func TestKeysCommand(t *testing.T) {
	setupTestEnvironment(t)

	t.Run("plain", func(t *testing.T) {
		output, err := executeCommand(rootCmd, "keys", "--format", "plain")
		if err != nil {
			t.Fatalf("keys failed: %v", err)
		}
		for _, want := range []string{"enter\tEnter\n", "escape\tEscape\n", "pagedown\tPageDown\n"} {
			if !strings.Contains(strings.ToLower(output), strings.ToLower(want)) {
				t.Errorf("output missing %q", want)
			}
		}
	})

	t.Run("table", func(t *testing.T) {
		output, err := executeCommand(rootCmd, "keys", "--format", "table")
		if err != nil {
			t.Fatalf("keys failed: %v", err)
		}
		if !strings.Contains(output, "NAME") || !strings.Contains(output, "TMUX KEY") {
			t.Errorf("table output missing headers:\n%s", output)
		}
		if !strings.Contains(output, "BTab") {
			t.Errorf("table output missing BTab:\n%s", output)
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		if _, err := executeCommand(rootCmd, "keys", "--format", "xml"); err == nil {
			t.Error("keys --format xml should fail")
		}
	})
}

func TestConfigShowCommand(t *testing.T) {
	setupTestEnvironment(t)
	t.Setenv("TMUX_MCP_BACKEND_TIMEOUT", "3s")

	output, err := executeCommand(rootCmd, "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v\n%s", err, output)
	}
	for _, want := range []string{"socket: cmd-test", "timeout: 3s", "reconcile_parallelism: 4", "level: INFO"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestConfigShowCommand_Invalid(t *testing.T) {
	setupTestEnvironment(t)
	t.Setenv("TMUX_MCP_TMUX_WIDTH", "0")

	_, err := executeCommand(rootCmd, "config", "show")
	if err == nil || !strings.Contains(err.Error(), "tmux.width") {
		t.Errorf("config show error = %v, want tmux.width validation error", err)
	}
}

func TestConfigPathCommand(t *testing.T) {
	dir := setupTestEnvironment(t)
	output, err := executeCommand(rootCmd, "config", "path")
	if err != nil {
		t.Fatalf("config path failed: %v", err)
	}
	want := filepath.Join(dir, "config", "tmux-mcp", "config.yaml")
	if strings.TrimSpace(output) != want {
		t.Errorf("output = %q, want %q", output, want)
	}
}

func TestCheckCommand(t *testing.T) {
	t.Run("tmux available", func(t *testing.T) {
		dir := setupTestEnvironment(t)
		t.Setenv("TMUX_MCP_TMUX_BINARY", fakeTmux(t, dir))

		output, err := executeCommand(rootCmd, "check")
		if err != nil {
			t.Fatalf("check failed: %v", err)
		}
		if !strings.Contains(output, "tmux 3.4") || !strings.Contains(output, "socket: cmd-test") {
			t.Errorf("output = %q", output)
		}
	})

	t.Run("tmux missing", func(t *testing.T) {
		dir := setupTestEnvironment(t)
		t.Setenv("TMUX_MCP_TMUX_BINARY", filepath.Join(dir, "no-such-tmux"))

		_, err := executeCommand(rootCmd, "check")
		if !errors.Is(err, errors.ErrBackendUnavailable) {
			t.Errorf("check error = %v, want ErrBackendUnavailable", err)
		}
	})
}

func TestServeCommand(t *testing.T) {
	dir := setupTestEnvironment(t)
	t.Setenv("TMUX_MCP_TMUX_BINARY", fakeTmux(t, dir))

	lines := []string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","capabilities":{},"clientInfo":{"name":"cmd-test","version":"0"}}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized","params":{}}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"tmux_list_sessions","arguments":{}}}`,
	}
	pr, pw := io.Pipe()
	go func() {
		for _, line := range lines {
			if _, err := io.WriteString(pw, line+"\n"); err != nil {
				return
			}
		}
	}()

	// The client hangs up once both requests are answered.
	out := &hangUpAfter{lines: 2, in: pw}
	rootCmd.SetIn(pr)
	rootCmd.SetOut(out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs([]string{"serve"})
	t.Cleanup(func() { rootCmd.SetIn(nil) })

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("serve failed: %v\n%s", err, out.String())
	}
	output := out.String()

	var responses []map[string]any
	for _, line := range strings.Split(output, "\n") {
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var resp map[string]any
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			t.Fatalf("bad response line %q: %v", line, err)
		}
		responses = append(responses, resp)
	}
	if len(responses) != 2 {
		t.Fatalf("got %d responses, want 2:\n%s", len(responses), output)
	}
	if !strings.Contains(output, "No active sessions") {
		t.Errorf("list response missing:\n%s", output)
	}

	// The lock is released on exit.
	lockPath := filepath.Join(dir, "tmux-mcp-cmd-test.lock")
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Errorf("lock file should be removed after serve, stat error = %v", err)
	}

	// Logs went to the configured file, not stdout.
	if data, err := os.ReadFile(filepath.Join(dir, "tmux-mcp.log")); err != nil || !bytes.Contains(data, []byte("tmux available")) {
		t.Errorf("log file missing startup entry (err=%v)", err)
	}
}

// hangUpAfter collects server output and closes in after the given number
// of response lines.
type hangUpAfter struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	lines int
	in    io.Closer
}

func (h *hangUpAfter) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n, err := h.buf.Write(p)
	if bytes.Count(h.buf.Bytes(), []byte("\n")) >= h.lines {
		_ = h.in.Close()
	}
	return n, err
}

func (h *hangUpAfter) String() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buf.String()
}

func TestServeCommand_SocketLocked(t *testing.T) {
	dir := setupTestEnvironment(t)
	t.Setenv("TMUX_MCP_TMUX_BINARY", fakeTmux(t, dir))

	held, err := session.AcquireLock(filepath.Join(dir, "tmux-mcp-cmd-test.lock"), "cmd-test", nil)
	if err != nil {
		t.Fatalf("AcquireLock() error = %v", err)
	}
	defer held.Release()

	rootCmd.SetIn(strings.NewReader(""))
	t.Cleanup(func() { rootCmd.SetIn(nil) })

	if _, err := executeCommand(rootCmd, "serve"); !errors.Is(err, session.ErrSocketLocked) {
		t.Errorf("serve error = %v, want ErrSocketLocked", err)
	}
}

func TestServeCommand_TmuxMissing(t *testing.T) {
	dir := setupTestEnvironment(t)
	t.Setenv("TMUX_MCP_TMUX_BINARY", filepath.Join(dir, "no-such-tmux"))

	rootCmd.SetIn(strings.NewReader(""))
	t.Cleanup(func() { rootCmd.SetIn(nil) })

	if _, err := executeCommand(rootCmd, "serve"); !errors.Is(err, errors.ErrBackendUnavailable) {
		t.Errorf("serve error = %v, want ErrBackendUnavailable", err)
	}
}

func TestReloadLogLevel(t *testing.T) {
	setupTestEnvironment(t)
	config.SetDefaults()

	var buf bytes.Buffer
	logger := logging.NewWriterLogger(&buf, "INFO")

	viper.Set("logging.level", "debug")
	t.Cleanup(func() { viper.Set("logging.level", "INFO") })

	reloadLogLevel(logger, "config.yaml")
	if logger.Level() != logging.LevelDebug {
		t.Errorf("Level() = %q, want DEBUG", logger.Level())
	}
	if !strings.Contains(buf.String(), "log level changed") {
		t.Errorf("expected a level change entry, got %q", buf.String())
	}

	viper.Set("logging.level", "chatty")
	reloadLogLevel(logger, "config.yaml")
	if logger.Level() != logging.LevelDebug {
		t.Errorf("invalid level should be ignored, Level() = %q", logger.Level())
	}
}

func TestConfigConversions(t *testing.T) {
	cfg := config.Default()
	cfg.Tmux.Socket = "s"
	cfg.Capture.EscapeSequences = true
	cfg.Session.KillOnExit = true

	bc := backendConfig(cfg)
	if bc.Socket != "s" || !bc.EscapeSequences || bc.Timeout != cfg.Backend.Timeout || bc.Width != 200 {
		t.Errorf("backendConfig() = %+v", bc)
	}
	rc := registryConfig(cfg)
	if !rc.KillOnClose || rc.ReconcileParallelism != 4 {
		t.Errorf("registryConfig() = %+v", rc)
	}
	lo := loggerOptions(cfg)
	if lo.Level != "INFO" || lo.Rotation.MaxSizeMB != 10 || lo.Rotation.MaxBackups != 3 {
		t.Errorf("loggerOptions() = %+v", lo)
	}
}
