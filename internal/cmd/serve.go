package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/Iron-Ham/tmux-mcp/internal/backend"
	"github.com/Iron-Ham/tmux-mcp/internal/config"
	"github.com/Iron-Ham/tmux-mcp/internal/errors"
	"github.com/Iron-Ham/tmux-mcp/internal/logging"
	"github.com/Iron-Ham/tmux-mcp/internal/mcp"
	"github.com/Iron-Ham/tmux-mcp/internal/resource"
	"github.com/Iron-Ham/tmux-mcp/internal/session"
)

// shutdownTimeout bounds Registry.Close after the protocol stream ends.
const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve MCP over stdin and stdout",
	Long: `Serve the tmux session tools and resources over MCP on stdin and stdout.

The server runs until stdin is closed or it receives SIGINT or SIGTERM.
Logs go to stderr or to logging.file, never to stdout. Only one server may
use a given tmux socket at a time.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.NewLogger(loggerOptions(cfg))
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	in, out := cmd.InOrStdin(), cmd.OutOrStdout()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintln(cmd.ErrOrStderr(), "tmux-mcp: stdin is a terminal; this server expects an MCP client on stdin and stdout")
	}

	lock, err := session.AcquireLock(cfg.LockPath(), cfg.Tmux.Socket, logger)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b := backend.NewTmuxBackend(backendConfig(cfg), logger)
	if cfg.Backend.CheckOnStart {
		version, err := b.Check(ctx)
		if err != nil {
			return fmt.Errorf("tmux is not usable: %w", err)
		}
		logger.Info("tmux available", "version", version, "socket", cfg.Tmux.Socket)
	}

	registry := session.NewRegistry(session.NewController(b, logger), registryConfig(cfg), logger)
	server := mcp.NewServer(registry, resource.NewProvider(registry), Version, logger)

	watchConfig(logger)

	runErr := serve(ctx, server, in, out)

	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := registry.Close(closeCtx); err != nil {
		logger.Error("failed to clean up sessions", "error", err)
	}

	if runErr != nil {
		logger.Error("server stopped", "error", runErr)
		return runErr
	}
	logger.Info("server stopped")
	return nil
}

// serve runs the protocol loop. A signal is a normal way to stop.
func serve(ctx context.Context, server *mcp.Server, in io.Reader, out io.Writer) error {
	err := server.Run(ctx, in, out)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// watchConfig reloads the log level whenever the config file changes. Other
// settings take effect on the next start.
func watchConfig(logger *logging.Logger) {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		reloadLogLevel(logger, e.Name)
	})
	viper.WatchConfig()
}

func reloadLogLevel(logger *logging.Logger, source string) {
	cfg, err := config.Load()
	if err != nil {
		logger.Warn("ignoring invalid config change", "file", source, "error", err)
		return
	}
	if level := logging.ParseLevel(cfg.Logging.Level); level != logger.Level() {
		logger.SetLevel(level)
		logger.Info("log level changed", "level", level, "file", source)
	}
}

func backendConfig(cfg *config.Config) backend.TmuxConfig {
	return backend.TmuxConfig{
		Binary:          cfg.Tmux.Binary,
		Socket:          cfg.Tmux.Socket,
		Width:           cfg.Tmux.Width,
		Height:          cfg.Tmux.Height,
		HistoryLimit:    cfg.Tmux.HistoryLimit,
		RemainOnExit:    cfg.Tmux.RemainOnExit,
		Timeout:         cfg.Backend.Timeout,
		EscapeSequences: cfg.Capture.EscapeSequences,
		KillProcessTree: cfg.Tmux.KillProcessTree,
	}
}

func registryConfig(cfg *config.Config) session.RegistryConfig {
	return session.RegistryConfig{
		ReconcileParallelism: cfg.Session.ReconcileParallelism,
		KillOnClose:          cfg.Session.KillOnExit,
	}
}

func loggerOptions(cfg *config.Config) logging.Options {
	return logging.Options{
		Level: cfg.Logging.Level,
		File:  cfg.Logging.File,
		Rotation: logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
		},
	}
}
