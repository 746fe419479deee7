// Package logging provides structured logging for tmux-mcp.
//
// It wraps log/slog with a JSON handler. Output goes to stderr by default, or
// to a size-rotated file when logging.file is configured. stdout is reserved
// for the MCP protocol stream and is never written by this package.
//
// # Levels
//
// The level lives in a shared slog.LevelVar so it can be changed at runtime
// (the serve command hot-reloads logging.level from the config file):
//
//	logger, err := logging.NewLogger(logging.Options{Level: "INFO"})
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//	logger.SetLevel("DEBUG")
//
// # Context
//
// Child loggers carry persistent attributes:
//
//	log := logger.WithComponent("registry").WithSession("repl")
//	log.Info("session started", "program", "python3")
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"session started","component":"registry","session":"repl","program":"python3"}
//
// # Rotation
//
// [RotatingWriter] renames the file to <file>.1 when the next write would
// exceed RotationConfig.MaxSizeMB, shifting older backups up to MaxBackups.
package logging
