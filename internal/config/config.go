package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables that override config
// keys: tmux.socket is read from TMUX_MCP_TMUX_SOCKET.
const EnvPrefix = "TMUX_MCP"

// Config represents the complete tmux-mcp configuration
type Config struct {
	Tmux    TmuxConfig    `mapstructure:"tmux" yaml:"tmux"`
	Backend BackendConfig `mapstructure:"backend" yaml:"backend"`
	Capture CaptureConfig `mapstructure:"capture" yaml:"capture"`
	Session SessionConfig `mapstructure:"session" yaml:"session"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// TmuxConfig controls how sessions are created on the tmux server
type TmuxConfig struct {
	// Binary is the tmux executable, looked up on PATH when not absolute
	Binary string `mapstructure:"binary" yaml:"binary"`
	// Socket is the -L socket name. Empty uses the user's default tmux server
	Socket string `mapstructure:"socket" yaml:"socket"`
	// Width and Height size new sessions
	Width  int `mapstructure:"width" yaml:"width"`
	Height int `mapstructure:"height" yaml:"height"`
	// HistoryLimit is the scrollback kept per pane (only applied on a dedicated socket)
	HistoryLimit int `mapstructure:"history_limit" yaml:"history_limit"`
	// RemainOnExit keeps panes whose program exited so their output stays readable
	RemainOnExit bool `mapstructure:"remain_on_exit" yaml:"remain_on_exit"`
	// KillProcessTree force-kills pane processes that outlive kill-session
	KillProcessTree bool `mapstructure:"kill_process_tree" yaml:"kill_process_tree"`
}

// BackendConfig controls tmux invocations
type BackendConfig struct {
	// Timeout bounds every tmux invocation
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// CheckOnStart makes serve fail at startup when tmux cannot be run
	CheckOnStart bool `mapstructure:"check_on_start" yaml:"check_on_start"`
}

// CaptureConfig controls pane capture
type CaptureConfig struct {
	// EscapeSequences keeps color and attribute codes in captured output
	EscapeSequences bool `mapstructure:"escape_sequences" yaml:"escape_sequences"`
}

// SessionConfig controls the session registry
type SessionConfig struct {
	// KillOnExit kills every tracked session when the server shuts down
	KillOnExit bool `mapstructure:"kill_on_exit" yaml:"kill_on_exit"`
	// ReconcileParallelism bounds concurrent tmux status checks when listing sessions
	ReconcileParallelism int `mapstructure:"reconcile_parallelism" yaml:"reconcile_parallelism"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Level is the minimum log level: DEBUG, INFO, WARN or ERROR (case-insensitive)
	Level string `mapstructure:"level" yaml:"level"`
	// File is the log file path. Empty logs to stderr
	File string `mapstructure:"file" yaml:"file"`
	// MaxSizeMB is the size at which the log file is rotated
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is the number of rotated files to keep
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Tmux: TmuxConfig{
			Binary:          "tmux",
			Socket:          "tmux-mcp",
			Width:           200,
			Height:          50,
			HistoryLimit:    10000,
			RemainOnExit:    true,
			KillProcessTree: true,
		},
		Backend: BackendConfig{
			Timeout:      10 * time.Second,
			CheckOnStart: true,
		},
		Capture: CaptureConfig{
			EscapeSequences: false,
		},
		Session: SessionConfig{
			KillOnExit:           false,
			ReconcileParallelism: 4,
		},
		Logging: LoggingConfig{
			Level:      "INFO",
			File:       "",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Tmux defaults
	viper.SetDefault("tmux.binary", defaults.Tmux.Binary)
	viper.SetDefault("tmux.socket", defaults.Tmux.Socket)
	viper.SetDefault("tmux.width", defaults.Tmux.Width)
	viper.SetDefault("tmux.height", defaults.Tmux.Height)
	viper.SetDefault("tmux.history_limit", defaults.Tmux.HistoryLimit)
	viper.SetDefault("tmux.remain_on_exit", defaults.Tmux.RemainOnExit)
	viper.SetDefault("tmux.kill_process_tree", defaults.Tmux.KillProcessTree)

	// Backend defaults
	viper.SetDefault("backend.timeout", defaults.Backend.Timeout)
	viper.SetDefault("backend.check_on_start", defaults.Backend.CheckOnStart)

	// Capture defaults
	viper.SetDefault("capture.escape_sequences", defaults.Capture.EscapeSequences)

	// Session defaults
	viper.SetDefault("session.kill_on_exit", defaults.Session.KillOnExit)
	viper.SetDefault("session.reconcile_parallelism", defaults.Session.ReconcileParallelism)

	// Logging defaults
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.file", defaults.Logging.File)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tmux-mcp")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tmux-mcp"
	}
	return filepath.Join(home, ".config", "tmux-mcp")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// LockPath returns the path of the lock file that keeps two servers from
// sharing one tmux socket.
func (c *Config) LockPath() string {
	socket := c.Tmux.Socket
	if socket == "" {
		socket = "default"
	}
	return filepath.Join(os.TempDir(), "tmux-mcp-"+socket+".lock")
}
