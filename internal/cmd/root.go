package cmd

import (
	"strings"

	"github.com/Iron-Ham/tmux-mcp/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is the build version, set with -ldflags "-X .../internal/cmd.Version=...".
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "tmux-mcp",
	Short: "MCP server that drives interactive terminal programs through tmux",
	Long: `tmux-mcp lets an MCP client (such as an LLM agent) start interactive
terminal programs in tmux sessions, type into them, send special keys,
and read back what they print.

Running tmux-mcp without a subcommand is the same as "tmux-mcp serve":
it speaks MCP over stdin and stdout until stdin closes.`,
	SilenceUsage: true,
	RunE:         runServe,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/tmux-mcp/config.yaml)")
	rootCmd.PersistentFlags().String("socket", "", "tmux socket name passed as -L (default \"tmux-mcp\")")
	rootCmd.PersistentFlags().String("log-level", "", "log level: DEBUG, INFO, WARN or ERROR")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("tmux.socket", rootCmd.PersistentFlags().Lookup("socket"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(serveCmd, checkCmd, keysCmd, configCmd, versionCmd)
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/tmux-mcp")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix(config.EnvPrefix)
	// Replace dots with underscores for nested keys in env vars
	// e.g., TMUX_MCP_BACKEND_TIMEOUT for backend.timeout
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
