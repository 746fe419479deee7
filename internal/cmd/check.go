package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/tmux-mcp/internal/backend"
	"github.com/Iron-Ham/tmux-mcp/internal/config"
	"github.com/Iron-Ham/tmux-mcp/internal/errors"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify that tmux can be run",
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	b := backend.NewTmuxBackend(backendConfig(cfg), nil)
	version, err := b.Check(cmd.Context())
	if err != nil {
		if errors.Is(err, errors.ErrBackendUnavailable) {
			return fmt.Errorf("tmux not found (tmux.binary = %q): %w", cfg.Tmux.Binary, err)
		}
		return err
	}

	socket := cfg.Tmux.Socket
	if socket == "" {
		socket = "(default server)"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\nsocket: %s\n", version, socket)
	return nil
}
