// Command tmux-mcp is an MCP server that lets a client drive interactive
// terminal programs running in tmux sessions.
package main

import (
	"os"

	"github.com/Iron-Ham/tmux-mcp/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
