package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Iron-Ham/tmux-mcp/internal/keys"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List the key names accepted by tmux_send_key",
	Long: `List the key names accepted by tmux_send_key and the tmux key each one sends.

Names are case-insensitive. Any of them, and any single printable character,
can be combined with the modifiers C- (or ctrl+), M- (alt+, meta+) and S-
(shift+), for example C-c, ctrl+alt+x or S-Tab.`,
	Args: cobra.NoArgs,
	RunE: runKeys,
}

var keysFormat string

func init() {
	keysCmd.Flags().StringVar(&keysFormat, "format", "auto", "output format: auto, table or plain")
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func runKeys(cmd *cobra.Command, args []string) error {
	format := keysFormat
	if format == "auto" {
		format = "plain"
		if f, ok := cmd.OutOrStdout().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			format = "table"
		}
	}

	bindings := keys.Bindings()
	out := cmd.OutOrStdout()

	switch format {
	case "plain":
		for _, b := range bindings {
			fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Tmux)
		}
	case "table":
		rows := make([][]string, 0, len(bindings))
		for _, b := range bindings {
			rows = append(rows, []string{b.Name, b.Tmux})
		}
		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("NAME", "TMUX KEY").
			Rows(rows...).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				return cellStyle
			})
		fmt.Fprintln(out, t.Render())
	default:
		return fmt.Errorf("unknown format %q: must be auto, table or plain", format)
	}
	return nil
}
