// Package capture reads the text of a session's pane on demand.
//
// A capture is a single point-in-time snapshot: there is no background
// polling, no caching and no retry. tmux prints the whole pane, including the
// unused rows below the last output, so [Capture] trims that padding before
// tail truncation and the last lines returned are the program's last output.
package capture

import (
	"context"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// PaneCapturer is the backend primitive a capture needs.
type PaneCapturer interface {
	CapturePane(ctx context.Context, name string) (string, error)
}

// Options controls how captured text is post-processed.
type Options struct {
	// Lines keeps only the last Lines lines. Zero or negative keeps all.
	Lines int
	// StripANSI removes terminal escape sequences from the text.
	StripANSI bool
}

// Capture returns the current contents of the named session's pane.
// Backend errors are returned unchanged.
func Capture(ctx context.Context, c PaneCapturer, name string, opts Options) (string, error) {
	raw, err := c.CapturePane(ctx, name)
	if err != nil {
		return "", err
	}
	return Process(raw, opts), nil
}

// Process applies the Options to already captured text.
func Process(raw string, opts Options) string {
	text := raw
	if opts.StripANSI {
		text = StripANSI(text)
	}
	text = TrimPadding(text)
	return Tail(text, opts.Lines)
}

// TrimPadding removes the blank rows tmux appends to fill the pane height.
// The result ends with exactly one newline, or is empty when the pane is.
func TrimPadding(text string) string {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return ""
	}
	return text + "\n"
}

// Tail returns the last n lines of text. A trailing newline does not count
// as an extra line. n <= 0 returns text unchanged.
func Tail(text string, n int) string {
	if n <= 0 || text == "" {
		return text
	}

	body := strings.TrimSuffix(text, "\n")
	lines := strings.Split(body, "\n")
	if n >= len(lines) {
		return text
	}

	tail := strings.Join(lines[len(lines)-n:], "\n")
	if body != text {
		tail += "\n"
	}
	return tail
}

// StripANSI removes escape sequences (colors, cursor movement, OSC strings)
// from text.
func StripANSI(text string) string {
	return ansi.Strip(text)
}

// LineCount returns the number of lines in text, not counting a trailing
// newline as the start of a new line.
func LineCount(text string) int {
	if text == "" {
		return 0
	}
	return strings.Count(strings.TrimSuffix(text, "\n"), "\n") + 1
}
