package capture

import (
	"context"
	"errors"
	"testing"
)

type stubCapturer struct {
	text  string
	err   error
	calls int
	names []string
}

func (s *stubCapturer) CapturePane(_ context.Context, name string) (string, error) {
	s.calls++
	s.names = append(s.names, name)
	return s.text, s.err
}

func TestTrimPadding(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"padded pane", ">>> 2\n>>> \n\n\n\n", ">>> 2\n>>> \n"},
		{"no padding", "a\nb\n", "a\nb\n"},
		{"no trailing newline", "a\nb", "a\nb\n"},
		{"empty pane", "\n\n\n", ""},
		{"empty", "", ""},
		{"interior blank lines kept", "a\n\nb\n\n", "a\n\nb\n"},
		{"whitespace rows kept", "a\n  \n", "a\n  \n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TrimPadding(tt.in); got != tt.want {
				t.Errorf("TrimPadding(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTail(t *testing.T) {
	text := "one\ntwo\nthree\nfour\n"

	tests := []struct {
		name string
		text string
		n    int
		want string
	}{
		{"last two", text, 2, "three\nfour\n"},
		{"last one", text, 1, "four\n"},
		{"exact count", text, 4, text},
		{"more than available", text, 10, text},
		{"zero means all", text, 0, text},
		{"negative means all", text, -3, text},
		{"no trailing newline", "a\nb\nc", 2, "b\nc"},
		{"empty", "", 5, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tail(tt.text, tt.n)
			if got != tt.want {
				t.Errorf("Tail(%q, %d) = %q, want %q", tt.text, tt.n, got, tt.want)
			}
			if tt.n > 0 && tt.text != "" {
				want := min(tt.n, LineCount(tt.text))
				if LineCount(got) != want {
					t.Errorf("LineCount(Tail) = %d, want %d", LineCount(got), want)
				}
			}
		})
	}
}

func TestStripANSI(t *testing.T) {
	in := "\x1b[1;32mok\x1b[0m plain \x1b]0;title\x07done"
	if got := StripANSI(in); got != "ok plain done" {
		t.Errorf("StripANSI() = %q, want %q", got, "ok plain done")
	}
}

func TestLineCount(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"a\n", 1},
		{"a\nb\n", 2},
		{"\n", 1},
	}

	for _, tt := range tests {
		if got := LineCount(tt.in); got != tt.want {
			t.Errorf("LineCount(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestCapture(t *testing.T) {
	t.Run("trims padding and tails", func(t *testing.T) {
		stub := &stubCapturer{text: "$ ls\nfile\n$ \n\n\n\n"}

		got, err := Capture(context.Background(), stub, "shell", Options{Lines: 2})
		if err != nil {
			t.Fatalf("Capture() error = %v", err)
		}
		if got != "file\n$ \n" {
			t.Errorf("Capture() = %q, want %q", got, "file\n$ \n")
		}
		if stub.calls != 1 || stub.names[0] != "shell" {
			t.Errorf("expected one capture of %q, got %v", "shell", stub.names)
		}
	})

	t.Run("escape sequences pass through by default", func(t *testing.T) {
		stub := &stubCapturer{text: "\x1b[31mred\x1b[0m\n"}

		got, _ := Capture(context.Background(), stub, "s", Options{})
		if got != "\x1b[31mred\x1b[0m\n" {
			t.Errorf("Capture() = %q", got)
		}

		got, _ = Capture(context.Background(), stub, "s", Options{StripANSI: true})
		if got != "red\n" {
			t.Errorf("Capture(StripANSI) = %q, want %q", got, "red\n")
		}
	})

	t.Run("backend error returned unchanged", func(t *testing.T) {
		want := errors.New("capture failed")
		stub := &stubCapturer{err: want}

		if _, err := Capture(context.Background(), stub, "s", Options{}); err != want {
			t.Errorf("Capture() error = %v, want %v", err, want)
		}
	})

	t.Run("each call captures afresh", func(t *testing.T) {
		stub := &stubCapturer{text: "first\n"}
		first, _ := Capture(context.Background(), stub, "s", Options{})
		stub.text = "second\n"
		second, _ := Capture(context.Background(), stub, "s", Options{})

		if first != "first\n" || second != "second\n" || stub.calls != 2 {
			t.Errorf("captures = %q, %q after %d calls", first, second, stub.calls)
		}
	})
}
