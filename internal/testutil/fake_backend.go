package testutil

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/Iron-Ham/tmux-mcp/internal/errors"
)

// Fake backend operation names, used with Fail and Calls.
const (
	OpCreate  = "create"
	OpKill    = "kill"
	OpHas     = "has"
	OpDead    = "dead"
	OpText    = "text"
	OpKey     = "key"
	OpCapture = "capture"
)

// OpLiteral is the Input kind of text typed through SendText.
const OpLiteral = "literal"

// Input is one piece of input delivered to a fake pane.
type Input struct {
	// Kind is OpLiteral or OpKey.
	Kind  string
	Value string
}

// Responder produces the output a fake program prints after a line is
// submitted with Enter. It returns "" to print nothing.
type Responder func(line string) string

type fakeSession struct {
	program string
	args    []string
	screen  strings.Builder
	line    strings.Builder
	dead    bool
	inputs  []Input
}

// FakeBackend is an in-memory multiplexer. It implements the session layer's
// backend interface, is safe for concurrent use, and lets tests script pane
// contents, inject failures and simulate sessions that die or vanish.
//
// Typed text is echoed onto the screen like a terminal would. When a
// Responder is set, pressing Enter submits the current line to it and its
// reply is printed after the line.
type FakeBackend struct {
	mu        sync.Mutex
	sessions  map[string]*fakeSession
	failures  map[string]error
	calls     map[string]int
	responder Responder
	padRows   int

	// CreateHook, if set, runs inside CreateSession before the session is
	// added, without the backend lock held. Tests use it to hold a start
	// in flight.
	CreateHook func(name string)
}

// NewFakeBackend returns an empty FakeBackend.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		sessions: make(map[string]*fakeSession),
		failures: make(map[string]error),
		calls:    make(map[string]int),
	}
}

// SetResponder installs the program behavior for every session.
func (f *FakeBackend) SetResponder(r Responder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responder = r
}

// SetPadRows makes CapturePane pad its output with blank rows up to n lines,
// the way tmux prints the unused part of a pane.
func (f *FakeBackend) SetPadRows(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.padRows = n
}

// Fail makes every subsequent call of op return err, until cleared with a
// nil err.
func (f *FakeBackend) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, op)
		return
	}
	f.failures[op] = err
}

// Calls returns how many times op was invoked.
func (f *FakeBackend) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// TotalCalls returns the number of backend invocations of any kind.
func (f *FakeBackend) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

// SetScreen replaces the pane contents of a session.
func (f *FakeBackend) SetScreen(name, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[name]; ok {
		s.screen.Reset()
		s.screen.WriteString(text)
	}
}

// MarkDead simulates the session's program exiting with the pane kept.
func (f *FakeBackend) MarkDead(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[name]; ok {
		s.dead = true
	}
}

// Vanish removes a session as if it were killed outside this process.
func (f *FakeBackend) Vanish(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, name)
}

// AddExternal creates a session that exists on the backend without having
// been started through the session layer.
func (f *FakeBackend) AddExternal(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[name] = &fakeSession{program: "sh"}
}

// Exists reports whether the backend currently has the session.
func (f *FakeBackend) Exists(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.sessions[name]
	return ok
}

// Names returns the backend's session names, sorted.
func (f *FakeBackend) Names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.sessions))
	for name := range f.sessions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Inputs returns the input delivered to a session, in order.
func (f *FakeBackend) Inputs(name string) []Input {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[name]; ok {
		return slices.Clone(s.inputs)
	}
	return nil
}

// Program returns the program and args a session was created with.
func (f *FakeBackend) Program(name string) (string, []string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[name]
	if !ok {
		return "", nil, false
	}
	return s.program, slices.Clone(s.args), true
}

// begin records a call and returns the injected failure for op, if any.
// The caller must hold mu.
func (f *FakeBackend) begin(ctx context.Context, op string) error {
	f.calls[op]++
	if err := ctx.Err(); err != nil {
		return errors.NewBackendError("fake "+op, errors.Join(errors.ErrBackendCommandFailed, err))
	}
	return f.failures[op]
}

func gone(op, name string) error {
	return errors.NewBackendError("fake "+op, errors.ErrSessionGone).
		WithStderr("can't find session: " + name).
		WithExitCode(1)
}

// lookup returns the session or a session-gone error. The caller must hold mu.
func (f *FakeBackend) lookup(op, name string) (*fakeSession, error) {
	s, ok := f.sessions[name]
	if !ok {
		return nil, gone(op, name)
	}
	return s, nil
}

// CreateSession implements the backend interface.
func (f *FakeBackend) CreateSession(ctx context.Context, name, program string, args []string) error {
	f.mu.Lock()
	err := f.begin(ctx, OpCreate)
	hook := f.CreateHook
	f.mu.Unlock()
	if err != nil {
		return err
	}

	if hook != nil {
		hook(name)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.sessions[name]; exists {
		return errors.NewAlreadyExistsError("session", name).WithCause(errors.ErrSessionAlreadyExists)
	}
	f.sessions[name] = &fakeSession{program: program, args: slices.Clone(args)}
	return nil
}

// KillSession implements the backend interface.
func (f *FakeBackend) KillSession(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(ctx, OpKill); err != nil {
		return err
	}
	if _, err := f.lookup(OpKill, name); err != nil {
		return err
	}
	delete(f.sessions, name)
	return nil
}

// HasSession implements the backend interface.
func (f *FakeBackend) HasSession(ctx context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(ctx, OpHas); err != nil {
		return false, err
	}
	_, ok := f.sessions[name]
	return ok, nil
}

// PaneDead implements the backend interface.
func (f *FakeBackend) PaneDead(ctx context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(ctx, OpDead); err != nil {
		return false, err
	}
	s, err := f.lookup(OpDead, name)
	if err != nil {
		return false, err
	}
	return s.dead, nil
}

// SendText implements the backend interface. The typed text and the Enter
// key are recorded as separate inputs but count as one OpText call.
func (f *FakeBackend) SendText(ctx context.Context, name, text string, enter bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(ctx, OpText); err != nil {
		return err
	}
	s, err := f.lookup(OpText, name)
	if err != nil {
		return err
	}

	if text != "" {
		s.inputs = append(s.inputs, Input{Kind: OpLiteral, Value: text})
		if !s.dead {
			s.screen.WriteString(text)
			s.line.WriteString(text)
		}
	}
	if enter {
		f.pressLocked(s, "Enter")
	}
	return nil
}

// SendKey implements the backend interface.
func (f *FakeBackend) SendKey(ctx context.Context, name, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(ctx, OpKey); err != nil {
		return err
	}
	s, err := f.lookup(OpKey, name)
	if err != nil {
		return err
	}
	f.pressLocked(s, key)
	return nil
}

// pressLocked delivers one key. Enter on a live pane submits the current
// line to the responder. The caller must hold mu.
func (f *FakeBackend) pressLocked(s *fakeSession, key string) {
	s.inputs = append(s.inputs, Input{Kind: OpKey, Value: key})
	if s.dead || key != "Enter" {
		return
	}

	s.screen.WriteString("\n")
	line := s.line.String()
	s.line.Reset()
	if f.responder != nil {
		if reply := f.responder(line); reply != "" {
			s.screen.WriteString(reply)
			if !strings.HasSuffix(reply, "\n") {
				s.screen.WriteString("\n")
			}
		}
	}
}

// CapturePane implements the backend interface.
func (f *FakeBackend) CapturePane(ctx context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(ctx, OpCapture); err != nil {
		return "", err
	}
	s, err := f.lookup(OpCapture, name)
	if err != nil {
		return "", err
	}

	text := s.screen.String()
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if rows := strings.Count(text, "\n"); rows < f.padRows {
		text += strings.Repeat("\n", f.padRows-rows)
	}
	return text, nil
}
