package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Iron-Ham/tmux-mcp/internal/capture"
	"github.com/Iron-Ham/tmux-mcp/internal/errors"
)

// Tool names.
const (
	ToolStartSession = "tmux_start_session"
	ToolSendCommand  = "tmux_send_command"
	ToolReadOutput   = "tmux_read_output"
	ToolSendKey      = "tmux_send_key"
	ToolListSessions = "tmux_list_sessions"
	ToolKillSession  = "tmux_kill_session"
)

// createdLayout formats creation times in session listings.
const createdLayout = "2006-01-02 15:04:05"

type startSessionArgs struct {
	SessionName string   `json:"session_name"`
	Program     string   `json:"program"`
	Args        []string `json:"args"`
}

type sendCommandArgs struct {
	SessionName string  `json:"session_name"`
	Command     *string `json:"command"`
	PressEnter  *bool   `json:"press_enter"`
}

type readOutputArgs struct {
	SessionName string `json:"session_name"`
	Lines       int    `json:"lines"`
	StripANSI   bool   `json:"strip_ansi"`
}

type sendKeyArgs struct {
	SessionName string `json:"session_name"`
	Key         string `json:"key"`
}

type sessionArgs struct {
	SessionName string `json:"session_name"`
}

// ToolDefinitions returns the tools advertised by tools/list.
func ToolDefinitions() []*sdk.Tool {
	str := func(desc string) *jsonschema.Schema {
		return &jsonschema.Schema{Type: "string", Description: desc}
	}
	object := func(props map[string]*jsonschema.Schema, required ...string) *jsonschema.Schema {
		return &jsonschema.Schema{Type: "object", Properties: props, Required: required}
	}
	return []*sdk.Tool{
		{
			Name:        ToolStartSession,
			Description: "Start a new tmux session running an interactive CLI program",
			InputSchema: object(map[string]*jsonschema.Schema{
				"session_name": str("Name for the tmux session"),
				"program":      str("The CLI program to run (e.g. 'python3', 'node', 'vim')"),
				"args": {
					Type:        "array",
					Description: "Optional arguments to pass to the program",
					Items:       &jsonschema.Schema{Type: "string"},
				},
			}, "session_name", "program"),
		},
		{
			Name:        ToolSendCommand,
			Description: "Type text into a tmux session, optionally followed by Enter",
			InputSchema: object(map[string]*jsonschema.Schema{
				"session_name": str("Name of the tmux session"),
				"command":      str("Text to send. It is typed literally; key names are not interpreted"),
				"press_enter": {
					Type:        "boolean",
					Description: "Whether to press Enter after the text",
					Default:     json.RawMessage("true"),
				},
			}, "session_name", "command"),
		},
		{
			Name:        ToolReadOutput,
			Description: "Read the current output of a tmux session",
			InputSchema: object(map[string]*jsonschema.Schema{
				"session_name": str("Name of the tmux session"),
				"lines": {
					Type:        "integer",
					Description: "Number of lines to return from the end (default: the whole buffer)",
				},
				"strip_ansi": {
					Type:        "boolean",
					Description: "Remove terminal escape sequences from the output",
					Default:     json.RawMessage("false"),
				},
			}, "session_name"),
		},
		{
			Name:        ToolSendKey,
			Description: "Send a special key to a tmux session (e.g. C-c, Tab, Escape, Up)",
			InputSchema: object(map[string]*jsonschema.Schema{
				"session_name": str("Name of the tmux session"),
				"key":          str("Key to send (e.g. 'C-c' for Ctrl+C, 'Tab', 'Escape', 'Up', 'F5')"),
			}, "session_name", "key"),
		},
		{
			Name:        ToolListSessions,
			Description: "List the tmux sessions managed by this server",
			InputSchema: object(map[string]*jsonschema.Schema{}),
		},
		{
			Name:        ToolKillSession,
			Description: "Kill a tmux session",
			InputSchema: object(map[string]*jsonschema.Schema{
				"session_name": str("Name of the tmux session to kill"),
			}, "session_name"),
		},
	}
}

// decodeArgs unmarshals raw tool arguments into v. Missing arguments decode
// as an empty object.
func decodeArgs(tool string, raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.NewValidationError("invalid arguments for " + tool).WithCause(err)
	}
	return nil
}

func requireString(tool, field, value string) error {
	if value == "" {
		return errors.NewValidationError(field + " is required for " + tool).WithField(field)
	}
	return nil
}

// dispatchTool runs a tool and returns its result text. Malformed arguments
// are InvalidInput errors, reported like any other failure so the caller can
// correct the call.
func (s *Server) dispatchTool(ctx context.Context, name string, raw json.RawMessage) (string, error) {
	switch name {
	case ToolStartSession:
		return s.toolStartSession(ctx, raw)
	case ToolSendCommand:
		return s.toolSendCommand(ctx, raw)
	case ToolReadOutput:
		return s.toolReadOutput(ctx, raw)
	case ToolSendKey:
		return s.toolSendKey(ctx, raw)
	case ToolListSessions:
		return s.toolListSessions(ctx)
	case ToolKillSession:
		return s.toolKillSession(ctx, raw)
	default:
		return "", errors.NewValidationError("unknown tool: " + name).WithField("name").WithValue(name)
	}
}

func (s *Server) toolStartSession(ctx context.Context, raw json.RawMessage) (string, error) {
	var args startSessionArgs
	if err := decodeArgs(ToolStartSession, raw, &args); err != nil {
		return "", err
	}
	if err := requireString(ToolStartSession, "session_name", args.SessionName); err != nil {
		return "", err
	}
	if err := requireString(ToolStartSession, "program", args.Program); err != nil {
		return "", err
	}

	sess, err := s.sessions.Start(ctx, args.SessionName, args.Program, args.Args)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Started tmux session '%s' running '%s'", sess.Name, sess.CommandLine()), nil
}

func (s *Server) toolSendCommand(ctx context.Context, raw json.RawMessage) (string, error) {
	var args sendCommandArgs
	if err := decodeArgs(ToolSendCommand, raw, &args); err != nil {
		return "", err
	}
	if err := requireString(ToolSendCommand, "session_name", args.SessionName); err != nil {
		return "", err
	}
	if args.Command == nil {
		return "", errors.NewValidationError("command is required for " + ToolSendCommand).WithField("command")
	}
	pressEnter := true
	if args.PressEnter != nil {
		pressEnter = *args.PressEnter
	}

	if err := s.sessions.SendCommand(ctx, args.SessionName, *args.Command, pressEnter); err != nil {
		return "", err
	}
	return fmt.Sprintf("Sent command to session '%s'", args.SessionName), nil
}

func (s *Server) toolReadOutput(ctx context.Context, raw json.RawMessage) (string, error) {
	var args readOutputArgs
	if err := decodeArgs(ToolReadOutput, raw, &args); err != nil {
		return "", err
	}
	if err := requireString(ToolReadOutput, "session_name", args.SessionName); err != nil {
		return "", err
	}
	if args.Lines < 0 {
		return "", errors.NewValidationError("lines cannot be negative").WithField("lines").WithValue(args.Lines)
	}

	return s.sessions.ReadOutput(ctx, args.SessionName, capture.Options{
		Lines:     args.Lines,
		StripANSI: args.StripANSI,
	})
}

func (s *Server) toolSendKey(ctx context.Context, raw json.RawMessage) (string, error) {
	var args sendKeyArgs
	if err := decodeArgs(ToolSendKey, raw, &args); err != nil {
		return "", err
	}
	if err := requireString(ToolSendKey, "session_name", args.SessionName); err != nil {
		return "", err
	}
	if err := requireString(ToolSendKey, "key", args.Key); err != nil {
		return "", err
	}

	if err := s.sessions.SendKey(ctx, args.SessionName, args.Key); err != nil {
		return "", err
	}
	return fmt.Sprintf("Sent key '%s' to session '%s'", args.Key, args.SessionName), nil
}

func (s *Server) toolListSessions(ctx context.Context) (string, error) {
	sessions := s.sessions.List(ctx)
	if len(sessions) == 0 {
		return "No active sessions", nil
	}

	var b strings.Builder
	b.WriteString("Active sessions:")
	for _, sess := range sessions {
		fmt.Fprintf(&b, "\n- %s: %s (%s) - Created: %s",
			sess.Name, sess.CommandLine(), sess.State, sess.Created.Format(createdLayout))
	}
	return b.String(), nil
}

func (s *Server) toolKillSession(ctx context.Context, raw json.RawMessage) (string, error) {
	var args sessionArgs
	if err := decodeArgs(ToolKillSession, raw, &args); err != nil {
		return "", err
	}
	if err := requireString(ToolKillSession, "session_name", args.SessionName); err != nil {
		return "", err
	}

	if err := s.sessions.Kill(ctx, args.SessionName); err != nil {
		return "", err
	}
	return fmt.Sprintf("Killed session '%s'", args.SessionName), nil
}
