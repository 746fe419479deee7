// Package mcp serves the session tools and resources over the Model Context
// Protocol, on stdin and stdout in production.
//
// Framing, the initialize handshake and method routing come from the MCP Go
// SDK. This package registers the tools and the session resource template and
// maps session errors onto results. Operation failures become tool results
// flagged isError, never protocol errors, so one failed tool call cannot end
// the session with the controller.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync/atomic"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Iron-Ham/tmux-mcp/internal/capture"
	"github.com/Iron-Ham/tmux-mcp/internal/errors"
	"github.com/Iron-Ham/tmux-mcp/internal/logging"
	"github.com/Iron-Ham/tmux-mcp/internal/resource"
	"github.com/Iron-Ham/tmux-mcp/internal/session"
)

// ProtocolVersion is the newest MCP revision the server negotiates.
const ProtocolVersion = "2025-06-18"

// ServerName is reported in the initialize handshake.
const ServerName = "tmux-mcp"

// Sessions is the session registry as seen by the tool handlers.
type Sessions interface {
	Start(ctx context.Context, name, program string, args []string) (session.Session, error)
	SendCommand(ctx context.Context, name, text string, pressEnter bool) error
	SendKey(ctx context.Context, name, key string) error
	ReadOutput(ctx context.Context, name string, opts capture.Options) (string, error)
	List(ctx context.Context) []session.Session
	Kill(ctx context.Context, name string) error
}

// Resources lists and reads session resources.
type Resources interface {
	List(ctx context.Context) []resource.Resource
	Read(ctx context.Context, uri string) (resource.Contents, error)
}

// Server implements the MCP server.
type Server struct {
	sessions  Sessions
	resources Resources
	logger    *logging.Logger
	version   string

	sdk *sdk.Server
}

// NewServer creates a Server. A nil logger discards output. resources may be
// nil, in which case no resources are offered.
func NewServer(sessions Sessions, resources Resources, version string, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NopLogger()
	}
	s := &Server{
		sessions:  sessions,
		resources: resources,
		logger:    logger.WithComponent("mcp"),
		version:   version,
		sdk:       sdk.NewServer(&sdk.Implementation{Name: ServerName, Version: version}, nil),
	}

	for _, tool := range ToolDefinitions() {
		s.sdk.AddTool(tool, s.toolHandler(tool.Name))
	}
	if resources != nil {
		s.sdk.AddResourceTemplate(&sdk.ResourceTemplate{
			URITemplate: resource.URIPrefix + "{name}",
			Name:        "session",
			Description: "Current output of a managed tmux session",
			MIMEType:    resource.MimeType,
		}, s.readResource)
		s.sdk.AddReceivingMiddleware(s.listResources)
	}
	return s
}

// Run serves one client on in and out until in reaches EOF (returns nil) or
// ctx is cancelled (returns ctx.Err()).
func (s *Server) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	reader := &eofReader{r: in}
	transport := &sdk.IOTransport{Reader: reader, Writer: nopWriteCloser{out}}

	s.logger.Info("mcp server ready", "protocol", ProtocolVersion, "version", s.version)
	err := s.sdk.Run(ctx, transport)

	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case reader.done.Load():
		return nil
	case err != nil:
		return fmt.Errorf("mcp session ended: %w", err)
	}
	return nil
}

// toolHandler adapts dispatchTool to the SDK. It never returns an error:
// failures are reported in the result.
func (s *Server) toolHandler(name string) sdk.ToolHandler {
	return func(ctx context.Context, req *sdk.CallToolRequest) (*sdk.CallToolResult, error) {
		return s.callTool(ctx, name, req.Params.Arguments), nil
	}
}

func (s *Server) callTool(ctx context.Context, name string, raw json.RawMessage) (result *sdk.CallToolResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in tool", "tool", name, "panic", fmt.Sprint(r))
			result = textResult(errors.CodeInternal+": internal error", true)
		}
	}()

	s.logger.Debug("tool call", "tool", name)
	text, err := s.dispatchTool(ctx, name, raw)
	if err != nil {
		s.logFailure("tool call failed", err, "tool", name)
		return textResult(errorText(err), true)
	}
	return textResult(text, false)
}

// readResource serves resources/read for URIs matching the session template.
func (s *Server) readResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	uri := req.Params.URI
	contents, err := s.resources.Read(ctx, uri)
	if err != nil {
		s.logFailure("resource read failed", err, "uri", uri)
		switch errors.Code(err) {
		case errors.CodeSessionNotFound, errors.CodeInvalidInput:
			return nil, sdk.ResourceNotFoundError(uri)
		}
		return nil, errors.New(errorText(err))
	}
	return &sdk.ReadResourceResult{Contents: []*sdk.ResourceContents{{
		URI:      contents.URI,
		MIMEType: contents.MimeType,
		Text:     contents.Text,
	}}}, nil
}

// listResources answers resources/list from the registry. The SDK only knows
// the template; the concrete URIs change as sessions come and go.
func (s *Server) listResources(next sdk.MethodHandler) sdk.MethodHandler {
	return func(ctx context.Context, method string, req sdk.Request) (sdk.Result, error) {
		if method != "resources/list" {
			return next(ctx, method, req)
		}
		list := s.resources.List(ctx)
		out := make([]*sdk.Resource, 0, len(list))
		for _, r := range list {
			out = append(out, &sdk.Resource{
				URI:         r.URI,
				Name:        r.Name,
				Description: r.Description,
				MIMEType:    r.MimeType,
			})
		}
		return &sdk.ListResourcesResult{Resources: out}, nil
	}
}

// logFailure logs err at the level its severity asks for.
func (s *Server) logFailure(msg string, err error, args ...any) {
	args = append(args,
		"code", errors.Code(err),
		"severity", errors.GetSeverity(err).String(),
		"retryable", errors.IsRetryable(err),
		"error", err)
	if errors.GetSeverity(err) == errors.SeverityWarning {
		s.logger.Warn(msg, args...)
		return
	}
	s.logger.Error(msg, args...)
}

// errorText renders err for the client as "<Code>: <message>". Errors not
// meant for users are replaced by a generic message; retryable failures say
// so.
func errorText(err error) string {
	msg := "internal error"
	if errors.IsUserFacing(err) {
		msg = err.Error()
	}
	text := errors.Code(err) + ": " + msg
	if errors.IsRetryable(err) {
		text += " (retryable)"
	}
	return text
}

func textResult(text string, isError bool) *sdk.CallToolResult {
	return &sdk.CallToolResult{
		Content: []sdk.Content{&sdk.TextContent{Text: text}},
		IsError: isError,
	}
}

// eofReader records that the client closed its end of the stream.
type eofReader struct {
	r    io.Reader
	done atomic.Bool
}

func (e *eofReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if err == io.EOF {
		e.done.Store(true)
	}
	return n, err
}

func (e *eofReader) Close() error {
	if c, ok := e.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// nopWriteCloser leaves closing stdout to the process.
type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
