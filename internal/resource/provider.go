// Package resource exposes each tracked session's current output as a
// readable resource addressed by a tmux://session/<name> URI.
//
// Resources are a read-only view over the session registry. Contents are
// captured at read time and never cached.
package resource

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Iron-Ham/tmux-mcp/internal/capture"
	"github.com/Iron-Ham/tmux-mcp/internal/errors"
	"github.com/Iron-Ham/tmux-mcp/internal/session"
)

// URIPrefix is the prefix every session resource URI starts with.
const URIPrefix = "tmux://session/"

// MimeType is the content type of session resources.
const MimeType = "text/plain"

// Resource describes one readable session resource.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// Contents is the result of reading a resource.
type Contents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text"`
}

// Sessions is the part of the session registry the provider reads from.
// Peek must not count as session activity.
type Sessions interface {
	List(ctx context.Context) []session.Session
	Peek(ctx context.Context, name string, opts capture.Options) (string, error)
}

// Provider lists and reads session resources.
type Provider struct {
	sessions Sessions
}

// NewProvider creates a Provider over the given sessions.
func NewProvider(sessions Sessions) *Provider {
	return &Provider{sessions: sessions}
}

// URIFor returns the resource URI of the named session.
func URIFor(name string) string {
	return URIPrefix + url.PathEscape(name)
}

// ParseURI returns the session name addressed by uri. Any other scheme or
// shape is an invalid-input error.
func ParseURI(uri string) (string, error) {
	rest, ok := strings.CutPrefix(uri, URIPrefix)
	if !ok {
		return "", errors.NewNotFoundError("resource", uri).WithCause(errors.ErrInvalidInput)
	}
	name, err := url.PathUnescape(rest)
	if err != nil || name == "" {
		return "", errors.NewNotFoundError("resource", uri).WithCause(errors.ErrInvalidInput)
	}
	return name, nil
}

// List returns one resource per tracked session, in name order.
func (p *Provider) List(ctx context.Context) []Resource {
	sessions := p.sessions.List(ctx)
	resources := make([]Resource, 0, len(sessions))
	for _, s := range sessions {
		resources = append(resources, Resource{
			URI:         URIFor(s.Name),
			Name:        "Session: " + s.Name,
			Description: fmt.Sprintf("Current output of tmux session '%s' running %s (%s)", s.Name, s.Program, s.State),
			MimeType:    MimeType,
		})
	}
	return resources
}

// Read captures the current output of the session addressed by uri.
func (p *Provider) Read(ctx context.Context, uri string) (Contents, error) {
	name, err := ParseURI(uri)
	if err != nil {
		return Contents{}, err
	}

	text, err := p.sessions.Peek(ctx, name, capture.Options{})
	if err != nil {
		return Contents{}, err
	}
	return Contents{URI: uri, MimeType: MimeType, Text: text}, nil
}
