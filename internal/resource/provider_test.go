package resource

import (
	"context"
	"testing"

	"github.com/Iron-Ham/tmux-mcp/internal/errors"
	"github.com/Iron-Ham/tmux-mcp/internal/session"
	"github.com/Iron-Ham/tmux-mcp/internal/testutil"
)

func newTestProvider(t *testing.T) (*Provider, *session.Registry, *testutil.FakeBackend) {
	t.Helper()
	fake := testutil.NewFakeBackend()
	reg := session.NewRegistry(session.NewController(fake, nil), session.RegistryConfig{}, nil)
	return NewProvider(reg), reg, fake
}

func TestURIRoundTrip(t *testing.T) {
	names := []string{"repl", "with space", "a/b", "ünï", "50%"}

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			uri := URIFor(name)
			got, err := ParseURI(uri)
			if err != nil {
				t.Fatalf("ParseURI(%q) error = %v", uri, err)
			}
			if got != name {
				t.Errorf("ParseURI(URIFor(%q)) = %q", name, got)
			}
		})
	}

	if got := URIFor("repl"); got != "tmux://session/repl" {
		t.Errorf("URIFor(repl) = %q", got)
	}
}

func TestParseURI_Invalid(t *testing.T) {
	uris := []string{
		"",
		"tmux://session/",
		"tmux://window/repl",
		"file:///etc/passwd",
		"tmux://session/%zz",
	}

	for _, uri := range uris {
		t.Run(uri, func(t *testing.T) {
			_, err := ParseURI(uri)
			if errors.Code(err) != errors.CodeInvalidInput {
				t.Errorf("ParseURI(%q) error = %v, want InvalidInput", uri, err)
			}
		})
	}
}

func TestList(t *testing.T) {
	p, reg, _ := newTestProvider(t)
	ctx := context.Background()

	if got := p.List(ctx); len(got) != 0 {
		t.Fatalf("List() on empty registry = %v", got)
	}

	for _, name := range []string{"vim", "repl"} {
		if _, err := reg.Start(ctx, name, name, nil); err != nil {
			t.Fatalf("Start(%q) error = %v", name, err)
		}
	}

	resources := p.List(ctx)
	if len(resources) != 2 {
		t.Fatalf("List() returned %d resources, want 2", len(resources))
	}
	first := resources[0]
	if first.URI != "tmux://session/repl" || first.Name != "Session: repl" || first.MimeType != "text/plain" {
		t.Errorf("resource = %+v", first)
	}
	if first.Description == "" {
		t.Error("resource should have a description")
	}
}

func TestRead(t *testing.T) {
	p, reg, fake := newTestProvider(t)
	ctx := context.Background()
	if _, err := reg.Start(ctx, "repl", "python3", nil); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	fake.SetPadRows(20)
	fake.SetScreen("repl", ">>> 1+1\n2\n>>> ")

	contents, err := p.Read(ctx, "tmux://session/repl")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if contents.Text != ">>> 1+1\n2\n>>> \n" {
		t.Errorf("Text = %q", contents.Text)
	}
	if contents.URI != "tmux://session/repl" || contents.MimeType != MimeType {
		t.Errorf("contents = %+v", contents)
	}

	fake.SetScreen("repl", "changed\n")
	contents, _ = p.Read(ctx, "tmux://session/repl")
	if contents.Text != "changed\n" {
		t.Errorf("Read() should capture afresh, got %q", contents.Text)
	}
}

func TestRead_LeavesActivity(t *testing.T) {
	p, reg, _ := newTestProvider(t)
	ctx := context.Background()
	started, err := reg.Start(ctx, "repl", "python3", nil)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	for range 3 {
		if _, err := p.Read(ctx, URIFor("repl")); err != nil {
			t.Fatalf("Read() error = %v", err)
		}
	}

	after, err := reg.Get("repl")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !after.LastActivity.Equal(started.LastActivity) {
		t.Errorf("LastActivity moved from %v to %v on resource reads", started.LastActivity, after.LastActivity)
	}
}

func TestRead_Errors(t *testing.T) {
	p, _, _ := newTestProvider(t)
	ctx := context.Background()

	if _, err := p.Read(ctx, "tmux://session/missing"); errors.Code(err) != errors.CodeSessionNotFound {
		t.Errorf("Read(untracked) error = %v, want SessionNotFound", err)
	}
	if _, err := p.Read(ctx, "http://example.com"); errors.Code(err) != errors.CodeInvalidInput {
		t.Errorf("Read(bad scheme) error = %v, want InvalidInput", err)
	}
}
