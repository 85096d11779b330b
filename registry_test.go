package mcpclient

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addFakeServer(t *testing.T, r *Registry, name string, tools ...fakeTool) *fakeTransport {
	t.Helper()
	tr := fakeServerTransport(tools...)
	cfg := ServerConfig{Name: name, Transport: TransportStdio, Command: "fake"}
	require.NoError(t, r.AddServerTransport(context.Background(), cfg, tr))
	return tr
}

func TestRegistry_AddServer_InvalidConfig(t *testing.T) {
	r := NewRegistry()
	err := r.AddServer(context.Background(), ServerConfig{Name: "s", Transport: TransportStdio})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Empty(t, r.ServerNames())
}

func TestRegistry_AddServer_HandshakeFailureRegistersNothing(t *testing.T) {
	r := NewRegistry()
	tr := &fakeTransport{handler: func(string, any) (*Response, error) {
		return nil, &TransportError{Server: "bad", Message: "no response from server"}
	}}
	cfg := ServerConfig{Name: "bad", Transport: TransportStdio, Command: "fake"}

	err := r.AddServerTransport(context.Background(), cfg, tr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
	assert.Empty(t, r.ServerNames())
	assert.Empty(t, r.ListTools())
	assert.True(t, tr.isClosed(), "failed session must release its transport")
}

func TestRegistry_ListTools_QualifiedAndSorted(t *testing.T) {
	r := NewRegistry()
	addFakeServer(t, r, "beta", fakeTool{name: "read"})
	addFakeServer(t, r, "alpha", fakeTool{name: "write"}, fakeTool{name: "read"})

	tools := r.ListTools()
	require.Len(t, tools, 3)
	var names []string
	for _, tool := range tools {
		names = append(names, tool.Qualified().String())
	}
	assert.Equal(t, []string{"alpha:read", "alpha:write", "beta:read"}, names)
}

func TestRegistry_Resolve_Qualified(t *testing.T) {
	r := NewRegistry()
	addFakeServer(t, r, "files", fakeTool{name: "read"})

	q, err := r.Resolve("files:read")
	require.NoError(t, err)
	assert.Equal(t, QualifiedToolName{Server: "files", Tool: "read"}, q)

	_, err = r.Resolve("files:missing")
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestRegistry_Resolve_BareName(t *testing.T) {
	r := NewRegistry()
	addFakeServer(t, r, "files", fakeTool{name: "read"})

	q, err := r.Resolve("read")
	require.NoError(t, err)
	assert.Equal(t, "files:read", q.String())
}

func TestRegistry_Resolve_Ambiguous(t *testing.T) {
	r := NewRegistry()
	addFakeServer(t, r, "serverB", fakeTool{name: "search"})
	addFakeServer(t, r, "serverA", fakeTool{name: "search"})

	_, err := r.Resolve("search")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAmbiguousTool)

	var rerr *ResolutionError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, []string{"serverA", "serverB"}, rerr.Servers)

	// Both stay reachable through their qualified names.
	for _, name := range []string{"serverA:search", "serverB:search"} {
		q, err := r.Resolve(name)
		require.NoError(t, err)
		assert.Equal(t, name, q.String())
	}
}

func TestRegistry_Resolve_NotFound(t *testing.T) {
	r := NewRegistry()
	addFakeServer(t, r, "files", fakeTool{name: "read"})

	before := r.ListTools()
	_, err := r.Resolve("no-such-tool")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrToolNotFound)
	assert.Equal(t, before, r.ListTools(), "failed resolution must not disturb the catalog")
}

func TestRegistry_Resolve_Idempotent(t *testing.T) {
	r := NewRegistry()
	addFakeServer(t, r, "files", fakeTool{name: "read"})

	before := r.ListTools()
	for i := 0; i < 5; i++ {
		q, err := r.Resolve("read")
		require.NoError(t, err)
		assert.Equal(t, "files:read", q.String())
	}
	assert.Equal(t, before, r.ListTools())
}

func TestRegistry_CallTool_RoundTrip(t *testing.T) {
	r := NewRegistry()
	addFakeServer(t, r, "game", fakeTool{
		name: "ping",
		fn:   func(map[string]any) (any, error) { return textContent("pong"), nil },
	})

	result, err := r.CallTool(context.Background(), "game:ping", nil)
	require.NoError(t, err)
	require.NotEmpty(t, result.Content)
	assert.Equal(t, "pong", result.Content[0].Text)

	// Bare name works too while unambiguous.
	result, err = r.CallTool(context.Background(), "ping", nil)
	require.NoError(t, err)
	assert.Equal(t, "pong", result.Text())
}

func TestRegistry_CallTool_PassesArguments(t *testing.T) {
	r := NewRegistry()
	addFakeServer(t, r, "calc", fakeTool{
		name: "add",
		fn: func(args map[string]any) (any, error) {
			return textContent(fmt.Sprintf("%v", args["a"].(float64)+args["b"].(float64))), nil
		},
	})

	result, err := r.CallTool(context.Background(), "calc:add", map[string]any{"a": 2.0, "b": 3.0})
	require.NoError(t, err)
	assert.Equal(t, "5", result.Text())
}

func TestRegistry_CallTool_Unknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.CallTool(context.Background(), "ghost", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestRegistry_DuplicateNameReplacesAndClosesPrior(t *testing.T) {
	r := NewRegistry()
	first := addFakeServer(t, r, "files", fakeTool{name: "read"})
	second := addFakeServer(t, r, "files", fakeTool{name: "write"})

	assert.True(t, first.isClosed(), "replaced session must be torn down")
	assert.False(t, second.isClosed())

	// The old catalog is gone, the new one is addressable.
	_, err := r.Resolve("files:read")
	assert.ErrorIs(t, err, ErrToolNotFound)
	_, err = r.Resolve("files:write")
	assert.NoError(t, err)
	assert.Equal(t, []string{"files"}, r.ServerNames())
}

func TestRegistry_Tool(t *testing.T) {
	r := NewRegistry()
	addFakeServer(t, r, "files", fakeTool{name: "read", desc: "Read a file"})

	tool, err := r.Tool("read")
	require.NoError(t, err)
	assert.Equal(t, "Read a file", tool.Description)
	assert.Equal(t, "files", tool.Server)

	_, err = r.Tool("missing")
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestRegistry_Status(t *testing.T) {
	r := NewRegistry()
	addFakeServer(t, r, "beta", fakeTool{name: "a"}, fakeTool{name: "b"})
	addFakeServer(t, r, "alpha", fakeTool{name: "c"})

	statuses := r.Status()
	require.Len(t, statuses, 2)
	assert.Equal(t, "alpha", statuses[0].Name)
	assert.Equal(t, 1, statuses[0].ToolCount)
	assert.True(t, statuses[0].Connected)
	assert.Equal(t, "beta", statuses[1].Name)
	assert.Equal(t, 2, statuses[1].ToolCount)
	assert.Equal(t, TransportStdio, statuses[1].Transport)
}

func TestRegistry_Close(t *testing.T) {
	r := NewRegistry()
	first := addFakeServer(t, r, "one", fakeTool{name: "a"})
	second := addFakeServer(t, r, "two", fakeTool{name: "b"})

	require.NoError(t, r.Close())
	assert.True(t, first.isClosed())
	assert.True(t, second.isClosed())
	assert.Empty(t, r.ServerNames())
	assert.Empty(t, r.ListTools())

	// Idempotent.
	require.NoError(t, r.Close())
}

func TestRegistry_ConnectAll_SourceError(t *testing.T) {
	r := NewRegistry()
	err := r.ConnectAll(context.Background(), failingSource{})
	require.Error(t, err)
}

type failingSource struct{}

func (failingSource) Servers() ([]ServerConfig, error) {
	return nil, fmt.Errorf("config store unavailable")
}
