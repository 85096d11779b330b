package mcpclient

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Registry owns a set of server sessions and merges their tool catalogs
// into one namespace keyed by qualified name. It is the only path from a
// caller to a transport. Safe for concurrent use: sessions may be added
// while other goroutines resolve and call tools.
type Registry struct {
	logger     *slog.Logger
	clientInfo ClientInfo
	httpClient *http.Client

	// mu guards the two-level index: server name → owning session, plus a
	// flat lookup from qualified name to its (server, tool) pair.
	mu       sync.RWMutex
	sessions map[string]*ServerSession
	index    map[string]QualifiedToolName
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		logger:     slog.Default(),
		clientInfo: ClientInfo{Name: defaultClientName, Version: defaultClientVersion},
		sessions:   make(map[string]*ServerSession),
		index:      make(map[string]QualifiedToolName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddServer connects one server: validates the config, builds its transport,
// drives the handshake, and merges the server's tools into the namespace.
// On any failure all resources are released and nothing is registered.
//
// Adding a server under an existing name closes the prior session first, so
// no orphaned subprocess or connection is left behind.
func (r *Registry) AddServer(ctx context.Context, cfg ServerConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	transport, err := r.newTransport(cfg)
	if err != nil {
		return err
	}
	return r.AddServerTransport(ctx, cfg, transport)
}

// AddServerTransport is AddServer with a pre-built transport. Primarily
// useful for testing with mock transports.
func (r *Registry) AddServerTransport(ctx context.Context, cfg ServerConfig, transport Transport) error {
	if cfg.Name == "" {
		return fmt.Errorf("%w: server name is required", ErrInvalidConfig)
	}

	session := newServerSession(cfg, transport, r.clientInfo, r.logger)
	if err := session.Connect(ctx); err != nil {
		return fmt.Errorf("connect server %s: %w", cfg.Name, err)
	}

	prior := r.register(session)
	if prior != nil {
		if err := prior.Close(); err != nil {
			r.logger.Warn("close replaced session", "server", cfg.Name, "error", err)
		}
	}

	r.logger.Info("server connected",
		"server", cfg.Name, "transport", transport.Kind(), "tools", len(session.Tools()))
	return nil
}

// register swaps the session into the index and returns the session it
// replaced, if any. The caller closes the prior session outside the lock.
func (r *Registry) register(session *ServerSession) *ServerSession {
	name := session.Config().Name

	r.mu.Lock()
	defer r.mu.Unlock()

	prior := r.sessions[name]
	if prior != nil {
		for _, tool := range prior.Tools() {
			delete(r.index, tool.Qualified().String())
		}
	}
	r.sessions[name] = session
	for _, tool := range session.Tools() {
		q := tool.Qualified()
		r.index[q.String()] = q
	}
	return prior
}

// ConnectAll adds every server a ConfigSource supplies, connecting them
// concurrently. Each failure is logged with its server name; the first
// failure is also returned after all attempts finish. Servers that did
// connect stay registered.
func (r *Registry) ConnectAll(ctx context.Context, source ConfigSource) error {
	configs, err := source.Servers()
	if err != nil {
		return err
	}

	var eg errgroup.Group
	for _, cfg := range configs {
		cfg := cfg
		eg.Go(func() error {
			if err := r.AddServer(ctx, cfg); err != nil {
				r.logger.Warn("server connect failed", "server", cfg.Name, "error", err)
				return err
			}
			return nil
		})
	}
	return eg.Wait()
}

// Resolve maps a tool name to its qualified form. A name carrying the
// "server:tool" separator is looked up directly; a bare name is matched
// against every server's catalog and must be unique. Resolve never mutates
// the registry.
func (r *Registry) Resolve(name string) (QualifiedToolName, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if q, ok := splitQualified(name); ok {
		if _, found := r.index[q.String()]; found {
			return q, nil
		}
		return QualifiedToolName{}, &ResolutionError{Name: name}
	}

	var servers []string
	for _, q := range r.index {
		if q.Tool == name {
			servers = append(servers, q.Server)
		}
	}
	switch len(servers) {
	case 0:
		return QualifiedToolName{}, &ResolutionError{Name: name}
	case 1:
		return QualifiedToolName{Server: servers[0], Tool: name}, nil
	default:
		sort.Strings(servers)
		return QualifiedToolName{}, &ResolutionError{Name: name, Servers: servers}
	}
}

// CallTool resolves the name and dispatches a tools/call to the owning
// session, returning the normalized result. Arguments may be nil for tools
// without parameters.
func (r *Registry) CallTool(ctx context.Context, name string, arguments map[string]any) (*ToolResult, error) {
	q, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	session := r.sessions[q.Server]
	r.mu.RUnlock()
	if session == nil {
		return nil, fmt.Errorf("%w: %s", ErrServerNotFound, q.Server)
	}

	return session.CallTool(ctx, q.Tool, arguments)
}

// Tool returns the descriptor for a qualified or unambiguous bare name.
func (r *Registry) Tool(name string) (ToolDescriptor, error) {
	q, err := r.Resolve(name)
	if err != nil {
		return ToolDescriptor{}, err
	}

	r.mu.RLock()
	session := r.sessions[q.Server]
	r.mu.RUnlock()
	if session == nil {
		return ToolDescriptor{}, fmt.Errorf("%w: %s", ErrServerNotFound, q.Server)
	}
	for _, tool := range session.Tools() {
		if tool.Name == q.Tool {
			return tool, nil
		}
	}
	return ToolDescriptor{}, &ResolutionError{Name: name}
}

// ListTools returns every registered tool, sorted by qualified name.
func (r *Registry) ListTools() []ToolDescriptor {
	r.mu.RLock()
	sessions := make([]*ServerSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	var tools []ToolDescriptor
	for _, s := range sessions {
		tools = append(tools, s.Tools()...)
	}
	sort.Slice(tools, func(i, j int) bool {
		return tools[i].Qualified().String() < tools[j].Qualified().String()
	})
	return tools
}

// ServerNames returns the names of all registered servers, sorted.
func (r *Registry) ServerNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sessions))
	for name := range r.sessions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close tears down every session and clears the namespace. Teardown is
// best-effort: one session's failure never prevents closing the others.
// Failures are logged per server; the first is also returned.
func (r *Registry) Close() error {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*ServerSession)
	r.index = make(map[string]QualifiedToolName)
	r.mu.Unlock()

	var eg errgroup.Group
	for name, session := range sessions {
		name, session := name, session
		eg.Go(func() error {
			if err := session.Close(); err != nil {
				r.logger.Warn("session close failed", "server", name, "error", err)
				return fmt.Errorf("close server %s: %w", name, err)
			}
			return nil
		})
	}
	return eg.Wait()
}

// newTransport builds the transport for a config, honoring a shared HTTP
// client when one was injected.
func (r *Registry) newTransport(cfg ServerConfig) (Transport, error) {
	isHTTP := cfg.Transport == TransportHTTP ||
		(cfg.Transport == "" && cfg.Command == "" && cfg.URL != "")
	if r.httpClient != nil && isHTTP {
		return newHTTPTransport(cfg, r.httpClient)
	}
	return NewTransport(cfg)
}
