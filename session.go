package mcpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// SessionState is the lifecycle state of a ServerSession.
type SessionState string

const (
	// StateDisconnected is the initial state: the transport exists but no
	// handshake has run.
	StateDisconnected SessionState = "disconnected"

	// StateHandshaking covers the initialize call and the catalog query.
	StateHandshaking SessionState = "handshaking"

	// StateReady means tools may be invoked.
	StateReady SessionState = "ready"

	// StateClosed is terminal. Sessions never reconnect; build a new one.
	StateClosed SessionState = "closed"
)

// ClientInfo is the client identity declared during the handshake.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ServerInfo is the identity a server reports in its initialize result.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// initializeParams is the wire shape of the initialize request.
type initializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      ClientInfo     `json:"clientInfo"`
}

// initializeResult is the part of the initialize response we keep.
type initializeResult struct {
	ProtocolVersion string     `json:"protocolVersion"`
	ServerInfo      ServerInfo `json:"serverInfo"`
}

// toolsListResult is the wire shape of a tools/list response.
type toolsListResult struct {
	Tools []struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		InputSchema json.RawMessage `json:"inputSchema"`
	} `json:"tools"`
}

// toolCallParams is the wire shape of a tools/call request.
type toolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ServerSession owns one Transport plus the handshake state and tool catalog
// of a single MCP server.
type ServerSession struct {
	config     ServerConfig
	transport  Transport
	clientInfo ClientInfo
	logger     *slog.Logger

	// callMu serializes protocol calls: one request in flight at a time,
	// since the underlying channel correlates strictly by request/response
	// order.
	callMu sync.Mutex

	// mu guards the fields below with short critical sections only, so
	// Close never waits behind an in-flight call.
	mu         sync.Mutex
	state      SessionState
	tools      []ToolDescriptor
	serverInfo ServerInfo
}

// newServerSession wraps a transport. The session starts Disconnected;
// Connect drives it to Ready.
func newServerSession(cfg ServerConfig, t Transport, info ClientInfo, logger *slog.Logger) *ServerSession {
	if logger == nil {
		logger = slog.Default()
	}
	return &ServerSession{
		config:     cfg,
		transport:  t,
		clientInfo: info,
		logger:     logger,
		state:      StateDisconnected,
	}
}

// Config returns the immutable config the session was built from.
func (s *ServerSession) Config() ServerConfig { return s.config }

// State returns the current lifecycle state.
func (s *ServerSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ServerInfo returns the identity the server reported during the handshake.
// Zero until the session reaches Ready.
func (s *ServerSession) ServerInfo() ServerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverInfo
}

// Tools returns a copy of the session's tool catalog.
func (s *ServerSession) Tools() []ToolDescriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ToolDescriptor, len(s.tools))
	copy(out, s.tools)
	return out
}

// Connect performs the handshake: connect the transport, initialize, then
// load the tool catalog. Any failure closes the session; a failed session
// must not be registered and cannot be retried.
func (s *ServerSession) Connect(ctx context.Context) error {
	s.callMu.Lock()
	defer s.callMu.Unlock()

	if !s.transition(StateDisconnected, StateHandshaking) {
		return fmt.Errorf("mcp: connect on session %q in state %s", s.config.Name, s.State())
	}

	tools, info, err := s.handshake(ctx)
	if err != nil {
		s.setState(StateClosed)
		if cerr := s.transport.Close(); cerr != nil {
			s.logger.Warn("transport close after failed handshake",
				"server", s.config.Name, "error", cerr)
		}
		return err
	}

	s.mu.Lock()
	s.tools = tools
	s.serverInfo = info
	if s.state == StateHandshaking {
		s.state = StateReady
	}
	s.mu.Unlock()
	return nil
}

func (s *ServerSession) handshake(ctx context.Context) ([]ToolDescriptor, ServerInfo, error) {
	if err := s.transport.Connect(ctx); err != nil {
		return nil, ServerInfo{}, err
	}

	initRaw, err := s.call(ctx, "initialize", initializeParams{
		ProtocolVersion: protocolVersion,
		Capabilities:    map[string]any{"tools": map[string]any{}},
		ClientInfo:      s.clientInfo,
	})
	if err != nil {
		return nil, ServerInfo{}, err
	}
	var init initializeResult
	if err := json.Unmarshal(initRaw, &init); err != nil {
		return nil, ServerInfo{}, &TransportError{Server: s.config.Name, Message: "invalid initialize result", Err: err}
	}

	listRaw, err := s.call(ctx, "tools/list", map[string]any{})
	if err != nil {
		return nil, ServerInfo{}, err
	}
	var list toolsListResult
	if err := json.Unmarshal(listRaw, &list); err != nil {
		return nil, ServerInfo{}, &TransportError{Server: s.config.Name, Message: "invalid tools/list result", Err: err}
	}

	tools := make([]ToolDescriptor, 0, len(list.Tools))
	for _, t := range list.Tools {
		tools = append(tools, ToolDescriptor{
			Name:        t.Name,
			Server:      s.config.Name,
			Description: t.Description,
			InputSchema: parseInputSchema(t.InputSchema),
		})
	}
	return tools, init.ServerInfo, nil
}

// call sends one request and maps a JSON-RPC error object to ProtocolError.
// Caller must hold s.callMu.
func (s *ServerSession) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	resp, err := s.transport.Send(ctx, method, params)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, &ProtocolError{
			Server:  s.config.Name,
			Method:  method,
			Code:    resp.Error.Code,
			Message: resp.Error.Message,
		}
	}
	return resp.Result, nil
}

// CallTool invokes a tool by its underlying (unqualified) name. Valid only
// in Ready; any other state is a usage error. A transport failure closes the
// session; a protocol error leaves it Ready.
func (s *ServerSession) CallTool(ctx context.Context, name string, arguments map[string]any) (*ToolResult, error) {
	s.callMu.Lock()
	defer s.callMu.Unlock()

	if state := s.State(); state != StateReady {
		return nil, fmt.Errorf("%w: session %q is %s", ErrNotConnected, s.config.Name, state)
	}

	raw, err := s.call(ctx, "tools/call", toolCallParams{Name: name, Arguments: arguments})
	if err != nil {
		var terr *TransportError
		if errors.As(err, &terr) {
			// The channel is broken; nothing further can succeed.
			s.closeTransport()
		}
		return nil, err
	}

	result, err := parseToolResult(raw)
	if err != nil {
		return nil, &TransportError{Server: s.config.Name, Message: "invalid tools/call result", Err: err}
	}
	return result, nil
}

// Close releases the transport and moves the session to Closed. Safe to
// call from any state, more than once, and while a call is in flight: the
// transport teardown unblocks any pending request with an error.
func (s *ServerSession) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosed
	s.mu.Unlock()

	return s.transport.Close()
}

func (s *ServerSession) closeTransport() {
	s.setState(StateClosed)
	if err := s.transport.Close(); err != nil {
		s.logger.Warn("transport close after failure",
			"server", s.config.Name, "error", err)
	}
}

func (s *ServerSession) setState(state SessionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// transition moves from one state to another atomically, reporting whether
// the session was in the expected state.
func (s *ServerSession) transition(from, to SessionState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from {
		return false
	}
	s.state = to
	return true
}
