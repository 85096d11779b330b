// Package mcptest provides in-process fake MCP servers for testing clients
// without external binaries: an httptest-backed HTTP server speaking both
// response encodings, a shell-script stdio server builder, and JSON Schema
// generation for tool inputs.
package mcptest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"

	mcpclient "github.com/armatrix/mcp-client-go"
)

// ToolFunc handles one tools/call invocation. The returned value becomes the
// JSON-RPC result payload; use TextContent for the common text-only case.
type ToolFunc func(args map[string]any) (any, error)

// Tool is one tool the fake server advertises.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Handler     ToolFunc
}

// Server is an in-process MCP server over HTTP. It answers initialize,
// tools/list, and tools/call; every other method gets a method-not-found
// error.
type Server struct {
	*httptest.Server

	name string

	mu    sync.Mutex
	tools []Tool
	sse   bool
	noise []string
	calls []string
}

// Option configures a Server.
type Option func(*Server)

// WithTool adds a tool to the server's catalog.
func WithTool(t Tool) Option {
	return func(s *Server) { s.tools = append(s.tools, t) }
}

// WithSSE makes the server answer with a text/event-stream instead of a
// plain JSON body.
func WithSSE() Option {
	return func(s *Server) { s.sse = true }
}

// WithSSENoise prepends raw data lines to every SSE response, before the
// real envelope. Useful for exercising clients against malformed or
// unrelated events.
func WithSSENoise(lines ...string) Option {
	return func(s *Server) {
		s.sse = true
		s.noise = append(s.noise, lines...)
	}
}

// NewServer starts a fake MCP server. Callers must Close it.
func NewServer(name string, opts ...Option) *Server {
	s := &Server{name: name}
	for _, opt := range opts {
		opt(s)
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Config returns a ServerConfig pointing at this server.
func (s *Server) Config() mcpclient.ServerConfig {
	return mcpclient.ServerConfig{
		Name:      s.name,
		Transport: mcpclient.TransportHTTP,
		URL:       s.URL,
	}
}

// Calls returns the method names received so far, in order.
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     any             `json:"id"`
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.calls = append(s.calls, req.Method)
	s.mu.Unlock()

	result, rpcErr := s.dispatch(req.Method, req.Params)

	envelope := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if rpcErr != nil {
		envelope["error"] = rpcErr
	} else {
		envelope["result"] = result
	}
	payload, _ := json.Marshal(envelope)

	if s.sse {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range s.noise {
			fmt.Fprintf(w, "data: %s\n\n", line)
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		fmt.Fprint(w, "data: [DONE]\n\n")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(payload)
}

func (s *Server) dispatch(method string, params json.RawMessage) (any, map[string]any) {
	switch method {
	case "initialize":
		return map[string]any{
			"protocolVersion": "2024-11-05",
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo":      map[string]any{"name": s.name, "version": "0.1.0"},
		}, nil

	case "tools/list":
		s.mu.Lock()
		defer s.mu.Unlock()
		tools := make([]map[string]any, 0, len(s.tools))
		for _, t := range s.tools {
			entry := map[string]any{"name": t.Name, "description": t.Description}
			if len(t.InputSchema) > 0 {
				entry["inputSchema"] = json.RawMessage(t.InputSchema)
			}
			tools = append(tools, entry)
		}
		return map[string]any{"tools": tools}, nil

	case "tools/call":
		var call struct {
			Name      string         `json:"name"`
			Arguments map[string]any `json:"arguments"`
		}
		if err := json.Unmarshal(params, &call); err != nil {
			return nil, rpcError(-32602, "invalid params")
		}
		s.mu.Lock()
		var tool *Tool
		for i := range s.tools {
			if s.tools[i].Name == call.Name {
				tool = &s.tools[i]
				break
			}
		}
		s.mu.Unlock()
		if tool == nil || tool.Handler == nil {
			return nil, rpcError(-32602, "unknown tool: "+call.Name)
		}
		result, err := tool.Handler(call.Arguments)
		if err != nil {
			return nil, rpcError(-32000, err.Error())
		}
		return result, nil

	default:
		return nil, rpcError(-32601, "method not found: "+method)
	}
}

func rpcError(code int, message string) map[string]any {
	return map[string]any{"code": code, "message": message}
}

// TextContent wraps a string as a text-only tools/call result payload.
func TextContent(text string) map[string]any {
	return map[string]any{
		"content": []map[string]any{{"type": "text", "text": text}},
	}
}
