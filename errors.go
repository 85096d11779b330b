package mcpclient

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Typed errors below wrap these so callers can branch with
// errors.Is without inspecting messages.
var (
	// ErrInvalidConfig is returned when a ServerConfig is missing required
	// fields for its transport type.
	ErrInvalidConfig = errors.New("mcp: invalid server config")

	// ErrNotConnected is returned when using a session or transport that is
	// not in the Ready state.
	ErrNotConnected = errors.New("mcp: server not connected")

	// ErrServerNotFound is returned when referencing a server name that does
	// not exist in the Registry.
	ErrServerNotFound = errors.New("mcp: server not found")

	// ErrToolNotFound is returned when a tool name cannot be resolved to any
	// registered server/tool pair.
	ErrToolNotFound = errors.New("mcp: tool not found")

	// ErrAmbiguousTool is returned when a bare tool name matches tools on
	// more than one server.
	ErrAmbiguousTool = errors.New("mcp: ambiguous tool name")
)

// TransportError reports a failure in the underlying channel: process spawn
// failure, closed pipe, malformed JSON, non-2xx HTTP status, or a request
// timeout. It is always surfaced as a failed operation, never a panic.
type TransportError struct {
	// Server is the name of the server involved, when known.
	Server string

	// Message describes what went wrong.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

func (e *TransportError) Error() string {
	var b strings.Builder
	b.WriteString("mcp: transport error")
	if e.Server != "" {
		fmt.Fprintf(&b, " (server %s)", e.Server)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError reports a JSON-RPC error object returned by the server. The
// server's message is preserved verbatim alongside the method that failed.
type ProtocolError struct {
	Server  string
	Method  string
	Code    int
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("mcp: server %s returned error for %s: %s", e.Server, e.Method, e.Message)
}

// ResolutionError reports a tool name that could not be resolved to exactly
// one server. Servers is empty for an unknown name and lists every candidate
// when the name is ambiguous.
type ResolutionError struct {
	Name    string
	Servers []string
}

func (e *ResolutionError) Error() string {
	if len(e.Servers) > 1 {
		return fmt.Sprintf("mcp: tool %q found on multiple servers: %s (use \"server:tool\" to disambiguate)",
			e.Name, strings.Join(e.Servers, ", "))
	}
	return fmt.Sprintf("mcp: tool %q not found", e.Name)
}

// Unwrap maps the error onto ErrAmbiguousTool or ErrToolNotFound so both
// forms stay matchable with errors.Is.
func (e *ResolutionError) Unwrap() error {
	if len(e.Servers) > 1 {
		return ErrAmbiguousTool
	}
	return ErrToolNotFound
}
