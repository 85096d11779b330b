package mcpclient

import "context"

// Transport is one channel to an MCP server. It serializes a single JSON-RPC
// request and returns the matching response; protocol semantics (handshake,
// catalog, tool calls) live in ServerSession.
type Transport interface {
	// Connect acquires the underlying channel: spawning the subprocess for
	// stdio, or preparing the HTTP client session.
	Connect(ctx context.Context) error

	// Send issues one request and waits for its correlated response. A
	// returned *Response may still carry a JSON-RPC error object; Send only
	// fails with a *TransportError when the channel itself breaks.
	Send(ctx context.Context, method string, params any) (*Response, error)

	// Kind reports the transport protocol, for status display.
	Kind() TransportType

	// Close releases the channel: terminates the subprocess and awaits its
	// exit, or closes the HTTP session. Any in-flight Send resolves to an
	// error promptly.
	Close() error
}

// NewTransport creates a Transport for the given ServerConfig based on its
// Transport type. Returns ErrInvalidConfig if the config is not valid.
func NewTransport(cfg ServerConfig) (Transport, error) {
	switch cfg.Transport {
	case TransportStdio:
		return NewStdioTransport(cfg)
	case TransportHTTP:
		return NewHTTPTransport(cfg)
	default:
		// Default to stdio if command is set, HTTP if URL is set.
		if cfg.Command != "" {
			return NewStdioTransport(cfg)
		}
		if cfg.URL != "" {
			return NewHTTPTransport(cfg)
		}
		return nil, cfg.Validate()
	}
}
