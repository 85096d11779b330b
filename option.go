package mcpclient

import (
	"log/slog"
	"net/http"
)

// Option configures a Registry via the functional options pattern.
type Option func(*Registry)

// WithLogger sets the logger used for connection and teardown diagnostics.
// Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClientInfo overrides the client identity declared during the
// initialize handshake.
func WithClientInfo(info ClientInfo) Option {
	return func(r *Registry) {
		r.clientInfo = info
	}
}

// WithHTTPClient makes every HTTP transport share the given client instead
// of building one per server. The client's timeout then applies to all HTTP
// servers, overriding per-server Timeout values.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Registry) {
		r.httpClient = client
	}
}
