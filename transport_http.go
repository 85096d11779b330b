package mcpclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody is how much of a non-200 response body is kept for the error
// message.
const maxErrorBody = 100

// sseDone is the sentinel event terminating a server-sent-event stream.
const sseDone = "[DONE]"

// HTTPTransport talks to an MCP server over HTTP: one POST per request,
// accepting either a plain JSON response or a text/event-stream on the same
// endpoint. In the streamed case the first event carrying a JSON-RPC
// envelope with the matching id is the response; the rest of the stream is
// abandoned.
type HTTPTransport struct {
	serverName string
	url        string
	headers    map[string]string
	client     *http.Client
	ids        correlator
}

var _ Transport = (*HTTPTransport)(nil)

// NewHTTPTransport creates an HTTPTransport from the given config.
// Returns ErrInvalidConfig if URL is empty.
func NewHTTPTransport(cfg ServerConfig) (*HTTPTransport, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return newHTTPTransport(cfg, &http.Client{Timeout: timeout})
}

// newHTTPTransport injects the HTTP client, letting the Registry share one
// client across servers via WithHTTPClient.
func newHTTPTransport(cfg ServerConfig, client *http.Client) (*HTTPTransport, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: HTTP transport requires URL", ErrInvalidConfig)
	}
	return &HTTPTransport{
		serverName: cfg.Name,
		url:        cfg.URL,
		headers:    cfg.Headers,
		client:     client,
	}, nil
}

// Kind returns TransportHTTP.
func (t *HTTPTransport) Kind() TransportType { return TransportHTTP }

// Connect is a no-op for HTTP; the session's initialize call is the first
// round trip and doubles as the reachability check.
func (t *HTTPTransport) Connect(ctx context.Context) error {
	return ctx.Err()
}

// Send POSTs one JSON-RPC request and decodes the response, transparently
// handling both response encodings.
func (t *HTTPTransport) Send(ctx context.Context, method string, params any) (*Response, error) {
	id := t.ids.nextID()
	body, err := json.Marshal(newRequest(id, method, params))
	if err != nil {
		return nil, &TransportError{Server: t.serverName, Message: "encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Server: t.serverName, Message: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &TransportError{Server: t.serverName, Message: "HTTP request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &TransportError{
			Server:  t.serverName,
			Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))),
		}
	}

	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "text/event-stream") {
		return t.readEventStream(resp.Body, id)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Server: t.serverName, Message: "read response", Err: err}
	}
	var out Response
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &TransportError{Server: t.serverName, Message: "invalid JSON response", Err: err}
	}
	return &out, nil
}

// readEventStream scans `data:` lines until one parses as a JSON-RPC
// envelope matching the request id. Malformed events and envelopes for other
// ids are skipped; the [DONE] sentinel or stream close without a match is a
// transport error.
func (t *HTTPTransport) readEventStream(body io.Reader, id string) (*Response, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64<<10), maxResponseBytes)

	for scanner.Scan() {
		data, ok := strings.CutPrefix(strings.TrimSpace(scanner.Text()), "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == sseDone {
			break
		}
		if data == "" {
			continue
		}
		var out Response
		if err := json.Unmarshal([]byte(data), &out); err != nil {
			continue
		}
		if out.Result == nil && out.Error == nil {
			continue
		}
		if !out.matchesID(id) {
			continue
		}
		return &out, nil
	}
	return nil, &TransportError{Server: t.serverName, Message: "no JSON-RPC response in event stream"}
}

// Close releases pooled connections. Safe to call multiple times.
func (t *HTTPTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}
