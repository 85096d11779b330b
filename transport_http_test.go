package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func httpTransportFor(t *testing.T, url string, timeout time.Duration) *HTTPTransport {
	t.Helper()
	tr, err := NewHTTPTransport(ServerConfig{
		Name:      "test",
		Transport: TransportHTTP,
		URL:       url,
		Timeout:   timeout,
	})
	require.NoError(t, err)
	return tr
}

func decodeRequest(t *testing.T, r *http.Request) request {
	t.Helper()
	var req request
	require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
	return req
}

func TestHTTPTransport_JSONResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.Header.Get("Accept"), "text/event-stream")
		req := decodeRequest(t, r)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%q,"result":{"ok":true}}`, req.ID)
	}))
	defer srv.Close()

	tr := httpTransportFor(t, srv.URL, 0)
	resp, err := tr.Send(context.Background(), "tools/list", map[string]any{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Result))
}

func TestHTTPTransport_SSE_SkipsNoise(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: this is not json\n\n")
		fmt.Fprint(w, "data: {\"jsonrpc\":\"2.0\",\"id\":\"999\",\"result\":{\"noise\":true}}\n\n")
		fmt.Fprintf(w, "data: {\"jsonrpc\":\"2.0\",\"id\":%q,\"result\":{\"ok\":true}}\n\n", req.ID)
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	tr := httpTransportFor(t, srv.URL, 0)
	resp, err := tr.Send(context.Background(), "ping", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Result))
}

func TestHTTPTransport_SSE_NoValidEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: junk\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	tr := httpTransportFor(t, srv.URL, 0)
	_, err := tr.Send(context.Background(), "ping", nil)
	require.Error(t, err)
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Contains(t, terr.Error(), "no JSON-RPC response in event stream")
}

func TestHTTPTransport_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "server exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr := httpTransportFor(t, srv.URL, 0)
	_, err := tr.Send(context.Background(), "ping", nil)
	require.Error(t, err)
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Contains(t, terr.Error(), "HTTP 500")
	assert.Contains(t, terr.Error(), "server exploded")
}

func TestHTTPTransport_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, "definitely not json")
	}))
	defer srv.Close()

	tr := httpTransportFor(t, srv.URL, 0)
	_, err := tr.Send(context.Background(), "ping", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON response")
}

func TestHTTPTransport_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	tr := httpTransportFor(t, srv.URL, 50*time.Millisecond)
	start := time.Now()
	_, err := tr.Send(context.Background(), "ping", nil)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
	var terr *TransportError
	assert.ErrorAs(t, err, &terr)
}

func TestHTTPTransport_ExtraHeaders(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		req := decodeRequest(t, r)
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%q,"result":{}}`, req.ID)
	}))
	defer srv.Close()

	tr, err := NewHTTPTransport(ServerConfig{
		Name:      "test",
		Transport: TransportHTTP,
		URL:       srv.URL,
		Headers:   map[string]string{"Authorization": "Bearer token123"},
	})
	require.NoError(t, err)

	_, err = tr.Send(context.Background(), "ping", nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer token123", got)
}

func TestNewHTTPTransport_RequiresURL(t *testing.T) {
	_, err := NewHTTPTransport(ServerConfig{Name: "s", Transport: TransportHTTP})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewTransport_Factory(t *testing.T) {
	tr, err := NewTransport(ServerConfig{Name: "a", Transport: TransportStdio, Command: "echo"})
	require.NoError(t, err)
	assert.Equal(t, TransportStdio, tr.Kind())

	tr, err = NewTransport(ServerConfig{Name: "b", Transport: TransportHTTP, URL: "http://localhost:1"})
	require.NoError(t, err)
	assert.Equal(t, TransportHTTP, tr.Kind())

	// Transport kind inferred from the fields present.
	tr, err = NewTransport(ServerConfig{Name: "c", Command: "echo"})
	require.NoError(t, err)
	assert.Equal(t, TransportStdio, tr.Kind())

	_, err = NewTransport(ServerConfig{Name: "d"})
	require.Error(t, err)
}
