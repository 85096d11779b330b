package mcpclient

import (
	"encoding/json"
	"strconv"
	"sync/atomic"
)

// Protocol constants declared during the initialize handshake.
const (
	protocolVersion = "2024-11-05"

	defaultClientName    = "mcp-client-go"
	defaultClientVersion = "1.0.0"
)

// request is an outgoing JSON-RPC 2.0 envelope.
type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

func newRequest(id, method string, params any) request {
	return request{JSONRPC: "2.0", ID: id, Method: method, Params: params}
}

// Response is a decoded JSON-RPC response envelope. Exactly one of Result
// and Error is set on a well-formed response.
type Response struct {
	ID     any             `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// RPCError is the error object of a JSON-RPC response.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// matchesID reports whether the response's echoed id corresponds to the
// request id we sent. Requests always carry string ids, but some servers
// echo them back as numbers, so both forms are accepted.
func (r *Response) matchesID(id string) bool {
	switch got := r.ID.(type) {
	case string:
		return got == id
	case float64:
		want, err := strconv.ParseFloat(id, 64)
		return err == nil && got == want
	default:
		return false
	}
}

// correlator issues request identifiers for one transport: strictly
// increasing, starting at "1", never reused for the transport's lifetime.
type correlator struct {
	next atomic.Int64
}

func (c *correlator) nextID() string {
	return strconv.FormatInt(c.next.Add(1), 10)
}
