package mcpclient

import (
	"encoding/json"
	"strings"
)

// ToolResult is the normalized outcome of a tools/call round trip.
type ToolResult struct {
	// Content holds the typed content items returned by the tool.
	Content []Content

	// IsError is set when the server flagged the result as a tool-level
	// failure. The call itself still succeeded at the protocol layer.
	IsError bool
}

// Text joins the text of all text content items, separated by newlines.
// Convenient for callers that only display output.
func (r *ToolResult) Text() string {
	var parts []string
	for _, c := range r.Content {
		if c.Type == ContentText {
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Content item types. Servers may return types beyond these; unknown types
// are preserved with their raw payload.
const (
	ContentText     = "text"
	ContentResource = "resource"
)

// Content is one item of a tool result: text, an opaque resource reference,
// or some other structured payload.
type Content struct {
	// Type discriminates the item ("text", "resource", ...).
	Type string

	// Text is set for text items.
	Text string

	// Resource is the raw resource reference for resource items.
	Resource json.RawMessage

	// Raw is the full item as returned by the server.
	Raw json.RawMessage
}

// toolCallResult is the wire shape of a tools/call result.
type toolCallResult struct {
	Content []json.RawMessage `json:"content"`
	IsError bool              `json:"isError"`
}

// parseToolResult normalizes a raw tools/call result payload.
func parseToolResult(raw json.RawMessage) (*ToolResult, error) {
	var wire toolCallResult
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}
	result := &ToolResult{IsError: wire.IsError}
	for _, item := range wire.Content {
		var head struct {
			Type     string          `json:"type"`
			Text     string          `json:"text"`
			Resource json.RawMessage `json:"resource"`
		}
		if err := json.Unmarshal(item, &head); err != nil {
			return nil, err
		}
		result.Content = append(result.Content, Content{
			Type:     head.Type,
			Text:     head.Text,
			Resource: head.Resource,
			Raw:      item,
		})
	}
	return result, nil
}
