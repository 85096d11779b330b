package mcptest

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// InputSchema generates the JSON Schema for a tool's input from a Go struct
// type, for advertising in a fake server's catalog:
//
//	type searchInput struct {
//	    Query string `json:"query" jsonschema:"description=Search query"`
//	    Limit int    `json:"limit,omitempty"`
//	}
//	tool := mcptest.Tool{Name: "search", InputSchema: mcptest.InputSchema[searchInput]()}
func InputSchema[T any]() json.RawMessage {
	var zero T
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	s := r.Reflect(&zero)
	s.Version = "" // inputSchema carries no $schema marker

	data, err := json.Marshal(s)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return data
}
