package mcpclient

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// QualifiedToolName is the pair of server identity and underlying tool name.
// Its string form "server:tool" is the Registry's primary key, unique by
// construction even when two servers expose identically-named tools.
type QualifiedToolName struct {
	Server string
	Tool   string
}

// String serializes the pair as "server:tool".
func (q QualifiedToolName) String() string {
	return q.Server + ":" + q.Tool
}

// splitQualified splits a "server:tool" name. ok is false when the name
// carries no separator. Tool names themselves may contain ':' so only the
// first separator qualifies.
func splitQualified(name string) (q QualifiedToolName, ok bool) {
	server, tool, ok := strings.Cut(name, ":")
	if !ok || server == "" || tool == "" {
		return QualifiedToolName{}, false
	}
	return QualifiedToolName{Server: server, Tool: tool}, true
}

// ToolDescriptor describes one tool advertised by a server's catalog. It is
// built when the catalog loads and replaced wholesale on reconnect, never
// mutated.
type ToolDescriptor struct {
	// Name is the tool's name as reported by its server; not necessarily
	// unique across servers.
	Name string

	// Server is the owning server's identity.
	Server string

	// Description is the server's human-readable description.
	Description string

	// InputSchema describes the arguments the tool accepts.
	InputSchema InputSchema
}

// Qualified returns the tool's registry key.
func (d ToolDescriptor) Qualified() QualifiedToolName {
	return QualifiedToolName{Server: d.Server, Tool: d.Name}
}

// ParameterInfo formats the tool's parameters for display, one per line,
// marking which are required.
func (d ToolDescriptor) ParameterInfo() string {
	props := d.InputSchema.Properties
	if len(props) == 0 {
		return "No parameters"
	}
	required := make(map[string]bool, len(d.InputSchema.Required))
	for _, name := range d.InputSchema.Required {
		required[name] = true
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		p := props[name]
		req := " (optional)"
		if required[name] {
			req = " (required)"
		}
		typ := p.Type
		if typ == "" {
			typ = "unknown"
		}
		desc := p.Description
		if desc == "" {
			desc = "No description"
		}
		lines = append(lines, fmt.Sprintf("  --%s (%s)%s: %s", name, typ, req, desc))
	}
	return strings.Join(lines, "\n")
}

// InputSchema is the parsed form of a tool's JSON Schema for its arguments.
// Raw preserves the schema exactly as advertised for callers that need more
// than the flattened view.
type InputSchema struct {
	Type       string              `json:"type,omitempty"`
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
	Raw        json.RawMessage     `json:"-"`
}

// Property is one argument in a tool's input schema. Type is one of the
// JSON Schema primitive names (string, integer, number, boolean, object,
// array).
type Property struct {
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
}

// parseInputSchema decodes an advertised inputSchema, keeping the raw bytes.
// A missing or unparsable schema yields an empty schema rather than failing
// the catalog load.
func parseInputSchema(raw json.RawMessage) InputSchema {
	s := InputSchema{Raw: raw}
	if len(raw) == 0 {
		return s
	}
	// Ignore decode errors: an exotic schema still leaves Raw usable.
	_ = json.Unmarshal(raw, &s)
	s.Raw = raw
	return s
}
