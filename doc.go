// Package mcpclient implements a multi-server MCP (Model Context Protocol)
// client. It connects to tool servers over stdio subprocesses or HTTP,
// performs the initialize handshake, merges every server's tool catalog into
// one namespace, and dispatches tool calls to the owning server.
//
// The main entry point is [Registry]:
//
//	r := mcpclient.NewRegistry()
//	defer r.Close()
//
//	err := r.AddServer(ctx, mcpclient.ServerConfig{
//	    Name:      "files",
//	    Transport: mcpclient.TransportStdio,
//	    Command:   "npx",
//	    Args:      []string{"@modelcontextprotocol/server-filesystem", "."},
//	})
//
//	result, err := r.CallTool(ctx, "files:read_file", map[string]any{"path": "README.md"})
//
// Tools are addressed by qualified name ("server:tool"). A bare tool name is
// accepted when it is unambiguous across all connected servers; otherwise
// resolution fails with an error naming every candidate server so the caller
// can disambiguate.
//
// # Sub-packages
//
//   - [github.com/armatrix/mcp-client-go/mcptest] provides in-process fake
//     MCP servers for testing clients.
package mcpclient
