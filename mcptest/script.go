package mcptest

import "strings"

// ScriptCommand builds a shell command that acts as a line-oriented stdio
// MCP server: for each given response it reads one request line from stdin
// and prints the response, then swallows further input until stdin closes.
// Responses must not contain single quotes (JSON normally does not).
//
// Requires a POSIX /bin/sh; intended for tests on Unix-like systems.
func ScriptCommand(responses ...string) (command string, args []string) {
	var b strings.Builder
	for _, resp := range responses {
		b.WriteString("read line; printf '%s\\n' '")
		b.WriteString(resp)
		b.WriteString("'; ")
	}
	b.WriteString("cat >/dev/null")
	return "/bin/sh", []string{"-c", b.String()}
}
