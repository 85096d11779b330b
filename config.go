package mcpclient

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// TransportType identifies the MCP transport protocol.
type TransportType string

const (
	// TransportStdio communicates via a subprocess's stdin/stdout.
	TransportStdio TransportType = "stdio"

	// TransportHTTP communicates via HTTP POST, accepting either a plain
	// JSON response or a server-sent-event stream on the same endpoint.
	TransportHTTP TransportType = "http"
)

// DefaultTimeout is applied to HTTP servers whose config does not set one.
const DefaultTimeout = 30 * time.Second

// ServerConfig describes how to connect to a single MCP server.
// It is immutable once a session has been established from it.
type ServerConfig struct {
	// Name identifies the server; it must be unique within a Registry and
	// becomes the prefix of every qualified tool name.
	Name string

	// Transport selects the communication protocol.
	Transport TransportType

	// Command is the executable to spawn (stdio transport only).
	Command string

	// Args are command-line arguments for the subprocess.
	Args []string

	// Env are extra environment variables for the subprocess, appended to
	// the parent environment.
	Env map[string]string

	// Cwd is the subprocess working directory. Empty means inherit.
	Cwd string

	// URL is the server endpoint (http transport only).
	URL string

	// Headers are extra HTTP headers sent with every request.
	Headers map[string]string

	// Description is a human-readable note about the server.
	Description string

	// Timeout bounds each HTTP request. Stdio transports have no built-in
	// per-request timeout; see StdioTransport.
	Timeout time.Duration
}

// Validate checks that the config carries the fields its transport type
// requires. It is called before any I/O happens, so a bad config never
// spawns a process or opens a connection.
func (c ServerConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: server name is required", ErrInvalidConfig)
	}
	switch c.Transport {
	case TransportStdio:
		if c.Command == "" {
			return fmt.Errorf("%w: stdio server %q requires command", ErrInvalidConfig, c.Name)
		}
	case TransportHTTP:
		if c.URL == "" {
			return fmt.Errorf("%w: http server %q requires URL", ErrInvalidConfig, c.Name)
		}
	default:
		return fmt.Errorf("%w: server %q has unknown transport %q", ErrInvalidConfig, c.Name, c.Transport)
	}
	return nil
}

// ConfigSource supplies server configurations to connect. How the configs
// are stored and edited is the caller's concern; this package only consumes
// them.
type ConfigSource interface {
	Servers() ([]ServerConfig, error)
}

// StaticConfigs is a ConfigSource backed by an in-memory slice.
type StaticConfigs []ServerConfig

// Servers returns the configured servers unchanged.
func (s StaticConfigs) Servers() ([]ServerConfig, error) {
	return []ServerConfig(s), nil
}

// serverEntry is the wire form of a server record in a config document.
// Timeout is expressed in whole seconds.
type serverEntry struct {
	Name        string            `json:"name" yaml:"name"`
	Transport   string            `json:"transport" yaml:"transport"`
	Command     string            `json:"command,omitempty" yaml:"command,omitempty"`
	Args        []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env         map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	Cwd         string            `json:"cwd,omitempty" yaml:"cwd,omitempty"`
	URL         string            `json:"url,omitempty" yaml:"url,omitempty"`
	Headers     map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Timeout     int               `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// serverDocument is the top-level config document shape.
type serverDocument struct {
	Servers []serverEntry `json:"servers" yaml:"servers"`
}

// ParseServersJSON decodes a {"servers": [...]} JSON document into server
// configs. Each entry is validated; the first invalid entry fails the parse.
func ParseServersJSON(data []byte) ([]ServerConfig, error) {
	var doc serverDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, err.Error())
	}
	return convertEntries(doc.Servers)
}

// ParseServersYAML decodes the YAML form of the same document.
func ParseServersYAML(data []byte) ([]ServerConfig, error) {
	var doc serverDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, err.Error())
	}
	return convertEntries(doc.Servers)
}

func convertEntries(entries []serverEntry) ([]ServerConfig, error) {
	configs := make([]ServerConfig, 0, len(entries))
	for _, e := range entries {
		transport := TransportType(e.Transport)
		if e.Transport == "" {
			// Infer from the fields present, matching NewTransport.
			if e.Command != "" {
				transport = TransportStdio
			} else {
				transport = TransportHTTP
			}
		}
		cfg := ServerConfig{
			Name:        e.Name,
			Transport:   transport,
			Command:     e.Command,
			Args:        e.Args,
			Env:         e.Env,
			Cwd:         e.Cwd,
			URL:         e.URL,
			Headers:     e.Headers,
			Description: e.Description,
			Timeout:     time.Duration(e.Timeout) * time.Second,
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}
