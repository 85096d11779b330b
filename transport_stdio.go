package mcpclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// maxResponseBytes bounds a single response line or SSE event.
const maxResponseBytes = 4 << 20

// closeGrace is how long Close waits for the subprocess to exit after its
// stdin is closed before killing it.
const closeGrace = 2 * time.Second

// StdioTransport talks to a subprocess MCP server: one newline-terminated
// JSON-RPC request per line on the child's stdin, one response per line on
// its stdout. The child's stderr is not part of the protocol channel and is
// discarded.
//
// There is no built-in per-request timeout: a child that never answers
// blocks Send until the caller's context is canceled or the transport is
// closed.
type StdioTransport struct {
	serverName string
	command    string
	args       []string
	env        map[string]string
	cwd        string

	cmd   *exec.Cmd
	stdin io.WriteCloser
	ids   correlator

	// sendMu serializes Send so only one request is ever in flight; the
	// pipe pair cannot interleave concurrent request/response exchanges.
	sendMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan sendOutcome
	started bool
	closed  bool

	// done is closed when the reader goroutine exits (child stdout EOF).
	done      chan struct{}
	closeOnce sync.Once
}

// sendOutcome delivers either a correlated response or a transport failure
// to the caller awaiting a pending request.
type sendOutcome struct {
	resp *Response
	err  error
}

var _ Transport = (*StdioTransport)(nil)

// NewStdioTransport creates a StdioTransport from the given config.
// Returns ErrInvalidConfig if Command is empty. No process is spawned until
// Connect.
func NewStdioTransport(cfg ServerConfig) (*StdioTransport, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("%w: stdio transport requires command", ErrInvalidConfig)
	}
	return &StdioTransport{
		serverName: cfg.Name,
		command:    cfg.Command,
		args:       cfg.Args,
		env:        cfg.Env,
		cwd:        cfg.Cwd,
		pending:    make(map[string]chan sendOutcome),
		done:       make(chan struct{}),
	}, nil
}

// newStdioPipeTransport wires a transport directly onto an existing pipe
// pair, bypassing process spawning. Used by tests.
func newStdioPipeTransport(serverName string, stdin io.WriteCloser, stdout io.Reader) *StdioTransport {
	t := &StdioTransport{
		serverName: serverName,
		stdin:      stdin,
		pending:    make(map[string]chan sendOutcome),
		done:       make(chan struct{}),
		started:    true,
	}
	go t.readLoop(stdout)
	return t
}

// Kind returns TransportStdio.
func (t *StdioTransport) Kind() TransportType { return TransportStdio }

// Connect spawns the subprocess and starts the response reader. The process
// deliberately outlives ctx: ctx bounds the spawn, not the server's
// lifetime, which ends at Close.
func (t *StdioTransport) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return &TransportError{Server: t.serverName, Message: "connect canceled", Err: err}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return nil
	}

	cmd := exec.Command(t.command, t.args...)
	cmd.Dir = t.cwd
	cmd.Env = os.Environ()
	for k, v := range t.env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.Stderr = io.Discard

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return &TransportError{Server: t.serverName, Message: "open stdin pipe", Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &TransportError{Server: t.serverName, Message: "open stdout pipe", Err: err}
	}
	if err := cmd.Start(); err != nil {
		return &TransportError{Server: t.serverName, Message: "spawn " + t.command, Err: err}
	}

	t.cmd = cmd
	t.stdin = stdin
	t.started = true
	go t.readLoop(stdout)
	return nil
}

// Send writes one request line and waits for the correlated response line.
func (t *StdioTransport) Send(ctx context.Context, method string, params any) (*Response, error) {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	t.mu.Lock()
	if !t.started || t.closed {
		t.mu.Unlock()
		return nil, &TransportError{Server: t.serverName, Message: "transport closed", Err: ErrNotConnected}
	}
	id := t.ids.nextID()
	ch := make(chan sendOutcome, 1)
	t.pending[id] = ch
	t.mu.Unlock()

	data, err := json.Marshal(newRequest(id, method, params))
	if err != nil {
		t.discard(id)
		return nil, &TransportError{Server: t.serverName, Message: "encode request", Err: err}
	}
	data = append(data, '\n')
	if _, err := t.stdin.Write(data); err != nil {
		t.discard(id)
		return nil, &TransportError{Server: t.serverName, Message: "write request", Err: err}
	}

	select {
	case out := <-ch:
		return out.resp, out.err
	case <-t.done:
		// The reader may have delivered just before exiting.
		select {
		case out := <-ch:
			return out.resp, out.err
		default:
		}
		t.discard(id)
		return nil, &TransportError{Server: t.serverName, Message: "no response from server"}
	case <-ctx.Done():
		t.discard(id)
		return nil, &TransportError{Server: t.serverName, Message: "request canceled", Err: ctx.Err()}
	}
}

// readLoop pumps response lines from the child's stdout until EOF, matching
// each to its pending request. Lines whose id matches nothing are protocol
// noise and are dropped.
func (t *StdioTransport) readLoop(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64<<10), maxResponseBytes)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var resp Response
		if err := json.Unmarshal(line, &resp); err != nil {
			// Malformed JSON fails the awaiting request but does not kill
			// the channel; the child may recover.
			t.failPending(&TransportError{Server: t.serverName, Message: "invalid JSON response", Err: err})
			continue
		}
		t.deliver(&resp)
	}

	// Child stdout closed: every still-pending request resolves to an error
	// rather than hanging.
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.failPending(&TransportError{Server: t.serverName, Message: "no response from server"})
	close(t.done)
}

func (t *StdioTransport) deliver(resp *Response) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, ch := range t.pending {
		if resp.matchesID(id) {
			delete(t.pending, id)
			ch <- sendOutcome{resp: resp}
			return
		}
	}
}

func (t *StdioTransport) failPending(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, ch := range t.pending {
		delete(t.pending, id)
		ch <- sendOutcome{err: err}
	}
}

func (t *StdioTransport) discard(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, id)
}

// Close terminates the subprocess and awaits its exit. The child first gets
// the chance to exit cleanly on stdin EOF; after closeGrace it is killed.
func (t *StdioTransport) Close() error {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.closed = true
		started := t.started
		t.mu.Unlock()

		if t.stdin != nil {
			_ = t.stdin.Close()
		}
		if !started {
			close(t.done)
			return
		}
		if t.cmd == nil {
			// Pipe-backed transport: the reader exits on stdout EOF.
			return
		}

		select {
		case <-t.done:
		case <-time.After(closeGrace):
			_ = t.cmd.Process.Kill()
			<-t.done
		}
		_ = t.cmd.Wait()
	})
	return nil
}
