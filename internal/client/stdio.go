package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"signald/internal/logging"
)

// StdioTransport runs the server as a subprocess and speaks line-delimited
// JSON-RPC over its stdin/stdout. One session per process.
type StdioTransport struct {
	mu sync.Mutex

	command string
	args    []string
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  io.ReadCloser
	stderr  io.ReadCloser

	connected bool
	pending   map[int]chan *wireResponse
	nextID    int

	wg sync.WaitGroup
}

// NewStdioTransport creates a stdio transport. endpoint is the command line
// that starts the server, e.g. "signald serve --transport stdio".
func NewStdioTransport(endpoint string) *StdioTransport {
	parts := strings.Fields(endpoint)
	var cmd string
	var args []string
	if len(parts) > 0 {
		cmd = parts[0]
		args = parts[1:]
	}
	return &StdioTransport{
		command: cmd,
		args:    args,
		pending: make(map[int]chan *wireResponse),
		nextID:  1,
	}
}

// Connect starts the subprocess, begins the reader loops, and performs the
// initialize handshake.
func (t *StdioTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.connected {
		t.mu.Unlock()
		return nil
	}
	if t.command == "" {
		t.mu.Unlock()
		return fmt.Errorf("empty command for stdio transport")
	}

	t.cmd = exec.Command(t.command, t.args...)

	var err error
	if t.stdin, err = t.cmd.StdinPipe(); err != nil {
		t.mu.Unlock()
		return fmt.Errorf("failed to get stdin pipe: %w", err)
	}
	if t.stdout, err = t.cmd.StdoutPipe(); err != nil {
		t.mu.Unlock()
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	if t.stderr, err = t.cmd.StderrPipe(); err != nil {
		t.mu.Unlock()
		return fmt.Errorf("failed to get stderr pipe: %w", err)
	}

	if err := t.cmd.Start(); err != nil {
		t.mu.Unlock()
		return fmt.Errorf("failed to start %s: %w", t.command, err)
	}

	t.connected = true
	t.wg.Add(2)
	go t.readStderr()
	go t.readStdout()
	t.mu.Unlock()

	if err := t.initialize(ctx); err != nil {
		_ = t.Disconnect()
		return fmt.Errorf("%w: %v", ErrHandshake, err)
	}

	logging.Get(logging.CategoryClient).Info("stdio session established",
		zap.String("command", t.command))
	return nil
}

// initialize performs the handshake and sends the initialized notification.
func (t *StdioTransport) initialize(ctx context.Context) error {
	if _, err := t.call(ctx, "initialize", initializeParams()); err != nil {
		return err
	}

	notification, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"method":  "notifications/initialized",
	})
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stdin != nil {
		_, _ = t.stdin.Write(append(notification, '\n'))
	}
	return nil
}

// Disconnect kills the subprocess and releases pending calls.
func (t *StdioTransport) Disconnect() error {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return nil
	}
	t.connected = false

	if t.stdin != nil {
		_ = t.stdin.Close()
	}
	if t.cmd != nil && t.cmd.Process != nil {
		_ = t.cmd.Process.Kill()
	}
	for id, ch := range t.pending {
		close(ch)
		delete(t.pending, id)
	}
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		logging.Get(logging.CategoryClient).Warn("timeout waiting for reader goroutines")
	}

	if t.cmd != nil {
		_ = t.cmd.Wait()
	}
	logging.Get(logging.CategoryClient).Info("stdio session closed")
	return nil
}

func (t *StdioTransport) readStderr() {
	defer t.wg.Done()
	log := logging.Get(logging.CategoryClient)
	scanner := bufio.NewScanner(t.stderr)
	for scanner.Scan() {
		log.Debug("server stderr", zap.String("line", scanner.Text()))
	}
}

func (t *StdioTransport) readStdout() {
	defer t.wg.Done()
	log := logging.Get(logging.CategoryClient)
	scanner := bufio.NewScanner(t.stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var resp wireResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			log.Warn("unparseable frame from server", zap.Error(err))
			continue
		}

		t.mu.Lock()
		ch, exists := t.pending[resp.ID]
		if exists {
			delete(t.pending, resp.ID)
			ch <- &resp
		} else {
			log.Warn("response for unknown id", zap.Int("id", resp.ID))
		}
		t.mu.Unlock()
	}
}

// call sends one request and waits for its response.
func (t *StdioTransport) call(ctx context.Context, method string, params any) (*wireResponse, error) {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return nil, ErrNotConnected
	}

	id := t.nextID
	t.nextID++

	req := wireRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	ch := make(chan *wireResponse, 1)
	t.pending[id] = ch

	data, err := json.Marshal(req)
	if err != nil {
		delete(t.pending, id)
		t.mu.Unlock()
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	if _, err := t.stdin.Write(append(data, '\n')); err != nil {
		delete(t.pending, id)
		t.mu.Unlock()
		return nil, fmt.Errorf("failed to write request: %w", err)
	}
	t.mu.Unlock()

	select {
	case resp := <-ch:
		if resp == nil {
			return nil, fmt.Errorf("connection closed")
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("server error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		return resp, nil
	case <-ctx.Done():
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
		return nil, ctx.Err()
	}
}

// ListTools retrieves the server's declared tool set.
func (t *StdioTransport) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
	resp, err := t.call(ctx, "tools/list", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	var result struct {
		Tools []ToolDescriptor `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to parse tools response: %w", err)
	}
	return result.Tools, nil
}

// CallTool invokes a tool on the server.
func (t *StdioTransport) CallTool(ctx context.Context, name string, args map[string]any) (*CallResult, error) {
	start := time.Now()
	resp, err := t.call(ctx, "tools/call", map[string]any{
		"name":      name,
		"arguments": args,
	})
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return &CallResult{Success: false, Err: err.Error(), LatencyMs: latency}, nil
	}
	return &CallResult{Success: true, Output: resp.Result, LatencyMs: latency}, nil
}

// Ping checks that the server is responsive.
func (t *StdioTransport) Ping(ctx context.Context) error {
	_, err := t.call(ctx, "ping", nil)
	return err
}

// IsConnected reports current session state.
func (t *StdioTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

var _ Transport = (*StdioTransport)(nil)
