package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"signald/internal/logging"
)

// HTTPTransport speaks JSON-RPC over POST requests to a network server.
// Exchanges are independent, so it is safe for concurrent callers.
type HTTPTransport struct {
	mu sync.RWMutex

	baseURL   string
	timeout   time.Duration
	client    *http.Client
	connected bool
}

// NewHTTPTransport creates an HTTP transport for the given endpoint URL
// (e.g. "http://localhost:8000/mcp").
func NewHTTPTransport(baseURL string, timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		baseURL: baseURL,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

// Connect verifies the server answers the initialize handshake.
func (t *HTTPTransport) Connect(ctx context.Context) error {
	if _, err := t.call(ctx, "initialize", initializeParams()); err != nil {
		return fmt.Errorf("%w: %v", ErrHandshake, err)
	}

	t.mu.Lock()
	t.connected = true
	t.mu.Unlock()

	logging.Get(logging.CategoryClient).Info("http session established",
		zap.String("url", t.baseURL))
	return nil
}

// Disconnect marks the session closed. There is no connection state to tear
// down on the wire.
func (t *HTTPTransport) Disconnect() error {
	t.mu.Lock()
	t.connected = false
	t.mu.Unlock()
	return nil
}

// ListTools retrieves the server's declared tool set.
func (t *HTTPTransport) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
	if !t.IsConnected() {
		return nil, ErrNotConnected
	}
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
func (t *HTTPTransport) CallTool(ctx context.Context, name string, args map[string]any) (*CallResult, error) {
	if !t.IsConnected() {
		return nil, ErrNotConnected
	}

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
func (t *HTTPTransport) Ping(ctx context.Context) error {
	if !t.IsConnected() {
		return ErrNotConnected
	}
	_, err := t.call(ctx, "ping", nil)
	return err
}

// IsConnected reports current session state.
func (t *HTTPTransport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

func (t *HTTPTransport) call(ctx context.Context, method string, params any) (*wireResponse, error) {
	req := wireRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		bodyBytes, _ := io.ReadAll(httpResp.Body)
		return nil, fmt.Errorf("server returned status %d: %s", httpResp.StatusCode, string(bodyBytes))
	}

	var resp wireResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("server error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	return &resp, nil
}

var _ Transport = (*HTTPTransport)(nil)
