// Package client implements the outbound side of the structured call
// protocol: a duplex stdio transport that owns a server subprocess and a
// streaming HTTP transport for network servers.
package client

import (
	"context"
	"encoding/json"
	"errors"
)

// Protocol selects the wire mechanism a transport speaks.
type Protocol string

const (
	ProtocolStdio Protocol = "stdio"
	ProtocolHTTP  Protocol = "http"
)

var (
	// ErrNotConnected is returned when a call is made before Connect.
	ErrNotConnected = errors.New("not connected to signal server")
	// ErrHandshake is returned when the initialize exchange fails.
	ErrHandshake = errors.New("handshake failed")
	// ErrEmptyResponse is returned when a call succeeds at the protocol
	// level but carries no content.
	ErrEmptyResponse = errors.New("empty response from server")
)

// CallResult is the decoded outcome of a tool call.
type CallResult struct {
	Success   bool
	Output    json.RawMessage
	Err       string
	LatencyMs int64
}

// ToolDescriptor mirrors one entry of a tools/list reply.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// Transport is a protocol binding to a signal server. Implementations are
// safe for use by a single caller; the duplex channel is point-to-point by
// nature.
type Transport interface {
	// Connect establishes the session and performs the initialize
	// handshake.
	Connect(ctx context.Context) error

	// Disconnect tears the session down.
	Disconnect() error

	// ListTools retrieves the server's declared tool set.
	ListTools(ctx context.Context) ([]ToolDescriptor, error)

	// CallTool invokes a named tool with an argument map.
	CallTool(ctx context.Context, name string, args map[string]any) (*CallResult, error)

	// Ping checks that the server is responsive.
	Ping(ctx context.Context) error

	// IsConnected reports current session state.
	IsConnected() bool
}
