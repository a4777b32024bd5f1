// Package gateway exposes the tool registry over two structured bindings
// (a single-session stdio channel and a streamable HTTP endpoint) plus a
// plain HTTP push endpoint for producers that do not speak the protocol.
package gateway

import "encoding/json"

// protocolVersion is the protocol revision answered on initialize.
const protocolVersion = "2024-11-05"

// JSON-RPC 2.0 error codes used by both bindings.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeNotInitialized = -32002
	codeInternalError  = -32000
)

// rpcRequest is a JSON-RPC 2.0 request or notification (nil ID).
type rpcRequest struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Method  string           `json:"method"`
	Params  json.RawMessage  `json:"params,omitempty"`
}

// rpcResponse is a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   *rpcError        `json:"error,omitempty"`
}

// rpcError is the error member of a response.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// isNotification reports whether the request carries no id and therefore
// expects no reply.
func (r *rpcRequest) isNotification() bool {
	return r.ID == nil
}

// callParams are the params of a tools/call request.
type callParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// textContent is one entry of a tools/call result content array.
type textContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// callResult is the result of a tools/call request.
type callResult struct {
	Content []textContent `json:"content"`
	IsError bool          `json:"isError"`
}

// initializeResult is the result of an initialize request.
type initializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      serverInfo     `json:"serverInfo"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

func newResponse(id *json.RawMessage, result any) (*rpcResponse, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return &rpcResponse{JSONRPC: "2.0", ID: id, Result: data}, nil
}

func newErrorResponse(id *json.RawMessage, code int, message string, data any) *rpcResponse {
	return &rpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: code, Message: message, Data: data},
	}
}
