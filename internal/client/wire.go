package client

import "encoding/json"

// wireRequest is a JSON-RPC 2.0 request.
type wireRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// wireResponse is a JSON-RPC 2.0 response.
type wireResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *wireError      `json:"error,omitempty"`
}

// wireError is the error member of a response.
type wireError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// initializeParams builds the params of the initialize request.
func initializeParams() map[string]any {
	return map[string]any{
		"protocolVersion": "2024-11-05",
		"capabilities":    map[string]any{},
		"clientInfo": map[string]string{
			"name":    "signald-agent",
			"version": "1.0.0",
		},
	}
}

// ContentText extracts the concatenated text content of a tools/call
// result. The boolean is false when the result is marked isError or
// cannot be parsed.
func ContentText(result json.RawMessage) (string, bool) {
	var parsed struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	}
	if err := json.Unmarshal(result, &parsed); err != nil {
		return "", false
	}
	var text string
	for _, c := range parsed.Content {
		text += c.Text
	}
	return text, !parsed.IsError
}
