package gateway

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"signald/internal/event"
	"signald/internal/logging"
	"signald/internal/tools"
)

// Version reported in the initialize handshake.
const Version = "1.0.0"

// Core handles protocol methods independently of the binding that carried
// them. Both bindings delegate here so tool semantics cannot drift between
// transports.
type Core struct {
	registry *tools.Registry

	// requireInit enforces the one-time handshake before tool calls. The
	// stdio binding sets it; the streamable HTTP binding is stateless, so
	// each exchange stands alone.
	requireInit bool
}

// NewCore creates a Core over the given registry.
func NewCore(registry *tools.Registry, requireInit bool) *Core {
	return &Core{registry: registry, requireInit: requireInit}
}

// session tracks per-connection handshake state.
type session struct {
	initialized bool
}

// handle processes one decoded request and returns the response to send,
// or nil for notifications.
func (c *Core) handle(ctx context.Context, sess *session, req *rpcRequest) *rpcResponse {
	switch req.Method {
	case "initialize":
		sess.initialized = true
		resp, err := newResponse(req.ID, initializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities:    map[string]any{"tools": map[string]any{}},
			ServerInfo:      serverInfo{Name: tools.ServiceName, Version: Version},
		})
		if err != nil {
			return newErrorResponse(req.ID, codeInternalError, err.Error(), nil)
		}
		return resp

	case "notifications/initialized":
		// Acknowledgment notification, nothing to send back.
		return nil

	case "ping":
		resp, _ := newResponse(req.ID, map[string]any{})
		return resp

	case "tools/list":
		if r := c.checkHandshake(sess, req); r != nil {
			return r
		}
		resp, err := newResponse(req.ID, map[string]any{"tools": c.registry.Descriptors()})
		if err != nil {
			return newErrorResponse(req.ID, codeInternalError, err.Error(), nil)
		}
		return resp

	case "tools/call":
		if r := c.checkHandshake(sess, req); r != nil {
			return r
		}
		return c.callTool(ctx, req)

	default:
		if req.isNotification() {
			logging.Get(logging.CategoryTransport).Debug("ignoring notification",
				zap.String("method", req.Method))
			return nil
		}
		return newErrorResponse(req.ID, codeMethodNotFound, "method not found: "+req.Method, nil)
	}
}

func (c *Core) checkHandshake(sess *session, req *rpcRequest) *rpcResponse {
	if c.requireInit && !sess.initialized {
		return newErrorResponse(req.ID, codeNotInitialized, "initialize must precede tool calls", nil)
	}
	return nil
}

// callTool dispatches a tools/call request and maps errors onto the wire
// taxonomy: unknown tool and bad parameters abort the call with a typed
// error; storage degradation never surfaces here.
func (c *Core) callTool(ctx context.Context, req *rpcRequest) *rpcResponse {
	var params callParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return newErrorResponse(req.ID, codeInvalidParams, "invalid tools/call params: "+err.Error(), nil)
	}
	if params.Arguments == nil {
		params.Arguments = map[string]any{}
	}

	result, err := c.registry.Call(ctx, params.Name, params.Arguments)
	if err != nil {
		return newErrorResponse(req.ID, errorCode(err), err.Error(), errorData(err))
	}

	text, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return newErrorResponse(req.ID, codeInternalError, err.Error(), nil)
	}
	resp, err := newResponse(req.ID, callResult{
		Content: []textContent{{Type: "text", Text: string(text)}},
	})
	if err != nil {
		return newErrorResponse(req.ID, codeInternalError, err.Error(), nil)
	}
	return resp
}

func errorCode(err error) int {
	var vErr *event.ValidationError
	switch {
	case errors.Is(err, tools.ErrUnknownTool):
		return codeMethodNotFound
	case errors.Is(err, tools.ErrMissingParameter), errors.As(err, &vErr):
		return codeInvalidParams
	default:
		return codeInternalError
	}
}

func errorData(err error) any {
	var vErr *event.ValidationError
	if errors.As(err, &vErr) {
		return map[string]string{"kind": vErr.Kind, "field": vErr.Field}
	}
	return nil
}
