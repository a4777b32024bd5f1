// Package tools defines the closed set of operations signald exposes and
// dispatches calls to the validation, classification, and storage layers.
// Both transport bindings delegate here, so classification semantics stay
// identical regardless of how a call arrived.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"signald/internal/classify"
	"signald/internal/event"
	"signald/internal/logging"
	"signald/internal/store"
)

// Tool names. The set is closed: dispatch is a switch over these constants,
// not a lookup into registered handlers.
const (
	ToolClassifyFailureEvent = "classify_failure_event"
	ToolHealthCheck          = "health_check"
	ToolQueryEventsToday     = "query_events_today"
	ToolQueryEventsSummary   = "query_events_summary"
	ToolQueryEventsByService = "query_events_by_service"
)

// ServiceName identifies this process in health and summary replies.
const ServiceName = "signald"

var (
	// ErrUnknownTool is returned for names outside the declared set.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrMissingParameter is returned when a required argument is absent.
	ErrMissingParameter = errors.New("missing required parameter")
)

// Registry wires the tool set to its dependencies. The store handle is the
// only shared mutable state.
type Registry struct {
	store     *store.EventStore
	transport string // reported by health_check
}

// New creates a Registry. transport names the binding the registry serves
// ("stdio", "http", "push").
func New(st *store.EventStore, transport string) *Registry {
	return &Registry{store: st, transport: transport}
}

// Descriptor describes one tool for session discovery.
type Descriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// Descriptors returns the declared tool set.
func (r *Registry) Descriptors() []Descriptor {
	return []Descriptor{
		{
			Name:        ToolClassifyFailureEvent,
			Description: "Analyze and classify failure events with intelligent recommendations",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"event_id": {"type": "string", "minLength": 1, "maxLength": 100},
					"timestamp": {"type": "string", "description": "ISO 8601 formatted timestamp"},
					"service": {"type": "string", "minLength": 1, "maxLength": 200},
					"severity": {"type": "string", "enum": ["critical", "warning", "info"]},
					"message": {"type": "string", "minLength": 1, "maxLength": 1000},
					"details": {"type": "object"}
				},
				"required": ["event_id", "timestamp", "service", "severity", "message"]
			}`),
		},
		{
			Name:        ToolHealthCheck,
			Description: "Server health and status verification",
			InputSchema: json.RawMessage(`{"type": "object", "properties": {}}`),
		},
		{
			Name:        ToolQueryEventsToday,
			Description: "Events processed in the last 24 hours with a summary",
			InputSchema: json.RawMessage(`{"type": "object", "properties": {}}`),
		},
		{
			Name:        ToolQueryEventsSummary,
			Description: "Aggregate event statistics",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {"days": {"type": "integer", "default": 1}}
			}`),
		},
		{
			Name:        ToolQueryEventsByService,
			Description: "Recent events for a specific service",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"service": {"type": "string"},
					"days": {"type": "integer", "default": 7}
				},
				"required": ["service"]
			}`),
		},
	}
}

// Call dispatches a named tool with an argument map and returns a
// JSON-serializable reply map.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	switch name {
	case ToolClassifyFailureEvent:
		return r.classifyFailureEvent(ctx, args)
	case ToolHealthCheck:
		return r.healthCheck(), nil
	case ToolQueryEventsToday:
		return r.queryEventsToday(ctx)
	case ToolQueryEventsSummary:
		return r.queryEventsSummary(ctx, args)
	case ToolQueryEventsByService:
		return r.queryEventsByService(ctx, args)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
}

// classifyFailureEvent runs the full pipeline: normalize the argument shape,
// validate, analyze, then store best-effort. A storage failure is logged and
// swallowed: the caller still receives the classification.
func (r *Registry) classifyFailureEvent(ctx context.Context, args map[string]any) (map[string]any, error) {
	canonical, err := normalizeEventArgs(args)
	if err != nil {
		return nil, err
	}

	ev, err := event.ValidateJSON(canonical)
	if err != nil {
		return nil, err
	}

	log := logging.Get(logging.CategoryTools)
	log.Info("processing event", zap.String("event_id", ev.EventID), zap.String("service", ev.Service))

	result := classify.Analyze(ev)

	if !r.store.Store(ctx, ev, &result) {
		log.Warn("persistence degraded, returning analysis anyway", zap.String("event_id", ev.EventID))
	}

	log.Info("analysis complete",
		zap.String("event_id", ev.EventID),
		zap.String("classification", result.Classification),
		zap.String("calculated_severity", result.CalculatedSeverity))

	return toMap(result)
}

func (r *Registry) healthCheck() map[string]any {
	return map[string]any{
		"status":    "healthy",
		"service":   ServiceName,
		"message":   "Signal server operational",
		"transport": r.transport,
	}
}

func (r *Registry) queryEventsToday(ctx context.Context) (map[string]any, error) {
	events, err := r.store.QueryRecent(ctx, 24*time.Hour)
	if err != nil {
		return nil, err
	}
	summary, err := r.store.SummaryStats(ctx, 1)
	if err != nil {
		return nil, err
	}

	shown := events
	if len(shown) > 10 {
		shown = shown[:10]
	}
	return map[string]any{
		"events_today": len(events),
		"summary":      summary,
		"events":       shown,
		"showing":      fmt.Sprintf("%d of %d events", len(shown), len(events)),
	}, nil
}

func (r *Registry) queryEventsSummary(ctx context.Context, args map[string]any) (map[string]any, error) {
	days := intArg(args, "days", 1)
	summary, err := r.store.SummaryStats(ctx, days)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"period":  fmt.Sprintf("%d days", days),
		"summary": summary,
	}, nil
}

func (r *Registry) queryEventsByService(ctx context.Context, args map[string]any) (map[string]any, error) {
	service, _ := args["service"].(string)
	if service == "" {
		return nil, fmt.Errorf("%w: service", ErrMissingParameter)
	}
	days := intArg(args, "days", 7)

	events, err := r.store.QueryByService(ctx, service, days)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"service":     service,
		"period":      fmt.Sprintf("%d days", days),
		"event_count": len(events),
		"events":      events,
	}, nil
}

// normalizeEventArgs folds the two accepted argument encodings into one
// canonical JSON document. Legacy callers pass a single JSON-encoded string
// under "event_data"; current callers pass individually named parameters.
// This is the only place that knows about the legacy shape.
func normalizeEventArgs(args map[string]any) ([]byte, error) {
	if raw, ok := args["event_data"]; ok {
		s, ok := raw.(string)
		if !ok {
			return nil, &event.ValidationError{
				Kind:   event.KindSchemaViolation,
				Field:  "event_data",
				Detail: "must be a JSON-encoded string",
			}
		}
		return []byte(s), nil
	}
	return json.Marshal(args)
}

// intArg reads an integer argument that may arrive as float64 (JSON), int,
// or be absent.
func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

// toMap round-trips a struct through JSON so every tool returns the same
// map shape regardless of binding.
func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
