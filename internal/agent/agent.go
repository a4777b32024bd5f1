// Package agent implements the outbound caller of the signal server: it
// validates events locally, forwards them over a structured session, and
// displays analysis results. It also carries the scenario generator used
// for demos and load runs.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"signald/internal/classify"
	"signald/internal/client"
	"signald/internal/event"
	"signald/internal/logging"
	"signald/internal/tools"
)

// Agent forwards failure events to a signal server over a client transport.
type Agent struct {
	transport client.Transport
	connected bool
}

// New creates an Agent over the given transport.
func New(transport client.Transport) *Agent {
	return &Agent{transport: transport}
}

// Connect establishes the session and verifies server health before
// declaring the agent connected.
func (a *Agent) Connect(ctx context.Context) error {
	log := logging.Get(logging.CategoryAgent)

	if err := a.transport.Connect(ctx); err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}

	result, err := a.transport.CallTool(ctx, tools.ToolHealthCheck, map[string]any{})
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("%w: %s", client.ErrHandshake, result.Err)
	}

	health, err := decodeToolReply(result.Output)
	if err != nil {
		return fmt.Errorf("%w: %v", client.ErrHandshake, err)
	}
	if health["status"] != "healthy" {
		return fmt.Errorf("%w: server reported %v", client.ErrHandshake, health["status"])
	}

	a.connected = true
	log.Info("connected to signal server", zap.Any("transport", health["transport"]))
	return nil
}

// Close tears the session down.
func (a *Agent) Close() error {
	a.connected = false
	return a.transport.Disconnect()
}

// IsConnected reports whether the handshake and health check succeeded.
func (a *Agent) IsConnected() bool {
	return a.connected && a.transport.IsConnected()
}

// ProcessEvent validates an event locally, forwards it for classification,
// and returns the analysis.
func (a *Agent) ProcessEvent(ctx context.Context, ev *event.FailureEvent) (*event.AnalysisResult, error) {
	log := logging.Get(logging.CategoryAgent)

	if err := event.Validate(ev); err != nil {
		return nil, err
	}

	log.Info("forwarding event", zap.String("event_id", ev.EventID))

	result, err := a.transport.CallTool(ctx, tools.ToolClassifyFailureEvent, map[string]any{
		"event_id":  ev.EventID,
		"timestamp": ev.Timestamp,
		"service":   ev.Service,
		"severity":  ev.Severity,
		"message":   ev.Message,
		"details":   ev.Details,
	})
	if err != nil {
		return nil, fmt.Errorf("tool call failed: %w", err)
	}
	if !result.Success {
		return nil, fmt.Errorf("processing failed: %s", result.Err)
	}

	reply, err := decodeToolReply(result.Output)
	if err != nil {
		return nil, err
	}

	data, _ := json.Marshal(reply)
	var analysis event.AnalysisResult
	if err := json.Unmarshal(data, &analysis); err != nil {
		return nil, fmt.Errorf("failed to decode analysis: %w", err)
	}
	if analysis.Status != classify.StatusProcessed {
		return nil, fmt.Errorf("processing failed: status %q", analysis.Status)
	}

	log.Info("analysis received",
		zap.String("event_id", analysis.EventID),
		zap.String("classification", analysis.Classification),
		zap.String("calculated_severity", analysis.CalculatedSeverity))
	return &analysis, nil
}

// RunDemo generates count events and drives each through the server,
// pausing delay between sends. Returns the number processed successfully.
func (a *Agent) RunDemo(ctx context.Context, gen *Generator, count int, delay time.Duration) (int, error) {
	log := logging.Get(logging.CategoryAgent)

	if !a.IsConnected() {
		if err := a.Connect(ctx); err != nil {
			return 0, err
		}
	}

	processed := 0
	for i := 0; i < count; i++ {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}

		ev := gen.Generate()
		analysis, err := a.ProcessEvent(ctx, ev)
		if err != nil {
			log.Warn("event rejected", zap.String("event_id", ev.EventID), zap.Error(err))
		} else {
			processed++
			fmt.Println(analysis.HumanReadable)
			fmt.Println()
		}

		if i < count-1 && delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return processed, ctx.Err()
			}
		}
	}

	log.Info("demo complete", zap.Int("processed", processed), zap.Int("total", count))
	return processed, nil
}

// decodeToolReply unwraps the text content of a tools/call result into the
// reply map the tool produced.
func decodeToolReply(output json.RawMessage) (map[string]any, error) {
	text, ok := client.ContentText(output)
	if text == "" {
		return nil, client.ErrEmptyResponse
	}
	if !ok {
		return nil, fmt.Errorf("tool reported error: %s", text)
	}

	var reply map[string]any
	if err := json.Unmarshal([]byte(text), &reply); err != nil {
		return nil, fmt.Errorf("failed to decode reply: %w", err)
	}
	return reply, nil
}
