// Package event defines the failure event data model and the input
// validator that guards the processing pipeline.
package event

import "time"

// Severity levels a producer may assert on an event.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Field length bounds enforced by Validate, counted in characters.
const (
	MaxEventIDLen = 100
	MaxServiceLen = 200
	MaxMessageLen = 1000
)

// FailureEvent is a structured failure report from an external producer.
// Immutable once validated.
type FailureEvent struct {
	EventID   string         `json:"event_id"`
	Timestamp string         `json:"timestamp"`
	Service   string         `json:"service"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
}

// AnalysisResult is the derived classification of a FailureEvent. It is a
// pure function of the event and never mutates it.
type AnalysisResult struct {
	EventID            string `json:"event_id"`
	OriginalSeverity   string `json:"original_severity"`
	CalculatedSeverity string `json:"calculated_severity"`
	Classification     string `json:"classification"`
	Recommendation     string `json:"recommendation"`
	ProcessedAt        string `json:"processed_at"`
	HumanReadable      string `json:"human_readable"`
	Status             string `json:"status"`
}

// StoredEvent is one persisted row: the raw event, its analysis, and the
// store-owned surrogate id and created_at.
type StoredEvent struct {
	ID                 int64          `json:"id"`
	EventID            string         `json:"event_id"`
	Timestamp          string         `json:"timestamp"`
	Service            string         `json:"service"`
	Severity           string         `json:"severity"`
	Message            string         `json:"message"`
	Details            map[string]any `json:"details,omitempty"`
	Classification     string         `json:"classification"`
	CalculatedSeverity string         `json:"calculated_severity"`
	Recommendation     string         `json:"recommendation"`
	ProcessedAt        string         `json:"processed_at"`
	CreatedAt          time.Time      `json:"created_at"`
}
