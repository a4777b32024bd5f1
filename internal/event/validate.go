package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ValidationError kinds.
const (
	KindMalformedJSON   = "malformed_json"
	KindSchemaViolation = "schema_violation"
)

// ValidationError reports why raw input was rejected before it reached the
// pipeline.
type ValidationError struct {
	Kind   string
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed (%s): %s: %s", e.Kind, e.Field, e.Detail)
	}
	return fmt.Sprintf("validation failed (%s): %s", e.Kind, e.Detail)
}

func schemaErr(field, detail string) *ValidationError {
	return &ValidationError{Kind: KindSchemaViolation, Field: field, Detail: detail}
}

// ValidateJSON parses raw bytes into a FailureEvent and validates it.
// Unknown top-level fields are rejected.
func ValidateJSON(raw []byte) (*FailureEvent, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var ev FailureEvent
	if err := dec.Decode(&ev); err != nil {
		// Wrong type for a declared field (details as a string, severity as a
		// number) is a schema problem; only unparseable input is malformed.
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, schemaErr(typeErr.Field, fmt.Sprintf("unexpected %s", typeErr.Value))
		}
		if strings.Contains(err.Error(), "unknown field") {
			return nil, schemaErr("", err.Error())
		}
		return nil, &ValidationError{Kind: KindMalformedJSON, Detail: err.Error()}
	}
	// A second JSON value after the event is malformed input, not a schema
	// problem.
	if dec.More() {
		return nil, &ValidationError{Kind: KindMalformedJSON, Detail: "trailing data after event object"}
	}
	if err := Validate(&ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// Validate normalizes and checks a decoded event in place. String fields are
// trimmed before bounds checks. Pure: no I/O, no side effects beyond the
// event itself.
func Validate(ev *FailureEvent) error {
	ev.EventID = strings.TrimSpace(ev.EventID)
	ev.Timestamp = strings.TrimSpace(ev.Timestamp)
	ev.Service = strings.TrimSpace(ev.Service)
	ev.Severity = strings.TrimSpace(ev.Severity)
	ev.Message = strings.TrimSpace(ev.Message)

	if ev.EventID == "" {
		return schemaErr("event_id", "required")
	}
	if utf8.RuneCountInString(ev.EventID) > MaxEventIDLen {
		return schemaErr("event_id", fmt.Sprintf("exceeds %d characters", MaxEventIDLen))
	}
	if ev.Timestamp == "" {
		return schemaErr("timestamp", "required")
	}
	if ev.Service == "" {
		return schemaErr("service", "required")
	}
	if utf8.RuneCountInString(ev.Service) > MaxServiceLen {
		return schemaErr("service", fmt.Sprintf("exceeds %d characters", MaxServiceLen))
	}
	switch ev.Severity {
	case SeverityCritical, SeverityWarning, SeverityInfo:
	default:
		return schemaErr("severity", fmt.Sprintf("must be one of critical, warning, info; got %q", ev.Severity))
	}
	if ev.Message == "" {
		return schemaErr("message", "required")
	}
	if utf8.RuneCountInString(ev.Message) > MaxMessageLen {
		return schemaErr("message", fmt.Sprintf("exceeds %d characters", MaxMessageLen))
	}
	if ev.Details == nil {
		ev.Details = map[string]any{}
	}
	return nil
}
