// Package classify implements deterministic severity and category
// assignment for failure events, with a fixed recommendation per severity.
package classify

import (
	"fmt"
	"strings"

	"signald/internal/event"
)

// Classification categories. GeneralFailure is the no-match default.
const (
	CategoryDatabase = "database_issue"
	CategoryNetwork  = "network_issue"
	CategoryResource = "resource_issue"
	CategorySecurity = "security_issue"
	CategoryService  = "service_issue"
	GeneralFailure   = "general_failure"
)

// StatusProcessed marks a successfully analyzed event.
const StatusProcessed = "processed"

// bucket is one ordered keyword bucket. Order matters: earlier buckets win
// ties, so the lists below are slices, not maps.
type bucket struct {
	label    string
	keywords []string
}

// severityBuckets are evaluated critical first. Message content can escalate
// or de-escalate the producer-asserted severity.
var severityBuckets = []bucket{
	{event.SeverityCritical, []string{"crash", "down", "failed", "error", "exception", "unavailable", "exhausted"}},
	{event.SeverityWarning, []string{"slow", "timeout", "retry", "degraded", "high", "elevated"}},
	{event.SeverityInfo, []string{"started", "stopped", "completed", "normal", "success"}},
}

var categoryBuckets = []bucket{
	{CategoryDatabase, []string{"database", "db", "sql", "connection pool", "query", "deadlock"}},
	{CategoryNetwork, []string{"network", "connection", "timeout", "unreachable", "circuit breaker"}},
	{CategoryResource, []string{"memory", "cpu", "disk", "storage", "capacity", "limit"}},
	{CategorySecurity, []string{"auth", "permission", "unauthorized", "access denied", "suspicious"}},
	{CategoryService, []string{"service", "api", "endpoint", "unavailable", "degradation"}},
}

var recommendations = map[string]string{
	event.SeverityCritical: "Immediate attention required - escalate to on-call engineer",
	event.SeverityWarning:  "Monitor closely - investigate if pattern emerges",
	event.SeverityInfo:     "Log for analysis - no immediate action required",
}

const fallbackRecommendation = "Review and assess - unknown severity level"

// Analyze classifies a validated event. Deterministic, stateless, no I/O;
// cannot fail given a validated event.
func Analyze(ev *event.FailureEvent) event.AnalysisResult {
	messageLower := strings.ToLower(ev.Message)

	calculated := analyzeSeverity(messageLower, ev.Severity)
	classification := classifyType(messageLower)

	recommendation, ok := recommendations[calculated]
	if !ok {
		recommendation = fallbackRecommendation
	}

	return event.AnalysisResult{
		EventID:            ev.EventID,
		OriginalSeverity:   ev.Severity,
		CalculatedSeverity: calculated,
		Classification:     classification,
		Recommendation:     recommendation,
		ProcessedAt:        ev.Timestamp,
		HumanReadable:      formatSummary(ev, classification, recommendation),
		Status:             StatusProcessed,
	}
}

func analyzeSeverity(messageLower, originalSeverity string) string {
	for _, b := range severityBuckets {
		if matchesAny(messageLower, b.keywords) {
			return b.label
		}
	}
	return strings.ToLower(originalSeverity)
}

func classifyType(messageLower string) string {
	for _, b := range categoryBuckets {
		if matchesAny(messageLower, b.keywords) {
			return b.label
		}
	}
	return GeneralFailure
}

func matchesAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// formatSummary renders the human-readable alert block. No localization, no
// truncation.
func formatSummary(ev *event.FailureEvent, classification, recommendation string) string {
	return fmt.Sprintf(`🚨 Signal Alert: %s
Service: %s
Type: %s
Message: %s
Action: %s
Time: %s`,
		ev.EventID, ev.Service, titleCategory(classification), ev.Message, recommendation, ev.Timestamp)
}

// titleCategory turns "database_issue" into "Database Issue".
func titleCategory(category string) string {
	words := strings.Split(category, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
