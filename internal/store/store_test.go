package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"signald/internal/event"
)

func openTestStore(t *testing.T) *EventStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func makeEvent(id, service, message string, age time.Duration) *event.FailureEvent {
	return &event.FailureEvent{
		EventID:   id,
		Timestamp: time.Now().UTC().Add(-age).Format(time.RFC3339),
		Service:   service,
		Severity:  "critical",
		Message:   message,
		Details:   map[string]any{"source": "test"},
	}
}

func makeResult(ev *event.FailureEvent, classification, severity string) *event.AnalysisResult {
	return &event.AnalysisResult{
		EventID:            ev.EventID,
		OriginalSeverity:   ev.Severity,
		CalculatedSeverity: severity,
		Classification:     classification,
		Recommendation:     "Immediate attention required - escalate to on-call engineer",
		ProcessedAt:        ev.Timestamp,
		Status:             "processed",
	}
}

func TestStoreAndQueryRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ev := makeEvent("evt_001", "user-db", "Connection pool exhausted", 0)
	if ok := s.Store(ctx, ev, makeResult(ev, "database_issue", "critical")); !ok {
		t.Fatalf("Store failed: %v", s.LastError())
	}

	events, err := s.QueryRecent(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("QueryRecent failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	got := events[0]
	if got.EventID != "evt_001" {
		t.Errorf("event_id = %q, want evt_001", got.EventID)
	}
	if got.Classification != "database_issue" {
		t.Errorf("classification = %q, want database_issue", got.Classification)
	}
	if got.CalculatedSeverity != "critical" {
		t.Errorf("calculated_severity = %q, want critical", got.CalculatedSeverity)
	}
	if got.Details["source"] != "test" {
		t.Errorf("details not round-tripped: %v", got.Details)
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at not populated")
	}
}

func TestStoreUpsertReplacesRow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ev := makeEvent("evt_dup", "user-db", "first attempt", 0)
	if !s.Store(ctx, ev, makeResult(ev, "general_failure", "critical")) {
		t.Fatalf("first Store failed: %v", s.LastError())
	}

	ev2 := makeEvent("evt_dup", "order-api", "network unreachable", 0)
	if !s.Store(ctx, ev2, makeResult(ev2, "network_issue", "warning")) {
		t.Fatalf("second Store failed: %v", s.LastError())
	}

	events, err := s.QueryRecent(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("QueryRecent failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("upsert should keep one row per event_id, got %d", len(events))
	}
	got := events[0]
	if got.Service != "order-api" || got.Message != "network unreachable" {
		t.Errorf("row not replaced: service=%q message=%q", got.Service, got.Message)
	}
	if got.Classification != "network_issue" || got.CalculatedSeverity != "warning" {
		t.Errorf("analysis not replaced: %q / %q", got.Classification, got.CalculatedSeverity)
	}
}

func TestQueryRecentWindowExcludesOldEvents(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	fresh := makeEvent("evt_fresh", "user-db", "fresh", 1*time.Hour)
	stale := makeEvent("evt_stale", "user-db", "stale", 48*time.Hour)
	s.Store(ctx, fresh, makeResult(fresh, "general_failure", "critical"))
	s.Store(ctx, stale, makeResult(stale, "general_failure", "critical"))

	events, err := s.QueryRecent(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("QueryRecent failed: %v", err)
	}
	if len(events) != 1 || events[0].EventID != "evt_fresh" {
		t.Fatalf("expected only evt_fresh inside the window, got %+v", events)
	}
}

func TestQueryRecentSubHourWindow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	recent := makeEvent("evt_minute_old", "user-db", "recent", 1*time.Minute)
	outside := makeEvent("evt_hour_old", "user-db", "outside", 1*time.Hour)
	s.Store(ctx, recent, makeResult(recent, "general_failure", "critical"))
	s.Store(ctx, outside, makeResult(outside, "general_failure", "critical"))

	events, err := s.QueryRecent(ctx, 30*time.Minute)
	if err != nil {
		t.Fatalf("QueryRecent failed: %v", err)
	}
	if len(events) != 1 || events[0].EventID != "evt_minute_old" {
		t.Fatalf("30m window should hold only the minute-old event, got %+v", events)
	}
}

func TestQueryRecentOrdersNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	older := makeEvent("evt_older", "user-db", "older", 2*time.Hour)
	newer := makeEvent("evt_newer", "user-db", "newer", 10*time.Minute)
	s.Store(ctx, older, makeResult(older, "general_failure", "critical"))
	s.Store(ctx, newer, makeResult(newer, "general_failure", "critical"))

	events, err := s.QueryRecent(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("QueryRecent failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].EventID != "evt_newer" || events[1].EventID != "evt_older" {
		t.Errorf("wrong order: %s, %s", events[0].EventID, events[1].EventID)
	}
}

func TestQueryByService(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := makeEvent("evt_a", "user-db", "a", 1*time.Hour)
	b := makeEvent("evt_b", "order-api", "b", 1*time.Hour)
	old := makeEvent("evt_old", "user-db", "old", 10*24*time.Hour)
	s.Store(ctx, a, makeResult(a, "general_failure", "critical"))
	s.Store(ctx, b, makeResult(b, "general_failure", "critical"))
	s.Store(ctx, old, makeResult(old, "general_failure", "critical"))

	events, err := s.QueryByService(ctx, "user-db", 7)
	if err != nil {
		t.Fatalf("QueryByService failed: %v", err)
	}
	if len(events) != 1 || events[0].EventID != "evt_a" {
		t.Fatalf("expected only evt_a for user-db within 7 days, got %+v", events)
	}

	none, err := s.QueryByService(ctx, "no-such-service", 7)
	if err != nil {
		t.Fatalf("QueryByService failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no events, got %d", len(none))
	}
}

func TestSummaryStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	severities := []string{"critical", "critical", "warning", "info"}
	services := []string{"user-db", "user-db", "order-api", "cache-redis"}
	for i, sev := range severities {
		ev := makeEvent("evt_"+sev+string(rune('a'+i)), services[i], "msg", 1*time.Hour)
		s.Store(ctx, ev, makeResult(ev, "general_failure", sev))
	}

	sum, err := s.SummaryStats(ctx, 1)
	if err != nil {
		t.Fatalf("SummaryStats failed: %v", err)
	}
	if sum.TotalEvents != 4 {
		t.Errorf("total = %d, want 4", sum.TotalEvents)
	}
	if sum.CriticalCount != 2 || sum.WarningCount != 1 || sum.InfoCount != 1 {
		t.Errorf("severity counts = %d/%d/%d, want 2/1/1",
			sum.CriticalCount, sum.WarningCount, sum.InfoCount)
	}
	if sum.AffectedServices != 3 {
		t.Errorf("affected services = %d, want 3", sum.AffectedServices)
	}
	if len(sum.TopServices) != 3 {
		t.Fatalf("top services = %d entries, want 3", len(sum.TopServices))
	}
	if sum.TopServices[0].Service != "user-db" || sum.TopServices[0].EventCount != 2 {
		t.Errorf("top service = %+v, want user-db with 2", sum.TopServices[0])
	}
}

func TestSummaryStatsIgnoresWindow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	old := makeEvent("evt_ancient", "user-db", "old", 90*24*time.Hour)
	s.Store(ctx, old, makeResult(old, "general_failure", "critical"))

	// Aggregates cover the whole table; the days argument only labels the
	// report.
	sum, err := s.SummaryStats(ctx, 1)
	if err != nil {
		t.Fatalf("SummaryStats failed: %v", err)
	}
	if sum.TotalEvents != 1 {
		t.Errorf("total = %d, want 1 (window must not filter)", sum.TotalEvents)
	}
}

func TestStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	ev := makeEvent("evt_persist", "user-db", "persisted", 0)
	s.Store(ctx, ev, makeResult(ev, "database_issue", "critical"))
	s.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()

	events, err := s2.QueryRecent(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("QueryRecent failed: %v", err)
	}
	if len(events) != 1 || events[0].EventID != "evt_persist" {
		t.Fatalf("event did not survive reopen: %+v", events)
	}
}
