// Package store provides SQLite-backed persistence for failure events and
// their analysis results, with time-windowed and aggregate queries.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"signald/internal/event"
	"signald/internal/logging"

	_ "modernc.org/sqlite"
)

// EventStore stores one row per event_id. A second Store call with the same
// event_id replaces the row in full; created_at and the surrogate row id are
// the only store-owned fields.
type EventStore struct {
	mu sync.RWMutex

	db      *sql.DB
	dbPath  string
	lastErr error
}

// Summary holds aggregate counts over stored events.
type Summary struct {
	TotalEvents      int            `json:"total_events"`
	CriticalCount    int            `json:"critical_count"`
	WarningCount     int            `json:"warning_count"`
	InfoCount        int            `json:"info_count"`
	AffectedServices int            `json:"affected_services"`
	TopServices      []ServiceCount `json:"top_services"`
}

// ServiceCount is one entry of Summary.TopServices.
type ServiceCount struct {
	Service    string `json:"service"`
	EventCount int    `json:"event_count"`
}

// Open opens (or creates) the event database at dbPath.
func Open(dbPath string) (*EventStore, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &EventStore{db: db, dbPath: dbPath}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// initialize creates the schema.
func (s *EventStore) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id TEXT UNIQUE NOT NULL,
			timestamp TEXT NOT NULL,
			service TEXT NOT NULL,
			severity TEXT NOT NULL,
			message TEXT NOT NULL,
			details TEXT,
			classification TEXT,
			calculated_severity TEXT,
			recommendation TEXT,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			processed_at TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create events table: %w", err)
	}

	_, _ = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp)`)
	_, _ = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_events_service ON events(service)`)
	_, _ = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_events_severity ON events(calculated_severity)`)
	_, _ = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_events_created_at ON events(created_at)`)

	logging.Get(logging.CategoryStore).Info("event store initialized", zap.String("path", s.dbPath))
	return nil
}

// Close closes the database connection.
func (s *EventStore) Close() error {
	return s.db.Close()
}

// Store upserts an event and its analysis result by event_id. It reports
// success; storage failures are logged and remembered but never raised, so
// the pipeline can keep answering callers when persistence degrades.
func (s *EventStore) Store(ctx context.Context, ev *event.FailureEvent, result *event.AnalysisResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	detailsJSON, err := json.Marshal(ev.Details)
	if err != nil {
		detailsJSON = []byte("{}")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (
			event_id, timestamp, service, severity, message, details,
			classification, calculated_severity, recommendation, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(event_id) DO UPDATE SET
			timestamp = excluded.timestamp,
			service = excluded.service,
			severity = excluded.severity,
			message = excluded.message,
			details = excluded.details,
			classification = excluded.classification,
			calculated_severity = excluded.calculated_severity,
			recommendation = excluded.recommendation,
			processed_at = excluded.processed_at
	`,
		ev.EventID, ev.Timestamp, ev.Service, ev.Severity, ev.Message, string(detailsJSON),
		result.Classification, result.CalculatedSeverity, result.Recommendation, result.ProcessedAt,
	)
	if err != nil {
		s.lastErr = err
		logging.Get(logging.CategoryStore).Error("failed to store event",
			zap.String("event_id", ev.EventID), zap.Error(err))
		return false
	}

	s.lastErr = nil
	logging.Get(logging.CategoryStore).Debug("stored event", zap.String("event_id", ev.EventID))
	return true
}

// LastError returns the most recent storage failure, or nil after a
// successful write.
func (s *EventStore) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

const selectColumns = `
	SELECT id, event_id, timestamp, service, severity, message, details,
		classification, calculated_severity, recommendation, processed_at, created_at
	FROM events`

// QueryRecent returns events whose timestamp falls within the window
// measured back from query time, newest first.
func (s *EventStore) QueryRecent(ctx context.Context, window time.Duration) ([]event.StoredEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Second granularity keeps sub-hour windows meaningful.
	rows, err := s.db.QueryContext(ctx, selectColumns+`
		WHERE datetime(timestamp) >= datetime('now', ?)
		ORDER BY timestamp DESC
	`, fmt.Sprintf("-%d seconds", int(window.Seconds())))
	if err != nil {
		return nil, fmt.Errorf("recent query failed: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// QueryByService returns events for an exact service match within the last
// `days` days measured from query time, newest first.
func (s *EventStore) QueryByService(ctx context.Context, service string, days int) ([]event.StoredEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, selectColumns+`
		WHERE service = ? AND datetime(timestamp) >= datetime('now', ?)
		ORDER BY timestamp DESC
	`, service, fmt.Sprintf("-%d hours", days*24))
	if err != nil {
		return nil, fmt.Errorf("service query failed: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// SummaryStats returns aggregate counts grouped by calculated severity.
// The days parameter is carried as a reporting label by the callers but does
// not filter the aggregates: counts cover the whole table. TopServices lists
// up to five services by event count descending; tie order between equal
// counts is whatever the scan produces and is not guaranteed stable.
func (s *EventStore) SummaryStats(ctx context.Context, days int) (*Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum Summary
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COUNT(CASE WHEN calculated_severity = 'critical' THEN 1 END),
			COUNT(CASE WHEN calculated_severity = 'warning' THEN 1 END),
			COUNT(CASE WHEN calculated_severity = 'info' THEN 1 END),
			COUNT(DISTINCT service)
		FROM events
	`).Scan(&sum.TotalEvents, &sum.CriticalCount, &sum.WarningCount, &sum.InfoCount, &sum.AffectedServices)
	if err != nil {
		return nil, fmt.Errorf("stats query failed: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT service, COUNT(*) as event_count
		FROM events
		GROUP BY service
		ORDER BY event_count DESC
		LIMIT 5
	`)
	if err != nil {
		return nil, fmt.Errorf("top services query failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sc ServiceCount
		if err := rows.Scan(&sc.Service, &sc.EventCount); err != nil {
			return nil, err
		}
		sum.TopServices = append(sum.TopServices, sc)
	}
	return &sum, rows.Err()
}

func scanEvents(rows *sql.Rows) ([]event.StoredEvent, error) {
	var events []event.StoredEvent
	for rows.Next() {
		var ev event.StoredEvent
		var details, classification, calculated, recommendation, processedAt sql.NullString
		var createdAt sql.NullString

		if err := rows.Scan(
			&ev.ID, &ev.EventID, &ev.Timestamp, &ev.Service, &ev.Severity, &ev.Message,
			&details, &classification, &calculated, &recommendation, &processedAt, &createdAt,
		); err != nil {
			return nil, err
		}

		if details.Valid && details.String != "" {
			_ = json.Unmarshal([]byte(details.String), &ev.Details)
		}
		ev.Classification = classification.String
		ev.CalculatedSeverity = calculated.String
		ev.Recommendation = recommendation.String
		ev.ProcessedAt = processedAt.String
		if createdAt.Valid {
			if t, err := time.Parse("2006-01-02 15:04:05", createdAt.String); err == nil {
				ev.CreatedAt = t
			}
		}

		events = append(events, ev)
	}
	return events, rows.Err()
}
