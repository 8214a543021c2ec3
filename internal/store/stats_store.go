package store

import (
	"context"
	"fmt"
)

// AuditStats holds aggregate counts over the audit trail.
type AuditStats struct {
	TotalRecords int            `json:"total_records"`
	Last24hCount int            `json:"last_24h_count"`
	ByService    map[string]int `json:"by_service"`
	ByEventType  map[string]int `json:"by_event_type"`
	OldestRecord *string        `json:"oldest_record,omitempty"`
	NewestRecord *string        `json:"newest_record,omitempty"`
}

// GetAuditStats computes aggregate statistics from the database.
func (s *PostgresStore) GetAuditStats(ctx context.Context) (*AuditStats, error) {
	stats := &AuditStats{
		ByService:   map[string]int{},
		ByEventType: map[string]int{},
	}

	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE created_at >= NOW() - INTERVAL '24 hours'),
			MIN(timestamp)::text,
			MAX(timestamp)::text
		FROM audit_records
	`).Scan(&stats.TotalRecords, &stats.Last24hCount, &stats.OldestRecord, &stats.NewestRecord)
	if err != nil {
		return nil, fmt.Errorf("querying audit totals: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT service, COUNT(*) FROM audit_records GROUP BY service
	`)
	if err != nil {
		return nil, fmt.Errorf("querying per-service counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var service string
		var count int
		if err := rows.Scan(&service, &count); err != nil {
			return nil, fmt.Errorf("scanning per-service count: %w", err)
		}
		stats.ByService[service] = count
	}

	rows, err = s.pool.Query(ctx, `
		SELECT event_type, COUNT(*) FROM audit_records GROUP BY event_type
	`)
	if err != nil {
		return nil, fmt.Errorf("querying per-event-type counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var eventType string
		var count int
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, fmt.Errorf("scanning per-event-type count: %w", err)
		}
		stats.ByEventType[eventType] = count
	}

	return stats, nil
}
