package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/factumarket/audit-trail/internal/domain"
)

// ErrValidation marks an insert rejected before reaching the database.
var ErrValidation = errors.New("validation error")

// MaxQueryResults caps every list query. Callers cannot raise it.
const MaxQueryResults = 100

const auditColumns = `id, event_type, service, entity_type, entity_id, timestamp, http_method, endpoint, metadata, created_at`

// InsertAuditRecord appends a new immutable record and returns it with the
// store-assigned id and created_at. There is no update or delete counterpart.
func (s *PostgresStore) InsertAuditRecord(ctx context.Context, rec *domain.AuditRecord) (*domain.AuditRecord, error) {
	if rec.EventType == "" {
		return nil, fmt.Errorf("%w: event_type is required", ErrValidation)
	}
	if rec.Service == "" {
		return nil, fmt.Errorf("%w: service is required", ErrValidation)
	}
	if rec.Timestamp.IsZero() {
		return nil, fmt.Errorf("%w: timestamp is required", ErrValidation)
	}

	var inserted domain.AuditRecord
	err := s.pool.QueryRow(ctx, `
		INSERT INTO audit_records (event_type, service, entity_type, entity_id, timestamp, http_method, endpoint, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+auditColumns,
		rec.EventType, rec.Service, rec.EntityType, rec.EntityID,
		rec.Timestamp, rec.HTTPMethod, rec.Endpoint, rec.Metadata,
	).Scan(
		&inserted.ID, &inserted.EventType, &inserted.Service, &inserted.EntityType,
		&inserted.EntityID, &inserted.Timestamp, &inserted.HTTPMethod,
		&inserted.Endpoint, &inserted.Metadata, &inserted.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting audit record: %w", err)
	}
	return &inserted, nil
}

// FindByEntity returns every record for one entity, newest timestamp first.
func (s *PostgresStore) FindByEntity(ctx context.Context, entityType string, entityID int64) ([]domain.AuditRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+auditColumns+`
		FROM audit_records
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY timestamp DESC
	`, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("querying audit records by entity: %w", err)
	}
	defer rows.Close()

	return scanAuditRecords(rows)
}

// FindByFilters returns records matching the optional filter fields, newest
// timestamp first, capped at MaxQueryResults. Start and End bound the
// record timestamp inclusively.
func (s *PostgresStore) FindByFilters(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditRecord, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_records`
	args := []interface{}{}
	argIdx := 1
	conditions := []string{}

	if filter.Service != "" {
		conditions = append(conditions, fmt.Sprintf("service = $%d", argIdx))
		args = append(args, filter.Service)
		argIdx++
	}
	if filter.EntityType != "" {
		conditions = append(conditions, fmt.Sprintf("entity_type = $%d", argIdx))
		args = append(args, filter.EntityType)
		argIdx++
	}
	if filter.EventType != "" {
		conditions = append(conditions, fmt.Sprintf("event_type = $%d", argIdx))
		args = append(args, filter.EventType)
		argIdx++
	}
	if filter.Start != nil {
		conditions = append(conditions, fmt.Sprintf("timestamp >= $%d", argIdx))
		args = append(args, *filter.Start)
		argIdx++
	}
	if filter.End != nil {
		conditions = append(conditions, fmt.Sprintf("timestamp <= $%d", argIdx))
		args = append(args, *filter.End)
		argIdx++
	}

	if len(conditions) > 0 {
		query += " WHERE "
		for i, c := range conditions {
			if i > 0 {
				query += " AND "
			}
			query += c
		}
	}

	limit := filter.Limit
	if limit <= 0 || limit > MaxQueryResults {
		limit = MaxQueryResults
	}

	query += fmt.Sprintf(" ORDER BY timestamp DESC LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit records: %w", err)
	}
	defer rows.Close()

	return scanAuditRecords(rows)
}

type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
}

func scanAuditRecords(rows pgxRows) ([]domain.AuditRecord, error) {
	records := []domain.AuditRecord{}
	for rows.Next() {
		var rec domain.AuditRecord
		err := rows.Scan(
			&rec.ID, &rec.EventType, &rec.Service, &rec.EntityType,
			&rec.EntityID, &rec.Timestamp, &rec.HTTPMethod,
			&rec.Endpoint, &rec.Metadata, &rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning audit record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}
