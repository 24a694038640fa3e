package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/leantrace/eltrader/internal/domain"
)

// EventStore implements domain.DomainEventStore using PostgreSQL. The
// event log is append-only; rows are never updated or deleted.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates a new EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Append writes one event to the log.
func (s *EventStore) Append(ctx context.Context, ev domain.DomainEvent) error {
	const query = `
		INSERT INTO domain_events (id, event_type, subject_id, subject, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.pool.Exec(ctx, query, ev.ID, ev.Type, ev.SubjectID, ev.Subject, ev.At)
	if err != nil {
		return fmt.Errorf("postgres: append event %s: %w", ev.ID, err)
	}
	return nil
}

// ListBySubject returns the most recent events for a subject, newest first.
func (s *EventStore) ListBySubject(ctx context.Context, subjectID string, limit int) ([]domain.DomainEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, event_type, subject_id, subject, created_at
		 FROM domain_events
		 WHERE subject_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`, subjectID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list events %s: %w", subjectID, err)
	}
	defer rows.Close()

	var events []domain.DomainEvent
	for rows.Next() {
		var ev domain.DomainEvent
		if err := rows.Scan(&ev.ID, &ev.Type, &ev.SubjectID, &ev.Subject, &ev.At); err != nil {
			return nil, fmt.Errorf("postgres: scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Compile-time interface check.
var _ domain.DomainEventStore = (*EventStore)(nil)
