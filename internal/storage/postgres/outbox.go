package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"clinic-scheduler/internal/scheduling"
)

// PublishPending claims up to limit unpublished events with SKIP LOCKED,
// passes them to send and marks them published in the same transaction. A
// send error leaves the events unpublished for the next poll.
func (s *Store) PublishPending(ctx context.Context, limit int, send func(context.Context, []scheduling.Event) error) (int, error) {
	pgTx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = pgTx.Rollback(ctx) }()

	rows, err := pgTx.Query(ctx, `
		SELECT id, event_type, aggregate_id, payload, created_at
		FROM appointment_events
		WHERE published_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return 0, fmt.Errorf("fetch unpublished events: %w", err)
	}
	var (
		events []scheduling.Event
		ids    []uuid.UUID
	)
	for rows.Next() {
		var (
			e       scheduling.Event
			payload []byte
		)
		if err := rows.Scan(&e.ID, &e.Type, &e.AggregateID, &payload, &e.CreatedAt); err != nil {
			rows.Close()
			return 0, err
		}
		e.Payload = json.RawMessage(payload)
		e.CreatedAt = scheduling.Canonical(e.CreatedAt)
		events = append(events, e)
		ids = append(ids, e.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, pgTx.Commit(ctx)
	}

	if err := send(ctx, events); err != nil {
		return 0, err
	}
	if _, err := pgTx.Exec(ctx, `
		UPDATE appointment_events SET published_at = now() WHERE id = ANY($1)
	`, ids); err != nil {
		return 0, fmt.Errorf("mark events published: %w", err)
	}
	if err := pgTx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(events), nil
}
