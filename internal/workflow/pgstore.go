package workflow

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pitabwire/jiramcp/model"
)

// PgEventSink is a PostgreSQL-backed EventSink using pgx/v5.
type PgEventSink struct {
	pool *pgxpool.Pool
}

// NewPgEventSink creates a new PostgreSQL event sink.
func NewPgEventSink(pool *pgxpool.Pool) *PgEventSink {
	return &PgEventSink{pool: pool}
}

// EnsureSchema creates the events table if it does not exist.
func (s *PgEventSink) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS workflow_events (
			id            TEXT PRIMARY KEY,
			definition_id TEXT        NOT NULL,
			step_id       TEXT        NOT NULL,
			event         TEXT        NOT NULL,
			response      TEXT        NOT NULL DEFAULT '',
			error         TEXT        NOT NULL DEFAULT '',
			actor_id      TEXT        NOT NULL DEFAULT '',
			created_at    TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS workflow_events_definition_idx
			ON workflow_events (definition_id, created_at)`)
	if err != nil {
		return fmt.Errorf("create workflow_events: %w", err)
	}
	return nil
}

// Append inserts an event into the audit trail.
func (s *PgEventSink) Append(ctx context.Context, event model.WorkflowEvent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO workflow_events (
			id, definition_id, step_id, event, response, error, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID, event.DefinitionID, event.StepID, event.Type,
		event.Response, event.Error, event.ActorID, event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert workflow event: %w", err)
	}
	return nil
}

// eventsQuery selects the most recent events for a definition and returns
// them oldest first.
const eventsQuery = `
	SELECT id, definition_id, step_id, event, response, error, actor_id, created_at
	FROM (
		SELECT id, definition_id, step_id, event, response, error, actor_id, created_at
		FROM workflow_events
		WHERE definition_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	) recent
	ORDER BY created_at ASC`

// Events retrieves the latest limit events for a definition, oldest first.
func (s *PgEventSink) Events(ctx context.Context, definitionID string, limit int) ([]model.WorkflowEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, eventsQuery, definitionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query workflow events: %w", err)
	}
	defer rows.Close()

	var events []model.WorkflowEvent
	for rows.Next() {
		var evt model.WorkflowEvent
		if err := rows.Scan(
			&evt.ID, &evt.DefinitionID, &evt.StepID, &evt.Type,
			&evt.Response, &evt.Error, &evt.ActorID, &evt.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan workflow event: %w", err)
		}
		events = append(events, evt)
	}
	return events, rows.Err()
}

// HealthCheck pings the database.
func (s *PgEventSink) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *PgEventSink) Close() {
	s.pool.Close()
}
