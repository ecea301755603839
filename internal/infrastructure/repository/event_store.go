package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"oracleboxing-funnel-layer/internal/domain"
	"oracleboxing-funnel-layer/internal/ports"
)

// PostgresEventStore implements EventStore against the Supabase Postgres
// events table. Rows are append-only.
type PostgresEventStore struct {
	db *sql.DB
}

// NewPostgresEventStore creates a new Postgres event store
func NewPostgresEventStore(db *sql.DB) ports.EventStore {
	return &PostgresEventStore{db: db}
}

const insertEventSQL = `
	INSERT INTO events (
		event_id, event_name, page, element_id, element_text, element_type,
		value, metadata, session_id, utm_source, utm_medium, utm_campaign,
		country, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

// InsertEvent appends one analytics row.
func (s *PostgresEventStore) InsertEvent(ctx context.Context, e *domain.Event) error {
	metadata := []byte("{}")
	if len(e.Metadata) > 0 {
		b, err := json.Marshal(e.Metadata)
		if err == nil {
			metadata = b
		}
	}

	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, insertEventSQL,
		e.EventID,
		e.Name,
		e.Page,
		domain.TruncateText(e.ElementID),
		domain.TruncateText(e.ElementText),
		domain.TruncateText(e.ElementType),
		e.Value,
		metadata,
		e.SessionID,
		e.UTMSource,
		e.UTMMedium,
		e.UTMCampaign,
		e.Country,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}
