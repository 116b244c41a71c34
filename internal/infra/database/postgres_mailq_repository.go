package database

import (
	"context"
	"encoding/json"
	"fmt"

	"spread_expire/internal/domain/mailq"
)

// PostgresMailQueue writes messages to the 'mailq' table, where the mail
// sender picks them up. Parameters are stored as JSON.
type PostgresMailQueue struct {
	db DBTX
}

func NewPostgresMailQueue(db DBTX) *PostgresMailQueue {
	return &PostgresMailQueue{db: db}
}

func (q *PostgresMailQueue) Store(ctx context.Context, entityID int64, template string, params mailq.Parameters) error {
	if params == nil {
		params = mailq.Parameters{}
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("error encoding mail parameters for %q: %w", template, err)
	}
	query := `INSERT INTO mailq (entity_id, template, parameters, scheduled)
               VALUES ($1, $2, $3, NOW())`
	if _, err := q.db.ExecContext(ctx, query, entityID, template, JSON(raw)); err != nil {
		return fmt.Errorf("error queueing mail %q for entity %d: %w", template, entityID, err)
	}
	return nil
}
