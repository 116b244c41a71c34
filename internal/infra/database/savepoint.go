package database

import (
	"context"
	"database/sql"
	"fmt"
)

const entitySavepoint = "spread_expire_entity"

// Savepoint isolates units of work inside one transaction. A failed unit is
// rolled back to its savepoint, which keeps the surrounding transaction
// usable for the rest of the batch.
type Savepoint struct {
	tx *sql.Tx
}

func NewSavepoint(tx *sql.Tx) *Savepoint {
	return &Savepoint{tx: tx}
}

func (s *Savepoint) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, err := s.tx.ExecContext(ctx, "SAVEPOINT "+entitySavepoint); err != nil {
		return fmt.Errorf("failed to create savepoint: %w", err)
	}
	if err := fn(ctx); err != nil {
		if _, rbErr := s.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+entitySavepoint); rbErr != nil {
			return fmt.Errorf("%w (rollback to savepoint failed: %v)", err, rbErr)
		}
		return err
	}
	if _, err := s.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+entitySavepoint); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}
	return nil
}
