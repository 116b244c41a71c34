package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"spread_expire/internal/domain/account"
	"spread_expire/internal/domain/spread"
)

// PostgresAccountRepository reads and writes the entity, account and spread
// tables owned by the identity database. Only the columns the expiration
// engine needs are touched.
type PostgresAccountRepository struct {
	db DBTX
}

func NewPostgresAccountRepository(db DBTX) *PostgresAccountRepository {
	return &PostgresAccountRepository{db: db}
}

func (r *PostgresAccountRepository) Find(ctx context.Context, entityID int64) (*account.Account, error) {
	query := `SELECT ei.entity_id, ei.entity_type, COALESCE(ai.account_name, ''), ai.expire_date
               FROM entity_info ei
               LEFT JOIN account_info ai ON ai.account_id = ei.entity_id
               WHERE ei.entity_id = $1`
	a := &account.Account{}
	err := r.db.QueryRowContext(ctx, query, entityID).Scan(&a.ID, &a.EntityType, &a.Name, &a.ExpireDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntityNotFound
		}
		return nil, fmt.Errorf("error getting entity %d: %w", entityID, err)
	}
	return a, nil
}

func (r *PostgresAccountRepository) HasSpread(ctx context.Context, entityID int64, code spread.Code) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM entity_spread WHERE entity_id = $1 AND spread = $2)`
	var has bool
	if err := r.db.QueryRowContext(ctx, query, entityID, int64(code)).Scan(&has); err != nil {
		return false, fmt.Errorf("error checking spread %d on entity %d: %w", code, entityID, err)
	}
	return has, nil
}

func (r *PostgresAccountRepository) AddSpread(ctx context.Context, entityID int64, code spread.Code) error {
	query := `INSERT INTO entity_spread (entity_id, entity_type, spread)
               SELECT entity_id, entity_type, $2 FROM entity_info WHERE entity_id = $1`
	res, err := r.db.ExecContext(ctx, query, entityID, int64(code))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateEntitySpread
		}
		return fmt.Errorf("error adding spread %d to entity %d: %w", code, entityID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrEntityNotFound
	}
	return nil
}

func (r *PostgresAccountRepository) DeleteSpread(ctx context.Context, entityID int64, code spread.Code) error {
	query := `DELETE FROM entity_spread WHERE entity_id = $1 AND spread = $2`
	res, err := r.db.ExecContext(ctx, query, entityID, int64(code))
	if err != nil {
		return fmt.Errorf("error deleting spread %d from entity %d: %w", code, entityID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrEntitySpreadNotFound
	}
	return nil
}

func (r *PostgresAccountRepository) ClearHome(ctx context.Context, entityID int64, code spread.Code) error {
	query := `DELETE FROM account_home WHERE account_id = $1 AND spread = $2`
	if _, err := r.db.ExecContext(ctx, query, entityID, int64(code)); err != nil {
		return fmt.Errorf("error clearing home for spread %d on account %d: %w", code, entityID, err)
	}
	return nil
}
