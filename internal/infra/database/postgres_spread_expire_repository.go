// internal/infra/database/postgres_spread_expire_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"spread_expire/internal/domain/calendar"
	"spread_expire/internal/domain/spread"
	"spread_expire/internal/errs"
)

type PostgresSpreadExpireRepository struct {
	db DBTX
}

func NewPostgresSpreadExpireRepository(db DBTX) *PostgresSpreadExpireRepository {
	return &PostgresSpreadExpireRepository{db: db}
}

func checkKey(entityID int64, code spread.Code) error {
	if entityID <= 0 || code <= 0 {
		return fmt.Errorf("%w: entity_id=%d spread=%d", errs.ErrInvalidArgument, entityID, code)
	}
	return nil
}

// dateArg renders a DATE parameter as text so the session time zone cannot
// shift it to a neighbouring day.
func dateArg(t time.Time) string {
	return calendar.Format(calendar.Day(t))
}

func (r *PostgresSpreadExpireRepository) Exists(ctx context.Context, entityID int64, code spread.Code) (bool, error) {
	if err := checkKey(entityID, code); err != nil {
		return false, err
	}
	query := `SELECT EXISTS (SELECT 1 FROM spread_expire WHERE entity_id = $1 AND spread = $2)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, entityID, int64(code)).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking spread expire for entity %d, spread %d: %w", entityID, code, err)
	}
	return exists, nil
}

func (r *PostgresSpreadExpireRepository) Get(ctx context.Context, entityID int64, code spread.Code) (time.Time, error) {
	if err := checkKey(entityID, code); err != nil {
		return time.Time{}, err
	}
	query := `SELECT expire_date FROM spread_expire WHERE entity_id = $1 AND spread = $2`
	var expireDate time.Time
	err := r.db.QueryRowContext(ctx, query, entityID, int64(code)).Scan(&expireDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, ErrSpreadExpireNotFound
		}
		return time.Time{}, fmt.Errorf("error getting spread expire for entity %d, spread %d: %w", entityID, code, err)
	}
	return calendar.Day(expireDate), nil
}

// Set upserts in one statement. The WHERE on the conflict branch turns an
// unchanged date into a no-op instead of a write.
func (r *PostgresSpreadExpireRepository) Set(ctx context.Context, entityID int64, code spread.Code, expireDate time.Time) error {
	if err := checkKey(entityID, code); err != nil {
		return err
	}
	query := `INSERT INTO spread_expire (entity_id, spread, expire_date)
               VALUES ($1, $2, $3)
               ON CONFLICT (entity_id, spread) DO UPDATE
               SET expire_date = EXCLUDED.expire_date
               WHERE spread_expire.expire_date IS DISTINCT FROM EXCLUDED.expire_date`
	if _, err := r.db.ExecContext(ctx, query, entityID, int64(code), dateArg(expireDate)); err != nil {
		return fmt.Errorf("error setting spread expire for entity %d, spread %d: %w", entityID, code, err)
	}
	return nil
}

func (r *PostgresSpreadExpireRepository) Delete(ctx context.Context, entityID int64, code spread.Code) error {
	if err := checkKey(entityID, code); err != nil {
		return err
	}
	query := `DELETE FROM spread_expire WHERE entity_id = $1 AND spread = $2`
	res, err := r.db.ExecContext(ctx, query, entityID, int64(code))
	if err != nil {
		return fmt.Errorf("error deleting spread expire for entity %d, spread %d: %w", entityID, code, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSpreadExpireNotFound
	}
	return nil
}

func (r *PostgresSpreadExpireRepository) Search(ctx context.Context, filter spread.Filter) ([]spread.Assignment, error) {
	var w where
	w.int64s("entity_id", filter.EntityIDs)
	w.spreads("spread", filter.Spreads)
	if filter.Before != nil {
		w.add("expire_date < $%d", dateArg(*filter.Before))
	}
	if filter.After != nil {
		w.add("expire_date > $%d", dateArg(*filter.After))
	}

	query := `SELECT entity_id, spread, expire_date FROM spread_expire` + w.String() + ` ORDER BY entity_id, spread`
	rows, err := r.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("error searching spread expire: %w", err)
	}
	defer rows.Close()

	assignments := make([]spread.Assignment, 0)
	for rows.Next() {
		var (
			a    spread.Assignment
			code int64
		)
		if err := rows.Scan(&a.EntityID, &code, &a.ExpireDate); err != nil {
			return nil, fmt.Errorf("error scanning spread expire row: %w", err)
		}
		a.Spread = spread.Code(code)
		a.ExpireDate = calendar.Day(a.ExpireDate)
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating spread expire rows: %w", err)
	}
	return assignments, nil
}
