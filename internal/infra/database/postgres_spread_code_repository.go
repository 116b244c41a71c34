package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"spread_expire/internal/domain/spread"
)

type PostgresSpreadCodeRepository struct {
	db DBTX
}

func NewPostgresSpreadCodeRepository(db DBTX) *PostgresSpreadCodeRepository {
	return &PostgresSpreadCodeRepository{db: db}
}

func (r *PostgresSpreadCodeRepository) Lookup(ctx context.Context, name string) (*spread.SpreadCode, error) {
	query := `SELECT code, code_str, entity_type, description FROM spread_code WHERE code_str = $1`
	sc := &spread.SpreadCode{}
	var code int64
	err := r.db.QueryRowContext(ctx, query, name).Scan(&code, &sc.Name, &sc.EntityType, &sc.Description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %q", ErrSpreadCodeNotFound, name)
		}
		return nil, fmt.Errorf("error looking up spread code %q: %w", name, err)
	}
	sc.Code = spread.Code(code)
	return sc, nil
}

func (r *PostgresSpreadCodeRepository) ListByEntityType(ctx context.Context, entityType string) ([]*spread.SpreadCode, error) {
	query := `SELECT code, code_str, entity_type, description FROM spread_code WHERE entity_type = $1 ORDER BY code_str`
	rows, err := r.db.QueryContext(ctx, query, entityType)
	if err != nil {
		return nil, fmt.Errorf("error listing spread codes for %s: %w", entityType, err)
	}
	defer rows.Close()

	codes := make([]*spread.SpreadCode, 0)
	for rows.Next() {
		sc := &spread.SpreadCode{}
		var code int64
		if err := rows.Scan(&code, &sc.Name, &sc.EntityType, &sc.Description); err != nil {
			return nil, fmt.Errorf("error scanning spread code: %w", err)
		}
		sc.Code = spread.Code(code)
		codes = append(codes, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating spread codes: %w", err)
	}
	return codes, nil
}
