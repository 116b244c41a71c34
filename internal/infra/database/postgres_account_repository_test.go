package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spread_expire/internal/domain/account"
	"spread_expire/internal/errs"
)

const findEntityQuery = `SELECT ei.entity_id, ei.entity_type, COALESCE(ai.account_name, ''), ai.expire_date
	FROM entity_info ei
	LEFT JOIN account_info ai ON ai.account_id = ei.entity_id
	WHERE ei.entity_id = $1`

func TestAccount_Find(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresAccountRepository(db)
	expire := time.Date(2026, time.June, 30, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(findEntityQuery).WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"entity_id", "entity_type", "account_name", "expire_date"}).
			AddRow(int64(42), "account", "olanor", expire))
	mock.ExpectQuery(findEntityQuery).WithArgs(int64(43)).
		WillReturnRows(sqlmock.NewRows([]string{"entity_id", "entity_type", "account_name", "expire_date"}).
			AddRow(int64(43), "group", "", nil))
	mock.ExpectQuery(findEntityQuery).WithArgs(int64(44)).WillReturnError(sql.ErrNoRows)

	acc, err := repo.Find(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, &account.Account{
		ID: 42, Name: "olanor", EntityType: account.EntityTypeAccount,
		ExpireDate: sql.NullTime{Time: expire, Valid: true},
	}, acc)
	assert.True(t, acc.IsAccount())

	grp, err := repo.Find(context.Background(), 43)
	require.NoError(t, err)
	assert.False(t, grp.IsAccount())
	assert.False(t, grp.ExpireDate.Valid)

	_, err = repo.Find(context.Background(), 44)
	assert.ErrorIs(t, err, ErrEntityNotFound)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccount_Spreads(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresAccountRepository(db)
	ctx := context.Background()
	insert := `INSERT INTO entity_spread (entity_id, entity_type, spread)
		SELECT entity_id, entity_type, $2 FROM entity_info WHERE entity_id = $1`

	mock.ExpectQuery(`SELECT EXISTS (SELECT 1 FROM entity_spread WHERE entity_id = $1 AND spread = $2)`).
		WithArgs(int64(42), int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec(insert).WithArgs(int64(42), int64(7)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insert).WithArgs(int64(99), int64(7)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(insert).WithArgs(int64(42), int64(7)).WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectExec(`DELETE FROM entity_spread WHERE entity_id = $1 AND spread = $2`).
		WithArgs(int64(42), int64(7)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM entity_spread WHERE entity_id = $1 AND spread = $2`).
		WithArgs(int64(42), int64(7)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM account_home WHERE account_id = $1 AND spread = $2`).
		WithArgs(int64(42), int64(7)).WillReturnResult(sqlmock.NewResult(0, 0))

	has, err := repo.HasSpread(ctx, 42, 7)
	require.NoError(t, err)
	assert.True(t, has)

	assert.NoError(t, repo.AddSpread(ctx, 42, 7))
	assert.ErrorIs(t, repo.AddSpread(ctx, 99, 7), ErrEntityNotFound)
	assert.ErrorIs(t, repo.AddSpread(ctx, 42, 7), ErrDuplicateEntitySpread)
	assert.NoError(t, repo.DeleteSpread(ctx, 42, 7))
	assert.ErrorIs(t, repo.DeleteSpread(ctx, 42, 7), ErrEntitySpreadNotFound)
	assert.NoError(t, repo.ClearHome(ctx, 42, 7))
	assert.NoError(t, mock.ExpectationsWereMet())
}
