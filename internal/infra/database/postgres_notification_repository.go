// internal/infra/database/postgres_notification_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"spread_expire/internal/domain/notification"
	"spread_expire/internal/errs"
)

type PostgresNotificationRepository struct {
	db DBTX
}

func NewPostgresNotificationRepository(db DBTX) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

func (r *PostgresNotificationRepository) Exists(ctx context.Context, entityID int64, template string) (bool, error) {
	if entityID <= 0 {
		return false, fmt.Errorf("%w: entity_id=%d", errs.ErrInvalidArgument, entityID)
	}

	query := `SELECT EXISTS (SELECT 1 FROM spread_expire_notification WHERE entity_id = $1)`
	args := []any{entityID}
	if template != "" {
		query = `SELECT EXISTS (SELECT 1 FROM spread_expire_notification WHERE entity_id = $1 AND notify_template = $2)`
		args = append(args, template)
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking notification for entity %d: %w", entityID, err)
	}
	return exists, nil
}

func (r *PostgresNotificationRepository) Get(ctx context.Context, entityID int64, template string) (time.Time, error) {
	if entityID <= 0 || template == "" {
		return time.Time{}, fmt.Errorf("%w: entity_id=%d notify_template=%q", errs.ErrInvalidArgument, entityID, template)
	}
	query := `SELECT notify_date FROM spread_expire_notification WHERE entity_id = $1 AND notify_template = $2`
	var notifyDate time.Time
	err := r.db.QueryRowContext(ctx, query, entityID, template).Scan(&notifyDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, ErrNotificationNotFound
		}
		return time.Time{}, fmt.Errorf("error getting notification %q for entity %d: %w", template, entityID, err)
	}
	return notifyDate, nil
}

func (r *PostgresNotificationRepository) Set(ctx context.Context, entityID int64, template string, notifyDate *time.Time) error {
	if entityID <= 0 || template == "" {
		return fmt.Errorf("%w: entity_id=%d notify_template=%q", errs.ErrInvalidArgument, entityID, template)
	}
	date := sql.NullTime{}
	if notifyDate != nil {
		date = sql.NullTime{Time: *notifyDate, Valid: true}
	}
	query := `INSERT INTO spread_expire_notification (entity_id, notify_template, notify_date)
               VALUES ($1, $2, COALESCE($3, NOW()))
               ON CONFLICT (entity_id, notify_template) DO UPDATE
               SET notify_date = EXCLUDED.notify_date`
	if _, err := r.db.ExecContext(ctx, query, entityID, template, date); err != nil {
		return fmt.Errorf("error setting notification %q for entity %d: %w", template, entityID, err)
	}
	return nil
}

func (r *PostgresNotificationRepository) Delete(ctx context.Context, filter notification.Filter) (int64, error) {
	if len(filter.EntityIDs) == 0 && len(filter.Templates) == 0 {
		return 0, fmt.Errorf("%w: refusing to delete notifications without entity or template filter", errs.ErrInvalidArgument)
	}
	w := notificationWhere(filter)
	res, err := r.db.ExecContext(ctx, `DELETE FROM spread_expire_notification`+w.String(), w.args...)
	if err != nil {
		return 0, fmt.Errorf("error deleting notifications: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *PostgresNotificationRepository) Search(ctx context.Context, filter notification.Filter) ([]notification.Record, error) {
	w := notificationWhere(filter)
	query := `SELECT entity_id, notify_template, notify_date FROM spread_expire_notification` + w.String() +
		` ORDER BY entity_id, notify_date, notify_template`
	rows, err := r.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("error searching notifications: %w", err)
	}
	defer rows.Close()

	records := make([]notification.Record, 0)
	for rows.Next() {
		var rec notification.Record
		if err := rows.Scan(&rec.EntityID, &rec.Template, &rec.NotifyDate); err != nil {
			return nil, fmt.Errorf("error scanning notification row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification rows: %w", err)
	}
	return records, nil
}

func notificationWhere(filter notification.Filter) *where {
	w := &where{}
	w.int64s("entity_id", filter.EntityIDs)
	w.strings("notify_template", filter.Templates)
	w.before("notify_date", filter.Before)
	w.after("notify_date", filter.After)
	return w
}
