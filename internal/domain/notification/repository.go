// internal/domain/notification/repository.go
package notification

import (
	"context"
	"time"
)

// Repository persists (entity_id, notify_template) -> notify_date.
type Repository interface {
	// Exists reports whether a record exists for entityID and template.
	// An empty template matches any record of the entity.
	Exists(ctx context.Context, entityID int64, template string) (bool, error)
	Get(ctx context.Context, entityID int64, template string) (time.Time, error)
	// Set inserts or updates a record. A nil notifyDate means "now".
	Set(ctx context.Context, entityID int64, template string, notifyDate *time.Time) error
	// Delete removes the matching records and returns how many were removed.
	// A filter without entity ids and templates is rejected.
	Delete(ctx context.Context, filter Filter) (int64, error)
	Search(ctx context.Context, filter Filter) ([]Record, error)
}
