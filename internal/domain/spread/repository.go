package spread

import (
	"context"
	"time"
)

// ExpireRepository persists (entity_id, spread) -> expire_date.
type ExpireRepository interface {
	Exists(ctx context.Context, entityID int64, spread Code) (bool, error)
	Get(ctx context.Context, entityID int64, spread Code) (time.Time, error)
	// Set inserts the assignment or moves its expire date. Writing an
	// unchanged date is a no-op.
	Set(ctx context.Context, entityID int64, spread Code, expireDate time.Time) error
	Delete(ctx context.Context, entityID int64, spread Code) error
	Search(ctx context.Context, filter Filter) ([]Assignment, error)
}

// CodeRepository resolves spread code names.
type CodeRepository interface {
	Lookup(ctx context.Context, name string) (*SpreadCode, error)
	ListByEntityType(ctx context.Context, entityType string) ([]*SpreadCode, error)
}
