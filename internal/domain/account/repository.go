package account

import (
	"context"

	"spread_expire/internal/domain/spread"
)

// Repository is the entity/account collaborator used by the expiration engine.
type Repository interface {
	Find(ctx context.Context, entityID int64) (*Account, error)
	HasSpread(ctx context.Context, entityID int64, code spread.Code) (bool, error)
	AddSpread(ctx context.Context, entityID int64, code spread.Code) error
	DeleteSpread(ctx context.Context, entityID int64, code spread.Code) error
	// ClearHome removes the home directory assignment tied to the spread, if any.
	ClearHome(ctx context.Context, entityID int64, code spread.Code) error
}
