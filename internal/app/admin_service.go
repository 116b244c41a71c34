package app

import (
	"context"
	"fmt"
	"time"

	"spread_expire/internal/domain/account"
	"spread_expire/internal/domain/notification"
	"spread_expire/internal/domain/spread"
	"spread_expire/internal/errs"
)

// Operator facing errors for the admin commands.
var ErrSpreadNotForAccounts = fmt.Errorf("%w: spread does not apply to accounts", errs.ErrInvalidArgument)
var ErrSpreadNotAssigned = fmt.Errorf("%w: entity has no expiry for this spread", errs.ErrNotFound)

// SpreadStatus is one expiring spread of an entity as shown to an operator.
type SpreadStatus struct {
	Spread     string
	ExpireDate time.Time
	Pending    []notification.Record
}

// AdminService exposes the expiration engine to operators, who name spreads
// by their code string rather than by number.
type AdminService struct {
	engine *ExpirationService
	codes  spread.CodeRepository
}

func NewAdminService(engine *ExpirationService, codes spread.CodeRepository) *AdminService {
	return &AdminService{
		engine: engine,
		codes:  codes,
	}
}

func (s *AdminService) resolve(ctx context.Context, name string) (*spread.SpreadCode, error) {
	sc, err := s.codes.Lookup(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve spread %q: %w", name, err)
	}
	if sc.EntityType != account.EntityTypeAccount {
		return nil, fmt.Errorf("%w: %q is for %s entities", ErrSpreadNotForAccounts, name, sc.EntityType)
	}
	return sc, nil
}

// Grant adds the spread to the entity, expiring on expireDate (today if nil).
func (s *AdminService) Grant(ctx context.Context, entityID int64, spreadName string, expireDate *time.Time) error {
	sc, err := s.resolve(ctx, spreadName)
	if err != nil {
		return err
	}
	return s.engine.AddSpread(ctx, entityID, sc.Code, expireDate)
}

// Revoke removes the spread and all of its expiry state from the entity.
func (s *AdminService) Revoke(ctx context.Context, entityID int64, spreadName string) error {
	sc, err := s.resolve(ctx, spreadName)
	if err != nil {
		return err
	}
	return s.engine.DeleteSpread(ctx, entityID, sc.Code)
}

// Reschedule moves an existing expiry. Unlike Grant it never adds the spread.
func (s *AdminService) Reschedule(ctx context.Context, entityID int64, spreadName string, expireDate time.Time) error {
	sc, err := s.resolve(ctx, spreadName)
	if err != nil {
		return err
	}
	exists, err := s.engine.expires.Exists(ctx, entityID, sc.Code)
	if err != nil {
		return fmt.Errorf("failed to check spread expire: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: entity %d, spread %s", ErrSpreadNotAssigned, entityID, spreadName)
	}
	return s.engine.SetSpreadExpire(ctx, entityID, sc.Code, expireDate)
}

// Show lists the entity's expiring spreads with their pending notices.
func (s *AdminService) Show(ctx context.Context, entityID int64) ([]SpreadStatus, error) {
	rows, err := s.engine.expires.Search(ctx, spread.Filter{EntityIDs: []int64{entityID}})
	if err != nil {
		return nil, fmt.Errorf("failed to list spread expires for entity %d: %w", entityID, err)
	}
	out := make([]SpreadStatus, 0, len(rows))
	for _, row := range rows {
		st := SpreadStatus{Spread: s.engine.spreadName(row.Spread), ExpireDate: row.ExpireDate}
		if p, ok := s.engine.policies.Lookup(row.Spread); ok {
			st.Pending, err = s.engine.notifs.Search(ctx, notification.ForEntity(entityID, p.Templates()...))
			if err != nil {
				return nil, fmt.Errorf("failed to list notifications for entity %d: %w", entityID, err)
			}
		}
		out = append(out, st)
	}
	return out, nil
}
