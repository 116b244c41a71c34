package database

import (
	"errors"
	"fmt"

	"spread_expire/internal/errs"
)

var (
	ErrSpreadExpireNotFound = fmt.Errorf("spread expire record %w", errs.ErrNotFound)
	ErrNotificationNotFound = fmt.Errorf("spread expire notification %w", errs.ErrNotFound)
	ErrEntityNotFound       = fmt.Errorf("entity %w", errs.ErrNotFound)
	ErrEntitySpreadNotFound = fmt.Errorf("entity spread %w", errs.ErrNotFound)
	ErrSpreadCodeNotFound   = fmt.Errorf("spread code %w", errs.ErrNotFound)

	ErrDuplicateEntitySpread = errors.New("entity already has spread")
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"
