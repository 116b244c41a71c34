package account

import (
	"database/sql"
	"errors"
)

// EntityTypeAccount is the entity_type of account entities.
const EntityTypeAccount = "account"

var ErrNotAnAccount = errors.New("entity is not an account")

// Account is the part of an entity the expiration engine needs.
// Entities that are not accounts come back with a different EntityType and an
// empty Name.
type Account struct {
	ID         int64
	Name       string
	EntityType string
	ExpireDate sql.NullTime // The account's own hard expiry, unrelated to spread expiry
}

func (a *Account) IsAccount() bool {
	return a.EntityType == EntityTypeAccount
}
