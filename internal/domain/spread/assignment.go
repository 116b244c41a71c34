package spread

import "time"

// Code identifies a spread (a capability granted to an entity).
type Code int

// Assignment is one row of 'spread_expire': entity EntityID holds Spread until ExpireDate.
type Assignment struct {
	EntityID   int64
	Spread     Code
	ExpireDate time.Time
}

// Filter narrows Search. Empty slices and nil dates do not filter.
// Values inside a slice are OR'ed, fields are AND'ed.
type Filter struct {
	EntityIDs []int64
	Spreads   []Code
	Before    *time.Time // expire_date < Before
	After     *time.Time // expire_date > After
}

// SpreadCode describes a row of 'spread_code'.
type SpreadCode struct {
	Code        Code
	Name        string
	EntityType  string
	Description string
}
