// internal/domain/notification/record.go
package notification

import "time"

// Record says that the escalation notice Template has been sent to an entity
// and is not yet resolved.
// Corresponds to the 'spread_expire_notification' table.
type Record struct {
	EntityID   int64
	Template   string
	NotifyDate time.Time
}

// Filter narrows Search and Delete. Empty slices and nil dates do not filter.
// Values inside a slice are OR'ed, fields are AND'ed.
type Filter struct {
	EntityIDs []int64
	Templates []string
	Before    *time.Time // notify_date < Before
	After     *time.Time // notify_date > After
}

// ForEntity is shorthand for a filter on one entity and, optionally, a set of templates.
func ForEntity(entityID int64, templates ...string) Filter {
	return Filter{EntityIDs: []int64{entityID}, Templates: templates}
}
