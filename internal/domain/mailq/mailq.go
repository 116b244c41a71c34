// Package mailq describes the outbound mail queue the expiration engine feeds.
// Rendering and delivery happen elsewhere.
package mailq

import "context"

// Parameters are the template parameters stored with a queued message.
type Parameters map[string]string

// Sink enqueues a templated message for an entity. Delivery is not observed.
type Sink interface {
	Store(ctx context.Context, entityID int64, template string, params Parameters) error
}
