package ports

import (
	"context"

	"github.com/layer-3/warden/core"
)

// EventPublisher relays decoded ledger events onto the event bus
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, event core.LedgerEvent) error
}

// EventSubscriber delivers ledger events for one event name, in transport
// order, at least once. The channel closes when ctx is done.
type EventSubscriber interface {
	Subscribe(ctx context.Context, name core.EventName) (<-chan core.LedgerEvent, error)
}
