package events

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/ports"
)

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{
		publisher: publisher,
	}
}

// PublishLedgerEvent publishes event on its per-name topic
func (p *WatermillPublisher) PublishLedgerEvent(ctx context.Context, event core.LedgerEvent) error {
	payload, err := EncodeLedgerEvent(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage(uuid.New().String(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("tx_hash", event.TxHash.Hex())

	if err := p.publisher.Publish(Topic(event.Name), msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
