package events

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/ports"
)

// WatermillSubscriber implements the EventSubscriber interface on top of a
// Watermill subscriber. Messages are acked once handed to the consumer;
// undecodable ones are acked and dropped.
type WatermillSubscriber struct {
	subscriber message.Subscriber
	logger     watermill.LoggerAdapter
}

// NewWatermillSubscriber creates a new Watermill-backed subscriber
func NewWatermillSubscriber(subscriber message.Subscriber, logger watermill.LoggerAdapter) ports.EventSubscriber {
	return &WatermillSubscriber{
		subscriber: subscriber,
		logger:     logger,
	}
}

// Subscribe streams decoded events for name until ctx is done
func (s *WatermillSubscriber) Subscribe(ctx context.Context, name core.EventName) (<-chan core.LedgerEvent, error) {
	topic := Topic(name)
	messages, err := s.subscriber.Subscribe(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	out := make(chan core.LedgerEvent)
	go func() {
		defer close(out)
		for msg := range messages {
			event, err := DecodeLedgerEvent(msg.Payload)
			if err == nil && event.Name != name {
				err = fmt.Errorf("%w: %s delivered on %s", core.ErrEventDecodeSkipped, event.Name, topic)
			}
			if err != nil {
				s.logger.Info("Dropping ledger event", watermill.LogFields{
					"topic":      topic,
					"message_id": msg.UUID,
					"reason":     err.Error(),
				})
				msg.Ack()
				continue
			}

			select {
			case out <- event:
				msg.Ack()
			case <-ctx.Done():
				msg.Nack()
				return
			}
		}
	}()

	return out, nil
}
