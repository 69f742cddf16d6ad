package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/ports"
)

// DefaultRefreshInterval is how often the tracked record is re-read in full
const DefaultRefreshInterval = 30 * time.Second

// Reconciler keeps the mirror current: one consumer per ledger event, plus a
// periodic full re-read.
type Reconciler struct {
	subscriber ports.EventSubscriber
	mirror     *Mirror
	logger     watermill.LoggerAdapter
	events     []core.EventName
	interval   time.Duration
}

// NewReconciler creates a reconciler for all mirrored events. An interval of
// zero disables periodic re-reads.
func NewReconciler(subscriber ports.EventSubscriber, mirror *Mirror, logger watermill.LoggerAdapter, interval time.Duration) *Reconciler {
	return &Reconciler{
		subscriber: subscriber,
		mirror:     mirror,
		logger:     logger,
		events:     core.MirroredEvents,
		interval:   interval,
	}
}

// Run subscribes to every event and blocks until ctx is done.
func (r *Reconciler) Run(ctx context.Context) error {
	streams := make(map[core.EventName]<-chan core.LedgerEvent, len(r.events))
	for _, name := range r.events {
		stream, err := r.subscriber.Subscribe(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", name, err)
		}
		streams[name] = stream
	}

	var wg sync.WaitGroup
	for name, stream := range streams {
		wg.Add(1)
		go func(name core.EventName, stream <-chan core.LedgerEvent) {
			defer wg.Done()
			r.consume(ctx, name, stream)
		}(name, stream)
	}

	if r.interval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.poll(ctx)
		}()
	}

	wg.Wait()
	return nil
}

func (r *Reconciler) consume(ctx context.Context, name core.EventName, stream <-chan core.LedgerEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-stream:
			if !ok {
				return
			}
			r.Apply(ctx, event)
		}
	}
}

// Apply feeds one event to the mirror, re-reading when the event asks for it.
// Failures are logged only.
func (r *Reconciler) Apply(ctx context.Context, event core.LedgerEvent) {
	fields := watermill.LogFields{
		"event":   string(event.Name),
		"subject": event.Subject.Hex(),
		"tx_hash": event.TxHash.Hex(),
	}

	refresh, err := r.mirror.ApplyEvent(event)
	if err != nil {
		r.logger.Info("Skipping ledger event", fields.Add(watermill.LogFields{"reason": err.Error()}))
		return
	}
	if !refresh {
		return
	}

	if err := r.mirror.RefreshTracked(ctx); err != nil && !droppedRefresh(err) {
		r.logger.Error("Event-triggered refresh failed", err, fields)
	}
}

func (r *Reconciler) poll(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := r.mirror.RefreshTracked(ctx)
			if err != nil && !droppedRefresh(err) && !errors.Is(err, core.ErrReadFailed) {
				r.logger.Error("Periodic refresh failed", err, nil)
			}
		}
	}
}
