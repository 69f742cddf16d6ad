package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/holiman/uint256"
	"github.com/layer-3/warden/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubscriber struct {
	mu      sync.Mutex
	streams map[core.EventName]chan core.LedgerEvent
}

func newFakeSubscriber() *fakeSubscriber {
	s := &fakeSubscriber{streams: map[core.EventName]chan core.LedgerEvent{}}
	for _, name := range core.MirroredEvents {
		s.streams[name] = make(chan core.LedgerEvent, 8)
	}
	return s
}

func (s *fakeSubscriber) Subscribe(ctx context.Context, name core.EventName) (<-chan core.LedgerEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streams[name], nil
}

func (s *fakeSubscriber) send(event core.LedgerEvent) {
	s.streams[event.Name] <- event
}

func TestReconcilerAppliesEvents(t *testing.T) {
	reader := newFakeReader()
	reader.set(alice, core.CapabilityRecord{IsVerified: true})
	mirror := NewMirror(reader, watermill.NopLogger{})
	require.NoError(t, mirror.Refresh(context.Background(), alice))

	subscriber := newFakeSubscriber()
	reconciler := NewReconciler(subscriber, mirror, watermill.NopLogger{}, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- reconciler.Run(ctx) }()

	subscriber.send(core.LedgerEvent{Name: core.EventAdminStatusChanged, Subject: alice, AdminKind: core.AdminMinting, Status: true})
	require.Eventually(t, func() bool {
		return core.DeriveCapabilities(mirror.Record()).Has(core.CanMint)
	}, time.Second, time.Millisecond)

	reader.set(alice, core.CapabilityRecord{IsVerified: true, IsMintingAdmin: true, DailyMinted: *uint256.NewInt(10)})
	subscriber.send(core.LedgerEvent{Name: core.EventTokensMinted, Subject: bob})
	require.Eventually(t, func() bool {
		rec := mirror.Record()
		return rec.DailyMinted.Uint64() == 10
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop")
	}
}

func TestReconcilerPeriodicRefresh(t *testing.T) {
	reader := newFakeReader()
	mirror := NewMirror(reader, watermill.NopLogger{})
	require.NoError(t, mirror.Refresh(context.Background(), alice))

	reconciler := NewReconciler(newFakeSubscriber(), mirror, watermill.NopLogger{}, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = reconciler.Run(ctx) }()

	reader.set(alice, core.CapabilityRecord{IsBlocked: true})
	require.Eventually(t, func() bool {
		return mirror.Record().IsBlocked
	}, time.Second, time.Millisecond)
}

func TestReconcilerSkipsMalformedEvents(t *testing.T) {
	reader := newFakeReader()
	mirror := NewMirror(reader, watermill.NopLogger{})
	require.NoError(t, mirror.Refresh(context.Background(), alice))
	reconciler := NewReconciler(newFakeSubscriber(), mirror, watermill.NopLogger{}, 0)

	reconciler.Apply(context.Background(), core.LedgerEvent{Name: core.EventAdminStatusChanged, Subject: alice, AdminKind: 7, Status: true})
	reconciler.Apply(context.Background(), core.LedgerEvent{Name: core.EventAddressVerified, Subject: alice})

	assert.True(t, mirror.Record().IsVerified)
	assert.False(t, mirror.Record().IsMintingAdmin)
}
