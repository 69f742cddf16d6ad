package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/layer-3/warden/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0xAAAaaAaAaaAaAaaAAAAaAAAaAaaaaAaAaaaAAAAA")
	bob   = common.HexToAddress("0xBBbBbBBbBbbBBbbbbbBbBBbbBBBbbBbBbbbbBBbB")
)

func TestCodecRoundTripsEventKinds(t *testing.T) {
	events := []core.LedgerEvent{
		{Name: core.EventTransferLimitSet, Subject: alice, Amount: *uint256.NewInt(500)},
		{Name: core.EventAdminStatusChanged, Subject: alice, AdminKind: core.AdminIdp, Status: true},
		{Name: core.EventTokensTransferred, Subject: alice, Counterparty: bob, Amount: *uint256.NewInt(7)},
		{Name: core.EventAddressBlocked, Subject: bob, BlockNumber: 12, LogIndex: 3},
	}

	for _, ev := range events {
		t.Run(string(ev.Name), func(t *testing.T) {
			payload, err := EncodeLedgerEvent(ev)
			require.NoError(t, err)
			got, err := DecodeLedgerEvent(payload)
			require.NoError(t, err)
			assert.Equal(t, ev, got)
		})
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":         `{`,
		"bad subject":      `{"event":"AddressBlocked","subject":"0x1234"}`,
		"unknown event":    `{"event":"Paused","subject":"0xAAAaaAaAaaAaAaaAAAAaAAAaAaaaaAaAaaaAAAAA"}`,
		"missing kind":     `{"event":"AdminStatusChanged","subject":"0xAAAaaAaAaaAaAaaAAAAaAAAaAaaaaAaAaaaAAAAA","status":true}`,
		"bad amount":       `{"event":"TransferLimitSet","subject":"0xAAAaaAaAaaAaAaaAAAAaAAAaAaaaaAaAaaaAAAAA","amount":"lots"}`,
		"bad counterparty": `{"event":"TokensTransferred","subject":"0xAAAaaAaAaaAaAaaAAAAaAAAaAaaaaAaAaaaAAAAA","amount":"1","counterparty":"nope"}`,
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeLedgerEvent([]byte(payload))
			assert.ErrorIs(t, err, core.ErrEventDecodeSkipped)
		})
	}
}

func TestPublishSubscribeOverGoChannel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bus := gochannel.NewGoChannel(gochannel.Config{BlockPublishUntilSubscriberAck: true}, watermill.NopLogger{})
	defer bus.Close()

	sub := NewWatermillSubscriber(bus, watermill.NopLogger{})
	pub := NewWatermillPublisher(bus)

	stream, err := sub.Subscribe(ctx, core.EventAddressBlocked)
	require.NoError(t, err)

	published := make(chan error, 1)
	go func() {
		// A malformed message on the same topic is dropped, not delivered.
		if err := bus.Publish(Topic(core.EventAddressBlocked), message.NewMessage("junk", []byte("{"))); err != nil {
			published <- err
			return
		}
		if err := pub.PublishLedgerEvent(ctx, core.LedgerEvent{Name: core.EventAddressBlocked, Subject: alice}); err != nil {
			published <- err
			return
		}
		published <- pub.PublishLedgerEvent(ctx, core.LedgerEvent{Name: core.EventAddressBlocked, Subject: bob})
	}()

	var got []common.Address
	for len(got) < 2 {
		select {
		case ev := <-stream:
			got = append(got, ev.Subject)
		case <-ctx.Done():
			t.Fatal("timed out waiting for events")
		}
	}
	assert.Equal(t, []common.Address{alice, bob}, got, "delivery order must be preserved")
	require.NoError(t, <-published)
}

func TestTransferLimitUpdatesKeepPublishOrder(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bus := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            64,
		BlockPublishUntilSubscriberAck: true,
	}, watermill.NopLogger{})
	defer bus.Close()

	stream, err := NewWatermillSubscriber(bus, watermill.NopLogger{}).Subscribe(ctx, core.EventTransferLimitSet)
	require.NoError(t, err)

	const updates = 50
	pub := NewWatermillPublisher(bus)
	published := make(chan error, 1)
	go func() {
		for i := uint64(1); i <= updates; i++ {
			ev := core.LedgerEvent{Name: core.EventTransferLimitSet, Subject: alice, Amount: *uint256.NewInt(i)}
			if err := pub.PublishLedgerEvent(ctx, ev); err != nil {
				published <- err
				return
			}
		}
		published <- nil
	}()

	for want := uint64(1); want <= updates; want++ {
		select {
		case ev := <-stream:
			require.Equal(t, want, ev.Amount.Uint64())
		case <-ctx.Done():
			t.Fatal("timed out waiting for events")
		}
	}
	require.NoError(t, <-published)
}

func TestEncodedPayloadCarriesOnlyEventFields(t *testing.T) {
	payload, err := EncodeLedgerEvent(core.LedgerEvent{Name: core.EventTransferLimitSet, Subject: alice, Amount: *uint256.NewInt(500)})
	require.NoError(t, err)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(payload, &fields))

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	assert.ElementsMatch(t, []string{"event", "subject", "amount", "block_number", "tx_hash", "log_index"}, keys)
}
