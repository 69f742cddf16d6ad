package events

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/warden/core"
)

// TopicPrefix namespaces ledger event topics on the bus.
const TopicPrefix = "ledger."

// Topic returns the bus topic for an event name.
func Topic(name core.EventName) string {
	return TopicPrefix + string(name)
}

// LedgerEventMessage is the JSON payload of a ledger event on the bus.
type LedgerEventMessage struct {
	Event        string      `json:"event"`
	Subject      string      `json:"subject"`
	Counterparty string      `json:"counterparty,omitempty"`
	Amount       string      `json:"amount,omitempty"`
	AdminKind    *uint8      `json:"admin_kind,omitempty"`
	Status       bool        `json:"status,omitempty"`
	BlockNumber  uint64      `json:"block_number"`
	TxHash       common.Hash `json:"tx_hash"`
	LogIndex     uint        `json:"log_index"`
}

// EncodeLedgerEvent marshals event for the bus
func EncodeLedgerEvent(event core.LedgerEvent) ([]byte, error) {
	msg := LedgerEventMessage{
		Event:       string(event.Name),
		Subject:     event.Subject.Hex(),
		Status:      event.Status,
		BlockNumber: event.BlockNumber,
		TxHash:      event.TxHash,
		LogIndex:    event.LogIndex,
	}

	switch event.Name {
	case core.EventTransferLimitSet, core.EventTokensMinted:
		msg.Amount = event.Amount.Dec()
	case core.EventTokensTransferred:
		msg.Amount = event.Amount.Dec()
		msg.Counterparty = event.Counterparty.Hex()
	case core.EventAdminStatusChanged:
		kind := uint8(event.AdminKind)
		msg.AdminKind = &kind
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return payload, nil
}

// DecodeLedgerEvent parses a bus payload. Anything malformed is reported as
// core.ErrEventDecodeSkipped.
func DecodeLedgerEvent(payload []byte) (core.LedgerEvent, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return core.LedgerEvent{}, fmt.Errorf("%w: %v", core.ErrEventDecodeSkipped, err)
	}

	subject, err := core.ParseAddress(msg.Subject)
	if err != nil {
		return core.LedgerEvent{}, fmt.Errorf("%w: subject: %v", core.ErrEventDecodeSkipped, err)
	}

	event := core.LedgerEvent{
		Name:        core.EventName(msg.Event),
		Subject:     subject,
		Status:      msg.Status,
		BlockNumber: msg.BlockNumber,
		TxHash:      msg.TxHash,
		LogIndex:    msg.LogIndex,
	}

	switch event.Name {
	case core.EventTransferLimitSet, core.EventTokensMinted, core.EventTokensTransferred:
		if err := event.Amount.SetFromDecimal(msg.Amount); err != nil {
			return core.LedgerEvent{}, fmt.Errorf("%w: amount %q: %v", core.ErrEventDecodeSkipped, msg.Amount, err)
		}
		if event.Name == core.EventTokensTransferred {
			to, err := core.ParseAddress(msg.Counterparty)
			if err != nil {
				return core.LedgerEvent{}, fmt.Errorf("%w: counterparty: %v", core.ErrEventDecodeSkipped, err)
			}
			event.Counterparty = to
		}
	case core.EventAdminStatusChanged:
		if msg.AdminKind == nil {
			return core.LedgerEvent{}, fmt.Errorf("%w: admin_kind missing", core.ErrEventDecodeSkipped)
		}
		event.AdminKind = core.AdminKind(*msg.AdminKind)
	case core.EventAddressVerified, core.EventVerificationRemoved,
		core.EventAddressBlocked, core.EventAddressUnblocked,
		core.EventIdentityProviderAdded, core.EventIdentityProviderRemoved:
	default:
		return core.LedgerEvent{}, fmt.Errorf("%w: unknown event %q", core.ErrEventDecodeSkipped, msg.Event)
	}

	return event, nil
}
