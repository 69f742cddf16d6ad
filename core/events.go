package core

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// EventName is a ledger event as declared in the contract ABI.
type EventName string

const (
	EventTransferLimitSet        EventName = "TransferLimitSet"
	EventAddressVerified         EventName = "AddressVerified"
	EventVerificationRemoved     EventName = "VerificationRemoved"
	EventAddressBlocked          EventName = "AddressBlocked"
	EventAddressUnblocked        EventName = "AddressUnblocked"
	EventAdminStatusChanged      EventName = "AdminStatusChanged"
	EventIdentityProviderAdded   EventName = "IdentityProviderAdded"
	EventIdentityProviderRemoved EventName = "IdentityProviderRemoved"
	EventTokensMinted            EventName = "TokensMinted"
	EventTokensTransferred       EventName = "TokensTransferred"
)

// MirroredEvents are the events the reconciler subscribes to.
var MirroredEvents = []EventName{
	EventTransferLimitSet,
	EventAddressVerified,
	EventVerificationRemoved,
	EventAddressBlocked,
	EventAddressUnblocked,
	EventAdminStatusChanged,
	EventIdentityProviderAdded,
	EventIdentityProviderRemoved,
	EventTokensMinted,
	EventTokensTransferred,
}

// AdminKind is the discriminator carried by AdminStatusChanged.
type AdminKind uint8

const (
	AdminMinting AdminKind = iota
	AdminRestriction
	AdminIdp
)

func (k AdminKind) String() string {
	switch k {
	case AdminMinting:
		return "minting"
	case AdminRestriction:
		return "restriction"
	case AdminIdp:
		return "idp"
	default:
		return "unknown"
	}
}

// LedgerEvent is one decoded log record. Subject is the address the event is
// about; Counterparty is only set for transfers (the recipient).
type LedgerEvent struct {
	Name         EventName
	Subject      common.Address
	Counterparty common.Address
	Amount       uint256.Int
	AdminKind    AdminKind
	Status       bool

	BlockNumber uint64
	TxHash      common.Hash
	LogIndex    uint
}
