package ports

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/warden/core"
)

// LedgerReader reads ledger state.
type LedgerReader interface {
	ReadAddressInfo(ctx context.Context, address common.Address) (core.CapabilityRecord, error)
	ReadField(ctx context.Context, address common.Address, field string) (interface{}, error)
}

// LedgerWriter submits ledger calls.
type LedgerWriter interface {
	// Submit returns core.ErrSubmitRejected when signing is declined and a
	// *core.RevertError when simulation shows the ledger would reject.
	Submit(ctx context.Context, function string, args ...interface{}) (core.TxHandle, error)
	WaitReceipt(ctx context.Context, handle core.TxHandle) (core.Receipt, error)
}

// Attestor produces identity attestations.
type Attestor interface {
	Attest(ctx context.Context, subject common.Address) (core.Attestation, error)
}
