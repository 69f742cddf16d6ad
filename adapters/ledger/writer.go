package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/ports"
)

// TransactorSource yields signing options for the connected wallet.
type TransactorSource interface {
	TransactOpts(ctx context.Context) (*bind.TransactOpts, error)
}

// Backend is what the writer needs from an RPC client. *ethclient.Client
// satisfies it.
type Backend interface {
	bind.ContractBackend
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Writer implements the LedgerWriter interface. Every call is simulated
// first so a revert reason can be surfaced before anything is signed.
type Writer struct {
	address      common.Address
	abi          abi.ABI
	contract     *bind.BoundContract
	backend      Backend
	transactor   TransactorSource
	pollInterval time.Duration
}

// NewWriter creates a ledger writer for the contract at address
func NewWriter(address common.Address, backend Backend, transactor TransactorSource) (ports.LedgerWriter, error) {
	parsed, err := ParseABI()
	if err != nil {
		return nil, fmt.Errorf("failed to parse token ABI: %w", err)
	}

	return &Writer{
		address:      address,
		abi:          parsed,
		contract:     bind.NewBoundContract(address, parsed, backend, backend, backend),
		backend:      backend,
		transactor:   transactor,
		pollInterval: time.Second,
	}, nil
}

// Submit simulates then sends function(args...)
func (w *Writer) Submit(ctx context.Context, function string, args ...interface{}) (core.TxHandle, error) {
	method, ok := w.abi.Methods[function]
	if !ok || method.IsConstant() {
		return core.TxHandle{}, fmt.Errorf("unknown ledger function %q", function)
	}

	input, err := w.abi.Pack(function, args...)
	if err != nil {
		return core.TxHandle{}, fmt.Errorf("failed to encode %s call: %w", function, err)
	}

	opts, err := w.transactor.TransactOpts(ctx)
	if err != nil {
		return core.TxHandle{}, classifySubmitError(function, err)
	}

	call := ethereum.CallMsg{From: opts.From, To: &w.address, Data: input}
	if _, err := w.backend.CallContract(ctx, call, nil); err != nil {
		return core.TxHandle{}, classifySubmitError(function, err)
	}

	opts.Context = ctx
	tx, err := w.contract.RawTransact(opts, input)
	if err != nil {
		return core.TxHandle{}, classifySubmitError(function, err)
	}

	return core.TxHandle{Hash: tx.Hash(), Function: function}, nil
}

// WaitReceipt polls until the transaction is mined
func (w *Writer) WaitReceipt(ctx context.Context, handle core.TxHandle) (core.Receipt, error) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := w.backend.TransactionReceipt(ctx, handle.Hash)
		if err == nil {
			out := core.Receipt{
				TxHash:  receipt.TxHash,
				Success: receipt.Status == types.ReceiptStatusSuccessful,
				GasUsed: receipt.GasUsed,
			}
			if receipt.BlockNumber != nil {
				out.BlockNumber = receipt.BlockNumber.Uint64()
			}
			if !out.Success {
				return out, &core.RevertError{}
			}
			return out, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return core.Receipt{}, fmt.Errorf("failed to fetch receipt for %s: %w", handle.Hash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return core.Receipt{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

const revertPrefix = "execution reverted"

// classifySubmitError maps wallet and node errors onto the write-boundary
// taxonomy. Structured revert data wins over message text.
func classifySubmitError(function string, err error) error {
	if errors.Is(err, keystore.ErrLocked) || errors.Is(err, core.ErrSubmitRejected) || errors.Is(err, core.ErrUserRejected) {
		return fmt.Errorf("%s: %w", function, core.ErrSubmitRejected)
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if reason, ok := revertReason(dataErr.ErrorData()); ok {
			return &core.RevertError{Reason: reason}
		}
	}

	msg := err.Error()
	if idx := strings.Index(msg, revertPrefix); idx >= 0 {
		reason := strings.TrimSpace(strings.TrimPrefix(msg[idx+len(revertPrefix):], ":"))
		return &core.RevertError{Reason: reason}
	}

	return fmt.Errorf("failed to submit %s: %w", function, err)
}

func revertReason(data interface{}) (string, bool) {
	hexData, ok := data.(string)
	if !ok {
		return "", false
	}
	raw, err := hexutil.Decode(hexData)
	if err != nil {
		return "", false
	}
	reason, err := abi.UnpackRevert(raw)
	if err != nil {
		return "", false
	}
	return reason, true
}
