package ports

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// WalletProvider is the injected wallet integration.
type WalletProvider interface {
	// RequestAccounts asks the user for account access. It may block on
	// human approval for an unbounded time.
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	// ConnectedAddress reports the connected account, ok is false if none.
	ConnectedAddress(ctx context.Context) (addr common.Address, ok bool, err error)
	Disconnect(ctx context.Context) error
	// Watch calls onChange whenever the connected account or connection
	// state changes, until ctx is done.
	Watch(ctx context.Context, onChange func()) error
}
