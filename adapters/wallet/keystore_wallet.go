package wallet

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/ports"
)

type passphraseKey struct{}

// WithPassphrase attaches the user's unlock passphrase to ctx. It stands in
// for the wallet's approval prompt.
func WithPassphrase(ctx context.Context, passphrase string) context.Context {
	return context.WithValue(ctx, passphraseKey{}, passphrase)
}

func passphraseFrom(ctx context.Context) (string, bool) {
	p, ok := ctx.Value(passphraseKey{}).(string)
	return p, ok && p != ""
}

// KeystoreWallet is a wallet provider backed by an encrypted go-ethereum
// keystore. Requesting accounts unlocks the selected account; disconnecting
// locks it again.
type KeystoreWallet struct {
	ks      *keystore.KeyStore
	account common.Address // zero selects the first keystore account
	chainID *big.Int

	mu        sync.RWMutex
	connected *accounts.Account
}

// NewKeystoreWallet creates a wallet over ks. A nil ks yields a provider that
// reports itself unavailable.
func NewKeystoreWallet(ks *keystore.KeyStore, account common.Address, chainID *big.Int) *KeystoreWallet {
	return &KeystoreWallet{
		ks:      ks,
		account: account,
		chainID: chainID,
	}
}

var _ ports.WalletProvider = (*KeystoreWallet)(nil)

// RequestAccounts unlocks the configured account with the passphrase carried
// by ctx
func (w *KeystoreWallet) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	if w.ks == nil {
		return nil, core.ErrProviderUnavailable
	}

	account, ok := w.selectAccount()
	if !ok {
		return nil, nil
	}

	passphrase, ok := passphraseFrom(ctx)
	if !ok {
		return nil, fmt.Errorf("%w: no passphrase supplied", core.ErrUserRejected)
	}

	if err := w.ks.Unlock(account, passphrase); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrUserRejected, err)
	}

	if err := ctx.Err(); err != nil {
		_ = w.ks.Lock(account.Address)
		return nil, err
	}

	w.mu.Lock()
	w.connected = &account
	w.mu.Unlock()

	return []common.Address{account.Address}, nil
}

// ConnectedAddress returns the unlocked account, if any
func (w *KeystoreWallet) ConnectedAddress(ctx context.Context) (common.Address, bool, error) {
	if w.ks == nil {
		return common.Address{}, false, core.ErrProviderUnavailable
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.connected == nil {
		return common.Address{}, false, nil
	}
	return w.connected.Address, true, nil
}

// Disconnect locks the connected account
func (w *KeystoreWallet) Disconnect(ctx context.Context) error {
	if w.ks == nil {
		return nil
	}

	w.mu.Lock()
	account := w.connected
	w.connected = nil
	w.mu.Unlock()

	if account == nil {
		return nil
	}
	if err := w.ks.Lock(account.Address); err != nil {
		return fmt.Errorf("failed to lock %s: %w", account.Address.Hex(), err)
	}
	return nil
}

// Watch forwards keystore wallet events to onChange. A dropped wallet file
// for the connected account also disconnects it.
func (w *KeystoreWallet) Watch(ctx context.Context, onChange func()) error {
	if w.ks == nil {
		return core.ErrProviderUnavailable
	}

	sink := make(chan accounts.WalletEvent, 16)
	sub := w.ks.Subscribe(sink)
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-sub.Err():
			return err
		case ev := <-sink:
			if ev.Kind == accounts.WalletDropped {
				w.dropIfGone()
			}
			onChange()
		}
	}
}

// TransactOpts returns signing options for the connected account. Signing
// fails with keystore.ErrLocked once the account has been disconnected.
func (w *KeystoreWallet) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	w.mu.RLock()
	account := w.connected
	w.mu.RUnlock()

	if w.ks == nil || account == nil {
		return nil, fmt.Errorf("%w: wallet not connected", core.ErrSubmitRejected)
	}

	opts, err := bind.NewKeyStoreTransactorWithChainID(w.ks, *account, w.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to build transactor: %w", err)
	}
	opts.Context = ctx
	return opts, nil
}

func (w *KeystoreWallet) selectAccount() (accounts.Account, bool) {
	if w.account != (common.Address{}) {
		account, err := w.ks.Find(accounts.Account{Address: w.account})
		if err != nil {
			return accounts.Account{}, false
		}
		return account, true
	}

	all := w.ks.Accounts()
	if len(all) == 0 {
		return accounts.Account{}, false
	}
	return all[0], true
}

func (w *KeystoreWallet) dropIfGone() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.connected != nil && !w.ks.HasAddress(w.connected.Address) {
		w.connected = nil
	}
}
