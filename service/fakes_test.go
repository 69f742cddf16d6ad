package service

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/warden/adapters/store"
	"github.com/layer-3/warden/adapters/tokenizer"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/ports"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	bob   = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
	carol = common.HexToAddress("0x90F79bf6EB2c4f870365E785982E1f101E93b906")
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeWallet struct {
	mu          sync.Mutex
	accounts    []common.Address
	err         error
	connected   *common.Address
	gate        chan struct{}
	disconnects int
}

func (w *fakeWallet) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	if w.gate != nil {
		select {
		case <-w.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return nil, w.err
	}
	if len(w.accounts) > 0 {
		addr := w.accounts[0]
		w.connected = &addr
	}
	return w.accounts, nil
}

func (w *fakeWallet) ConnectedAddress(ctx context.Context) (common.Address, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.connected == nil {
		return common.Address{}, false, nil
	}
	return *w.connected, true, nil
}

func (w *fakeWallet) Disconnect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.connected = nil
	w.disconnects++
	return nil
}

func (w *fakeWallet) Watch(ctx context.Context, onChange func()) error {
	<-ctx.Done()
	return nil
}

func (w *fakeWallet) connect(addr common.Address) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.connected = &addr
}

type fakeReader struct {
	mu      sync.Mutex
	records map[common.Address]core.CapabilityRecord
	err     error
	gate    chan struct{}
	reads   int
	balance *big.Int
	fields  map[string]*big.Int
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		records: map[common.Address]core.CapabilityRecord{},
		fields:  map[string]*big.Int{},
	}
}

func (r *fakeReader) ReadAddressInfo(ctx context.Context, address common.Address) (core.CapabilityRecord, error) {
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return core.CapabilityRecord{}, ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	if r.err != nil {
		return core.CapabilityRecord{}, r.err
	}
	return r.records[address], nil
}

func (r *fakeReader) ReadField(ctx context.Context, address common.Address, field string) (interface{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.fields[field]; ok {
		return v, nil
	}
	if field == "balanceOf" && r.balance != nil {
		return r.balance, nil
	}
	return big.NewInt(0), nil
}

func (r *fakeReader) setField(field string, v *big.Int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fields[field] = v
}

func (r *fakeReader) set(addr common.Address, rec core.CapabilityRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[addr] = rec
}

func (r *fakeReader) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *fakeReader) readCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reads
}

type submittedCall struct {
	function string
	args     []interface{}
}

type fakeWriter struct {
	mu        sync.Mutex
	calls     []submittedCall
	submitErr error
	receipt   core.Receipt
}

func (w *fakeWriter) Submit(ctx context.Context, function string, args ...interface{}) (core.TxHandle, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.submitErr != nil {
		return core.TxHandle{}, w.submitErr
	}
	w.calls = append(w.calls, submittedCall{function: function, args: args})
	return core.TxHandle{Hash: common.HexToHash("0x01"), Function: function}, nil
}

func (w *fakeWriter) WaitReceipt(ctx context.Context, handle core.TxHandle) (core.Receipt, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	r := w.receipt
	r.TxHash = handle.Hash
	r.Success = true
	return r, nil
}

type fixture struct {
	clock     *testClock
	wallet    *fakeWallet
	store     ports.Store
	tokenizer ports.Tokenizer
	reader    *fakeReader
	writer    *fakeWriter
	sessions  *SessionStore
	mirror    *Mirror
	service   *AuthService
	issuerKey *ecdsa.PrivateKey
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	signKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	f := &fixture{
		clock:  newTestClock(),
		wallet: &fakeWallet{accounts: []common.Address{alice}},
		reader: newFakeReader(),
		writer: &fakeWriter{},
	}
	f.store = store.NewMemoryStoreWithClock(f.clock.Now)
	f.tokenizer = tokenizer.NewJWTTokenizerWithClock(signKey, f.clock.Now)
	f.sessions = f.newSessions()
	f.mirror = NewMirror(f.reader, watermill.NopLogger{})

	f.issuerKey = newIssuerKey(t)
	attestor := NewAttestor(f.issuerKey, watermill.NopLogger{})
	attestor.now = f.clock.Now

	f.service = NewAuthService(
		f.sessions,
		f.mirror,
		NewRouteGuard(DefaultRoutes),
		f.reader,
		f.writer,
		attestor,
		watermill.NopLogger{},
	)
	return f
}

// newSessions simulates a process restart: same storage, fresh memory.
func (f *fixture) newSessions() *SessionStore {
	return NewSessionStore(f.wallet, f.store, f.tokenizer, watermill.NopLogger{}, WithSessionClock(f.clock.Now))
}
