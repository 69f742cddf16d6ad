package ledger

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	contractAddr = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	user         = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	other        = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
)

func newTestWatcher(t *testing.T) *Watcher {
	t.Helper()
	w, err := NewWatcher(contractAddr, nil, nil, watermill.NopLogger{})
	require.NoError(t, err)
	return w
}

// buildLog encodes an event the way the ledger emits it.
func buildLog(t *testing.T, name string, indexed []common.Address, data ...interface{}) types.Log {
	t.Helper()
	parsed, err := ParseABI()
	require.NoError(t, err)

	ev := parsed.Events[name]
	topics := []common.Hash{ev.ID}
	for _, a := range indexed {
		topics = append(topics, common.BytesToHash(a.Bytes()))
	}

	var payload []byte
	if len(data) > 0 {
		payload, err = ev.Inputs.NonIndexed().Pack(data...)
		require.NoError(t, err)
	}

	return types.Log{
		Address:     contractAddr,
		Topics:      topics,
		Data:        payload,
		BlockNumber: 42,
		TxHash:      common.HexToHash("0x01"),
		Index:       7,
	}
}

func TestWatcherDecode(t *testing.T) {
	w := newTestWatcher(t)

	t.Run("limit", func(t *testing.T) {
		ev, err := w.decode(core.EventTransferLimitSet, buildLog(t, "TransferLimitSet", []common.Address{user}, big.NewInt(500)))
		require.NoError(t, err)
		assert.Equal(t, user, ev.Subject)
		assert.Equal(t, *uint256.NewInt(500), ev.Amount)
		assert.Equal(t, uint64(42), ev.BlockNumber)
		assert.Equal(t, uint(7), ev.LogIndex)
	})

	t.Run("blocked", func(t *testing.T) {
		ev, err := w.decode(core.EventAddressBlocked, buildLog(t, "AddressBlocked", []common.Address{user}))
		require.NoError(t, err)
		assert.Equal(t, core.EventAddressBlocked, ev.Name)
		assert.Equal(t, user, ev.Subject)
	})

	t.Run("admin status", func(t *testing.T) {
		ev, err := w.decode(core.EventAdminStatusChanged, buildLog(t, "AdminStatusChanged", []common.Address{user}, uint8(core.AdminRestriction), true))
		require.NoError(t, err)
		assert.Equal(t, core.AdminRestriction, ev.AdminKind)
		assert.True(t, ev.Status)
	})

	t.Run("transfer", func(t *testing.T) {
		ev, err := w.decode(core.EventTokensTransferred, buildLog(t, "TokensTransferred", []common.Address{user, other}, big.NewInt(3)))
		require.NoError(t, err)
		assert.Equal(t, user, ev.Subject)
		assert.Equal(t, other, ev.Counterparty)
	})

	t.Run("removed log", func(t *testing.T) {
		l := buildLog(t, "AddressBlocked", []common.Address{user})
		l.Removed = true
		_, err := w.decode(core.EventAddressBlocked, l)
		assert.ErrorIs(t, err, core.ErrEventDecodeSkipped)
	})

	t.Run("signature mismatch", func(t *testing.T) {
		_, err := w.decode(core.EventAddressUnblocked, buildLog(t, "AddressBlocked", []common.Address{user}))
		assert.ErrorIs(t, err, core.ErrEventDecodeSkipped)
	})
}

func TestRecordFromOutputs(t *testing.T) {
	out := []interface{}{
		big.NewInt(10), big.NewInt(20), big.NewInt(500),
		true, false, false, true, false, true,
	}
	rec, err := recordFromOutputs(out)
	require.NoError(t, err)
	assert.Equal(t, *uint256.NewInt(10), rec.DailyTransferred)
	assert.Equal(t, *uint256.NewInt(20), rec.DailyMinted)
	assert.Equal(t, *uint256.NewInt(500), rec.TransferLimit)
	assert.True(t, rec.IsVerified)
	assert.True(t, rec.IsMintingAdmin)
	assert.True(t, rec.IsIdpAdmin)
	assert.False(t, rec.IsRestrictionAdmin)

	_, err = recordFromOutputs(out[:8])
	assert.Error(t, err)

	bad := append([]interface{}{}, out...)
	bad[0] = "10"
	_, err = recordFromOutputs(bad)
	assert.Error(t, err)
}

type dataError struct {
	msg  string
	data interface{}
}

func (e dataError) Error() string          { return e.msg }
func (e dataError) ErrorData() interface{} { return e.data }

func revertData(t *testing.T, reason string) string {
	t.Helper()
	// Error(string) selector followed by the ABI-encoded reason.
	selector := crypto.Keccak256([]byte("Error(string)"))[:4]
	stringTy, err := abi.NewType("string", "", nil)
	require.NoError(t, err)
	body, err := abi.Arguments{{Type: stringTy}}.Pack(reason)
	require.NoError(t, err)
	return hexutil.Encode(append(selector, body...))
}

func TestClassifySubmitError(t *testing.T) {
	t.Run("structured revert", func(t *testing.T) {
		err := classifySubmitError("mint", dataError{msg: "execution reverted", data: revertData(t, "Daily mint limit exceeded")})
		var revert *core.RevertError
		require.ErrorAs(t, err, &revert)
		assert.Equal(t, "Daily mint limit exceeded", revert.Reason)
		assert.Equal(t, "Daily mint limit exceeded", core.UserMessage(err))
	})

	t.Run("textual revert", func(t *testing.T) {
		err := classifySubmitError("transfer", errors.New("execution reverted: Address is blocked"))
		assert.ErrorIs(t, err, core.ErrSubmitReverted)
		assert.Equal(t, "Address is blocked", core.UserMessage(err))
	})

	t.Run("locked wallet", func(t *testing.T) {
		err := classifySubmitError("approve", fmt.Errorf("sign: %w", keystore.ErrLocked))
		assert.ErrorIs(t, err, core.ErrSubmitRejected)
	})

	t.Run("transport failure", func(t *testing.T) {
		err := classifySubmitError("approve", errors.New("connection refused"))
		assert.NotErrorIs(t, err, core.ErrSubmitReverted)
		assert.Equal(t, core.GenericFailureMessage, core.UserMessage(err))
	})
}

func TestABICoversServiceCalls(t *testing.T) {
	parsed, err := ParseABI()
	require.NoError(t, err)

	writes := []string{service.VerifyIdentityFunction}
	for name := range service.Actions {
		writes = append(writes, name)
	}
	for _, name := range writes {
		method, ok := parsed.Methods[name]
		require.True(t, ok, name)
		assert.False(t, method.IsConstant(), name)
	}

	views := []string{"getAddressInfo", "balanceOf", "verifiedAddresses", "expirationTime"}
	for _, params := range service.ViewParameters {
		for _, p := range params {
			views = append(views, p.Field)
		}
	}
	for _, name := range views {
		method, ok := parsed.Methods[name]
		require.True(t, ok, name)
		assert.True(t, method.IsConstant(), name)
	}

	transferFrom := parsed.Methods["transferFrom"]
	assert.Len(t, transferFrom.Inputs, 3)
}
