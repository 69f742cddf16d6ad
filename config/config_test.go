package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/warden/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const contract = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

func TestLoadRequiresContract(t *testing.T) {
	t.Setenv("CONTRACT_ADDRESS", "")
	os.Unsetenv("CONTRACT_ADDRESS")

	_, err := Load("")
	assert.ErrorIs(t, err, ErrMissingContract)

	t.Setenv("CONTRACT_ADDRESS", "0x1234")
	_, err = Load("")
	assert.ErrorIs(t, err, core.ErrInvalidAddress)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CONTRACT_ADDRESS", contract)
	t.Setenv("CHAIN_ID", "1")
	t.Setenv("SESSION_TTL", "2h")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)

	assert.Equal(t, common.HexToAddress(contract), cfg.Contract)
	assert.Equal(t, int64(1), cfg.ChainID)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL.Duration)
	assert.Equal(t, 30*time.Second, cfg.RefreshInterval.Duration)
	assert.Equal(t, ":9000", cfg.ListenAddr)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warden.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
contract_address = "`+contract+`"
rpc_url = "http://node:8545"
listen_addr = ":8080"
refresh_interval = "1m"
`), 0o600))

	t.Setenv("LISTEN_ADDR", ":7000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://node:8545", cfg.RPCURL)
	assert.Equal(t, ":7000", cfg.ListenAddr)
	assert.Equal(t, time.Minute, cfg.RefreshInterval.Duration)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL.Duration)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("CONTRACT_ADDRESS", contract)

	t.Setenv("CHAIN_ID", "mainnet")
	_, err := Load("")
	assert.Error(t, err)

	t.Setenv("CHAIN_ID", "1")
	t.Setenv("SESSION_TTL", "0s")
	_, err = Load("")
	assert.Error(t, err)

	t.Setenv("SESSION_TTL", "1h")
	t.Setenv("WALLET_ACCOUNT", "bob")
	_, err = Load("")
	assert.ErrorIs(t, err, core.ErrInvalidAddress)
}
