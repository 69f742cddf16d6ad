package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/warden/core"
)

// ErrMissingContract is returned when no ledger contract address is configured
var ErrMissingContract = errors.New("CONTRACT_ADDRESS is not set")

// Duration is a time.Duration written as "24h" in TOML
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the warden service configuration
type Config struct {
	ContractAddress string   `toml:"contract_address"`
	RPCURL          string   `toml:"rpc_url"`
	ChainID         int64    `toml:"chain_id"`
	RedisURL        string   `toml:"redis_url,omitempty"`
	ListenAddr      string   `toml:"listen_addr"`
	KeystoreDir     string   `toml:"keystore_dir"`
	WalletAccount   string   `toml:"wallet_account,omitempty"`
	SessionKeyFile  string   `toml:"session_key_file,omitempty"`
	SessionTTL      Duration `toml:"session_ttl"`
	RefreshInterval Duration `toml:"refresh_interval"`
	IssuerKeyFile   string   `toml:"issuer_key_file,omitempty"`
	AttestorURL     string   `toml:"attestor_url,omitempty"`
	IssuerAddress   string   `toml:"issuer_address,omitempty"`

	// Contract is ContractAddress after validation
	Contract common.Address `toml:"-"`
}

// Default returns the configuration used for anything left unset
func Default() Config {
	return Config{
		RPCURL:          "http://127.0.0.1:8545",
		ChainID:         31337,
		ListenAddr:      ":9000",
		KeystoreDir:     "keystore",
		SessionTTL:      Duration{24 * time.Hour},
		RefreshInterval: Duration{30 * time.Second},
	}
}

// Load reads the optional TOML file at path, then applies environment
// overrides and validates the result. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks required settings and fills Contract
func (c *Config) Validate() error {
	if c.ContractAddress == "" {
		return ErrMissingContract
	}
	contract, err := core.ParseAddress(c.ContractAddress)
	if err != nil {
		return fmt.Errorf("CONTRACT_ADDRESS: %w", err)
	}
	c.Contract = contract

	if c.WalletAccount != "" {
		if _, err := core.ParseAddress(c.WalletAccount); err != nil {
			return fmt.Errorf("WALLET_ACCOUNT: %w", err)
		}
	}
	if c.IssuerAddress != "" {
		if _, err := core.ParseAddress(c.IssuerAddress); err != nil {
			return fmt.Errorf("ISSUER_ADDRESS: %w", err)
		}
	}
	if c.SessionTTL.Duration <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if c.RefreshInterval.Duration < 0 {
		return fmt.Errorf("REFRESH_INTERVAL must not be negative, got %s", c.RefreshInterval)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	texts := map[string]*string{
		"CONTRACT_ADDRESS": &c.ContractAddress,
		"RPC_URL":          &c.RPCURL,
		"REDIS_URL":        &c.RedisURL,
		"LISTEN_ADDR":      &c.ListenAddr,
		"KEYSTORE_DIR":     &c.KeystoreDir,
		"WALLET_ACCOUNT":   &c.WalletAccount,
		"SESSION_KEY_FILE": &c.SessionKeyFile,
		"ISSUER_KEY_FILE":  &c.IssuerKeyFile,
		"ATTESTOR_URL":     &c.AttestorURL,
		"ISSUER_ADDRESS":   &c.IssuerAddress,
	}
	for name, dst := range texts {
		if v, ok := lookup(name); ok {
			*dst = v
		}
	}

	durations := map[string]*Duration{
		"SESSION_TTL":      &c.SessionTTL,
		"REFRESH_INTERVAL": &c.RefreshInterval,
	}
	for name, dst := range durations {
		if v, ok := lookup(name); ok {
			if err := dst.UnmarshalText([]byte(v)); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
	}

	if v, ok := lookup("CHAIN_ID"); ok {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("CHAIN_ID: %w", err)
		}
		c.ChainID = id
	}

	return nil
}
