package keys

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/golang-jwt/jwt/v5"
)

// IssuerKeyFile is the on-disk form of the identity provider's signing key
type IssuerKeyFile struct {
	Address    common.Address `json:"address"`
	PrivateKey hexutil.Bytes  `json:"privateKey"`
}

// GenerateIssuerKey creates a fresh secp256k1 key and writes it to path,
// replacing any existing file.
func GenerateIssuerKey(path string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate issuer key: %w", err)
	}

	data, err := json.MarshalIndent(IssuerKeyFile{
		Address:    crypto.PubkeyToAddress(key.PublicKey),
		PrivateKey: crypto.FromECDSA(key),
	}, "", "  ")
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, err
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write issuer key: %w", err)
	}
	return key, nil
}

// LoadIssuerKey reads a key written by GenerateIssuerKey. The stored address
// must match the key.
func LoadIssuerKey(path string) (*ecdsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file IssuerKeyFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("malformed issuer key file %s: %w", path, err)
	}

	key, err := crypto.ToECDSA(file.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid issuer key in %s: %w", path, err)
	}
	if addr := crypto.PubkeyToAddress(key.PublicKey); file.Address != (common.Address{}) && addr != file.Address {
		return nil, fmt.Errorf("issuer key file %s: key belongs to %s, not %s", path, addr.Hex(), file.Address.Hex())
	}
	return key, nil
}

// LoadOrGenerateIssuerKey loads the key at path, generating one when the
// file does not exist yet.
func LoadOrGenerateIssuerKey(path string) (*ecdsa.PrivateKey, bool, error) {
	key, err := LoadIssuerKey(path)
	if errors.Is(err, os.ErrNotExist) {
		key, err = GenerateIssuerKey(path)
		return key, true, err
	}
	return key, false, err
}

// LoadSessionKey reads the P-256 key that signs session tokens from a PEM
// file. An empty path yields an ephemeral key, so sessions do not survive a
// restart.
func LoadSessionKey(path string) (*ecdsa.PrivateKey, error) {
	if path == "" {
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	key, err := jwt.ParseECPrivateKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("invalid session key in %s: %w", path, err)
	}
	return key, nil
}
