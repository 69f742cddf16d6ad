package core

import (
	"encoding/hex"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttestationMessageLayout(t *testing.T) {
	subject := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	msg := AttestationMessage(subject, 0x0102)

	require.Len(t, msg, 9+20+3+32)
	assert.Equal(t, "Verified ", string(msg[:9]))
	assert.Equal(t, subject.Bytes(), msg[9:29])
	assert.Equal(t, "at ", string(msg[29:32]))
	assert.Equal(t, "0000000000000000000000000000000000000000000000000000000000000102", hex.EncodeToString(msg[32:]))

	assert.Equal(t, crypto.Keccak256Hash(msg), AttestationDigest(subject, 0x0102))
}

func TestPersonalDigestPrefix(t *testing.T) {
	digest := common.HexToHash("0xabcdef")
	want := crypto.Keccak256(append([]byte("\x19Ethereum Signed Message:\n32"), digest.Bytes()...))
	assert.Equal(t, want, PersonalDigest(digest))
}

func TestRecoverAttestationIssuer(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	subject := common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")

	digest := AttestationDigest(subject, 99)
	sig, err := crypto.Sign(PersonalDigest(digest), key)
	require.NoError(t, err)

	a := Attestation{Subject: subject, IssuedAt: 99, Digest: digest, Signature: sig}

	// v as 0/1 and as 27/28 both recover
	issuer, err := RecoverAttestationIssuer(a)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), issuer)

	shifted := append([]byte(nil), sig...)
	shifted[crypto.RecoveryIDOffset] += 27
	a.Signature = shifted
	issuer, err = RecoverAttestationIssuer(a)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), issuer)

	a.Signature = shifted[:64]
	_, err = RecoverAttestationIssuer(a)
	assert.ErrorIs(t, err, ErrAttestationFailed)
}
