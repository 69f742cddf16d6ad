package core

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// The ledger rebuilds the attestation as
// keccak256(abi.encodePacked("Verified ", subject, "at ", issuedAt)).
// Any change here breaks every verification on the ledger side.
const (
	attestationTag       = "Verified "
	attestationSeparator = "at "
)

// Attestation is an issuer's signed statement that Subject passed an identity
// check at IssuedAt. It is consumed by exactly one ledger call.
type Attestation struct {
	Subject   common.Address `json:"subject"`
	IssuedAt  uint64         `json:"issued_at"`
	Issuer    common.Address `json:"issuer"`
	Digest    common.Hash    `json:"digest"`
	Signature hexutil.Bytes  `json:"signature"`
}

// AttestationMessage is the packed pre-hash encoding.
func AttestationMessage(subject common.Address, issuedAt uint64) []byte {
	ts := uint256.NewInt(issuedAt).Bytes32()

	msg := make([]byte, 0, len(attestationTag)+common.AddressLength+len(attestationSeparator)+len(ts))
	msg = append(msg, attestationTag...)
	msg = append(msg, subject.Bytes()...)
	msg = append(msg, attestationSeparator...)
	msg = append(msg, ts[:]...)
	return msg
}

// AttestationDigest hashes the packed encoding to 32 bytes.
func AttestationDigest(subject common.Address, issuedAt uint64) common.Hash {
	return crypto.Keccak256Hash(AttestationMessage(subject, issuedAt))
}

// PersonalDigest is the EIP-191 personal-message hash that actually gets
// signed, so the signature cannot be replayed as a raw-digest signature.
func PersonalDigest(digest common.Hash) []byte {
	return accounts.TextHash(digest.Bytes())
}

// RecoverAttestationIssuer recovers the signer of a, after checking the
// digest matches the subject and timestamp.
func RecoverAttestationIssuer(a Attestation) (common.Address, error) {
	if AttestationDigest(a.Subject, a.IssuedAt) != a.Digest {
		return common.Address{}, fmt.Errorf("%w: digest does not match subject and timestamp", ErrAttestationFailed)
	}
	if len(a.Signature) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: signature must be %d bytes", ErrAttestationFailed, crypto.SignatureLength)
	}

	sig := make([]byte, len(a.Signature))
	copy(sig, a.Signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(PersonalDigest(a.Digest), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrAttestationFailed, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
