package service

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/ports"
)

// Attestor signs identity attestations with the identity provider's key.
type Attestor struct {
	key    *ecdsa.PrivateKey
	issuer common.Address
	logger watermill.LoggerAdapter
	now    func() time.Time
}

var _ ports.Attestor = (*Attestor)(nil)

// NewAttestor creates an attestor. A nil key makes every Attest call fail
// with core.ErrIssuerUnavailable.
func NewAttestor(key *ecdsa.PrivateKey, logger watermill.LoggerAdapter) *Attestor {
	a := &Attestor{
		key:    key,
		logger: logger,
		now:    time.Now,
	}
	if key != nil {
		a.issuer = crypto.PubkeyToAddress(key.PublicKey)
	}
	return a
}

// Issuer is the address the ledger must have registered as identity provider
func (a *Attestor) Issuer() common.Address {
	return a.issuer
}

// Attest vouches for subject as of now.
func (a *Attestor) Attest(ctx context.Context, subject common.Address) (core.Attestation, error) {
	if err := ctx.Err(); err != nil {
		return core.Attestation{}, err
	}

	now := a.now().Unix()
	if now < 0 {
		return core.Attestation{}, fmt.Errorf("%w: clock before unix epoch", core.ErrAttestationFailed)
	}
	return a.AttestAt(subject, uint64(now))
}

// AttestAt vouches for subject at an explicit timestamp. The same inputs
// always produce the same digest.
func (a *Attestor) AttestAt(subject common.Address, issuedAt uint64) (core.Attestation, error) {
	if a.key == nil {
		return core.Attestation{}, core.ErrIssuerUnavailable
	}
	if subject == (common.Address{}) {
		return core.Attestation{}, fmt.Errorf("%w: zero subject", core.ErrInvalidAddress)
	}

	digest := core.AttestationDigest(subject, issuedAt)
	sig, err := crypto.Sign(core.PersonalDigest(digest), a.key)
	if err != nil {
		a.logger.Error("Failed to sign attestation", err, watermill.LogFields{
			"subject":   subject.Hex(),
			"issued_at": issuedAt,
			"issuer":    a.issuer.Hex(),
		})
		return core.Attestation{}, fmt.Errorf("%w: %v", core.ErrAttestationFailed, err)
	}
	sig[crypto.RecoveryIDOffset] += 27

	return core.Attestation{
		Subject:   subject,
		IssuedAt:  issuedAt,
		Issuer:    a.issuer,
		Digest:    digest,
		Signature: sig,
	}, nil
}
