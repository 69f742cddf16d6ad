package core

import (
	"sort"

	"github.com/holiman/uint256"
)

// CapabilityRecord is the cached copy of one address's ledger-resident flags
// and counters. TransferLimit zero means unlimited. The ledger stays
// authoritative; this is a best-effort view.
type CapabilityRecord struct {
	DailyTransferred   uint256.Int
	DailyMinted        uint256.Int
	TransferLimit      uint256.Int
	IsVerified         bool
	IsBlocked          bool
	IsIdentityProvider bool
	IsMintingAdmin     bool
	IsRestrictionAdmin bool
	IsIdpAdmin         bool
}

// Unlimited reports whether no daily transfer limit is set.
func (r CapabilityRecord) Unlimited() bool {
	return r.TransferLimit.IsZero()
}

// RemainingTransfer is the unspent part of today's limit. It is meaningless
// when Unlimited is true and floors at zero.
func (r CapabilityRecord) RemainingTransfer() uint256.Int {
	var out uint256.Int
	if r.TransferLimit.Cmp(&r.DailyTransferred) <= 0 {
		return out
	}
	out.Sub(&r.TransferLimit, &r.DailyTransferred)
	return out
}

// Status is the short label shown next to the connected address.
func (r CapabilityRecord) Status() string {
	switch {
	case r.IsBlocked:
		return "Blocked"
	case !r.IsVerified:
		return "Unverified"
	default:
		return "Verified"
	}
}

// Capability is a named permission used for UI gating only.
type Capability string

const (
	CanMint                    Capability = "CanMint"
	CanTransferOrApprove       Capability = "CanTransferOrApprove"
	CanManageAddresses         Capability = "CanManageAddresses"
	CanSetLimits               Capability = "CanSetLimits"
	CanManageIdentityProviders Capability = "CanManageIdentityProviders"
	CanRequestVerification     Capability = "CanRequestVerification"
	CanVoteAdminMinting        Capability = "CanVoteAdminMinting"
	CanVoteAdminRestriction    Capability = "CanVoteAdminRestriction"
	CanVoteAdminIdp            Capability = "CanVoteAdminIdp"
)

// CapabilitySet is derived on demand and never stored.
type CapabilitySet map[Capability]struct{}

// Has reports whether c is in the set.
func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// List returns the capabilities in a stable order.
func (s CapabilitySet) List() []Capability {
	out := make([]Capability, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DeriveCapabilities maps a record to its capability set. It is pure and
// cheap; callers re-derive on every evaluation.
func DeriveCapabilities(r CapabilityRecord) CapabilitySet {
	set := CapabilitySet{}
	add := func(ok bool, caps ...Capability) {
		if !ok {
			return
		}
		for _, c := range caps {
			set[c] = struct{}{}
		}
	}

	add(r.IsMintingAdmin, CanMint, CanVoteAdminMinting)
	add(r.IsRestrictionAdmin, CanManageAddresses, CanSetLimits, CanVoteAdminRestriction)
	add(r.IsIdpAdmin, CanManageIdentityProviders, CanVoteAdminIdp)
	add(!r.IsBlocked && r.IsVerified, CanTransferOrApprove)
	add(!r.IsBlocked, CanRequestVerification)

	return set
}

// DenyReason explains a Deny decision.
type DenyReason string

const (
	DenyNotAuthenticated  DenyReason = "NotAuthenticated"
	DenyMissingCapability DenyReason = "MissingCapability"
)

// Decision is the outcome of Authorize. Denials are control flow, not errors.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

// Allow is the permitting decision.
var Allow = Decision{Allowed: true}

// Deny builds a denying decision.
func Deny(reason DenyReason) Decision {
	return Decision{Reason: reason}
}

// Err converts a denial into the matching sentinel, nil when allowed.
func (d Decision) Err() error {
	switch {
	case d.Allowed:
		return nil
	case d.Reason == DenyNotAuthenticated:
		return ErrNotAuthenticated
	default:
		return ErrMissingCapability
	}
}

// Authorize decides whether the session may use required. An empty required
// capability only asks for authentication. Unauthenticated sessions derive
// the empty set.
func Authorize(state SessionState, record CapabilityRecord, required Capability) Decision {
	if state != StateAuthenticated {
		return Deny(DenyNotAuthenticated)
	}
	if required == "" {
		return Allow
	}
	if !DeriveCapabilities(record).Has(required) {
		return Deny(DenyMissingCapability)
	}
	return Allow
}
