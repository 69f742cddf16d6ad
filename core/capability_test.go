package core

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
)

func TestDeriveCapabilities(t *testing.T) {
	tests := []struct {
		name   string
		record CapabilityRecord
		want   []Capability
	}{
		{
			name:   "fresh address",
			record: CapabilityRecord{},
			want:   []Capability{CanRequestVerification},
		},
		{
			name:   "verified",
			record: CapabilityRecord{IsVerified: true},
			want:   []Capability{CanRequestVerification, CanTransferOrApprove},
		},
		{
			name:   "blocked and verified",
			record: CapabilityRecord{IsVerified: true, IsBlocked: true},
			want:   []Capability{},
		},
		{
			name:   "blocked minting admin keeps admin capabilities",
			record: CapabilityRecord{IsBlocked: true, IsMintingAdmin: true},
			want:   []Capability{CanMint, CanVoteAdminMinting},
		},
		{
			name:   "restriction admin",
			record: CapabilityRecord{IsRestrictionAdmin: true, IsBlocked: true},
			want:   []Capability{CanManageAddresses, CanSetLimits, CanVoteAdminRestriction},
		},
		{
			name:   "idp admin",
			record: CapabilityRecord{IsIdpAdmin: true, IsBlocked: true},
			want:   []Capability{CanManageIdentityProviders, CanVoteAdminIdp},
		},
		{
			name:   "identity provider flag grants nothing",
			record: CapabilityRecord{IsIdentityProvider: true, IsBlocked: true},
			want:   []Capability{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveCapabilities(tt.record).List()
			assert.ElementsMatch(t, tt.want, got)
		})
	}
}

func TestAuthorize(t *testing.T) {
	admin := CapabilityRecord{IsMintingAdmin: true}

	assert.Equal(t, Deny(DenyNotAuthenticated), Authorize(StateAnonymous, admin, CanMint))
	assert.Equal(t, Deny(DenyNotAuthenticated), Authorize(StateExpired, admin, ""))
	assert.Equal(t, Allow, Authorize(StateAuthenticated, admin, CanMint))
	assert.Equal(t, Allow, Authorize(StateAuthenticated, CapabilityRecord{}, ""))
	assert.Equal(t, Deny(DenyMissingCapability), Authorize(StateAuthenticated, admin, CanSetLimits))

	assert.ErrorIs(t, Deny(DenyNotAuthenticated).Err(), ErrNotAuthenticated)
	assert.ErrorIs(t, Deny(DenyMissingCapability).Err(), ErrMissingCapability)
	assert.NoError(t, Allow.Err())
}

func TestRecordStatusAndLimits(t *testing.T) {
	assert.Equal(t, "Blocked", CapabilityRecord{IsBlocked: true, IsVerified: true}.Status())
	assert.Equal(t, "Unverified", CapabilityRecord{}.Status())
	assert.Equal(t, "Verified", CapabilityRecord{IsVerified: true}.Status())

	r := CapabilityRecord{TransferLimit: *uint256.NewInt(500), DailyTransferred: *uint256.NewInt(120)}
	assert.False(t, r.Unlimited())
	remaining := r.RemainingTransfer()
	assert.Equal(t, uint64(380), remaining.Uint64())

	r.DailyTransferred = *uint256.NewInt(900)
	remaining = r.RemainingTransfer()
	assert.True(t, remaining.IsZero())

	assert.True(t, CapabilityRecord{}.Unlimited())
}
