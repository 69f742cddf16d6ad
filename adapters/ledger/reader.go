package ledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/ports"
)

// Reader implements the LedgerReader interface against the token contract
type Reader struct {
	contract *bind.BoundContract
	abi      abi.ABI
}

// NewReader creates a ledger reader for the contract at address
func NewReader(address common.Address, caller bind.ContractCaller) (ports.LedgerReader, error) {
	parsed, err := ParseABI()
	if err != nil {
		return nil, fmt.Errorf("failed to parse token ABI: %w", err)
	}

	return &Reader{
		contract: bind.NewBoundContract(address, parsed, caller, nil, nil),
		abi:      parsed,
	}, nil
}

// ReadAddressInfo reads the full capability record of address in one call
func (r *Reader) ReadAddressInfo(ctx context.Context, address common.Address) (core.CapabilityRecord, error) {
	var out []interface{}
	if err := r.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getAddressInfo", address); err != nil {
		return core.CapabilityRecord{}, fmt.Errorf("getAddressInfo(%s): %w", address.Hex(), err)
	}

	return recordFromOutputs(out)
}

// ReadField reads a single view function. Functions taking an address are
// called with address; parameterless ones ignore it.
func (r *Reader) ReadField(ctx context.Context, address common.Address, field string) (interface{}, error) {
	method, ok := r.abi.Methods[field]
	if !ok || !method.IsConstant() {
		return nil, fmt.Errorf("unknown view function %q", field)
	}

	var params []interface{}
	switch len(method.Inputs) {
	case 0:
	case 1:
		params = append(params, address)
	default:
		return nil, fmt.Errorf("view function %q takes %d arguments", field, len(method.Inputs))
	}

	var out []interface{}
	if err := r.contract.Call(&bind.CallOpts{Context: ctx}, &out, field, params...); err != nil {
		return nil, fmt.Errorf("%s(%s): %w", field, address.Hex(), err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s returned nothing", field)
	}

	return out[0], nil
}

func recordFromOutputs(out []interface{}) (core.CapabilityRecord, error) {
	if len(out) != 9 {
		return core.CapabilityRecord{}, fmt.Errorf("getAddressInfo returned %d values, want 9", len(out))
	}

	var rec core.CapabilityRecord
	counters := []*uint256.Int{&rec.DailyTransferred, &rec.DailyMinted, &rec.TransferLimit}
	for i, dst := range counters {
		v, ok := out[i].(*big.Int)
		if !ok {
			return core.CapabilityRecord{}, fmt.Errorf("getAddressInfo value %d: unexpected type %T", i, out[i])
		}
		if err := setUint256(dst, v); err != nil {
			return core.CapabilityRecord{}, fmt.Errorf("getAddressInfo value %d: %w", i, err)
		}
	}

	flags := []*bool{
		&rec.IsVerified, &rec.IsBlocked, &rec.IsIdentityProvider,
		&rec.IsMintingAdmin, &rec.IsRestrictionAdmin, &rec.IsIdpAdmin,
	}
	for i, dst := range flags {
		v, ok := out[3+i].(bool)
		if !ok {
			return core.CapabilityRecord{}, fmt.Errorf("getAddressInfo value %d: unexpected type %T", 3+i, out[3+i])
		}
		*dst = v
	}

	return rec, nil
}

func setUint256(dst *uint256.Int, v *big.Int) error {
	if v == nil || v.Sign() < 0 {
		return fmt.Errorf("invalid uint256 %v", v)
	}
	if overflow := dst.SetFromBig(v); overflow {
		return fmt.Errorf("value %s overflows uint256", v)
	}
	return nil
}
