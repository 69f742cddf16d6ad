package core

import (
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// TokenDecimals is the ledger token's decimal places.
const TokenDecimals = 18

// FormatUnits renders a raw token amount as a decimal string.
func FormatUnits(v uint256.Int) string {
	return decimal.NewFromBigInt(v.ToBig(), -TokenDecimals).String()
}

// ParseUnits converts a human amount like "1.5" into raw token units.
func ParseUnits(s string) (*uint256.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	if d.IsNegative() {
		return nil, errNegativeAmount
	}
	raw := d.Shift(TokenDecimals)
	if !raw.Equal(raw.Truncate(0)) {
		return nil, errFractionalAmount
	}
	out, overflow := uint256.FromBig(raw.BigInt())
	if overflow {
		return nil, errAmountOverflow
	}
	return out, nil
}
