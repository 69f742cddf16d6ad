package core

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ParseAddress is the single validation point for address strings coming
// from outside: exactly 42 characters, "0x" prefix, hex body. Case is ignored.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if len(s) != 2+2*common.AddressLength {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return common.Address{}, fmt.Errorf("%w: missing 0x prefix", ErrInvalidAddress)
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return common.HexToAddress(s), nil
}

// SameAddress compares two address strings case-insensitively. Malformed
// input never matches.
func SameAddress(a, b string) bool {
	x, err := ParseAddress(a)
	if err != nil {
		return false
	}
	y, err := ParseAddress(b)
	if err != nil {
		return false
	}
	return x == y
}
