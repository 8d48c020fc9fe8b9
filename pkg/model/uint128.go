package model

import (
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
)

// MaxUint128 is 2^128 - 1, the largest value a contract Uint128 can hold.
var MaxUint128 = sdkmath.NewUintFromBigInt(new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1)))

// ParseUint128 parses a base-10 Uint128 string as used by the contracts.
// Signs, whitespace, decimals and values above MaxUint128 are rejected.
func ParseUint128(s string) (sdkmath.Uint, error) {
	if s == "" {
		return sdkmath.ZeroUint(), fmt.Errorf("invalid uint128: empty string")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return sdkmath.ZeroUint(), fmt.Errorf("invalid uint128 %q: non-digit character", s)
		}
	}
	i, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return sdkmath.ZeroUint(), fmt.Errorf("invalid uint128 %q", s)
	}
	if i.Cmp(MaxUint128.BigInt()) > 0 {
		return sdkmath.ZeroUint(), fmt.Errorf("invalid uint128 %q: overflow", s)
	}
	return sdkmath.NewUintFromBigInt(i), nil
}
