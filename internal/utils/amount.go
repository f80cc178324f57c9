package utils

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// CTA is the native coin of the chain and uses 18 decimals like ether.
const coinDecimals = 18

// ToWei converts a token-unit amount into wei, truncating anything
// below 1 wei.
func ToWei(amount decimal.Decimal) *big.Int {
	return amount.Shift(coinDecimals).Truncate(0).BigInt()
}

// FromWei converts a wei quantity back into token units.
func FromWei(wei *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(wei, -coinDecimals)
}

func ValidAddress(addr string) bool {
	return common.IsHexAddress(addr)
}
